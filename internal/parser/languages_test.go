package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/codectx/pkg/types"
)

func TestJava_Symbols(t *testing.T) {
	src := `package com.example;

import java.util.List;
import static java.lang.Math.max;

/**
 * Service for users.
 */
public class UserService {
    private final List<String> names;

    public UserService(List<String> names) {
        this.names = names;
    }

    public String find(int id, String fallback) {
        if (id < 0) {
            return fallback;
        }
        return names.get(id);
    }

    private void reset() {
        names.clear();
    }

    static class Inner {
    }
}

interface Repo {
}
`
	res := New(nil).Parse("src/UserService.java", []byte(src), "")

	assert.Equal(t, []symbolRow{
		{"UserService", types.KindClass},
		{"UserService", types.KindMethod},
		{"find", types.KindMethod},
		{"reset", types.KindMethod},
		{"Inner", types.KindClass},
		{"Repo", types.KindInterface},
	}, rows(res.Symbols))

	cls := res.Symbols[0]
	assert.True(t, cls.Exported)
	assert.Equal(t, "Service for users.", cls.Doc)
	assert.Equal(t, 9, cls.Start.Line)
	assert.Equal(t, 29, cls.End.Line)

	ctor := res.Symbols[1]
	assert.Equal(t, "UserService", ctor.Parent)
	assert.Equal(t, []string{"names"}, ctor.Params)

	found := find(t, res.Symbols, "find")
	assert.Equal(t, []string{"id", "fallback"}, found.Params)
	assert.Equal(t, "String", found.ReturnType)
	assert.True(t, found.Exported)

	reset := find(t, res.Symbols, "reset")
	assert.True(t, reset.Private)
	assert.False(t, reset.Exported)

	assert.Equal(t, "UserService", find(t, res.Symbols, "Inner").Parent)
	assert.False(t, find(t, res.Symbols, "Repo").Exported)

	assert.Equal(t, []string{"java.util.List", "java.lang.Math.max"}, res.Dependencies)
}

func TestCSharp_AllmanBraces(t *testing.T) {
	src := `using System;
using System.Collections.Generic;

namespace App.Services
{
    public class OrderService
    {
        public OrderService(IRepo repo) { }

        public async Task<Order> GetOrder(int id)
        {
            return await repo.Find(id);
        }

        private void Log(string msg) { }
    }
}
`
	res := New(nil).Parse("Services/OrderService.cs", []byte(src), "")

	assert.Equal(t, []symbolRow{
		{"App.Services", types.KindNamespace},
		{"OrderService", types.KindClass},
		{"OrderService", types.KindMethod},
		{"GetOrder", types.KindMethod},
		{"Log", types.KindMethod},
	}, rows(res.Symbols))

	cls := res.Symbols[1]
	assert.Equal(t, "App.Services", cls.Parent)
	assert.True(t, cls.Exported)
	assert.Equal(t, 6, cls.Start.Line)
	assert.Equal(t, 16, cls.End.Line)

	get := find(t, res.Symbols, "GetOrder")
	assert.Equal(t, "OrderService", get.Parent)
	assert.Equal(t, "Task<Order>", get.ReturnType)
	assert.Equal(t, []string{"id"}, get.Params)

	assert.True(t, find(t, res.Symbols, "Log").Private)

	assert.Equal(t, []string{"System", "System.Collections.Generic"}, res.Dependencies)
}

func TestRust_Symbols(t *testing.T) {
	src := `use std::collections::HashMap;
use crate::config::{Config, Options};
mod utils;

/// A key-value store.
pub struct Store {
    items: HashMap<String, String>,
}

impl Store {
    /// Creates an empty store.
    pub fn new() -> Self {
        Store { items: HashMap::new() }
    }

    fn secret(&self, key: &str) -> Option<&String> {
        self.items.get(key)
    }
}

pub trait Named {
    fn name(&self) -> String;
}

pub enum Mode { Fast, Slow }

pub const MAX_ITEMS: usize = 100;

fn helper(x: i32, mut y: i32) -> i32 { x + y }
`
	res := New(nil).Parse("src/store.rs", []byte(src), "")

	assert.Equal(t, []symbolRow{
		{"Store", types.KindClass},
		{"new", types.KindMethod},
		{"secret", types.KindMethod},
		{"Named", types.KindInterface},
		{"name", types.KindMethod},
		{"Mode", types.KindEnum},
		{"MAX_ITEMS", types.KindVariable},
		{"helper", types.KindFunction},
	}, rows(res.Symbols))

	store := res.Symbols[0]
	assert.True(t, store.Exported)
	assert.Equal(t, "A key-value store.", store.Doc)

	newFn := find(t, res.Symbols, "new")
	assert.Equal(t, "Store", newFn.Parent)
	assert.Equal(t, "Self", newFn.ReturnType)
	assert.True(t, newFn.Exported)
	assert.Equal(t, "Creates an empty store.", newFn.Doc)

	secret := find(t, res.Symbols, "secret")
	assert.Equal(t, []string{"key"}, secret.Params)
	assert.False(t, secret.Exported)

	helper := find(t, res.Symbols, "helper")
	assert.Equal(t, []string{"x", "y"}, helper.Params)
	assert.Equal(t, "i32", helper.ReturnType)
	assert.Equal(t, helper.Start.Line, helper.End.Line)

	assert.Equal(t, []string{"./utils", "std::collections::HashMap", "crate::config::{Config,Options}"}, res.Dependencies)
}

func TestRuby_Symbols(t *testing.T) {
	src := `require 'json'
require_relative 'helpers/format'

# Manages accounts.
class Account
  LIMIT = 10

  def initialize(owner, balance = 0)
    @owner = owner
    @balance = balance
  end

  def deposit(amount)
    @balance += amount if amount > 0
  end

  private

  def audit!
    log("audit")
  end
end

module Billing
  def self.charge(account, amount:)
    account.deposit(amount)
  end
end

def top_level_helper
  puts "hi"
end
`
	res := New(nil).Parse("lib/account.rb", []byte(src), "")

	assert.Equal(t, []symbolRow{
		{"Account", types.KindClass},
		{"LIMIT", types.KindVariable},
		{"initialize", types.KindMethod},
		{"deposit", types.KindMethod},
		{"audit!", types.KindMethod},
		{"Billing", types.KindNamespace},
		{"charge", types.KindMethod},
		{"top_level_helper", types.KindFunction},
	}, rows(res.Symbols))

	account := res.Symbols[0]
	assert.Equal(t, "Manages accounts.", account.Doc)
	assert.Equal(t, 5, account.Start.Line)
	assert.Equal(t, 22, account.End.Line)

	assert.Equal(t, []string{"owner", "balance"}, find(t, res.Symbols, "initialize").Params)
	assert.True(t, find(t, res.Symbols, "deposit").Exported)

	audit := find(t, res.Symbols, "audit!")
	assert.True(t, audit.Private)
	assert.False(t, audit.Exported)

	charge := find(t, res.Symbols, "charge")
	assert.Equal(t, "Billing", charge.Parent)
	assert.Equal(t, []string{"account", "amount"}, charge.Params)

	assert.Equal(t, []string{"json", "./helpers/format"}, res.Dependencies)
}
