package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/codectx/pkg/types"
)

const tsSource = `import { helper, other as o } from './util';
import * as path from 'path';
import Default from "../lib/index";
const fs = require('fs');

/** Greets a user. */
export function greet(name: string, greeting = "hi"): string {
  return ` + "`${greeting} ${name}`" + `;
}

export class UserService {
  private cache = new Map<string, User>();

  constructor(private readonly repo: Repo) {}

  async findUser(id: string): Promise<User> {
    return this.repo.get(id);
  }

  private _reset() {
    this.cache.clear();
  }
}

export interface User {
  id: string;
}

export type UserID = string;

export enum Role {
  Admin,
  Guest,
}

const internalCounter = 0;

export const add = (a: number, b: number): number => a + b;

function notExported() {}

export { notExported };
`

func TestTypeScript_Symbols(t *testing.T) {
	res := New(nil).Parse("src/user.ts", []byte(tsSource), "")

	assert.Equal(t, []symbolRow{
		{"fs", types.KindVariable},
		{"greet", types.KindFunction},
		{"UserService", types.KindClass},
		{"constructor", types.KindMethod},
		{"findUser", types.KindMethod},
		{"_reset", types.KindMethod},
		{"User", types.KindInterface},
		{"UserID", types.KindType},
		{"Role", types.KindEnum},
		{"internalCounter", types.KindVariable},
		{"add", types.KindFunction},
		{"notExported", types.KindFunction},
	}, rows(res.Symbols))

	greet := find(t, res.Symbols, "greet")
	assert.True(t, greet.Exported)
	assert.Equal(t, []string{"name", "greeting"}, greet.Params)
	assert.Equal(t, "string", greet.ReturnType)
	assert.Equal(t, "Greets a user.", greet.Doc)
	assert.Equal(t, 7, greet.Start.Line)
	assert.Equal(t, 9, greet.End.Line)

	ctor := find(t, res.Symbols, "constructor")
	assert.Equal(t, "UserService", ctor.Parent)
	assert.Equal(t, []string{"repo"}, ctor.Params)
	assert.False(t, ctor.Exported)

	findUser := find(t, res.Symbols, "findUser")
	assert.Equal(t, "Promise<User>", findUser.ReturnType)
	assert.False(t, findUser.Private)

	reset := find(t, res.Symbols, "_reset")
	assert.True(t, reset.Private)
	assert.False(t, reset.Exported)

	add := find(t, res.Symbols, "add")
	assert.True(t, add.Exported)
	assert.Equal(t, []string{"a", "b"}, add.Params)
	assert.Equal(t, "number", add.ReturnType)

	assert.False(t, find(t, res.Symbols, "internalCounter").Exported)
	assert.False(t, find(t, res.Symbols, "fs").Exported)
	assert.True(t, find(t, res.Symbols, "notExported").Exported, "named in an export list")
	assert.True(t, find(t, res.Symbols, "User").Exported)
}

func TestTypeScript_Imports(t *testing.T) {
	res := New(nil).Parse("src/user.ts", []byte(tsSource), "")

	assert.Equal(t, []string{"./util", "path", "../lib/index", "fs"}, res.Dependencies)
	assert.Equal(t, []string{"helper", "other"}, res.Imports["./util"])
	assert.Equal(t, []string{"*"}, res.Imports["path"])
	assert.Equal(t, []string{"default"}, res.Imports["../lib/index"])
}

func TestTypeScript_Namespace(t *testing.T) {
	src := `export namespace Geometry {
  export function area(r: number): number { return r * r; }
  const hidden = 1;
}
`
	res := New(nil).Parse("geo.ts", []byte(src), "")

	assert.Equal(t, []symbolRow{
		{"Geometry", types.KindNamespace},
		{"area", types.KindFunction},
		{"hidden", types.KindVariable},
	}, rows(res.Symbols))

	area := find(t, res.Symbols, "area")
	assert.Equal(t, "Geometry", area.Parent)
	assert.True(t, area.Exported)
	assert.False(t, find(t, res.Symbols, "hidden").Exported)
}

func TestJavaScript_CommonJS(t *testing.T) {
	src := `const path = require('path');
const { readFile } = require("fs/promises");

function load(file) {
  return readFile(path.join(__dirname, file));
}

class Cache {
  get(key) {
    return this.map[key];
  }
}

const double = x => x * 2;

module.exports = { load, Cache };
`
	res := New(nil).Parse("lib/load.js", []byte(src), "")

	assert.Equal(t, []symbolRow{
		{"path", types.KindVariable},
		{"load", types.KindFunction},
		{"Cache", types.KindClass},
		{"get", types.KindMethod},
		{"double", types.KindFunction},
	}, rows(res.Symbols))

	assert.True(t, find(t, res.Symbols, "load").Exported)
	assert.True(t, find(t, res.Symbols, "Cache").Exported)
	assert.False(t, find(t, res.Symbols, "double").Exported)
	assert.Equal(t, []string{"x"}, find(t, res.Symbols, "double").Params)
	assert.Equal(t, "Cache", find(t, res.Symbols, "get").Parent)

	assert.Equal(t, []string{"path", "fs/promises"}, res.Dependencies)
	assert.Equal(t, []string{"readFile"}, res.Imports["fs/promises"])
}

func TestScriptExportNames(t *testing.T) {
	names := scriptExportNames(`
export { a, b as c, type T };
export default Widget;
exports.run = run;
module.exports.stop = stop;
`)
	for _, want := range []string{"a", "b", "T", "Widget", "run", "stop"} {
		assert.True(t, names[want], want)
	}
	assert.False(t, names["c"])
}
