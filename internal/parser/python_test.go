package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/codectx/pkg/types"
)

const pySource = `"""Sample module for parser tests."""

import os
from typing import Dict, List, Optional
from .models import User as U, Account
from ..core import engine


class DataProcessor:
    """Processes data records."""

    def __init__(self, config: Dict[str, str]):
        self.config = config
        self._cache = {}

    def process_data(self, items: List[str]) -> List[str]:
        """Process a list of items."""
        return [self._process_item(i) for i in items]

    def _process_item(self, item: str) -> str:
        return item.upper()


def calculate_fibonacci(n: int) -> int:
    """Calculate the nth Fibonacci number."""
    if n <= 1:
        return n
    return calculate_fibonacci(n - 1) + calculate_fibonacci(n - 2)


async def async_operation(delay: float = 1.0) -> Optional[str]:
    return None


def _helper_function():
    pass


API_VERSION = "1.0.0"
`

func TestPython_Symbols(t *testing.T) {
	res := New(nil).Parse("pkg/processor.py", []byte(pySource), "")

	assert.Equal(t, []symbolRow{
		{"DataProcessor", types.KindClass},
		{"__init__", types.KindMethod},
		{"process_data", types.KindMethod},
		{"_process_item", types.KindMethod},
		{"calculate_fibonacci", types.KindFunction},
		{"async_operation", types.KindFunction},
		{"_helper_function", types.KindFunction},
		{"API_VERSION", types.KindVariable},
	}, rows(res.Symbols))

	cls := find(t, res.Symbols, "DataProcessor")
	assert.True(t, cls.Exported)
	assert.Equal(t, "Processes data records.", cls.Doc)
	assert.Equal(t, 9, cls.Start.Line)

	init := find(t, res.Symbols, "__init__")
	assert.Equal(t, "DataProcessor", init.Parent)
	assert.Equal(t, []string{"config"}, init.Params)
	assert.False(t, init.Private, "dunder names are not private")

	process := find(t, res.Symbols, "process_data")
	assert.Equal(t, []string{"items"}, process.Params)
	assert.Equal(t, "List[str]", process.ReturnType)
	assert.Equal(t, "Process a list of items.", process.Doc)

	assert.True(t, find(t, res.Symbols, "_process_item").Private)

	fib := find(t, res.Symbols, "calculate_fibonacci")
	assert.Equal(t, "int", fib.ReturnType)
	assert.Equal(t, "Calculate the nth Fibonacci number.", fib.Doc)

	async := find(t, res.Symbols, "async_operation")
	assert.Equal(t, []string{"delay"}, async.Params)
	assert.Equal(t, "Optional[str]", async.ReturnType)

	helper := find(t, res.Symbols, "_helper_function")
	assert.True(t, helper.Private)
	assert.False(t, helper.Exported)

	assert.True(t, find(t, res.Symbols, "API_VERSION").Exported)
}

func TestPython_Imports(t *testing.T) {
	res := New(nil).Parse("pkg/processor.py", []byte(pySource), "")

	assert.Equal(t, []string{"typing", ".models", "..core", "os"}, res.Dependencies)
	assert.Equal(t, []string{"User", "Account"}, res.Imports[".models"])
	assert.Equal(t, []string{"engine"}, res.Imports["..core"])
}

func TestPython_DunderAll(t *testing.T) {
	src := `__all__ = ["public_api"]

def public_api():
    pass

def also_public_by_name():
    pass
`
	res := New(nil).Parse("api.py", []byte(src), "")

	assert.True(t, find(t, res.Symbols, "public_api").Exported)
	assert.False(t, find(t, res.Symbols, "also_public_by_name").Exported)
}

func TestPythonParamName(t *testing.T) {
	tests := []struct{ raw, want string }{
		{"self", ""},
		{"cls", ""},
		{"/", ""},
		{"*args", "args"},
		{"**kwargs", "kwargs"},
		{"x: int = 3", "x"},
		{"items: List[str]", "items"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pythonParamName(tt.raw), tt.raw)
	}
}
