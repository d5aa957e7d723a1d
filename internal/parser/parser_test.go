package parser

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/pkg/types"
)

type symbolRow struct {
	Name string
	Kind types.SymbolKind
}

func rows(symbols []types.Symbol) []symbolRow {
	out := make([]symbolRow, len(symbols))
	for i, s := range symbols {
		out[i] = symbolRow{s.Name, s.Kind}
	}
	return out
}

func find(t *testing.T, symbols []types.Symbol, name string) types.Symbol {
	t.Helper()
	for _, s := range symbols {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %q not found in %v", name, rows(symbols))
	return types.Symbol{}
}

func TestRegistry(t *testing.T) {
	for _, lang := range []string{"go", "typescript", "javascript", "python", "java", "csharp", "rust", "ruby"} {
		_, ok := ForLanguage(lang)
		assert.True(t, ok, lang)
	}

	tests := []struct{ path, want string }{
		{"main.go", "go"},
		{"src/app.ts", "typescript"},
		{"src/view.TSX", "typescript"},
		{"index.mjs", "javascript"},
		{"pkg/mod.py", "python"},
		{"Main.java", "java"},
		{"lib.rs", "rust"},
		{"app/models.rb", "ruby"},
		{"Program.cs", "csharp"},
		{"README.md", ""},
		{"Makefile", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LanguageForPath(tt.path), tt.path)
	}

	assert.Contains(t, Languages(), "go")
	assert.Contains(t, Extensions(), ".py")
}

type failingExtractor struct {
	panics bool
}

func (failingExtractor) Language() string     { return "failing-test-lang" }
func (failingExtractor) Extensions() []string { return []string{".failtest"} }
func (f failingExtractor) Extract(string, []byte) (*Result, error) {
	if f.panics {
		panic("boom")
	}
	return nil, errors.New("cannot parse")
}

func TestParse_FailureIsolation(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		Register(failingExtractor{})
		var buf bytes.Buffer
		p := New(logging.New(&buf, slog.LevelWarn))

		res := p.Parse("x.failtest", []byte("anything"), "")
		require.NotNil(t, res)
		assert.Empty(t, res.Symbols)
		assert.Contains(t, buf.String(), "symbol extraction failed")
	})

	t.Run("panic", func(t *testing.T) {
		Register(failingExtractor{panics: true})
		p := New(nil)

		res := p.Parse("x.failtest", []byte("anything"), "")
		require.NotNil(t, res)
		assert.Empty(t, res.Symbols)
	})

	t.Run("unknown language", func(t *testing.T) {
		res := New(nil).Parse("notes.txt", []byte("hello"), "")
		require.NotNil(t, res)
		assert.Empty(t, res.Symbols)
		assert.Empty(t, res.Dependencies)
	})
}

func TestParse_Go(t *testing.T) {
	src := `package testpkg

import (
	"fmt"
	str "strings"
)

// User represents a user in the system
type User struct {
	ID   int
	Name string
}

// Store persists users.
type Store interface {
	Save(u *User) error
}

type ID = string

const MaxUsers = 100

var defaultName string

// GetName returns the user's name
func (u *User) GetName() string {
	return u.Name
}

// NewUser creates a new user
func NewUser(id int, name string) (*User, error) {
	return &User{ID: id, Name: fmt.Sprint(name)}, nil
}

func helper(s string) string { return str.ToUpper(s) }
`
	res := New(nil).Parse("user.go", []byte(src), "go")

	assert.Equal(t, "testpkg", res.Package)
	assert.Equal(t, []string{"fmt", "strings"}, res.Dependencies)
	assert.Equal(t, []symbolRow{
		{"User", types.KindClass},
		{"Store", types.KindInterface},
		{"ID", types.KindType},
		{"MaxUsers", types.KindVariable},
		{"defaultName", types.KindVariable},
		{"GetName", types.KindMethod},
		{"NewUser", types.KindFunction},
		{"helper", types.KindFunction},
	}, rows(res.Symbols))

	user := find(t, res.Symbols, "User")
	assert.True(t, user.Exported)
	assert.Equal(t, "User represents a user in the system", user.Doc)
	assert.Equal(t, 9, user.Start.Line)
	assert.Equal(t, 12, user.End.Line)

	getName := find(t, res.Symbols, "GetName")
	assert.Equal(t, "User", getName.Parent)
	assert.Equal(t, "string", getName.ReturnType)

	newUser := find(t, res.Symbols, "NewUser")
	assert.Equal(t, []string{"id", "name"}, newUser.Params)
	assert.Equal(t, "(*User, error)", newUser.ReturnType)

	helper := find(t, res.Symbols, "helper")
	assert.False(t, helper.Exported)
	assert.False(t, helper.Private)

	for _, s := range res.Symbols {
		assert.NoError(t, s.Validate(), s.Name)
	}
}

func TestParse_GoSyntaxError(t *testing.T) {
	var buf bytes.Buffer
	p := New(logging.New(&buf, slog.LevelWarn))

	src := "package broken\n\nimport \"fmt\"\n\nfunc Oops( {\n"
	res := p.Parse("broken.go", []byte(src), "go")

	assert.Empty(t, res.Symbols)
	assert.Equal(t, []string{"fmt"}, res.Dependencies)
	assert.Contains(t, buf.String(), "[warn] symbol extraction failed")
}

func TestParse_NeverFailsOnGarbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("{{{{ ))) ]]]"),
		[]byte("\x00\x01\x02 class def function"),
		[]byte("'''unterminated\n\"\"\"\n`"),
	}
	p := New(nil)
	for _, lang := range Languages() {
		for _, in := range inputs {
			assert.NotPanics(t, func() {
				res := p.Parse("file", in, lang)
				assert.NotNil(t, res)
			}, lang)
		}
	}
}
