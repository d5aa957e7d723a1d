package types

import "errors"

// SymbolKind represents the kind of a declared symbol
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindVariable  SymbolKind = "variable"
	KindEnum      SymbolKind = "enum"
	KindNamespace SymbolKind = "namespace"
)

// Base maps sub-kinds onto the seven portable kinds. Methods report as functions.
func (k SymbolKind) Base() SymbolKind {
	if k == KindMethod {
		return KindFunction
	}
	return k
}

// Valid reports whether k is a known kind.
func (k SymbolKind) Valid() bool {
	switch k {
	case KindFunction, KindMethod, KindClass, KindInterface, KindType, KindVariable, KindEnum, KindNamespace:
		return true
	default:
		return false
	}
}

// Position represents a location in source code (1-based)
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Symbol represents a declaration extracted from a source file
type Symbol struct {
	Name string     `json:"name"`
	Kind SymbolKind `json:"kind"`

	// Location
	Start Position `json:"start"`
	End   Position `json:"end"`

	// Visibility
	Exported bool `json:"exported"`
	Private  bool `json:"private,omitempty"` // private by naming convention

	// Optional detail
	Params     []string `json:"params,omitempty"`
	ReturnType string   `json:"return_type,omitempty"`
	Doc        string   `json:"doc,omitempty"`
	Parent     string   `json:"parent,omitempty"` // enclosing class or receiver
}

// Validate performs basic validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}

	if !s.Kind.Valid() {
		return errors.New("invalid symbol kind")
	}

	if s.Start.Line <= 0 || s.End.Line <= 0 {
		return errors.New("invalid position: line numbers must be positive")
	}

	if s.Start.Line > s.End.Line {
		return errors.New("invalid position: start line must be before or equal to end line")
	}

	return nil
}

// Contains reports whether line falls inside the symbol span.
func (s *Symbol) Contains(line int) bool {
	return line >= s.Start.Line && line <= s.End.Line
}
