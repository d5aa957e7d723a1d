package types

import "time"

// IndexedFile is a source file plus its extracted symbols, dependencies and metadata.
// Produced by the indexer; never mutated afterwards.
type IndexedFile struct {
	Path         string              `json:"path"`     // absolute
	RelPath      string              `json:"rel_path"` // slash-separated, relative to the project root
	Language     string              `json:"language"`
	Size         int64               `json:"size"`
	ModTime      time.Time           `json:"mod_time"`
	Symbols      []Symbol            `json:"symbols"`
	Dependencies []string            `json:"dependencies"`      // verbatim specifiers
	Imports      map[string][]string `json:"imports,omitempty"` // specifier -> imported names
	IsTest       bool                `json:"is_test"`
	Complexity   float64             `json:"complexity"`
	ContentHash  [32]byte            `json:"-"`
}

// ExportedSymbols returns the symbols flagged as exported.
func (f *IndexedFile) ExportedSymbols() []Symbol {
	var out []Symbol
	for _, s := range f.Symbols {
		if s.Exported {
			out = append(out, s)
		}
	}
	return out
}

// FindSymbol returns the first symbol with the given name.
func (f *IndexedFile) FindSymbol(name string) (Symbol, bool) {
	for _, s := range f.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// SymbolAt returns the innermost symbol whose span covers line.
func (f *IndexedFile) SymbolAt(line int) (Symbol, bool) {
	var (
		best  Symbol
		found bool
	)
	for _, s := range f.Symbols {
		if !s.Contains(line) {
			continue
		}
		if !found || s.End.Line-s.Start.Line < best.End.Line-best.Start.Line {
			best = s
			found = true
		}
	}
	return best, found
}
