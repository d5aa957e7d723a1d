//go:build !cgo

package parser

import "github.com/dshills/codectx/pkg/types"

// GrammarsAvailable reports whether tree-sitter grammars are compiled in.
const GrammarsAvailable = false

// grammarSymbols always defers to the pattern extractors when cgo is disabled.
func grammarSymbols(string, *patternLanguage, []byte) ([]types.Symbol, bool) {
	return nil, false
}
