package parser

import (
	"regexp"
	"strings"

	"github.com/dshills/codectx/pkg/types"
)

// Complexity weights. The score is a cheap proxy, not a cyclomatic count:
//
//	score = ControlFlowWeight*branches + FunctionWeight*functions
const (
	ControlFlowWeight = 1.0
	FunctionWeight    = 1.0
)

var (
	braceControlRe  = regexp.MustCompile(`\b(if|for|while|case|catch)\b|&&|\|\|`)
	goControlRe     = regexp.MustCompile(`\b(if|for|case)\b|&&|\|\|`)
	pythonControlRe = regexp.MustCompile(`\b(if|elif|for|while|except|and|or)\b`)
	rubyControlRe   = regexp.MustCompile(`\b(if|elsif|unless|while|until|for|when|rescue|and|or)\b|&&|\|\|`)
	rustControlRe   = regexp.MustCompile(`\b(if|for|while|loop|match)\b|=>|&&|\|\|`)
)

func controlPattern(language string) *regexp.Regexp {
	switch language {
	case "go":
		return goControlRe
	case "python":
		return pythonControlRe
	case "ruby":
		return rubyControlRe
	case "rust":
		return rustControlRe
	default:
		return braceControlRe
	}
}

// Complexity estimates a file's complexity from its source and extracted symbols.
// Comment lines are ignored; string contents are not.
func Complexity(language string, src []byte, symbols []types.Symbol) float64 {
	re := controlPattern(language)
	branches := 0
	for _, line := range strings.Split(string(src), "\n") {
		trimmed := strings.TrimSpace(line)
		if isCommentLine(language, trimmed) {
			continue
		}
		branches += len(re.FindAllStringIndex(line, -1))
	}

	functions := 0
	for _, s := range symbols {
		if s.Kind.Base() == types.KindFunction {
			functions++
		}
	}

	return ControlFlowWeight*float64(branches) + FunctionWeight*float64(functions)
}

func isCommentLine(language, trimmed string) bool {
	switch language {
	case "python", "ruby":
		return strings.HasPrefix(trimmed, "#")
	default:
		return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*")
	}
}
