package parser

import (
	"regexp"
	"strings"

	"github.com/dshills/codectx/pkg/types"
)

func init() {
	Register(&grammarExtractor{patternLanguage: pythonLanguage()})
}

var pyAllRe = regexp.MustCompile(`(?m)^__all__\s*(?::[^=]+)?=\s*[\[(]([^\])]*)[\])]`)

func pythonLanguage() *patternLanguage {
	return &patternLanguage{
		name:        "python",
		extensions:  []string{".py", ".pyi"},
		block:       indentBlocks,
		lineComment: "#",
		quotes:      "\"'",
		rules: []lineRule{
			{kind: types.KindClass, container: true, scope: topOrMember, re: regexp.MustCompile(
				`^\s*class\s+(?P<name>[A-Za-z_]\w*)`)},
			{kind: types.KindFunction, scope: topOrMember, re: regexp.MustCompile(
				`^\s*(?:async\s+)?def\s+(?P<name>[A-Za-z_]\w*)\s*\((?P<params>.*)\)\s*(?:->\s*(?P<ret>[^:]+?))?\s*:`)},
			{kind: types.KindVariable, scope: topScope, re: regexp.MustCompile(
				`^(?P<name>[A-Za-z_]\w*)\s*(?::\s*(?P<ret>[^=]+?))?\s*=(?:[^=]|$)`)},
		},
		visibility: pythonVisibility,
		paramName:  pythonParamName,
		finish:     applyPythonAll,
		reserved:   wordSet("if", "elif", "else", "for", "while", "with", "try", "except", "return", "import", "from"),
	}
}

func pythonPrivate(name string) bool {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return false
	}
	return strings.HasPrefix(name, "_")
}

func pythonVisibility(m ruleMatch) (exported, private bool) {
	private = pythonPrivate(m.name)
	return !private, private
}

func pythonParamName(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "*")
	if i := strings.IndexAny(raw, ":="); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "self", "cls", "/":
		return ""
	}
	return raw
}

// applyPythonAll restricts exports to __all__ when the module declares it.
func applyPythonAll(text string, symbols []types.Symbol) {
	m := pyAllRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	listed := make(map[string]bool)
	for _, part := range strings.Split(m[1], ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		if name != "" {
			listed[name] = true
		}
	}
	for i := range symbols {
		if symbols[i].Parent == "" && symbols[i].Name != "__all__" {
			symbols[i].Exported = listed[symbols[i].Name]
		}
	}
}
