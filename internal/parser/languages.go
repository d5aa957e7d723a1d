package parser

import (
	"regexp"
	"strings"

	"github.com/dshills/codectx/pkg/types"
)

func init() {
	Register(&grammarExtractor{patternLanguage: javaLanguage()})
	Register(&grammarExtractor{patternLanguage: csharpLanguage()})
	Register(&grammarExtractor{patternLanguage: rustLanguage()})
	Register(&grammarExtractor{patternLanguage: rubyLanguage()})
}

var modifierWords = regexp.MustCompile(`\b(public|private|protected|internal)\b`)

func modifierVisibility(publicWord string) func(ruleMatch) (bool, bool) {
	return func(m ruleMatch) (bool, bool) {
		mods := modifierWords.FindAllString(m.mods, -1)
		exported, private := false, strings.HasPrefix(m.name, "_")
		for _, w := range mods {
			switch w {
			case publicWord:
				exported = true
			case "private":
				private = true
			}
		}
		return exported, private
	}
}

// lastWordParam handles "Type name" style parameters.
func lastWordParam(raw string) string {
	if i := strings.Index(raw, "="); i >= 0 {
		raw = raw[:i]
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	name := strings.Trim(fields[len(fields)-1], "[]")
	if name == "..." {
		return ""
	}
	return name
}

func javaLanguage() *patternLanguage {
	const mods = `^\s*(?:@\w+(?:\([^)]*\))?\s+)*(?P<mods>(?:(?:public|protected|private|static|final|abstract|sealed|non-sealed|strictfp|synchronized|native|default|transient|volatile)\s+)*)`
	return &patternLanguage{
		name:        "java",
		extensions:  []string{".java"},
		block:       braceBlocks,
		lineComment: "//",
		quotes:      `"'`,
		rules: []lineRule{
			{kind: types.KindClass, container: true, scope: topOrMember, re: regexp.MustCompile(
				mods + `(?:class|record)\s+(?P<name>\w+)`)},
			{kind: types.KindInterface, container: true, scope: topOrMember, re: regexp.MustCompile(
				mods + `@?interface\s+(?P<name>\w+)`)},
			{kind: types.KindEnum, container: true, scope: topOrMember, re: regexp.MustCompile(
				mods + `enum\s+(?P<name>\w+)`)},
			{kind: types.KindFunction, scope: memberScope, re: regexp.MustCompile(
				mods + `(?:<[^>]+>\s+)?(?P<ret>[\w.]+(?:<[^()]*>)?(?:\[\])*)\s+(?P<name>\w+)\s*\((?P<params>[^)]*)\)`)},
			{kind: types.KindFunction, scope: memberScope, re: regexp.MustCompile(
				mods + `(?P<name>[A-Z]\w*)\s*\((?P<params>[^)]*)\)\s*(?:throws\s+[\w.,\s]+)?\{`)},
		},
		visibility: modifierVisibility("public"),
		paramName:  lastWordParam,
		reserved: wordSet("return", "new", "throw", "else", "if", "for", "while", "switch", "catch", "case", "yield",
			"public", "protected", "private", "static", "final", "abstract", "synchronized", "native", "default"),
	}
}

func csharpLanguage() *patternLanguage {
	const mods = `^\s*(?:\[[^\]]*\]\s*)*(?P<mods>(?:(?:public|protected|private|internal|static|sealed|abstract|virtual|override|async|partial|readonly|extern|unsafe|new)\s+)*)`
	return &patternLanguage{
		name:        "csharp",
		extensions:  []string{".cs"},
		block:       braceBlocks,
		lineComment: "//",
		quotes:      `"'`,
		rules: []lineRule{
			{kind: types.KindNamespace, container: true, namespace: true, scope: topOrMember, re: regexp.MustCompile(
				`^\s*namespace\s+(?P<name>[\w.]+)`)},
			{kind: types.KindClass, container: true, scope: topOrMember, re: regexp.MustCompile(
				mods + `(?:class|struct|record(?:\s+struct)?)\s+(?P<name>\w+)`)},
			{kind: types.KindInterface, container: true, scope: topOrMember, re: regexp.MustCompile(
				mods + `interface\s+(?P<name>\w+)`)},
			{kind: types.KindEnum, container: true, scope: topOrMember, re: regexp.MustCompile(
				mods + `enum\s+(?P<name>\w+)`)},
			{kind: types.KindFunction, scope: memberScope, re: regexp.MustCompile(
				mods + `(?P<ret>[\w.]+(?:<[^()]*>)?(?:\[\])*\??)\s+(?P<name>\w+)\s*(?:<[^(]*>)?\s*\((?P<params>[^)]*)\)`)},
			{kind: types.KindFunction, scope: memberScope, re: regexp.MustCompile(
				mods + `(?P<name>[A-Z]\w*)\s*\((?P<params>[^)]*)\)\s*(?::\s*(?:base|this)\([^)]*\)\s*)?\{`)},
		},
		visibility: modifierVisibility("public"),
		paramName: func(raw string) string {
			for _, mod := range []string{"this ", "ref ", "out ", "in ", "params "} {
				raw = strings.TrimPrefix(strings.TrimSpace(raw), mod)
			}
			return lastWordParam(raw)
		},
		reserved: wordSet("return", "new", "throw", "else", "if", "for", "foreach", "while", "switch", "catch", "case", "using", "await", "yield",
			"public", "protected", "private", "internal", "static", "sealed", "abstract", "virtual", "override", "async", "partial"),
	}
}

func rustLanguage() *patternLanguage {
	const vis = `^\s*(?:#\[[^\]]*\]\s*)*(?P<export>pub(?:\([^)]*\))?\s+)?`
	return &patternLanguage{
		name:        "rust",
		extensions:  []string{".rs"},
		block:       braceBlocks,
		lineComment: "//",
		quotes:      `"`,
		rules: []lineRule{
			{kind: types.KindClass, hidden: true, container: true, scope: topOrMember, re: regexp.MustCompile(
				`^\s*(?:unsafe\s+)?impl(?:<[^>]*>)?\s+(?:[\w:]+(?:<[^>]*>)?\s+for\s+)?(?:[\w]+::)*(?P<name>\w+)`)},
			{kind: types.KindFunction, scope: topOrMember, re: regexp.MustCompile(
				vis + `(?:default\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?(?:extern\s+"[^"]*"\s+)?fn\s+(?P<name>\w+)\s*(?:<[^(]*>)?\s*\((?P<params>[^)]*)\)\s*(?:->\s*(?P<ret>[^{;]+?))?\s*(?:\bwhere\b[^{;]*)?(?:[{;]|$)`)},
			{kind: types.KindClass, scope: topOrMember, re: regexp.MustCompile(
				vis + `(?:struct|union)\s+(?P<name>\w+)`)},
			{kind: types.KindEnum, scope: topOrMember, re: regexp.MustCompile(
				vis + `enum\s+(?P<name>\w+)`)},
			{kind: types.KindInterface, container: true, scope: topOrMember, re: regexp.MustCompile(
				vis + `(?:unsafe\s+)?trait\s+(?P<name>\w+)`)},
			{kind: types.KindType, scope: topOrMember, re: regexp.MustCompile(
				vis + `type\s+(?P<name>\w+)`)},
			{kind: types.KindNamespace, container: true, namespace: true, scope: topOrMember, re: regexp.MustCompile(
				vis + `mod\s+(?P<name>\w+)\s*\{`)},
			{kind: types.KindVariable, scope: topOrMember, re: regexp.MustCompile(
				vis + `(?:const|static)\s+(?:mut\s+)?(?P<name>[A-Za-z_]\w*)\s*:`)},
		},
		visibility: func(m ruleMatch) (bool, bool) {
			return m.export != "", strings.HasPrefix(m.name, "_")
		},
		paramName: func(raw string) string {
			raw = strings.TrimSpace(raw)
			if i := strings.Index(raw, ":"); i >= 0 {
				raw = raw[:i]
			} else {
				return "" // self, &self, &mut self
			}
			raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "mut "))
			return raw
		},
	}
}

func rubyLanguage() *patternLanguage {
	return &patternLanguage{
		name:        "ruby",
		extensions:  []string{".rb"},
		block:       endBlocks,
		lineComment: "#",
		quotes:      `"'`,
		rules: []lineRule{
			{kind: types.KindClass, container: true, scope: topOrMember, re: regexp.MustCompile(
				`^\s*class\s+(?P<name>[A-Z]\w*(?:::\w+)*)`)},
			{kind: types.KindNamespace, container: true, scope: topOrMember, re: regexp.MustCompile(
				`^\s*module\s+(?P<name>[A-Z]\w*(?:::\w+)*)`)},
			{kind: types.KindFunction, scope: topOrMember, re: regexp.MustCompile(
				`^\s*def\s+(?:self\.)?(?P<name>\w+[?!=]?)\s*(?:\((?P<params>[^)]*)\))?`)},
			{kind: types.KindVariable, scope: topOrMember, re: regexp.MustCompile(
				`^\s*(?P<name>[A-Z][A-Z0-9_]*)\s*=(?:[^=~]|$)`)},
		},
		privateSection: regexp.MustCompile(`^\s*(private|protected)\s*$`),
		visibility: func(m ruleMatch) (bool, bool) {
			private := m.inPrivate || strings.HasPrefix(m.name, "_")
			return !private, private
		},
		paramName: func(raw string) string {
			raw = strings.TrimLeft(strings.TrimSpace(raw), "*&")
			if i := strings.IndexAny(raw, "=:"); i >= 0 {
				raw = raw[:i]
			}
			return strings.TrimSpace(raw)
		},
	}
}
