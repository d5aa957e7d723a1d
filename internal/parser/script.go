package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/codectx/pkg/types"
)

func init() {
	Register(&grammarExtractor{patternLanguage: scriptLanguage("typescript", ".ts", ".tsx", ".mts", ".cts")})
	Register(&grammarExtractor{patternLanguage: scriptLanguage("javascript", ".js", ".jsx", ".mjs", ".cjs")})
}

const jsIdent = `[A-Za-z_$][\w$]*`

var (
	jsExportListRe    = regexp.MustCompile(`\bexport\s*\{([^}]*)\}`)
	jsExportDefaultRe = regexp.MustCompile(`\bexport\s+default\s+(` + jsIdent + `)\s*;?\s*$`)
	cjsExportsObjRe   = regexp.MustCompile(`\bmodule\.exports\s*=\s*\{([^}]*)\}`)
	cjsExportsNameRe  = regexp.MustCompile(`\b(?:module\.)?exports\.(` + jsIdent + `)\s*=`)
	cjsExportsOneRe   = regexp.MustCompile(`\bmodule\.exports\s*=\s*(` + jsIdent + `)\s*;?\s*$`)
	jsMemberModsRe    = regexp.MustCompile(`\b(private|protected)\b`)
)

func scriptLanguage(name string, exts ...string) *patternLanguage {
	const (
		exportPrefix = `^\s*(?P<export>export\s+)?(?:default\s+)?(?:declare\s+)?`
		methodMods   = `^\s*(?P<mods>(?:(?:public|private|protected|static|readonly|abstract|override|async|get|set|declare)\s+)*)`
	)
	rules := []lineRule{
		{kind: types.KindClass, container: true, scope: topOrMember, re: regexp.MustCompile(
			exportPrefix + `(?:abstract\s+)?class\s+(?P<name>` + jsIdent + `)`)},
		{kind: types.KindInterface, scope: topOrMember, re: regexp.MustCompile(
			exportPrefix + `interface\s+(?P<name>` + jsIdent + `)`)},
		{kind: types.KindEnum, scope: topOrMember, re: regexp.MustCompile(
			exportPrefix + `(?:const\s+)?enum\s+(?P<name>` + jsIdent + `)`)},
		{kind: types.KindNamespace, container: true, namespace: true, scope: topOrMember, re: regexp.MustCompile(
			exportPrefix + `(?:namespace|module)\s+(?P<name>` + jsIdent + `(?:\.` + jsIdent + `)*)\s*\{`)},
		{kind: types.KindType, scope: topOrMember, re: regexp.MustCompile(
			exportPrefix + `type\s+(?P<name>` + jsIdent + `)\s*(?:<[^=]*>)?\s*=`)},
		{kind: types.KindFunction, scope: topOrMember, re: regexp.MustCompile(
			exportPrefix + `(?:async\s+)?function\s*\*?\s*(?P<name>` + jsIdent + `)\s*(?:<[^(]*>)?\s*\((?P<params>[^)]*)\)\s*(?::\s*(?P<ret>[^{;]+))?`)},
		{kind: types.KindFunction, scope: topOrMember, re: regexp.MustCompile(
			`^\s*(?P<export>export\s+)?(?:const|let|var)\s+(?P<name>` + jsIdent + `)\s*(?::[^=]+)?=\s*(?:async\s*)?\((?P<params>[^)]*)\)\s*(?::\s*(?P<ret>[^=]+?))?\s*=>`)},
		{kind: types.KindFunction, scope: topOrMember, re: regexp.MustCompile(
			`^\s*(?P<export>export\s+)?(?:const|let|var)\s+(?P<name>` + jsIdent + `)\s*=\s*(?:async\s+)?(?P<params>` + jsIdent + `)\s*=>`)},
		{kind: types.KindFunction, scope: topOrMember, re: regexp.MustCompile(
			`^\s*(?P<export>export\s+)?(?:const|let|var)\s+(?P<name>` + jsIdent + `)\s*(?::[^=]+)?=\s*(?:async\s+)?function\b\s*\*?\s*(?:` + jsIdent + `)?\s*\((?P<params>[^)]*)\)`)},
		{kind: types.KindVariable, scope: topOrMember, re: regexp.MustCompile(
			`^\s*(?P<export>export\s+)?(?:declare\s+)?(?:const|let|var)\s+(?P<name>` + jsIdent + `)\b`)},
		{kind: types.KindFunction, scope: memberScope, re: regexp.MustCompile(
			methodMods + `(?P<name>#?` + jsIdent + `)\s*(?:<[^(]*>)?\s*\((?P<params>[^)]*)\)\s*(?::\s*(?P<ret>[^{;]+?))?\s*\{`)},
		{kind: types.KindFunction, scope: memberScope, re: regexp.MustCompile(
			methodMods + `(?P<name>#?` + jsIdent + `)\s*(?::[^=]+)?=\s*(?:async\s*)?\((?P<params>[^)]*)\)\s*(?::[^=]+)?=>`)},
	}

	return &patternLanguage{
		name:        name,
		extensions:  exts,
		block:       braceBlocks,
		rules:       rules,
		lineComment: "//",
		quotes:      "\"'`",
		visibility:  scriptVisibility,
		paramName:   scriptParamName,
		finish:      applyScriptExports,
		reserved: wordSet("if", "for", "while", "switch", "catch", "return", "function", "do",
			"else", "new", "typeof", "await", "yield", "with", "super", "this"),
	}
}

func scriptVisibility(m ruleMatch) (exported, private bool) {
	private = strings.HasPrefix(m.name, "_") || strings.HasPrefix(m.name, "#")
	if m.member && !m.inNamespace {
		return false, private || jsMemberModsRe.MatchString(m.mods)
	}
	return m.export != "", private
}

func scriptParamName(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, mod := range []string{"public ", "private ", "protected ", "readonly ", "override "} {
		raw = strings.TrimPrefix(raw, mod)
	}
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "...")
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}
	if i := strings.IndexAny(raw, ":?="); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if raw == "this" {
		return ""
	}
	return raw
}

// applyScriptExports marks symbols named by export lists and CommonJS exports.
func applyScriptExports(text string, symbols []types.Symbol) {
	names := scriptExportNames(text)
	if len(names) == 0 {
		return
	}
	for i := range symbols {
		if symbols[i].Parent == "" && names[symbols[i].Name] {
			symbols[i].Exported = true
		}
	}
}

func scriptExportNames(text string) map[string]bool {
	names := make(map[string]bool)
	addList := func(list string) {
		for _, part := range strings.Split(list, ",") {
			fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(part), "type "))
			if len(fields) == 0 {
				continue
			}
			name := fields[0]
			if k := strings.Index(name, ":"); k >= 0 {
				name = name[:k]
			}
			names[name] = true
		}
	}

	for _, m := range jsExportListRe.FindAllStringSubmatch(text, -1) {
		addList(m[1])
	}
	for _, m := range cjsExportsObjRe.FindAllStringSubmatch(text, -1) {
		addList(m[1])
	}
	for _, line := range strings.Split(text, "\n") {
		if m := jsExportDefaultRe.FindStringSubmatch(line); m != nil {
			names[m[1]] = true
		}
		if m := cjsExportsOneRe.FindStringSubmatch(line); m != nil {
			names[m[1]] = true
		}
	}
	for _, m := range cjsExportsNameRe.FindAllStringSubmatch(text, -1) {
		names[m[1]] = true
	}
	return names
}

// grammarExtractor prefers a tree-sitter parse and falls back to line patterns
// when no grammar is compiled in or the tree contains syntax errors.
type grammarExtractor struct {
	*patternLanguage
}

func (g *grammarExtractor) Extract(path string, src []byte) (*Result, error) {
	imports := ScanImports(g.name, src)

	symbols, ok := grammarSymbols(grammarFor(g.name, path), g.patternLanguage, src)
	if ok {
		if g.finish != nil {
			g.finish(string(src), symbols)
		}
	} else {
		symbols = g.symbols(src)
	}

	return &Result{
		Symbols:      symbols,
		Dependencies: Specifiers(imports),
		Imports:      importNames(imports),
	}, nil
}

func grammarFor(language, path string) string {
	if language == "typescript" && strings.EqualFold(filepath.Ext(path), ".tsx") {
		return "tsx"
	}
	return language
}
