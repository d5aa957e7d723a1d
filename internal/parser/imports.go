package parser

import (
	"regexp"
	"strings"
)

// Import is one dependency specifier with the names it brings into scope.
type Import struct {
	Specifier string
	Names     []string
}

var (
	jsFromRe     = regexp.MustCompile(`(?s)\b(import|export)\s+(type\s+)?([^'";]*?)\s*from\s*['"]([^'"\n]+)['"]`)
	jsBareRe     = regexp.MustCompile(`(?m)^\s*import\s*['"]([^'"\n]+)['"]`)
	jsRequireRe  = regexp.MustCompile(`\brequire\(\s*['"]([^'"\n]+)['"]\s*\)`)
	jsDynamicRe  = regexp.MustCompile(`\bimport\(\s*['"]([^'"\n]+)['"]\s*\)`)
	jsRequireVar = regexp.MustCompile(`(?:const|let|var)\s+(\{[^}]*\}|\w+)\s*=\s*require\(\s*['"]([^'"\n]+)['"]`)

	pyImportRe = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([\w.]+(?:[ \t]+as[ \t]+\w+)?(?:[ \t]*,[ \t]*[\w.]+(?:[ \t]+as[ \t]+\w+)?)*)`)
	pyFromRe   = regexp.MustCompile(`(?m)^[ \t]*from[ \t]+(\.*[\w.]*)[ \t]+import[ \t]+(\([^)]*\)|[^\n#]+)`)

	goBlockRe  = regexp.MustCompile(`(?s)\bimport\s*\(([^)]*)\)`)
	goSingleRe = regexp.MustCompile(`(?m)^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	goSpecRe   = regexp.MustCompile(`"([^"]+)"`)

	javaImportRe = regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`)
	csUsingRe    = regexp.MustCompile(`(?m)^\s*using\s+(?:static\s+)?(?:\w+\s*=\s*)?([\w.]+)\s*;`)
	rustUseRe    = regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+([^;]+);`)
	rustModRe    = regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+(\w+)\s*;`)
	rubyReqRe    = regexp.MustCompile(`(?m)^\s*(require|require_relative|load)\s*\(?\s*['"]([^'"]+)['"]`)
)

// ScanImports extracts dependency specifiers from src without a full parse.
// Specifiers are returned verbatim except where a language marks relative
// imports with a keyword instead of a path prefix (Ruby require_relative,
// Rust mod declarations), which are normalised to "./name".
func ScanImports(language string, src []byte) []Import {
	text := string(src)
	var imports []Import

	switch language {
	case "typescript", "javascript":
		imports = scanJSImports(text)
	case "python":
		imports = scanPythonImports(text)
	case "go":
		imports = scanGoImports(text)
	case "java":
		for _, m := range javaImportRe.FindAllStringSubmatch(text, -1) {
			imports = append(imports, Import{Specifier: m[1]})
		}
	case "csharp":
		for _, m := range csUsingRe.FindAllStringSubmatch(text, -1) {
			imports = append(imports, Import{Specifier: m[1]})
		}
	case "rust":
		for _, m := range rustModRe.FindAllStringSubmatch(text, -1) {
			imports = append(imports, Import{Specifier: "./" + m[1]})
		}
		for _, m := range rustUseRe.FindAllStringSubmatch(text, -1) {
			imports = append(imports, Import{Specifier: strings.Join(strings.Fields(m[1]), "")})
		}
	case "ruby":
		for _, m := range rubyReqRe.FindAllStringSubmatch(text, -1) {
			spec := m[2]
			if m[1] == "require_relative" && !strings.HasPrefix(spec, ".") {
				spec = "./" + spec
			}
			imports = append(imports, Import{Specifier: spec})
		}
	}

	return mergeImports(imports)
}

func scanJSImports(text string) []Import {
	var imports []Import
	for _, m := range jsFromRe.FindAllStringSubmatch(text, -1) {
		imports = append(imports, Import{Specifier: m[4], Names: jsClauseNames(m[3])})
	}
	for _, m := range jsBareRe.FindAllStringSubmatch(text, -1) {
		imports = append(imports, Import{Specifier: m[1]})
	}
	for _, m := range jsRequireVar.FindAllStringSubmatch(text, -1) {
		imports = append(imports, Import{Specifier: m[2], Names: jsClauseNames(m[1])})
	}
	for _, m := range jsRequireRe.FindAllStringSubmatch(text, -1) {
		imports = append(imports, Import{Specifier: m[1]})
	}
	for _, m := range jsDynamicRe.FindAllStringSubmatch(text, -1) {
		imports = append(imports, Import{Specifier: m[1]})
	}
	return imports
}

// jsClauseNames returns the original (pre-alias) names of an import clause such
// as `Default, { a, b as c }` or `* as ns`.
func jsClauseNames(clause string) []string {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return nil
	}

	var names []string
	if open := strings.Index(clause, "{"); open >= 0 {
		end := strings.LastIndex(clause, "}")
		if end < open {
			end = len(clause)
		}
		for _, part := range strings.Split(clause[open+1:end], ",") {
			part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "type "))
			if part == "" {
				continue
			}
			names = append(names, strings.Fields(part)[0])
		}
		clause = clause[:open]
	}

	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "*"):
			names = append(names, "*")
		default:
			names = append(names, "default")
		}
	}
	return names
}

func scanPythonImports(text string) []Import {
	var imports []Import
	for _, m := range pyFromRe.FindAllStringSubmatch(text, -1) {
		list := strings.Trim(strings.TrimSpace(m[2]), "()")
		var names []string
		for _, part := range strings.Split(list, ",") {
			fields := strings.Fields(part)
			if len(fields) > 0 {
				names = append(names, fields[0])
			}
		}
		imports = append(imports, Import{Specifier: m[1], Names: names})
	}
	for _, m := range pyImportRe.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			fields := strings.Fields(part)
			if len(fields) > 0 {
				imports = append(imports, Import{Specifier: fields[0]})
			}
		}
	}
	return imports
}

func scanGoImports(text string) []Import {
	var imports []Import
	for _, m := range goBlockRe.FindAllStringSubmatch(text, -1) {
		for _, s := range goSpecRe.FindAllStringSubmatch(m[1], -1) {
			imports = append(imports, Import{Specifier: s[1]})
		}
	}
	for _, m := range goSingleRe.FindAllStringSubmatch(text, -1) {
		imports = append(imports, Import{Specifier: m[1]})
	}
	return imports
}

// mergeImports drops duplicate specifiers, keeping first-appearance order and
// the union of imported names.
func mergeImports(in []Import) []Import {
	if len(in) == 0 {
		return nil
	}
	index := make(map[string]int, len(in))
	out := make([]Import, 0, len(in))
	for _, imp := range in {
		if imp.Specifier == "" {
			continue
		}
		i, seen := index[imp.Specifier]
		if !seen {
			index[imp.Specifier] = len(out)
			out = append(out, Import{Specifier: imp.Specifier, Names: appendUnique(nil, imp.Names...)})
			continue
		}
		out[i].Names = appendUnique(out[i].Names, imp.Names...)
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

// Specifiers returns the specifier strings of imports.
func Specifiers(imports []Import) []string {
	if len(imports) == 0 {
		return nil
	}
	out := make([]string, len(imports))
	for i, imp := range imports {
		out[i] = imp.Specifier
	}
	return out
}

func importNames(imports []Import) map[string][]string {
	var out map[string][]string
	for _, imp := range imports {
		if len(imp.Names) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]string)
		}
		out[imp.Specifier] = imp.Names
	}
	return out
}

// IsRelative reports whether a specifier refers to a local file rather than an
// external package. "./x", "../x" and Python's ".x" / "..x" all qualify.
func IsRelative(spec string) bool {
	return strings.HasPrefix(spec, ".")
}
