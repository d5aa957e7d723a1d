package parser

import (
	"regexp"
	"strings"

	"github.com/dshills/codectx/pkg/types"
)

// blockStyle selects how a pattern language delimits declaration bodies.
type blockStyle int

const (
	braceBlocks  blockStyle = iota // { ... }
	indentBlocks                   // Python-style indentation
	endBlocks                      // Ruby-style keyword ... end
)

// ruleScope restricts where a declaration rule may match.
type ruleScope int

const (
	anyScope    ruleScope = iota
	topScope              // file level only
	memberScope           // directly inside a container body only
	topOrMember           // file level, or directly inside a container body
)

// lineRule matches one declaration form. The regexp must define a "name"
// group and may define "params", "ret", "export" and "mods" groups.
type lineRule struct {
	kind  types.SymbolKind
	re    *regexp.Regexp
	scope ruleScope

	// container declarations open a body whose direct children are members.
	container bool
	// hidden containers (Rust impl blocks) scope members without being symbols.
	hidden bool
	// namespace containers hold plain declarations rather than methods.
	namespace bool
}

// patternLanguage is a keyword/pattern based extractor definition.
type patternLanguage struct {
	name        string
	extensions  []string
	block       blockStyle
	rules       []lineRule
	lineComment string
	// quotes lists the characters that open string literals.
	quotes string

	// visibility decides the exported and private flags for a match.
	visibility func(m ruleMatch) (exported, private bool)
	// paramName reduces one raw parameter to its name; "" drops it.
	paramName func(raw string) string
	// privateSection marks the rest of a container body as private (Ruby).
	privateSection *regexp.Regexp
	// finish adjusts symbols after the scan, e.g. applying export lists.
	finish func(text string, symbols []types.Symbol)

	reserved map[string]bool
}

// ruleMatch carries the captured groups of a matched rule.
type ruleMatch struct {
	name        string
	params      string
	ret         string
	export      string
	mods        string
	member      bool
	inNamespace bool
	inPrivate   bool
}

type scope struct {
	name      string
	namespace bool
	depth     int // brace/end: body depth; indent: header indentation
	opens     int // line that opens the body
	member    int // indent: indentation of the first body line, -1 until seen
	isPrivate bool
}

func (l *patternLanguage) Language() string     { return l.name }
func (l *patternLanguage) Extensions() []string { return l.extensions }

// Extract scans src line by line.
func (l *patternLanguage) Extract(_ string, src []byte) (*Result, error) {
	imports := ScanImports(l.name, src)
	res := &Result{
		Symbols:      l.symbols(src),
		Dependencies: Specifiers(imports),
		Imports:      importNames(imports),
	}
	return res, nil
}

func (l *patternLanguage) symbols(src []byte) []types.Symbol {
	text := string(src)
	lines := strings.Split(text, "\n")
	lex := lexLines(lines, l.quotes, l.lineComment, l.block)

	var (
		symbols []types.Symbol
		scopes  []scope
	)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || lex[i].startsInString || strings.HasPrefix(trimmed, l.lineComment) ||
			strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		indent := indentWidth(line)

		// Close scopes this line is no longer inside.
		for len(scopes) > 0 {
			top := scopes[len(scopes)-1]
			if l.block == indentBlocks {
				if indent > top.depth {
					break
				}
			} else if lex[i].depth >= top.depth || i <= top.opens {
				break
			}
			scopes = scopes[:len(scopes)-1]
		}

		var top *scope
		if len(scopes) > 0 {
			top = &scopes[len(scopes)-1]
		}

		atTop, atMember := false, false
		switch l.block {
		case indentBlocks:
			atTop = indent == 0
			if top != nil {
				if top.member < 0 {
					top.member = indent
				}
				atMember = indent == top.member
			}
		default:
			atTop = lex[i].depth == 0
			atMember = top != nil && lex[i].depth == top.depth
		}

		if top != nil && atMember && l.privateSection != nil && l.privateSection.MatchString(line) {
			top.isPrivate = true
			continue
		}

		stmtEnd := statementEnd(lines, lex, i)
		stmt := joinLines(lines[i : stmtEnd+1])

		for _, rule := range l.rules {
			if !scopeAllows(rule.scope, atTop, atMember) {
				continue
			}
			if rule.scope == memberScope && top.namespace {
				continue
			}
			m := rule.re.FindStringSubmatch(stmt)
			if m == nil {
				continue
			}
			rm := ruleMatch{
				name:      group(rule.re, m, "name"),
				params:    group(rule.re, m, "params"),
				ret:       strings.TrimSpace(group(rule.re, m, "ret")),
				export:    group(rule.re, m, "export"),
				mods:      group(rule.re, m, "mods"),
				member:    atMember && !atTop,
				inPrivate: top != nil && top.isPrivate && atMember,
			}
			rm.inNamespace = rm.member && top.namespace
			if rm.name == "" || l.reserved[rm.name] || l.reserved[rm.ret] {
				continue
			}

			end := l.blockEnd(lines, lex, i, stmtEnd, rule.kind)

			if rule.container {
				body := lex[i].depth + 1
				if l.block == indentBlocks {
					body = indent
				}
				opens := i
				for opens < end && lex[opens].maxDepth <= lex[i].depth {
					opens++
				}
				if end > i || l.block == indentBlocks {
					scopes = append(scopes, scope{name: rm.name, namespace: rule.namespace, depth: body, opens: opens, member: -1})
				}
			}
			if rule.hidden {
				break
			}

			sym := types.Symbol{
				Name:       rm.name,
				Kind:       rule.kind,
				Start:      types.Position{Line: i + 1, Column: indent + 1},
				End:        types.Position{Line: end + 1, Column: max(len(strings.TrimRight(lines[end], " \t\r")), 1)},
				ReturnType: strings.TrimSuffix(strings.TrimSpace(strings.TrimSuffix(rm.ret, "{")), ":"),
			}
			if rm.member {
				sym.Parent = top.name
				if rule.kind == types.KindFunction && !top.namespace {
					sym.Kind = types.KindMethod
				}
			}
			if rm.params != "" && l.paramName != nil {
				for _, raw := range splitTopLevel(rm.params) {
					if p := l.paramName(raw); p != "" {
						sym.Params = append(sym.Params, p)
					}
				}
			}
			sym.Exported, sym.Private = l.visibility(rm)
			if l.block == indentBlocks {
				sym.Doc = docstringAfter(lines, stmtEnd)
			} else {
				sym.Doc = docAbove(lines, i, l.lineComment)
			}

			symbols = append(symbols, sym)
			break
		}
	}

	if l.finish != nil {
		l.finish(text, symbols)
	}
	return symbols
}

func scopeAllows(s ruleScope, atTop, atMember bool) bool {
	switch s {
	case topScope:
		return atTop
	case memberScope:
		return atMember && !atTop
	case topOrMember:
		return atTop || atMember
	default:
		return true
	}
}

func group(re *regexp.Regexp, m []string, name string) string {
	if i := re.SubexpIndex(name); i > 0 && i < len(m) {
		return m[i]
	}
	return ""
}

// blockEnd returns the index of the last line of the declaration starting at line i.
func (l *patternLanguage) blockEnd(lines []string, lex []lineLex, i, stmtEnd int, kind types.SymbolKind) int {
	if l.block == indentBlocks {
		if kind == types.KindVariable {
			return stmtEnd
		}
		return indentEnd(lines, lex, i, stmtEnd)
	}

	base := lex[i].depth
	limit := stmtEnd
	// Allow a body brace on its own line after the header.
	for n := stmtEnd + 1; n < len(lines); n++ {
		if t := strings.TrimSpace(lines[n]); t != "" {
			if strings.HasPrefix(t, "{") {
				limit = n
			}
			break
		}
	}

	opened := false
	for j := i; j < len(lines); j++ {
		if lex[j].maxDepth > base {
			opened = true
		}
		if opened && lex[j].endDepth <= base {
			return j
		}
		if !opened && j >= limit {
			return stmtEnd
		}
	}
	return len(lines) - 1
}

// indentEnd finds the last non-blank line indented deeper than line i.
func indentEnd(lines []string, lex []lineLex, i, stmtEnd int) int {
	base := indentWidth(lines[i])
	end := stmtEnd
	for j := stmtEnd + 1; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" {
			continue
		}
		if !lex[j].startsInString && indentWidth(lines[j]) <= base {
			break
		}
		end = j
	}
	return end
}

// statementEnd extends line i over following lines while brackets stay open
// or the line ends with a continuation token.
func statementEnd(lines []string, lex []lineLex, i int) int {
	const maxSignatureLines = 12
	base := lex[i].parens
	for j := i; j < len(lines) && j < i+maxSignatureLines; j++ {
		if lex[j].endParens <= base && !continues(lines[j]) {
			return j
		}
	}
	return i
}

func continues(line string) bool {
	t := strings.TrimSpace(line)
	for _, suffix := range []string{",", "(", "=", "=>", "&&", "||", "\\"} {
		if strings.HasSuffix(t, suffix) {
			return true
		}
	}
	return false
}

func joinLines(lines []string) string {
	if len(lines) == 1 {
		return lines[0]
	}
	var b strings.Builder
	for k, line := range lines {
		if k > 0 {
			b.WriteByte(' ')
			line = strings.TrimSpace(line)
		}
		b.WriteString(line)
	}
	return b.String()
}

func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

// splitTopLevel splits a parameter list on commas outside nested brackets.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// docAbove collects the comment block directly above line i.
func docAbove(lines []string, i int, lineComment string) string {
	var doc []string
	inBlock := false
	for j := i - 1; j >= 0; j-- {
		t := strings.TrimSpace(lines[j])
		switch {
		case strings.HasPrefix(t, "@") && !inBlock:
			continue // decorators and annotations
		case strings.HasSuffix(t, "*/") && !inBlock:
			inBlock = true
			if strings.HasPrefix(t, "/*") {
				doc = append(doc, cleanComment(t))
				inBlock = false
				continue
			}
			doc = append(doc, cleanComment(t))
		case inBlock:
			doc = append(doc, cleanComment(t))
			if strings.HasPrefix(t, "/*") {
				inBlock = false
			}
		case lineComment != "" && strings.HasPrefix(t, lineComment):
			doc = append(doc, cleanComment(t))
		default:
			return reverseJoin(doc)
		}
	}
	return reverseJoin(doc)
}

func cleanComment(t string) string {
	for _, p := range []string{"/**", "/*", "///", "//", "#"} {
		t = strings.TrimPrefix(t, p)
	}
	t = strings.TrimSuffix(t, "*/")
	t = strings.TrimPrefix(strings.TrimSpace(t), "*")
	return strings.TrimSpace(t)
}

func reverseJoin(doc []string) string {
	var kept []string
	for k := len(doc) - 1; k >= 0; k-- {
		if doc[k] != "" {
			kept = append(kept, doc[k])
		}
	}
	return strings.Join(kept, "\n")
}

// docstringAfter returns a Python docstring opening on the line after stmtEnd.
func docstringAfter(lines []string, stmtEnd int) string {
	for j := stmtEnd + 1; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" {
			continue
		}
		for _, q := range []string{`"""`, `'''`} {
			if !strings.HasPrefix(t, q) {
				continue
			}
			body := strings.TrimPrefix(t, q)
			if k := strings.Index(body, q); k >= 0 {
				return strings.TrimSpace(body[:k])
			}
			parts := []string{strings.TrimSpace(body)}
			for k := j + 1; k < len(lines); k++ {
				lt := strings.TrimSpace(lines[k])
				if idx := strings.Index(lt, q); idx >= 0 {
					parts = append(parts, strings.TrimSpace(lt[:idx]))
					return strings.TrimSpace(strings.Join(parts, "\n"))
				}
				parts = append(parts, lt)
			}
			return strings.TrimSpace(strings.Join(parts, "\n"))
		}
		return ""
	}
	return ""
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
