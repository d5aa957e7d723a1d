package parser

import (
	"regexp"
	"strings"
)

// lineLex records bracket state for one source line.
type lineLex struct {
	depth          int // block depth at line start
	maxDepth       int // deepest block depth reached on the line
	endDepth       int // block depth after the line
	parens         int // ( and [ depth at line start
	endParens      int
	startsInString bool // line begins inside a multi-line string or block comment
}

var (
	rubyOpenerRe = regexp.MustCompile(`^\s*(class|module|def|if|unless|while|until|case|begin|for)\b`)
	rubyDoRe     = regexp.MustCompile(`\bdo\s*(\|[^|]*\|)?\s*$`)
	rubyEndRe    = regexp.MustCompile(`\bend\b`)
	rubyEndless  = regexp.MustCompile(`^\s*def\s+[\w.?!]+(\([^)]*\))?\s*=[^=]`)
)

// lexLines tracks bracket depth across lines, ignoring brackets inside string
// literals and comments. quotes lists the string delimiters of the language.
func lexLines(lines []string, quotes, lineComment string, style blockStyle) []lineLex {
	out := make([]lineLex, len(lines))

	var (
		depth, parens int
		inString      string // active delimiter, "" when outside
		inBlock       bool   // inside /* */
	)

	for i, line := range lines {
		ll := lineLex{depth: depth, maxDepth: depth, parens: parens, startsInString: inString != "" || inBlock}
		var code strings.Builder

		for k := 0; k < len(line); k++ {
			c := line[k]
			rest := line[k:]

			switch {
			case inBlock:
				if strings.HasPrefix(rest, "*/") {
					inBlock = false
					k++
				}
				continue
			case inString != "":
				if c == '\\' {
					k++
					continue
				}
				if strings.HasPrefix(rest, inString) {
					k += len(inString) - 1
					inString = ""
				}
				continue
			}

			if lineComment != "" && strings.HasPrefix(rest, lineComment) {
				break
			}
			if style == braceBlocks && strings.HasPrefix(rest, "/*") {
				inBlock = true
				k++
				continue
			}
			if strings.IndexByte(quotes, c) >= 0 {
				delim := string(c)
				if len(rest) >= 3 && rest[1] == c && rest[2] == c && (c == '"' || c == '\'') {
					delim = rest[:3]
				}
				inString = delim
				k += len(delim) - 1
				continue
			}

			code.WriteByte(c)
			switch c {
			case '{':
				if style == braceBlocks {
					depth++
					ll.maxDepth = max(ll.maxDepth, depth)
				}
			case '}':
				if style == braceBlocks && depth > 0 {
					depth--
				}
			case '(', '[':
				parens++
			case ')', ']':
				if parens > 0 {
					parens--
				}
			}
		}

		// Single-character quotes do not span lines, except JS template literals.
		if len(inString) == 1 && inString != "`" {
			inString = ""
		}

		if style == endBlocks {
			text := code.String()
			opens := 0
			if rubyOpenerRe.MatchString(text) && !rubyEndless.MatchString(text) {
				opens++
			}
			if rubyDoRe.MatchString(text) {
				opens++
			}
			closes := len(rubyEndRe.FindAllStringIndex(text, -1))
			ll.maxDepth = depth + opens
			depth = max(depth+opens-closes, 0)
		}

		ll.endDepth = depth
		ll.endParens = parens
		out[i] = ll
	}
	return out
}
