//go:build cgo

package parser

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/dshills/codectx/pkg/types"
)

// GrammarsAvailable reports whether tree-sitter grammars are compiled in.
const GrammarsAvailable = true

var grammars = map[string]*sitter.Language{
	"typescript": typescript.GetLanguage(),
	"tsx":        tsx.GetLanguage(),
	"javascript": javascript.GetLanguage(),
	"python":     python.GetLanguage(),
	"java":       java.GetLanguage(),
	"csharp":     csharp.GetLanguage(),
	"rust":       rust.GetLanguage(),
	"ruby":       ruby.GetLanguage(),
}

// Parsers are not safe for concurrent use; keep one pool per grammar.
var parserPools sync.Map // grammar -> *sync.Pool

func acquireParser(grammar string) (*sitter.Parser, func(), bool) {
	lang, ok := grammars[grammar]
	if !ok {
		return nil, nil, false
	}
	v, _ := parserPools.LoadOrStore(grammar, &sync.Pool{New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(lang)
		return p
	}})
	pool := v.(*sync.Pool)
	p := pool.Get().(*sitter.Parser)
	return p, func() { pool.Put(p) }, true
}

// grammarSymbols parses src with the named grammar. ok is false when the
// grammar is unknown or the tree contains syntax errors. lang supplies the
// visibility and parameter rules shared with the line patterns.
func grammarSymbols(grammar string, lang *patternLanguage, src []byte) ([]types.Symbol, bool) {
	p, release, ok := acquireParser(grammar)
	if !ok {
		return nil, false
	}
	defer release()

	tree, err := p.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, false
	}

	w := &treeWalker{src: src}
	d := &declWalker{treeWalker: w, lang: lang}
	switch grammar {
	case "python":
		w.pythonBlock(root, "")
	case "java":
		d.javaMembers(root, owner{})
	case "csharp":
		d.csharpMembers(root, owner{})
	case "rust":
		d.rustItems(root, owner{})
	case "ruby":
		d.rubyBody(root, owner{})
	default:
		w.scriptStatements(root, "")
	}
	return w.symbols, true
}

type treeWalker struct {
	src     []byte
	symbols []types.Symbol
}

func (w *treeWalker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *treeWalker) add(name string, kind types.SymbolKind, span *sitter.Node) *types.Symbol {
	start, end := span.StartPoint(), span.EndPoint()
	w.symbols = append(w.symbols, types.Symbol{
		Name:  name,
		Kind:  kind,
		Start: types.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
		End:   types.Position{Line: int(end.Row) + 1, Column: max(int(end.Column), 1)},
		Doc:   w.commentAbove(span),
	})
	return &w.symbols[len(w.symbols)-1]
}

// commentAbove joins comment siblings that end on the lines directly above n.
// Rust attributes between the comment and the item are skipped.
func (w *treeWalker) commentAbove(n *sitter.Node) string {
	var doc []string
	line := n.StartPoint().Row
	for prev := n.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if lastRow(prev)+1 != line {
			break
		}
		if prev.Type() == "attribute_item" {
			line = prev.StartPoint().Row
			continue
		}
		if !strings.HasSuffix(prev.Type(), "comment") {
			break
		}
		lines := strings.Split(w.text(prev), "\n")
		for k := len(lines) - 1; k >= 0; k-- {
			if c := cleanComment(strings.TrimSpace(lines[k])); c != "" {
				doc = append(doc, c)
			}
		}
		line = prev.StartPoint().Row
	}
	return reverseJoin(doc)
}

// lastRow is the row holding the last character of n. Line comments that
// swallow their newline end at column 0 of the following row.
func lastRow(n *sitter.Node) uint32 {
	end := n.EndPoint()
	if end.Column == 0 && end.Row > n.StartPoint().Row {
		return end.Row - 1
	}
	return end.Row
}

// scriptStatements walks TypeScript/JavaScript statements. ns is the
// enclosing namespace, if any.
func (w *treeWalker) scriptStatements(parent *sitter.Node, ns string) {
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		w.scriptStatement(parent.NamedChild(i), parent.NamedChild(i), ns, false)
	}
}

func (w *treeWalker) scriptStatement(n, span *sitter.Node, ns string, exported bool) {
	var sym *types.Symbol

	switch n.Type() {
	case "export_statement":
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			w.scriptStatement(decl, n, ns, true)
		}
		return
	case "ambient_declaration", "expression_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.scriptStatement(n.NamedChild(i), span, ns, exported)
		}
		return
	case "function_declaration", "generator_function_declaration", "function_signature":
		sym = w.add(w.text(n.ChildByFieldName("name")), types.KindFunction, span)
		w.scriptSignature(sym, n)
	case "class_declaration", "abstract_class_declaration":
		name := w.text(n.ChildByFieldName("name"))
		sym = w.add(name, types.KindClass, span)
		w.setScriptVisibility(sym, exported)
		if ns != "" {
			sym.Parent = ns
		}
		w.scriptClassBody(n.ChildByFieldName("body"), name)
		return
	case "interface_declaration":
		sym = w.add(w.text(n.ChildByFieldName("name")), types.KindInterface, span)
	case "type_alias_declaration":
		sym = w.add(w.text(n.ChildByFieldName("name")), types.KindType, span)
	case "enum_declaration":
		sym = w.add(w.text(n.ChildByFieldName("name")), types.KindEnum, span)
	case "internal_module", "module":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() == "string" {
			return
		}
		name := w.text(nameNode)
		sym = w.add(name, types.KindNamespace, span)
		w.setScriptVisibility(sym, exported)
		if ns != "" {
			sym.Parent = ns
		}
		if body := n.ChildByFieldName("body"); body != nil {
			w.scriptStatements(body, name)
		}
		return
	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			decl := n.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			nameNode := decl.ChildByFieldName("name")
			if nameNode == nil || nameNode.Type() != "identifier" {
				continue
			}
			value := decl.ChildByFieldName("value")
			if value != nil && isScriptFunction(value) {
				s := w.add(w.text(nameNode), types.KindFunction, span)
				w.scriptSignature(s, value)
				w.setScriptVisibility(s, exported)
				s.Parent = ns
				continue
			}
			s := w.add(w.text(nameNode), types.KindVariable, span)
			w.setScriptVisibility(s, exported)
			s.Parent = ns
		}
		return
	default:
		return
	}

	w.setScriptVisibility(sym, exported)
	sym.Parent = ns
}

func isScriptFunction(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func (w *treeWalker) setScriptVisibility(sym *types.Symbol, exported bool) {
	sym.Exported = exported
	sym.Private = strings.HasPrefix(sym.Name, "_") || strings.HasPrefix(sym.Name, "#")
}

func (w *treeWalker) scriptSignature(sym *types.Symbol, fn *sitter.Node) {
	if params := fn.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			if p.Type() == "comment" {
				continue
			}
			if pattern := p.ChildByFieldName("pattern"); pattern != nil {
				p = pattern
			} else if left := p.ChildByFieldName("left"); left != nil {
				p = left
			}
			if name := scriptParamName(w.text(p)); name != "" {
				sym.Params = append(sym.Params, name)
			}
		}
	} else if param := fn.ChildByFieldName("parameter"); param != nil {
		sym.Params = append(sym.Params, w.text(param))
	}

	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		sym.ReturnType = strings.TrimSpace(strings.TrimPrefix(w.text(ret), ":"))
	}
}

func (w *treeWalker) scriptClassBody(body *sitter.Node, class string) {
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)

		var fn *sitter.Node
		switch member.Type() {
		case "method_definition":
			fn = member
		case "public_field_definition", "field_definition":
			value := member.ChildByFieldName("value")
			if value == nil || !isScriptFunction(value) {
				continue
			}
			fn = value
		default:
			continue
		}

		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = member.ChildByFieldName("property")
		}
		name := w.text(nameNode)
		if name == "" {
			continue
		}

		sym := w.add(name, types.KindMethod, member)
		sym.Parent = class
		w.scriptSignature(sym, fn)
		sym.Private = strings.HasPrefix(name, "_") || strings.HasPrefix(name, "#")
		for k := 0; k < int(member.NamedChildCount()); k++ {
			c := member.NamedChild(k)
			if c.Type() == "accessibility_modifier" && w.text(c) != "public" {
				sym.Private = true
			}
		}
	}
}

// pythonBlock walks module or class body statements. class is "" at module level.
func (w *treeWalker) pythonBlock(block *sitter.Node, class string) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		stmt := block.NamedChild(i)
		if stmt.Type() == "decorated_definition" {
			if def := stmt.ChildByFieldName("definition"); def != nil {
				stmt = def
			}
		}

		switch stmt.Type() {
		case "function_definition":
			kind := types.KindFunction
			if class != "" {
				kind = types.KindMethod
			}
			sym := w.add(w.text(stmt.ChildByFieldName("name")), kind, stmt)
			sym.Parent = class
			w.pythonSignature(sym, stmt)
		case "class_definition":
			name := w.text(stmt.ChildByFieldName("name"))
			sym := w.add(name, types.KindClass, stmt)
			sym.Parent = class
			sym.Private = pythonPrivate(name)
			sym.Exported = !sym.Private
			body := stmt.ChildByFieldName("body")
			sym.Doc = w.pythonDocstring(body)
			if body != nil {
				w.pythonBlock(body, name)
			}
		case "expression_statement":
			if class != "" || stmt.NamedChildCount() == 0 {
				continue
			}
			assign := stmt.NamedChild(0)
			if assign.Type() != "assignment" {
				continue
			}
			left := assign.ChildByFieldName("left")
			if left == nil || left.Type() != "identifier" {
				continue
			}
			sym := w.add(w.text(left), types.KindVariable, stmt)
			sym.ReturnType = w.text(assign.ChildByFieldName("type"))
			sym.Private = pythonPrivate(sym.Name)
			sym.Exported = !sym.Private
			sym.Doc = ""
		}
	}
}

func (w *treeWalker) pythonSignature(sym *types.Symbol, fn *sitter.Node) {
	if params := fn.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			if name := pythonParamName(w.text(params.NamedChild(i))); name != "" {
				sym.Params = append(sym.Params, name)
			}
		}
	}
	sym.ReturnType = w.text(fn.ChildByFieldName("return_type"))
	sym.Private = pythonPrivate(sym.Name)
	sym.Exported = !sym.Private
	sym.Doc = w.pythonDocstring(fn.ChildByFieldName("body"))
}

func (w *treeWalker) pythonDocstring(body *sitter.Node) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	text := strings.TrimLeft(w.text(str), "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			text = text[len(q) : len(text)-len(q)]
			break
		}
	}
	return strings.TrimSpace(text)
}
