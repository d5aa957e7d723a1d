//go:build cgo

package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codectx/pkg/types"
)

// declWalker extracts declarations from Java, C#, Rust and Ruby trees. It
// reuses the language's pattern rules for visibility and parameter names so
// both paths agree on the resulting symbols.
type declWalker struct {
	*treeWalker
	lang *patternLanguage
}

// owner is the declaration enclosing the nodes being walked.
type owner struct {
	name      string
	namespace bool
}

// declare adds a symbol for n. Functions declared inside a type become its
// methods; inside a namespace they stay functions.
func (d *declWalker) declare(name string, kind types.SymbolKind, n *sitter.Node, in owner, rm ruleMatch) *types.Symbol {
	if name == "" {
		return nil
	}
	sym := d.add(name, kind, n)
	if in.name != "" {
		sym.Parent = in.name
		if kind == types.KindFunction && !in.namespace {
			sym.Kind = types.KindMethod
		}
	}
	rm.name = name
	rm.member = in.name != ""
	rm.inNamespace = in.namespace
	sym.Exported, sym.Private = d.lang.visibility(rm)
	return sym
}

func (d *declWalker) fieldText(n *sitter.Node, field string) string {
	return d.text(n.ChildByFieldName(field))
}

// signature fills parameter names and the first return type field present.
func (d *declWalker) signature(sym *types.Symbol, n *sitter.Node, retFields ...string) {
	if sym == nil {
		return
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch {
			case strings.HasSuffix(p.Type(), "comment"), p.Type() == "attribute_item", p.Type() == "receiver_parameter":
				continue
			}
			if name := d.lang.paramName(d.text(p)); name != "" {
				sym.Params = append(sym.Params, name)
			}
		}
	}
	for _, f := range retFields {
		if ret := n.ChildByFieldName(f); ret != nil {
			sym.ReturnType = strings.TrimSpace(d.text(ret))
			return
		}
	}
}

// modifiers joins the modifier keywords of a Java or C# declaration.
func (d *declWalker) modifiers(n *sitter.Node) string {
	var mods []string
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch {
		case c.Type() == "modifiers", c.Type() == "modifier":
			mods = append(mods, d.text(c))
		case !c.IsNamed() && modifierWords.MatchString(c.Type()):
			mods = append(mods, c.Type())
		}
	}
	return strings.Join(mods, " ")
}

var javaTypeKinds = map[string]types.SymbolKind{
	"class_declaration":           types.KindClass,
	"record_declaration":          types.KindClass,
	"interface_declaration":       types.KindInterface,
	"annotation_type_declaration": types.KindInterface,
	"enum_declaration":            types.KindEnum,
}

func (d *declWalker) javaMembers(parent *sitter.Node, in owner) {
	if parent == nil {
		return
	}
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		rm := ruleMatch{mods: d.modifiers(n)}

		if kind, ok := javaTypeKinds[n.Type()]; ok {
			name := d.fieldText(n, "name")
			if d.declare(name, kind, n, in, rm) != nil {
				d.javaMembers(n.ChildByFieldName("body"), owner{name: name})
			}
			continue
		}

		switch n.Type() {
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			sym := d.declare(d.fieldText(n, "name"), types.KindFunction, n, in, rm)
			d.signature(sym, n, "type")
		case "enum_body_declarations":
			d.javaMembers(n, in)
		}
	}
}

var csharpTypeKinds = map[string]types.SymbolKind{
	"class_declaration":         types.KindClass,
	"struct_declaration":        types.KindClass,
	"record_declaration":        types.KindClass,
	"record_struct_declaration": types.KindClass,
	"interface_declaration":     types.KindInterface,
	"enum_declaration":          types.KindEnum,
}

func (d *declWalker) csharpMembers(parent *sitter.Node, in owner) {
	if parent == nil {
		return
	}
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		rm := ruleMatch{mods: d.modifiers(n)}

		if kind, ok := csharpTypeKinds[n.Type()]; ok {
			name := d.fieldText(n, "name")
			if d.declare(name, kind, n, in, rm) != nil && kind != types.KindEnum {
				d.csharpMembers(n.ChildByFieldName("body"), owner{name: name})
			}
			continue
		}

		switch n.Type() {
		case "namespace_declaration", "file_scoped_namespace_declaration":
			name := d.fieldText(n, "name")
			if d.declare(name, types.KindNamespace, n, in, rm) == nil {
				continue
			}
			body := n.ChildByFieldName("body")
			if body == nil {
				// file-scoped: members are children of the declaration
				body = n
			}
			d.csharpMembers(body, owner{name: name, namespace: true})
		case "method_declaration", "constructor_declaration":
			sym := d.declare(d.fieldText(n, "name"), types.KindFunction, n, in, rm)
			d.signature(sym, n, "returns", "type")
		}
	}
}

func (d *declWalker) rustItems(parent *sitter.Node, in owner) {
	if parent == nil {
		return
	}
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		var rm ruleMatch
		for k := 0; k < int(n.NamedChildCount()); k++ {
			if c := n.NamedChild(k); c.Type() == "visibility_modifier" {
				rm.export = d.text(c)
				break
			}
		}
		name := d.fieldText(n, "name")

		switch n.Type() {
		case "function_item", "function_signature_item":
			sym := d.declare(name, types.KindFunction, n, in, rm)
			d.signature(sym, n, "return_type")
		case "struct_item", "union_item":
			d.declare(name, types.KindClass, n, in, rm)
		case "enum_item":
			d.declare(name, types.KindEnum, n, in, rm)
		case "type_item":
			d.declare(name, types.KindType, n, in, rm)
		case "const_item", "static_item":
			d.declare(name, types.KindVariable, n, in, rm)
		case "trait_item":
			if d.declare(name, types.KindInterface, n, in, rm) != nil {
				d.rustItems(n.ChildByFieldName("body"), owner{name: name})
			}
		case "impl_item":
			if target := d.rustTypeName(n.ChildByFieldName("type")); target != "" {
				d.rustItems(n.ChildByFieldName("body"), owner{name: target})
			}
		case "mod_item":
			body := n.ChildByFieldName("body")
			if body != nil && d.declare(name, types.KindNamespace, n, in, rm) != nil {
				d.rustItems(body, owner{name: name, namespace: true})
			}
		}
	}
}

// rustTypeName strips paths and generic arguments from an impl target.
func (d *declWalker) rustTypeName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "generic_type":
		return d.rustTypeName(n.ChildByFieldName("type"))
	case "scoped_type_identifier":
		return d.fieldText(n, "name")
	}
	return d.text(n)
}

func (d *declWalker) rubyBody(parent *sitter.Node, in owner) {
	if parent == nil {
		return
	}
	private := false
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		rm := ruleMatch{inPrivate: private && in.name != ""}

		switch n.Type() {
		case "identifier":
			switch d.text(n) {
			case "private", "protected":
				private = true
			case "public":
				private = false
			}
		case "class", "module":
			kind := types.KindClass
			if n.Type() == "module" {
				kind = types.KindNamespace
			}
			name := d.fieldText(n, "name")
			if d.declare(name, kind, n, in, rm) == nil {
				continue
			}
			body := n.ChildByFieldName("body")
			if body == nil {
				body = n
			}
			d.rubyBody(body, owner{name: name})
		case "method", "singleton_method":
			sym := d.declare(d.fieldText(n, "name"), types.KindFunction, n, in, rm)
			d.signature(sym, n)
		case "assignment":
			if left := n.ChildByFieldName("left"); left != nil && left.Type() == "constant" {
				d.declare(d.text(left), types.KindVariable, n, in, rm)
			}
		}
	}
}
