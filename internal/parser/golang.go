package parser

import (
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/dshills/codectx/pkg/types"
)

func init() {
	Register(goExtractor{})
}

// goExtractor uses the standard library Go parser.
type goExtractor struct{}

func (goExtractor) Language() string     { return "go" }
func (goExtractor) Extensions() []string { return []string{".go"} }

// Extract parses Go source. Syntax errors fail the whole file; the Parser
// wrapper turns that into an empty symbol list.
func (goExtractor) Extract(path string, src []byte) (*Result, error) {
	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, path, src, goparser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}

	res := &Result{Package: file.Name.Name}

	var imports []Import
	for _, imp := range file.Imports {
		spec, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		imports = append(imports, Import{Specifier: spec})
	}
	imports = mergeImports(imports)
	res.Dependencies = Specifiers(imports)

	e := &goSymbols{fset: fset}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			e.funcDecl(d)
		case *ast.GenDecl:
			e.genDecl(d)
		}
	}
	res.Symbols = e.symbols
	return res, nil
}

type goSymbols struct {
	fset    *token.FileSet
	symbols []types.Symbol
}

func (e *goSymbols) newSymbol(name string, kind types.SymbolKind, start, end token.Pos, doc *ast.CommentGroup) types.Symbol {
	return types.Symbol{
		Name:     name,
		Kind:     kind,
		Start:    e.position(start),
		End:      e.position(end),
		Exported: token.IsExported(name),
		Private:  strings.HasPrefix(name, "_"),
		Doc:      docText(doc),
	}
}

// funcDecl extracts function and method declarations
func (e *goSymbols) funcDecl(fn *ast.FuncDecl) {
	sym := e.newSymbol(fn.Name.Name, types.KindFunction, fn.Pos(), fn.End(), fn.Doc)

	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		sym.Kind = types.KindMethod
		sym.Parent = receiverType(fn.Recv.List[0].Type)
	}

	if fn.Type.Params != nil {
		for _, field := range fn.Type.Params.List {
			for _, name := range field.Names {
				sym.Params = append(sym.Params, name.Name)
			}
		}
	}

	if fn.Type.Results != nil && len(fn.Type.Results.List) > 0 {
		results := fieldListString(fn.Type.Results)
		if fn.Type.Results.NumFields() > 1 || len(fn.Type.Results.List[0].Names) > 0 {
			results = "(" + results + ")"
		}
		sym.ReturnType = results
	}

	e.symbols = append(e.symbols, sym)
}

// genDecl extracts type, const, and var declarations
func (e *goSymbols) genDecl(gd *ast.GenDecl) {
	for _, spec := range gd.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			doc := s.Doc
			if doc == nil {
				doc = gd.Doc
			}
			kind := types.KindType
			switch s.Type.(type) {
			case *ast.StructType:
				kind = types.KindClass
			case *ast.InterfaceType:
				kind = types.KindInterface
			}
			e.symbols = append(e.symbols, e.newSymbol(s.Name.Name, kind, s.Pos(), s.End(), doc))

		case *ast.ValueSpec:
			doc := s.Doc
			if doc == nil {
				doc = gd.Doc
			}
			for _, name := range s.Names {
				if name.Name == "_" {
					continue
				}
				sym := e.newSymbol(name.Name, types.KindVariable, s.Pos(), s.End(), doc)
				if s.Type != nil {
					sym.ReturnType = exprString(s.Type)
				}
				e.symbols = append(e.symbols, sym)
			}
		}
	}
}

func (e *goSymbols) position(pos token.Pos) types.Position {
	p := e.fset.Position(pos)
	return types.Position{Line: p.Line, Column: p.Column}
}

func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func fieldListString(fl *ast.FieldList) string {
	var parts []string
	for _, field := range fl.List {
		typ := exprString(field.Type)
		if len(field.Names) == 0 {
			parts = append(parts, typ)
			continue
		}
		for _, name := range field.Names {
			parts = append(parts, name.Name+" "+typ)
		}
	}
	return strings.Join(parts, ", ")
}

func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case nil:
		return ""
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.ArrayType:
		if t.Len != nil {
			return "[...]" + exprString(t.Elt)
		}
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprString(t.Key), exprString(t.Value))
	case *ast.ChanType:
		return "chan " + exprString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.IndexExpr:
		return exprString(t.X) + "[" + exprString(t.Index) + "]"
	default:
		return "..."
	}
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}
