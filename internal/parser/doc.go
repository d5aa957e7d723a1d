// Package parser extracts declared symbols and dependency specifiers from
// source files in several languages.
//
// Each language is an Extractor registered from an init function; adding a
// language means registering a new implementation, not editing a switch:
//
//	p := parser.New(logger)
//	res := p.Parse("src/app.ts", content, "")
//	for _, sym := range res.Symbols {
//	    fmt.Printf("%s %s exported=%v\n", sym.Kind, sym.Name, sym.Exported)
//	}
//
// # Languages
//
//   - Go: go/ast.
//   - TypeScript, JavaScript, Python: tree-sitter grammars when built with cgo,
//     line patterns otherwise or when the grammar reports syntax errors.
//   - Java, C#, Rust, Ruby: line patterns.
//
// Visibility follows the language: an export keyword or modifier where one
// exists, otherwise a naming rule (leading upper case in Go, leading
// underscore for private-by-convention names).
//
// # Failure isolation
//
// Parser.Parse never returns an error. When an extractor fails or panics the
// symbol list is empty, a warning is logged, and dependencies come from
// ScanImports alone.
//
// # Dependencies
//
// Specifiers are reported verbatim ("./util", "..models", "fmt"). Resolving
// them to files is the dependency graph's job.
package parser
