// Package pyimports parses Python source with tree-sitter and extracts
// its import declarations. Imports are reported at file granularity: a
// `from x import y` reduces to an import of x, and the individual names
// are not tracked.
package pyimports

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Import is one raw import declaration.
type Import struct {
	Module string // dotted module path, empty for a bare relative import
	Level  int    // count of leading dots; 0 means absolute
}

// DynamicImport records a runtime import call site. The module name is
// computed at runtime, so the call is detected but never resolved.
type DynamicImport struct {
	Call string // "__import__" or "importlib.import_module"
	Line int    // 1-based source line
}

// Parse extracts import declarations from Python source. A file that does
// not parse cleanly yields an error and no imports; the caller records a
// warning and continues with the rest of the project.
func Parse(ctx context.Context, src []byte) ([]Import, []DynamicImport, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing source: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil, errors.New("parser returned no syntax tree")
	}
	if root.HasError() {
		return nil, nil, errors.New("source contains syntax errors")
	}

	var imports []Import
	var dynamic []DynamicImport

	// Imports may appear inside functions and conditionals, so the whole
	// tree is walked, not just the module top level.
	iter := sitter.NewIterator(root, sitter.DFSMode)
	for {
		n, err := iter.Next()
		if err != nil || n == nil {
			break
		}

		switch n.Type() {
		case "import_statement":
			imports = append(imports, plainImports(n, src)...)
		case "import_from_statement":
			if imp, ok := fromImport(n, src); ok {
				imports = append(imports, imp)
			}
		case "call":
			if d, ok := dynamicCall(n, src); ok {
				dynamic = append(dynamic, d)
			}
		}
	}

	return imports, dynamic, nil
}

// plainImports handles `import a.b` and `import a.b as c`, yielding one
// Import per listed name.
func plainImports(node *sitter.Node, src []byte) []Import {
	var imports []Import

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			imports = append(imports, Import{Module: child.Content(src)})
		case "aliased_import":
			for j := 0; j < int(child.ChildCount()); j++ {
				if gc := child.Child(j); gc.Type() == "dotted_name" {
					imports = append(imports, Import{Module: gc.Content(src)})
					break
				}
			}
		}
	}

	return imports
}

// fromImport handles `from X import ...`. The first dotted_name child is
// the module path; imported names sit after the import keyword and are
// never reached.
func fromImport(node *sitter.Node, src []byte) (Import, bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			return Import{Module: child.Content(src)}, true
		case "relative_import":
			var imp Import
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "import_prefix":
					imp.Level = len(gc.Content(src))
				case "dotted_name":
					imp.Module = gc.Content(src)
				}
			}
			return imp, true
		}
	}
	return Import{}, false
}

// dynamicCall recognizes __import__(...) and importlib.import_module(...).
func dynamicCall(node *sitter.Node, src []byte) (DynamicImport, bool) {
	callee := node.Child(0)
	if callee == nil {
		return DynamicImport{}, false
	}

	line := int(node.StartPoint().Row) + 1

	switch callee.Type() {
	case "identifier":
		if callee.Content(src) == "__import__" {
			return DynamicImport{Call: "__import__", Line: line}, true
		}
	case "attribute":
		if callee.Content(src) == "importlib.import_module" {
			return DynamicImport{Call: "importlib.import_module", Line: line}, true
		}
	}

	return DynamicImport{}, false
}
