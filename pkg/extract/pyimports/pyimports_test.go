package pyimports

import (
	"context"
	"testing"
)

func parseSource(t *testing.T, src string) ([]Import, []DynamicImport) {
	t.Helper()
	imports, dynamic, err := Parse(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return imports, dynamic
}

func TestParsePlainImports(t *testing.T) {
	src := `import os
import mypkg.util
import a.b.c as abc
import json, mypkg.models
`
	imports, _ := parseSource(t, src)

	want := []Import{
		{Module: "os"},
		{Module: "mypkg.util"},
		{Module: "a.b.c"},
		{Module: "json"},
		{Module: "mypkg.models"},
	}
	if len(imports) != len(want) {
		t.Fatalf("got %d imports, want %d: %v", len(imports), len(want), imports)
	}
	for i, w := range want {
		if imports[i] != w {
			t.Errorf("imports[%d] = %+v, want %+v", i, imports[i], w)
		}
	}
}

func TestParseFromImports(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Import
	}{
		{"absolute", "from mypkg.util import helper\n", Import{Module: "mypkg.util"}},
		{"absolute multiple names", "from mypkg import a, b, c\n", Import{Module: "mypkg"}},
		{"aliased name", "from mypkg import helper as h\n", Import{Module: "mypkg"}},
		{"wildcard", "from mypkg.util import *\n", Import{Module: "mypkg.util"}},
		{"relative sibling", "from .sibling import thing\n", Import{Module: "sibling", Level: 1}},
		{"relative parent module", "from ..models import user\n", Import{Module: "models", Level: 2}},
		{"relative dotted suffix", "from ..pkg.mod import x\n", Import{Module: "pkg.mod", Level: 2}},
		{"bare package", "from . import sibling\n", Import{Level: 1}},
		{"bare grandparent", "from .. import helpers\n", Import{Level: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imports, _ := parseSource(t, tt.src)
			if len(imports) != 1 {
				t.Fatalf("got %d imports, want 1: %v", len(imports), imports)
			}
			if imports[0] != tt.want {
				t.Errorf("got %+v, want %+v", imports[0], tt.want)
			}
		})
	}
}

func TestParseNestedImports(t *testing.T) {
	src := `import os

def lazy():
    import mypkg.heavy
    return mypkg.heavy

class Loader:
    def load(self):
        from mypkg import models
        return models

if True:
    import conditional_dep
`
	imports, _ := parseSource(t, src)

	want := map[Import]bool{
		{Module: "os"}:              true,
		{Module: "mypkg.heavy"}:     true,
		{Module: "mypkg"}:           true,
		{Module: "conditional_dep"}: true,
	}
	if len(imports) != len(want) {
		t.Fatalf("got %d imports, want %d: %v", len(imports), len(want), imports)
	}
	for _, imp := range imports {
		if !want[imp] {
			t.Errorf("unexpected import %+v", imp)
		}
	}
}

func TestParseDynamicImports(t *testing.T) {
	src := `import importlib

mod = __import__("mypkg.util")

def plugin(name):
    return importlib.import_module(name)
`
	imports, dynamic := parseSource(t, src)

	if len(imports) != 1 || imports[0].Module != "importlib" {
		t.Errorf("imports = %v, want only importlib", imports)
	}

	if len(dynamic) != 2 {
		t.Fatalf("got %d dynamic imports, want 2: %v", len(dynamic), dynamic)
	}
	if dynamic[0].Call != "__import__" || dynamic[0].Line != 3 {
		t.Errorf("dynamic[0] = %+v, want __import__ at line 3", dynamic[0])
	}
	if dynamic[1].Call != "importlib.import_module" || dynamic[1].Line != 6 {
		t.Errorf("dynamic[1] = %+v, want importlib.import_module at line 6", dynamic[1])
	}
}

func TestParseDynamicImportsNotResolved(t *testing.T) {
	src := `name = "mypkg.util"
mod = __import__(name)
`
	imports, dynamic := parseSource(t, src)

	if len(imports) != 0 {
		t.Errorf("dynamic calls must not produce imports, got %v", imports)
	}
	if len(dynamic) != 1 {
		t.Errorf("got %d dynamic imports, want 1", len(dynamic))
	}
}

func TestParseSyntaxError(t *testing.T) {
	src := "def broken(:\n    import mypkg\n"

	imports, _, err := Parse(context.Background(), []byte(src))
	if err == nil {
		t.Fatal("expected error for malformed source")
	}
	if len(imports) != 0 {
		t.Errorf("malformed source must yield no imports, got %v", imports)
	}
}

func TestParseNoImports(t *testing.T) {
	imports, dynamic := parseSource(t, "x = 1\n\n\ndef f():\n    return x\n")

	if len(imports) != 0 || len(dynamic) != 0 {
		t.Errorf("got imports=%v dynamic=%v, want none", imports, dynamic)
	}
}
