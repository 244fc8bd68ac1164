// Package resolve maps raw import declarations to concrete in-project
// file paths.
package resolve

import (
	"path"
	"sort"
	"strings"

	"github.com/testscope/testscope/pkg/extract/pyimports"
	"github.com/testscope/testscope/pkg/pyenv"
)

// Resolver resolves imports against a fixed project file set and an
// external-module registry. Both are read-only for the resolver's
// lifetime.
type Resolver struct {
	files    map[string]bool
	registry *pyenv.Registry
}

// New creates a Resolver over the scanned project files.
func New(files map[string]bool, registry *pyenv.Registry) *Resolver {
	if registry == nil {
		registry = pyenv.NewRegistry(nil)
	}
	return &Resolver{files: files, registry: registry}
}

// Resolve returns the project files an import could refer to, sorted.
// External modules resolve to nothing. fromFile is the importing file's
// root-relative path; it only matters for relative imports.
func (r *Resolver) Resolve(imp pyimports.Import, fromFile string) []string {
	if imp.Level > 0 {
		return r.resolveRelative(imp.Module, imp.Level, fromFile)
	}
	return r.resolveAbsolute(imp.Module)
}

// resolveAbsolute tries candidate prefixes of the dotted path from
// longest to shortest, checking both the leaf-module and the
// package-initializer convention. All matches are kept: a statement
// naming a path into a package depends on the package initializer and
// on the named submodule, and an extra edge is cheaper than a missed
// one.
func (r *Resolver) resolveAbsolute(module string) []string {
	parts := strings.Split(module, ".")
	if r.isExternal(parts[0]) {
		return nil
	}

	seen := make(map[string]bool)
	add := func(p string) {
		if r.files[p] {
			seen[p] = true
		}
	}

	for i := len(parts); i >= 1; i-- {
		prefix := strings.Join(parts[:i], "/")
		add(prefix + ".py")

		initPath := prefix + "/__init__.py"
		if r.files[initPath] {
			seen[initPath] = true
			if i < len(parts) {
				add(strings.Join(parts[:i+1], "/") + ".py")
			}
		}
	}

	return sorted(seen)
}

// resolveRelative ascends (level - 1) directories from the importing
// file's directory to find the reference package, then joins the dotted
// suffix if one was written. A bare relative import (no suffix) can only
// mean the reference package's initializer.
func (r *Resolver) resolveRelative(module string, level int, fromFile string) []string {
	dir := path.Dir(fromFile)
	for i := 1; i < level; i++ {
		dir = path.Dir(dir)
	}

	seen := make(map[string]bool)

	if module != "" {
		target := path.Join(dir, strings.ReplaceAll(module, ".", "/"))
		if r.files[target+".py"] {
			seen[target+".py"] = true
		}
		if init := path.Join(target, "__init__.py"); r.files[init] {
			seen[init] = true
		}
	} else {
		if init := path.Join(dir, "__init__.py"); r.files[init] {
			seen[init] = true
		}
	}

	return sorted(seen)
}

// isExternal classifies the leading segment of a dotted import. Order
// matters: the standard library and the installed-package registry are
// checked first, then a project file or directory named after the
// segment forces a local classification, and an unknown name defaults
// to external.
func (r *Resolver) isExternal(name string) bool {
	if r.registry.IsStdlib(name) {
		return true
	}
	if r.registry.IsInstalled(name) {
		return true
	}
	if r.files[name+".py"] {
		return false
	}
	dir := name + "/"
	for f := range r.files {
		if strings.HasPrefix(f, dir) {
			return false
		}
	}
	return true
}

func sorted(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
