// Package pyenv probes the Python environment a project runs under.
// The resolver needs two name sets to classify imports as external: the
// standard-library module names (embedded table) and the names of
// installed third-party distributions (queried from the interpreter once
// per run).
package pyenv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// probeScript asks the interpreter for its installed distribution names,
// lowercased, as a JSON array on stdout.
const probeScript = `import importlib.metadata, json
names = set()
for dist in importlib.metadata.distributions():
    name = dist.metadata["Name"]
    if name:
        names.add(name.lower())
print(json.dumps(sorted(names)))`

// Registry is an immutable lookup of external module names, built once at
// startup and passed by reference into the resolver.
type Registry struct {
	installed map[string]bool
}

// NewRegistry builds a registry from an explicit list of installed
// distribution names. Names are matched case-insensitively.
func NewRegistry(installed []string) *Registry {
	r := &Registry{installed: make(map[string]bool, len(installed))}
	for _, name := range installed {
		r.installed[strings.ToLower(name)] = true
	}
	return r
}

// IsStdlib reports whether name is a standard-library module.
func (r *Registry) IsStdlib(name string) bool {
	return stdlibModules[name]
}

// IsInstalled reports whether name matches an installed distribution,
// case-insensitively.
func (r *Registry) IsInstalled(name string) bool {
	return r.installed[strings.ToLower(name)]
}

// InstalledCount returns the number of known installed distributions.
func (r *Registry) InstalledCount() int { return len(r.installed) }

// Probe queries the given Python interpreter for its installed packages.
// On failure it returns a usable registry with an empty installed set
// along with the error. The caller logs the degradation and continues;
// unknown names then bias toward in-project resolution.
func Probe(ctx context.Context, python string) (*Registry, error) {
	cmd := exec.CommandContext(ctx, python, "-c", probeScript)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return NewRegistry(nil), fmt.Errorf("probing %s for installed packages: %w\nstderr: %s",
			python, err, stderr.String())
	}

	var names []string
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &names); err != nil {
		return NewRegistry(nil), fmt.Errorf("parsing package list from %s: %w", python, err)
	}

	return NewRegistry(names), nil
}
