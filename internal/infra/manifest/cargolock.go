// Package manifest enumerates analysis units from a Rust project: its
// declared dependencies (Cargo.lock) or its source files.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

type lockfile struct {
	Package []lockPackage `toml:"package"`
}

type lockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Dependencies []string `toml:"dependencies"`
}

// Units parses projectPath/Cargo.lock into ordered analysis units. The
// workspace's own packages carry no source field in the lockfile and are
// skipped; the scan targets external dependencies.
func Units(projectPath string) ([]analysis.Unit, error) {
	lockPath := filepath.Join(projectPath, "Cargo.lock")
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", lockPath, err)
	}

	var lf lockfile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lockPath, err)
	}

	var units []analysis.Unit
	for _, p := range lf.Package {
		if p.Source == "" {
			continue
		}
		deps := make([]string, len(p.Dependencies))
		for i, d := range p.Dependencies {
			// Entries may carry a version qualifier ("rand 0.8.5").
			deps[i] = strings.Fields(d)[0]
		}
		units = append(units, analysis.Unit{
			Name:         p.Name,
			Version:      p.Version,
			Source:       p.Source,
			Content:      dependencyContent(p, deps),
			Dependencies: deps,
		})
	}
	return units, nil
}

// dependencyContent is the fingerprinted representation of a declared
// dependency: stable across runs as long as the lockfile entry is stable.
func dependencyContent(p lockPackage, deps []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s %s\nsource %s\n", p.Name, p.Version, p.Source)
	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)
	for _, d := range sorted {
		fmt.Fprintf(&b, "dep %s\n", d)
	}
	return b.String()
}
