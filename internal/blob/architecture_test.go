package blob

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestImportBoundaries keeps blob drivers behind this package and keeps the
// domain package free of internal imports.
func TestImportBoundaries(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "colonyledger/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	rules := []struct {
		name    string
		applies func(pkgPath string) bool
		denied  string
	}{
		{
			name: "infra blob outside blob facade",
			applies: func(p string) bool {
				return !hasPrefix(p, "colonyledger/internal/blob") && !hasPrefix(p, "colonyledger/internal/infra/blob")
			},
			denied: "colonyledger/internal/infra/blob",
		},
		{
			name:    "internal import from pkg/domain",
			applies: func(p string) bool { return hasPrefix(p, "colonyledger/pkg/domain") },
			denied:  "colonyledger/internal",
		},
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		for _, rule := range rules {
			if !rule.applies(pkg.PkgPath) {
				continue
			}
			for importPath := range pkg.Imports {
				if hasPrefix(importPath, rule.denied) {
					seen[rule.name+": "+filepath.Join(pkg.PkgPath, "...")+" -> "+importPath] = struct{}{}
				}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import: %s", v)
		}
		t.Fatalf("found %d forbidden imports", len(violations))
	}
}

func hasPrefix(importPath, prefix string) bool {
	return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
}
