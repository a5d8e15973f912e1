// SPDX-License-Identifier: MPL-2.0

package locate

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/checkhook/checkhook/pkg/platform"
)

const (
	// DefaultScope is the npm scope publishing the checker packages.
	DefaultScope = "@code-yeongyu"

	// packageBase is the unscoped name of the primary package.
	packageBase = "comment-checker"

	// maxManifestBytes bounds package.json reads.
	maxManifestBytes = 1 << 20
)

type (
	// PackageLocator maps an installed package name to its directory using
	// package metadata.
	PackageLocator interface {
		PackageDir(name string) (string, bool)
	}

	// NodeModules resolves packages the way Node's require.resolve does for
	// "<name>/package.json": it walks up from each root looking for
	// node_modules/<name>, then tries each NODE_PATH entry.
	NodeModules struct {
		Roots    []string
		NodePath []string
	}

	packageManifest struct {
		Name string `json:"name"`
	}
)

// PrimaryPackageName returns "<scope>/comment-checker".
func PrimaryPackageName(scope string) string {
	return scope + "/" + packageBase
}

// PlatformPackageName returns the legacy per-platform package for key.
// The win32 package is published under a "windows" suffix.
func PlatformPackageName(scope string, key platform.Key) string {
	suffix := string(key)
	if key == platform.KeyWin32X64 {
		suffix = "windows-x64"
	}
	return scope + "/" + packageBase + "-" + suffix
}

// DefaultNodeModules searches from the working directory and the directory
// of the running executable, plus NODE_PATH and any extra roots.
func DefaultNodeModules(extraRoots ...string) *NodeModules {
	var roots []string
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, evalErr := filepath.EvalSymlinks(exe); evalErr == nil {
			exe = resolved
		}
		roots = append(roots, filepath.Dir(exe))
	}
	roots = append(roots, extraRoots...)

	return &NodeModules{
		Roots:    roots,
		NodePath: filepath.SplitList(os.Getenv("NODE_PATH")),
	}
}

// PackageDir returns the directory of the first installed package whose
// package.json declares name.
func (n *NodeModules) PackageDir(name string) (string, bool) {
	rel := filepath.FromSlash(name)

	for _, root := range n.Roots {
		if root == "" {
			continue
		}
		dir, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		for {
			// Skip node_modules/node_modules lookups, as Node does.
			if filepath.Base(dir) != "node_modules" {
				if pkgDir := filepath.Join(dir, "node_modules", rel); manifestDeclares(pkgDir, name) {
					return pkgDir, true
				}
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	for _, entry := range n.NodePath {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		if pkgDir := filepath.Join(entry, rel); manifestDeclares(pkgDir, name) {
			return pkgDir, true
		}
	}

	return "", false
}

// manifestDeclares reports whether dir/package.json exists and names the package.
func manifestDeclares(dir, name string) bool {
	f, err := os.Open(filepath.Join(dir, "package.json"))
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }() // read-only file handle

	var m packageManifest
	if err := json.NewDecoder(io.LimitReader(f, maxManifestBytes)).Decode(&m); err != nil {
		return false
	}
	return m.Name == name
}
