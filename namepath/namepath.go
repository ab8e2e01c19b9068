// Package namepath maps slash-delimited entry names onto on-disk paths
// under a root directory. Entry names namespace themselves: declaring
// "train/loss" places files for that entry in <root>/train/. The
// dispatch core passes entry names through unmodified; only handlers
// that write to disk consult this package.
package namepath

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Dir returns the directory that holds files for the entry.
// For a name without separators this is the root itself.
func Dir(root, entry string) string {
	return filepath.Join(root, filepath.FromSlash(path.Dir(entry)))
}

// File returns the full path of the entry's file with the given
// extension (without dot), e.g. File("/out", "train/loss", "json")
// → "/out/train/loss.json".
func File(root, entry, ext string) string {
	return filepath.Join(root, filepath.FromSlash(entry)) + "." + ext
}

// Ensure creates the entry's directory (and parents) if missing.
func Ensure(root, entry string) error {
	dir := Dir(root, entry)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("namepath: ensure %q: %w", dir, err)
	}
	return nil
}

// Resolver binds a root directory so callers don't thread it through.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver for the given root directory.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Root returns the bound root directory.
func (r *Resolver) Root() string { return r.root }

// Dir returns the directory for the entry under the bound root.
func (r *Resolver) Dir(entry string) string { return Dir(r.root, entry) }

// File returns the entry's file path with the given extension.
func (r *Resolver) File(entry, ext string) string { return File(r.root, entry, ext) }

// Ensure creates the entry's directory under the bound root.
func (r *Resolver) Ensure(entry string) error { return Ensure(r.root, entry) }
