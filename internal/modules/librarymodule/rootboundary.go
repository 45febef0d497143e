package librarymodule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/castellan/muse/internal/database"
)

// RootBoundary validates and canonicalizes library roots against the
// configured base media directory. It performs no mutation; callers decide
// what to do with a validated path.
type RootBoundary struct {
	base string
}

// NewRootBoundary creates a boundary anchored at base. Base itself must
// exist and be a directory.
func NewRootBoundary(base string) (*RootBoundary, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve base %s: %v", ErrInvalidRoot, base, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: base %s: %v", ErrInvalidRoot, base, err)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: base %s is not a directory", ErrInvalidRoot, base)
	}
	return &RootBoundary{base: resolved}, nil
}

// Base returns the canonical base directory.
func (rb *RootBoundary) Base() string {
	return rb.base
}

// Normalize resolves rawRoot to a canonical absolute path and validates it:
// the result must exist, be a directory, and lie at or under the base.
// Relative inputs are interpreted relative to the base; absolute inputs are
// re-expressed as an offset from the base and validated the same way.
// Normalizing an already-canonical path returns it unchanged.
func (rb *RootBoundary) Normalize(rawRoot string) (string, error) {
	raw := strings.TrimSpace(rawRoot)
	if raw == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}

	var candidate string
	if filepath.IsAbs(raw) {
		rel, err := filepath.Rel(rb.base, filepath.Clean(raw))
		if err != nil {
			return "", fmt.Errorf("%w: %s is not addressable under %s", ErrInvalidRoot, raw, rb.base)
		}
		candidate = filepath.Join(rb.base, rel)
	} else {
		candidate = filepath.Join(rb.base, raw)
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %s does not exist", ErrInvalidRoot, raw)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s does not exist", ErrInvalidRoot, raw)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, raw)
	}

	if !pathWithin(rb.base, resolved) {
		return "", fmt.Errorf("%w: %s resolves outside the media directory %s", ErrInvalidRoot, raw, rb.base)
	}

	return resolved, nil
}

// CheckDisjoint verifies that candidate neither contains nor is contained
// by the root of any other registered library. The library identified by
// ignoreID is skipped so a library may be re-saved with its own path.
func (rb *RootBoundary) CheckDisjoint(candidate string, existing []database.Library, ignoreID uint32) error {
	for _, lib := range existing {
		if lib.ID == ignoreID {
			continue
		}
		if pathWithin(lib.RootPath, candidate) {
			return fmt.Errorf("%w: %s is inside library %q (%s)",
				ErrRootOverlap, candidate, lib.Name, lib.RootPath)
		}
		if pathWithin(candidate, lib.RootPath) {
			return fmt.Errorf("%w: %s contains library %q (%s)",
				ErrRootOverlap, candidate, lib.Name, lib.RootPath)
		}
	}
	return nil
}

// pathWithin reports whether target is base itself or a descendant of it.
// Both paths must already be clean and absolute.
func pathWithin(base, target string) bool {
	if target == base {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}
