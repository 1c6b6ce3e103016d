// Package security guards the paths the simulator writes run artifacts and
// archives to.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory returns an error if filePath resolves outside
// root. Symlinks are resolved on the deepest existing ancestor, so a path
// that does not exist yet is still checked against where it would land.
func ValidatePathWithinDirectory(filePath, root string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	canonicalRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("resolve root symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalRoot, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, root)
	}
	return nil
}

// canonicalize resolves symlinks in the longest existing prefix of abs.
func canonicalize(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest)
		}
		if filepath.Dir(dir) == dir {
			return abs
		}
	}
}

// ValidateOutputPath accepts paths below the working directory or the system
// temp directory. Run bundles and archives are only written there.
func ValidateOutputPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	roots := []string{cwd, os.TempDir()}
	for _, root := range roots {
		if ValidatePathWithinDirectory(filePath, root) == nil {
			return nil
		}
	}
	return fmt.Errorf("output path %s must be within one of %v", filePath, roots)
}

// SanitizeFilename turns a run id into a safe path element. Anything other
// than ASCII letters, digits, dot, underscore or dash becomes a single
// underscore, and the result is capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
