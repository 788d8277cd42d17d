package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var errPathTraversal = errors.New("path escapes its base directory")

// validatePath rejects empty paths and relative paths that climb out of the
// working directory.
func validatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New("empty path")
	}
	clean := filepath.Clean(p)
	if !filepath.IsAbs(clean) && (clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))) {
		return fmt.Errorf("%w: %s", errPathTraversal, p)
	}
	return nil
}

func ensureDirectories(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// safeRemove removes a regular file; a missing file is not an error.
func safeRemove(p string) error {
	info, err := os.Lstat(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("refusing to remove %s: not a regular file", p)
	}
	return os.Remove(p)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
