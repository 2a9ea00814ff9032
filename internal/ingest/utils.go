package ingest

import (
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName reduces a client-supplied filename to a safe base name.
func SafeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = reUnsafe.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, ".")
	if base == "" || base == "_" {
		return "upload"
	}
	return base
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// CollectPaths walks root and returns regular files in lexical order, skipping
// hidden entries if requested. A root that is a file is returned as is.
// Unsupported extensions are kept; they turn into markers downstream.
func CollectPaths(root string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var paths []string
	var stats DirStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			stats.Skipped++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if constants.MapExtToFormat(filepath.Ext(path)) == constants.UNSUPPORTED {
			stats.Unsupported++
		} else {
			stats.Matched++
		}
		paths = append(paths, path)
		return nil
	})
	return paths, stats, err
}
