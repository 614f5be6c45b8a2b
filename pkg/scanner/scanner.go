// Package scanner discovers addon module directories and their candidate
// source files under configured source roots.
package scanner

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/addonlens/addonlens/pkg/manifest"
)

// Scanner walks source roots looking for manifest-bearing directories.
//
// Failure policy: an unreadable directory yields an empty result for that
// subtree with a warning; scanning of siblings continues. Directory entries
// are visited in sorted order so scan results are deterministic.
type Scanner struct {
	excludes []string // doublestar patterns matched against root-relative paths
	logger   *slog.Logger
}

// New creates a scanner. Invalid exclude patterns are dropped with a warning.
func New(excludes []string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	valid := make([]string, 0, len(excludes))
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			logger.Warn("invalid exclude pattern, ignoring", "pattern", pattern)
			continue
		}
		valid = append(valid, pattern)
	}
	return &Scanner{excludes: valid, logger: logger}
}

// FindModuleDirs returns every directory under root that contains a
// recognized manifest file. Descent stops at the first module found along a
// branch: a module is never searched for nested modules. Dot-directories and
// excluded subtrees are skipped.
func (s *Scanner) FindModuleDirs(root string) []string {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scan error, skipping subtree", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if s.isExcluded(root, path) {
			return filepath.SkipDir
		}
		if manifest.IsModuleDir(path) {
			dirs = append(dirs, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("walk aborted", "root", root, "error", err)
	}

	sort.Strings(dirs)
	return dirs
}

// FindSourceFiles returns candidate .py files directly inside moduleDir and
// inside its conventional models/ subdirectory, excluding __init__.py and
// test-prefixed files.
func (s *Scanner) FindSourceFiles(moduleDir string) []string {
	var files []string
	files = append(files, s.listSources(moduleDir)...)
	files = append(files, s.listSources(filepath.Join(moduleDir, "models"))...)
	return files
}

// listSources returns sorted candidate files directly inside dir.
// A missing or unreadable dir yields nil.
func (s *Scanner) listSources(dir string) []string {
	entries, err := os.ReadDir(dir) // already sorted by name
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".py") {
			continue
		}
		// Dunder files (__init__.py, __manifest__.py, __openerp__.py) are
		// never model source.
		if strings.HasPrefix(name, "__") || strings.HasPrefix(name, "test_") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files
}

func (s *Scanner) isExcluded(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.excludes {
		if matched, _ := doublestar.PathMatch(pattern, rel); matched {
			return true
		}
	}
	return false
}
