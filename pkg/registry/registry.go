// Package registry owns the model cache: the mapping from declared model
// identity to every descriptor contributed by scanned addon source, kept
// fresh by full rescans and single-file updates.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/addonlens/addonlens/pkg/manifest"
	"github.com/addonlens/addonlens/pkg/parser"
	"github.com/addonlens/addonlens/pkg/project"
	"github.com/addonlens/addonlens/pkg/scanner"
	"github.com/addonlens/addonlens/pkg/util"
)

// Config controls registry construction.
type Config struct {
	// Store supplies source roots and scan policy. Required.
	Store project.Store

	// ParseMemoSize bounds the per-file parse memo. 0 means the default.
	ParseMemoSize int

	// Logger receives scan and refresh diagnostics. nil means slog.Default.
	Logger *slog.Logger
}

const defaultParseMemoSize = 4096

// memoEntry is a cached parse result for one file at one modification time.
type memoEntry struct {
	mtime       time.Time
	depends     []string // manifest depends at parse time; a change forces reparse
	descriptors []*parser.ModelDescriptor
}

// Registry aggregates model descriptors across all configured source roots.
//
// Descriptors sharing an identity name live in one bucket in scan order:
// roots in store order, modules and files in sorted scanner order. Components
// occupy a partition separate from models.
//
// All mutating entry points (Initialize, FullRefresh, UpdateFile, ClearCache,
// RemoveFile) serialize behind one operation mutex; the refreshing flag is
// only the documented reentrancy no-op guard, not the synchronization
// mechanism. Queries run under a read lock and may observe a partially
// populated registry mid-refresh, which callers must treat as "incomplete,
// re-run" rather than corrupt.
type Registry struct {
	store  project.Store
	reader *manifest.Reader
	parser *parser.Parser
	files  *util.FileCache
	logger *slog.Logger

	opMu sync.Mutex   // serializes mutating operations
	mu   sync.RWMutex // guards the three maps below

	models     map[string][]*parser.ModelDescriptor
	components map[string][]*parser.ModelDescriptor
	fileMtimes map[string]time.Time

	parseMemo  *lru.Cache[string, memoEntry]
	memoHits   atomic.Int64
	memoMisses atomic.Int64

	initialized atomic.Bool
	refreshing  atomic.Bool
}

// New creates an empty registry. Call Initialize to populate it.
func New(cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errors.New("registry: project store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ParseMemoSize <= 0 {
		cfg.ParseMemoSize = defaultParseMemoSize
	}

	memo, err := lru.New[string, memoEntry](cfg.ParseMemoSize)
	if err != nil {
		return nil, fmt.Errorf("registry: parse memo: %w", err)
	}

	files := util.NewFileCache(cfg.Logger)
	return &Registry{
		store:      cfg.Store,
		reader:     manifest.NewReader(files, cfg.Logger),
		parser:     parser.New(files, cfg.Logger),
		files:      files,
		logger:     cfg.Logger,
		models:     make(map[string][]*parser.ModelDescriptor),
		components: make(map[string][]*parser.ModelDescriptor),
		fileMtimes: make(map[string]time.Time),
		parseMemo:  memo,
	}, nil
}

// Initialize performs the first full refresh. It is a no-op when already
// initialized, when a refresh is in flight, or when the project store has no
// active profile (logged, not an error: there is simply nothing to do yet).
func (r *Registry) Initialize(ctx context.Context) error {
	if r.initialized.Load() {
		r.logger.Debug("registry already initialized")
		return nil
	}
	if r.refreshing.Load() {
		r.logger.Debug("refresh in progress, skipping initialize")
		return nil
	}
	if !r.store.HasActiveProfile() {
		r.logger.Info("no active profile, registry left empty")
		return nil
	}

	if err := r.FullRefresh(ctx); err != nil {
		return err
	}
	r.initialized.Store(true)
	return nil
}

// FullRefresh rebuilds the registry from scratch: clears all maps, then
// scans every source root in store order. A refresh already in flight makes
// this call a logged no-op.
//
// Per-root failures are logged and do not abort remaining roots; they are
// joined and returned after the scan so callers can surface partial success.
// Whatever was merged before an error stays in the registry.
func (r *Registry) FullRefresh(ctx context.Context) error {
	if !r.refreshing.CompareAndSwap(false, true) {
		r.logger.Info("refresh already in progress, skipping")
		return nil
	}
	defer r.refreshing.Store(false)

	r.opMu.Lock()
	defer r.opMu.Unlock()

	start := time.Now()

	r.mu.Lock()
	r.models = make(map[string][]*parser.ModelDescriptor)
	r.components = make(map[string][]*parser.ModelDescriptor)
	r.fileMtimes = make(map[string]time.Time)
	r.mu.Unlock()

	sc := scanner.New(r.store.ExcludePatterns(), r.logger)
	roots := r.store.ListSourceRoots()

	var errs []error
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			r.logger.Warn("source root missing, skipping", "root", root)
			continue
		}
		if err := r.scanRoot(ctx, sc, root); err != nil {
			r.logger.Error("root scan failed", "root", root, "error", err)
			errs = append(errs, fmt.Errorf("root %s: %w", root, err))
		}
	}

	stats := r.CacheStats()
	r.logger.Info("full refresh complete",
		"roots", len(roots),
		"models", stats.ModelDescriptors,
		"components", stats.ComponentDescriptors,
		"files", stats.TrackedFiles,
		"duration_ms", time.Since(start).Milliseconds())

	if len(errs) > 0 {
		return fmt.Errorf("refresh incomplete: %w", errors.Join(errs...))
	}
	return nil
}

// scanRoot merges every module under root into the registry.
func (r *Registry) scanRoot(ctx context.Context, sc *scanner.Scanner, root string) error {
	for _, moduleDir := range sc.FindModuleDirs(root) {
		if err := ctx.Err(); err != nil {
			return err
		}

		man, err := r.reader.Read(moduleDir)
		if err != nil {
			r.logger.Warn("manifest unreadable", "module", moduleDir, "error", err)
		}
		moduleName := filepath.Base(moduleDir)

		for _, file := range sc.FindSourceFiles(moduleDir) {
			descriptors, mtime := r.parseWithMemo(file, moduleName, man)

			r.mu.Lock()
			for _, desc := range descriptors {
				r.mergeLocked(desc)
			}
			// Visited files are tracked whether or not they yielded
			// descriptors, so UpdateFile can skip unchanged ones.
			r.fileMtimes[file] = mtime
			r.mu.Unlock()
		}
	}
	return nil
}

// parseWithMemo parses file, reusing the memoized result when neither the
// file's modification time nor the module's dependency list changed.
// On a miss the stale file mapping is dropped before re-reading.
func (r *Registry) parseWithMemo(file, moduleName string, man *manifest.Manifest) ([]*parser.ModelDescriptor, time.Time) {
	var mtime time.Time
	info, statErr := os.Stat(file)
	if statErr == nil {
		mtime = info.ModTime()
	}

	var depends []string
	if man != nil {
		depends = man.Depends
	}

	if entry, ok := r.parseMemo.Get(file); ok && statErr == nil &&
		entry.mtime.Equal(mtime) && slices.Equal(entry.depends, depends) {
		r.memoHits.Add(1)
		return entry.descriptors, mtime
	}
	r.memoMisses.Add(1)

	r.files.Invalidate(file)
	descriptors := r.parser.ParseFile(file, moduleName, man)
	if statErr == nil {
		r.parseMemo.Add(file, memoEntry{
			mtime:       mtime,
			depends:     slices.Clone(depends),
			descriptors: descriptors,
		})
	}
	return descriptors, mtime
}

// mergeLocked appends a descriptor to its partition bucket. Models and
// components are separate namespaces; there is no cross-partition merge.
// Must be called with mu held for writing.
func (r *Registry) mergeLocked(desc *parser.ModelDescriptor) {
	name := desc.Identity()
	if desc.Kind == parser.KindComponent {
		r.components[name] = append(r.components[name], desc)
		return
	}
	r.models[name] = append(r.models[name], desc)
}

// UpdateFile re-parses a single changed file, replacing exactly the
// descriptors previously attributed to it and touching nothing else.
//
// No-op when the registry is uninitialized or refreshing, and when the
// file's modification time is not newer than the recorded one. A stat
// failure conservatively counts as modified. When no ancestor directory
// with a manifest can be found the update aborts softly: old descriptors
// stay in place and a log entry is the only signal.
func (r *Registry) UpdateFile(ctx context.Context, path string) error {
	if !r.initialized.Load() {
		r.logger.Debug("registry not initialized, ignoring file update", "file", path)
		return nil
	}
	if r.refreshing.Load() {
		r.logger.Debug("refresh in progress, ignoring file update", "file", path)
		return nil
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	info, statErr := os.Stat(path)
	if statErr == nil {
		r.mu.RLock()
		recorded, tracked := r.fileMtimes[path]
		r.mu.RUnlock()
		if tracked && !info.ModTime().After(recorded) {
			return nil
		}
	}

	moduleDir, ok := findOwningModule(path)
	if !ok {
		r.logger.Warn("no owning module found, keeping stale descriptors", "file", path)
		return nil
	}

	man, err := r.reader.Read(moduleDir)
	if err != nil {
		r.logger.Warn("manifest unreadable", "module", moduleDir, "error", err)
	}

	descriptors, mtime := r.parseWithMemo(path, filepath.Base(moduleDir), man)

	r.mu.Lock()
	r.removeFileLocked(path)
	for _, desc := range descriptors {
		r.mergeLocked(desc)
	}
	r.fileMtimes[path] = mtime
	r.mu.Unlock()

	r.logger.Debug("file updated", "file", path, "descriptors", len(descriptors))
	return nil
}

// UpdateModule re-parses every tracked file under moduleDir against a fresh
// read of its manifest, for manifest edits: a changed dependency list must
// propagate to the Depends copied onto each descriptor even though the
// source files themselves are untouched.
func (r *Registry) UpdateModule(ctx context.Context, moduleDir string) error {
	if !r.initialized.Load() || r.refreshing.Load() {
		r.logger.Debug("registry not ready, ignoring module update", "module", moduleDir)
		return nil
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.files.Invalidate(manifest.Path(moduleDir))
	man, err := r.reader.Read(moduleDir)
	if err != nil {
		r.logger.Warn("manifest unreadable", "module", moduleDir, "error", err)
	}
	moduleName := filepath.Base(moduleDir)

	r.mu.RLock()
	var tracked []string
	for file := range r.fileMtimes {
		if underRoot(file, moduleDir) {
			tracked = append(tracked, file)
		}
	}
	r.mu.RUnlock()

	for _, file := range tracked {
		descriptors, mtime := r.parseWithMemo(file, moduleName, man)
		r.mu.Lock()
		r.removeFileLocked(file)
		for _, desc := range descriptors {
			r.mergeLocked(desc)
		}
		r.fileMtimes[file] = mtime
		r.mu.Unlock()
	}

	r.logger.Debug("module updated", "module", moduleDir, "files", len(tracked))
	return nil
}

// RemoveFile drops every descriptor attributed to path along with its
// bookkeeping, for deleted or renamed files.
func (r *Registry) RemoveFile(path string) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	r.removeFileLocked(path)
	delete(r.fileMtimes, path)
	r.mu.Unlock()

	r.parseMemo.Remove(path)
	r.files.Invalidate(path)
}

// removeFileLocked strips path's descriptors from both partitions, dropping
// buckets that become empty. Must be called with mu held for writing.
func (r *Registry) removeFileLocked(path string) {
	for _, partition := range []map[string][]*parser.ModelDescriptor{r.models, r.components} {
		for name, bucket := range partition {
			kept := bucket[:0:0]
			for _, desc := range bucket {
				if desc.FilePath != path {
					kept = append(kept, desc)
				}
			}
			if len(kept) == 0 {
				delete(partition, name)
			} else if len(kept) != len(bucket) {
				partition[name] = kept
			}
		}
	}
}

// ClearCache empties all maps and resets the initialized flag. The
// refreshing flag is deliberately untouched.
func (r *Registry) ClearCache() {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	r.models = make(map[string][]*parser.ModelDescriptor)
	r.components = make(map[string][]*parser.ModelDescriptor)
	r.fileMtimes = make(map[string]time.Time)
	r.mu.Unlock()

	r.parseMemo.Purge()
	if err := r.files.Close(); err != nil {
		r.logger.Warn("file cache close", "error", err)
	}
	r.initialized.Store(false)
	r.logger.Info("registry cache cleared")
}

// findOwningModule walks path's ancestors until one contains a manifest.
func findOwningModule(path string) (string, bool) {
	dir := filepath.Dir(path)
	for {
		if manifest.IsModuleDir(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
