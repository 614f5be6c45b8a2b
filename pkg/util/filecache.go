// FileCache provides read-through access to source file text using
// memory-mapped files, with a fallback to os.ReadFile when mmap fails.
//
// The registry reads every addon source file at least once per full refresh
// and again on every incremental update; keeping the files mapped makes the
// second and later reads cheap while the OS manages which pages stay resident.
//
// Entries are invalidated explicitly: a single-file update must call
// Invalidate before re-reading, otherwise the mapping still reflects the
// pre-save content.
package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// FileCacheStats tracks cache behavior for observability.
type FileCacheStats struct {
	CacheHits    int64
	CacheMisses  int64
	MmapFailures int64
	FilesCached  int
}

// FileCache is a thread-safe mmap-backed file text cache.
type FileCache struct {
	mu       sync.RWMutex
	mapped   map[string]mmap.MMap
	files    map[string]*os.File
	fallback map[string][]byte

	statsMu sync.Mutex
	stats   FileCacheStats

	logger *slog.Logger
}

// NewFileCache creates an empty cache. If logger is nil, slog.Default is used.
func NewFileCache(logger *slog.Logger) *FileCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCache{
		mapped:   make(map[string]mmap.MMap),
		files:    make(map[string]*os.File),
		fallback: make(map[string][]byte),
		logger:   logger,
	}
}

// ReadFile returns the file's content, mapping it on first access.
// The returned slice must be treated as read-only; it may alias a live
// mapping that becomes invalid after Invalidate or Close.
func (fc *FileCache) ReadFile(path string) ([]byte, error) {
	fc.mu.RLock()
	if data, ok := fc.mapped[path]; ok {
		fc.mu.RUnlock()
		fc.recordHit()
		return data, nil
	}
	if data, ok := fc.fallback[path]; ok {
		fc.mu.RUnlock()
		fc.recordHit()
		return data, nil
	}
	fc.mu.RUnlock()

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// Another goroutine may have loaded it while we waited for the lock.
	if data, ok := fc.mapped[path]; ok {
		fc.recordHit()
		return data, nil
	}
	if data, ok := fc.fallback[path]; ok {
		fc.recordHit()
		return data, nil
	}

	fc.recordMiss()
	return fc.loadLocked(path)
}

// loadLocked opens and maps a file. Must be called with mu held for writing.
func (fc *FileCache) loadLocked(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	// Zero-byte files cannot be mapped.
	if stat.Size() == 0 {
		file.Close()
		fc.fallback[path] = []byte{}
		return []byte{}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		fc.logger.Warn("mmap failed, using direct read", "file", path, "error", err)
		file.Close()
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read %q after mmap failure: %w", path, readErr)
		}
		fc.recordMmapFailure()
		fc.fallback[path] = raw
		return raw, nil
	}

	fc.mapped[path] = data
	fc.files[path] = file
	return data, nil
}

// Invalidate drops any cached mapping for path. The next ReadFile re-reads
// from disk. Safe to call for paths that were never cached.
func (fc *FileCache) Invalidate(path string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.dropLocked(path)
}

func (fc *FileCache) dropLocked(path string) {
	if data, ok := fc.mapped[path]; ok {
		if err := data.Unmap(); err != nil {
			fc.logger.Warn("unmap failed", "file", path, "error", err)
		}
		delete(fc.mapped, path)
	}
	if file, ok := fc.files[path]; ok {
		file.Close()
		delete(fc.files, path)
	}
	delete(fc.fallback, path)
}

// Size returns the number of currently cached files.
func (fc *FileCache) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.mapped) + len(fc.fallback)
}

// Stats returns a snapshot of cache metrics.
func (fc *FileCache) Stats() FileCacheStats {
	fc.mu.RLock()
	cached := len(fc.mapped) + len(fc.fallback)
	fc.mu.RUnlock()

	fc.statsMu.Lock()
	defer fc.statsMu.Unlock()
	stats := fc.stats
	stats.FilesCached = cached
	return stats
}

// Close unmaps all files and empties the cache. The cache is reusable
// afterwards; entries simply reload on next access.
func (fc *FileCache) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var firstErr error
	for path, data := range fc.mapped {
		if err := data.Unmap(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmap %q: %w", path, err)
		}
	}
	for _, file := range fc.files {
		file.Close()
	}
	fc.mapped = make(map[string]mmap.MMap)
	fc.files = make(map[string]*os.File)
	fc.fallback = make(map[string][]byte)
	return firstErr
}

func (fc *FileCache) recordHit() {
	fc.statsMu.Lock()
	fc.stats.CacheHits++
	fc.statsMu.Unlock()
}

func (fc *FileCache) recordMiss() {
	fc.statsMu.Lock()
	fc.stats.CacheMisses++
	fc.statsMu.Unlock()
}

func (fc *FileCache) recordMmapFailure() {
	fc.statsMu.Lock()
	fc.stats.MmapFailures++
	fc.statsMu.Unlock()
}
