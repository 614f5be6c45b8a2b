// Package project supplies the source-root configuration the registry scans.
//
// The registry only depends on the Store and RemoteSync contracts; the
// concrete yaml-backed FileStore lives here so the CLI and server have a
// working implementation.
package project

// Store supplies the ordered list of source roots to scan plus scan policy.
type Store interface {
	// ListSourceRoots returns the ordered root directories to scan. Paths
	// are not guaranteed to exist; the registry checks before scanning.
	ListSourceRoots() []string

	// HasActiveProfile reports whether any profile is selected. Without one
	// the registry has nothing to do and initialization is a no-op.
	HasActiveProfile() bool

	// PreferredRootPath returns the root whose contributions win name
	// disambiguation in model queries (typically the framework core
	// checkout), or "" when unset.
	PreferredRootPath() string

	// ExcludePatterns returns doublestar patterns for subtrees to skip.
	ExcludePatterns() []string
}

// RemoteSync resolves a synced remote repository to its local mirror
// directory. Download and extraction live behind this interface; the
// registry never talks to the network.
type RemoteSync interface {
	// LocalPathOf returns the local mirror path for repoID, or false when
	// the repository has not been synced.
	LocalPathOf(repoID string) (string, bool)
}

// StaticStore is a fixed-value Store, convenient for tests and one-shot
// CLI scans of explicit directories.
type StaticStore struct {
	Roots         []string
	PreferredRoot string
	Excludes      []string
}

func (s *StaticStore) ListSourceRoots() []string  { return s.Roots }
func (s *StaticStore) HasActiveProfile() bool     { return len(s.Roots) > 0 }
func (s *StaticStore) PreferredRootPath() string  { return s.PreferredRoot }
func (s *StaticStore) ExcludePatterns() []string  { return s.Excludes }
