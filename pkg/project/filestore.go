package project

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is one named scan configuration.
type Profile struct {
	// Roots are local addon directories, scanned in listed order.
	Roots []string `yaml:"roots"`

	// RemoteRepos are repository IDs resolved through RemoteSync; resolved
	// mirrors are appended after Roots, in listed order.
	RemoteRepos []string `yaml:"remote_repos"`

	// PreferredRoot wins name disambiguation in model queries.
	PreferredRoot string `yaml:"preferred_root"`

	// Exclude are doublestar patterns for subtrees to skip while scanning.
	Exclude []string `yaml:"exclude"`
}

// configFile is the on-disk shape of a project configuration.
type configFile struct {
	ActiveProfile string             `yaml:"active_profile"`
	Profiles      map[string]Profile `yaml:"profiles"`
}

// FileStore is a Store backed by a yaml config file. Remote repository IDs
// in the active profile are resolved through an optional RemoteSync;
// unsynced repositories are skipped with a log entry.
type FileStore struct {
	config configFile
	sync   RemoteSync
	logger *slog.Logger
}

// LoadFileStore reads a yaml project configuration. sync may be nil, in
// which case remote repositories are ignored.
func LoadFileStore(path string, sync RemoteSync, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project config: %w", err)
	}

	var config configFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse project config %q: %w", path, err)
	}

	return &FileStore{config: config, sync: sync, logger: logger}, nil
}

func (s *FileStore) activeProfile() (Profile, bool) {
	profile, ok := s.config.Profiles[s.config.ActiveProfile]
	return profile, ok && s.config.ActiveProfile != ""
}

// HasActiveProfile reports whether the config names an existing profile.
func (s *FileStore) HasActiveProfile() bool {
	_, ok := s.activeProfile()
	return ok
}

// ListSourceRoots returns the active profile's roots followed by the local
// mirrors of its synced remote repositories.
func (s *FileStore) ListSourceRoots() []string {
	profile, ok := s.activeProfile()
	if !ok {
		return nil
	}

	roots := append([]string(nil), profile.Roots...)
	for _, repoID := range profile.RemoteRepos {
		if s.sync == nil {
			s.logger.Warn("no remote sync configured, skipping repo", "repo", repoID)
			continue
		}
		path, ok := s.sync.LocalPathOf(repoID)
		if !ok {
			s.logger.Warn("remote repo not synced, skipping", "repo", repoID)
			continue
		}
		roots = append(roots, path)
	}
	return roots
}

// PreferredRootPath returns the active profile's preferred root, or "".
func (s *FileStore) PreferredRootPath() string {
	profile, _ := s.activeProfile()
	return profile.PreferredRoot
}

// ExcludePatterns returns the active profile's exclude patterns.
func (s *FileStore) ExcludePatterns() []string {
	profile, _ := s.activeProfile()
	return profile.Exclude
}
