// Package manifest extracts declared metadata from Odoo addon manifest files.
//
// A manifest (__manifest__.py, or __openerp__.py in legacy addons) is a Python
// dictionary literal. This package does not evaluate Python: it pattern-matches
// a fixed set of keys out of the text, which is tolerant of most real-world
// manifests but has known limits. Nested dictionary values and list values
// containing apostrophes are not reliably handled; list values go through a
// naive single-to-double quote substitution before JSON decoding, so a value
// like "partner's ledger" breaks the decode and the key degrades to its
// default. Tests pin this tolerance down as documented behavior.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/addonlens/addonlens/pkg/util"
)

// Recognized manifest filenames, current format first.
var manifestNames = []string{"__manifest__.py", "__openerp__.py"}

// ErrNoManifest is returned when a directory holds no recognized manifest file.
var ErrNoManifest = errors.New("no manifest file found")

// Manifest holds the declared keys the registry cares about.
type Manifest struct {
	Name        string
	Version     string
	Depends     []string
	Installable bool
	AutoInstall bool
	Application bool
	Category    string
	Summary     string
	Website     string
}

// Reader extracts manifests from addon module directories.
type Reader struct {
	files  *util.FileCache // optional; falls back to os.ReadFile when nil
	logger *slog.Logger
}

// NewReader creates a manifest reader. files may be nil.
func NewReader(files *util.FileCache, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{files: files, logger: logger}
}

// Key/value extraction patterns, instantiated per key. The key itself may be
// single- or double-quoted in the source.
const (
	patStringValue = `['"]%s['"]\s*:\s*(?:'([^']*)'|"([^"]*)")`
	patBoolValue   = `['"]%s['"]\s*:\s*(True|False)`
	patListValue   = `['"]%s['"]\s*:\s*(\[[^\]]*\])`
)

var reTrailingComma = regexp.MustCompile(`,\s*\]`)

// Read locates and parses the manifest in moduleDir.
//
// Returns ErrNoManifest (wrapped) when neither recognized filename exists or
// is readable. Malformed values never fail the whole read: each key falls
// back to its default (installable true, depends empty) with a log entry.
func (r *Reader) Read(moduleDir string) (*Manifest, error) {
	var content []byte
	var err error
	for _, name := range manifestNames {
		path := filepath.Join(moduleDir, name)
		content, err = r.readFile(path)
		if err == nil {
			return r.parse(string(content), path), nil
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoManifest, moduleDir)
}

// Path returns the manifest file path inside moduleDir, or "" when absent.
func Path(moduleDir string) string {
	for _, name := range manifestNames {
		path := filepath.Join(moduleDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// IsModuleDir reports whether dir contains a recognized manifest file.
func IsModuleDir(dir string) bool {
	return Path(dir) != ""
}

func (r *Reader) readFile(path string) ([]byte, error) {
	if r.files != nil {
		return r.files.ReadFile(path)
	}
	return os.ReadFile(path)
}

// parse extracts the known keys from the manifest text.
func (r *Reader) parse(text, path string) *Manifest {
	m := &Manifest{
		Installable: true, // default unless explicitly False
		Depends:     []string{},
	}

	m.Name = extractString(text, "name")
	m.Version = extractString(text, "version")
	m.Category = extractString(text, "category")
	m.Summary = extractString(text, "summary")
	m.Website = extractString(text, "website")

	if v, ok := extractBool(text, "installable"); ok {
		m.Installable = v
	}
	if v, ok := extractBool(text, "auto_install"); ok {
		m.AutoInstall = v
	}
	if v, ok := extractBool(text, "application"); ok {
		m.Application = v
	}

	if raw, ok := extractList(text, "depends"); ok {
		depends, err := coerceList(raw)
		if err != nil {
			r.logger.Warn("unparseable depends list, using empty",
				"manifest", path, "error", err)
		} else {
			m.Depends = depends
		}
	}

	return m
}

func extractString(text, key string) string {
	re := regexp.MustCompile(fmt.Sprintf(patStringValue, regexp.QuoteMeta(key)))
	match := re.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	// Either the single-quoted or the double-quoted group matched.
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}

func extractBool(text, key string) (value, found bool) {
	re := regexp.MustCompile(fmt.Sprintf(patBoolValue, regexp.QuoteMeta(key)))
	match := re.FindStringSubmatch(text)
	if match == nil {
		return false, false
	}
	return match[1] == "True", true
}

func extractList(text, key string) (raw string, found bool) {
	re := regexp.MustCompile(fmt.Sprintf(patListValue, regexp.QuoteMeta(key)))
	match := re.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// coerceList turns a Python list literal into a string slice by swapping
// single quotes for double quotes and JSON-decoding the result. Values
// containing apostrophes break the substitution; that is the documented
// tolerance, not a bug to fix here.
func coerceList(raw string) ([]string, error) {
	jsonish := strings.ReplaceAll(raw, "'", `"`)
	// Trailing commas are legal Python but not JSON.
	jsonish = reTrailingComma.ReplaceAllString(jsonish, "]")

	var items []string
	if err := json.Unmarshal([]byte(jsonish), &items); err != nil {
		return nil, err
	}
	return items, nil
}
