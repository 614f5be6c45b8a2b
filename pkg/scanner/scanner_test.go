package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addonlens/addonlens/pkg/util"
)

// writeTree creates files relative to a fresh temp root. Directories are
// implied by the paths.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels
}

func TestFindModuleDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"sale_extra/__manifest__.py":          "{}",
		"nested/stock_extra/__openerp__.py":   "{}",
		"not_a_module/readme.txt":             "",
		"sale_extra/sub/__manifest__.py":      "{}", // nested module, must not be found
		".hidden/secret_mod/__manifest__.py":  "{}",
		"nested/deeper/crm_x/__manifest__.py": "{}",
	})

	scanner := New(nil, util.DiscardLogger())
	dirs := relAll(t, root, scanner.FindModuleDirs(root))

	assert.Equal(t, []string{
		"nested/deeper/crm_x",
		"nested/stock_extra",
		"sale_extra",
	}, dirs)
}

func TestFindModuleDirs_Excludes(t *testing.T) {
	root := writeTree(t, map[string]string{
		"keep_mod/__manifest__.py":        "{}",
		"skip/skipped_mod/__manifest__.py": "{}",
	})

	scanner := New([]string{"skip/**"}, util.DiscardLogger())
	dirs := relAll(t, root, scanner.FindModuleDirs(root))
	assert.Equal(t, []string{"keep_mod"}, dirs)
}

func TestFindModuleDirs_InvalidPatternIgnored(t *testing.T) {
	root := writeTree(t, map[string]string{"mod/__manifest__.py": "{}"})

	scanner := New([]string{"[broken"}, util.DiscardLogger())
	dirs := relAll(t, root, scanner.FindModuleDirs(root))
	assert.Equal(t, []string{"mod"}, dirs)
}

func TestFindModuleDirs_MissingRoot(t *testing.T) {
	scanner := New(nil, util.DiscardLogger())
	assert.Empty(t, scanner.FindModuleDirs(filepath.Join(t.TempDir(), "gone")))
}

func TestFindSourceFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"mod/__manifest__.py":       "{}",
		"mod/__init__.py":           "",
		"mod/root_level.py":         "",
		"mod/test_root.py":          "",
		"mod/models/__init__.py":    "",
		"mod/models/partner.py":     "",
		"mod/models/sale_order.py":  "",
		"mod/models/test_helper.py": "",
		"mod/models/data.xml":       "",
		"mod/wizard/wizard.py":      "", // outside root and models/, not a candidate
	})

	scanner := New(nil, util.DiscardLogger())
	files := relAll(t, root, scanner.FindSourceFiles(filepath.Join(root, "mod")))

	assert.Equal(t, []string{
		"mod/root_level.py",
		"mod/models/partner.py",
		"mod/models/sale_order.py",
	}, files)
}

func TestFindSourceFiles_NoModelsDir(t *testing.T) {
	root := writeTree(t, map[string]string{
		"mod/__manifest__.py": "{}",
		"mod/app.py":          "",
	})

	scanner := New(nil, util.DiscardLogger())
	files := relAll(t, root, scanner.FindSourceFiles(filepath.Join(root, "mod")))
	assert.Equal(t, []string{"mod/app.py"}, files)
}
