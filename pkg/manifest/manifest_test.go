package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addonlens/addonlens/pkg/util"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

func newTestReader() *Reader {
	return NewReader(nil, util.DiscardLogger())
}

func TestRead_FullManifest(t *testing.T) {
	dir := writeManifest(t, "__manifest__.py", `{
    'name': 'Sale Extras',
    'version': '16.0.1.0.0',
    'category': 'Sales',
    'summary': "Extra sale workflows",
    'website': 'https://example.com',
    'depends': ['base', 'sale', 'mail'],
    'installable': True,
    'auto_install': False,
    'application': True,
}`)

	man, err := newTestReader().Read(dir)
	require.NoError(t, err)

	assert.Equal(t, "Sale Extras", man.Name)
	assert.Equal(t, "16.0.1.0.0", man.Version)
	assert.Equal(t, "Sales", man.Category)
	assert.Equal(t, "Extra sale workflows", man.Summary)
	assert.Equal(t, "https://example.com", man.Website)
	assert.Equal(t, []string{"base", "sale", "mail"}, man.Depends)
	assert.True(t, man.Installable)
	assert.False(t, man.AutoInstall)
	assert.True(t, man.Application)
}

func TestRead_Defaults(t *testing.T) {
	dir := writeManifest(t, "__manifest__.py", `{'name': 'Minimal'}`)

	man, err := newTestReader().Read(dir)
	require.NoError(t, err)

	assert.True(t, man.Installable, "installable defaults to true")
	assert.Empty(t, man.Depends, "depends defaults to empty")
	assert.False(t, man.AutoInstall)
}

func TestRead_InstallableFalse(t *testing.T) {
	dir := writeManifest(t, "__manifest__.py", `{'name': 'Off', 'installable': False}`)

	man, err := newTestReader().Read(dir)
	require.NoError(t, err)
	assert.False(t, man.Installable)
}

func TestRead_LegacyFilename(t *testing.T) {
	dir := writeManifest(t, "__openerp__.py", `{'name': 'Legacy', 'depends': ['base']}`)

	man, err := newTestReader().Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "Legacy", man.Name)
	assert.Equal(t, []string{"base"}, man.Depends)
}

func TestRead_NoManifest(t *testing.T) {
	man, err := newTestReader().Read(t.TempDir())
	require.ErrorIs(t, err, ErrNoManifest)
	assert.Nil(t, man)
}

func TestRead_TrailingCommaInDepends(t *testing.T) {
	dir := writeManifest(t, "__manifest__.py", `{
    'depends': [
        'base',
        'sale',
    ],
}`)

	man, err := newTestReader().Read(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "sale"}, man.Depends)
}

// Values containing apostrophes break the quote-substitution list decoding.
// That tolerance is documented behavior; this test pins it down rather than
// asserting an idealized parse.
func TestRead_ApostropheInDependsDegradesToEmpty(t *testing.T) {
	dir := writeManifest(t, "__manifest__.py", `{'depends': ["partner's_ledger"]}`)

	man, err := newTestReader().Read(dir)
	require.NoError(t, err)
	assert.Empty(t, man.Depends)
}

func TestIsModuleDir(t *testing.T) {
	dir := writeManifest(t, "__manifest__.py", `{}`)
	assert.True(t, IsModuleDir(dir))
	assert.False(t, IsModuleDir(t.TempDir()))
}

func TestPath(t *testing.T) {
	dir := writeManifest(t, "__openerp__.py", `{}`)
	assert.Equal(t, filepath.Join(dir, "__openerp__.py"), Path(dir))
	assert.Empty(t, Path(t.TempDir()))
}
