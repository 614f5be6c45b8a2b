package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addonlens/addonlens/pkg/project"
	"github.com/addonlens/addonlens/pkg/util"
)

// writeModule creates an addon module directory with a manifest and the
// given model source files under models/.
func writeModule(t *testing.T, root, name, manifestBody string, models map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "__manifest__.py"), []byte(manifestBody), 0o644))
	for file, content := range models {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "models", file), []byte(content), 0o644))
	}
	return dir
}

// rewrite replaces a file's content and pushes its mtime forward so the
// change is always detected regardless of filesystem timestamp granularity.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
}

func newTestRegistry(t *testing.T, store project.Store) *Registry {
	t.Helper()
	reg, err := New(Config{Store: store, Logger: util.DiscardLogger()})
	require.NoError(t, err)
	return reg
}

const baseModelSource = `class DemoModel(models.Model):
    _name = 'demo.model'

    title = fields.Char(string="Title")
`

const extensionFieldSource = `class DemoNote(models.Model):
    _inherit = 'demo.model'

    note = fields.Text()
`

const extensionMethodSource = `class DemoCompute(models.Model):
    _inherit = 'demo.model'

    def compute_total(self):
        pass
`

// setupDemoTree builds the base + two extensions scenario across one module.
func setupDemoTree(t *testing.T) (root string, reg *Registry) {
	root = t.TempDir()
	writeModule(t, root, "demo", `{'name': 'Demo', 'depends': ['base']}`, map[string]string{
		"a_base.py":    baseModelSource,
		"b_fields.py":  extensionFieldSource,
		"c_methods.py": extensionMethodSource,
	})
	reg = newTestRegistry(t, &project.StaticStore{Roots: []string{root}})
	require.NoError(t, reg.Initialize(context.Background()))
	return root, reg
}

func TestInitialize_NoActiveProfile(t *testing.T) {
	reg := newTestRegistry(t, &project.StaticStore{})
	require.NoError(t, reg.Initialize(context.Background()))
	assert.False(t, reg.IsReady())
	assert.Zero(t, reg.CacheStats().TrackedFiles)
}

func TestFullRefresh_BasePlusTwoExtensions(t *testing.T) {
	_, reg := setupDemoTree(t)

	descs := reg.Models("demo.model")
	require.Len(t, descs, 3, "1 base + 2 extensions share the identity bucket")

	base, ok := reg.BaseModel("demo.model")
	require.True(t, ok)
	assert.Equal(t, "DemoModel", base.ClassName)
	assert.Equal(t, []string{"base"}, base.Depends)

	inheriting := reg.InheritingModels("demo.model")
	require.Len(t, inheriting, 2)
	for _, desc := range inheriting {
		assert.True(t, desc.IsExtension)
		assert.Equal(t, "demo.model", desc.Inherit)
	}

	fields := reg.AllFieldsForModel("demo.model")
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "note")

	methods := reg.AllMethodsForModel("demo.model")
	assert.Contains(t, methods, "compute_total")
}

func TestFullRefresh_Idempotent(t *testing.T) {
	_, reg := setupDemoTree(t)

	before := reg.CacheStats()
	require.NoError(t, reg.FullRefresh(context.Background()))
	after := reg.CacheStats()

	assert.Equal(t, before.ModelDescriptors, after.ModelDescriptors)
	assert.Equal(t, before.UniqueModels, after.UniqueModels)
	assert.Equal(t, before.TrackedFiles, after.TrackedFiles)
	assert.Len(t, reg.Models("demo.model"), 3)
	assert.Greater(t, after.ParseMemoHits, int64(0), "unchanged files reuse memoized parses")
}

func TestFullRefresh_MissingRootSkipped(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "demo", `{'name': 'Demo'}`, map[string]string{"m.py": baseModelSource})

	store := &project.StaticStore{Roots: []string{filepath.Join(root, "gone"), root}}
	reg := newTestRegistry(t, store)
	require.NoError(t, reg.Initialize(context.Background()))

	assert.Len(t, reg.Models("demo.model"), 1, "existing root still scanned")
}

func TestUpdateFile_EquivalentToFullRefresh(t *testing.T) {
	root, reg := setupDemoTree(t)
	target := filepath.Join(root, "demo", "models", "b_fields.py")

	rewrite(t, target, `class DemoNote(models.Model):
    _inherit = 'demo.model'

    note = fields.Text()
    extra = fields.Char()
`)
	require.NoError(t, reg.UpdateFile(context.Background(), target))

	fields := reg.AllFieldsForModel("demo.model")
	assert.Contains(t, fields, "extra")
	assert.Contains(t, fields, "note")
	assert.Contains(t, fields, "title", "other files untouched")
	assert.Len(t, reg.Models("demo.model"), 3, "descriptor replaced, not appended")

	// A fresh registry over the same tree agrees.
	fresh := newTestRegistry(t, &project.StaticStore{Roots: []string{root}})
	require.NoError(t, fresh.Initialize(context.Background()))
	assert.Equal(t, len(fresh.AllFieldsForModel("demo.model")), len(fields))
	assert.Equal(t, fresh.CacheStats().ModelDescriptors, reg.CacheStats().ModelDescriptors)
}

func TestUpdateFile_NoDuplicateWithoutChange(t *testing.T) {
	root, reg := setupDemoTree(t)
	target := filepath.Join(root, "demo", "models", "b_fields.py")

	before := reg.CacheStats()
	require.NoError(t, reg.UpdateFile(context.Background(), target))
	require.NoError(t, reg.UpdateFile(context.Background(), target))
	after := reg.CacheStats()

	assert.Equal(t, before.ModelDescriptors, after.ModelDescriptors)
	assert.Len(t, reg.Models("demo.model"), 3)
}

func TestUpdateFile_IdentityChangeDropsEmptyBucket(t *testing.T) {
	root, reg := setupDemoTree(t)
	target := filepath.Join(root, "demo", "models", "a_base.py")

	rewrite(t, target, `class Renamed(models.Model):
    _name = 'renamed.model'
`)
	require.NoError(t, reg.UpdateFile(context.Background(), target))

	assert.Len(t, reg.Models("renamed.model"), 1)
	_, found := reg.BaseModel("demo.model")
	assert.False(t, found, "old base descriptor removed")
	assert.Len(t, reg.Models("demo.model"), 2, "extensions remain")
	assert.NotContains(t, reg.AllModelNames(), "", "no empty bucket keys")
}

func TestUpdateFile_OutsideAnyModule(t *testing.T) {
	root, reg := setupDemoTree(t)
	stray := filepath.Join(root, "stray.py")
	rewrite(t, stray, baseModelSource)

	before := reg.CacheStats()
	require.NoError(t, reg.UpdateFile(context.Background(), stray), "soft abort, not an error")
	assert.Equal(t, before.ModelDescriptors, reg.CacheStats().ModelDescriptors)
}

func TestUpdateFile_BeforeInitialize(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "demo", `{'name': 'Demo'}`, map[string]string{"m.py": baseModelSource})

	reg := newTestRegistry(t, &project.StaticStore{Roots: []string{root}})
	require.NoError(t, reg.UpdateFile(context.Background(), filepath.Join(root, "demo", "models", "m.py")))
	assert.Zero(t, reg.CacheStats().ModelDescriptors, "no-op while uninitialized")
}

func TestPreferredRootFilter(t *testing.T) {
	coreRoot := t.TempDir()
	extraRoot := t.TempDir()
	writeModule(t, coreRoot, "base_mod", `{'name': 'Core'}`, map[string]string{"m.py": baseModelSource})
	writeModule(t, extraRoot, "override", `{'name': 'Override'}`, map[string]string{"m.py": baseModelSource})

	store := &project.StaticStore{
		Roots:         []string{coreRoot, extraRoot},
		PreferredRoot: coreRoot,
	}
	reg := newTestRegistry(t, store)
	require.NoError(t, reg.Initialize(context.Background()))

	descs := reg.Models("demo.model")
	require.Len(t, descs, 1, "preferred root wins disambiguation")
	assert.Contains(t, descs[0].FilePath, coreRoot)

	// A name only the non-preferred root contributes falls back to the
	// unfiltered bucket. Documented behavior, flagged for review.
	rewrite(t, filepath.Join(extraRoot, "override", "models", "only.py"), `class Only(models.Model):
    _name = 'only.here'
`)
	require.NoError(t, reg.FullRefresh(context.Background()))
	assert.Len(t, reg.Models("only.here"), 1)
}

func TestComponentPartition(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "demo", `{'name': 'Demo'}`, map[string]string{
		"model.py": `class Demo(models.Model):
    _name = 'shared.name'
`,
		"component.py": `class Listener(Component):
    _name = 'shared.name'
    _apply_on = 'res.partner'

    def on_write(self):
        pass
`,
	})

	reg := newTestRegistry(t, &project.StaticStore{Roots: []string{root}})
	require.NoError(t, reg.Initialize(context.Background()))

	assert.Len(t, reg.Models("shared.name"), 1)
	components := reg.Components("shared.name")
	require.Len(t, components, 1)
	assert.Equal(t, "res.partner", components[0].ApplyOn)
	assert.Equal(t, []string{"shared.name"}, reg.AllComponentNames())
}

func TestClearCache(t *testing.T) {
	_, reg := setupDemoTree(t)
	require.True(t, reg.IsReady())

	reg.ClearCache()

	stats := reg.CacheStats()
	assert.False(t, stats.Initialized)
	assert.Zero(t, stats.ModelDescriptors)
	assert.Zero(t, stats.TrackedFiles)
	assert.Empty(t, reg.Models("demo.model"))
}

func TestRemoveFile(t *testing.T) {
	root, reg := setupDemoTree(t)
	target := filepath.Join(root, "demo", "models", "c_methods.py")

	reg.RemoveFile(target)

	assert.Len(t, reg.Models("demo.model"), 2)
	assert.Len(t, reg.InheritingModels("demo.model"), 1)
	assert.NotContains(t, reg.AllMethodsForModel("demo.model"), "compute_total")
}

func TestCacheStats(t *testing.T) {
	_, reg := setupDemoTree(t)

	stats := reg.CacheStats()
	assert.Equal(t, 3, stats.ModelDescriptors)
	assert.Equal(t, 1, stats.UniqueModels)
	assert.Equal(t, 3, stats.TrackedFiles)
	assert.True(t, stats.Initialized)
	assert.False(t, stats.Refreshing)
}

func TestUpdateModule_DependsPropagation(t *testing.T) {
	root, reg := setupDemoTree(t)
	moduleDir := filepath.Join(root, "demo")

	base, ok := reg.BaseModel("demo.model")
	require.True(t, ok)
	require.Equal(t, []string{"base"}, base.Depends)

	rewrite(t, filepath.Join(moduleDir, "__manifest__.py"),
		`{'name': 'Demo', 'depends': ['base', 'mail']}`)
	require.NoError(t, reg.UpdateModule(context.Background(), moduleDir))

	base, ok = reg.BaseModel("demo.model")
	require.True(t, ok)
	assert.Equal(t, []string{"base", "mail"}, base.Depends,
		"manifest edit reaches descriptors of untouched source files")
	assert.Len(t, reg.Models("demo.model"), 3)
}

func TestFieldOccurrencesRetained(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "demo", `{'name': 'Demo'}`, map[string]string{
		"a.py": `class A(models.Model):
    _name = 'demo.model'

    title = fields.Char(string="Original")
`,
		"b.py": `class B(models.Model):
    _inherit = 'demo.model'

    title = fields.Char(string="Override")
`,
	})

	reg := newTestRegistry(t, &project.StaticStore{Roots: []string{root}})
	require.NoError(t, reg.Initialize(context.Background()))

	fields := reg.AllFieldsForModel("demo.model")
	require.Len(t, fields["title"], 2, "every occurrence retained")

	// The effective definition is the last element.
	effective := fields["title"][len(fields["title"])-1]
	value, ok := effective.Property("string")
	require.True(t, ok)
	assert.Equal(t, "Override", value)
}
