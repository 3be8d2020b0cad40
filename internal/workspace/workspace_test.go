package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/soyidx/internal/cache"
	"github.com/conneroisu/soyidx/internal/config"
	ierrors "github.com/conneroisu/soyidx/internal/errors"
	"github.com/conneroisu/soyidx/internal/updater"
	"github.com/conneroisu/soyidx/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(root string, modules ...config.ModuleConfig) *config.Config {
	return &config.Config{
		Workspace: config.WorkspaceConfig{
			Root:    root,
			Modules: modules,
			Exclude: []string{".git", "node_modules", "*.tmp"},
		},
		Cache: config.CacheConfig{
			Extension:   "soy",
			MaxFileSize: config.DefaultMaxFileSize,
			MemoSize:    8,
		},
		Watch: config.WatchConfig{
			Debounce: config.DefaultDebounce,
			Tick:     config.DefaultTick,
			Settle:   config.DefaultSettle,
		},
	}
}

func TestModuleForFile(t *testing.T) {
	root := t.TempDir()
	ws, err := New(testConfig(root,
		config.ModuleConfig{Name: "app", Path: "app"},
		config.ModuleConfig{Name: "nested", Path: "app/nested"},
	), nil)
	require.NoError(t, err)

	tests := []struct {
		path   string
		module string
		ok     bool
	}{
		{path: "app/a.soy", module: "app", ok: true},
		{path: "app/deep/b.soy", module: "app", ok: true},
		{path: "app/nested/c.soy", module: "nested", ok: true},
		{path: "apple/d.soy", ok: false},
		{path: "other/e.soy", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			module, ok := ws.ModuleForFile(ws.Stat(filepath.Join(root, tt.path)))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.module, module)
		})
	}

	assert.Equal(t, []string{"app", "nested"}, ws.Modules())
}

func TestFilesByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/a.soy", "")
	writeFile(t, root, "app/views/b.soy", "")
	writeFile(t, root, "app/views/readme.txt", "")
	writeFile(t, root, "app/node_modules/dep/c.soy", "")
	writeFile(t, root, "app/cache.tmp/d.soy", "")
	writeFile(t, root, "app/nested/e.soy", "")
	writeFile(t, root, "outside/f.soy", "")

	ws, err := New(testConfig(root,
		config.ModuleConfig{Name: "app", Path: "app"},
		config.ModuleConfig{Name: "nested", Path: "app/nested"},
	), nil)
	require.NoError(t, err)

	files, err := ws.FilesByExtension("soy")
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path())
		assert.True(t, f.Valid())
		assert.Equal(t, "soy", f.Ext())
	}
	assert.Equal(t, []string{"app/a.soy", "app/nested/e.soy", "app/views/b.soy"}, paths)
}

func TestFilesByExtensionMissingModule(t *testing.T) {
	root := t.TempDir()
	ws, err := New(testConfig(root, config.ModuleConfig{Name: "gone", Path: "gone"}), nil)
	require.NoError(t, err)

	_, err = ws.FilesByExtension("soy")
	require.Error(t, err)
	assert.True(t, ierrors.IsType(err, ierrors.ErrorTypeIO))
	assert.Contains(t, err.Error(), "module:gone")
}

func TestFilesByExtensionReportsEveryMissingModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/a.soy", "{namespace a}")
	ws, err := New(testConfig(root,
		config.ModuleConfig{Name: "app", Path: "app"},
		config.ModuleConfig{Name: "gone", Path: "gone"},
		config.ModuleConfig{Name: "lost", Path: "lost"},
	), nil)
	require.NoError(t, err)

	files, err := ws.FilesByExtension("soy")
	require.Error(t, err)
	assert.Nil(t, files)
	assert.Contains(t, err.Error(), "module:gone")
	assert.Contains(t, err.Error(), "module:lost")
}

func TestStatAndContents(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "app/a.soy", "{namespace a}")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app/dir.soy"), 0o755))

	ws, err := New(testConfig(root, config.ModuleConfig{Name: "app", Path: "app"}), nil)
	require.NoError(t, err)

	f := ws.Stat(path)
	assert.Equal(t, "app/a.soy", f.Path())
	assert.True(t, f.Valid())
	assert.Equal(t, int64(len("{namespace a}")), f.Len())
	assert.Equal(t, "soy", f.Ext())

	content, ok := ws.Contents(f)
	require.True(t, ok)
	assert.Equal(t, "{namespace a}", content)

	dir := ws.Stat(filepath.Join(root, "app/dir.soy"))
	assert.False(t, dir.Valid())

	missing := ws.Stat(filepath.Join(root, "app/missing.soy"))
	assert.False(t, missing.Valid())
	assert.Zero(t, missing.Len())
	_, ok = ws.Contents(missing)
	assert.False(t, ok)
}

// pathOnly is a File from another host; only its path is known.
type pathOnly string

func (p pathOnly) Path() string { return string(p) }
func (p pathOnly) Valid() bool  { return true }
func (p pathOnly) Len() int64   { return 0 }
func (p pathOnly) Ext() string  { return "soy" }

func TestForeignFileHandles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/a.soy", "x")
	ws, err := New(testConfig(root, config.ModuleConfig{Name: "app", Path: "app"}), nil)
	require.NoError(t, err)

	var f updater.File = pathOnly("app/a.soy")
	module, ok := ws.ModuleForFile(f)
	assert.True(t, ok)
	assert.Equal(t, "app", module)

	content, ok := ws.Contents(f)
	assert.True(t, ok)
	assert.Equal(t, "x", content)
}

func TestExcluded(t *testing.T) {
	root := t.TempDir()
	ws, err := New(testConfig(root, config.ModuleConfig{Name: "app", Path: "."}), nil)
	require.NoError(t, err)

	assert.True(t, ws.Excluded(filepath.Join(root, ".git", "HEAD")))
	assert.True(t, ws.Excluded(filepath.Join(root, "a", "node_modules", "b.soy")))
	assert.True(t, ws.Excluded(filepath.Join(root, "x.tmp")))
	assert.False(t, ws.Excluded(filepath.Join(root, "views", "a.soy")))
}

func TestProjectIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/a.soy", "{namespace foo.bar}\n{template .hello}\n{/template}\n{template .world}\n{/template}\n")
	writeFile(t, root, "app/b.soy", "{delpackage pkg}{namespace foo.bar}{deltemplate .x}")
	writeFile(t, root, "lib/c.soy", "{namespace lib}{template .t}")

	p, err := Open(testConfig(root,
		config.ModuleConfig{Name: "app", Path: "app"},
		config.ModuleConfig{Name: "lib", Path: "lib"},
	), nil, nil)
	require.NoError(t, err)
	defer p.Close()

	n, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []cache.Entry{{Owner: "foo.bar", Name: "hello", File: "app/a.soy"}},
		p.Store.Lookup("app", "foo.bar", "hello"))
	assert.Equal(t, []cache.Entry{{Owner: "pkg", Name: "x", Delegate: true, File: "app/b.soy"}},
		p.Store.LookupDelegate("app", "pkg", "x"))
	assert.Len(t, p.Store.Lookup("lib", "lib", "t"), 1)
	assert.Empty(t, p.Store.Lookup("app", "lib", "t"))

	// Edit and delete through the updater.
	path := writeFile(t, root, "app/a.soy", "{namespace foo.baz}{template .hello}")
	p.Updater.UpdateCache(p.Workspace.Stat(path))
	assert.Empty(t, p.Store.Lookup("app", "foo.bar", "hello"))
	assert.Len(t, p.Store.Lookup("app", "foo.baz", "hello"), 1)

	require.NoError(t, os.Remove(path))
	p.Updater.RemoveFromCache(p.Workspace.Stat(path))
	assert.Empty(t, p.Store.Lookup("app", "foo.baz", "hello"))
}

func TestWatchedProjectDropsMovedDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/sub/a.soy", "{namespace foo}{template .t}")
	writeFile(t, root, "app/keep.soy", "{namespace foo}{template .k}")

	p, err := Open(testConfig(root, config.ModuleConfig{Name: "app", Path: "app"}), nil, nil)
	require.NoError(t, err)
	defer p.Close()
	_, err = p.Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, []cache.Entry{{Owner: "foo", Name: "t", File: "app/sub/a.soy"}},
		p.Store.Lookup("app", "foo", "t"))

	fw, err := watcher.NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()
	fw.AddFilter(watcher.ExtensionFilter("soy"))
	fw.AddFilter(watcher.ExcludeFilter(p.Workspace.Excluded))
	fw.AddHandler(watcher.IndexHandler(p.Updater, p.Workspace))
	for _, module := range p.Workspace.ModuleList() {
		require.NoError(t, fw.AddRecursive(module.Root))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.Rename(filepath.Join(root, "app", "sub"), filepath.Join(t.TempDir(), "sub")))

	require.Eventually(t, func() bool {
		return len(p.Store.Lookup("app", "foo", "t")) == 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Len(t, p.Store.Lookup("app", "foo", "k"), 1)
	assert.Equal(t, []string{"app/keep.soy"}, p.Store.NamespaceCache("app").Files())
}
