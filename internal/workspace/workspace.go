// Package workspace is the filesystem host for the template index. It maps
// files to the configured modules, lists template files and reads their
// contents.
package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/conneroisu/soyidx/internal/config"
	ierrors "github.com/conneroisu/soyidx/internal/errors"
	"github.com/conneroisu/soyidx/internal/logging"
	"github.com/conneroisu/soyidx/internal/updater"
)

// Module is a named directory of the workspace.
type Module struct {
	Name string
	Root string
}

// Workspace implements updater.Host over the local filesystem.
type Workspace struct {
	root    string
	modules []Module
	exclude []string
	logger  logging.Logger
}

// New resolves the modules of cfg against the filesystem.
func New(cfg *config.Config, logger logging.Logger) (*Workspace, error) {
	root, err := filepath.Abs(cfg.Workspace.Root)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrorTypeConfig, "cannot resolve workspace root")
	}

	modules := make([]Module, 0, len(cfg.Workspace.Modules))
	for _, m := range cfg.Workspace.Modules {
		dir, err := filepath.Abs(cfg.ModuleRoot(m))
		if err != nil {
			return nil, ierrors.Wrap(err, ierrors.ErrorTypeConfig, "cannot resolve module "+m.Name)
		}
		modules = append(modules, Module{Name: m.Name, Root: dir})
	}
	// Longest root first so the innermost module wins.
	slices.SortFunc(modules, func(a, b Module) int {
		if d := len(b.Root) - len(a.Root); d != 0 {
			return d
		}
		return strings.Compare(a.Name, b.Name)
	})

	return &Workspace{
		root:    root,
		modules: modules,
		exclude: slices.Clone(cfg.Workspace.Exclude),
		logger:  logging.OrNop(logger).WithComponent("workspace"),
	}, nil
}

// Root is the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// ModuleList returns the modules with their resolved roots, sorted by name.
func (w *Workspace) ModuleList() []Module {
	out := slices.Clone(w.modules)
	slices.SortFunc(out, func(a, b Module) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Modules returns the module names, sorted.
func (w *Workspace) Modules() []string {
	out := make([]string, 0, len(w.modules))
	for _, m := range w.modules {
		out = append(out, m.Name)
	}
	slices.Sort(out)
	return out
}

// Stat returns a handle on path. The handle reflects the file at the time
// of the call.
func (w *Workspace) Stat(path string) updater.File {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	h := &file{abs: abs, rel: w.rel(abs)}
	h.info, h.err = os.Stat(abs)
	return h
}

// ModuleForFile returns the innermost module containing f.
func (w *Workspace) ModuleForFile(f updater.File) (string, bool) {
	abs := w.absOf(f)
	for _, m := range w.modules {
		if within(m.Root, abs) {
			return m.Name, true
		}
	}
	return "", false
}

// FilesByExtension walks every module and lists the files with extension
// ext. Excluded directories are skipped and files shared by nested modules
// are listed once. Every module that cannot be walked is reported.
func (w *Workspace) FilesByExtension(ext string) ([]updater.File, error) {
	suffix := "." + ext
	seen := make(map[string]bool)
	var files []updater.File
	failures := ierrors.NewCollector()

	for _, m := range w.ModuleList() {
		err := filepath.WalkDir(m.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == m.Root {
					return err
				}
				w.logger.Warn(context.Background(), err, "Skipping unreadable path", "path", path)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path != m.Root && w.excluded(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if !strings.HasSuffix(path, suffix) || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, w.Stat(path))
			return nil
		})
		if err != nil {
			failures.Add(ierrors.NewIOError(ierrors.CodeWalkFailed, "cannot walk module", err).
				WithModule(m.Name).
				WithFile(m.Root))
		}
	}
	if err := failures.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(files, func(a, b updater.File) int { return strings.Compare(a.Path(), b.Path()) })
	return files, nil
}

// Contents reads f. It returns false when the file cannot be read.
func (w *Workspace) Contents(f updater.File) (string, bool) {
	data, err := os.ReadFile(w.absOf(f))
	if err != nil {
		w.logger.Debug(context.Background(), "Cannot read file",
			"error", ierrors.NewIOError(ierrors.CodeReadFailed, "cannot read file", err).WithFile(f.Path()))
		return "", false
	}
	return string(data), true
}

// Excluded reports whether path lies in an excluded directory or is one.
func (w *Workspace) Excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part != "." && part != ".." && w.excluded(part) {
			return true
		}
	}
	return false
}

func (w *Workspace) excluded(name string) bool {
	for _, pattern := range w.exclude {
		if name == pattern {
			return true
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// rel is the slash-separated path recorded in cache entries: relative to the
// workspace root when inside it, absolute otherwise.
func (w *Workspace) rel(abs string) string {
	if !within(w.root, abs) {
		return filepath.ToSlash(abs)
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func (w *Workspace) absOf(f updater.File) string {
	if h, ok := f.(*file); ok {
		return h.abs
	}
	p := filepath.FromSlash(f.Path())
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.root, p)
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// file is a filesystem File.
type file struct {
	abs  string
	rel  string
	info fs.FileInfo
	err  error
}

func (f *file) Path() string { return f.rel }

// Abs is the absolute filesystem path.
func (f *file) Abs() string { return f.abs }

func (f *file) Valid() bool {
	return f.err == nil && f.info.Mode().IsRegular()
}

func (f *file) Len() int64 {
	if f.err != nil {
		return 0
	}
	return f.info.Size()
}

func (f *file) Ext() string {
	return strings.TrimPrefix(filepath.Ext(f.abs), ".")
}
