package updater

import (
	"errors"
	"path"
	"slices"
	"strings"
	"sync"
)

// fakeFile is an in-memory File.
type fakeFile struct {
	host *fakeHost
	path string
}

func (f fakeFile) Path() string { return f.path }

func (f fakeFile) Valid() bool {
	_, ok := f.host.get(f.path)
	return ok
}

func (f fakeFile) Len() int64 {
	if size, ok := f.host.sizeOverride(f.path); ok {
		return size
	}
	content, _ := f.host.get(f.path)
	return int64(len(content))
}

func (f fakeFile) Ext() string {
	return strings.TrimPrefix(path.Ext(f.path), ".")
}

// fakeHost maps top-level directories to modules: "app/a.soy" belongs to
// module "app" when "app" is registered. moveFile overrides the mapping.
type fakeHost struct {
	mu         sync.Mutex
	modules    []string
	owners     map[string]string
	files      map[string]string
	sizes      map[string]int64
	unreadable map[string]bool
	listErr    error
}

func newFakeHost(modules ...string) *fakeHost {
	return &fakeHost{
		modules:    modules,
		owners:     make(map[string]string),
		files:      make(map[string]string),
		sizes:      make(map[string]int64),
		unreadable: make(map[string]bool),
	}
}

func (h *fakeHost) write(p, content string) File {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[p] = content
	return fakeFile{host: h, path: p}
}

func (h *fakeHost) delete(p string) File {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, p)
	return fakeFile{host: h, path: p}
}

func (h *fakeHost) file(p string) File {
	return fakeFile{host: h, path: p}
}

// moveFile makes ModuleForFile report module for p.
func (h *fakeHost) moveFile(p, module string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.owners[p] = module
}

func (h *fakeHost) setModules(modules ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modules = modules
}

func (h *fakeHost) get(p string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.files[p]
	return c, ok
}

func (h *fakeHost) sizeOverride(p string) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sizes[p]
	return s, ok
}

func (h *fakeHost) FilesByExtension(ext string) ([]File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listErr != nil {
		return nil, h.listErr
	}

	var out []File
	for p := range h.files {
		if path.Ext(p) == "."+ext {
			out = append(out, fakeFile{host: h, path: p})
		}
	}
	slices.SortFunc(out, func(a, b File) int { return strings.Compare(a.Path(), b.Path()) })
	return out, nil
}

func (h *fakeHost) ModuleForFile(file File) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if module, ok := h.owners[file.Path()]; ok {
		return module, true
	}
	dir, _, found := strings.Cut(file.Path(), "/")
	if !found || !slices.Contains(h.modules, dir) {
		return "", false
	}
	return dir, true
}

func (h *fakeHost) Modules() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.modules)
}

func (h *fakeHost) Contents(file File) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unreadable[file.Path()] {
		return "", false
	}
	c, ok := h.files[file.Path()]
	return c, ok
}

var errListFailed = errors.New("listing failed")
