package updater

// File is the host's handle on one source file.
type File interface {
	// Path identifies the file. It is the value recorded in cache entries.
	Path() string
	// Valid reports whether the file still exists and is readable.
	Valid() bool
	// Len is the size of the file.
	Len() int64
	// Ext is the file extension without the leading dot.
	Ext() string
}

// Host is what the updater needs from the surrounding workspace.
type Host interface {
	// FilesByExtension lists every file of the workspace with extension ext.
	FilesByExtension(ext string) ([]File, error)
	// ModuleForFile returns the module owning file, or false when no module
	// owns it.
	ModuleForFile(file File) (string, bool)
	// Modules lists all modules of the workspace.
	Modules() []string
	// Contents returns the text of file, or false when it cannot be read.
	Contents(file File) (string, bool)
}

// FileContent is handed to ProcessFile by the host's indexing pass.
type FileContent struct {
	File File
}
