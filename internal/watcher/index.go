package watcher

import (
	"github.com/conneroisu/soyidx/internal/updater"
)

// Index is the part of the updater driven by file events.
type Index interface {
	UpdateCache(file updater.File)
	RemoveFromCache(file updater.File)
	RemoveTree(dir updater.File)
}

// Stater returns a handle on the file at path.
type Stater interface {
	Stat(path string) updater.File
}

// IndexHandler applies debounced events to idx. The file on disk decides:
// a path that still holds a file is re-indexed, otherwise it is dropped.
// A rename that replaced the file, as editors do on save, re-indexes it.
// A removed tree drops every file indexed below it.
func IndexHandler(idx Index, host Stater) ChangeHandler {
	return func(events []ChangeEvent) error {
		for _, event := range events {
			file := host.Stat(event.Path)
			switch {
			case event.Type == EventTypeTreeRemoved:
				idx.RemoveTree(file)
			case file.Valid():
				idx.UpdateCache(file)
			default:
				idx.RemoveFromCache(file)
			}
		}
		return nil
	}
}
