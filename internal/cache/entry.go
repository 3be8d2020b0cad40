package cache

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Entry ties one declared template name to the file declaring it. Owner is a
// namespace when Delegate is false and a delegate package otherwise. Entries
// are values and are never mutated once stored.
type Entry struct {
	Owner    string `json:"owner" yaml:"owner"`
	Name     string `json:"name" yaml:"name"`
	Delegate bool   `json:"delegate" yaml:"delegate"`
	File     string `json:"file" yaml:"file"`
}

func (e Entry) String() string {
	kind := "template"
	if e.Delegate {
		kind = "deltemplate"
	}
	return fmt.Sprintf("%s %s.%s in %s", kind, e.Owner, e.Name, e.File)
}

func compareEntries(a, b Entry) int {
	return cmp.Or(
		strings.Compare(a.File, b.File),
		strings.Compare(a.Owner, b.Owner),
		strings.Compare(a.Name, b.Name),
		boolCompare(a.Delegate, b.Delegate),
	)
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// EntrySet is the set of entries declared under one template name. The same
// name declared in several files yields one entry per file. Iteration order
// is by file.
type EntrySet struct {
	entries []Entry
}

// Add inserts e and reports whether it was not already present.
func (s *EntrySet) Add(e Entry) bool {
	i, found := slices.BinarySearchFunc(s.entries, e, compareEntries)
	if found {
		return false
	}
	s.entries = slices.Insert(s.entries, i, e)
	return true
}

// RemoveFile drops every entry declared in file and returns how many were dropped.
func (s *EntrySet) RemoveFile(file string) int {
	before := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool {
		return e.File == file
	})
	return before - len(s.entries)
}

// Contains reports whether e is in the set.
func (s *EntrySet) Contains(e Entry) bool {
	_, found := slices.BinarySearchFunc(s.entries, e, compareEntries)
	return found
}

func (s *EntrySet) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the set's entries.
func (s *EntrySet) Entries() []Entry {
	return slices.Clone(s.entries)
}

// Clone copies the set. Entries are shared by value.
func (s *EntrySet) Clone() *EntrySet {
	return &EntrySet{entries: slices.Clone(s.entries)}
}

// Equal reports whether other is an *EntrySet holding the same entries.
func (s *EntrySet) Equal(other any) bool {
	o, ok := other.(*EntrySet)
	if !ok || o == nil {
		return false
	}
	return slices.Equal(s.entries, o.entries)
}

func (s *EntrySet) String() string {
	files := make([]string, len(s.entries))
	for i, e := range s.entries {
		files[i] = e.File
	}
	if len(s.entries) == 0 {
		return "[]"
	}
	return fmt.Sprintf("%s.%s [%s]", s.entries[0].Owner, s.entries[0].Name, strings.Join(files, ", "))
}
