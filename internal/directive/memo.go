package directive

import (
	"slices"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Memo remembers extraction results by content fingerprint so that
// re-processing an unchanged file skips the regex pass.
type Memo struct {
	cache *lru.Cache[uint64, Directives]
}

// NewMemo creates a memo holding up to size results. A size of zero or less
// returns a memo that always extracts.
func NewMemo(size int) (*Memo, error) {
	if size <= 0 {
		return &Memo{}, nil
	}
	cache, err := lru.New[uint64, Directives](size)
	if err != nil {
		return nil, err
	}
	return &Memo{cache: cache}, nil
}

// Extract returns the same result as the package-level Extract.
func (m *Memo) Extract(content string) Directives {
	if m == nil || m.cache == nil {
		return Extract(content)
	}

	key := Fingerprint(content)
	if d, ok := m.cache.Get(key); ok {
		return d.clone()
	}

	d := Extract(content)
	m.cache.Add(key, d.clone())
	return d
}

// Len reports the number of memoised results.
func (m *Memo) Len() int {
	if m == nil || m.cache == nil {
		return 0
	}
	return m.cache.Len()
}

// Fingerprint hashes file contents for memo lookups.
func Fingerprint(content string) uint64 {
	return xxhash.Sum64String(content)
}

// clone detaches the slices so callers cannot mutate memoised results.
func (d Directives) clone() Directives {
	d.Templates = slices.Clone(d.Templates)
	d.DelTemplates = slices.Clone(d.DelTemplates)
	return d
}
