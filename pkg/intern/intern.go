// Package intern implements the canonical key-string table described in
// spec.md §3.2/§3.3: every property name used as a key is interned once,
// so key identity collapses to pointer equality for the lifetime of the
// owning VM.
package intern

import "sync"

// Key is the canonical handle for an interned string. Two Keys are equal
// (==) if and only if the underlying strings have equal code-unit
// sequences — the comparison never needs to look at Name.
type Key struct {
	name string
}

// Name returns the key's code-unit sequence.
func (k *Key) Name() string {
	if k == nil {
		return ""
	}
	return k.name
}

func (k *Key) String() string { return k.Name() }

// Table is the global intern map owned by one VM instance (spec.md §3.2:
// "The interner is global to a VM instance and owns the key strings.").
// It is not safe to share a Table across VM instances precisely because
// handles from one VM must not be mistaken for handles from another.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Key
}

// New constructs an empty interner.
func New() *Table {
	return &Table{entries: make(map[string]*Key, 64)}
}

// Intern returns the canonical Key for s, creating it on first use. Once
// interned, the Key never moves and is canonical until VM teardown
// (spec.md §3.5).
func (t *Table) Intern(s string) *Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	if k, ok := t.entries[s]; ok {
		return k
	}
	k := &Key{name: s}
	t.entries[s] = k
	return k
}

// Lookup returns the Key for s without creating it.
func (t *Table) Lookup(s string) (*Key, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k, ok := t.entries[s]
	return k, ok
}

// Len reports how many distinct strings are interned; used by diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
