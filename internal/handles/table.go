// Package handles maps opaque uintptr handles to live Go values.
//
// Instance data words crossing the plugin ABI must not be Go pointers, so
// both the hosted plugin registry and the native-library loader store their
// per-instance state here and pass the handle through the foreign side.
// Handle 0 is reserved and always invalid.
package handles

import "sync"

// Table is a concurrency-safe handle table with handle reuse.
type Table struct {
	mu       sync.RWMutex
	entries  []entry
	freeList []uintptr
}

type entry struct {
	value any
	valid bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 16),
		freeList: make([]uintptr, 0, 4),
	}
}

// Insert stores value and returns its handle.
func (t *Table) Insert(value any) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := entry{value: value, valid: true}

	if n := len(t.freeList); n > 0 {
		h := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
		return h
	}

	t.entries = append(t.entries, e)
	return uintptr(len(t.entries))
}

// Get retrieves the value stored under handle.
func (t *Table) Get(handle uintptr) (any, bool) {
	if handle == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if handle > uintptr(len(t.entries)) {
		return nil, false
	}
	e := t.entries[handle-1]
	if !e.valid {
		return nil, false
	}
	return e.value, true
}

// Remove drops the value stored under handle and returns it.
// The handle becomes available for reuse.
func (t *Table) Remove(handle uintptr) (any, bool) {
	if handle == 0 {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if handle > uintptr(len(t.entries)) {
		return nil, false
	}
	e := t.entries[handle-1]
	if !e.valid {
		return nil, false
	}

	t.entries[handle-1] = entry{}
	t.freeList = append(t.freeList, handle)
	return e.value, true
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, e := range t.entries {
		if e.valid {
			n++
		}
	}
	return n
}
