package resource

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
)

// Table maps handles to open values. Handles of removed entries are reused.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	seq       uint64
	closed    bool
}

type entry struct {
	value Closer
	kind  string
	seq   uint64
	valid bool
}

func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 8),
		freeList: make([]Handle, 0, 4),
	}
}

// Insert tracks v under kind and returns its handle.
func (t *Table) Insert(kind string, v Closer) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	t.seq++
	e := entry{value: v, kind: kind, seq: t.seq, valid: true}

	var handle Handle
	if n := len(t.freeList); n > 0 {
		handle = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[handle-1] = e
	} else {
		t.entries = append(t.entries, e)
		handle = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventOpened, Handle: handle, Kind: kind, Value: v})
	return handle, nil
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (Closer, bool) {
	if handle == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := int(handle - 1)
	if idx >= len(t.entries) || !t.entries[idx].valid {
		return nil, false
	}
	return t.entries[idx].value, true
}

// Remove stops tracking handle without closing the value.
func (t *Table) Remove(handle Handle) (Closer, bool) {
	if handle == 0 {
		return nil, false
	}

	t.mu.Lock()
	e, ok := t.take(handle)
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	t.notify(Event{Type: EventReleased, Handle: handle, Kind: e.kind, Value: e.value})
	return e.value, true
}

// Forget stops tracking v, if tracked, without closing it. Values that close
// themselves call this so the table never holds closed values.
func (t *Table) Forget(v Closer) bool {
	t.mu.Lock()
	var (
		handle Handle
		e      entry
		ok     bool
	)
	for i := range t.entries {
		if t.entries[i].valid && t.entries[i].value == v {
			handle = Handle(i + 1)
			e, ok = t.take(handle)
			break
		}
	}
	t.mu.Unlock()
	if !ok {
		return false
	}

	t.notify(Event{Type: EventReleased, Handle: handle, Kind: e.kind, Value: e.value})
	return true
}

// take clears handle's slot. Caller holds t.mu.
func (t *Table) take(handle Handle) (entry, bool) {
	idx := int(handle - 1)
	if idx >= len(t.entries) || !t.entries[idx].valid {
		return entry{}, false
	}
	e := t.entries[idx]
	t.entries[idx] = entry{}
	t.freeList = append(t.freeList, handle)
	return e, true
}

// Release removes handle and closes its value.
func (t *Table) Release(ctx context.Context, handle Handle) error {
	v, ok := t.Remove(handle)
	if !ok {
		return nil
	}
	return v.Close(ctx)
}

// Find returns the handle tracking v.
func (t *Table) Find(v Closer) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, e := range t.entries {
		if e.valid && e.value == v {
			return Handle(i + 1), true
		}
	}
	return 0, false
}

// Len returns the number of tracked values.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Each calls fn for every tracked value in insertion order until fn returns
// false. fn must not modify the table.
func (t *Table) Each(fn func(Handle, string, Closer) bool) {
	for _, h := range t.ordered() {
		t.mu.RLock()
		e := t.entries[h-1]
		t.mu.RUnlock()
		if !e.valid {
			continue
		}
		if !fn(h, e.kind, e.value) {
			return
		}
	}
}

// ordered returns live handles sorted by insertion.
func (t *Table) ordered() []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()

	handles := make([]Handle, 0, len(t.entries))
	for i, e := range t.entries {
		if e.valid {
			handles = append(handles, Handle(i+1))
		}
	}
	sort.Slice(handles, func(i, j int) bool {
		return t.entries[handles[i]-1].seq < t.entries[handles[j]-1].seq
	})
	return handles
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Close rejects further inserts and releases every tracked value, newest
// first. Errors from individual values are joined.
func (t *Table) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	handles := t.ordered()
	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := t.Release(ctx, handles[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Closed reports whether Close has been called.
func (t *Table) Closed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
