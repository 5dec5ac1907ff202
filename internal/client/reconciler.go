package client

import (
	"sync"
)

// Position controls where ApplyInsert places new items. Chat transcripts
// append; comment lists show newest first and prepend.
type Position int

const (
	Append Position = iota
	Prepend
)

// MutationState tracks the lifecycle of an optimistic mutation.
type MutationState string

const (
	// Pending is applied locally, not yet acknowledged by the server.
	Pending MutationState = "pending"
	// Committed is acknowledged; the local application stands.
	Committed MutationState = "committed"
	// RolledBack is rejected; the local application has been undone.
	RolledBack MutationState = "rolled_back"
)

// MutationID identifies one staged mutation.
type MutationID uint64

// mutation records enough to undo one optimistic application.
type mutation struct {
	state    MutationState
	kind     string
	key      uint
	previous interface{}
	index    int
}

// Reconciler maintains an ordered list keyed by ID and merges rows into
// it idempotently. It is the single merge point for both direct API
// responses and realtime push echoes: sending a message while subscribed
// to its conversation yields exactly one transcript entry, because the
// echo deduplicates against the response by key.
//
// Optimistic mutations are staged, then either committed on server
// acknowledgement or rolled back on rejection. Rollback always undoes
// exactly the staged application, regardless of mutation kind.
type Reconciler[T any] struct {
	mu     sync.Mutex
	items  []T
	key    func(T) uint
	pos    Position
	muts   map[MutationID]*mutation
	nextID MutationID
}

// NewReconciler builds a reconciler over items keyed by key. pos decides
// where inserts land.
func NewReconciler[T any](key func(T) uint, pos Position) *Reconciler[T] {
	return &Reconciler[T]{
		key:  key,
		pos:  pos,
		muts: make(map[MutationID]*mutation),
	}
}

// Items returns a snapshot of the current list.
func (r *Reconciler[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the current list length.
func (r *Reconciler[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Reconciler[T]) indexOf(key uint) int {
	for i, item := range r.items {
		if r.key(item) == key {
			return i
		}
	}
	return -1
}

// ApplyInsert merges a new row. A row whose key is already present
// replaces the existing entry in place instead of duplicating it, which
// is what makes response-then-echo delivery safe.
func (r *Reconciler[T]) ApplyInsert(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyInsert(item)
}

func (r *Reconciler[T]) applyInsert(item T) bool {
	if i := r.indexOf(r.key(item)); i >= 0 {
		r.items[i] = item
		return false
	}
	if r.pos == Prepend {
		r.items = append([]T{item}, r.items...)
	} else {
		r.items = append(r.items, item)
	}
	return true
}

// ApplyUpdate replaces the row with the same key. Rows not present are
// ignored; an update echo for something scrolled out of the list is not
// an error.
func (r *Reconciler[T]) ApplyUpdate(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyUpdate(item)
}

func (r *Reconciler[T]) applyUpdate(item T) bool {
	i := r.indexOf(r.key(item))
	if i < 0 {
		return false
	}
	r.items[i] = item
	return true
}

// ApplyDelete removes the row with the given key if present.
func (r *Reconciler[T]) ApplyDelete(key uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.applyDelete(key)
	return ok
}

func (r *Reconciler[T]) applyDelete(key uint) (removed T, ok bool) {
	i := r.indexOf(key)
	if i < 0 {
		return removed, false
	}
	removed = r.items[i]
	r.items = append(r.items[:i], r.items[i+1:]...)
	return removed, true
}

func (r *Reconciler[T]) stage(m *mutation) MutationID {
	r.nextID++
	id := r.nextID
	m.state = Pending
	r.muts[id] = m
	return id
}

// StageInsert applies an insert optimistically and returns a mutation
// handle to commit or roll back once the server responds. When the key
// is already in the list the staged insert replaces that row, so the
// replaced row is remembered for rollback.
func (r *Reconciler[T]) StageInsert(item T) MutationID {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &mutation{kind: "insert", key: r.key(item)}
	if i := r.indexOf(m.key); i >= 0 {
		m.previous = r.items[i]
	}
	r.applyInsert(item)
	return r.stage(m)
}

// StageUpdate applies an update optimistically, remembering the previous
// row for rollback. ok is false when the row is not in the list.
func (r *Reconciler[T]) StageUpdate(item T) (id MutationID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(r.key(item))
	if i < 0 {
		return 0, false
	}
	previous := r.items[i]
	r.items[i] = item
	return r.stage(&mutation{kind: "update", key: r.key(item), previous: previous}), true
}

// StageDelete removes a row optimistically, remembering it and its
// position for rollback.
func (r *Reconciler[T]) StageDelete(key uint) (id MutationID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(key)
	if i < 0 {
		return 0, false
	}
	removed, _ := r.applyDelete(key)
	return r.stage(&mutation{kind: "delete", key: key, previous: removed, index: i}), true
}

// Commit marks a pending mutation acknowledged. The optimistic
// application stands; the authoritative server row still flows through
// ApplyInsert/ApplyUpdate and merges idempotently. Committing a
// non-pending mutation is a no-op.
func (r *Reconciler[T]) Commit(id MutationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, exists := r.muts[id]; exists && m.state == Pending {
		m.state = Committed
	}
}

// Rollback undoes a pending mutation: staged inserts are removed (or
// restore the row they replaced), staged updates restore the previous
// row, staged deletes re-insert the removed row at its old position.
// Rolling back a non-pending mutation is a no-op.
func (r *Reconciler[T]) Rollback(id MutationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, exists := r.muts[id]
	if !exists || m.state != Pending {
		return
	}
	m.state = RolledBack

	switch m.kind {
	case "insert":
		if m.previous != nil {
			r.applyUpdate(m.previous.(T))
		} else {
			r.applyDelete(m.key)
		}
	case "update":
		r.applyUpdate(m.previous.(T))
	case "delete":
		if r.indexOf(m.key) >= 0 {
			return
		}
		i := m.index
		if i > len(r.items) {
			i = len(r.items)
		}
		r.items = append(r.items[:i], append([]T{m.previous.(T)}, r.items[i:]...)...)
	}
}

// State reports the lifecycle state of a mutation. ok is false for
// unknown IDs.
func (r *Reconciler[T]) State(id MutationID) (MutationState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, exists := r.muts[id]
	if !exists {
		return "", false
	}
	return m.state, true
}

// PendingCount returns how many staged mutations are still awaiting a
// server verdict.
func (r *Reconciler[T]) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.muts {
		if m.state == Pending {
			n++
		}
	}
	return n
}
