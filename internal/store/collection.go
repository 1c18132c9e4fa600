// Package store implements the client-side entity stores: each one keeps
// a best-effort local cache of a remote collection and reconciles server
// responses into it after every create, update or delete.
package store

import (
	"context"
	"sync"
)

// Op identifies one kind of store operation. Each kind tracks its own
// lifecycle independently: a pending fetch does not block a delete.
type Op int

const (
	OpFetch Op = iota
	OpAdd
	OpUpdate
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpFetch:
		return "fetch"
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of one operation kind.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorState is the store's single transient error slot. Each failure
// overwrites the previous one and bumps Generation; the caller decides
// how long to display an error and acknowledges it by generation, so a
// newer failure is never cleared by a stale acknowledgement.
type ErrorState struct {
	Err        error
	Generation uint64
}

// Remote is the set of API calls backing a collection. Fetch is
// required; the others may be nil for collections that do not support
// that operation.
type Remote[T, P any] struct {
	Fetch  func(ctx context.Context) ([]T, error)
	Add    func(ctx context.Context, payload P) (T, error)
	Update func(ctx context.Context, id int64, payload P) (T, error)
	Delete func(ctx context.Context, id int64) error
}

// Collection is a generic entity store: an id-keyed local cache of a
// remote collection plus per-operation status. T is the entity type, P
// the create/update payload type.
//
// Operations do not exclude each other. Two calls racing on the same
// collection resolve in arrival order of their responses and the later
// reconciliation wins, matching the remote-is-authoritative model.
type Collection[T, P any] struct {
	mu     sync.Mutex
	items  []T
	id     func(T) int64
	remote Remote[T, P]

	status  map[Op]Status
	lastErr ErrorState
}

// NewCollection creates an empty collection keyed by id.
func NewCollection[T, P any](id func(T) int64, remote Remote[T, P]) *Collection[T, P] {
	return &Collection[T, P]{
		id:     id,
		remote: remote,
		status: make(map[Op]Status),
	}
}

// Items returns a copy of the local collection in its current order.
func (c *Collection[T, P]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of locally cached entities.
func (c *Collection[T, P]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Get returns the cached entity with the given id.
func (c *Collection[T, P]) Get(id int64) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if c.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Status returns the current lifecycle state of one operation kind.
func (c *Collection[T, P]) Status(op Op) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status[op]
}

// LastError returns the transient error slot. Err is nil when no
// unacknowledged failure exists.
func (c *Collection[T, P]) LastError() ErrorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// AckError clears the error slot if generation still identifies the
// current error. A failure recorded after the caller read the slot keeps
// its place.
func (c *Collection[T, P]) AckError(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr.Generation == generation {
		c.lastErr.Err = nil
	}
}

// Run executes fn under op's lifecycle: pending is observed before the
// terminal succeeded/failed state, and a failure lands in the shared
// error slot. Bespoke stores use it for operations the generic methods
// do not cover.
func (c *Collection[T, P]) Run(op Op, fn func() error) error {
	c.setStatus(op, StatusPending)
	err := fn()
	if err != nil {
		c.fail(op, err)
		return err
	}
	c.setStatus(op, StatusSucceeded)
	return nil
}

func (c *Collection[T, P]) setStatus(op Op, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[op] = s
}

func (c *Collection[T, P]) fail(op Op, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[op] = StatusFailed
	c.lastErr.Generation++
	c.lastErr.Err = err
}

// Fetch replaces the entire local collection with the server's list.
// Non-incremental: records missing from the response disappear locally.
func (c *Collection[T, P]) Fetch(ctx context.Context) error {
	return c.Run(OpFetch, func() error {
		items, err := c.remote.Fetch(ctx)
		if err != nil {
			return err
		}
		c.Replace(items)
		return nil
	})
}

// Add creates an entity remotely and appends the returned canonical
// record to the local collection.
func (c *Collection[T, P]) Add(ctx context.Context, payload P) (T, error) {
	var added T
	err := c.Run(OpAdd, func() error {
		item, err := c.remote.Add(ctx, payload)
		if err != nil {
			return err
		}
		added = item
		c.mu.Lock()
		c.items = append(c.items, item)
		c.mu.Unlock()
		return nil
	})
	return added, err
}

// Update replaces the entity remotely, then replaces the matching local
// entry wholesale. A response whose id matches no local entry is
// dropped; Update never inserts.
func (c *Collection[T, P]) Update(ctx context.Context, id int64, payload P) (T, error) {
	var updated T
	err := c.Run(OpUpdate, func() error {
		item, err := c.remote.Update(ctx, id, payload)
		if err != nil {
			return err
		}
		updated = item
		c.mu.Lock()
		for i := range c.items {
			if c.id(c.items[i]) == c.id(item) {
				c.items[i] = item
				break
			}
		}
		c.mu.Unlock()
		return nil
	})
	return updated, err
}

// Delete removes the entity remotely, then drops the local entry by id.
// The local removal happens only after the server confirms; a failed
// delete (including a repeat of an already-deleted id) leaves the
// collection untouched.
func (c *Collection[T, P]) Delete(ctx context.Context, id int64) error {
	return c.Run(OpDelete, func() error {
		if err := c.remote.Delete(ctx, id); err != nil {
			return err
		}
		c.mu.Lock()
		kept := c.items[:0]
		for _, item := range c.items {
			if c.id(item) != id {
				kept = append(kept, item)
			}
		}
		c.items = kept
		c.mu.Unlock()
		return nil
	})
}

// Replace swaps the local collection wholesale. Used by Fetch and by
// bespoke stores that refresh after a write.
func (c *Collection[T, P]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
}
