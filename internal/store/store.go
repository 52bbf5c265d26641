// Package store defines the remote list store the client talks to.
//
// Implementations keep one document per item, scoped by list code.
// Watch is a live query: it delivers the full ordered result set for a
// list code and a fresh full set after every change, until its context
// ends. Mutations are unconditional point writes (last writer wins).
package store

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/idilsaglam/shoplist/internal/model"
)

// ErrNotFound is returned by point mutations on an unknown ID.
var ErrNotFound = errors.New("item not found")

// Snapshot is one full result set. A snapshot with Err set is the last one
// on its channel.
type Snapshot struct {
	Items []model.Item
	Err   error
}

// Watcher opens live queries.
type Watcher interface {
	// Watch returns a channel of snapshots for items whose list code equals
	// code, ordered by category then name. The channel is closed once ctx
	// is done or after an error snapshot.
	Watch(ctx context.Context, code string) (<-chan Snapshot, error)
}

// Mutator issues point writes.
type Mutator interface {
	// Add stores item and returns the assigned ID. ID and CreatedAt on the
	// argument are ignored.
	Add(ctx context.Context, item model.Item) (string, error)
	Update(ctx context.Context, id string, p model.Patch) error
	Delete(ctx context.Context, id string) error
}

// ListStore is a full remote store.
type ListStore interface {
	Watcher
	Mutator
	Close(ctx context.Context) error
}

// Notifier fans out "list changed" signals between clients. Stores without
// native push use it to drive Watch.
type Notifier interface {
	Publish(ctx context.Context, code string) error
	// Subscribe delivers a signal per published change until ctx is done.
	Subscribe(ctx context.Context, code string) (<-chan struct{}, error)
	Close() error
}

// Order sorts items by category, then name, then ID for a total order.
func Order(items []model.Item) {
	slices.SortFunc(items, func(a, b model.Item) int {
		return cmp.Or(
			cmp.Compare(a.Category, b.Category),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
