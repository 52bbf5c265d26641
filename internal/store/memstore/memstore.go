// Package memstore is an in-process list store with live queries.
// It backs the "memory" driver and most tests.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

type Store struct {
	mu       sync.Mutex
	items    map[string]model.Item
	watchers map[string]map[*watcher]struct{} // by list code
	now      func() time.Time
}

var _ store.ListStore = (*Store)(nil)

func New() *Store {
	return &Store{
		items:    map[string]model.Item{},
		watchers: map[string]map[*watcher]struct{}{},
		now:      time.Now,
	}
}

// watcher holds at most one pending snapshot; a newer one replaces it.
type watcher struct {
	mu     sync.Mutex
	ch     chan store.Snapshot
	closed bool
}

func (w *watcher) push(s store.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case <-w.ch:
	default:
	}
	w.ch <- s
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}

func (s *Store) Watch(ctx context.Context, code string) (<-chan store.Snapshot, error) {
	w := &watcher{ch: make(chan store.Snapshot, 1)}

	s.mu.Lock()
	set := s.watchers[code]
	if set == nil {
		set = map[*watcher]struct{}{}
		s.watchers[code] = set
	}
	set[w] = struct{}{}
	w.push(store.Snapshot{Items: s.snapshotLocked(code)})
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers[code], w)
		if len(s.watchers[code]) == 0 {
			delete(s.watchers, code)
		}
		s.mu.Unlock()
		w.close()
	}()
	return w.ch, nil
}

func (s *Store) Add(ctx context.Context, item model.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = uuid.NewString()
	item.CreatedAt = s.now().UTC()
	s.items[item.ID] = item
	s.notifyLocked(item.ListCode)
	return item.ID, nil
}

func (s *Store) Update(ctx context.Context, id string, p model.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	s.items[id] = it
	s.notifyLocked(it.ListCode)
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	s.notifyLocked(it.ListCode)
	return nil
}

// Get returns one item; not part of the store contract, handy in tests.
func (s *Store) Get(id string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it, ok
}

// List returns the ordered items of a list code without watching.
func (s *Store) List(code string) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(code)
}

func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, set := range s.watchers {
		for w := range set {
			w.close()
		}
		delete(s.watchers, code)
	}
	return nil
}

func (s *Store) snapshotLocked(code string) []model.Item {
	out := []model.Item{}
	for _, it := range s.items {
		if it.ListCode == code {
			out = append(out, it)
		}
	}
	store.Order(out)
	return out
}

func (s *Store) notifyLocked(code string) {
	set := s.watchers[code]
	if len(set) == 0 {
		return
	}
	snap := s.snapshotLocked(code)
	for w := range set {
		w.push(store.Snapshot{Items: slices.Clone(snap)})
	}
}
