// Package syncer keeps an in-memory copy of the active list in step with
// the remote store.
//
// Each Bind is a state transition: the previous live query is cancelled,
// a generation token is bumped and, when both an identity and a list code
// are present, exactly one new live query is opened. Snapshots replace the
// item set wholesale. Anything that arrives tagged with an older generation
// is dropped.
package syncer

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/identity"
	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

// View is the synchronizer state at one point in time.
type View struct {
	Generation uint64
	IdentityID string
	Code       string
	Items      []model.Item // store order: category, then name
	Loading    bool         // subscribed, first snapshot not in yet
	Err        error        // last subscription failure, if any
}

// Bound reports whether a live query is (or was) open for this view.
func (v View) Bound() bool { return v.IdentityID != "" && v.Code != "" }

type Synchronizer struct {
	watcher store.Watcher
	log     *zap.Logger

	mu      sync.Mutex
	view    View
	cancel  context.CancelFunc
	loaded  chan struct{} // closed when the current generation settles
	updates chan View
	closed  bool
	wg      sync.WaitGroup
}

func New(w store.Watcher, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	loaded := make(chan struct{})
	close(loaded)
	return &Synchronizer{
		watcher: w,
		log:     log,
		loaded:  loaded,
		updates: make(chan View, 1),
	}
}

// Updates delivers the newest view after every change. Unread views are
// replaced, so a slow reader only ever sees the latest state. Closed by Close.
func (s *Synchronizer) Updates() <-chan View { return s.updates }

// View returns a copy of the current state.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) Items() []model.Item { return s.View().Items }

func (s *Synchronizer) Loading() bool { return s.View().Loading }

// Bind scopes the synchronizer to (id, code). Re-binding the same pair
// keeps the running subscription. The live query is opened without holding
// the state lock, so readers never wait on the store.
func (s *Synchronizer) Bind(id *identity.Identity, code string) {
	idID := ""
	if id != nil {
		idID = id.ID
	}

	s.mu.Lock()
	if s.closed || (idID == s.view.IdentityID && code == s.view.Code) {
		s.mu.Unlock()
		return
	}
	o := s.rebindLocked(idID, code)
	s.mu.Unlock()
	s.open(o)
}

// Refresh re-opens the live query for the current scope, e.g. after an
// error ended the previous one.
func (s *Synchronizer) Refresh() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	o := s.rebindLocked(s.view.IdentityID, s.view.Code)
	s.mu.Unlock()
	s.open(o)
}

// opening is a live query reserved under the lock and not yet started.
type opening struct {
	gen    uint64
	code   string
	ctx    context.Context
	cancel context.CancelFunc
	loaded chan struct{}
	log    *zap.Logger
}

// rebindLocked starts a new generation. It returns nil when the new scope
// is unbound and there is nothing to open.
func (s *Synchronizer) rebindLocked(idID, code string) *opening {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.view = View{Generation: s.view.Generation + 1, IdentityID: idID, Code: code}
	s.loaded = make(chan struct{})
	log := s.log.With(zap.String("list_code", code), zap.Uint64("generation", s.view.Generation))

	if !s.view.Bound() {
		close(s.loaded)
		log.Debug("synchronizer unbound")
		s.publishLocked()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.view.Loading = true
	s.publishLocked()
	return &opening{gen: s.view.Generation, code: code, ctx: ctx, cancel: cancel, loaded: s.loaded, log: log}
}

func (s *Synchronizer) open(o *opening) {
	if o == nil {
		return
	}
	ch, err := s.watcher.Watch(o.ctx, o.code)

	s.mu.Lock()
	defer s.mu.Unlock()
	if o.gen != s.view.Generation {
		// a later Bind or Close took over while Watch was in flight
		o.cancel()
		closeOnce(o.loaded)
		o.log.Debug("dropped superseded subscription", zap.Uint64("current", s.view.Generation))
		return
	}
	if err != nil {
		o.cancel()
		s.cancel = nil
		o.log.Error("subscribe failed", zap.Error(err))
		s.view.Err = err
		s.view.Loading = false
		closeOnce(o.loaded)
		s.publishLocked()
		return
	}
	o.log.Debug("subscribed")

	s.wg.Add(1)
	go s.consume(o.gen, o.loaded, ch, o.log)
}

func (s *Synchronizer) consume(gen uint64, loaded chan struct{}, ch <-chan store.Snapshot, log *zap.Logger) {
	defer s.wg.Done()
	for snap := range ch {
		s.apply(gen, loaded, snap, log)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.view.Generation && s.view.Loading {
		// store closed the query without a snapshot
		s.view.Loading = false
		closeOnce(loaded)
		s.publishLocked()
	}
}

func (s *Synchronizer) apply(gen uint64, loaded chan struct{}, snap store.Snapshot, log *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.view.Generation {
		log.Debug("dropped stale snapshot", zap.Uint64("current", s.view.Generation))
		return
	}
	if snap.Err != nil {
		log.Error("subscription failed", zap.Error(snap.Err))
		s.view.Err = snap.Err
	} else {
		s.view.Items = snap.Items
		s.view.Err = nil
	}
	s.view.Loading = false
	closeOnce(loaded)
	s.publishLocked()
}

// WaitLoaded blocks until the current scope has its first snapshot (or
// failed, or is unbound) and returns the view at that point.
func (s *Synchronizer) WaitLoaded(ctx context.Context) (View, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()

	select {
	case <-loaded:
		return s.View(), nil
	case <-ctx.Done():
		return s.View(), ctx.Err()
	}
}

// Close cancels the live query and closes Updates.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.view.Generation++
	s.mu.Unlock()

	s.wg.Wait()
	close(s.updates)
}

func (s *Synchronizer) snapshotLocked() View {
	v := s.view
	v.Items = slices.Clone(s.view.Items)
	return v
}

func (s *Synchronizer) publishLocked() {
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- s.snapshotLocked()
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
