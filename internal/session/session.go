// Package session tracks which shared list is active.
//
// The active code and the pending code (taken from a share URL before the
// user signed in) live in local storage so they survive restarts.
package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/idilsaglam/shoplist/internal/identity"
)

const (
	KeyActive  = "activeListCode"
	KeyPending = "pendingListCode"

	// DefaultParam is the share URL query parameter carrying the code.
	DefaultParam = "list"

	codeMin = 10000
	codeMax = 99999
)

var (
	ErrEmptyCode     = errors.New("list code is empty")
	ErrLeaveDeclined = errors.New("leave not confirmed")
)

// Storage is the local key/value storage; see localstore.Store.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// State is the list session. Safe for concurrent use.
type State struct {
	mu      sync.Mutex
	storage Storage
	param   string
	intn    func(n int) int

	active  string
	pending string
}

// New loads nothing yet; call ResolveInitialCode once at startup.
func New(storage Storage, param string) *State {
	if param == "" {
		param = DefaultParam
	}
	return &State{storage: storage, param: param, intn: rand.IntN}
}

func (s *State) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *State) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// ResolveInitialCode takes the code from rawURL's list parameter when
// present, marking it active and pending and persisting both; the URL is
// returned without the parameter. Without one, the persisted active and
// pending codes are restored and rawURL is returned unchanged.
func (s *State) ResolveInitialCode(rawURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code, stripped, ok := s.fromURL(rawURL); ok {
		if err := s.storage.Set(KeyActive, code); err != nil {
			return rawURL, err
		}
		if err := s.storage.Set(KeyPending, code); err != nil {
			return rawURL, err
		}
		s.active, s.pending = code, code
		return stripped, nil
	}

	active, _, err := s.storage.Get(KeyActive)
	if err != nil {
		return rawURL, err
	}
	pending, _, err := s.storage.Get(KeyPending)
	if err != nil {
		return rawURL, err
	}
	s.active, s.pending = active, pending
	return rawURL, nil
}

func (s *State) fromURL(rawURL string) (code, stripped string, ok bool) {
	if strings.TrimSpace(rawURL) == "" {
		return "", rawURL, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL, false
	}
	q := u.Query()
	code = normalize(q.Get(s.param))
	if code == "" {
		return "", rawURL, false
	}
	q.Del(s.param)
	u.RawQuery = q.Encode()
	return code, u.String(), true
}

// PromotePendingOnSignIn makes the pending code active once an identity
// exists. It reports whether a promotion happened.
func (s *State) PromotePendingOnSignIn(id *identity.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == nil || s.pending == "" {
		return false, nil
	}
	if err := s.storage.Set(KeyActive, s.pending); err != nil {
		return false, err
	}
	if err := s.storage.Delete(KeyPending); err != nil {
		return false, err
	}
	s.active, s.pending = s.pending, ""
	return true, nil
}

// Join activates a user-entered code.
func (s *State) Join(code string) (string, error) {
	code = normalize(code)
	if code == "" {
		return "", ErrEmptyCode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activateLocked(code); err != nil {
		return "", err
	}
	return code, nil
}

// Create activates a fresh random 5-digit code. Collisions with lists
// other people created are not checked.
func (s *State) Create() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := strconv.Itoa(codeMin + s.intn(codeMax-codeMin+1))
	if err := s.activateLocked(code); err != nil {
		return "", err
	}
	return code, nil
}

// activateLocked makes an explicitly chosen code active. A pending code
// from a share link is dropped so sign-in does not override the choice.
func (s *State) activateLocked(code string) error {
	if err := s.storage.Set(KeyActive, code); err != nil {
		return err
	}
	if err := s.storage.Delete(KeyPending); err != nil {
		return err
	}
	s.active, s.pending = code, ""
	return nil
}

// Leave clears the active code once confirm agrees.
func (s *State) Leave(confirm func() bool) error {
	if confirm == nil || !confirm() {
		return ErrLeaveDeclined
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Delete(KeyActive); err != nil {
		return err
	}
	s.active = ""
	return nil
}

// ShareURL builds <origin>?<param>=<code>.
func (s *State) ShareURL(origin, code string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("share origin: %w", err)
	}
	q := u.Query()
	q.Set(s.param, code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
