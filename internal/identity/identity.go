// Package identity signs users in, with a token or as a guest, and tells
// subscribers whenever the current identity changes.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	credFileName = "credentials.json"

	// EnvToken overrides the credentials file.
	EnvToken = "SHOPLIST_TOKEN"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("token expired")
)

type Kind string

const (
	Interactive Kind = "interactive"
	Anonymous   Kind = "anonymous"
)

// Identity is the signed-in user. ID is opaque to everything but the store.
type Identity struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Name      string     `json:"name"`
	Token     string     `json:"token,omitempty"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // from the token, if any
}

func (i *Identity) Anonymous() bool { return i != nil && i.Kind == Anonymous }

// Options tune token verification.
type Options struct {
	Dir    string // credentials directory
	Secret string // HMAC secret; empty decodes tokens without verifying
	Issuer string
	Log    *zap.Logger
}

// Provider owns the current identity.
type Provider struct {
	mu      sync.Mutex
	dir     string
	secret  []byte
	issuer  string
	log     *zap.Logger
	current *Identity
	subs    map[int]func(*Identity)
	nextSub int
	now     func() time.Time
}

func NewProvider(opts Options) *Provider {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		dir:    opts.Dir,
		secret: []byte(opts.Secret),
		issuer: opts.Issuer,
		log:    log,
		subs:   map[int]func(*Identity){},
		now:    time.Now,
	}
}

func (p *Provider) Current() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe calls fn on every identity change, nil meaning signed out.
// The returned func unsubscribes.
func (p *Provider) Subscribe(fn func(*Identity)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Restore loads the identity from $SHOPLIST_TOKEN or the credentials file.
// A missing, expired or unreadable identity leaves the user signed out.
func (p *Provider) Restore(ctx context.Context) (*Identity, error) {
	// 1) env override
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		id, err := p.parse(env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvToken, err)
		}
		id.Source = "env"
		p.set(id)
		return id, nil
	}

	// 2) file
	b, err := os.ReadFile(p.credFilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // not signed in
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if id.Kind == Interactive {
		fresh, err := p.parse(id.Token)
		if err != nil {
			p.log.Info("stored token rejected", zap.Error(err))
			return nil, nil
		}
		fresh.CreatedAt = id.CreatedAt
		id = *fresh
	}
	id.Source = "file"
	p.set(&id)
	return &id, nil
}

// SignIn verifies token and makes it the current identity.
func (p *Provider) SignIn(ctx context.Context, token string) (*Identity, error) {
	id, err := p.parse(token)
	if err != nil {
		p.log.Warn("sign-in failed", zap.Error(err))
		return nil, err
	}
	if err := p.save(id); err != nil {
		return nil, err
	}
	p.set(id)
	p.log.Info("signed in", zap.String("identity", id.ID))
	return id, nil
}

// SignInAnonymously creates a guest identity.
func (p *Provider) SignInAnonymously(ctx context.Context) (*Identity, error) {
	id := &Identity{ID: uuid.NewString(), Kind: Anonymous, Name: "Guest"}
	if err := p.save(id); err != nil {
		p.log.Warn("guest sign-in failed", zap.Error(err))
		return nil, err
	}
	p.set(id)
	p.log.Info("signed in as guest", zap.String("identity", id.ID))
	return id, nil
}

// SignOut forgets the identity. An env token cannot be deleted; the
// in-memory identity is still cleared.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := os.Remove(p.credFilePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	p.set(nil)
	p.log.Info("signed out")
	return nil
}

func (p *Provider) set(id *Identity) {
	p.mu.Lock()
	p.current = id
	subs := make([]func(*Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(id)
	}
}

func (p *Provider) credFilePath() string {
	return filepath.Join(p.dir, credFileName)
}

func (p *Provider) save(id *Identity) error {
	// ensure the dir exists with 0700
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	id.Source = "file"
	id.CreatedAt = p.now().UTC()
	b, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	// write with 0600 (owner-only)
	if err := os.WriteFile(p.credFilePath(), b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// parse turns a token into an identity. JWTs are verified when a secret
// is configured; otherwise they are only decoded, and non-JWT tokens are
// accepted as opaque with a stable derived ID.
func (p *Provider) parse(token string) (*Identity, error) {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	switch {
	case len(p.secret) > 0:
		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithTimeFunc(p.now),
		}
		if p.issuer != "" {
			opts = append(opts, jwt.WithIssuer(p.issuer))
		}
		_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return p.secret, nil }, opts...)
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	case strings.Count(token, ".") == 2:
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	default:
		return &Identity{
			ID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String(),
			Kind:  Interactive,
			Name:  "token user",
			Token: token,
		}, nil
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	id := &Identity{ID: sub, Kind: Interactive, Name: sub, Token: token}
	for _, k := range []string{"name", "email"} {
		if v, ok := claims[k].(string); ok && v != "" {
			id.Name = v
			break
		}
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		if !exp.After(p.now()) {
			return nil, ErrExpired
		}
		t := exp.UTC()
		id.ExpiresAt = &t
	}
	return id, nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
