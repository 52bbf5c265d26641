// Package app holds the session context: identity, list session,
// synchronizer and gateway, and the transitions between their states.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/config"
	"github.com/idilsaglam/shoplist/internal/gateway"
	"github.com/idilsaglam/shoplist/internal/identity"
	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/session"
	"github.com/idilsaglam/shoplist/internal/store"
	"github.com/idilsaglam/shoplist/internal/store/localstore"
	"github.com/idilsaglam/shoplist/internal/store/memstore"
	"github.com/idilsaglam/shoplist/internal/store/mongostore"
	"github.com/idilsaglam/shoplist/internal/store/redisnotify"
	"github.com/idilsaglam/shoplist/internal/syncer"
)

// Client is the explicit session context shared by the CLI and the TUI.
// Identity and list-code changes go through its methods, each of which
// re-scopes the synchronizer.
type Client struct {
	cfg   *config.Config
	log   *zap.Logger
	store store.ListStore

	identity *identity.Provider
	session  *session.State
	sync     *syncer.Synchronizer
	gateway  *gateway.Gateway

	unsubscribe func()
}

// OpenStore builds the remote store named by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.ListStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memstore.New(), nil
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Batch)
		defer cancel()

		client, err := mongostore.Connect(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, err
		}
		var notify store.Notifier
		if cfg.Store.Live == config.LiveRedis {
			n, err := redisnotify.New(ctx, cfg.Redis.URL, cfg.Redis.ChannelPrefix, log)
			if err != nil {
				_ = client.Disconnect(ctx)
				return nil, err
			}
			notify = n
		}
		st := mongostore.New(client, cfg.Store.MongoDatabase, cfg.Store.Collection, notify, log)
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// New wires a client over st. Call Start before use.
func New(cfg *config.Config, log *zap.Logger, st store.ListStore) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		cfg:   cfg,
		log:   log,
		store: st,
		identity: identity.NewProvider(identity.Options{
			Dir:    cfg.DataDir,
			Secret: cfg.Identity.Secret,
			Issuer: cfg.Identity.Issuer,
			Log:    log.Named("identity"),
		}),
		session: session.New(localstore.Open(cfg.DataDir), cfg.Share.Param),
		sync:    syncer.New(st, log.Named("sync")),
	}
	c.gateway = gateway.New(st, c, log.Named("gateway"))
	return c
}

// Start resolves the initial list code (from rawURL, else storage),
// restores the identity and opens the first subscription if both exist.
func (c *Client) Start(ctx context.Context, rawURL string) error {
	stripped, err := c.session.ResolveInitialCode(rawURL)
	if err != nil {
		return fmt.Errorf("resolve list code: %w", err)
	}
	if stripped != rawURL {
		c.log.Info("list code taken from url", zap.String("url", stripped), zap.String("list_code", c.session.Active()))
	}

	c.unsubscribe = c.identity.Subscribe(c.onIdentity)
	id, err := c.identity.Restore(ctx)
	if err != nil {
		// signed out is a valid state; the user can sign in again
		c.log.Warn("restore identity", zap.Error(err))
	}
	if id == nil {
		c.rebind()
	}
	return nil
}

func (c *Client) onIdentity(id *identity.Identity) {
	promoted, err := c.session.PromotePendingOnSignIn(id)
	if err != nil {
		c.log.Error("promote pending list code", zap.Error(err))
	}
	if promoted {
		c.log.Info("pending list code promoted", zap.String("list_code", c.session.Active()))
	}
	c.rebind()
}

func (c *Client) rebind() {
	c.sync.Bind(c.identity.Current(), c.session.Active())
}

// IdentityID and ListCode implement gateway.Session.
func (c *Client) IdentityID() string {
	if id := c.identity.Current(); id != nil {
		return id.ID
	}
	return ""
}

func (c *Client) ListCode() string { return c.session.Active() }

func (c *Client) Identity() *identity.Identity { return c.identity.Current() }

func (c *Client) PendingCode() string { return c.session.Pending() }

func (c *Client) Updates() <-chan syncer.View { return c.sync.Updates() }

func (c *Client) View() syncer.View { return c.sync.View() }

// Snapshot waits for the first snapshot of the current scope.
func (c *Client) Snapshot(ctx context.Context) (syncer.View, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Short)
	defer cancel()
	v, err := c.sync.WaitLoaded(ctx)
	if err != nil {
		return v, fmt.Errorf("waiting for list: %w", err)
	}
	return v, v.Err
}

// Refresh re-opens the live query after a failure.
func (c *Client) Refresh() { c.sync.Refresh() }

// ---------------------------------------------------
// Identity transitions
// ---------------------------------------------------

func (c *Client) SignIn(ctx context.Context, token string) (*identity.Identity, error) {
	return c.identity.SignIn(ctx, token)
}

func (c *Client) SignInAnonymously(ctx context.Context) (*identity.Identity, error) {
	return c.identity.SignInAnonymously(ctx)
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.identity.SignOut(ctx)
}

// ---------------------------------------------------
// List session transitions
// ---------------------------------------------------

func (c *Client) Join(code string) (string, error) {
	code, err := c.session.Join(code)
	if err != nil {
		return "", err
	}
	c.rebind()
	return code, nil
}

func (c *Client) Create() (string, error) {
	code, err := c.session.Create()
	if err != nil {
		return "", err
	}
	c.log.Info("list created", zap.String("list_code", code))
	c.rebind()
	return code, nil
}

// Open applies a share URL after startup: its code becomes active, and
// stays pending until someone signs in.
func (c *Client) Open(rawURL string) (string, error) {
	stripped, err := c.session.ResolveInitialCode(rawURL)
	if err != nil {
		return "", err
	}
	if stripped == rawURL {
		return "", fmt.Errorf("no %q parameter in %s", c.cfg.Share.Param, rawURL)
	}
	if id := c.identity.Current(); id != nil {
		c.onIdentity(id)
	} else {
		c.rebind()
	}
	return c.session.Active(), nil
}

// Leave drops the active list once confirm agrees; items are cleared.
func (c *Client) Leave(confirm func() bool) error {
	if err := c.session.Leave(confirm); err != nil {
		return err
	}
	c.rebind()
	return nil
}

func (c *Client) ShareURL() (string, error) {
	code := c.session.Active()
	if code == "" {
		return "", gateway.ErrNoSession
	}
	return c.session.ShareURL(c.cfg.Share.Origin, code)
}

// ---------------------------------------------------
// Mutations (bounded by the configured timeouts)
// ---------------------------------------------------

func (c *Client) short(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.Timeouts.Short)
}

func (c *Client) Add(ctx context.Context, name string, category model.Category) (string, error) {
	ctx, cancel := c.short(ctx)
	defer cancel()
	return c.gateway.Add(ctx, name, category)
}

func (c *Client) ToggleComplete(ctx context.Context, item model.Item) error {
	ctx, cancel := c.short(ctx)
	defer cancel()
	return c.gateway.ToggleComplete(ctx, item)
}

func (c *Client) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	ctx, cancel := c.short(ctx)
	defer cancel()
	return c.gateway.UpdateQuantity(ctx, id, quantity)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	ctx, cancel := c.short(ctx)
	defer cancel()
	return c.gateway.Delete(ctx, id)
}

// ClearCompleted clears the completed items of the current view.
func (c *Client) ClearCompleted(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Batch)
	defer cancel()
	return c.gateway.ClearCompleted(ctx, c.sync.Items())
}

// Close stops the live query and releases the store.
func (c *Client) Close(ctx context.Context) error {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.sync.Close()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Short)
	defer cancel()
	if err := c.store.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
