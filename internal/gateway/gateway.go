// Package gateway turns user actions into store writes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

var (
	ErrEmptyName       = errors.New("item name is empty")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNoSession       = errors.New("no active identity or list code")
)

// DefaultParallelism bounds concurrent deletes in ClearCompleted.
const DefaultParallelism = 8

// DeleteError is one failed delete inside ClearCompleted.
type DeleteError struct {
	ID   string
	Name string
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %q (%s): %v", e.Name, e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// Session says who writes and to which list.
type Session interface {
	IdentityID() string
	ListCode() string
}

type Gateway struct {
	store    store.Mutator
	session  Session
	log      *zap.Logger
	validate *validator.Validate

	Parallelism int
}

func New(m store.Mutator, sess Session, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})
	return &Gateway{
		store:       m,
		session:     sess,
		log:         log,
		validate:    v,
		Parallelism: DefaultParallelism,
	}
}

func (g *Gateway) scope() (owner, code string, err error) {
	owner, code = g.session.IdentityID(), g.session.ListCode()
	if owner == "" || code == "" {
		return "", "", ErrNoSession
	}
	return owner, code, nil
}

// Add creates a pending item with quantity 1 in the active list.
func (g *Gateway) Add(ctx context.Context, name string, category model.Category) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	owner, code, err := g.scope()
	if err != nil {
		return "", err
	}
	if !category.Valid() {
		category = model.General
	}

	item := model.Item{
		Name:     name,
		Category: category,
		Quantity: 1,
		ListCode: code,
		OwnerID:  owner,
	}
	if err := g.validate.Struct(item); err != nil {
		return "", fmt.Errorf("invalid item: %w", err)
	}

	id, err := g.store.Add(ctx, item)
	if err != nil {
		g.log.Error("add item", zap.String("list_code", code), zap.Error(err))
		return "", err
	}
	g.log.Debug("item added", zap.String("list_code", code), zap.String("item_id", id))
	return id, nil
}

// ToggleComplete flips item's completed flag as the caller last saw it.
func (g *Gateway) ToggleComplete(ctx context.Context, item model.Item) error {
	if _, _, err := g.scope(); err != nil {
		return err
	}
	done := !item.Completed
	if err := g.store.Update(ctx, item.ID, model.Patch{Completed: &done}); err != nil {
		g.log.Error("toggle item", zap.String("item_id", item.ID), zap.Error(err))
		return err
	}
	return nil
}

// UpdateQuantity overwrites the quantity; anything below 1 is rejected
// without touching the store.
func (g *Gateway) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if err := g.validate.Var(quantity, "min=1"); err != nil {
		return ErrInvalidQuantity
	}
	if _, _, err := g.scope(); err != nil {
		return err
	}
	if err := g.store.Update(ctx, id, model.Patch{Quantity: &quantity}); err != nil {
		g.log.Error("update quantity", zap.String("item_id", id), zap.Error(err))
		return err
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, id string) error {
	if _, _, err := g.scope(); err != nil {
		return err
	}
	if err := g.store.Delete(ctx, id); err != nil {
		g.log.Error("delete item", zap.String("item_id", id), zap.Error(err))
		return err
	}
	return nil
}

// ClearCompleted deletes every completed item in items concurrently and
// waits for all deletes to settle. Items already gone count as deleted.
// Failures come back joined, one *DeleteError each.
func (g *Gateway) ClearCompleted(ctx context.Context, items []model.Item) (int, error) {
	if _, _, err := g.scope(); err != nil {
		return 0, err
	}
	targets := model.Completed(items)
	if len(targets) == 0 {
		return 0, nil
	}

	var eg errgroup.Group
	if g.Parallelism > 0 {
		eg.SetLimit(g.Parallelism)
	}
	errs := make([]error, len(targets))
	for i, it := range targets {
		eg.Go(func() error {
			err := g.store.Delete(ctx, it.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				errs[i] = &DeleteError{ID: it.ID, Name: it.Name, Err: err}
			}
			return nil
		})
	}
	_ = eg.Wait()

	deleted := len(targets)
	for _, err := range errs {
		if err != nil {
			deleted--
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		g.log.Warn("clear completed partially failed",
			zap.Int("deleted", deleted), zap.Int("requested", len(targets)), zap.Error(err))
	}
	return deleted, err
}
