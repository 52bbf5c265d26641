package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

func next(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

func item(name string, cat model.Category, code string) model.Item {
	return model.Item{Name: name, Category: cat, Quantity: 1, ListCode: code, OwnerID: "u1"}
}

func TestWatch_InitialAndOrdered(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New()
	_, err := s.Add(ctx, item("Milk", model.Dairy, "11111"))
	require.NoError(t, err)
	_, err = s.Add(ctx, item("Bread", model.Bakery, "11111"))
	require.NoError(t, err)
	_, err = s.Add(ctx, item("Butter", model.Dairy, "11111"))
	require.NoError(t, err)
	_, err = s.Add(ctx, item("Beer", model.Drinks, "22222"))
	require.NoError(t, err)

	ch, err := s.Watch(ctx, "11111")
	require.NoError(t, err)

	snap := next(t, ch)
	require.NoError(t, snap.Err)
	var got []string
	for _, it := range snap.Items {
		got = append(got, it.Name)
	}
	assert.Equal(t, []string{"Bread", "Butter", "Milk"}, got)

	cancel()
	// drained and closed after cancel
	for range ch {
	}
}

func TestWatch_PushesAfterMutations(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New()
	ch, err := s.Watch(ctx, "11111")
	require.NoError(t, err)
	assert.Empty(t, next(t, ch).Items)

	id, err := s.Add(ctx, item("Milk", model.Dairy, "11111"))
	require.NoError(t, err)
	snap := next(t, ch)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, id, snap.Items[0].ID)
	assert.False(t, snap.Items[0].CreatedAt.IsZero())

	done := true
	require.NoError(t, s.Update(ctx, id, model.Patch{Completed: &done}))
	assert.True(t, next(t, ch).Items[0].Completed)

	require.NoError(t, s.Delete(ctx, id))
	assert.Empty(t, next(t, ch).Items)

	cancel()
	for range ch {
	}
}

func TestWatch_OtherListNotNotified(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New()
	ch, err := s.Watch(ctx, "11111")
	require.NoError(t, err)
	next(t, ch)

	_, err = s.Add(ctx, item("Beer", model.Drinks, "22222"))
	require.NoError(t, err)

	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMutations_NotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	q := 3
	assert.ErrorIs(t, s.Update(ctx, "nope", model.Patch{Quantity: &q}), store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "nope"), store.ErrNotFound)
}

func TestClose_ClosesWatchers(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := New()
	ch, err := s.Watch(ctx, "11111")
	require.NoError(t, err)
	next(t, ch)

	require.NoError(t, s.Close(ctx))
	_, ok := <-ch
	assert.False(t, ok)
	cancel()
	// let the watch goroutine observe cancel before leak check
	time.Sleep(10 * time.Millisecond)
}
