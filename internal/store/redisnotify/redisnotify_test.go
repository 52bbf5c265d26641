package redisnotify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "shoplist:list:54321", (&Notifier{prefix: "shoplist"}).Channel("54321"))
	assert.Equal(t, "list:54321", (&Notifier{}).Channel("54321"))
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(context.Background(), "", "", zap.NewNop())
	assert.Error(t, err)
}

// Needs a live server: SHOPLIST_TEST_REDIS_URL=redis://localhost:6379/15
func TestPublishSubscribe(t *testing.T) {
	url := os.Getenv("SHOPLIST_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SHOPLIST_TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := New(ctx, url, "shoplist-test", zap.NewNop())
	require.NoError(t, err)
	defer n.Close()

	subCtx, stop := context.WithCancel(ctx)
	sig, err := n.Subscribe(subCtx, "54321")
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, "54321"))
	select {
	case <-sig:
	case <-ctx.Done():
		t.Fatal("no signal received")
	}

	stop()
	for range sig {
	}
}
