package local

import (
	"context"
	"testing"
	"time"

	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/model"
	registrycache "github.com/chirino/askbox/internal/registry/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCache(t *testing.T) {
	c, err := New(100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	h, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, h)

	require.NoError(t, c.Set(ctx, model.Handle{ScreenName: "alice", UID: "u1", Email: "alice@gmail.com"}, 0))
	c.Wait()

	h, err = c.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "u1", h.UID)
	assert.Equal(t, "alice", h.ScreenName)
}

func TestHandleCache_Expiry(t *testing.T) {
	c, err := New(100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, model.Handle{ScreenName: "brief", UID: "u2"}, 50*time.Millisecond))
	c.Wait()

	assert.Eventually(t, func() bool {
		h, err := c.Get(ctx, "brief")
		return err == nil && h == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNew_RejectsEmptyCache(t *testing.T) {
	_, err := New(0, time.Minute)
	assert.Error(t, err)
}

func TestRegisteredLoader(t *testing.T) {
	cfg := config.DefaultConfig()
	loader, err := registrycache.Select("local")
	require.NoError(t, err)

	c, err := loader(config.WithContext(context.Background(), &cfg))
	require.NoError(t, err)
	assert.True(t, c.Available())
}
