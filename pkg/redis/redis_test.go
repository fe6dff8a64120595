package redis

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRedisFaceCount(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := New(Options{Address: mr.Addr()}, quietLogger())
	ctx := context.Background()

	_, ok, err := cache.GetFaceCount(ctx, "photos/a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetFaceCount(ctx, "photos/a.jpg", 3, time.Hour))

	count, ok, err := cache.GetFaceCount(ctx, "photos/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, count)

	assert.Equal(t, time.Hour, mr.TTL(faceCountPrefix+"photos/a.jpg"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = cache.GetFaceCount(ctx, "photos/a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := New(Options{Address: mr.Addr()}, quietLogger())

	require.NoError(t, mr.Set(faceCountPrefix+"b.jpg", "many"))

	_, ok, err := cache.GetFaceCount(context.Background(), "b.jpg")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := New(Options{Address: mr.Addr()}, quietLogger())
	mr.Close()

	_, ok, err := cache.GetFaceCount(context.Background(), "a.jpg")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestMemoryFaceCount(t *testing.T) {
	cache := New(Options{}, quietLogger())
	ctx := context.Background()

	require.NoError(t, cache.SetFaceCount(ctx, "a.jpg", 1, 0))
	require.NoError(t, cache.SetFaceCount(ctx, "b.jpg", 2, time.Nanosecond))
	time.Sleep(time.Millisecond)

	count, ok, err := cache.GetFaceCount(ctx, "a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, count)

	_, ok, err = cache.GetFaceCount(ctx, "b.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}
