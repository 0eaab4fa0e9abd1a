package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
}

func TestReservation_ReleaseOnce(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 64})

	r, err := c.Reserve(64)
	require.NoError(t, err)
	assert.Equal(t, int64(64), r.Bytes())

	_, err = c.Reserve(1)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)

	r.Release()
	r.Release()
	assert.Zero(t, c.MemoryUsage())

	r2, err := c.Reserve(64)
	require.NoError(t, err)
	r2.Release()
}

func TestController_NilSafety(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<20))

	r, err := c.Reserve(10)
	require.NoError(t, err)
	r.Release()

	var nilRes *Reservation
	nilRes.Release()
	assert.Zero(t, nilRes.Bytes())
}

func TestController_AcquireIOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Below one second of budget, so this must not block for long.
	require.NoError(t, c.AcquireIO(t.Context(), 512*1024))
}

func TestController_AcquireIOCanceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 10})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := c.AcquireIO(ctx, 100)
	assert.Error(t, err)
}

func TestRateLimitedIO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewRateLimitedWriter(t.Context(), &buf, c)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	r := NewRateLimitedReader(t.Context(), strings.NewReader("payload"), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	assert.Equal(t, "hello", buf.String())
}
