package clock

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemIsMonotonic(t *testing.T) {
	c := NewSystem()

	prev := c.NowUs()
	for i := 0; i < 1000; i++ {
		now := c.NowUs()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

func TestSystemReset(t *testing.T) {
	c := NewSystem()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, c.NowUs(), int64(5000))

	c.Reset()
	assert.Less(t, c.NowUs(), int64(5000))
	assert.GreaterOrEqual(t, c.NowUs(), int64(0))
}

func TestManual(t *testing.T) {
	c := NewManual(100)
	assert.Equal(t, int64(100), c.NowUs())

	assert.Equal(t, int64(105), c.Advance(5))
	c.Set(42)
	assert.Equal(t, int64(42), c.NowUs())

	c.Reset()
	assert.Equal(t, int64(0), c.NowUs())
}

func TestMonotonic(t *testing.T) {
	c, err := NewMonotonic()
	if runtime.GOOS != "linux" {
		assert.ErrorIs(t, err, ErrUnsupported)
		return
	}
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	first := c.NowUs()
	assert.GreaterOrEqual(t, first, int64(2000))

	c.Reset()
	assert.Less(t, c.NowUs(), first)
}
