package qrcode_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/qrcode"
)

func TestCache(t *testing.T) {
	t.Parallel()

	t.Run("second call returns the cached image", func(t *testing.T) {
		t.Parallel()

		c := qrcode.NewCache(4)
		first, err := c.PNG("AbC123DeF456GhI789JkL012MnO345Pq", 128)
		require.NoError(t, err)
		second, err := c.PNG("AbC123DeF456GhI789JkL012MnO345Pq", 128)
		require.NoError(t, err)

		assert.Same(t, &first[0], &second[0])
		assert.Equal(t, 1, c.Len())
	})

	t.Run("zero size shares the default size entry", func(t *testing.T) {
		t.Parallel()

		c := qrcode.NewCache(4)
		_, err := c.PNG("code", 0)
		require.NoError(t, err)
		_, err = c.PNG("code", qrcode.DefaultSize)
		require.NoError(t, err)

		assert.Equal(t, 1, c.Len())
	})

	t.Run("evicts the least recently used image", func(t *testing.T) {
		t.Parallel()

		c := qrcode.NewCache(2)
		a, err := c.PNG("a", 64)
		require.NoError(t, err)
		_, err = c.PNG("b", 64)
		require.NoError(t, err)

		// Touch a so b becomes the oldest.
		_, err = c.PNG("a", 64)
		require.NoError(t, err)
		_, err = c.PNG("c", 64)
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())

		again, err := c.PNG("a", 64)
		require.NoError(t, err)
		assert.Same(t, &a[0], &again[0])
	})

	t.Run("errors are not cached", func(t *testing.T) {
		t.Parallel()

		c := qrcode.NewCache(2)
		_, err := c.PNG("", 64)
		require.ErrorIs(t, err, qrcode.ErrEmptyContent)
		_, err = c.PNG("code", qrcode.MaxSize+1)
		require.ErrorIs(t, err, qrcode.ErrInvalidSize)
		assert.Zero(t, c.Len())
	})

	t.Run("non-positive capacity uses the default", func(t *testing.T) {
		t.Parallel()

		c := qrcode.NewCache(0)
		for i := range 3 {
			_, err := c.PNG(string(rune('a'+i)), 64)
			require.NoError(t, err)
		}
		assert.Equal(t, 3, c.Len())
	})

	t.Run("concurrent renders of one code keep one entry", func(t *testing.T) {
		t.Parallel()

		c := qrcode.NewCache(8)
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.PNG("shared", 64)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, c.Len())
	})
}
