package trajectory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(xs ...float64) core.Polyline {
	out := make(core.Polyline, len(xs))
	for i, x := range xs {
		out[i] = core.Pos(x, 0)
	}
	return out
}

func TestCache_NewCache(t *testing.T) {
	c := NewCache()

	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, StatusEmpty, c.Get(3).Status)
	assert.True(t, c.Stale(3, 1))
}

func TestCache_StoreAndGet(t *testing.T) {
	c := NewCache()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	require.True(t, c.Store(1, 5, line(1, 2)))

	e := c.Get(1)
	assert.Equal(t, StatusFresh, e.Status)
	assert.Equal(t, uint64(5), e.Revision)
	assert.Equal(t, line(1, 2), e.Polyline)
	assert.Equal(t, fixed, e.UpdatedAt)
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Stale(1, 5))
	assert.True(t, c.Stale(1, 6))
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := NewCache()
	c.Store(0, 1, line(1, 2))

	e := c.Get(0)
	e.Polyline[0] = core.Pos(99, 99)

	assert.Equal(t, line(1, 2), c.Get(0).Polyline)
}

func TestCache_DropsOlderResults(t *testing.T) {
	c := NewCache()
	c.Store(0, 10, line(1))

	assert.False(t, c.Store(0, 9, line(2)))
	assert.False(t, c.Fail(0, 9, errors.New("late")))
	assert.Equal(t, line(1), c.Get(0).Polyline)
	assert.Equal(t, StatusFresh, c.Get(0).Status)
}

func TestCache_FailKeepsLastGood(t *testing.T) {
	c := NewCache()
	c.Store(0, 1, line(1, 2))
	boom := errors.New("boom")

	require.True(t, c.Fail(0, 2, boom))

	e := c.Get(0)
	assert.Equal(t, StatusStale, e.Status)
	assert.ErrorIs(t, e.Err, boom)
	assert.Equal(t, line(1, 2), e.Polyline)
	assert.False(t, c.Stale(0, 2), "failed revision is not retried")

	c.Store(0, 3, line(3))
	assert.NoError(t, c.Get(0).Err)
}

func TestCache_Pending(t *testing.T) {
	c := NewCache()
	c.Store(0, 1, line(1))

	c.MarkPending(0, 2)
	assert.Equal(t, StatusPending, c.Get(0).Status)
	assert.False(t, c.Stale(0, 2), "in-flight revision is not re-requested")

	c.MarkPending(0, 3)
	c.Store(0, 2, line(2))
	assert.Equal(t, StatusPending, c.Get(0).Status, "newer request still in flight")

	c.Store(0, 3, line(3))
	assert.Equal(t, StatusFresh, c.Get(0).Status)
}

func TestCache_RetireAndTruncate(t *testing.T) {
	c := NewCache()
	c.Store(0, 1, line(0))
	c.Store(1, 2, line(1))
	c.Store(2, 3, line(2))

	c.Retire(1)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, line(2), c.Get(1).Polyline)

	c.Retire(9)
	assert.Equal(t, 2, c.Len())

	c.Truncate(1)
	assert.Equal(t, 1, c.Len())
	assert.Len(t, c.All(), 1)
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for rev := uint64(1); rev <= 50; rev++ {
				c.Store(i, rev, line(float64(rev)))
				_ = c.Get(i)
				_ = c.All()
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.Equal(t, uint64(50), c.Get(i).Revision)
	}
}

func TestCache_TicketComplete(t *testing.T) {
	c := NewCache()

	tk := c.Request(0, 4)
	assert.False(t, c.Stale(0, 4))
	require.True(t, c.Complete(tk, line(1)))

	assert.Equal(t, StatusFresh, c.Get(0).Status)
	assert.Equal(t, uint64(4), c.Get(0).Revision)
}

func TestCache_RetireInvalidatesTickets(t *testing.T) {
	c := NewCache()
	c.Store(0, 1, line(0))
	c.Store(1, 2, line(1))
	c.Store(2, 3, line(2))
	moved := c.Request(2, 7)
	gone := c.Request(1, 6)

	c.Retire(1)

	assert.False(t, c.Complete(gone, line(9)))
	assert.False(t, c.Abort(moved, errors.New("late")))
	assert.Equal(t, line(2), c.Get(1).Polyline, "entry shifted with its routine")
	assert.Equal(t, StatusFresh, c.Get(1).Status)
	assert.True(t, c.Stale(1, 7), "invalidated request is issued again")
}

func TestCache_Release(t *testing.T) {
	c := NewCache()
	c.Store(0, 1, line(1))

	tk := c.Request(0, 2)
	c.Release(tk)

	assert.True(t, c.Stale(0, 2))
	assert.Equal(t, StatusFresh, c.Get(0).Status)
}
