package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_runs_in_post_order(t *testing.T) {
	q := New(nil)
	defer q.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		q.Post(func() { got = append(got, i) })
	}
	q.Flush()

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueue_serializes_concurrent_posts(t *testing.T) {
	q := New(nil)
	defer q.Close()

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Post(func() {
				n := atomic.AddInt32(&running, 1)
				if n > atomic.LoadInt32(&maxRunning) {
					atomic.StoreInt32(&maxRunning, n)
				}
				atomic.AddInt32(&running, -1)
			})
		}()
	}
	wg.Wait()
	q.Flush()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
}

func TestQueue_close_drains_then_drops(t *testing.T) {
	q := New(nil)

	var ran int32
	for i := 0; i < 10; i++ {
		q.Post(func() { atomic.AddInt32(&ran, 1) })
	}
	q.Close()

	assert.Equal(t, int32(10), atomic.LoadInt32(&ran))
	assert.False(t, q.Post(func() { atomic.AddInt32(&ran, 1) }))
	q.Flush() // must not block after close
	q.Close() // second close is a no-op
}

func TestQueue_survives_panic(t *testing.T) {
	q := New(nil)
	defer q.Close()

	q.Post(func() { panic("boom") })
	var ok bool
	q.Post(func() { ok = true })
	q.Flush()

	assert.True(t, ok)
}
