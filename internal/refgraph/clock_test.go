package refgraph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_StartsAtOne(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_StampsEvents(t *testing.T) {
	c := NewClock()
	sim := New(WithClock(c), WithTokenGenerator(NewFixedGenerator("clock")))

	a := sim.CreateObject("A")
	require.NoError(t, sim.ReleaseStrong(Root, a))

	events := sim.Events()
	require.NotEmpty(t, events)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, int64(len(events)), c.Current())
}

type stepSequencer struct{ n int64 }

func (s *stepSequencer) Next() int64 {
	s.n += 10
	return s.n
}

func TestClock_CustomSequencer(t *testing.T) {
	sim := New(WithClock(&stepSequencer{}), WithTokenGenerator(NewFixedGenerator("step")))
	sim.CreateObject("A")

	var seqs []int64
	for _, e := range sim.Events() {
		seqs = append(seqs, e.Seq)
	}
	assert.Equal(t, []int64{10, 20}, seqs)
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const workers, calls = 20, 200

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*calls)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				v := c.Next()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), c.Current())
}
