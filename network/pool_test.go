package network

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(4, 64)
	defer p.Stop()

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		p.Submit(func(w *Worker) {
			count.Add(1)
		})
	}
	p.Wait()

	assert.Equal(t, int64(100), count.Load())
}

func TestPoolWaitIsABarrier(t *testing.T) {
	p := NewPool(2, 16)
	defer p.Stop()

	var mu sync.Mutex
	done := 0

	for round := 0; round < 3; round++ {
		for i := 0; i < 8; i++ {
			p.Submit(func(w *Worker) {
				mu.Lock()
				done++
				mu.Unlock()
			})
		}
		p.Wait()

		mu.Lock()
		assert.Equal(t, (round+1)*8, done)
		mu.Unlock()
	}
}

func TestPoolWorkerState(t *testing.T) {
	p := NewPool(2, 8)
	defer p.Stop()

	var mu sync.Mutex
	seen := map[*Worker]bool{}

	for i := 0; i < 32; i++ {
		p.Submit(func(w *Worker) {
			mu.Lock()
			defer mu.Unlock()
			seen[w] = true
			assert.NotNil(t, w.Scratch)
			assert.NotNil(t, w.Rand)
		})
	}
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, len(seen), 2)
	assert.Greater(t, len(seen), 0)
}
