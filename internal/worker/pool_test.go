package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameGenerator pretends to shade frames; frames listed in fail error out.
type frameGenerator struct {
	fail    map[int]bool
	delay   time.Duration
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
	times   []float64
}

func (g *frameGenerator) Generate(ctx context.Context, task Task) (string, error) {
	g.calls.Add(1)
	n := g.running.Add(1)
	defer g.running.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(g.delay):
	}

	g.mu.Lock()
	g.times = append(g.times, task.Time)
	g.mu.Unlock()

	if g.fail[task.Index] {
		return "", fmt.Errorf("shading failed at t=%g", task.Time)
	}
	return fmt.Sprintf("out/frame_%05d.png", task.Index), nil
}

// frameTasks mirrors animation.Generator.Tasks at 30 fps.
func frameTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{Index: i, Time: float64(i) / 30}
	}
	return tasks
}

func TestPoolResultsFollowTaskOrder(t *testing.T) {
	gen := &frameGenerator{delay: time.Millisecond}
	pool := New(Config{Workers: 4, Generator: gen})

	tasks := frameTasks(24)
	results := pool.Run(context.Background(), tasks)

	require.Len(t, results, len(tasks))
	for i, r := range results {
		require.NoError(t, r.Err, r.Task.String())
		assert.Equal(t, tasks[i], r.Task)
		assert.Equal(t, fmt.Sprintf("out/frame_%05d.png", i), r.Path)
		assert.Positive(t, r.Elapsed)
	}
	assert.Equal(t, int32(24), gen.calls.Load())

	want := make([]float64, len(tasks))
	for i, task := range tasks {
		want[i] = task.Time
	}
	assert.ElementsMatch(t, want, gen.times)
}

func TestPoolRunsWorkersConcurrently(t *testing.T) {
	gen := &frameGenerator{delay: 20 * time.Millisecond}
	pool := New(Config{Workers: 3, Generator: gen})

	pool.Run(context.Background(), frameTasks(9))

	assert.Equal(t, int32(3), gen.peak.Load())
}

func TestPoolZeroWorkersRendersSerially(t *testing.T) {
	gen := &frameGenerator{}
	pool := New(Config{Generator: gen})

	results := pool.Run(context.Background(), frameTasks(5))
	require.Len(t, results, 5)
	assert.Equal(t, int32(1), gen.peak.Load())
}

func TestPoolReportsFailedFrames(t *testing.T) {
	gen := &frameGenerator{fail: map[int]bool{2: true, 5: true}}
	pool := New(Config{Workers: 2, Generator: gen})

	results := pool.Run(context.Background(), frameTasks(6))

	var failed []int
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Task.Index)
			assert.Empty(t, r.Path)
		}
	}
	assert.Equal(t, []int{2, 5}, failed)
	assert.ErrorContains(t, results[5].Err, "t=0.16666")
}

func TestPoolCancellationFillsRemainingFrames(t *testing.T) {
	gen := &frameGenerator{delay: 50 * time.Millisecond}
	pool := New(Config{Workers: 2, Generator: gen})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	results := pool.Run(ctx, frameTasks(20))
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i, r.Task.Index)
		assert.ErrorIs(t, r.Err, context.Canceled, r.Task.String())
	}
	assert.Less(t, gen.calls.Load(), int32(20))
}

func TestPoolProgressSeesEveryFrame(t *testing.T) {
	gen := &frameGenerator{fail: map[int]bool{3: true}}

	var seen []int
	var failed int
	pool := New(Config{
		Workers:   3,
		Generator: gen,
		OnProgress: func(r Result) {
			// serialized by the pool
			seen = append(seen, r.Task.Index)
			if r.Err != nil {
				failed++
			}
		},
	})

	pool.Run(context.Background(), frameTasks(10))

	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
	assert.Equal(t, 1, failed)
}

func TestPoolEmpty(t *testing.T) {
	pool := New(Config{Workers: 2, Generator: &frameGenerator{}})
	assert.Nil(t, pool.Run(context.Background(), nil))
}

func TestTaskString(t *testing.T) {
	assert.Equal(t, "frame 45 (t=1.500s)", Task{Index: 45, Time: 1.5}.String())
}

var _ Generator = (*frameGenerator)(nil)
