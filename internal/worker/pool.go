// Package worker renders animation frames in parallel. Each task is one
// shading time; results come back in task order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Generator renders and stores one frame.
// animation.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, task Task) (path string, err error)
}

// Task is one frame of the animation.
type Task struct {
	Index int
	// Time is the shading time the frame is rendered at.
	Time float64
	// Force re-renders frames that already exist on disk.
	Force bool
}

func (t Task) String() string {
	return fmt.Sprintf("frame %d (t=%.3fs)", t.Index, t.Time)
}

// Result is the outcome of a frame task. Elapsed is zero for tasks that
// never reached the generator.
type Result struct {
	Task    Task
	Path    string
	Err     error
	Elapsed time.Duration
}

// ProgressFunc observes every result as soon as its frame finishes.
// Calls are serialized.
type ProgressFunc func(Result)

type Config struct {
	Workers    int
	Generator  Generator
	OnProgress ProgressFunc
}

// Pool renders frames with a fixed number of workers.
type Pool struct {
	workers    int
	generator  Generator
	onProgress ProgressFunc
}

func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

type indexed struct {
	pos    int
	result Result
}

// Run renders all tasks and blocks until every task has a result.
// results[i] belongs to tasks[i]. After ctx is cancelled the remaining
// frames are not rendered and carry ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan int)
	resultCh := make(chan indexed, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range taskCh {
				resultCh <- indexed{pos: pos, result: p.render(ctx, tasks[pos])}
			}
		}()
	}

	fed := make(chan int, 1)
	go func() {
		defer close(taskCh)
		for pos := range tasks {
			select {
			case taskCh <- pos:
			case <-ctx.Done():
				fed <- pos
				return
			}
		}
		fed <- len(tasks)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, len(tasks))
	for r := range resultCh {
		results[r.pos] = r.result
		p.report(r.result)
	}

	for pos := <-fed; pos < len(tasks); pos++ {
		results[pos] = Result{Task: tasks[pos], Err: ctx.Err()}
		p.report(results[pos])
	}
	return results
}

func (p *Pool) render(ctx context.Context, task Task) Result {
	if err := ctx.Err(); err != nil {
		return Result{Task: task, Err: err}
	}
	start := time.Now()
	path, err := p.generator.Generate(ctx, task)
	return Result{
		Task:    task,
		Path:    path,
		Err:     err,
		Elapsed: time.Since(start),
	}
}

func (p *Pool) report(r Result) {
	if p.onProgress != nil {
		p.onProgress(r)
	}
}
