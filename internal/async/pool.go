// Package async runs independent tasks with bounded concurrency. The report
// engines use it to fan out sub-queries that share no data dependency and
// join them before returning.
package async

import (
	"context"
	"sync"
)

// Task is one unit of independent work. Run must honor ctx cancellation.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool bounds how many tasks execute at once.
type Pool struct {
	workers int
}

// NewPool returns a pool with the given worker count (minimum 1).
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes all tasks and blocks until every started task has finished.
// The first error cancels the remaining tasks and is returned; tasks already
// in flight observe the cancellation through their context. Results are
// whatever the task closures wrote; Run only reports success or the first
// failure.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return ctx.Err()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan Task)
	var wg sync.WaitGroup

	var once sync.Once
	var firstErr error
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if runCtx.Err() != nil {
					continue
				}
				if err := task.Run(runCtx); err != nil {
					fail(err)
				}
			}
		}()
	}

	for _, task := range tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
