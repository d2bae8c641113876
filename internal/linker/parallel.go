package linker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkGroup fans a slice of independent tasks out across a bounded worker
// pool and stops at the first error, the Go equivalent of a work-stealing
// task group. Link does not use it: input-file loading, relocation
// scanning and every other pass in link.go run sequentially.
type WorkGroup struct {
	g   *errgroup.Group
	ctx context.Context
}

func NewWorkGroup(threadCount int) *WorkGroup {
	g, ctx := errgroup.WithContext(context.Background())
	n := threadCount
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(n)
	return &WorkGroup{g: g, ctx: ctx}
}

func (w *WorkGroup) Go(fn func() error) { w.g.Go(fn) }

func (w *WorkGroup) Wait() error { return w.g.Wait() }

// ForEach runs fn(i) for every index in [0, n) across the work group and
// waits for them all, returning the first error encountered if any.
func ForEach(threadCount, n int, fn func(i int) error) error {
	wg := NewWorkGroup(threadCount)
	for i := 0; i < n; i++ {
		i := i
		wg.Go(func() error { return fn(i) })
	}
	return wg.Wait()
}
