package scanner

import (
	"context"
	"sync"
)

// ResolveFunc resolves one work item. The pool calls it from many
// goroutines at once; each call must build its own tunnel.
type ResolveFunc func(ctx context.Context, item WorkItem) Outcome

// WorkerConfig holds options for the worker pool.
type WorkerConfig struct {
	Threads   int
	Throttler *Throttler // nil = no per-proxy spacing
	Pauser    *Pauser    // nil = no pause support
}

// RunWorkerPool fans out work items across workers and returns a channel
// of results in completion order. The channel is closed when all items have
// been processed or ctx is done. Items interrupted by cancellation produce
// no result.
func RunWorkerPool(
	ctx context.Context,
	items []WorkItem,
	cfg WorkerConfig,
	resolve ResolveFunc,
) <-chan Result {
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}
	itemsCh := make(chan WorkItem, threads*2)
	resultsCh := make(chan Result, threads*2)

	var wg sync.WaitGroup

	// Producer: feed items into channel.
	go func() {
		defer close(itemsCh)
		for _, item := range items {
			select {
			case itemsCh <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Workers: consume items, produce results.
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemsCh {
				if err := cfg.Pauser.Wait(ctx); err != nil {
					return
				}
				if err := cfg.Throttler.Wait(ctx, item.Descriptor.ProxyAddr()); err != nil {
					return
				}

				out := resolve(ctx, item)
				if ctx.Err() != nil {
					return
				}
				resultsCh <- Result{Index: item.Index, Descriptor: item.Descriptor, Outcome: out}
			}
		}()
	}

	// Closer: when all workers finish, close the results channel.
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	return resultsCh
}
