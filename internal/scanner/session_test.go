package scanner

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/proxyftp/internal/descriptor"
	"github.com/maxvaer/proxyftp/internal/tunnel"
)

// fakeResolver succeeds for even target octets and fails the rest.
type fakeResolver struct {
	jitter time.Duration
	calls  atomic.Int32
}

func (f *fakeResolver) Resolve(ctx context.Context, d descriptor.Descriptor, path string) Outcome {
	f.calls.Add(1)

	if f.jitter > 0 {
		select {
		case <-time.After(time.Duration(rand.Int63n(int64(f.jitter)))):
		case <-ctx.Done():
			return Outcome{Status: Timeout, Error: ctx.Err().Error()}
		}
	}
	var last int
	fmt.Sscanf(d.TargetHost, "10.0.1.%d", &last)
	if last%2 == 0 {
		return Outcome{Status: Success, WorkingVersion: tunnel.SOCKS5, Path: path}
	}
	return Outcome{Status: DeadProxy, Error: "refused", Path: path}
}

func descriptors(n int) []descriptor.Descriptor {
	ds := make([]descriptor.Descriptor, n)
	for i := range ds {
		ds[i] = descriptor.Descriptor{
			Version:    tunnel.SOCKS5,
			ProxyHost:  fmt.Sprintf("10.0.0.%d", i),
			ProxyPort:  1080,
			TargetHost: fmt.Sprintf("10.0.1.%d", i),
		}
	}
	return ds
}

func assertInputOrder(t *testing.T, ds []descriptor.Descriptor, results []Result) {
	t.Helper()
	require.Len(t, results, len(ds))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, ds[i], r.Descriptor)
		if i%2 == 0 {
			assert.Equal(t, Success, r.Outcome.Status)
		} else {
			assert.Equal(t, DeadProxy, r.Outcome.Status)
		}
	}
}

func TestScanSequential(t *testing.T) {
	ds := descriptors(5)
	var order []int
	results := Scan(context.Background(), ds, ScanConfig{Resolver: &fakeResolver{}, Path: "/pub"},
		func(done, total int, r Result) {
			assert.Equal(t, 5, total)
			assert.Equal(t, len(order)+1, done)
			order = append(order, r.Index)
		})

	assertInputOrder(t, ds, results)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, "/pub", results[0].Outcome.Path)
}

func TestScanParallelKeepsInputOrder(t *testing.T) {
	ds := descriptors(40)
	res := &fakeResolver{jitter: 5 * time.Millisecond}
	var progress atomic.Int32

	results := Scan(context.Background(), ds, ScanConfig{Resolver: res, Threads: 8},
		func(int, int, Result) { progress.Add(1) })

	assertInputOrder(t, ds, results)
	assert.EqualValues(t, 40, progress.Load())
	assert.EqualValues(t, 40, res.calls.Load())
}

func TestScanEmpty(t *testing.T) {
	assert.Empty(t, Scan(context.Background(), nil, ScanConfig{Resolver: &fakeResolver{}}, nil))
	assert.Empty(t, Scan(context.Background(), nil, ScanConfig{Resolver: &fakeResolver{}, Threads: 4}, nil))
}

func TestScanCancelReturnsPartial(t *testing.T) {
	for _, threads := range []int{1, 4} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			ds := descriptors(50)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			results := Scan(ctx, ds, ScanConfig{Resolver: &fakeResolver{}, Threads: threads},
				func(done, _ int, _ Result) {
					if done == 3 {
						cancel()
					}
				})

			assert.GreaterOrEqual(t, len(results), 3)
			assert.Less(t, len(results), 50)
			for i := 1; i < len(results); i++ {
				assert.Less(t, results[i-1].Index, results[i].Index)
			}
		})
	}
}

func TestScanTargetTimeout(t *testing.T) {
	ds := descriptors(1)
	res := &fakeResolver{jitter: time.Hour}

	start := time.Now()
	results := Scan(context.Background(), ds, ScanConfig{Resolver: res, TargetTimeout: 50 * time.Millisecond}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, Timeout, results[0].Outcome.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScanThrottlesPerProxy(t *testing.T) {
	ds := descriptors(3)
	for i := range ds {
		ds[i].ProxyHost = "10.0.0.9"
	}
	res := &fakeResolver{}
	cfg := ScanConfig{Resolver: res, Threads: 3, Throttler: NewThrottler(40*time.Millisecond, 1)}

	start := time.Now()
	results := Scan(context.Background(), ds, cfg, nil)
	require.Len(t, results, 3)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestSessionIDs(t *testing.T) {
	a := NewSession(nil, ScanConfig{})
	b := NewSession(nil, ScanConfig{})
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestThrottlerNilAndDisabled(t *testing.T) {
	var nilT *Throttler
	require.NoError(t, nilT.Wait(context.Background(), "x"))
	require.NoError(t, NewThrottler(0, 1).Wait(context.Background(), "x"))

	th := NewThrottler(time.Hour, 1)
	require.NoError(t, th.Wait(context.Background(), "a"))
	require.NoError(t, th.Wait(context.Background(), "b"), "distinct proxies do not share a bucket")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, th.Wait(ctx, "a"))
}

func TestRunWorkerPoolDeliversAll(t *testing.T) {
	items := make([]WorkItem, 20)
	for i := range items {
		items[i] = WorkItem{Index: i}
	}
	seen := map[int]bool{}
	for r := range RunWorkerPool(context.Background(), items, WorkerConfig{Threads: 4},
		func(context.Context, WorkItem) Outcome { return Outcome{Status: Success} }) {
		seen[r.Index] = true
	}
	assert.Len(t, seen, 20)
}
