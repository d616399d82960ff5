package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauserRunningDoesNotBlock(t *testing.T) {
	p := NewPauser()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))

	paused, total := p.Paused()
	assert.False(t, paused)
	assert.Zero(t, total)
}

func TestPauserPauseResumeIdempotent(t *testing.T) {
	p := NewPauser()
	assert.True(t, p.Pause())
	assert.False(t, p.Pause(), "second pause is a no-op")
	assert.True(t, p.Resume())
	assert.False(t, p.Resume(), "second resume is a no-op")

	assert.True(t, p.Toggle())
	assert.False(t, p.Toggle())
}

func TestPauserParksWorkersUntilResume(t *testing.T) {
	p := NewPauser()
	p.Pause()

	const workers = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Wait(context.Background()))
		}()
	}

	require.Eventually(t, func() bool { return p.Parked() == workers }, 2*time.Second, 5*time.Millisecond)
	p.Resume()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers still parked after resume")
	}
	assert.Zero(t, p.Parked())
}

func TestPauserAccumulatesPausedTime(t *testing.T) {
	p := NewPauser()

	p.Pause()
	time.Sleep(50 * time.Millisecond)
	paused, ongoing := p.Paused()
	assert.True(t, paused)
	assert.GreaterOrEqual(t, ongoing, 40*time.Millisecond)
	p.Resume()

	p.Pause()
	time.Sleep(50 * time.Millisecond)
	p.Resume()
	time.Sleep(20 * time.Millisecond)

	paused, total := p.Paused()
	assert.False(t, paused)
	assert.GreaterOrEqual(t, total, 80*time.Millisecond)
	assert.Less(t, total, time.Second)
}

func TestPauserWaitHonoursContext(t *testing.T) {
	p := NewPauser()
	p.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
	assert.Zero(t, p.Parked())
}

func TestPauserGatesSequentialScan(t *testing.T) {
	p := NewPauser()
	p.Pause()
	ds := descriptors(3)

	results := make(chan []Result, 1)
	go func() {
		results <- Scan(context.Background(), ds, ScanConfig{Resolver: &fakeResolver{}, Pauser: p}, nil)
	}()

	require.Eventually(t, func() bool { return p.Parked() == 1 }, 2*time.Second, 5*time.Millisecond)
	select {
	case <-results:
		t.Fatal("scan finished while paused")
	default:
	}

	p.Resume()
	select {
	case rs := <-results:
		assert.Len(t, rs, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("scan did not finish after resume")
	}
}

func TestNilPauserNeverBlocks(t *testing.T) {
	var p *Pauser
	assert.NoError(t, p.Wait(context.Background()))
}
