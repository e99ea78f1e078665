package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gate is a pass that blocks until released, counting its runs.
type gate struct {
	runs    atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) pass(ctx context.Context) error {
	g.runs.Add(1)
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return nil
}

func start(t *testing.T, u *Updater) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = u.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestUpdater_CoalescesTriggers(t *testing.T) {
	g := newGate()
	u := New(g.pass)
	start(t, u)

	u.Trigger()
	<-g.entered

	// Many triggers while the first pass runs.
	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.Trigger()
		}()
	}
	wg.Wait()

	close(g.release)
	<-g.entered
	require.Eventually(t, func() bool { return u.Passes() == 2 }, time.Second, time.Millisecond)

	// No third pass follows.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), g.runs.Load())
}

func TestUpdater_SyncWaitsForFreshPass(t *testing.T) {
	g := newGate()
	u := New(g.pass)
	start(t, u)

	u.Trigger()
	<-g.entered

	// The running pass started before Sync, so Sync waits for the next one.
	synced := make(chan error, 1)
	go func() { synced <- u.Sync(context.Background()) }()

	close(g.release)
	require.NoError(t, <-synced)
	assert.Equal(t, int32(2), g.runs.Load())
}

func TestUpdater_SyncReturnsPassError(t *testing.T) {
	boom := errors.New("boom")
	u := New(func(context.Context) error { return boom })
	start(t, u)

	assert.ErrorIs(t, u.Sync(context.Background()), boom)
}

func TestUpdater_SyncHonorsContext(t *testing.T) {
	u := New(func(context.Context) error { return nil })
	// Not running: Sync can only end through its context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, u.Sync(ctx), context.DeadlineExceeded)
}

func TestUpdater_PeriodicPasses(t *testing.T) {
	var runs atomic.Int32
	u := New(func(context.Context) error {
		runs.Add(1)
		return nil
	}, WithInterval(5*time.Millisecond))
	start(t, u)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
}
