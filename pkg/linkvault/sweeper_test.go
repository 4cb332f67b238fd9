package linkvault_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/linkvault/pkg/linkvault"
)

// countingService counts Sweep calls and delegates the rest.
type countingService struct {
	linkvault.Service
	sweeps atomic.Int32
	err    error
}

func (s *countingService) Sweep(ctx context.Context) (int, error) {
	s.sweeps.Add(1)
	if s.err != nil {
		return 0, s.err
	}
	return s.Service.Sweep(ctx)
}

func TestSweeper_RunOnce(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, textRequest("a", linkvault.Policy{TTLMinutes: intPtr(1)}))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	sweeper := linkvault.NewSweeper(f.svc, time.Hour, 0, nil)
	result := sweeper.RunOnce(ctx)
	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Removed)

	result = sweeper.RunOnce(ctx)
	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.Removed)
}

func TestSweeper_RunOnceError(t *testing.T) {
	f := setupService(t)
	svc := &countingService{Service: f.svc, err: errors.New("list failed")}

	result := linkvault.NewSweeper(svc, time.Hour, 0, nil).RunOnce(context.Background())
	assert.Error(t, result.Err)
	assert.Equal(t, 0, result.Removed)
}

func TestSweeper_StartStop(t *testing.T) {
	f := setupService(t)
	svc := &countingService{Service: f.svc}

	sweeper := linkvault.NewSweeper(svc, 10*time.Millisecond, 0, nil)
	sweeper.Start(context.Background())

	assert.Eventually(t, func() bool {
		return svc.sweeps.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	sweeper.Stop()
	stopped := svc.sweeps.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, svc.sweeps.Load())

	// a second Stop is a no-op
	sweeper.Stop()
}

func TestSweeper_StartupDelay(t *testing.T) {
	f := setupService(t)
	svc := &countingService{Service: f.svc}

	sweeper := linkvault.NewSweeper(svc, time.Hour, time.Hour, nil)
	sweeper.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()

	assert.Equal(t, int32(0), svc.sweeps.Load())
}

func TestSweeper_ContextCancel(t *testing.T) {
	f := setupService(t)
	svc := &countingService{Service: f.svc}
	ctx, cancel := context.WithCancel(context.Background())

	sweeper := linkvault.NewSweeper(svc, time.Hour, 0, nil)
	sweeper.Start(ctx)
	assert.Eventually(t, func() bool {
		return svc.sweeps.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	sweeper.Stop()
}

func TestSweeper_DoubleStart(t *testing.T) {
	f := setupService(t)
	svc := &countingService{Service: f.svc}

	sweeper := linkvault.NewSweeper(svc, time.Hour, 0, nil)
	sweeper.Start(context.Background())
	sweeper.Start(context.Background())

	assert.Eventually(t, func() bool {
		return svc.sweeps.Load() >= 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), svc.sweeps.Load())

	sweeper.Stop()
	sweeper.Stop()
}

func TestSweeper_ConcurrentStartStop(t *testing.T) {
	f := setupService(t)
	svc := &countingService{Service: f.svc}
	sweeper := linkvault.NewSweeper(svc, time.Millisecond, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sweeper.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			sweeper.Stop()
		}()
	}
	wg.Wait()

	sweeper.Stop()
	stopped := svc.sweeps.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, svc.sweeps.Load())
}
