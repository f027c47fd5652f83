package healthrun

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"missioncontrol/internal/errors"
	"missioncontrol/internal/store"
	"missioncontrol/internal/telemetry"
)

type fakeService struct {
	items    []store.Integration
	results  map[string]string
	listErr  error
	gate     chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32

	mu     sync.Mutex
	tested []string
}

func (f *fakeService) List(context.Context) ([]store.Integration, error) {
	return f.items, f.listErr
}

func (f *fakeService) RunTest(ctx context.Context, id string) (store.Integration, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return store.Integration{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.tested = append(f.tested, id)
	f.mu.Unlock()

	status, ok := f.results[id]
	if !ok {
		return store.Integration{}, errors.Wrap(errors.ErrTestFailed, id)
	}
	return store.Integration{ID: id, Status: status}, nil
}

func items(ids ...string) []store.Integration {
	out := make([]store.Integration, 0, len(ids))
	for _, id := range ids {
		out = append(out, store.Integration{ID: id})
	}
	return out
}

func TestSweep_Tallies(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		items: items("a", "b", "c", "d", "e"),
		results: map[string]string{
			"a": store.StatusConnected,
			"b": store.StatusConnected,
			"c": store.StatusBroken,
			"d": store.StatusUnknown,
		},
	}
	metrics := &telemetry.Metrics{}
	r := New(svc, WithMetrics(metrics), WithConcurrency(2))

	sum, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 2, sum.Connected)
	assert.Equal(t, 1, sum.Broken)
	assert.Equal(t, 1, sum.Unknown)
	assert.Equal(t, 1, sum.Errors)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, svc.tested)
	assert.Equal(t, uint64(1), metrics.SweepRuns.Load())
}

func TestSweep_RespectsConcurrency(t *testing.T) {
	t.Parallel()

	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	results := map[string]string{}
	for _, id := range ids {
		results[id] = store.StatusConnected
	}
	svc := &fakeService{items: items(ids...), results: results, gate: make(chan struct{})}
	r := New(svc, WithConcurrency(3))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Sweep(context.Background())
	}()

	require.Eventually(t, func() bool { return svc.inFlight.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	close(svc.gate)
	<-done
	assert.Equal(t, int32(3), svc.peak.Load())
}

func TestSweep_RejectsOverlap(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		items:   items("a"),
		results: map[string]string{"a": store.StatusConnected},
		gate:    make(chan struct{}),
	}
	r := New(svc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Sweep(context.Background())
	}()
	require.Eventually(t, func() bool { return svc.inFlight.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := r.Sweep(context.Background())
	require.ErrorIs(t, err, ErrSweepInProgress)

	close(svc.gate)
	<-done
}

func TestSweep_ListError(t *testing.T) {
	t.Parallel()

	metrics := &telemetry.Metrics{}
	r := New(&fakeService{listErr: errors.ErrStoreUnavailable}, WithMetrics(metrics))
	_, err := r.Sweep(context.Background())
	require.ErrorIs(t, err, errors.ErrStoreUnavailable)
	assert.Zero(t, metrics.SweepRuns.Load())
}

func TestSweep_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := &fakeService{items: items("a", "b"), results: map[string]string{"a": store.StatusConnected, "b": store.StatusConnected}}

	_, err := New(svc).Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, svc.tested)
}

func TestStart_RunsOnSchedule(t *testing.T) {
	t.Parallel()

	metrics := &telemetry.Metrics{}
	svc := &fakeService{items: items("a"), results: map[string]string{"a": store.StatusConnected}}
	r := New(svc, WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx, "@every 1s"))
	require.Error(t, r.Start(ctx, "@every 1s"), "second start")

	require.Eventually(t, func() bool { return metrics.SweepRuns.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	r.Stop()
	r.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	t.Parallel()

	err := New(&fakeService{}).Start(context.Background(), "every tuesday")
	require.ErrorIs(t, err, errors.ErrConfigInvalid)
}
