// Package healthrun tests every integration on a schedule.
package healthrun

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"missioncontrol/internal/errors"
	"missioncontrol/internal/store"
	"missioncontrol/internal/telemetry"
)

// ErrSweepInProgress is returned when a sweep is requested while one runs.
var ErrSweepInProgress = errors.New("sweep already in progress")

// IntegrationService runs and records individual tests.
type IntegrationService interface {
	List(ctx context.Context) ([]store.Integration, error)
	RunTest(ctx context.Context, id string) (store.Integration, error)
}

// Summary tallies one sweep. Errors counts integrations whose test could not
// be recorded.
type Summary struct {
	Total     int           `json:"total"`
	Connected int           `json:"connected"`
	Broken    int           `json:"broken"`
	Unknown   int           `json:"unknown"`
	Errors    int           `json:"errors"`
	Elapsed   time.Duration `json:"elapsed"`
}

type Runner struct {
	service     IntegrationService
	concurrency int
	metrics     *telemetry.Metrics
	logger      zerolog.Logger

	sweeping sync.Mutex

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Runner)

// WithConcurrency bounds how many tests run at once. Values below one mean one.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = max(n, 1) }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.logger = l.With().Str("component", "healthrun").Logger() }
}

func New(svc IntegrationService, opts ...Option) *Runner {
	r := &Runner{
		service:     svc,
		concurrency: 4,
		metrics:     &telemetry.Metrics{},
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sweep tests every integration once. Per-integration failures are counted,
// not returned; the error reports a failed listing, cancellation, or an
// overlapping sweep.
func (r *Runner) Sweep(ctx context.Context) (Summary, error) {
	if !r.sweeping.TryLock() {
		return Summary{}, ErrSweepInProgress
	}
	defer r.sweeping.Unlock()

	start := time.Now()
	items, err := r.service.List(ctx)
	if err != nil {
		return Summary{}, errors.Wrap(err, "list integrations")
	}
	r.metrics.SweepRuns.Add(1)

	var (
		mu  sync.Mutex
		sum = Summary{Total: len(items)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, in := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			updated, err := r.service.RunTest(gctx, in.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Errors++
				r.logger.Warn().Err(err).Str("integration_id", in.ID).Msg("sweep test failed")
				return nil
			}
			switch updated.Status {
			case store.StatusConnected:
				sum.Connected++
			case store.StatusBroken:
				sum.Broken++
			default:
				sum.Unknown++
			}
			return nil
		})
	}
	err = g.Wait()
	sum.Elapsed = time.Since(start)

	r.logger.Info().
		Int("total", sum.Total).
		Int("connected", sum.Connected).
		Int("broken", sum.Broken).
		Int("unknown", sum.Unknown).
		Int("errors", sum.Errors).
		Dur("elapsed", sum.Elapsed).
		Msg("health sweep finished")
	return sum, err
}

// Start schedules a sweep on the standard five-field cron spec (descriptors
// such as "@every 30m" work too). It returns immediately; sweeps stop when ctx
// is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn().Err(err).Msg("scheduled sweep")
		}
	})
	if err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "health schedule %q: %v", schedule, err)
	}

	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return errors.Wrap(errors.ErrInvalidArgument, "health runner already started")
	}
	r.cron = c
	r.mu.Unlock()

	c.Start()
	r.logger.Info().Str("schedule", schedule).Msg("health sweep scheduled")
	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
