package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"missioncontrol/internal/errors"
	"missioncontrol/internal/store"
	"missioncontrol/internal/telemetry"
)

// Event names published after every recorded test.
const (
	EventHealthCheckCompleted = "health_check_completed"
	EventIntegrationUpdated   = "integration_updated"
)

// Store is the persistence surface the service needs.
type Store interface {
	FindIntegrationByID(ctx context.Context, id string) (store.Integration, error)
	ListIntegrations(ctx context.Context) ([]store.Integration, error)
	ListHealthChecks(ctx context.Context, targetType, targetID string, limit int) ([]store.HealthCheck, error)
	// RecordIntegrationTest appends hc and applies upd as one unit.
	RecordIntegrationTest(ctx context.Context, hc store.HealthCheck, upd store.StatusUpdate) (store.Integration, error)
}

// Outcome is what post-commit hooks receive.
type Outcome struct {
	Result      TestResult
	HealthCheck store.HealthCheck
	Integration store.Integration
}

// Hook runs after a test has been committed. Hooks must not block.
type Hook func(ctx context.Context, o Outcome)

// Notifier fans events out to subscribers.
type Notifier interface {
	Publish(event string, payload any)
}

// NotifyHook publishes the two events every committed test produces.
func NotifyHook(n Notifier) Hook {
	return func(_ context.Context, o Outcome) {
		n.Publish(EventHealthCheckCompleted, o.HealthCheck)
		n.Publish(EventIntegrationUpdated, o.Integration)
	}
}

type Service struct {
	store   Store
	tester  *Tester
	hooks   []Hook
	metrics *telemetry.Metrics
	now     func() time.Time
	logger  zerolog.Logger
}

type ServiceOption func(*Service)

func WithHooks(hooks ...Hook) ServiceOption {
	return func(s *Service) { s.hooks = append(s.hooks, hooks...) }
}

func WithMetrics(m *telemetry.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.With().Str("component", "integration").Logger() }
}

func NewService(st Store, tester *Tester, opts ...ServiceOption) *Service {
	s := &Service{
		store:   st,
		tester:  tester,
		metrics: &telemetry.Metrics{},
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunTest tests integration id, appends a health check, updates the live
// status and then runs the hooks. It returns errors.ErrIntegrationNotFound for
// an unknown id and errors.ErrTestFailed when the run aborted; in the latter
// case nothing was written.
func (s *Service) RunTest(ctx context.Context, id string) (store.Integration, error) {
	// A started test always runs to completion and is recorded; provider and
	// command timeouts bound it, not the caller.
	ctx = context.WithoutCancel(ctx)

	in, err := s.store.FindIntegrationByID(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrIntegrationNotFound) {
			return store.Integration{}, err
		}
		return store.Integration{}, errors.Wrapf(joinTestFailed(err), "load integration %s", id)
	}

	res, err := s.test(ctx, in)
	if err != nil {
		s.metrics.TestsAborted.Add(1)
		return store.Integration{}, err
	}

	checkedAt := s.now().UTC()
	hc := store.HealthCheck{
		ID:         uuid.NewString(),
		TargetType: store.TargetIntegration,
		TargetID:   in.ID,
		Status:     res.Status,
		Message:    res.Message,
		DurationMS: res.DurationMS,
		CheckedAt:  checkedAt,
	}
	upd := store.StatusUpdate{Status: res.IntegrationStatus(), Message: res.Message, At: checkedAt}

	updated, err := s.store.RecordIntegrationTest(ctx, hc, upd)
	if err != nil {
		s.metrics.TestsAborted.Add(1)
		s.logger.Error().Err(err).Str("integration_id", in.ID).Msg("record test result")
		return store.Integration{}, errors.Wrap(joinTestFailed(err), "record test result")
	}
	s.metrics.RecordResult(res.Status)

	s.logger.Info().
		Str("integration_id", in.ID).
		Str("name", in.Name).
		Str("result", res.Status).
		Str("status", updated.Status).
		Int64("duration_ms", res.DurationMS).
		Msg("integration test recorded")

	out := Outcome{Result: res, HealthCheck: hc, Integration: updated}
	for _, hook := range s.hooks {
		hook(ctx, out)
	}
	return updated, nil
}

// test runs the tester, converting a panic into errors.ErrTestFailed.
func (s *Service) test(ctx context.Context, in store.Integration) (res TestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("integration_id", in.ID).
				Str("panic", fmt.Sprint(r)).
				Msg("integration test aborted")
			err = errors.Wrapf(errors.ErrTestFailed, "integration %s", in.ID)
		}
	}()
	return s.tester.Test(ctx, in), nil
}

func (s *Service) List(ctx context.Context) ([]store.Integration, error) {
	return s.store.ListIntegrations(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (store.Integration, error) {
	return s.store.FindIntegrationByID(ctx, id)
}

// History returns the newest health checks of integration id.
func (s *Service) History(ctx context.Context, id string, limit int) ([]store.HealthCheck, error) {
	if _, err := s.store.FindIntegrationByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListHealthChecks(ctx, store.TargetIntegration, id, limit)
}

func joinTestFailed(err error) error {
	return fmt.Errorf("%w: %w", errors.ErrTestFailed, err)
}
