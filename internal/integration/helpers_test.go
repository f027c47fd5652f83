package integration

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"missioncontrol/internal/credential"
	"missioncontrol/internal/errors"
	"missioncontrol/internal/store"
)

// fakeRunner answers commands keyed by "name arg1 arg2 ...".
type fakeRunner struct {
	mu      sync.Mutex
	results map[string]credential.CommandResult
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: map[string]credential.CommandResult{}}
}

func (f *fakeRunner) on(cmd string, res credential.CommandResult) *fakeRunner {
	f.results[cmd] = res
	return f
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (credential.CommandResult, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()
	res, ok := f.results[key]
	if !ok {
		return credential.CommandResult{ExitCode: 127}, errors.Wrapf(errors.ErrCommandFailed, "%s: not found", name)
	}
	if res.ExitCode != 0 {
		return res, errors.Wrapf(errors.ErrCommandFailed, "%s: %s", name, res.Stderr)
	}
	return res, nil
}

type fakeSecrets struct {
	whoami    string
	whoamiErr error
}

func (f fakeSecrets) Whoami(context.Context) (string, error) { return f.whoami, f.whoamiErr }

func (fakeSecrets) ReadField(context.Context, string, string, string) (string, error) {
	return "", errors.ErrCommandFailed
}

func (fakeSecrets) ItemJSON(context.Context, string, string) ([]byte, error) {
	return nil, errors.ErrCommandFailed
}

// blackhole fails every round trip and counts attempts.
type blackhole struct {
	mu    sync.Mutex
	calls int
}

func (b *blackhole) RoundTrip(*http.Request) (*http.Response, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return nil, errors.New("network unreachable")
}

func (b *blackhole) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

// memStore is an in-memory Store with the same write semantics as Postgres:
// both writes or neither, and last_validated never moves backwards.
type memStore struct {
	mu           sync.Mutex
	integrations map[string]store.Integration
	checks       []store.HealthCheck
	recordErr    error
}

func newMemStore(items ...store.Integration) *memStore {
	m := &memStore{integrations: map[string]store.Integration{}}
	for _, in := range items {
		if in.Status == "" {
			in.Status = store.StatusUnknown
		}
		m.integrations[in.ID] = in
	}
	return m
}

func (m *memStore) FindIntegrationByID(_ context.Context, id string) (store.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.integrations[id]
	if !ok {
		return store.Integration{}, errors.ErrIntegrationNotFound
	}
	return in, nil
}

func (m *memStore) ListIntegrations(context.Context) ([]store.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Integration, 0, len(m.integrations))
	for _, in := range m.integrations {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) ListHealthChecks(_ context.Context, targetType, targetID string, limit int) ([]store.HealthCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.HealthCheck
	for i := len(m.checks) - 1; i >= 0 && len(out) < limit; i-- {
		hc := m.checks[i]
		if hc.TargetType == targetType && hc.TargetID == targetID {
			out = append(out, hc)
		}
	}
	return out, nil
}

func (m *memStore) RecordIntegrationTest(ctx context.Context, hc store.HealthCheck, upd store.StatusUpdate) (store.Integration, error) {
	if err := ctx.Err(); err != nil {
		return store.Integration{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return store.Integration{}, m.recordErr
	}
	in, ok := m.integrations[hc.TargetID]
	if !ok {
		return store.Integration{}, errors.ErrIntegrationNotFound
	}
	m.checks = append(m.checks, hc)
	in.Status = upd.Status
	msg := upd.Message
	in.ValidationMessage = &msg
	at := upd.At
	if in.LastValidated != nil && in.LastValidated.After(at) {
		at = *in.LastValidated
	}
	in.LastValidated = &at
	in.UpdatedAt = upd.At
	m.integrations[in.ID] = in
	return in, nil
}

func (m *memStore) checksFor(id string) []store.HealthCheck {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.HealthCheck
	for _, hc := range m.checks {
		if hc.TargetID == id {
			out = append(out, hc)
		}
	}
	return out
}

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
