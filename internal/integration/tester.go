// Package integration runs integration tests: it picks the check that applies
// to an integration, records the outcome and notifies subscribers.
package integration

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"missioncontrol/internal/credential"
	"missioncontrol/internal/provider"
	"missioncontrol/internal/store"
)

// OnePasswordProvider is the provider id of the secret-manager integration.
const OnePasswordProvider = "1password"

const maxErrorDetail = 200

// TestResult is the outcome of one test run. Status is one of the store.Check
// constants.
type TestResult struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	DurationMS int64  `json:"duration_ms"`
}

// IntegrationStatus maps a result onto the integration's live status.
func (r TestResult) IntegrationStatus() string {
	switch r.Status {
	case store.CheckPass:
		return store.StatusConnected
	case store.CheckFail:
		return store.StatusBroken
	default:
		return store.StatusUnknown
	}
}

type CredentialResolver interface {
	Resolve(ctx context.Context, source string) credential.Credential
}

type ProviderValidator interface {
	Validate(ctx context.Context, providerID, secret string) provider.Verdict
}

// cliCheck verifies a CLI's own login state. It returns a status and message.
type cliCheck func(ctx context.Context, t *Tester) (string, string)

// cliChecks is keyed by credential_source prefix.
var cliChecks = map[string]cliCheck{ //nolint:gochecknoglobals // dispatch table
	"gog:": checkGog,
}

// TesterOptions wires a Tester. Resolver and Validator are required.
type TesterOptions struct {
	Resolver  CredentialResolver
	Validator ProviderValidator
	Secrets   credential.SecretBackend
	Runner    credential.CommandRunner
	GogBinary string
	Clock     func() time.Time
	Logger    zerolog.Logger
}

// Tester evaluates the test decision tree for a single integration.
type Tester struct {
	resolver  CredentialResolver
	validator ProviderValidator
	secrets   credential.SecretBackend
	runner    credential.CommandRunner
	gogBinary string
	now       func() time.Time
	logger    zerolog.Logger
}

func NewTester(opts TesterOptions) *Tester {
	t := &Tester{
		resolver:  opts.Resolver,
		validator: opts.Validator,
		secrets:   opts.Secrets,
		runner:    opts.Runner,
		gogBinary: opts.GogBinary,
		now:       opts.Clock,
		logger:    opts.Logger.With().Str("component", "tester").Logger(),
	}
	if t.runner == nil {
		t.runner = credential.ExecRunner{Timeout: credential.DefaultCommandTimeout}
	}
	if t.secrets == nil {
		t.secrets = credential.NewOnePasswordCLI("", t.runner)
	}
	if t.gogBinary == "" {
		t.gogBinary = "gog"
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Test runs the check for in. Probe failures never escape as errors; they are
// reported as a fail or warn result.
func (t *Tester) Test(ctx context.Context, in store.Integration) TestResult {
	start := t.now()
	status, message := t.evaluate(ctx, in)
	res := TestResult{
		Status:     status,
		Message:    message,
		DurationMS: t.now().Sub(start).Milliseconds(),
	}
	t.logger.Debug().
		Str("integration_id", in.ID).
		Str("type", in.Type).
		Str("status", res.Status).
		Int64("duration_ms", res.DurationMS).
		Msg("integration tested")
	return res
}

func (t *Tester) evaluate(ctx context.Context, in store.Integration) (string, string) {
	switch {
	case in.Type == store.TypeCredentialProvider && in.Provider == OnePasswordProvider:
		return t.checkOnePassword(ctx)
	case in.CredentialSource == credential.BuiltInSource:
		return store.CheckPass, "Built-in capability managed by the gateway"
	case in.Type == store.TypeCLIAuth:
		for prefix, check := range cliChecks {
			if strings.HasPrefix(in.CredentialSource, prefix) {
				return check(ctx, t)
			}
		}
		return store.CheckWarn, "Unknown CLI auth method: " + in.CredentialSource
	}

	cred := t.resolver.Resolve(ctx, in.CredentialSource)
	if !cred.Found {
		return store.CheckFail, cred.MissingHint(in.CredentialSource)
	}
	verdict := t.validator.Validate(ctx, in.Provider, cred.Value)
	if verdict.OK {
		return store.CheckPass, verdict.Detail
	}
	return store.CheckFail, verdict.Detail
}

func (t *Tester) checkOnePassword(ctx context.Context) (string, string) {
	who, err := t.secrets.Whoami(ctx)
	if err != nil {
		return store.CheckFail, "1Password CLI not authenticated: " + truncate(err.Error(), maxErrorDetail)
	}
	if line := firstLine(who); line != "" {
		return store.CheckPass, "1Password CLI authenticated: " + truncate(line, maxErrorDetail)
	}
	return store.CheckPass, "1Password CLI authenticated"
}

func checkGog(ctx context.Context, t *Tester) (string, string) {
	res, err := t.runner.Run(ctx, t.gogBinary, "auth", "list")
	out := strings.TrimSpace(res.Stdout)
	if err != nil {
		detail := out
		if detail == "" {
			detail = strings.TrimSpace(res.Stderr)
		}
		if detail == "" {
			detail = err.Error()
		}
		return store.CheckFail, "gog auth check failed: " + truncate(detail, maxErrorDetail)
	}
	if out == "" {
		return store.CheckFail, "gog CLI not authenticated: no tokens listed"
	}
	if i := strings.Index(out, "No tokens"); i >= 0 {
		return store.CheckFail, "gog CLI not authenticated: " + truncate(firstLine(out[i:]), maxErrorDetail)
	}
	return store.CheckPass, truncate(firstLine(out), maxErrorDetail)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

// truncate shortens s to at most n runes. CLI output is made storable as
// PostgreSQL text first: invalid UTF-8 becomes U+FFFD and NUL bytes are dropped.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
