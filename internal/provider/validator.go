package provider

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"missioncontrol/internal/logging"
	"missioncontrol/internal/telemetry"
)

const (
	detailValid       = "API key valid"
	detailRateLimited = "API key valid (rate limited)"
	detailUnauthorize = "Invalid API key (401)"
	detailTimeout     = "Request timed out"

	maxBodyBytes = 64 << 10
)

// Verdict is the classified outcome of one probe.
type Verdict struct {
	OK     bool
	Detail string
}

type Validator struct {
	client      *http.Client
	descriptors map[string]Descriptor
	metrics     *telemetry.Metrics
	logger      zerolog.Logger
}

type Option func(*Validator)

// WithHTTPClient replaces the default client. Per-provider timeouts are still
// applied through the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Validator) { v.client = c }
}

// WithEndpoint points a provider's probe at endpoint.
func WithEndpoint(provider, endpoint string) Option {
	return func(v *Validator) {
		if d, ok := v.descriptors[provider]; ok {
			d.URL = endpoint
			v.descriptors[provider] = d
		}
	}
}

// WithTimeout overrides a provider's timeout.
func WithTimeout(provider string, timeout time.Duration) Option {
	return func(v *Validator) {
		if d, ok := v.descriptors[provider]; ok {
			d.Timeout = timeout
			v.descriptors[provider] = d
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(v *Validator) { v.logger = l.With().Str("component", "provider").Logger() }
}

func New(opts ...Option) *Validator {
	v := &Validator{
		client:      &http.Client{},
		descriptors: make(map[string]Descriptor, len(registry)),
		metrics:     &telemetry.Metrics{},
		logger:      zerolog.Nop(),
	}
	for id, d := range registry {
		v.descriptors[id] = d
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate makes at most one call to confirm secret is accepted by provider.
// It never returns an error: transport problems become a failed Verdict, and
// providers without a probe are accepted on presence alone.
func (v *Validator) Validate(ctx context.Context, provider, secret string) Verdict {
	d, ok := v.descriptors[provider]
	if !ok {
		return presenceOnly(provider, secret)
	}

	verdict := v.probe(ctx, d, secret)
	v.logger.Debug().
		Str("provider", provider).
		Bool("ok", verdict.OK).
		Str("detail", verdict.Detail).
		Msg("provider probe finished")
	return verdict
}

func presenceOnly(provider, secret string) Verdict {
	n := utf8.RuneCountInString(secret)
	if provider == "" {
		return Verdict{OK: true, Detail: fmt.Sprintf("Credential present (%d chars)", n)}
	}
	return Verdict{OK: true, Detail: fmt.Sprintf("Credential present (%d chars); no validator for provider %q", n, provider)}
}

func (v *Validator) probe(ctx context.Context, d Descriptor, secret string) Verdict {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	var body io.Reader
	if d.Body != nil {
		payload, err := json.Marshal(d.Body())
		if err != nil {
			return Verdict{OK: false, Detail: "Request could not be built"}
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, d.Method, d.URL, body)
	if err != nil {
		return Verdict{OK: false, Detail: "Request could not be built"}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "mission-control")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.Auth != nil {
		d.Auth(req.Header, secret)
	}

	v.metrics.ProviderCalls.Add(1)
	res, err := v.client.Do(req)
	if err != nil {
		v.metrics.ProviderErrors.Add(1)
		return transportVerdict(err, secret)
	}
	defer res.Body.Close()

	// Only body-inspecting classifiers care whether the body arrived intact.
	if d.Classify != nil {
		raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			v.metrics.ProviderErrors.Add(1)
			return transportVerdict(err, secret)
		}
		if verdict, handled := d.Classify(res.StatusCode, raw); handled {
			return verdict
		}
	}
	if res.StatusCode == http.StatusTooManyRequests {
		v.metrics.ProviderRateLimited.Add(1)
	}
	return classifyStatus(res.StatusCode, d.ForbiddenDetail)
}

// classifyStatus applies the uniform status policy. A 429 means the key got
// past authentication, so it counts as valid.
func classifyStatus(status int, forbidden string) Verdict {
	switch {
	case status >= 200 && status <= 299:
		return Verdict{OK: true, Detail: detailValid}
	case status == http.StatusUnauthorized:
		return Verdict{OK: false, Detail: detailUnauthorize}
	case status == http.StatusForbidden && forbidden != "":
		return Verdict{OK: false, Detail: forbidden}
	case status == http.StatusTooManyRequests:
		return Verdict{OK: true, Detail: detailRateLimited}
	default:
		return Verdict{OK: false, Detail: fmt.Sprintf("API returned %d", status)}
	}
}

// transportVerdict reports a failed round trip without the request URL or
// any credential material.
func transportVerdict(err error, secret string) Verdict {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Verdict{OK: false, Detail: detailTimeout}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return Verdict{OK: false, Detail: detailTimeout}
	}
	msg := err.Error()
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	if secret != "" {
		msg = strings.ReplaceAll(msg, secret, logging.RedactedValue)
	}
	return Verdict{OK: false, Detail: "Network error: " + logging.FilterSensitiveValue(msg)}
}
