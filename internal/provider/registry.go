// Package provider validates resolved credentials against the upstream APIs
// they belong to.
package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	standardTimeout = 10 * time.Second
	modelTimeout    = 15 * time.Second
	llmTimeout      = 30 * time.Second

	forbiddenDetail = "Invalid or forbidden API key (403)"
)

// Descriptor is everything needed to probe one provider.
type Descriptor struct {
	Method  string
	URL     string
	Timeout time.Duration

	// Auth sets the credential headers.
	Auth func(h http.Header, secret string)
	// Body returns the JSON request payload, or nil for none.
	Body func() any
	// Classify may decide a 2xx response; handled=false applies the default.
	Classify func(status int, body []byte) (v Verdict, handled bool)
	// ForbiddenDetail, when set, reports 403 with this detail instead of the
	// generic non-2xx message.
	ForbiddenDetail string
}

func bearer(h http.Header, secret string) { h.Set("Authorization", "Bearer "+secret) }

func header(name string) func(http.Header, string) {
	return func(h http.Header, secret string) { h.Set(name, secret) }
}

// registry maps the exact provider identifier to its probe.
var registry = map[string]Descriptor{ //nolint:gochecknoglobals // provider table
	"anthropic": {
		Method:  http.MethodGet,
		URL:     "https://api.anthropic.com/v1/models",
		Timeout: modelTimeout,
		Auth: func(h http.Header, secret string) {
			h.Set("x-api-key", secret)
			h.Set("anthropic-version", "2023-06-01")
		},
	},
	"openai": {
		Method:  http.MethodGet,
		URL:     "https://api.openai.com/v1/models",
		Timeout: modelTimeout,
		Auth:    bearer,
	},
	"groq": {
		Method:  http.MethodGet,
		URL:     "https://api.groq.com/openai/v1/models",
		Timeout: standardTimeout,
		Auth:    bearer,
	},
	"xai": {
		Method:          http.MethodGet,
		URL:             "https://api.x.ai/v1/models",
		Timeout:         modelTimeout,
		Auth:            bearer,
		ForbiddenDetail: forbiddenDetail,
	},
	"perplexity": {
		Method:  http.MethodPost,
		URL:     "https://api.perplexity.ai/chat/completions",
		Timeout: llmTimeout,
		Auth:    bearer,
		Body: func() any {
			return map[string]any{
				"model":      "sonar",
				"max_tokens": 1,
				"messages":   []map[string]string{{"role": "user", "content": "ping"}},
			}
		},
	},
	"firecrawl": {
		Method:  http.MethodGet,
		URL:     "https://api.firecrawl.dev/v1/team/credit-usage",
		Timeout: standardTimeout,
		Auth:    bearer,
	},
	"brave": {
		Method:          http.MethodGet,
		URL:             "https://api.search.brave.com/res/v1/web/search?q=test&count=1",
		Timeout:         standardTimeout,
		Auth:            header("X-Subscription-Token"),
		ForbiddenDetail: forbiddenDetail,
	},
	"elevenlabs": {
		Method:          http.MethodGet,
		URL:             "https://api.elevenlabs.io/v1/user",
		Timeout:         standardTimeout,
		Auth:            header("xi-api-key"),
		ForbiddenDetail: forbiddenDetail,
	},
	"agentmail": {
		Method:  http.MethodGet,
		URL:     "https://api.agentmail.to/v0/inboxes",
		Timeout: standardTimeout,
		Auth:    bearer,
	},
	"slack": {
		Method:   http.MethodPost,
		URL:      "https://slack.com/api/auth.test",
		Timeout:  standardTimeout,
		Auth:     bearer,
		Classify: classifySlack,
	},
	"notion": {
		Method:  http.MethodGet,
		URL:     "https://api.notion.com/v1/users/me",
		Timeout: standardTimeout,
		Auth: func(h http.Header, secret string) {
			bearer(h, secret)
			h.Set("Notion-Version", "2022-06-28")
		},
		Classify: classifyNotion,
	},
}

// Providers lists the identifiers with a dedicated probe, sorted.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Slack answers 200 for bad tokens; the body's ok flag is authoritative.
func classifySlack(status int, body []byte) (Verdict, bool) {
	if status < 200 || status > 299 {
		return Verdict{}, false
	}
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		User  string `json:"user"`
		Team  string `json:"team"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Verdict{OK: false, Detail: "Slack returned an unreadable response"}, true
	}
	if !resp.OK {
		reason := resp.Error
		if reason == "" {
			reason = "unknown error"
		}
		return Verdict{OK: false, Detail: "Slack error: " + reason}, true
	}
	if resp.User == "" {
		return Verdict{OK: true, Detail: detailValid}, true
	}
	detail := "Authenticated as " + resp.User
	if resp.Team != "" {
		detail += fmt.Sprintf(" (%s)", resp.Team)
	}
	return Verdict{OK: true, Detail: detail}, true
}

func classifyNotion(status int, body []byte) (Verdict, bool) {
	if status < 200 || status > 299 {
		return Verdict{}, false
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || strings.TrimSpace(resp.Name) == "" {
		return Verdict{OK: true, Detail: detailValid}, true
	}
	return Verdict{OK: true, Detail: "Authenticated as " + resp.Name}, true
}
