// Package logging builds the zerolog loggers used by Mission Control and keeps
// credential material out of everything they write.
package logging

import (
	"io"
	"regexp"

	"github.com/rs/zerolog"
)

// RedactedValue replaces anything that looks like a credential.
const RedactedValue = "[REDACTED]"

// Key shapes for the providers the validator talks to, plus generic
// key=value and bearer forms.
var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{10,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`xai-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`pplx-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`fc-[a-f0-9]{20,}`),
	regexp.MustCompile(`xox[abposr]-[a-zA-Z0-9-]{10,}`),
	regexp.MustCompile(`(secret|ntn)_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{16,}`),
	regexp.MustCompile(`(?i)(?P<key>(?:api[_-]?key|token|secret|password)\s*[:=]\s*(?:\\?["'])?)[^\s"'\\,]{8,}`),
}

// Only the value is replaced; a matched "key=" prefix and any quoting around
// the value stay, so JSON-encoded lines remain well formed.
const redactTemplate = "${key}" + RedactedValue

// ContainsSensitiveData reports whether s matches any credential pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces every credential-looking substring of value
// with RedactedValue.
func FilterSensitiveValue(value string) string {
	out := value
	for _, pattern := range sensitivePatterns {
		out = pattern.ReplaceAllString(out, redactTemplate)
	}
	return out
}

// SensitiveDataHook flags log events whose message carried credential material.
// zerolog hooks cannot rewrite the message; the FilteringWriter does that.
type SensitiveDataHook struct{}

// Run implements zerolog.Hook.
func (SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// FilteringWriter redacts credential material before it reaches w.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports len(p) on success so callers never
// see a short write when redaction shrinks the payload.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := fw.w.Write([]byte(FilterSensitiveValue(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
