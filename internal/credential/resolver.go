// Package credential resolves the declarative credential_source strings stored
// on integrations into secret values.
//
// Grammar, tried in order:
//
//	.env:VAR_NAME          environment variable VAR_NAME
//	1password:Vault/Item   1Password item, first non-empty field of SecretFieldNames
//	openclaw.json:KEY      env.vars[KEY] of the first openclaw.json that has it, then env KEY
//	gog:<anything>         `gog auth list` succeeds -> "authenticated"
//	built-in               "built-in"
//	UPPER_CASE_NAME        environment variable of that name
//
// Anything else is unresolved with method "unknown".
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Resolution methods reported on Credential.
const (
	MethodEnv      = "env"
	MethodOnePass  = "1password"
	MethodOpenClaw = "openclaw.json"
	MethodCLI      = "cli"
	MethodBuiltIn  = "built-in"
	MethodUnknown  = "unknown"
)

// Sentinel values for sources that prove access without yielding a secret.
const (
	BuiltInSource    = "built-in"
	BuiltInValue     = "built-in"
	AuthenticatedCLI = "authenticated"
)

const (
	prefixEnv      = ".env:"
	prefixOnePass  = "1password:"
	prefixOpenClaw = "openclaw.json:"
	prefixGog      = "gog:"
)

var (
	bareEnvName  = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
	specialChars = regexp.MustCompile(`[()\[\]{}]`)
)

// Credential is a resolved secret. Found is false when no backend produced a
// value; Method names the backend that satisfied, or failed to satisfy, the
// lookup.
type Credential struct {
	Value  string
	Found  bool
	Method string
}

func found(value, method string) Credential {
	return Credential{Value: value, Found: true, Method: method}
}

func missing(method string) Credential {
	return Credential{Method: method}
}

// MissingHint explains why source produced no value, for an unresolved c.
func (c Credential) MissingHint(source string) string {
	switch c.Method {
	case MethodOnePass:
		return fmt.Sprintf("Credential not found in 1Password (%s)", strings.TrimPrefix(source, prefixOnePass))
	case MethodEnv:
		return fmt.Sprintf("Environment variable %s is not set", envName(source))
	case MethodOpenClaw:
		key := strings.TrimPrefix(source, prefixOpenClaw)
		return fmt.Sprintf("Key %s not found in openclaw.json or environment", key)
	case MethodCLI:
		return "CLI is not authenticated"
	default:
		if source == "" {
			return "Credential not found (no credential source configured)"
		}
		return fmt.Sprintf("Credential not found (unrecognized source %q)", source)
	}
}

func envName(source string) string {
	return strings.TrimPrefix(source, prefixEnv)
}

// Options wires the resolver's capabilities. Nil capabilities fall back to
// the process environment, the local filesystem and os/exec.
type Options struct {
	Env           EnvironmentReader
	Files         ConfigReader
	Secrets       SecretBackend
	Runner        CommandRunner
	GogBinary     string
	OpenClawPaths []string
	Logger        zerolog.Logger
}

type Resolver struct {
	env           EnvironmentReader
	files         ConfigReader
	secrets       SecretBackend
	runner        CommandRunner
	gogBinary     string
	openclawPaths []string
	logger        zerolog.Logger
}

func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		env:           opts.Env,
		files:         opts.Files,
		secrets:       opts.Secrets,
		runner:        opts.Runner,
		gogBinary:     opts.GogBinary,
		openclawPaths: opts.OpenClawPaths,
		logger:        opts.Logger.With().Str("component", "credential").Logger(),
	}
	if r.env == nil {
		r.env = OSEnvironment{}
	}
	if r.files == nil {
		r.files = OSFiles{}
	}
	if r.runner == nil {
		r.runner = ExecRunner{Timeout: DefaultCommandTimeout}
	}
	if r.secrets == nil {
		r.secrets = NewOnePasswordCLI("", r.runner)
	}
	if r.gogBinary == "" {
		r.gogBinary = "gog"
	}
	return r
}

type prefixHandler struct {
	prefix  string
	resolve func(r *Resolver, ctx context.Context, rest string) Credential
}

// prefixHandlers is the dispatch table, in priority order.
var prefixHandlers = []prefixHandler{ //nolint:gochecknoglobals // dispatch table
	{prefix: prefixEnv, resolve: (*Resolver).fromEnv},
	{prefix: prefixOnePass, resolve: (*Resolver).fromOnePassword},
	{prefix: prefixOpenClaw, resolve: (*Resolver).fromOpenClaw},
	{prefix: prefixGog, resolve: (*Resolver).fromGog},
}

// Resolve maps source to a secret. It never fails; every problem degrades to
// an unresolved Credential.
func (r *Resolver) Resolve(ctx context.Context, source string) Credential {
	cred := r.resolve(ctx, source)
	r.logger.Debug().
		Str("method", cred.Method).
		Bool("found", cred.Found).
		Msg("credential resolved")
	return cred
}

func (r *Resolver) resolve(ctx context.Context, source string) Credential {
	for _, h := range prefixHandlers {
		if strings.HasPrefix(source, h.prefix) {
			return h.resolve(r, ctx, strings.TrimPrefix(source, h.prefix))
		}
	}
	if source == BuiltInSource {
		return found(BuiltInValue, MethodBuiltIn)
	}
	if bareEnvName.MatchString(source) {
		return r.fromEnv(ctx, source)
	}
	return missing(MethodUnknown)
}

// SourceMethod reports which backend source would be resolved through,
// without contacting it. Unparseable sources report MethodUnknown.
func SourceMethod(source string) string {
	switch {
	case strings.HasPrefix(source, prefixEnv):
		return MethodEnv
	case strings.HasPrefix(source, prefixOnePass):
		return MethodOnePass
	case strings.HasPrefix(source, prefixOpenClaw):
		return MethodOpenClaw
	case strings.HasPrefix(source, prefixGog):
		return MethodCLI
	case source == BuiltInSource:
		return MethodBuiltIn
	case bareEnvName.MatchString(source):
		return MethodEnv
	default:
		return MethodUnknown
	}
}

func (r *Resolver) fromEnv(_ context.Context, name string) Credential {
	if name == "" {
		return missing(MethodEnv)
	}
	if v, ok := r.env.LookupEnv(name); ok && v != "" {
		return found(v, MethodEnv)
	}
	return missing(MethodEnv)
}

// fromOnePassword reads Vault/Item. Item paths with brackets, braces or
// parentheses cannot be addressed by op:// URIs, so the whole item document is
// fetched and searched instead.
func (r *Resolver) fromOnePassword(ctx context.Context, path string) Credential {
	vault, item, ok := strings.Cut(path, "/")
	if !ok || vault == "" || item == "" {
		return missing(MethodOnePass)
	}

	if specialChars.MatchString(path) {
		doc, err := r.secrets.ItemJSON(ctx, vault, item)
		if err != nil {
			r.logger.Debug().Err(err).Str("vault", vault).Msg("1password item read failed")
			return missing(MethodOnePass)
		}
		if v, ok := findField(ctx, doc, secretFieldNames); ok {
			return found(v, MethodOnePass)
		}
		return missing(MethodOnePass)
	}

	for _, field := range secretFieldNames {
		v, err := r.secrets.ReadField(ctx, vault, item, field)
		if err != nil || v == "" {
			continue
		}
		return found(v, MethodOnePass)
	}
	return missing(MethodOnePass)
}

type openClawFile struct {
	Env struct {
		Vars map[string]any `json:"vars"`
	} `json:"env"`
}

// fromOpenClaw checks every candidate file before the environment; a key
// present in any file wins over the environment variable of the same name.
func (r *Resolver) fromOpenClaw(ctx context.Context, key string) Credential {
	if key == "" {
		return missing(MethodOpenClaw)
	}
	for _, path := range r.openclawPaths {
		data, err := r.files.ReadFile(path)
		if err != nil {
			continue
		}
		var doc openClawFile
		if err := json.Unmarshal(data, &doc); err != nil {
			r.logger.Debug().Err(err).Str("path", path).Msg("openclaw.json unreadable")
			continue
		}
		if v, ok := doc.Env.Vars[key].(string); ok && v != "" {
			return found(v, MethodOpenClaw)
		}
	}
	if cred := r.fromEnv(ctx, key); cred.Found {
		return cred
	}
	return missing(MethodOpenClaw)
}

func (r *Resolver) fromGog(ctx context.Context, _ string) Credential {
	if _, err := r.runner.Run(ctx, r.gogBinary, "auth", "list"); err != nil {
		return missing(MethodCLI)
	}
	return found(AuthenticatedCLI, MethodCLI)
}
