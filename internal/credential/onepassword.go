package credential

import (
	"context"
	"strings"

	"missioncontrol/internal/errors"
)

// SecretBackend is the secret-manager CLI surface the resolver and the
// credential_provider check depend on.
type SecretBackend interface {
	// Whoami returns the signed-in identity.
	Whoami(ctx context.Context) (string, error)
	// ReadField reads one field of an item by path.
	ReadField(ctx context.Context, vault, item, field string) (string, error)
	// ItemJSON returns the full item document, including fields[] of {label, value}.
	ItemJSON(ctx context.Context, vault, item string) ([]byte, error)
}

// OnePasswordCLI drives the 1Password `op` binary.
type OnePasswordCLI struct {
	Binary string
	Runner CommandRunner
}

// NewOnePasswordCLI returns a backend running binary (default "op").
func NewOnePasswordCLI(binary string, runner CommandRunner) *OnePasswordCLI {
	if strings.TrimSpace(binary) == "" {
		binary = "op"
	}
	return &OnePasswordCLI{Binary: binary, Runner: runner}
}

func (c *OnePasswordCLI) Whoami(ctx context.Context) (string, error) {
	res, err := c.Runner.Run(ctx, c.Binary, "whoami")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (c *OnePasswordCLI) ReadField(ctx context.Context, vault, item, field string) (string, error) {
	if vault == "" || item == "" || field == "" {
		return "", errors.Wrap(errors.ErrInvalidArgument, "vault, item and field are required")
	}
	res, err := c.Runner.Run(ctx, c.Binary, "read", "op://"+vault+"/"+item+"/"+field)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (c *OnePasswordCLI) ItemJSON(ctx context.Context, vault, item string) ([]byte, error) {
	if vault == "" || item == "" {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "vault and item are required")
	}
	res, err := c.Runner.Run(ctx, c.Binary, "item", "get", item, "--vault", vault, "--format", "json")
	if err != nil {
		return nil, err
	}
	return []byte(res.Stdout), nil
}
