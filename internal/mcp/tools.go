package mcp

import (
	"context"
	"encoding/json"

	"missioncontrol/internal/errors"
	"missioncontrol/internal/provider"
)

const (
	ToolIntegrationsList    = "integrations.list"
	ToolIntegrationsGet     = "integrations.get"
	ToolIntegrationsTest    = "integrations.test"
	ToolIntegrationsHistory = "integrations.history"
	ToolProvidersList       = "providers.list"
)

// JSON-RPC error codes for tool failures.
const (
	codeToolFailed   = -32000
	codeNotFound     = -32004
	codeInvalidInput = -32602
)

func (s *Server) callTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case ToolIntegrationsList:
		items, err := s.service.List(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"integrations": items}, nil

	case ToolIntegrationsGet:
		id, err := idArg(args)
		if err != nil {
			return nil, err
		}
		return s.service.Get(ctx, id)

	case ToolIntegrationsTest:
		id, err := idArg(args)
		if err != nil {
			return nil, err
		}
		return s.service.RunTest(ctx, id)

	case ToolIntegrationsHistory:
		var in struct {
			ID    string `json:"id"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal(args, &in); err != nil || in.ID == "" {
			return nil, errors.Wrap(errors.ErrInvalidArgument, "missing id")
		}
		if in.Limit <= 0 || in.Limit > 200 {
			in.Limit = 20
		}
		checks, err := s.service.History(ctx, in.ID, in.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"health_checks": checks}, nil

	case ToolProvidersList:
		return map[string]any{"providers": provider.Providers()}, nil

	default:
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "unknown tool: %s", name)
	}
}

func idArg(args json.RawMessage) (string, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(args, &in); err != nil || in.ID == "" {
		return "", errors.Wrap(errors.ErrInvalidArgument, "missing id")
	}
	return in.ID, nil
}

func toolError(err error) *rpcErr {
	switch {
	case errors.Is(err, errors.ErrIntegrationNotFound):
		return &rpcErr{Code: codeNotFound, Message: "integration not found"}
	case errors.Is(err, errors.ErrInvalidArgument):
		return &rpcErr{Code: codeInvalidInput, Message: err.Error()}
	case errors.Is(err, errors.ErrTestFailed):
		return &rpcErr{Code: codeToolFailed, Message: "Test failed"}
	default:
		return &rpcErr{Code: codeToolFailed, Message: "internal error"}
	}
}
