package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"missioncontrol/internal/store"
)

// Minimal JSON-RPC 2.0 handler that supports:
// - initialize
// - tools/list
// - tools/call
//
// Tools expose the integration test engine to agents.

// IntegrationService is the engine surface the tools call into.
type IntegrationService interface {
	RunTest(ctx context.Context, id string) (store.Integration, error)
	List(ctx context.Context) ([]store.Integration, error)
	Get(ctx context.Context, id string) (store.Integration, error)
	History(ctx context.Context, id string, limit int) ([]store.HealthCheck, error)
}

type ServerOptions struct {
	Service IntegrationService
	Version string
	Logger  zerolog.Logger
}

type Server struct {
	service IntegrationService
	version string
	tools   []Tool
	logger  zerolog.Logger
}

type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

const idSchema = `{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`

func NewServer(opts ServerOptions) *Server {
	tools := []Tool{
		{
			Name:        ToolIntegrationsList,
			Description: "List integrations with their live status.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
		{
			Name:        ToolIntegrationsGet,
			Description: "Get one integration by id.",
			InputSchema: json.RawMessage(idSchema),
		},
		{
			Name:        ToolIntegrationsTest,
			Description: "Test an integration's credential and record the result.",
			InputSchema: json.RawMessage(idSchema),
		},
		{
			Name:        ToolIntegrationsHistory,
			Description: "Recent health checks for an integration, newest first.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"limit":{"type":"integer"}},"required":["id"]}`),
		},
		{
			Name:        ToolProvidersList,
			Description: "Providers with a dedicated credential probe.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		service: opts.Service,
		version: version,
		tools:   tools,
		logger:  opts.Logger.With().Str("component", "mcp").Logger(),
	}
}

type rpcReq struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResp struct {
	JSONRPC string  `json:"jsonrpc"`
	ID      any     `json:"id"`
	Result  any     `json:"result,omitempty"`
	Error   *rpcErr `json:"error,omitempty"`
}

type rpcErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req rpcReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, rpcResp{JSONRPC: "2.0", ID: nil, Error: &rpcErr{Code: -32700, Message: "invalid JSON"}})
		return
	}

	switch req.Method {
	case "initialize":
		writeJSON(w, rpcResp{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"server": map[string]any{
				"name":    "mission-control",
				"version": s.version,
			},
			"capabilities": map[string]any{
				"tools": true,
			},
			"time": time.Now().UTC().Format(time.RFC3339),
		}})

	case "tools/list":
		writeJSON(w, rpcResp{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"tools": s.tools}})

	case "tools/call":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Name == "" {
			writeJSON(w, rpcResp{JSONRPC: "2.0", ID: req.ID, Error: &rpcErr{Code: -32602, Message: "invalid params"}})
			return
		}

		res, err := s.callTool(r.Context(), p.Name, p.Arguments)
		if err != nil {
			s.logger.Debug().Err(err).Str("tool", p.Name).Msg("tool call failed")
			writeJSON(w, rpcResp{JSONRPC: "2.0", ID: req.ID, Error: toolError(err)})
			return
		}
		writeJSON(w, rpcResp{JSONRPC: "2.0", ID: req.ID, Result: res})

	default:
		writeJSON(w, rpcResp{JSONRPC: "2.0", ID: req.ID, Error: &rpcErr{Code: -32601, Message: "method not found"}})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
