package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"missioncontrol/internal/errors"
)

// Client calls a Mission Control MCP endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	nextID atomic.Int64
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		// Tests of slow providers can take up to 30s.
		HTTP: &http.Client{Timeout: 45 * time.Second},
	}
}

// RPCError is a JSON-RPC error returned by the server.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcErr         `json:"error"`
}

func (c *Client) ToolsList(ctx context.Context) ([]Tool, error) {
	raw, err := c.invoke(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode tools")
	}
	return out.Tools, nil
}

// CallTool invokes name with args and returns the raw result.
func (c *Client) CallTool(ctx context.Context, name string, args any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	argBytes, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(err, "encode arguments")
	}
	params, err := json.Marshal(map[string]any{"name": name, "arguments": json.RawMessage(argBytes)})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "tools/call", params)
}

func (c *Client) invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	req := rpcReq{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}
	var resp rpcEnvelope
	if err := c.call(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

func (c *Client) call(ctx context.Context, req any, out any) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("http %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
