// Package mcpclient speaks the JSON-RPC tool-invocation protocol ("tools/list",
// "tools/call") to arbitrary seller endpoints over HTTP.
//
// Endpoints are third parties with undocumented, per-integration quirks, so
// every transport or protocol fault is absorbed here and surfaced as data:
// ListTools degrades to an empty list and CallTool to a failed Result. Nothing
// network-originated escapes as an error.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"
)

const protocolVersion = "2.0"

// maxBodyBytes caps how much of a remote body is read; seller endpoints are
// untrusted and must not be able to balloon memory.
const maxBodyBytes = 4 << 20

// Tool is one remotely invokable operation advertised by an endpoint.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// Result is the raw outcome of a single tool invocation. Body holds the parsed
// JSON-RPC result object when one could be decoded; Raw always holds the
// response text. A failed exchange yields OK=false and a short diagnostic in
// Err, never a Go error.
type Result struct {
	OK     bool
	Status int
	Body   map[string]any
	Raw    string
	Tool   string
	Err    string
}

// ToolCache is an optional short-TTL cache of per-endpoint tool listings.
type ToolCache interface {
	Get(ctx context.Context, key string) ([]Tool, bool)
	Put(ctx context.Context, key string, tools []Tool)
}

// Client performs JSON-RPC exchanges against seller endpoints.
type Client struct {
	http   *http.Client
	logger *log.Logger
	cache  ToolCache
	seq    atomic.Int64
}

// New builds a client. cache may be nil.
func New(logger *log.Logger, cache ToolCache) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[MCP] ", log.LstdFlags)
	}
	return &Client{
		// per-call deadlines come from the context; the transport timeout is
		// only a backstop against connections that never progress
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
		cache:  cache,
	}
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Result  map[string]any `json:"result,omitempty"`
	Error   *rpcError      `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// exchange performs one request/response round trip within timeout.
func (c *Client) exchange(ctx context.Context, endpointURL, method string, params map[string]any, timeout time.Duration) (rpcResponse, int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{JSONRPC: protocolVersion, ID: c.seq.Add(1), Method: method, Params: params})
	if err != nil {
		return rpcResponse{}, 0, "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return rpcResponse{}, 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "quibble/0.1")

	resp, err := c.http.Do(req)
	if err != nil {
		return rpcResponse{}, 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return rpcResponse{}, resp.StatusCode, "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rpcResponse{}, resp.StatusCode, string(raw), fmt.Errorf("status %d", resp.StatusCode)
	}
	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return rpcResponse{}, resp.StatusCode, string(raw), fmt.Errorf("malformed body: %w", err)
	}
	if parsed.Error != nil {
		return parsed, resp.StatusCode, string(raw), fmt.Errorf("remote error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	return parsed, resp.StatusCode, string(raw), nil
}

// ListTools performs tool discovery against one endpoint. Any fault yields an
// empty list.
func (c *Client) ListTools(ctx context.Context, endpointURL string, timeout time.Duration) []Tool {
	if c.cache != nil {
		if tools, ok := c.cache.Get(ctx, endpointURL); ok {
			return tools
		}
	}
	resp, _, _, err := c.exchange(ctx, endpointURL, "tools/list", nil, timeout)
	if err != nil {
		c.logger.Printf("tools/list %s: %v", endpointURL, err)
		return nil
	}
	raw, ok := resp.Result["tools"].([]any)
	if !ok {
		c.logger.Printf("tools/list %s: result missing tools array", endpointURL)
		return nil
	}
	tools := make([]Tool, 0, len(raw))
	for _, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		var t Tool
		if err := json.Unmarshal(b, &t); err != nil || t.Name == "" {
			continue
		}
		tools = append(tools, t)
	}
	if c.cache != nil && len(tools) > 0 {
		c.cache.Put(ctx, endpointURL, tools)
	}
	return tools
}

// CallTool invokes a named tool with arguments. Faults become a failed Result.
func (c *Client) CallTool(ctx context.Context, endpointURL, toolName string, args map[string]any, timeout time.Duration) Result {
	resp, status, raw, err := c.exchange(ctx, endpointURL, "tools/call", map[string]any{
		"name":      toolName,
		"arguments": args,
	}, timeout)
	if err != nil {
		return Result{OK: false, Status: status, Raw: raw, Tool: toolName, Err: err.Error()}
	}
	return Result{OK: true, Status: status, Body: resp.Result, Raw: raw, Tool: toolName}
}

// searchToolName is the well-known catalog search tool exposed by storefront
// integrations.
const searchToolName = "search_shop_catalog"

var (
	searchPattern  = regexp.MustCompile(`(?i)search`)
	catalogPattern = regexp.MustCompile(`(?i)catalog|product|shop`)
)

// SelectSearchTool picks the tool to use for catalog search. Precise matches
// win over loose ones so an unrelated "search_orders" style tool is not
// invoked when a better candidate exists.
func SelectSearchTool(tools []Tool) (string, bool) {
	for _, t := range tools {
		if t.Name == searchToolName {
			return t.Name, true
		}
	}
	for _, t := range tools {
		if searchPattern.MatchString(t.Name) && catalogPattern.MatchString(t.Name) {
			return t.Name, true
		}
	}
	for _, t := range tools {
		if searchPattern.MatchString(t.Name) {
			return t.Name, true
		}
	}
	return "", false
}

// ArgumentShapes returns the candidate argument encodings for a catalog
// search, most common first. Integrations disagree on the key names for the
// query and result-limit concepts, so invocation probes these in order.
func ArgumentShapes(query string, limit int) []map[string]any {
	return []map[string]any{
		{"query": query, "limit": limit},
		{"query": query, "first": limit},
		{"q": query, "limit": limit},
		{"keyword": query, "max_results": limit},
	}
}

// SearchCatalog invokes toolName with each argument shape until accept returns
// true for a result. The accepted result is returned; if no shape is accepted
// the last attempt's result is returned so the caller still sees a diagnostic.
func (c *Client) SearchCatalog(ctx context.Context, endpointURL, toolName, query string, limit int, timeout time.Duration, accept func(Result) bool) Result {
	var last Result
	for _, args := range ArgumentShapes(query, limit) {
		last = c.CallTool(ctx, endpointURL, toolName, args, timeout)
		if accept(last) {
			return last
		}
		// a transport-level fault will fail identically for every shape
		if !last.OK && last.Status == 0 {
			return last
		}
	}
	return last
}
