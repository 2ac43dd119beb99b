// Package odoo implements remote.Client against an Odoo-style JSON-RPC
// endpoint, with a cached session id and request rate limiting.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/remote"
)

// Ensure Client implements remote.Client
var _ remote.Client = (*Client)(nil)

// Config holds the connection settings for the remote endpoint.
type Config struct {
	// BaseURL is the endpoint root, e.g. "https://erp.example.com".
	BaseURL string

	// Database, Username, Password authenticate the session.
	Database string
	Username string
	Password string

	// Models maps entity types to remote model names. Nil selects
	// DefaultModels.
	Models map[models.EntityType]string

	// RequestsPerSecond throttles outgoing calls. 0 selects 10 rps.
	RequestsPerSecond float64

	// HTTPClient overrides the transport, mainly for tests. Nil selects a
	// client with a 30s timeout and request logging.
	HTTPClient *http.Client
}

// DefaultModels returns the standard entity-to-model mapping.
func DefaultModels() map[models.EntityType]string {
	return map[models.EntityType]string{
		models.EntityExpense: "splitsync.expense",
		models.EntityGroup:   "splitsync.group",
		models.EntityPerson:  "res.partner",
	}
}

// Client talks JSON-RPC to the remote endpoint. It holds a cached session id
// that is re-established transparently when the server reports it expired.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter

	mu        sync.Mutex
	sessionID string
	reqID     int64
}

// New creates a client. No network traffic happens until the first call.
func New(cfg Config) *Client {
	if cfg.Models == nil {
		cfg.Models = DefaultModels()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: newLoggingTransport(http.DefaultTransport),
		}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *Client) model(entity models.EntityType) (string, error) {
	m, ok := c.cfg.Models[entity]
	if !ok {
		return "", fmt.Errorf("no remote model configured for entity %q", entity)
	}
	return m, nil
}

// Create inserts a record and returns the server-assigned id.
func (c *Client) Create(ctx context.Context, entity models.EntityType, fields map[string]any) (int64, error) {
	model, err := c.model(entity)
	if err != nil {
		return 0, err
	}
	var id float64
	if err := c.callKw(ctx, model, "create", []any{fields}, nil, &id); err != nil {
		return 0, err
	}
	return int64(id), nil
}

// Update writes a partial field set to an existing record.
func (c *Client) Update(ctx context.Context, entity models.EntityType, id int64, fields map[string]any) error {
	model, err := c.model(entity)
	if err != nil {
		return err
	}
	var ok bool
	return c.callKw(ctx, model, "write", []any{[]int64{id}, fields}, nil, &ok)
}

// Delete removes a record by id.
func (c *Client) Delete(ctx context.Context, entity models.EntityType, id int64) error {
	model, err := c.model(entity)
	if err != nil {
		return err
	}
	var ok bool
	return c.callKw(ctx, model, "unlink", []any{[]int64{id}}, nil, &ok)
}

// SearchRead runs a filtered query with a field projection, ordered by id
// ascending so incremental pulls see records in id order.
func (c *Client) SearchRead(ctx context.Context, entity models.EntityType, filter remote.Filter, fields []string) ([]remote.Record, error) {
	model, err := c.model(entity)
	if err != nil {
		return nil, err
	}
	kwargs := map[string]any{
		"fields": fields,
		"order":  "id asc",
	}
	var records []remote.Record
	if err := c.callKw(ctx, model, "search_read", []any{filter.Domain()}, kwargs, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SearchCount returns the number of records matching the filter.
func (c *Client) SearchCount(ctx context.Context, entity models.EntityType, filter remote.Filter) (int, error) {
	model, err := c.model(entity)
	if err != nil {
		return 0, err
	}
	var count float64
	if err := c.callKw(ctx, model, "search_count", []any{filter.Domain()}, nil, &count); err != nil {
		return 0, err
	}
	return int(count), nil
}

// callKw dispatches one /web/dataset/call_kw request. A session-expired
// error triggers a single re-authentication and retry.
func (c *Client) callKw(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	params := map[string]any{
		"model":  model,
		"method": method,
		"args":   args,
		"kwargs": kwargs,
	}
	op := fmt.Sprintf("%s.%s", model, method)

	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	err := c.call(ctx, "/web/dataset/call_kw", params, out)
	if isSessionExpired(err) {
		if err = c.authenticate(ctx); err != nil {
			return err
		}
		err = c.call(ctx, "/web/dataset/call_kw", params, out)
	}
	if err != nil {
		return annotate(err, op)
	}
	return nil
}

// rpcRequest is the JSON-RPC 2.0 envelope the endpoint expects.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip. Transport failures and undecodable
// responses map to NetworkError; error payloads map to ValidationError
// (except session expiry, which callKw handles).
func (c *Client) call(ctx context.Context, path string, params any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &remote.NetworkError{Op: path, Err: err}
	}

	c.mu.Lock()
	c.reqID++
	reqID := c.reqID
	session := c.sessionID
	c.mu.Unlock()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params,
		ID:      reqID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: session})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &remote.NetworkError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &remote.NetworkError{Op: path, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return &remote.NetworkError{Op: path, Err: fmt.Errorf("malformed response: %w", err)}
	}

	if rpcResp.Error != nil {
		msg := rpcResp.Error.Data.Message
		if msg == "" {
			msg = rpcResp.Error.Message
		}
		return &ValidationFault{
			Name:    rpcResp.Error.Data.Name,
			Message: msg,
		}
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return &remote.NetworkError{Op: path, Err: fmt.Errorf("malformed result: %w", err)}
		}
	}
	return nil
}

// ValidationFault is the raw server-side error before annotation with the
// operation name. It carries the remote exception name so session expiry can
// be distinguished from genuine validation failures.
type ValidationFault struct {
	Name    string
	Message string
}

func (e *ValidationFault) Error() string {
	return e.Message
}

func isSessionExpired(err error) bool {
	fault, ok := err.(*ValidationFault)
	if !ok {
		return false
	}
	return strings.Contains(fault.Name, "SessionExpired") ||
		strings.Contains(fault.Message, "Session expired")
}

// annotate converts a raw fault into the remote error taxonomy.
func annotate(err error, op string) error {
	if fault, ok := err.(*ValidationFault); ok {
		return &remote.ValidationError{Op: op, Message: fault.Message}
	}
	if ne, ok := err.(*remote.NetworkError); ok {
		return &remote.NetworkError{Op: op, Err: ne.Err}
	}
	return err
}
