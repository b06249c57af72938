// Package host is the control channel to a running media-center host. It
// speaks JSON-RPC 2.0 over HTTP or websocket and exposes the handful of
// operations the reconciler and the backup workflows need.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("profiler.host")

const (
	// DefaultSlowCall is the elapsed time above which a call is logged as slow.
	DefaultSlowCall = 750 * time.Millisecond
	// DefaultModalTimeout bounds the wait for a confirmation dialog to close.
	DefaultModalTimeout = 60 * time.Second
	// DefaultBridgeAddon is the helper add-on that runs builtin commands on
	// behalf of the client.
	DefaultBridgeAddon = "script.profiler.bridge"
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BridgeAddon  string
	SlowCall     time.Duration
	ModalTimeout time.Duration
	Clock        clock.Clock
}

// Client issues JSON-RPC calls to the host.
type Client struct {
	transport    Transport
	bridgeAddon  string
	slowCall     time.Duration
	modalTimeout time.Duration
	clock        clock.Clock
	nextID       atomic.Int64
}

// NewClient creates a Client that sends requests over t.
func NewClient(t Transport, opts Options) *Client {
	c := &Client{
		transport:    t,
		bridgeAddon:  opts.BridgeAddon,
		slowCall:     opts.SlowCall,
		modalTimeout: opts.ModalTimeout,
		clock:        opts.Clock,
	}
	if c.bridgeAddon == "" {
		c.bridgeAddon = DefaultBridgeAddon
	}
	if c.slowCall <= 0 {
		c.slowCall = DefaultSlowCall
	}
	if c.modalTimeout <= 0 {
		c.modalTimeout = DefaultModalTimeout
	}
	if c.clock == nil {
		c.clock = clock.WallClock
	}
	return c
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// Call invokes method with params and decodes the result into result, which
// may be nil. Every failure is returned as a *ProtocolError.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	id := c.nextID.Add(1)
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return &ProtocolError{Method: method, Message: "encoding request", Err: err}
	}

	start := c.clock.Now()
	raw, err := c.transport.RoundTrip(ctx, payload)
	elapsed := c.clock.Now().Sub(start)
	if elapsed > c.slowCall {
		logger.Warningf("slow call %s took %dms", method, elapsed.Milliseconds())
	} else {
		logger.Debugf("%s took %dms", method, elapsed.Milliseconds())
	}
	if err != nil {
		return c.broken(ctx, &ProtocolError{Method: method, Elapsed: elapsed, Err: err})
	}
	if len(raw) == 0 {
		return c.broken(ctx, &ProtocolError{Method: method, Elapsed: elapsed, Message: "empty response"})
	}

	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return c.broken(ctx, &ProtocolError{Method: method, Elapsed: elapsed, Message: "malformed response", Err: err})
	}
	if resp.Error != nil {
		// Callers such as FileExists read some rpc errors as answers.
		logger.Debugf("%s returned rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
		return &ProtocolError{
			Method:  method,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Elapsed: elapsed,
		}
	}
	if resp.Result == nil {
		return c.broken(ctx, &ProtocolError{Method: method, Elapsed: elapsed, Message: "response has neither result nor error"})
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return c.broken(ctx, &ProtocolError{Method: method, Elapsed: elapsed, Message: "unexpected result shape", Err: err})
	}
	return nil
}

// broken logs a failure that is not an rpc error reply and returns it.
// Failures caused by cancellation are only logged at debug.
func (c *Client) broken(ctx context.Context, pe *ProtocolError) error {
	if ctx.Err() != nil {
		logger.Debugf("call abandoned after %dms: %v", pe.Elapsed.Milliseconds(), pe)
		return pe
	}
	logger.Errorf("call failed after %dms: %v", pe.Elapsed.Milliseconds(), pe)
	return pe
}

// Ping checks that the host answers at all.
func (c *Client) Ping(ctx context.Context) error {
	var pong string
	if err := c.Call(ctx, "JSONRPC.Ping", nil, &pong); err != nil {
		return err
	}
	if pong != "pong" {
		return &ProtocolError{Method: "JSONRPC.Ping", Message: fmt.Sprintf("unexpected reply %q", pong)}
	}
	return nil
}

// Introspect returns the host's JSON-RPC schema description.
func (c *Client) Introspect(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.Call(ctx, "JSONRPC.Introspect", map[string]any{"getdescriptions": false}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Quit asks the host application to exit.
func (c *Client) Quit(ctx context.Context) error {
	return c.Call(ctx, "Application.Quit", nil, nil)
}
