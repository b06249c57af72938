package host

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport carries one encoded JSON-RPC request to the host and returns the
// encoded response.
type Transport interface {
	RoundTrip(ctx context.Context, request []byte) ([]byte, error)
	Close() error
}

// defaultRequestTimeout bounds a single round trip when the context has no deadline.
const defaultRequestTimeout = 30 * time.Second

// HTTPTransport posts requests to the host's /jsonrpc endpoint.
type HTTPTransport struct {
	endpoint string
	username string
	password string
	client   *http.Client
}

// NewHTTPTransport creates an HTTP transport. rawURL may be a bare host:port,
// a base URL, or the full /jsonrpc endpoint.
func NewHTTPTransport(rawURL, username, password string) (*HTTPTransport, error) {
	endpoint, err := endpointURL(rawURL, "http")
	if err != nil {
		return nil, err
	}
	return &HTTPTransport{
		endpoint: endpoint,
		username: username,
		password: password,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, request []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("host rejected credentials (HTTP 401)")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	return body, nil
}

// Close implements Transport.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// WebSocketTransport talks to the host's websocket JSON-RPC server. The host
// pushes notifications on the same socket, so responses are matched by id.
type WebSocketTransport struct {
	endpoint string
	header   http.Header
	dialer   *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketTransport creates a websocket transport. The connection is
// dialled on first use.
func NewWebSocketTransport(rawURL, username, password string) (*WebSocketTransport, error) {
	endpoint, err := endpointURL(rawURL, "ws")
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		header.Set("Authorization", "Basic "+creds)
	}
	return &WebSocketTransport{
		endpoint: endpoint,
		header:   header,
		dialer:   websocket.DefaultDialer,
	}, nil
}

// RoundTrip implements Transport.
func (t *WebSocketTransport) RoundTrip(ctx context.Context, request []byte) ([]byte, error) {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(request, &envelope); err != nil {
		return nil, fmt.Errorf("decoding request id: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		conn, _, err := t.dialer.DialContext(ctx, t.endpoint, t.header)
		if err != nil {
			return nil, fmt.Errorf("dialling %s: %w", t.endpoint, err)
		}
		t.conn = conn
	}

	// Closing the connection is the only way to interrupt a blocked read.
	conn := t.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		if !stop() {
			t.dropLocked()
		}
	}()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultRequestTimeout)
	}
	_ = t.conn.SetWriteDeadline(deadline)
	_ = t.conn.SetReadDeadline(deadline)

	if err := conn.WriteMessage(websocket.TextMessage, request); err != nil {
		t.dropLocked()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("writing request: %w", ctx.Err())
		}
		return nil, fmt.Errorf("writing request: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.dropLocked()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("reading response: %w", ctx.Err())
			}
			return nil, fmt.Errorf("reading response: %w", err)
		}
		var reply struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(msg, &reply); err != nil {
			// Not JSON at all; let the client report it.
			return msg, nil
		}
		if len(reply.ID) == 0 {
			// Notification pushed by the host.
			continue
		}
		if bytes.Equal(reply.ID, envelope.ID) {
			return msg, nil
		}
	}
}

// Close implements Transport.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.dropLocked()
	return err
}

func (t *WebSocketTransport) dropLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

// NewTransport builds the transport named by kind ("http" or "websocket").
func NewTransport(kind, rawURL, username, password string) (Transport, error) {
	switch kind {
	case "", "http":
		return NewHTTPTransport(rawURL, username, password)
	case "websocket", "ws":
		return NewWebSocketTransport(rawURL, username, password)
	default:
		return nil, fmt.Errorf("unknown transport %q (want http or websocket)", kind)
	}
}

// endpointURL normalises a user supplied host address into a JSON-RPC
// endpoint for the given scheme family.
func endpointURL(rawURL, family string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", fmt.Errorf("host url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = family + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing host url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("host url %q has no host", rawURL)
	}

	switch family {
	case "ws":
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	default:
		switch u.Scheme {
		case "ws":
			u.Scheme = "http"
		case "wss":
			u.Scheme = "https"
		}
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/jsonrpc"
	}
	return u.String(), nil
}
