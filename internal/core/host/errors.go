package host

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JSON-RPC error codes the client reacts to.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ProtocolError is returned when a call over the control channel fails,
// returns nothing, returns something that is not valid JSON-RPC, or returns
// a JSON-RPC error object.
type ProtocolError struct {
	Method  string
	Code    int    // JSON-RPC error code, zero when the host sent no error object
	Message string // error message from the host or a description of the failure
	Elapsed time.Duration
	Err     error // transport or decoding error, if any
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Method, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Method, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Method, e.Message)
	}
}

// Unwrap returns the underlying transport or decoding error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsRPCError reports whether the host answered with a JSON-RPC error object,
// as opposed to the call failing in transit.
func (e *ProtocolError) IsRPCError() bool {
	return e.Code != 0
}

// IsProtocolError checks whether an error is a *ProtocolError and returns it.
func IsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsMethodNotFound reports whether the host rejected a call because it does
// not know the method. Older hosts answer Addons.Install this way.
func IsMethodNotFound(err error) bool {
	pe, ok := IsProtocolError(err)
	if !ok {
		return false
	}
	return pe.Code == CodeMethodNotFound || strings.Contains(strings.ToLower(pe.Message), "method not found")
}
