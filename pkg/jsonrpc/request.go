package jsonrpc

import "encoding/json"

// Request represents a JSON-RPC request object. Params is left raw so the
// router can unmarshal it into the method-specific params type only after
// the method name has been dispatched.
type Request struct {
	Message
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}
