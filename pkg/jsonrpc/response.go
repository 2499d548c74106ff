package jsonrpc

import (
	"encoding/json"

	"github.com/theapemachine/a2a-engine/pkg/errors"
)

// Response represents a JSON-RPC response object — exactly one of Result
// and Error is populated (§6).
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

func NewResult(id json.RawMessage, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

func NewError(id json.RawMessage, err *errors.RpcError) Response {
	if err == nil {
		err = errors.ErrInternal
	}
	return Response{JSONRPC: Version, ID: id, Error: err}
}
