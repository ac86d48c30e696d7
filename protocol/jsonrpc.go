package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// jsonrpcVersion is the only protocol version this client speaks.
const jsonrpcVersion = "2.0"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// NewRequest builds a request with a fresh uuid id. Params must be
// JSON-marshalable.
func NewRequest(method string, params any) (*Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}
	return &Request{
		JSONRPC: jsonrpcVersion,
		ID:      uuid.NewString(),
		Method:  method,
		Params:  raw,
	}, nil
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result
// and Error is set on a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsSuccess reports whether the response carries a result.
func (r *Response) IsSuccess() bool {
	return r.Error == nil
}
