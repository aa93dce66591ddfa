package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

const (
	JSONRPCVersion = "2.0"
	// ErrorCode is reported for every dispatch failure.
	ErrorCode = -1
)

// CallRequest is the body of a tools/call request.
type CallRequest struct {
	Params *CallParams     `json:"params"`
	ID     json.RawMessage `json:"id,omitempty"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ListRequest is the body of a tools/list request.
type ListRequest struct {
	ID json.RawMessage `json:"id,omitempty"`
}

// Response is a JSON-RPC shaped envelope. ID is echoed verbatim and omitted
// when the caller sent none.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ListResult struct {
	Tools []Descriptor `json:"tools"`
}

var defaultListID = json.RawMessage("1")

func success(id json.RawMessage, result any) Response {
	return Response{JSONRPC: JSONRPCVersion, Result: result, ID: id}
}

func failure(id json.RawMessage, err error) Response {
	return Response{
		JSONRPC: JSONRPCVersion,
		Error:   &Error{Code: ErrorCode, Message: err.Error()},
		ID:      id,
	}
}

// HandleList answers tools/list. A missing or null id becomes 1.
func (d *Dispatcher) HandleList(req ListRequest) Response {
	id := req.ID
	if isNull(id) {
		id = defaultListID
	}
	return success(id, ListResult{Tools: d.ListTools()})
}

// HandleCall answers tools/call for tenantID.
func (d *Dispatcher) HandleCall(ctx context.Context, tenantID string, req CallRequest) Response {
	if req.Params == nil {
		return failure(req.ID, errors.New("missing params"))
	}

	result, err := d.Call(ctx, tenantID, req.Params.Name, req.Params.Arguments)
	if err != nil {
		return failure(req.ID, err)
	}
	return success(req.ID, result)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
