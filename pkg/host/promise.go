package host

import (
	"encoding/json"
	"errors"
	"fmt"
)

type PromiseStatus string

const (
	PromiseSuccessful PromiseStatus = "successful"
	PromiseFailed     PromiseStatus = "failed"
)

// PromiseResult is the outcome of one resolved deferred action.
type PromiseResult struct {
	Status PromiseStatus `json:"status"`
	Value  []byte        `json:"value,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func Succeeded(value []byte) PromiseResult {
	return PromiseResult{Status: PromiseSuccessful, Value: value}
}

func Failed(reason string) PromiseResult {
	return PromiseResult{Status: PromiseFailed, Error: reason}
}

func (r PromiseResult) Ok() bool {
	return r.Status == PromiseSuccessful
}

// Callback is chained after a request's last batch. Args are passed back
// verbatim to the callback method.
type Callback struct {
	Method string          `json:"method"`
	Gas    uint64          `json:"gas"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Invocation is a callback delivered by the host.
type Invocation struct {
	ReceiptID string          `json:"receipt_id"`
	Method    string          `json:"method"`
	Args      json.RawMessage `json:"args,omitempty"`
	Results   []PromiseResult `json:"results"`
}

var ErrPromiseResultCount = errors.New("expected exactly one promise result")

// SingleResult returns the only promise result of the invocation. Anything
// other than one result is a host protocol violation.
func (i Invocation) SingleResult() (PromiseResult, error) {
	if len(i.Results) != 1 {
		return PromiseResult{}, fmt.Errorf("%w: got %d", ErrPromiseResultCount, len(i.Results))
	}
	return i.Results[0], nil
}
