package asynqhost

import (
	"encoding/json"
	"fmt"

	"linkdrop-controlplane/pkg/host"

	"github.com/hibiken/asynq"
)

const (
	TaskExecuteBatches  = "host:batches:execute"
	TaskDeliverCallback = "host:callback:deliver"
)

// ExecutePayload asks the host to run a request on behalf of CallerID.
// The callback, if any, is delivered back to CallerID.
type ExecutePayload struct {
	ReceiptID string       `json:"receipt_id"`
	CallerID  string       `json:"caller_id"`
	Request   host.Request `json:"request"`
}

// CallbackPayload carries a callback invocation to AccountID.
type CallbackPayload struct {
	AccountID  string          `json:"account_id"`
	Invocation host.Invocation `json:"invocation"`
}

func NewExecuteTask(p ExecutePayload, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", TaskExecuteBatches, err)
	}
	return asynq.NewTask(TaskExecuteBatches, payload, opts...), nil
}

func DecodeExecute(t *asynq.Task) (ExecutePayload, error) {
	var p ExecutePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ExecutePayload{}, fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return p, nil
}

func NewCallbackTask(p CallbackPayload, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", TaskDeliverCallback, err)
	}
	return asynq.NewTask(TaskDeliverCallback, payload, opts...), nil
}

// DecodeCallback parses a callback task. Malformed payloads are never
// retried.
func DecodeCallback(t *asynq.Task) (CallbackPayload, error) {
	var p CallbackPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return CallbackPayload{}, fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return p, nil
}

// SelfCall is the call context of a callback: the contract invoking itself.
func (p CallbackPayload) SelfCall() host.Call {
	return host.Call{
		CurrentAccountID: p.AccountID,
		PredecessorID:    p.AccountID,
		SignerID:         p.AccountID,
	}
}
