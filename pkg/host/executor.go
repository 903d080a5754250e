package host

import "context"

// Request is a set of batches the host runs after the current call
// returns. Batches are independent of each other; Callback, when set, is
// invoked with the outcome of the last batch.
type Request struct {
	Batches  []Batch   `json:"batches"`
	Callback *Callback `json:"callback,omitempty"`
}

//go:generate mockgen -source=executor.go -destination=mock/executor.go -package=mock

// Executor hands deferred actions to the host. The returned receipt id
// identifies the request in logs and in the eventual callback.
type Executor interface {
	Submit(ctx context.Context, req Request) (string, error)
}

// Dispatcher receives callbacks from the host.
type Dispatcher interface {
	Dispatch(ctx context.Context, call Call, inv Invocation) (bool, error)
}
