package asynqhost

import (
	"context"
	"fmt"
	"time"

	"linkdrop-controlplane/pkg/gen"
	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Executor submits requests to the host as asynq tasks. The receipt id is
// also the asynq task id, so a request is enqueued at most once.
type Executor struct {
	enqueuer task.Enqueuer
	node     *gen.SnowflakeNode
	callerID string
	queue    string
}

func NewExecutor(enqueuer task.Enqueuer, node *gen.SnowflakeNode, callerID, queue string) *Executor {
	return &Executor{
		enqueuer: enqueuer,
		node:     node,
		callerID: callerID,
		queue:    queue,
	}
}

func (e *Executor) Submit(ctx context.Context, req host.Request) (string, error) {
	if len(req.Batches) == 0 {
		return "", fmt.Errorf("submit: empty request")
	}

	receiptID := e.node.GenerateID().String()
	payload := ExecutePayload{
		ReceiptID: receiptID,
		CallerID:  e.callerID,
		Request:   req,
	}
	t, err := NewExecuteTask(payload,
		asynq.Queue(e.queue),
		asynq.TaskID(receiptID),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return "", err
	}

	if _, err := e.enqueuer.Enqueue(ctx, t); err != nil {
		return "", err
	}

	zap.L().Debug("host request submitted",
		zap.String("receipt_id", receiptID),
		zap.Int("batches", len(req.Batches)),
		zap.Bool("callback", req.Callback != nil),
	)
	return receiptID, nil
}

var _ host.Executor = (*Executor)(nil)
