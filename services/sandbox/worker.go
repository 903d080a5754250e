package sandbox

import (
	"context"
	"errors"

	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/host/asynqhost"
	"linkdrop-controlplane/pkg/task"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Worker executes host requests taken from the queue and reports the
// outcome back to the caller as a callback task.
type Worker struct {
	sandbox       *Sandbox
	enqueuer      task.Enqueuer
	callbackQueue string
}

func NewWorker(sandbox *Sandbox, enqueuer task.Enqueuer, callbackQueue string) *Worker {
	return &Worker{
		sandbox:       sandbox,
		enqueuer:      enqueuer,
		callbackQueue: callbackQueue,
	}
}

func (w *Worker) HandleExecuteTask(ctx context.Context, t *asynq.Task) error {
	p, err := asynqhost.DecodeExecute(t)
	if err != nil {
		zap.L().Error("dropping malformed execute task", zap.Error(err))
		return err
	}

	ctx, span := otel.Tracer("sandbox").Start(ctx, "execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("receipt_id", p.ReceiptID),
		attribute.String("caller_id", p.CallerID),
		attribute.Int("batches", len(p.Request.Batches)),
	)

	result, err := w.sandbox.Run(ctx, p.ReceiptID, p.Request)
	if err != nil {
		return err
	}

	if p.Request.Callback == nil {
		return nil
	}

	cb, err := asynqhost.NewCallbackTask(asynqhost.CallbackPayload{
		AccountID:  p.CallerID,
		Invocation: invocation(p.ReceiptID, p.Request.Callback, result),
	},
		asynq.Queue(w.callbackQueue),
		asynq.TaskID("callback-"+p.ReceiptID),
	)
	if err != nil {
		return err
	}

	if _, err := w.enqueuer.Enqueue(ctx, cb); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}

	zap.L().Debug("callback enqueued",
		zap.String("receipt_id", p.ReceiptID),
		zap.String("method", p.Request.Callback.Method),
		zap.Bool("success", result.Ok()),
	)
	return nil
}

func invocation(receiptID string, cb *host.Callback, result host.PromiseResult) host.Invocation {
	return host.Invocation{
		ReceiptID: receiptID,
		Method:    cb.Method,
		Args:      cb.Args,
		Results:   []host.PromiseResult{result},
	}
}

func registerTaskHandlers(mux *asynq.ServeMux, w *Worker) {
	mux.HandleFunc(asynqhost.TaskExecuteBatches, w.HandleExecuteTask)
}
