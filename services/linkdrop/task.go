package linkdrop

import (
	"context"
	"errors"
	"fmt"

	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/host/asynqhost"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// TaskHandler consumes callback tasks delivered by the host.
type TaskHandler struct {
	dispatcher host.Dispatcher
}

func NewTaskHandler(d host.Dispatcher) *TaskHandler {
	return &TaskHandler{dispatcher: d}
}

func (h *TaskHandler) HandleCallbackTask(ctx context.Context, t *asynq.Task) error {
	p, err := asynqhost.DecodeCallback(t)
	if err != nil {
		zap.L().Error("dropping malformed callback task", zap.Error(err))
		return err
	}

	ctx, span := otel.Tracer("linkdrop").Start(ctx, "callback "+p.Invocation.Method)
	defer span.End()
	span.SetAttributes(attribute.String("receipt_id", p.Invocation.ReceiptID))

	ok, err := h.dispatcher.Dispatch(ctx, p.SelfCall(), p.Invocation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrHostProtocolViolation) || errors.Is(err, ErrUnauthorized) {
			zap.L().Error("callback rejected", zap.String("receipt_id", p.Invocation.ReceiptID), zap.Error(err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	zap.L().Debug("callback handled", zap.String("receipt_id", p.Invocation.ReceiptID), zap.Bool("success", ok))
	return nil
}

func registerTaskHandlers(mux *asynq.ServeMux, h *TaskHandler) {
	mux.HandleFunc(asynqhost.TaskDeliverCallback, h.HandleCallbackTask)
}
