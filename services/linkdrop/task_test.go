package linkdrop

import (
	"context"
	"errors"
	"testing"

	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/host/asynqhost"
	"linkdrop-controlplane/pkg/host/mock"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func callbackTask(t *testing.T) *asynq.Task {
	t.Helper()
	tk, err := asynqhost.NewCallbackTask(asynqhost.CallbackPayload{
		AccountID: contractID,
		Invocation: host.Invocation{
			ReceiptID: "r1",
			Method:    MethodOnAccountCreated,
			Results:   []host.PromiseResult{host.Succeeded(nil)},
		},
	})
	require.NoError(t, err)
	return tk
}

func selfCallbackTask(t *testing.T, inv host.Invocation) *asynq.Task {
	t.Helper()
	tk, err := asynqhost.NewCallbackTask(asynqhost.CallbackPayload{AccountID: contractID, Invocation: inv})
	require.NoError(t, err)
	return tk
}

func TestHandleCallbackTask(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mock.NewMockDispatcher(ctrl)
	h := NewTaskHandler(dispatcher)

	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, call host.Call, inv host.Invocation) (bool, error) {
			require.Equal(t, contractID, call.PredecessorID)
			require.Equal(t, contractID, call.CurrentAccountID)
			require.Equal(t, "r1", inv.ReceiptID)
			return true, nil
		})
	require.NoError(t, h.HandleCallbackTask(context.Background(), callbackTask(t)))
}

func TestHandleCallbackTaskSkipsRetryOnProtocolViolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mock.NewMockDispatcher(ctrl)
	h := NewTaskHandler(dispatcher)

	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, protocolViolation("no results"))
	err := h.HandleCallbackTask(context.Background(), callbackTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, ErrHostProtocolViolation)

	transient := errors.New("redis timeout")
	dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, transient)
	err = h.HandleCallbackTask(context.Background(), callbackTask(t))
	require.ErrorIs(t, err, transient)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	err = h.HandleCallbackTask(context.Background(), asynq.NewTask(asynqhost.TaskDeliverCallback, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCallbackTaskThroughService(t *testing.T) {
	f := newFixture(t)
	h := NewTaskHandler(f.svc)

	err := h.HandleCallbackTask(context.Background(), callbackTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, ErrHostProtocolViolation)
}
