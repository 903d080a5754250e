package linkdrop

import (
	"context"
	"encoding/json"
	"errors"

	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/logger"
	"linkdrop-controlplane/services/ledger"

	"go.uber.org/zap"
)

// OnCallback resolves a pending request with the host's single promise
// result and reports whether the deferred action succeeded. Protocol
// violations are fatal and must not be retried; other errors may be.
func (s *Service) OnCallback(ctx context.Context, call host.Call, inv host.Invocation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard.SelfOnly(call); err != nil {
		return false, err
	}

	result, err := inv.SingleResult()
	if err != nil {
		return false, protocolViolation("%s: %v", inv.Method, err)
	}

	var args CallbackArgs
	if err := json.Unmarshal(inv.Args, &args); err != nil {
		return false, protocolViolation("%s: undecodable args: %v", inv.Method, err)
	}

	log := logger.FromContext(ctx).With(
		zap.String("method", inv.Method),
		zap.String("receipt_id", inv.ReceiptID),
		zap.Int64("amount", args.Amount),
	)

	switch inv.Method {
	case MethodOnAccountCreatedAndClaimed:
		if args.Flow != FlowClaim || args.SigningKey == "" {
			return false, protocolViolation("%s: unexpected flow %q", inv.Method, args.Flow)
		}
		return s.onAccountCreatedAndClaimed(ctx, log.With(zap.String("public_key", args.SigningKey)), args, result)
	case MethodOnAccountCreated:
		if args.Flow != FlowProvision || args.RefundTo == "" {
			return false, protocolViolation("%s: unexpected flow %q", inv.Method, args.Flow)
		}
		return s.onAccountCreated(ctx, log.With(zap.String("refund_to", args.RefundTo)), args, result)
	default:
		return false, protocolViolation("unknown callback method %q", inv.Method)
	}
}

// Dispatch implements host.Dispatcher.
func (s *Service) Dispatch(ctx context.Context, call host.Call, inv host.Invocation) (bool, error) {
	return s.OnCallback(ctx, call, inv)
}

func (s *Service) onAccountCreatedAndClaimed(ctx context.Context, log *zap.Logger, args CallbackArgs, result host.PromiseResult) (bool, error) {
	if !result.Ok() {
		if err := s.store.Restore(ctx, args.SigningKey, args.Amount); err != nil {
			log.Error("failed to restore balance after failed account creation", zap.Error(err))
			return false, ledgerError(err)
		}
		s.metrics.transition(FlowClaim, StateCompensated)
		log.Warn("account creation failed, balance restored",
			zap.String("reason", result.Error),
			zap.String("state", string(StateCompensated)),
		)
		return false, nil
	}

	// A send while redeeming funds the key again; it must stay claimable.
	balance, err := s.store.Peek(ctx, args.SigningKey)
	switch {
	case err == nil:
		s.metrics.transition(FlowClaim, StateConfirmed)
		log.Info("account created and claimed, key kept for its new balance",
			zap.Int64("balance", balance),
			zap.String("state", string(StateConfirmed)),
		)
		return true, nil
	case !errors.Is(err, ledger.ErrNotFound):
		log.Error("failed to read key balance before revoke", zap.Error(err))
		return false, ledgerError(err)
	}

	receiptID, err := s.executor.Submit(ctx, host.Request{
		Batches: []host.Batch{host.NewBatch(s.cfg.ContractID, host.DeleteKey(args.SigningKey))},
	})
	if err != nil {
		log.Error("failed to revoke claimed key", zap.Error(err))
		return false, hostError(err)
	}

	s.metrics.transition(FlowClaim, StateConfirmed)
	log.Info("account created and claimed", zap.String("revoke_receipt_id", receiptID), zap.String("state", string(StateConfirmed)))
	return true, nil
}

func (s *Service) onAccountCreated(ctx context.Context, log *zap.Logger, args CallbackArgs, result host.PromiseResult) (bool, error) {
	if result.Ok() {
		s.metrics.transition(FlowProvision, StateConfirmed)
		log.Info("account created", zap.String("state", string(StateConfirmed)))
		return true, nil
	}

	receiptID, err := s.executor.Submit(ctx, host.Request{
		Batches: []host.Batch{host.NewBatch(args.RefundTo, host.Transfer(args.Amount))},
	})
	if err != nil {
		log.Error("failed to refund after failed account creation", zap.Error(err))
		return false, hostError(err)
	}

	s.metrics.transition(FlowProvision, StateCompensated)
	log.Warn("account creation failed, deposit refunded",
		zap.String("reason", result.Error),
		zap.String("refund_receipt_id", receiptID),
		zap.String("state", string(StateCompensated)),
	)
	return false, nil
}

var _ host.Dispatcher = (*Service)(nil)
