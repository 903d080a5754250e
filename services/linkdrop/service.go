package linkdrop

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"linkdrop-controlplane/pkg/config"
	"linkdrop-controlplane/pkg/errutil"
	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/identity"
	"linkdrop-controlplane/pkg/logger"
	"linkdrop-controlplane/services/ledger"
	"linkdrop-controlplane/services/provisioning"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service is the linkdrop contract: deposits bound to keys, redeemed to
// existing or newly provisioned accounts.
type Service struct {
	// mu runs one state machine step at a time.
	mu sync.Mutex

	cfg      config.Linkdrop
	guard    Guard
	store    ledger.Store
	executor host.Executor
	metrics  *Metrics
}

type ServiceParams struct {
	fx.In
	Config   *config.Config
	Store    ledger.Store
	Executor host.Executor
	Metrics  *Metrics `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:      p.Config.Linkdrop,
		guard:    NewGuard(p.Config.Linkdrop.ContractID),
		store:    p.Store,
		executor: p.Executor,
		metrics:  p.Metrics,
	}
}

// Send binds the attached deposit to publicKey. The first send for a key
// pays the access key allowance and registers the key on the contract
// account; later sends only add to the balance. It returns the new balance.
func (s *Service) Send(ctx context.Context, call host.Call, publicKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fee := s.cfg.AccessKeyAllowance
	if call.AttachedDeposit <= fee {
		return 0, errutil.UnprocessableEntity("attached deposit must exceed the access key allowance", ErrDepositTooSmall,
			errutil.WithDetails(errutil.Detail{Field: "attached_deposit", Message: "must be greater than allowance"}))
	}

	key, err := identity.CanonicalPublicKey(publicKey)
	if err != nil {
		return 0, invalidPublicKey(err)
	}

	log := logger.FromContext(ctx).With(zap.String("public_key", key), zap.String("signer_id", call.SignerID))

	_, err = s.store.Peek(ctx, key)
	switch {
	case err == nil:
		balance, err := s.store.Deposit(ctx, key, call.AttachedDeposit)
		if err != nil {
			return 0, ledgerError(err)
		}
		s.metrics.deposit(call.AttachedDeposit)
		log.Info("deposit added to existing key", zap.Int64("balance", balance), zap.String("state", string(StateDeposited)))
		return balance, nil
	case !errors.Is(err, ledger.ErrNotFound):
		return 0, ledgerError(err)
	}

	amount := call.AttachedDeposit - fee
	balance, err := s.store.Deposit(ctx, key, amount)
	if err != nil {
		return 0, ledgerError(err)
	}

	allowance := fee
	receiptID, err := s.executor.Submit(ctx, host.Request{
		Batches: []host.Batch{
			host.NewBatch(s.cfg.ContractID, host.AddFunctionCallKey(key, &allowance, s.cfg.ContractID, ClaimMethods)),
		},
	})
	if err != nil {
		if _, rerr := s.store.Withdraw(ctx, key); rerr != nil {
			log.Error("failed to revert deposit after host error", zap.Error(rerr))
		}
		log.Error("failed to register key", zap.Error(err))
		return 0, hostError(err)
	}

	s.metrics.deposit(amount)
	s.metrics.transition(FlowClaim, StateDeposited)
	log.Info("key deposited",
		zap.Int64("balance", balance),
		zap.Int64("fee", fee),
		zap.String("receipt_id", receiptID),
		zap.String("state", string(StateDeposited)),
	)
	return balance, nil
}

// Claim redeems the signer key's balance to an existing account.
func (s *Service) Claim(ctx context.Context, call host.Call, accountID string) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard.SelfOnly(call); err != nil {
		return Submission{}, err
	}
	if err := identity.ValidateAccountID(accountID); err != nil {
		return Submission{}, invalidAccount(accountID, err)
	}
	key, err := s.guard.Credential(call)
	if err != nil {
		return Submission{}, err
	}

	log := logger.FromContext(ctx).With(zap.String("public_key", key), zap.String("account_id", accountID))

	amount, err := s.store.Withdraw(ctx, key)
	if err != nil {
		return Submission{}, ledgerError(err)
	}

	receiptID, err := s.submitOrRestore(ctx, log, key, amount, host.Request{
		Batches: []host.Batch{
			host.NewBatch(s.cfg.ContractID, host.DeleteKey(key)),
			host.NewBatch(accountID, host.Transfer(amount)),
		},
	})
	if err != nil {
		return Submission{}, err
	}

	s.metrics.transition(FlowClaimTo, StateConfirmed)
	log.Info("key claimed", zap.Int64("amount", amount), zap.String("receipt_id", receiptID), zap.String("state", string(StateConfirmed)))
	return Submission{ReceiptID: receiptID, Amount: amount}, nil
}

// CreateAccountAndClaim redeems the signer key's balance into a new account
// owned by newPublicKey. The outcome arrives as
// on_account_created_and_claimed.
func (s *Service) CreateAccountAndClaim(ctx context.Context, call host.Call, newAccountID, newPublicKey string) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard.SelfOnly(call); err != nil {
		return Submission{}, err
	}
	if err := identity.ValidateAccountID(newAccountID); err != nil {
		return Submission{}, invalidAccount(newAccountID, err)
	}
	newKey, err := identity.CanonicalPublicKey(newPublicKey)
	if err != nil {
		return Submission{}, invalidPublicKey(err)
	}
	key, err := s.guard.Credential(call)
	if err != nil {
		return Submission{}, err
	}

	log := logger.FromContext(ctx).With(zap.String("public_key", key), zap.String("account_id", newAccountID))

	amount, err := s.store.Withdraw(ctx, key)
	if err != nil {
		return Submission{}, ledgerError(err)
	}

	args, err := json.Marshal(CallbackArgs{Flow: FlowClaim, Amount: amount, SigningKey: key})
	if err != nil {
		s.restore(ctx, log, key, amount)
		return Submission{}, errutil.Internal("encode callback args", err)
	}

	receiptID, err := s.submitOrRestore(ctx, log, key, amount, host.Request{
		Batches: []host.Batch{
			host.NewBatch(newAccountID,
				host.CreateAccount(),
				host.AddFullAccessKey(newKey),
				host.Transfer(amount),
			),
		},
		Callback: &host.Callback{
			Method: MethodOnAccountCreatedAndClaimed,
			Gas:    s.cfg.CallbackGas,
			Args:   args,
		},
	})
	if err != nil {
		return Submission{}, err
	}

	s.metrics.transition(FlowClaim, StateRedeeming)
	log.Info("account creation requested", zap.Int64("amount", amount), zap.String("receipt_id", receiptID), zap.String("state", string(StateRedeeming)))
	return Submission{ReceiptID: receiptID, Amount: amount}, nil
}

// CreateAccount creates newAccountID with one full access key, funded with
// the attached deposit. The deposit is refunded to the caller if creation
// fails.
func (s *Service) CreateAccount(ctx context.Context, call host.Call, newAccountID, newPublicKey string) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := identity.ValidateAccountID(newAccountID); err != nil {
		return Submission{}, invalidAccount(newAccountID, err)
	}
	newKey, err := identity.CanonicalPublicKey(newPublicKey)
	if err != nil {
		return Submission{}, invalidPublicKey(err)
	}

	return s.provision(ctx, call, newAccountID, provisioning.Plain(newKey, call.AttachedDeposit))
}

// CreateAccountAdvanced is CreateAccount with keys and code taken from
// options.
func (s *Service) CreateAccountAdvanced(ctx context.Context, call host.Call, newAccountID string, options provisioning.Options) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := identity.ValidateAccountID(newAccountID); err != nil {
		return Submission{}, invalidAccount(newAccountID, err)
	}
	actions, err := provisioning.Resolve(call.AttachedDeposit, options)
	if err != nil {
		return Submission{}, invalidOptions(err)
	}

	return s.provision(ctx, call, newAccountID, actions)
}

func (s *Service) provision(ctx context.Context, call host.Call, newAccountID string, actions []host.Action) (Submission, error) {
	log := logger.FromContext(ctx).With(zap.String("account_id", newAccountID), zap.String("refund_to", call.PredecessorID))

	args, err := json.Marshal(CallbackArgs{Flow: FlowProvision, Amount: call.AttachedDeposit, RefundTo: call.PredecessorID})
	if err != nil {
		return Submission{}, errutil.Internal("encode callback args", err)
	}

	receiptID, err := s.executor.Submit(ctx, host.Request{
		Batches: []host.Batch{host.NewBatch(newAccountID, actions...)},
		Callback: &host.Callback{
			Method: MethodOnAccountCreated,
			Gas:    s.cfg.CallbackGas,
			Args:   args,
		},
	})
	if err != nil {
		log.Error("failed to submit account creation", zap.Error(err))
		return Submission{}, hostError(err)
	}

	s.metrics.transition(FlowProvision, StateRedeeming)
	log.Info("account provisioning requested",
		zap.Int64("amount", call.AttachedDeposit),
		zap.Int("actions", len(actions)),
		zap.String("receipt_id", receiptID),
		zap.String("state", string(StateRedeeming)),
	)
	return Submission{ReceiptID: receiptID, Amount: call.AttachedDeposit}, nil
}

// submitOrRestore submits req and puts the withdrawn amount back under key
// if the host refuses it.
func (s *Service) submitOrRestore(ctx context.Context, log *zap.Logger, key string, amount int64, req host.Request) (string, error) {
	receiptID, err := s.executor.Submit(ctx, req)
	if err != nil {
		log.Error("failed to submit redemption", zap.Error(err))
		s.restore(ctx, log, key, amount)
		return "", hostError(err)
	}
	return receiptID, nil
}

func (s *Service) restore(ctx context.Context, log *zap.Logger, key string, amount int64) {
	if err := s.store.Restore(ctx, key, amount); err != nil {
		log.Error("failed to restore balance", zap.Int64("amount", amount), zap.Error(err))
		return
	}
	log.Info("balance restored", zap.Int64("amount", amount), zap.String("state", string(StateDeposited)))
}

// GetKeyBalance returns the balance claimable with key.
func (s *Service) GetKeyBalance(ctx context.Context, publicKey string) (int64, error) {
	key, err := identity.CanonicalPublicKey(publicKey)
	if err != nil {
		return 0, invalidPublicKey(err)
	}
	balance, err := s.store.Peek(ctx, key)
	if err != nil {
		return 0, ledgerError(err)
	}
	return balance, nil
}

// GetKeyInformation reports the key's balance, or found=false when the key
// holds nothing. Unparseable keys are reported as not found.
func (s *Service) GetKeyInformation(ctx context.Context, publicKey string) (KeyInfo, bool, error) {
	key, err := identity.CanonicalPublicKey(publicKey)
	if err != nil {
		return KeyInfo{}, false, nil
	}
	balance, err := s.store.Peek(ctx, key)
	if errors.Is(err, ledger.ErrNotFound) {
		return KeyInfo{}, false, nil
	}
	if err != nil {
		return KeyInfo{}, false, ledgerError(err)
	}
	return KeyInfo{Balance: balance}, true, nil
}
