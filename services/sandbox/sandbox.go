package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"linkdrop-controlplane/pkg/db/option"
	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/identity"
	"linkdrop-controlplane/pkg/logger"
	"linkdrop-controlplane/pkg/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAccountExists          = errors.New("account already exists")
	ErrAccountNotFound        = errors.New("account does not exist")
	ErrKeyExists              = errors.New("access key already exists")
	ErrKeyNotFound            = errors.New("access key does not exist")
	ErrGlobalContractNotFound = errors.New("global contract not found")
	ErrUnsupportedAction      = errors.New("unsupported action")
)

// Sandbox is a reference execution host backed by gorm. It applies batches
// of actions to accounts, one database transaction per batch.
type Sandbox struct {
	db       *gorm.DB
	accounts repository.Repository[Account]
	keys     repository.Repository[AccessKey]
	globals  repository.Repository[GlobalContract]
	receipts repository.Repository[Receipt]
}

func New(db *gorm.DB) *Sandbox {
	return &Sandbox{
		db:       db,
		accounts: repository.ProvideStore[Account](db),
		keys:     repository.ProvideStore[AccessKey](db),
		globals:  repository.ProvideStore[GlobalContract](db),
		receipts: repository.ProvideStore[Receipt](db),
	}
}

func (s *Sandbox) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

// EnsureAccount creates id if it does not exist yet.
func (s *Sandbox) EnsureAccount(ctx context.Context, id string) error {
	existing, err := s.accounts.FindOne(ctx, &Account{ID: id})
	if err != nil || existing != nil {
		return err
	}
	return s.accounts.Create(ctx, &Account{ID: id})
}

func (s *Sandbox) Account(ctx context.Context, id string) (*Account, error) {
	return s.accounts.FindOne(ctx, &Account{ID: id})
}

func (s *Sandbox) AccessKey(ctx context.Context, accountID, publicKey string) (*AccessKey, error) {
	return s.keys.FindOne(ctx, &AccessKey{AccountID: accountID, PublicKey: publicKey})
}

func (s *Sandbox) Receipts(ctx context.Context, requestID string) ([]*Receipt, error) {
	return s.receipts.Find(ctx, &Receipt{RequestID: requestID},
		option.WithSortBy(option.QuerySortBy{SortBy: "batch_index", Allow: map[string]bool{"batch_index": true}}))
}

// Run executes the batches of req in order and returns the result of the
// last one. A failed batch does not stop later batches. Batches already
// recorded for requestID are not applied again.
func (s *Sandbox) Run(ctx context.Context, requestID string, req host.Request) (host.PromiseResult, error) {
	var last host.PromiseResult
	for i, batch := range req.Batches {
		result, err := s.runBatch(ctx, requestID, i, batch)
		if err != nil {
			return host.PromiseResult{}, err
		}
		last = result
	}
	return last, nil
}

func (s *Sandbox) runBatch(ctx context.Context, requestID string, index int, batch host.Batch) (host.PromiseResult, error) {
	id := fmt.Sprintf("%s/%d", requestID, index)
	log := logger.FromContext(ctx).With(zap.String("receipt_id", id), zap.String("receiver_id", batch.ReceiverID))

	done, err := s.receipts.FindOne(ctx, &Receipt{ID: id})
	if err != nil {
		return host.PromiseResult{}, err
	}
	if done != nil {
		log.Debug("batch already executed", zap.String("status", done.Status))
		return receiptResult(done), nil
	}

	actions, err := json.Marshal(batch.Actions)
	if err != nil {
		return host.PromiseResult{}, err
	}
	receipt := &Receipt{
		ID:         id,
		RequestID:  requestID,
		BatchIndex: index,
		ReceiverID: batch.ReceiverID,
		Actions:    actions,
		Status:     ReceiptSucceeded,
	}

	// A successful batch and its receipt commit together. A failed batch is
	// rolled back and its receipt recorded on its own.
	var execErr error
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if execErr = s.apply(ctx, tx, batch); execErr != nil {
			return execErr
		}
		return s.receipts.WithTrx(tx).Create(ctx, receipt)
	})
	switch {
	case execErr != nil:
		receipt.Status = ReceiptFailed
		receipt.Error = execErr.Error()
		log.Warn("batch failed", zap.Error(execErr))
		if err := s.receipts.Create(ctx, receipt); err != nil {
			return host.PromiseResult{}, err
		}
	case err != nil:
		log.Error("failed to commit batch", zap.Error(err))
		return host.PromiseResult{}, err
	default:
		log.Info("batch executed", zap.Int("actions", len(batch.Actions)))
	}
	return receiptResult(receipt), nil
}

func receiptResult(r *Receipt) host.PromiseResult {
	if r.Status == ReceiptSucceeded {
		return host.Succeeded(nil)
	}
	return host.Failed(r.Error)
}

// Execute applies batch atomically: either every action takes effect or
// none does.
func (s *Sandbox) Execute(ctx context.Context, batch host.Batch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.apply(ctx, tx, batch)
	})
}

func (s *Sandbox) apply(ctx context.Context, tx *gorm.DB, batch host.Batch) error {
	x := &txn{
		ctx:      ctx,
		receiver: batch.ReceiverID,
		accounts: s.accounts.WithTrx(tx),
		keys:     s.keys.WithTrx(tx),
		globals:  s.globals.WithTrx(tx),
	}
	for i, action := range batch.Actions {
		if err := x.apply(action); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, action.Kind, err)
		}
	}
	return nil
}

type txn struct {
	ctx      context.Context
	receiver string
	accounts repository.Repository[Account]
	keys     repository.Repository[AccessKey]
	globals  repository.Repository[GlobalContract]
}

func (x *txn) account() (*Account, error) {
	acc, err := x.accounts.FindOne(x.ctx, &Account{ID: x.receiver}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, x.receiver)
	}
	return acc, nil
}

func (x *txn) apply(a host.Action) error {
	switch a.Kind {
	case host.ActionCreateAccount:
		return x.createAccount()
	case host.ActionTransfer:
		return x.transfer(a.Amount)
	case host.ActionAddFullAccessKey:
		return x.addKey(a.PublicKey, PermissionFullAccess, nil, "", "")
	case host.ActionAddFunctionCallKey:
		return x.addKey(a.PublicKey, PermissionFunctionCall, a.Allowance, a.ReceiverID, a.MethodNames)
	case host.ActionDeleteKey:
		return x.deleteKey(a.PublicKey)
	case host.ActionDeployContract:
		return x.deploy(a.Code)
	case host.ActionDeployGlobalContract:
		return x.publish(a.Code, a.GlobalMode)
	case host.ActionUseGlobalContract:
		return x.useGlobal(a)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAction, a.Kind)
	}
}

func (x *txn) createAccount() error {
	if err := identity.ValidateAccountID(x.receiver); err != nil {
		return err
	}
	existing, err := x.accounts.FindOne(x.ctx, &Account{ID: x.receiver})
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, x.receiver)
	}
	return x.accounts.Create(x.ctx, &Account{ID: x.receiver})
}

func (x *txn) transfer(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative transfer %d", amount)
	}
	acc, err := x.account()
	if err != nil {
		return err
	}
	if amount > math.MaxInt64-acc.Balance {
		acc.Balance = math.MaxInt64
	} else {
		acc.Balance += amount
	}
	return x.accounts.Save(x.ctx, acc)
}

func (x *txn) addKey(publicKey, permission string, allowance *int64, receiverID, methods string) error {
	if _, err := x.account(); err != nil {
		return err
	}
	key, err := identity.CanonicalPublicKey(publicKey)
	if err != nil {
		return err
	}
	existing, err := x.keys.FindOne(x.ctx, &AccessKey{AccountID: x.receiver, PublicKey: key})
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	return x.keys.Create(x.ctx, &AccessKey{
		AccountID:   x.receiver,
		PublicKey:   key,
		Permission:  permission,
		Allowance:   allowance,
		ReceiverID:  receiverID,
		MethodNames: methods,
	})
}

func (x *txn) deleteKey(publicKey string) error {
	key, err := identity.CanonicalPublicKey(publicKey)
	if err != nil {
		return err
	}
	n, err := x.keys.Delete(x.ctx, &AccessKey{AccountID: x.receiver, PublicKey: key})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return nil
}

func codeHash(code []byte) string {
	sum := sha256.Sum256(code)
	return hex.EncodeToString(sum[:])
}

func (x *txn) deploy(code []byte) error {
	acc, err := x.account()
	if err != nil {
		return err
	}
	acc.CodeHash = codeHash(code)
	acc.GlobalContractID = ""
	return x.accounts.Save(x.ctx, acc)
}

// GlobalIDByHash and GlobalIDByAccount name published code.
func GlobalIDByHash(hash []byte) string  { return "hash:" + hex.EncodeToString(hash) }
func GlobalIDByAccount(id string) string { return "account:" + id }

func (x *txn) publish(code []byte, mode host.GlobalMode) error {
	if _, err := x.account(); err != nil {
		return err
	}
	hash := sha256.Sum256(code)

	var id string
	switch mode {
	case host.GlobalByHash:
		id = GlobalIDByHash(hash[:])
	case host.GlobalByAccountID:
		id = GlobalIDByAccount(x.receiver)
	default:
		return fmt.Errorf("%w: global mode %q", ErrUnsupportedAction, mode)
	}

	return x.globals.Save(x.ctx, &GlobalContract{
		ID:       id,
		CodeHash: hex.EncodeToString(hash[:]),
		Code:     code,
	})
}

func (x *txn) useGlobal(a host.Action) error {
	acc, err := x.account()
	if err != nil {
		return err
	}

	var id string
	switch a.GlobalMode {
	case host.GlobalByHash:
		id = GlobalIDByHash(a.CodeHash)
	case host.GlobalByAccountID:
		id = GlobalIDByAccount(a.AccountID)
	default:
		return fmt.Errorf("%w: global mode %q", ErrUnsupportedAction, a.GlobalMode)
	}

	global, err := x.globals.FindOne(x.ctx, &GlobalContract{ID: id})
	if err != nil {
		return err
	}
	if global == nil {
		return fmt.Errorf("%w: %s", ErrGlobalContractNotFound, id)
	}

	acc.GlobalContractID = id
	acc.CodeHash = ""
	return x.accounts.Save(x.ctx, acc)
}
