package ledger

import (
	"context"

	"linkdrop-controlplane/pkg/db/option"
	"linkdrop-controlplane/pkg/logger"
	"linkdrop-controlplane/pkg/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SQLStore keeps entries in the linkdrop_keys table. Every mutation runs in
// a transaction holding a row lock on the key.
type SQLStore struct {
	db   *gorm.DB
	keys repository.Repository[KeyBalance]
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{
		db:   db,
		keys: repository.ProvideStore[KeyBalance](db),
	}
}

// Migrate creates or updates the linkdrop_keys table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&KeyBalance{})
}

func (s *SQLStore) Deposit(ctx context.Context, key string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}

	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys := s.keys.WithTrx(tx)

		entry, err := keys.FindOne(ctx, &KeyBalance{PublicKey: key}, option.WithLockingUpdate())
		if err != nil {
			return err
		}

		if entry == nil {
			balance = amount
			return keys.Create(ctx, &KeyBalance{PublicKey: key, Balance: amount})
		}

		entry.Balance = saturatingAdd(entry.Balance, amount)
		balance = entry.Balance
		return keys.Save(ctx, entry)
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

func (s *SQLStore) Withdraw(ctx context.Context, key string) (int64, error) {
	var amount int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys := s.keys.WithTrx(tx)

		entry, err := keys.FindOne(ctx, &KeyBalance{PublicKey: key}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrNotFound
		}

		deleted, err := keys.Delete(ctx, &KeyBalance{PublicKey: key})
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrNotFound
		}

		amount = entry.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	return amount, nil
}

func (s *SQLStore) Restore(ctx context.Context, key string, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys := s.keys.WithTrx(tx)

		entry, err := keys.FindOne(ctx, &KeyBalance{PublicKey: key}, option.WithLockingUpdate())
		if err != nil {
			return err
		}

		if entry == nil {
			return keys.Create(ctx, &KeyBalance{PublicKey: key, Balance: amount})
		}

		logger.FromContext(ctx).Warn("restore replaces existing entry",
			zap.String("public_key", key),
			zap.Int64("displaced_balance", entry.Balance),
			zap.Int64("restored_balance", amount),
		)
		entry.Balance = amount
		return keys.Save(ctx, entry)
	})
}

func (s *SQLStore) Peek(ctx context.Context, key string) (int64, error) {
	entry, err := s.keys.FindOne(ctx, &KeyBalance{PublicKey: key})
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, ErrNotFound
	}
	return entry.Balance, nil
}
