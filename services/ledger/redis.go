package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"linkdrop-controlplane/pkg/logger"
	"linkdrop-controlplane/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const maxTxRetries = 16

// RedisStore keeps entries as fields of one hash. Mutations are WATCH/MULTI
// transactions retried when another client touches the hash.
type RedisStore struct {
	rdb  redis.UniversalClient
	hash string
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{
		rdb:  rdb,
		hash: rediskey.LinkdropAccountsKey(),
	}
}

// watch runs fn in a WATCH transaction on the hash, retrying on conflicts.
func (s *RedisStore) watch(ctx context.Context, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, s.hash)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("ledger: too many concurrent updates on %s", s.hash)
}

func (s *RedisStore) get(ctx context.Context, c redis.Cmdable, key string) (int64, bool, error) {
	raw, err := c.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("ledger: corrupt balance for %s: %w", key, err)
	}
	return balance, true, nil
}

func (s *RedisStore) Deposit(ctx context.Context, key string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}

	var balance int64
	err := s.watch(ctx, func(tx *redis.Tx) error {
		current, _, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}

		balance = saturatingAdd(current, amount)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.hash, key, balance)
			return nil
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

func (s *RedisStore) Withdraw(ctx context.Context, key string) (int64, error) {
	var amount int64
	err := s.watch(ctx, func(tx *redis.Tx) error {
		current, ok, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}

		amount = current
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, s.hash, key)
			return nil
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	return amount, nil
}

func (s *RedisStore) Restore(ctx context.Context, key string, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}

	return s.watch(ctx, func(tx *redis.Tx) error {
		displaced, ok, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.hash, key, amount)
			return nil
		})
		if err != nil {
			return err
		}

		if ok {
			logger.FromContext(ctx).Warn("restore replaces existing entry",
				zap.String("public_key", key),
				zap.Int64("displaced_balance", displaced),
				zap.Int64("restored_balance", amount),
			)
		}
		return nil
	})
}

func (s *RedisStore) Peek(ctx context.Context, key string) (int64, error) {
	balance, ok, err := s.get(ctx, s.rdb, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	return balance, nil
}
