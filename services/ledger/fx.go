package ledger

import (
	"context"
	"fmt"

	"linkdrop-controlplane/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("ledger.store",
	fx.Provide(NewStore),
)

type StoreParams struct {
	fx.In
	Config *config.Config
	DB     *gorm.DB      `optional:"true"`
	Redis  *redis.Client `optional:"true"`
}

// NewStore returns the backend named by LINKDROP.LEDGER_BACKEND. The SQL
// backend migrates its table on construction.
func NewStore(p StoreParams) (Store, error) {
	backend := p.Config.Linkdrop.LedgerBackend
	switch backend {
	case config.LedgerBackendSQL, "":
		if p.DB == nil {
			return nil, fmt.Errorf("ledger backend %q needs a database", backend)
		}
		store := NewSQLStore(p.DB)
		if err := store.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
		zap.L().Info("ledger backend selected", zap.String("backend", config.LedgerBackendSQL))
		return store, nil
	case config.LedgerBackendRedis:
		if p.Redis == nil {
			return nil, fmt.Errorf("ledger backend %q needs a redis client", backend)
		}
		zap.L().Info("ledger backend selected", zap.String("backend", backend))
		return NewRedisStore(p.Redis), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
