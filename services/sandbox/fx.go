package sandbox

import (
	"context"
	"fmt"

	"linkdrop-controlplane/pkg/config"
	"linkdrop-controlplane/pkg/task"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module runs the sandbox host as an asynq worker.
var Module = fx.Module("sandbox",
	fx.Provide(
		NewSandboxFromConfig,
		provideWorker,
	),
	fx.Invoke(registerTaskHandlers),
)

// NewSandboxFromConfig migrates the sandbox tables and makes sure the
// contract account exists so its key batches have a receiver.
func NewSandboxFromConfig(cfg *config.Config, db *gorm.DB) (*Sandbox, error) {
	ctx := context.Background()

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate sandbox: %w", err)
	}
	if err := s.EnsureAccount(ctx, cfg.Linkdrop.ContractID); err != nil {
		return nil, fmt.Errorf("ensure contract account: %w", err)
	}

	zap.L().Info("sandbox ready", zap.String("contract_id", cfg.Linkdrop.ContractID))
	return s, nil
}

func provideWorker(cfg *config.Config, s *Sandbox, enqueuer task.Enqueuer) *Worker {
	return NewWorker(s, enqueuer, cfg.Linkdrop.CallbackQueue)
}
