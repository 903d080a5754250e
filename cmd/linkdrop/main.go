package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"linkdrop-controlplane/pkg/config"
	"linkdrop-controlplane/pkg/db"
	"linkdrop-controlplane/pkg/hashistack/secretmanager"
	"linkdrop-controlplane/pkg/health"
	"linkdrop-controlplane/pkg/logger"
	"linkdrop-controlplane/pkg/otelcol"
	"linkdrop-controlplane/pkg/profiling"
	"linkdrop-controlplane/pkg/redis"
	"linkdrop-controlplane/pkg/server"
	"linkdrop-controlplane/pkg/task"
	"linkdrop-controlplane/services/ledger"
	"linkdrop-controlplane/services/linkdrop"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		fx.Provide(provideQueues),
		ledger.Module,
		linkdrop.Module,
		linkdrop.HTTP,
		linkdrop.Worker,
		health.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

// provideQueues limits the worker to callback deliveries.
func provideQueues(cfg *config.Config) task.Queues {
	return task.Queues{cfg.Linkdrop.CallbackQueue: 10}
}
