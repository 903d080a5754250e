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
	"linkdrop-controlplane/services/sandbox"
)

// sandbox executes host requests against a local database and reports
// their outcome back to the linkdrop worker.
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
		sandbox.Module,
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

func provideQueues(cfg *config.Config) task.Queues {
	return task.Queues{cfg.Linkdrop.HostQueue: 10}
}
