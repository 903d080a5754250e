package linkdrop

import (
	"linkdrop-controlplane/pkg/config"
	"linkdrop-controlplane/pkg/gen"
	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/host/asynqhost"
	"linkdrop-controlplane/pkg/task"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module provides the contract service and its asynq host executor.
var Module = fx.Module("linkdrop.service",
	fx.Provide(
		provideMetrics,
		provideExecutor,
		NewService,
		provideDispatcher,
		NewTaskHandler,
	),
)

// HTTP mounts the contract routes on the gin engine.
var HTTP = fx.Module("linkdrop.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

// Worker consumes callback tasks.
var Worker = fx.Module("linkdrop.worker",
	fx.Invoke(registerTaskHandlers),
)

func provideMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

func provideDispatcher(s *Service) host.Dispatcher {
	return s
}

func provideExecutor(cfg *config.Config, enqueuer task.Enqueuer) (host.Executor, error) {
	node, err := gen.NewSnowflakeNode(cfg.Linkdrop.NodeID)
	if err != nil {
		return nil, err
	}
	return asynqhost.NewExecutor(enqueuer, node, cfg.Linkdrop.ContractID, cfg.Linkdrop.HostQueue), nil
}
