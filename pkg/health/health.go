package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	readinessTimeout = 3 * time.Second
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:    p.DB,
		redis: p.Redis,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  statusHealthy,
		Message: "OK",
	})
}

type check struct {
	name string
	ping func(ctx context.Context) error
}

func (h *health) checks() []check {
	checks := make([]check, 0, 2)
	if h.db != nil {
		checks = append(checks, check{
			name: h.db.Dialector.Name(),
			ping: func(ctx context.Context) error {
				sqlDB, err := h.db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		})
	}
	if h.redis != nil {
		checks = append(checks, check{
			name: "redis",
			ping: func(ctx context.Context) error {
				return h.redis.Ping(ctx).Err()
			},
		})
	}
	return checks
}

// Readiness pings every configured dependency concurrently and answers 503
// when any of them fails.
func (h *health) Readiness(c *gin.Context) {
	this := &Health{
		Status:  statusHealthy,
		Message: "OK",
	}

	checks := h.checks()
	deps := make([]Dependency, len(checks))

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	var g errgroup.Group
	for i, chk := range checks {
		g.Go(func() error {
			dep := Dependency{Name: chk.name, Status: statusHealthy, Message: "OK"}
			if err := chk.ping(ctx); err != nil {
				dep.Status = statusUnhealthy
				dep.Message = err.Error()
			}
			deps[i] = dep
			return nil
		})
	}
	_ = g.Wait()

	this.Deps = deps

	code := http.StatusOK
	for _, dep := range deps {
		if dep.Status != statusHealthy {
			this.Status = statusUnhealthy
			this.Message = "dependency unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, this)
}
