package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailsearch/backend/internal/storage"
)

// pingTimeout 单个依赖检查的超时时间
const pingTimeout = 5 * time.Second

// Pinger 可探测连通性的外部依赖，postgres.Client 与 redis.Client 均实现该接口
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	deps   map[string]Pinger
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		deps:   make(map[string]Pinger),
		logger: logger,
	}

	// 进程存活检查
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))

	// 存储就绪检查
	hc.health.AddReadinessCheck("storage", func() error {
		return hc.store.Health()
	})

	return hc
}

// AddDependency 注册一个就绪检查依赖
func (hc *HealthChecker) AddDependency(name string, p Pinger) {
	hc.deps[name] = p
	hc.health.AddReadinessCheck(name, PingCheck(p))
}

// Handler 返回健康检查处理器，提供 /live 与 /ready 两个端点
func (hc *HealthChecker) Handler() healthcheck.Handler {
	return hc.health
}

// LiveEndpoint 存活探针
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// CheckHealth 执行全部检查并返回每项结果
func (hc *HealthChecker) CheckHealth(ctx context.Context) map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
		hc.logger.Warn("storage health check failed", zap.Error(err))
	} else {
		results["storage"] = "OK"
	}

	names := make([]string, 0, len(hc.deps))
	for name := range hc.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := hc.deps[name].Ping(pingCtx)
		cancel()
		if err != nil {
			results[name] = fmt.Sprintf("ERROR: %v", err)
			hc.logger.Warn("dependency health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		results[name] = "OK"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}

// PingCheck 把 Pinger 包装为 healthcheck.Check
func PingCheck(p Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		return p.Ping(ctx)
	}
}
