// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"forge-platform/internal/api/http"
	"forge-platform/internal/api/http/middleware"
	"forge-platform/internal/app"
	"forge-platform/pkg/log"
	"forge-platform/pkg/retention"
	"forge-platform/pkg/tracing"
)

// App API 应用：HTTP 服务、任务队列与留存扫描
type App struct {
	boot      *app.Bootstrap
	router    *http.Router
	hertz     *server.Hertz
	retention *retention.Engine
	tracer    *sdktrace.TracerProvider

	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewApp 装配路由与中间件
func NewApp(boot *app.Bootstrap) (*App, error) {
	cfg := boot.Config
	handler := http.NewHandler(boot.Queue, boot.Vectors, boot.Contexts, boot.Logger.With("component", "http"))
	router := http.NewRouter(handler, middleware.NewMiddleware(boot.Logger))
	if !cfg.Monitoring.Prometheus.Enable {
		router.DisableMetrics()
	}
	if cfg.API.CORS.Enable {
		router.SetCORS(cfg.API.CORS.AllowOrigins)
	}
	if cfg.API.Middleware.RateLimit {
		router.SetRateLimit(cfg.API.Middleware.RateLimitRPS, cfg.API.Middleware.RateLimitBurst)
	}

	engine := retention.NewEngine(retention.ConfigFromSettings(cfg.Retention), boot.Queue, boot.Vectors, boot.Logger.With("component", "retention"))
	return &App{
		boot:      boot,
		router:    router,
		retention: engine,
	}, nil
}

// Run 启动队列、留存扫描与 HTTP 服务，阻塞直到服务退出；addr 如 ":8080"
func (a *App) Run(addr string) error {
	cfg := a.boot.Config
	a.boot.Logger.Info("API 服务启动", "addr", addr)

	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(os.Stdout),
		hertzslog.WithLevel(levelVar(cfg.Log.Level)),
	))

	if cfg.Monitoring.Tracing.Enable {
		tp, err := a.initTracing()
		if err != nil {
			return err
		}
		a.tracer = tp
	}
	if a.tracer != nil {
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
	} else {
		a.hertz = a.router.Build(addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if err := a.boot.Queue.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("启动任务队列失败: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.retention.Run(gctx)
	})
	g.Go(func() error {
		err := a.hertz.Run()
		if a.stopping.Load() {
			return nil
		}
		cancel()
		return err
	})
	return g.Wait()
}

func (a *App) initTracing() (*sdktrace.TracerProvider, error) {
	tcfg := a.boot.Config.Monitoring.Tracing
	serviceName := tcfg.ServiceName
	if serviceName == "" {
		serviceName = "forge-api"
	}
	endpoint := tcfg.ExportEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		a.boot.Logger.Warn("链路追踪已开启但未配置导出地址，跳过")
		return nil, nil
	}
	tp, err := tracing.InitTracer(tracing.OTelConfig{
		ServiceName:    serviceName,
		ExportEndpoint: endpoint,
		Insecure:       tcfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	a.boot.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", endpoint)
	return tp, nil
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	a.stopping.Store(true)
	if a.cancel != nil {
		a.cancel()
	}
	var firstErr error
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	a.boot.Queue.Stop()
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx)
	}
	if err := a.boot.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func levelVar(level string) *slog.LevelVar {
	v := &slog.LevelVar{}
	v.Set(log.ParseLevel(level))
	return v
}
