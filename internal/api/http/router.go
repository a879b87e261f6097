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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"forge-platform/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware

	noMetrics    bool
	corsEnabled  bool
	allowOrigins []string
	rateRPS      float64
	rateBurst    int
}

// NewRouter 创建 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// DisableMetrics 不注册 /metrics
func (r *Router) DisableMetrics() {
	r.noMetrics = true
}

// SetCORS 启用跨域；origins 为空表示允许任意来源
func (r *Router) SetCORS(origins []string) {
	r.corsEnabled = true
	r.allowOrigins = origins
}

// SetRateLimit 设置全局限流，rps<=0 关闭
func (r *Router) SetRateLimit(rps float64, burst int) {
	r.rateRPS = rps
	r.rateBurst = burst
}

// Build 创建 Hertz 服务并注册路由，opts 追加在 WithHostPorts 之后
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	h := server.Default(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)

	h.Use(r.middleware.AccessLog())
	if r.corsEnabled {
		h.Use(r.middleware.CORS(r.allowOrigins))
	}
	if r.rateRPS > 0 {
		h.Use(r.middleware.RateLimit(r.rateRPS, r.rateBurst))
	}

	if !r.noMetrics {
		h.GET("/metrics", r.handler.Metrics)
	}

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)

	tasks := api.Group("/tasks")
	{
		tasks.POST("", r.handler.EnqueueTask)
		tasks.GET("", r.handler.ListTasks)
		tasks.GET("/:id", r.handler.GetTask)
		tasks.POST("/:id/cancel", r.handler.CancelTask)
		tasks.POST("/:id/retry", r.handler.RetryTask)
	}

	queue := api.Group("/queue")
	{
		queue.GET("/metrics", r.handler.QueueMetrics)
		queue.POST("/cleanup", r.handler.CleanupTasks)
	}

	embeddings := api.Group("/embeddings")
	{
		embeddings.POST("", r.handler.StoreEmbedding)
		embeddings.POST("/search", r.handler.SearchEmbeddings)
		embeddings.POST("/delete", r.handler.DeleteEmbeddings)
		embeddings.GET("/analytics", r.handler.EmbeddingAnalytics)
		embeddings.GET("/:id", r.handler.GetEmbedding)
		embeddings.PATCH("/:id", r.handler.UpdateEmbedding)
	}

	api.POST("/context-window", r.handler.BuildContextWindow)
	return h
}
