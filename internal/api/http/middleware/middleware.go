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

package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"forge-platform/pkg/log"
)

// Middleware 中间件管理器
type Middleware struct {
	logger *log.Logger
}

// NewMiddleware 创建中间件管理器；logger 为 nil 时不输出访问日志
func NewMiddleware(logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{logger: logger}
}

// CORS 跨域中间件；allowOrigins 为空时允许任意来源
func (m *Middleware) CORS(allowOrigins []string) app.HandlerFunc {
	allowed := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[strings.TrimSpace(o)] = true
	}
	return func(c context.Context, ctx *app.RequestContext) {
		origin := string(ctx.GetHeader("Origin"))
		switch {
		case len(allowed) == 0 || allowed["*"]:
			ctx.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Vary", "Origin")
		}
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
		ctx.Header("Access-Control-Max-Age", "86400")

		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}

// RateLimit 令牌桶限流（全局共享）；rps<=0 时不限流
func (m *Middleware) RateLimit(rps float64, burst int) app.HandlerFunc {
	if rps <= 0 {
		return func(c context.Context, ctx *app.RequestContext) { ctx.Next(c) }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c context.Context, ctx *app.RequestContext) {
		if !limiter.Allow() {
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, map[string]string{
				"error": "too many requests",
			})
			return
		}
		ctx.Next(c)
	}
}

// AccessLog 访问日志
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		m.logger.Debug("http request",
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"status", ctx.Response.StatusCode(),
			"latency", time.Since(start),
			"client_ip", ctx.ClientIP(),
		)
	}
}
