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
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"forge-platform/internal/agent/task"
)

// enqueueRequest 创建任务请求；超时以毫秒表示
type enqueueRequest struct {
	Type         task.Type      `json:"type"`
	Priority     task.Priority  `json:"priority,omitempty"`
	AgentID      string         `json:"agent_id,omitempty"`
	UserID       string         `json:"user_id"`
	Payload      map[string]any `json:"payload,omitempty"`
	MaxRetries   *int           `json:"max_retries,omitempty"`
	TimeoutMS    int64          `json:"timeout_ms,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

type cleanupRequest struct {
	OlderThan string `json:"older_than,omitempty"` // 如 "24h"
}

// defaultCleanupAge 未指定 older_than 时的清理阈值
const defaultCleanupAge = 24 * time.Hour

// EnqueueTask 创建任务
func (h *Handler) EnqueueTask(c context.Context, ctx *app.RequestContext) {
	var req enqueueRequest
	if err := ctx.BindJSON(&req); err != nil {
		badRequest(ctx, "invalid request")
		return
	}
	id, err := h.queue.Enqueue(c, task.Spec{
		Type:         req.Type,
		Priority:     req.Priority,
		AgentID:      req.AgentID,
		UserID:       req.UserID,
		Payload:      req.Payload,
		MaxRetries:   req.MaxRetries,
		Timeout:      time.Duration(req.TimeoutMS) * time.Millisecond,
		Dependencies: req.Dependencies,
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusCreated, map[string]string{"task_id": id})
}

// GetTask 查询任务
func (h *Handler) GetTask(c context.Context, ctx *app.RequestContext) {
	t, err := h.queue.Get(c, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, t)
}

// ListTasks 按 agent_id / user_id / status 过滤任务
func (h *Handler) ListTasks(c context.Context, ctx *app.RequestContext) {
	tasks := h.queue.List(c, task.ListFilter{
		AgentID: ctx.Query("agent_id"),
		UserID:  ctx.Query("user_id"),
		Status:  task.Status(ctx.Query("status")),
	})
	ctx.JSON(consts.StatusOK, map[string]any{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// CancelTask 取消任务
func (h *Handler) CancelTask(c context.Context, ctx *app.RequestContext) {
	ok, err := h.queue.Cancel(c, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]bool{"cancelled": ok})
}

// RetryTask 手动重试失败任务
func (h *Handler) RetryTask(c context.Context, ctx *app.RequestContext) {
	ok, err := h.queue.Retry(c, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]bool{"retried": ok})
}

// QueueMetrics 队列统计
func (h *Handler) QueueMetrics(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, h.queue.Metrics(c))
}

// CleanupTasks 清理过期终态任务
func (h *Handler) CleanupTasks(c context.Context, ctx *app.RequestContext) {
	var req cleanupRequest
	if len(ctx.Request.Body()) > 0 {
		if err := ctx.BindJSON(&req); err != nil {
			badRequest(ctx, "invalid request")
			return
		}
	}
	age := defaultCleanupAge
	if req.OlderThan != "" {
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil || d < 0 {
			badRequest(ctx, "invalid older_than")
			return
		}
		age = d
	}
	removed, err := h.queue.Cleanup(c, time.Now().Add(-age))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]int{"removed": removed})
}
