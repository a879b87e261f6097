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

	"forge-platform/internal/agent/memory"
	"forge-platform/internal/storage/vector"
)

type storeEmbeddingRequest struct {
	Content  string          `json:"content"`
	Metadata vector.Metadata `json:"metadata"`
}

// contextWindowRequest 上下文窗口请求；time_window 为时长字符串，如 "24h"
type contextWindowRequest struct {
	Query         string               `json:"query"`
	AgentID       string               `json:"agent_id"`
	SessionID     string               `json:"session_id,omitempty"`
	MaxEmbeddings int                  `json:"max_embeddings,omitempty"`
	TimeWindow    string               `json:"time_window,omitempty"`
	Types         []vector.ContentType `json:"types,omitempty"`
}

// StoreEmbedding 写入一条向量
func (h *Handler) StoreEmbedding(c context.Context, ctx *app.RequestContext) {
	var req storeEmbeddingRequest
	if err := ctx.BindJSON(&req); err != nil {
		badRequest(ctx, "invalid request")
		return
	}
	e, err := h.embeddings.StoreEmbedding(c, req.Content, req.Metadata)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusCreated, e)
}

// GetEmbedding 查询单条向量
func (h *Handler) GetEmbedding(c context.Context, ctx *app.RequestContext) {
	e, err := h.embeddings.Get(c, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, e)
}

// SearchEmbeddings 相似度检索
func (h *Handler) SearchEmbeddings(c context.Context, ctx *app.RequestContext) {
	var q vector.SearchQuery
	if err := ctx.BindJSON(&q); err != nil {
		badRequest(ctx, "invalid request")
		return
	}
	results, err := h.embeddings.SimilaritySearch(c, q)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}

// UpdateEmbedding 更新元数据
func (h *Handler) UpdateEmbedding(c context.Context, ctx *app.RequestContext) {
	var upd vector.MetadataUpdate
	if err := ctx.BindJSON(&upd); err != nil {
		badRequest(ctx, "invalid request")
		return
	}
	if err := h.embeddings.UpdateEmbeddingMetadata(c, ctx.Param("id"), upd); err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]bool{"updated": true})
}

// DeleteEmbeddings 按过滤条件删除
func (h *Handler) DeleteEmbeddings(c context.Context, ctx *app.RequestContext) {
	var f vector.DeleteFilter
	if err := ctx.BindJSON(&f); err != nil {
		badRequest(ctx, "invalid request")
		return
	}
	n, err := h.embeddings.DeleteEmbeddings(c, f)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]int{"deleted": n})
}

// EmbeddingAnalytics 向量统计；agent_id 为空时统计全部
func (h *Handler) EmbeddingAnalytics(c context.Context, ctx *app.RequestContext) {
	a, err := h.embeddings.GetEmbeddingAnalytics(c, ctx.Query("agent_id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, a)
}

// BuildContextWindow 构建上下文窗口
func (h *Handler) BuildContextWindow(c context.Context, ctx *app.RequestContext) {
	var req contextWindowRequest
	if err := ctx.BindJSON(&req); err != nil {
		badRequest(ctx, "invalid request")
		return
	}
	if req.Query == "" || req.AgentID == "" {
		badRequest(ctx, "query and agent_id are required")
		return
	}
	var window time.Duration
	if req.TimeWindow != "" {
		d, err := time.ParseDuration(req.TimeWindow)
		if err != nil || d < 0 {
			badRequest(ctx, "invalid time_window")
			return
		}
		window = d
	}
	w, err := h.contexts.BuildContextWindow(c, req.Query, req.AgentID, req.SessionID, memory.ContextOptions{
		MaxEmbeddings: req.MaxEmbeddings,
		TimeWindow:    window,
		Types:         req.Types,
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, w)
}
