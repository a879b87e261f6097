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
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"forge-platform/internal/agent/memory"
	"forge-platform/internal/agent/task"
	"forge-platform/internal/storage/vector"
	apperrors "forge-platform/pkg/errors"
	"forge-platform/pkg/log"
	"forge-platform/pkg/metrics"
)

// TaskQueue 任务队列能力，由 task.Queue 实现
type TaskQueue interface {
	Enqueue(ctx context.Context, spec task.Spec) (string, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context, f task.ListFilter) []*task.Task
	Cancel(ctx context.Context, id string) (bool, error)
	Retry(ctx context.Context, id string) (bool, error)
	Metrics(ctx context.Context) task.Metrics
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
}

// EmbeddingStore 向量存储能力，由 vector.Store 实现
type EmbeddingStore interface {
	StoreEmbedding(ctx context.Context, content string, md vector.Metadata) (*vector.Embedding, error)
	Get(ctx context.Context, id string) (*vector.Embedding, error)
	SimilaritySearch(ctx context.Context, q vector.SearchQuery) ([]vector.SearchResult, error)
	UpdateEmbeddingMetadata(ctx context.Context, id string, upd vector.MetadataUpdate) error
	DeleteEmbeddings(ctx context.Context, f vector.DeleteFilter) (int, error)
	GetEmbeddingAnalytics(ctx context.Context, agentID string) (*vector.Analytics, error)
}

// ContextService 上下文窗口构建，由 memory.ContextBuilder 实现
type ContextService interface {
	BuildContextWindow(ctx context.Context, query, agentID, sessionID string, opts memory.ContextOptions) (*memory.ContextWindow, error)
}

// Handler HTTP 处理器
type Handler struct {
	queue      TaskQueue
	embeddings EmbeddingStore
	contexts   ContextService
	logger     *log.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(queue TaskQueue, embeddings EmbeddingStore, contexts ContextService, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Handler{
		queue:      queue,
		embeddings: embeddings,
		contexts:   contexts,
		logger:     logger,
	}
}

// writeError 按错误类别映射状态码
func (h *Handler) writeError(ctx *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidArg):
		status = consts.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		status = consts.StatusNotFound
	default:
		h.logger.Error("request failed", "path", string(ctx.Path()), "error", err)
	}
	ctx.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(ctx *app.RequestContext, msg string) {
	ctx.JSON(consts.StatusBadRequest, map[string]string{"error": msg})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "forge-api",
	})
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
