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

package retention

import (
	"context"
	"fmt"
	"time"

	"forge-platform/pkg/log"
)

// TaskSweeper 清理过期的终态任务，由 task.Queue 实现
type TaskSweeper interface {
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
}

// EmbeddingSweeper 清理过期向量，由 vector.Store 实现
type EmbeddingSweeper interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int, error)
}

// ScanResult 一次扫描的清理结果
type ScanResult struct {
	TasksRemoved      int
	EmbeddingsRemoved int
	ScannedAt         time.Time
}

// Engine 留存引擎
type Engine struct {
	config     RetentionConfig
	tasks      TaskSweeper
	embeddings EmbeddingSweeper
	logger     *log.Logger
	now        func() time.Time
}

// NewEngine 创建留存引擎；tasks / embeddings 可为 nil
func NewEngine(config RetentionConfig, tasks TaskSweeper, embeddings EmbeddingSweeper, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		config:     config,
		tasks:      tasks,
		embeddings: embeddings,
		logger:     logger,
		now:        time.Now,
	}
}

// RunRetentionScan 扫描并删除超过保留期的数据
func (e *Engine) RunRetentionScan(ctx context.Context) (ScanResult, error) {
	now := e.now()
	res := ScanResult{ScannedAt: now}
	if !e.config.Enable {
		return res, nil
	}

	if before, ok := cutoff(now, e.config.TaskRetention); ok && e.tasks != nil {
		n, err := e.tasks.Cleanup(ctx, before)
		if err != nil {
			return res, fmt.Errorf("cleanup tasks: %w", err)
		}
		res.TasksRemoved = n
	}

	if before, ok := cutoff(now, e.config.EmbeddingRetention); ok && e.embeddings != nil {
		n, err := e.embeddings.DeleteOlderThan(ctx, before)
		if err != nil {
			return res, fmt.Errorf("delete embeddings: %w", err)
		}
		res.EmbeddingsRemoved = n
	}
	return res, nil
}

// Run 按 ScanInterval 周期扫描，直到 ctx 取消；未启用时立即返回
func (e *Engine) Run(ctx context.Context) error {
	if !e.config.Enable {
		return nil
	}
	interval := e.config.ScanInterval
	if interval <= 0 {
		interval = DefaultRetentionConfig().ScanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			res, err := e.RunRetentionScan(ctx)
			if err != nil {
				e.logger.Warn("retention scan failed", "error", err)
				continue
			}
			if res.TasksRemoved > 0 || res.EmbeddingsRemoved > 0 {
				e.logger.Info("retention scan",
					"tasks_removed", res.TasksRemoved,
					"embeddings_removed", res.EmbeddingsRemoved)
			}
		}
	}
}
