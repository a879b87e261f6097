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

package app

import (
	"context"
	"fmt"
	"time"

	"forge-platform/internal/agent/executor"
	"forge-platform/internal/agent/memory"
	"forge-platform/internal/agent/task"
	modelembed "forge-platform/internal/model/embedding"
	"forge-platform/internal/storage/cache"
	"forge-platform/internal/storage/kv"
	"forge-platform/internal/storage/vector"
	"forge-platform/pkg/config"
	"forge-platform/pkg/log"
	"forge-platform/pkg/secrets"
)

// Bootstrap 统一初始化：日志、持久化、向量存储、上下文构建与任务队列
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Persist  kv.Store
	Cache    cache.Store
	Vectors  *vector.Store
	Contexts *memory.ContextBuilder
	Registry *task.Registry
	Queue    *task.Queue
}

// NewBootstrap 根据配置装配各组件并从持久化后端恢复状态；队列尚未启动
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	secretStore, err := secrets.NewStore(cfg.Secrets)
	if err == nil {
		err = secrets.ResolveConfig(ctx, secretStore, cfg)
	}
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("解析 secret 失败: %w", err)
	}

	persist, err := kv.NewStore(ctx, cfg.Storage.Persistence)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("初始化持久化存储失败: %w", err)
	}

	b := &Bootstrap{Config: cfg, Logger: logger, Persist: persist}
	if err := b.init(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bootstrap) init(ctx context.Context) error {
	cfg := b.Config
	embedder, err := modelembed.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return fmt.Errorf("初始化 embedder 失败: %w", err)
	}
	b.Cache, err = cache.NewCache(ctx, cfg.Storage.Cache)
	if err != nil {
		return fmt.Errorf("初始化缓存失败: %w", err)
	}
	if b.Cache != nil {
		ns := fmt.Sprintf("%s:%s:%d", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension)
		ttl := config.ParseDuration(cfg.Storage.Cache.TTL, 24*time.Hour)
		embedder = modelembed.NewCachedEmbedder(embedder, b.Cache, ns, ttl)
	}
	var vecOpts []vector.Option
	if cfg.Embedding.Dimension > 0 {
		vecOpts = append(vecOpts, vector.WithDimension(cfg.Embedding.Dimension))
	}
	b.Vectors = vector.NewStore(embedder, b.Persist, b.Logger.With("component", "vector"), vecOpts...)
	if err := b.Vectors.Load(ctx); err != nil {
		return fmt.Errorf("加载向量数据失败: %w", err)
	}
	b.Contexts = memory.NewContextBuilder(b.Vectors)

	b.Registry = task.NewRegistry()
	execs := executor.New(executor.Options{
		Delays:   executor.DefaultDelays(),
		Context:  b.Contexts,
		Messages: b.Vectors,
	})
	if err := execs.Register(b.Registry); err != nil {
		return err
	}

	b.Queue, err = task.NewQueue(task.ConfigFromSettings(cfg.Scheduler), b.Registry, b.Persist, b.Logger.With("component", "queue"))
	if err != nil {
		return fmt.Errorf("初始化任务队列失败: %w", err)
	}
	if err := b.Queue.Load(ctx); err != nil {
		return fmt.Errorf("加载任务数据失败: %w", err)
	}
	b.Logger.Info("bootstrap 完成",
		"persistence", cfg.Storage.Persistence.Type,
		"embedding_provider", cfg.Embedding.Provider,
		"tasks", len(b.Queue.List(ctx, task.ListFilter{})),
		"embeddings", b.Vectors.Len())
	return nil
}

// Close 停止队列并释放持久化连接与日志文件
func (b *Bootstrap) Close() error {
	if b.Queue != nil {
		b.Queue.Stop()
	}
	var firstErr error
	if b.Cache != nil {
		_ = b.Cache.Close()
	}
	if b.Persist != nil {
		if err := b.Persist.Close(); err != nil {
			firstErr = err
		}
	}
	if err := b.Logger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
