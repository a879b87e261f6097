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

// Package executor 提供六种任务类型的内置执行器。执行过程为模拟耗时，
// chat / analysis 会结合向量记忆构建上下文窗口
package executor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"forge-platform/internal/agent/memory"
	"forge-platform/internal/agent/task"
	"forge-platform/internal/storage/vector"
)

// Range 模拟耗时区间 [Min, Max)
type Range struct {
	Min time.Duration
	Max time.Duration
}

func (r Range) pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int64N(int64(r.Max-r.Min)))
}

// Delays 各类型的模拟耗时
type Delays struct {
	AgentExecution Range
	TrainingStep   Range
	Deployment     Range
	Chat           Range
	Analysis       Range
	MultiLLM       Range
}

// DefaultDelays 与线上演示环境一致的耗时
func DefaultDelays() Delays {
	return Delays{
		AgentExecution: Range{time.Second, 3 * time.Second},
		TrainingStep:   Range{500 * time.Millisecond, 1500 * time.Millisecond},
		Deployment:     Range{2 * time.Second, 5 * time.Second},
		Chat:           Range{500 * time.Millisecond, 2 * time.Second},
		Analysis:       Range{1500 * time.Millisecond, 4 * time.Second},
		MultiLLM:       Range{2 * time.Second, 5 * time.Second},
	}
}

// ContextProvider 上下文窗口构建能力，由 memory.ContextBuilder 实现
type ContextProvider interface {
	BuildContextWindow(ctx context.Context, query, agentID, sessionID string, opts memory.ContextOptions) (*memory.ContextWindow, error)
}

// MessageStore 对话消息写入向量存储，由 vector.Store 实现
type MessageStore interface {
	StoreEmbedding(ctx context.Context, content string, md vector.Metadata) (*vector.Embedding, error)
}

// Options 内置执行器依赖
type Options struct {
	Delays        Delays
	TrainingSteps int
	Context       ContextProvider // 可为 nil
	Messages      MessageStore    // 可为 nil
	Now           func() time.Time
}

// Executors 内置执行器集合
type Executors struct {
	opts Options
}

// New 创建内置执行器；TrainingSteps<=0 时为 10
func New(opts Options) *Executors {
	if opts.TrainingSteps <= 0 {
		opts.TrainingSteps = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executors{opts: opts}
}

// Register 将六种类型的执行器注册到 reg
func (e *Executors) Register(reg *task.Registry) error {
	for typ, fn := range map[task.Type]task.ExecutorFunc{
		task.TypeAgentExecution: e.AgentExecution,
		task.TypeTraining:       e.Training,
		task.TypeDeployment:     e.Deployment,
		task.TypeChat:           e.Chat,
		task.TypeAnalysis:       e.Analysis,
		task.TypeMultiLLM:       e.MultiLLM,
	} {
		if err := reg.Register(typ, fn); err != nil {
			return fmt.Errorf("register %s executor: %w", typ, err)
		}
	}
	return nil
}

// sleep 可被 ctx 打断的等待
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executors) timestamp() string {
	return e.opts.Now().UTC().Format(time.RFC3339)
}

func (e *Executors) elapsed(t *task.Task) int64 {
	if t.StartedAt == nil {
		return 0
	}
	return e.opts.Now().Sub(*t.StartedAt).Milliseconds()
}
