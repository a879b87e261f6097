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

package task

import (
	"context"
	"fmt"
	"sync"
)

// Executor 某一任务类型的执行器；应在 ctx 取消后尽快返回
type Executor interface {
	Execute(ctx context.Context, t *Task) (any, error)
}

// ExecutorFunc 函数适配为 Executor
type ExecutorFunc func(ctx context.Context, t *Task) (any, error)

// Execute 实现 Executor
func (f ExecutorFunc) Execute(ctx context.Context, t *Task) (any, error) {
	return f(ctx, t)
}

// Registry 任务类型到执行器的映射
type Registry struct {
	mu        sync.RWMutex
	executors map[Type]Executor
}

// NewRegistry 创建空 Registry
func NewRegistry() *Registry {
	return &Registry{executors: make(map[Type]Executor)}
}

// Register 注册执行器，同类型重复注册会覆盖
func (r *Registry) Register(typ Type, exec Executor) error {
	if !typ.Valid() {
		return fmt.Errorf("unknown task type: %s", typ)
	}
	if exec == nil {
		return fmt.Errorf("nil executor for task type %s", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[typ] = exec
	return nil
}

// Get 获取执行器
func (r *Registry) Get(typ Type) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[typ]
	return e, ok
}

type progressKey struct{}

// withProgress 将进度回调注入执行上下文
func withProgress(ctx context.Context, fn func(int)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress 执行器上报进度（0-100）；不在队列执行上下文中时无操作
func ReportProgress(ctx context.Context, pct int) {
	fn, ok := ctx.Value(progressKey{}).(func(int))
	if !ok || fn == nil {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	fn(pct)
}
