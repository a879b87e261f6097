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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"forge-platform/internal/agent/scheduler"
	"forge-platform/internal/storage/kv"
	apperrors "forge-platform/pkg/errors"
	"forge-platform/pkg/log"
	"forge-platform/pkg/metrics"
)

// run 一次执行尝试的句柄；gen 区分同一任务的不同尝试，迟到的完成回调据此丢弃
type run struct {
	gen    uint64
	cancel context.CancelFunc
}

// Queue 内存任务队列：持有全部任务记录与执行句柄，所有状态变更在 mu 下完成
type Queue struct {
	mu       sync.Mutex
	cfg      Config
	tasks    map[string]*Task
	runs     map[string]*run
	retries  map[string]*time.Timer
	gen      uint64
	registry *Registry
	policy   scheduler.Policy
	persist  kv.Store
	logger   *log.Logger
	wakeup   *wakeup
	now      func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	stopCh     chan struct{}
	wg         sync.WaitGroup
	started    bool
	stopping   bool
}

// Option Queue 可选项
type Option func(*Queue)

// WithClock 替换时间源，测试中使用
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// NewQueue 创建任务队列；persist 为 nil 时不持久化
func NewQueue(cfg Config, registry *Registry, persist kv.Store, logger *log.Logger, opts ...Option) (*Queue, error) {
	cfg = cfg.withDefaults()
	policy, err := scheduler.NewPolicy(cfg.PriorityMode, cfg.WaitScale)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidArg, err.Error())
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = log.Discard()
	}
	q := &Queue{
		cfg:      cfg,
		tasks:    make(map[string]*Task),
		runs:     make(map[string]*run),
		retries:  make(map[string]*time.Timer),
		registry: registry,
		policy:   policy,
		persist:  persist,
		logger:   logger.With("component", "task_queue"),
		wakeup:   newWakeup(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	return q, nil
}

// Config 返回生效的配置
func (q *Queue) Config() Config {
	return q.cfg
}

// Enqueue 校验并加入 pending 任务，返回任务 ID；不等待执行
func (q *Queue) Enqueue(ctx context.Context, spec Spec) (string, error) {
	if err := validateSpec(&spec); err != nil {
		return "", err
	}
	t := &Task{
		ID:         "task-" + uuid.New().String(),
		Type:       spec.Type,
		Priority:   spec.Priority,
		Status:     StatusPending,
		AgentID:    spec.AgentID,
		UserID:     spec.UserID,
		MaxRetries: q.cfg.MaxRetries,
		Timeout:    spec.Timeout,
	}
	if spec.Payload != nil {
		t.Payload = make(map[string]any, len(spec.Payload))
		for k, v := range spec.Payload {
			t.Payload[k] = v
		}
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if spec.MaxRetries != nil {
		t.MaxRetries = *spec.MaxRetries
	}
	if t.Timeout == 0 {
		t.Timeout = q.cfg.DefaultTimeout
	}

	q.mu.Lock()
	seen := make(map[string]bool, len(spec.Dependencies))
	for _, dep := range spec.Dependencies {
		if seen[dep] {
			continue
		}
		if _, ok := q.tasks[dep]; !ok {
			q.mu.Unlock()
			return "", apperrors.Wrapf(apperrors.ErrInvalidArg, "unknown dependency %s", dep)
		}
		seen[dep] = true
		t.Dependencies = append(t.Dependencies, dep)
	}
	t.CreatedAt = q.now()
	q.tasks[t.ID] = t
	if err := q.saveLocked(ctx); err != nil {
		delete(q.tasks, t.ID)
		q.mu.Unlock()
		return "", err
	}
	q.refreshGaugesLocked()
	q.mu.Unlock()

	q.logger.Info("task enqueued", "task_id", t.ID, "type", t.Type, "priority", t.Priority, "dependencies", len(t.Dependencies))
	q.wakeup.notify()
	return t.ID, nil
}

// Get 返回任务副本
func (q *Queue) Get(ctx context.Context, id string) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "task %s", id)
	}
	return t.Clone(), nil
}

// List 按条件列出任务，按 CreatedAt 升序
func (q *Queue) List(ctx context.Context, f ListFilter) []*Task {
	q.mu.Lock()
	out := make([]*Task, 0)
	for _, t := range q.tasks {
		if f.AgentID != "" && t.AgentID != f.AgentID {
			continue
		}
		if f.UserID != "" && t.UserID != f.UserID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t.Clone())
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListByAgent 列出某 agent 的任务
func (q *Queue) ListByAgent(ctx context.Context, agentID string) []*Task {
	return q.List(ctx, ListFilter{AgentID: agentID})
}

// ListByUser 列出某用户的任务
func (q *Queue) ListByUser(ctx context.Context, userID string) []*Task {
	return q.List(ctx, ListFilter{UserID: userID})
}

// Cancel 取消任务。未知 ID 返回 ErrNotFound；已处于终态（含重复取消、重试次数用尽的 failed）返回 false
func (q *Queue) Cancel(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return false, apperrors.Wrapf(apperrors.ErrNotFound, "task %s", id)
	}
	switch {
	case t.Status == StatusPending, t.Status == StatusRunning:
	case t.Status == StatusFailed && t.RetryCount < t.MaxRetries:
	default:
		q.mu.Unlock()
		return false, nil
	}
	prev := t.Clone()
	_, hadTimer := q.retries[id]
	r, wasRunning := q.runs[id]
	if wasRunning {
		delete(q.runs, id)
		r.cancel()
	}
	q.stopRetryLocked(id)
	if err := q.transitionLocked(t, StatusCancelled); err != nil {
		q.mu.Unlock()
		return false, err
	}
	if err := q.saveLocked(ctx); err != nil {
		// 执行中的任务已被中断，无法恢复，保持 cancelled
		if !wasRunning {
			*t = *prev
			if hadTimer {
				q.scheduleRetryLocked(t)
			}
		}
		q.refreshGaugesLocked()
		q.mu.Unlock()
		q.wakeup.notify()
		return false, err
	}
	metrics.TaskTotal.WithLabelValues(string(t.Type), string(StatusCancelled)).Inc()
	q.refreshGaugesLocked()
	q.mu.Unlock()

	q.logger.Info("task cancelled", "task_id", id)
	q.wakeup.notify()
	return true, nil
}

// Retry 将 failed 且仍有重试次数的任务放回 pending
func (q *Queue) Retry(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return false, apperrors.Wrapf(apperrors.ErrNotFound, "task %s", id)
	}
	if t.Status != StatusFailed || t.RetryCount >= t.MaxRetries {
		q.mu.Unlock()
		return false, nil
	}
	prev := t.Clone()
	_, hadTimer := q.retries[id]
	q.stopRetryLocked(id)
	if err := q.retryLocked(t); err != nil {
		q.mu.Unlock()
		return false, err
	}
	if err := q.saveLocked(ctx); err != nil {
		*t = *prev
		if hadTimer {
			q.scheduleRetryLocked(t)
		}
		q.refreshGaugesLocked()
		q.mu.Unlock()
		return false, err
	}
	retryCount := t.RetryCount
	q.mu.Unlock()

	q.logger.Info("task retried", "task_id", id, "retry_count", retryCount)
	q.wakeup.notify()
	return true, nil
}

// retryLocked failed → pending，清空错误与时间戳
func (q *Queue) retryLocked(t *Task) error {
	if err := q.transitionLocked(t, StatusPending); err != nil {
		return err
	}
	t.RetryCount++
	t.Error = ""
	t.ErrorKind = ""
	t.Progress = 0
	metrics.TaskRetryTotal.WithLabelValues(string(t.Type)).Inc()
	q.refreshGaugesLocked()
	return nil
}

// transitionLocked 唯一的状态变更入口，维护 StartedAt / CompletedAt
func (q *Queue) transitionLocked(t *Task, to Status) error {
	if !t.Status.CanTransitionTo(to) {
		return apperrors.Wrapf(apperrors.ErrInvalidArg, "task %s: illegal transition %s -> %s", t.ID, t.Status, to)
	}
	now := q.now()
	switch to {
	case StatusRunning:
		t.StartedAt = &now
	case StatusCompleted, StatusFailed, StatusCancelled:
		t.CompletedAt = &now
	case StatusPending:
		t.StartedAt = nil
		t.CompletedAt = nil
	}
	t.Status = to
	return nil
}

// Metrics 队列统计快照
func (q *Queue) Metrics(ctx context.Context) Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := Metrics{
		TotalTasks:            len(q.tasks),
		QueueLengthByPriority: make(map[Priority]int, len(AllPriorities)),
	}
	for _, p := range AllPriorities {
		m.QueueLengthByPriority[p] = 0
	}
	hourAgo := q.now().Add(-time.Hour)
	var totalProcessing time.Duration
	var completedInHour int
	for _, t := range q.tasks {
		switch t.Status {
		case StatusPending:
			m.PendingTasks++
			m.QueueLengthByPriority[t.Priority]++
		case StatusRunning:
			m.RunningTasks++
		case StatusCompleted:
			m.CompletedTasks++
			if t.StartedAt != nil && t.CompletedAt != nil {
				totalProcessing += t.CompletedAt.Sub(*t.StartedAt)
			}
			if t.CompletedAt != nil && t.CompletedAt.After(hourAgo) {
				completedInHour++
			}
		case StatusFailed:
			m.FailedTasks++
		case StatusCancelled:
			m.CancelledTasks++
		}
	}
	if m.CompletedTasks > 0 {
		m.AverageProcessingMs = float64(totalProcessing) / float64(m.CompletedTasks) / float64(time.Millisecond)
	}
	m.ThroughputPerMinute = float64(completedInHour) / 60
	return m
}

// Cleanup 删除 CreatedAt <= olderThan 的终态任务；仍被 pending 任务依赖的记录保留
func (q *Queue) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	needed := make(map[string]bool)
	for _, t := range q.tasks {
		if t.Status == StatusPending || t.Status == StatusRunning {
			for _, dep := range t.Dependencies {
				needed[dep] = true
			}
		}
	}
	removed := 0
	for id, t := range q.tasks {
		if !t.Status.IsTerminal() || t.CreatedAt.After(olderThan) || needed[id] {
			continue
		}
		q.stopRetryLocked(id)
		delete(q.tasks, id)
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	q.refreshGaugesLocked()
	q.logger.Info("tasks cleaned up", "removed", removed, "older_than", olderThan)
	return removed, q.saveLocked(ctx)
}

func (q *Queue) stopRetryLocked(id string) {
	if timer, ok := q.retries[id]; ok {
		timer.Stop()
		delete(q.retries, id)
	}
}

// refreshGaugesLocked 同步 Prometheus 队列指标
func (q *Queue) refreshGaugesLocked() {
	pending := make(map[Priority]int, len(AllPriorities))
	for _, t := range q.tasks {
		if t.Status == StatusPending {
			pending[t.Priority]++
		}
	}
	for _, p := range AllPriorities {
		metrics.TasksPending.WithLabelValues(string(p)).Set(float64(pending[p]))
	}
	metrics.TasksRunning.Set(float64(len(q.runs)))
}
