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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forge-platform/internal/agent/scheduler"
	apperrors "forge-platform/pkg/errors"
	"forge-platform/pkg/metrics"
	"forge-platform/pkg/tracing"
)

// Start 启动调度循环；ctx 取消或调用 Stop 后循环退出
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("task queue already started")
	}
	if q.stopping {
		q.mu.Unlock()
		return fmt.Errorf("task queue stopped")
	}
	q.started = true
	q.baseCtx, q.baseCancel = context.WithCancel(ctx)
	q.mu.Unlock()

	q.wg.Add(1)
	go q.loop()
	q.logger.Info("task queue started",
		"max_concurrent_tasks", q.cfg.MaxConcurrentTasks,
		"priority_mode", q.policy.Name())
	return nil
}

// Stop 停止调度，取消执行中的任务（记为 interrupted，不自动重试）并等待 goroutine 退出
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopping {
		q.mu.Unlock()
		return
	}
	q.stopping = true
	// Load 可能在未启动时已安排自动重试
	for id := range q.retries {
		q.stopRetryLocked(id)
	}
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	close(q.stopCh)
	q.baseCancel()
	q.wg.Wait()
	q.logger.Info("task queue stopped")
}

func (q *Queue) loop() {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()
	for {
		for q.dispatchOne() {
		}
		select {
		case <-q.stopCh:
			return
		case <-q.baseCtx.Done():
			return
		case <-q.wakeup.C():
		case <-ticker.C:
		}
	}
}

// dispatchOne 选出并启动一个任务；无空闲槽位或无可运行任务时返回 false
func (q *Queue) dispatchOne() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopping || q.baseCtx.Err() != nil || len(q.runs) >= q.cfg.MaxConcurrentTasks {
		return false
	}
	candidates := make([]scheduler.Candidate, 0)
	for _, t := range q.tasks {
		if t.Status != StatusPending || !q.dependenciesMetLocked(t) {
			continue
		}
		candidates = append(candidates, scheduler.Candidate{ID: t.ID, Rank: t.Priority.Rank(), CreatedAt: t.CreatedAt})
	}
	idx := q.policy.Select(q.now(), candidates)
	if idx < 0 {
		return false
	}
	q.admitLocked(q.tasks[candidates[idx].ID])
	return true
}

func (q *Queue) dependenciesMetLocked(t *Task) bool {
	for _, dep := range t.Dependencies {
		d, ok := q.tasks[dep]
		if !ok || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// admitLocked pending → running 并启动执行 goroutine
func (q *Queue) admitLocked(t *Task) {
	if err := q.transitionLocked(t, StatusRunning); err != nil {
		q.logger.Error("admit task failed", "task_id", t.ID, "error", err)
		return
	}
	t.Progress = 0
	exec, ok := q.registry.Get(t.Type)
	if !ok {
		// 无执行器时直接失败，重试也无法成功
		_ = q.transitionLocked(t, StatusFailed)
		t.Error = fmt.Sprintf("no executor registered for task type %s", t.Type)
		t.ErrorKind = ErrorKindExecution
		metrics.TaskTotal.WithLabelValues(string(t.Type), string(StatusFailed)).Inc()
		q.refreshGaugesLocked()
		q.saveQuietLocked()
		q.logger.Warn("task failed", "task_id", t.ID, "error", t.Error)
		return
	}

	q.gen++
	gen := q.gen
	runCtx, cancel := context.WithTimeout(q.baseCtx, t.Timeout)
	q.runs[t.ID] = &run{gen: gen, cancel: cancel}
	q.refreshGaugesLocked()
	q.saveQuietLocked()

	snapshot := t.Clone()
	q.wg.Add(1)
	go q.execute(runCtx, cancel, exec, snapshot, gen)
	q.logger.Debug("task admitted", "task_id", t.ID, "type", t.Type, "attempt", t.RetryCount+1)
}

type outcome struct {
	result any
	err    error
}

// execute 运行执行器；超时由此处强制收尾，不依赖执行器配合
func (q *Queue) execute(runCtx context.Context, cancel context.CancelFunc, exec Executor, t *Task, gen uint64) {
	defer q.wg.Done()
	defer cancel()

	ctx, span := tracing.StartTaskSpan(runCtx, t.ID, string(t.Type), t.RetryCount+1)
	ctx = withProgress(ctx, func(pct int) { q.setProgress(t.ID, gen, pct) })

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		res, err := exec.Execute(ctx, t)
		done <- outcome{result: res, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-runCtx.Done():
		o = outcome{err: runCtx.Err()}
	}

	switch {
	case o.err == nil:
		q.finalize(t.ID, gen, nil, "", o.result)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		o.err = apperrors.Wrapf(apperrors.ErrTimeout, "task exceeded timeout %s", t.Timeout)
		q.finalize(t.ID, gen, o.err, ErrorKindTimeout, nil)
	case runCtx.Err() != nil:
		// Cancel 已删除句柄时 finalize 为空操作；剩下的是 Stop 导致的中断
		o.err = apperrors.Wrap(apperrors.ErrInterrupted, "queue stopped")
		q.finalize(t.ID, gen, o.err, ErrorKindInterrupted, nil)
	default:
		q.finalize(t.ID, gen, o.err, ErrorKindExecution, nil)
	}
	tracing.EndSpan(span, o.err)
}

// finalize 记录一次尝试的结果；同一 gen 只生效一次，Cancel 后到达的结果被丢弃
func (q *Queue) finalize(id string, gen uint64, execErr error, kind ErrorKind, result any) {
	// 结果随快照持久化，无法编码的结果记为执行失败
	if execErr == nil {
		if _, err := json.Marshal(result); err != nil {
			execErr = fmt.Errorf("encode task result: %w", err)
			kind = ErrorKindExecution
			result = nil
		}
	}
	q.mu.Lock()
	r, ok := q.runs[id]
	if !ok || r.gen != gen {
		q.mu.Unlock()
		return
	}
	delete(q.runs, id)
	t := q.tasks[id]
	if t == nil || t.Status != StatusRunning {
		q.refreshGaugesLocked()
		q.mu.Unlock()
		return
	}

	to := StatusCompleted
	if execErr != nil {
		to = StatusFailed
	}
	if err := q.transitionLocked(t, to); err != nil {
		q.logger.Error("finalize task failed", "task_id", id, "error", err)
		q.mu.Unlock()
		return
	}
	if execErr == nil {
		t.Result = result
		t.Progress = 100
		t.Error = ""
		t.ErrorKind = ""
	} else {
		t.Error = execErr.Error()
		t.ErrorKind = kind
		if kind != ErrorKindInterrupted {
			q.scheduleRetryLocked(t)
		}
	}
	metrics.TaskTotal.WithLabelValues(string(t.Type), string(t.Status)).Inc()
	if t.StartedAt != nil && t.CompletedAt != nil {
		metrics.TaskDuration.WithLabelValues(string(t.Type)).Observe(t.CompletedAt.Sub(*t.StartedAt).Seconds())
	}
	retryCount, maxRetries := t.RetryCount, t.MaxRetries
	q.refreshGaugesLocked()
	q.saveQuietLocked()
	q.mu.Unlock()

	if execErr != nil {
		q.logger.Warn("task failed", "task_id", id, "kind", kind, "error", execErr, "retry_count", retryCount, "max_retries", maxRetries)
	} else {
		q.logger.Info("task completed", "task_id", id)
	}
	q.wakeup.notify()
}

// scheduleRetryLocked 仍有重试次数时在 RetryDelay 后自动放回 pending
func (q *Queue) scheduleRetryLocked(t *Task) {
	if q.stopping || t.RetryCount >= t.MaxRetries {
		return
	}
	id := t.ID
	q.stopRetryLocked(id)
	q.retries[id] = time.AfterFunc(q.cfg.RetryDelay, func() { q.autoRetry(id) })
}

func (q *Queue) autoRetry(id string) {
	q.mu.Lock()
	delete(q.retries, id)
	t, ok := q.tasks[id]
	if q.stopping || !ok || t.Status != StatusFailed || t.RetryCount >= t.MaxRetries {
		q.mu.Unlock()
		return
	}
	if err := q.retryLocked(t); err != nil {
		q.mu.Unlock()
		return
	}
	retryCount := t.RetryCount
	q.saveQuietLocked()
	q.mu.Unlock()

	q.logger.Info("task auto retried", "task_id", id, "retry_count", retryCount)
	q.wakeup.notify()
}

// setProgress 执行器上报进度，仅对当前尝试有效
func (q *Queue) setProgress(id string, gen uint64, pct int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.runs[id]
	if !ok || r.gen != gen {
		return
	}
	if t := q.tasks[id]; t != nil && t.Status == StatusRunning {
		t.Progress = pct
	}
}
