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
	"fmt"
	"sort"
	"time"

	"forge-platform/internal/storage/kv"
	apperrors "forge-platform/pkg/errors"
)

const snapshotVersion = 1

type snapshot struct {
	Version int     `json:"version"`
	Tasks   []*Task `json:"tasks"`
}

// saveLocked 写入快照；失败时返回包装 ErrPersistence 的错误，内存状态保持不变
func (q *Queue) saveLocked(ctx context.Context) error {
	if q.persist == nil {
		return nil
	}
	snap := snapshot{Version: snapshotVersion, Tasks: make([]*Task, 0, len(q.tasks))}
	for _, t := range q.tasks {
		snap.Tasks = append(snap.Tasks, t)
	}
	sort.Slice(snap.Tasks, func(i, j int) bool {
		return snap.Tasks[i].CreatedAt.Before(snap.Tasks[j].CreatedAt)
	})
	data, err := json.Marshal(snap)
	if err != nil {
		q.logger.Error("encode task snapshot failed", "error", err)
		return apperrors.Wrap(apperrors.ErrPersistence, fmt.Sprintf("encode task snapshot: %v", err))
	}
	if err := q.persist.Save(ctx, kv.KeyTaskQueue, data); err != nil {
		q.logger.Error("save task queue failed", "error", err)
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	return nil
}

// saveQuietLocked 调度路径上的保存，失败只记录日志
func (q *Queue) saveQuietLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = q.saveLocked(ctx)
}

// Load 从持久化恢复任务。上次进程中仍为 running 的任务记为 interrupted 失败，
// 有剩余重试次数的 failed 任务重新安排自动重试
func (q *Queue) Load(ctx context.Context) error {
	if q.persist == nil {
		return nil
	}
	data, err := q.persist.Load(ctx, kv.KeyTaskQueue)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	if len(data) == 0 {
		return nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode task snapshot: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	interrupted := 0
	for _, t := range snap.Tasks {
		if t == nil || t.ID == "" {
			continue
		}
		if t.Status == StatusRunning {
			_ = q.transitionLocked(t, StatusFailed)
			t.Error = apperrors.Wrap(apperrors.ErrInterrupted, "process restarted").Error()
			t.ErrorKind = ErrorKindInterrupted
			interrupted++
		}
		q.tasks[t.ID] = t
	}
	for _, t := range q.tasks {
		if t.Status == StatusFailed {
			q.scheduleRetryLocked(t)
		}
	}
	q.refreshGaugesLocked()
	q.logger.Info("task queue loaded", "tasks", len(q.tasks), "interrupted", interrupted)
	if interrupted > 0 {
		return q.saveLocked(ctx)
	}
	return nil
}
