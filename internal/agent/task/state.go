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

// Status 任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// AllStatuses 全部状态
var AllStatuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

// IsTerminal completed / failed / cancelled；failed 可经 retry 回到 pending
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// validTransitions 合法迁移表：pending→running→{completed,failed,cancelled}，failed→pending（重试），
// 任意非 completed/cancelled 状态可取消
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:  {StatusPending, StatusCancelled},
}

// CanTransitionTo 判断状态迁移是否合法
func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range validTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}
