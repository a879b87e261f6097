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
	"time"
)

// Type 任务类型，决定由哪个 Executor 执行
type Type string

const (
	TypeAgentExecution Type = "agent_execution"
	TypeTraining       Type = "training"
	TypeDeployment     Type = "deployment"
	TypeChat           Type = "chat"
	TypeAnalysis       Type = "analysis"
	TypeMultiLLM       Type = "multi_llm"
)

// AllTypes 全部已知任务类型
var AllTypes = []Type{TypeAgentExecution, TypeTraining, TypeDeployment, TypeChat, TypeAnalysis, TypeMultiLLM}

// Valid 是否为已知类型
func (t Type) Valid() bool {
	for _, k := range AllTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Priority 任务优先级
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AllPriorities 从低到高
var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Rank 优先级权重：critical=4 > high=3 > medium=2 > low=1，未知为 0
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// ErrorKind 失败原因分类
type ErrorKind string

const (
	ErrorKindExecution   ErrorKind = "execution"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindInterrupted ErrorKind = "interrupted"
)

// Task 队列中的任务记录
type Task struct {
	ID           string         `json:"id"`
	Type         Type           `json:"type"`
	Priority     Priority       `json:"priority"`
	Status       Status         `json:"status"`
	AgentID      string         `json:"agent_id,omitempty"`
	UserID       string         `json:"user_id"`
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Progress     int            `json:"progress"`
	Result       any            `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	ErrorKind    ErrorKind      `json:"error_kind,omitempty"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	Timeout      time.Duration  `json:"timeout"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Clone 深拷贝记录（Payload 与 Result 为浅拷贝）
func (t *Task) Clone() *Task {
	c := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.Payload != nil {
		c.Payload = make(map[string]any, len(t.Payload))
		for k, v := range t.Payload {
			c.Payload[k] = v
		}
	}
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	return &c
}

// Spec 入队参数
type Spec struct {
	Type         Type           `json:"type" validate:"required,oneof=agent_execution training deployment chat analysis multi_llm"`
	Priority     Priority       `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	AgentID      string         `json:"agent_id,omitempty"`
	UserID       string         `json:"user_id" validate:"required"`
	Payload      map[string]any `json:"payload,omitempty"`
	MaxRetries   *int           `json:"max_retries,omitempty" validate:"omitempty,min=0"`
	Timeout      time.Duration  `json:"timeout,omitempty" validate:"min=0"`
	Dependencies []string       `json:"dependencies,omitempty" validate:"dive,required"`
}

// Metrics 队列统计
type Metrics struct {
	TotalTasks            int              `json:"total_tasks"`
	PendingTasks          int              `json:"pending_tasks"`
	RunningTasks          int              `json:"running_tasks"`
	CompletedTasks        int              `json:"completed_tasks"`
	FailedTasks           int              `json:"failed_tasks"`
	CancelledTasks        int              `json:"cancelled_tasks"`
	AverageProcessingMs   float64          `json:"average_processing_ms"`
	ThroughputPerMinute   float64          `json:"throughput_per_minute"`
	QueueLengthByPriority map[Priority]int `json:"queue_length_by_priority"`
}

// ListFilter 列表过滤条件，空字段不过滤
type ListFilter struct {
	AgentID string
	UserID  string
	Status  Status
}
