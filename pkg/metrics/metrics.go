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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TaskTotal, TaskDuration, TaskRetryTotal,
		TasksRunning, TasksPending,
		EmbeddingsStored, EmbeddingOpsTotal, SearchDuration,
	)
}

// TaskTotal 任务终态计数（按类型、状态）
var TaskTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "forge_task_total",
		Help: "任务进入终态的次数",
	},
	[]string{"type", "status"}, // completed | failed | cancelled
)

// TaskDuration 任务执行耗时（秒），仅统计 completed / failed
var TaskDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "forge_task_duration_seconds",
		Help:    "任务执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"type"},
)

// TaskRetryTotal 任务重试次数（自动 + 手动）
var TaskRetryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "forge_task_retry_total",
		Help: "任务重试次数",
	},
	[]string{"type"},
)

// TasksRunning 当前运行中的任务数
var TasksRunning = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "forge_task_running",
		Help: "当前运行中的任务数",
	},
)

// TasksPending 等待中的任务数（按优先级）
var TasksPending = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "forge_task_pending",
		Help: "等待中的任务数",
	},
	[]string{"priority"},
)

// EmbeddingsStored 当前向量记录数
var EmbeddingsStored = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "forge_embeddings_stored",
		Help: "当前向量记录数",
	},
)

// EmbeddingOpsTotal 向量操作计数
var EmbeddingOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "forge_embedding_ops_total",
		Help: "向量存储操作次数",
	},
	[]string{"op"}, // store | search | update | delete
)

// SearchDuration 相似度检索耗时（秒）
var SearchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "forge_search_duration_seconds",
		Help:    "相似度检索耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
