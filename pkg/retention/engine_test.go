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
	"errors"
	"testing"
	"time"

	"forge-platform/pkg/config"
)

type recordingSweeper struct {
	before  time.Time
	calls   int
	removed int
	err     error
}

func (r *recordingSweeper) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	r.before = olderThan
	r.calls++
	return r.removed, r.err
}

func (r *recordingSweeper) DeleteOlderThan(ctx context.Context, before time.Time) (int, error) {
	return r.Cleanup(ctx, before)
}

func newTestEngine(cfg RetentionConfig, tasks TaskSweeper, embeddings EmbeddingSweeper, now time.Time) *Engine {
	e := NewEngine(cfg, tasks, embeddings, nil)
	e.now = func() time.Time { return now }
	return e
}

// TestRetention_Disabled 未启用时不清理
func TestRetention_Disabled(t *testing.T) {
	tasks := &recordingSweeper{removed: 3}
	e := newTestEngine(DefaultRetentionConfig(), tasks, nil, time.Now())

	res, err := e.RunRetentionScan(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if tasks.calls != 0 || res.TasksRemoved != 0 {
		t.Errorf("disabled engine should not sweep, calls=%d removed=%d", tasks.calls, res.TasksRemoved)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Errorf("run on disabled engine: %v", err)
	}
}

// TestRetention_Cutoffs 按保留期计算截止时间
func TestRetention_Cutoffs(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tasks := &recordingSweeper{removed: 2}
	embeddings := &recordingSweeper{removed: 5}
	e := newTestEngine(RetentionConfig{
		Enable:             true,
		TaskRetention:      48 * time.Hour,
		EmbeddingRetention: 24 * time.Hour,
	}, tasks, embeddings, now)

	res, err := e.RunRetentionScan(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if res.TasksRemoved != 2 || res.EmbeddingsRemoved != 5 {
		t.Errorf("unexpected result: %+v", res)
	}
	if !tasks.before.Equal(now.Add(-48 * time.Hour)) {
		t.Errorf("task cutoff = %v", tasks.before)
	}
	if !embeddings.before.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("embedding cutoff = %v", embeddings.before)
	}
}

// TestRetention_ZeroKeepsForever 保留期为 0 的数据不清理
func TestRetention_ZeroKeepsForever(t *testing.T) {
	embeddings := &recordingSweeper{}
	e := newTestEngine(RetentionConfig{Enable: true, TaskRetention: time.Hour}, nil, embeddings, time.Now())

	if _, err := e.RunRetentionScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if embeddings.calls != 0 {
		t.Errorf("embeddings should be kept, calls=%d", embeddings.calls)
	}
}

// TestRetention_SweepError 清理失败向上返回
func TestRetention_SweepError(t *testing.T) {
	boom := errors.New("boom")
	tasks := &recordingSweeper{err: boom}
	e := newTestEngine(RetentionConfig{Enable: true, TaskRetention: time.Hour}, tasks, nil, time.Now())

	if _, err := e.RunRetentionScan(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

// TestRetention_RunStopsOnCancel Run 随 ctx 退出
func TestRetention_RunStopsOnCancel(t *testing.T) {
	tasks := &recordingSweeper{}
	e := NewEngine(RetentionConfig{Enable: true, TaskRetention: time.Hour, ScanInterval: 5 * time.Millisecond}, tasks, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tasks.calls == 0 {
		t.Error("expected at least one scan")
	}
}

// TestConfigFromSettings 字符串时长解析
func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(configSettings("36h", "", "10m"))
	if !cfg.Enable {
		t.Error("expected enabled")
	}
	if cfg.TaskRetention != 36*time.Hour {
		t.Errorf("task retention = %v", cfg.TaskRetention)
	}
	if cfg.EmbeddingRetention != 0 {
		t.Errorf("embedding retention = %v", cfg.EmbeddingRetention)
	}
	if cfg.ScanInterval != 10*time.Minute {
		t.Errorf("scan interval = %v", cfg.ScanInterval)
	}
}

func configSettings(task, embedding, interval string) config.RetentionConfig {
	return config.RetentionConfig{
		Enable:             true,
		TaskRetention:      task,
		EmbeddingRetention: embedding,
		ScanInterval:       interval,
	}
}
