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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
scheduler:
  max_concurrent_tasks: 2
  priority_mode: strict
  retry_delay: 250ms
storage:
  persistence:
    type: sqlite
    path: /tmp/forge.db
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host: got %q", cfg.API.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Scheduler.MaxConcurrentTasks != 2 || cfg.Scheduler.PriorityMode != "strict" {
		t.Errorf("Scheduler: got %+v", cfg.Scheduler)
	}
	if d := ParseDuration(cfg.Scheduler.RetryDelay, time.Second); d != 250*time.Millisecond {
		t.Errorf("RetryDelay: got %v", d)
	}
	if cfg.Storage.Persistence.Type != "sqlite" || cfg.Storage.Persistence.Path != "/tmp/forge.db" {
		t.Errorf("Persistence: got %+v", cfg.Storage.Persistence)
	}
	// 未出现在文件中的字段取默认值
	if cfg.Scheduler.MaxRetries != 3 {
		t.Errorf("MaxRetries default: got %d", cfg.Scheduler.MaxRetries)
	}
	if cfg.Embedding.Dimension != 1536 || cfg.Embedding.Provider != "hash" {
		t.Errorf("Embedding defaults: got %+v", cfg.Embedding)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Scheduler.MaxConcurrentTasks != 5 || cfg.Scheduler.PriorityMode != "weighted" {
		t.Errorf("Scheduler defaults: got %+v", cfg.Scheduler)
	}
	if cfg.Storage.Persistence.Type != "memory" {
		t.Errorf("Persistence default: got %q", cfg.Storage.Persistence.Type)
	}
}

func TestLoadConfig_EnvAPIKey(t *testing.T) {
	t.Setenv("FORGE_TEST_EMBED_KEY", "sk-test")
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	yaml := "embedding:\n  provider: openai\n  api_key: \"${FORGE_TEST_EMBED_KEY}\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("APIKey: got %q", cfg.Embedding.APIKey)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseDuration(t *testing.T) {
	if ParseDuration("", time.Second) != time.Second {
		t.Error("empty should return default")
	}
	if ParseDuration("bogus", time.Second) != time.Second {
		t.Error("invalid should return default")
	}
	if ParseDuration("2m", time.Second) != 2*time.Minute {
		t.Error("2m")
	}
}
