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

	"forge-platform/internal/agent/scheduler"
	"forge-platform/pkg/config"
)

// Config 队列调度配置
type Config struct {
	MaxConcurrentTasks int
	RetryDelay         time.Duration
	DefaultTimeout     time.Duration
	MaxRetries         int
	PriorityMode       string // weighted | strict
	PollInterval       time.Duration
	WaitScale          time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks: 5,
		RetryDelay:         time.Second,
		DefaultTimeout:     30 * time.Second,
		MaxRetries:         3,
		PriorityMode:       scheduler.ModeWeighted,
		PollInterval:       100 * time.Millisecond,
		WaitScale:          scheduler.DefaultWaitScale,
	}
}

// ConfigFromSettings 由配置文件的 scheduler 段生成 Config，缺省字段取默认值
func ConfigFromSettings(s config.SchedulerConfig) Config {
	def := DefaultConfig()
	c := Config{
		MaxConcurrentTasks: s.MaxConcurrentTasks,
		RetryDelay:         config.ParseDuration(s.RetryDelay, def.RetryDelay),
		DefaultTimeout:     config.ParseDuration(s.DefaultTimeout, def.DefaultTimeout),
		MaxRetries:         s.MaxRetries,
		PriorityMode:       s.PriorityMode,
		PollInterval:       config.ParseDuration(s.PollInterval, def.PollInterval),
		WaitScale:          config.ParseDuration(s.WaitScale, def.WaitScale),
	}
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = def.MaxConcurrentTasks
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = def.DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.PriorityMode == "" {
		c.PriorityMode = def.PriorityMode
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.WaitScale <= 0 {
		c.WaitScale = def.WaitScale
	}
	return c
}
