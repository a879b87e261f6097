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
	"time"

	"forge-platform/pkg/config"
)

// RetentionConfig 留存配置；保留期为 0 表示该类数据永久保留
type RetentionConfig struct {
	Enable             bool
	TaskRetention      time.Duration
	EmbeddingRetention time.Duration
	ScanInterval       time.Duration
}

// DefaultRetentionConfig 默认留存配置
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Enable:        false,
		TaskRetention: 7 * 24 * time.Hour,
		ScanInterval:  time.Hour,
	}
}

// ConfigFromSettings 由配置文件生成留存配置，未填写的字段取默认值
func ConfigFromSettings(c config.RetentionConfig) RetentionConfig {
	def := DefaultRetentionConfig()
	return RetentionConfig{
		Enable:             c.Enable,
		TaskRetention:      config.ParseDuration(c.TaskRetention, def.TaskRetention),
		EmbeddingRetention: config.ParseDuration(c.EmbeddingRetention, def.EmbeddingRetention),
		ScanInterval:       config.ParseDuration(c.ScanInterval, def.ScanInterval),
	}
}

// cutoff 返回 now 之前保留期的边界时间；保留期 <=0 时 ok=false
func cutoff(now time.Time, keep time.Duration) (time.Time, bool) {
	if keep <= 0 {
		return time.Time{}, false
	}
	return now.Add(-keep), true
}
