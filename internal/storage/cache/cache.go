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

package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"forge-platform/pkg/config"
)

// NewCache 按配置创建缓存；type 为空时返回 nil 表示不启用
func NewCache(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryStore(cfg.MaxEntries), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return NewRedisStore(client, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
