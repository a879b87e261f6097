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

package kv

import (
	"context"
	"fmt"

	"forge-platform/pkg/config"
)

// NewStore 根据配置创建持久化存储
func NewStore(ctx context.Context, cfg config.PersistenceConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage.persistence.path is required for type=file")
		}
		return NewFileStore(nil, cfg.Path)
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage.persistence.path is required for type=sqlite")
		}
		return NewSQLiteStore(ctx, cfg.Path)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.persistence.dsn is required for type=postgres")
		}
		return NewPostgresStore(ctx, cfg.DSN)
	case "redis":
		if cfg.Addr == "" {
			return nil, fmt.Errorf("storage.persistence.addr is required for type=redis")
		}
		return NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.Addr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
