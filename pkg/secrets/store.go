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

// Package secrets 解析配置中以 secret:// 引用的敏感值
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forge-platform/pkg/config"
)

// RefPrefix 配置值以此前缀开头时从 secret 存储读取
const RefPrefix = "secret://"

// ErrNotFound secret 不存在
var ErrNotFound = errors.New("secret not found")

// Store 只读 secret 来源
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// NewStore 按 provider 创建：env（默认）| vault | k8s
func NewStore(cfg config.SecretsConfig) (Store, error) {
	switch cfg.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    cfg.Vault.Address,
			Token:      cfg.Vault.Token,
			PathPrefix: cfg.Vault.PathPrefix,
		})
	case "k8s":
		return NewK8sStore(cfg.MountPath), nil
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", cfg.Provider)
	}
}

// Resolve 若 value 为 secret:// 引用则读取对应 secret，否则原样返回
func Resolve(ctx context.Context, s Store, value string) (string, error) {
	key, ok := strings.CutPrefix(value, RefPrefix)
	if !ok {
		return value, nil
	}
	if key == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	v, err := s.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", key, err)
	}
	return v, nil
}

// ResolveConfig 原地解析配置中的敏感字段
func ResolveConfig(ctx context.Context, s Store, cfg *config.Config) error {
	fields := []*string{
		&cfg.Embedding.APIKey,
		&cfg.Storage.Persistence.DSN,
		&cfg.Storage.Persistence.Password,
		&cfg.Storage.Cache.Password,
	}
	for _, f := range fields {
		v, err := Resolve(ctx, s, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
