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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string
	Token      string
	PathPrefix string // KV v2 挂载点，默认 "secret"
}

// VaultStore 从 Vault KV v2 读取；secret 的 "value" 字段优先
type VaultStore struct {
	client     *vault.Client
	pathPrefix string
}

func NewVaultStore(cfg VaultConfig) (*VaultStore, error) {
	vc := vault.DefaultConfig()
	if cfg.Address != "" {
		vc.Address = cfg.Address
	}
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	prefix := cfg.PathPrefix
	if prefix == "" {
		prefix = "secret"
	}
	return &VaultStore{client: client, pathPrefix: strings.Trim(prefix, "/")}, nil
}

func (v *VaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.client.KVv2(v.pathPrefix).Get(ctx, key)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if s, ok := secret.Data["value"].(string); ok {
		return s, nil
	}
	for _, val := range secret.Data {
		if s, ok := val.(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s has no string value", ErrNotFound, key)
}
