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

package embedding

import (
	"context"
	"fmt"

	geminiembed "github.com/cloudwego/eino-ext/components/embedding/gemini"
	ollamaembed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	"forge-platform/pkg/config"
)

// 各 provider 未配置模型时的默认值
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultGeminiModel = "text-embedding-004"
	DefaultOllamaURL   = "http://localhost:11434"
)

// NewEmbedder 根据配置创建 Embedder：hash（默认）| openai | ollama | gemini
// 远程模型的输出维度需与 embedding.dimension 一致，否则写入向量存储时被拒绝
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	switch cfg.Provider {
	case "", "hash":
		return NewHashEmbedder(dim), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding.api_key is required for provider=openai")
		}
		return openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
			Model:      orDefault(cfg.Model, DefaultOpenAIModel),
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Dimensions: &dim,
		})
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollamaembed.NewEmbedder(ctx, &ollamaembed.EmbeddingConfig{
			BaseURL: baseURL,
			Model:   orDefault(cfg.Model, DefaultOllamaModel),
		})
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding.api_key is required for provider=gemini")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return geminiembed.NewEmbedder(ctx, &geminiembed.EmbeddingConfig{
			Client: client,
			Model:  orDefault(cfg.Model, DefaultGeminiModel),
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
