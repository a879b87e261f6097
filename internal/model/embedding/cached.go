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
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cloudwego/eino/components/embedding"
)

// Cache 向量缓存，由 storage/cache.Store 实现
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedEmbedder 按文本内容缓存向量，只对未命中的文本调用下游
type CachedEmbedder struct {
	inner     embedding.Embedder
	cache     Cache
	namespace string
	ttl       time.Duration
}

// NewCachedEmbedder namespace 用于区分模型与维度，避免不同配置互相命中
func NewCachedEmbedder(inner embedding.Embedder, cache Cache, namespace string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, namespace: namespace, ttl: ttl}
}

func (c *CachedEmbedder) key(text string) string {
	return "emb:" + c.namespace + ":" + strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// EmbedStrings 实现 embedding.Embedder；缓存读写失败按未命中处理
func (c *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		var v []float64
		if err := c.cache.Get(ctx, c.key(text), &v); err == nil && len(v) > 0 {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedStrings(ctx, missTexts, opts...)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		_ = c.cache.Set(ctx, c.key(missTexts[j]), vecs[j], c.ttl)
	}
	return out, nil
}
