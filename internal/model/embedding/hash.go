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
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/cloudwego/eino/components/embedding"
)

// DefaultDimension 默认向量维度
const DefaultDimension = 1536

// HashEmbedder 基于 feature hashing 的确定性 Embedder：相同文本得到相同向量，无外部依赖
type HashEmbedder struct {
	dimension int
}

var _ embedding.Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder 创建 HashEmbedder，dimension<=0 时使用 DefaultDimension
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Dimension 返回向量维度
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// EmbedStrings 实现 eino embedding.Embedder
func (e *HashEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *HashEmbedder) embed(text string) []float64 {
	v := make([]float64, e.dimension)
	for _, tok := range Tokenize(text) {
		h := xxhash.Sum64String(tok)
		idx := int(h % uint64(e.dimension))
		// 最高位决定符号，降低碰撞带来的偏置
		if h>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	if Normalize(v) == 0 {
		v[0] = 1
	}
	return v
}

// Tokenize 小写并按非字母数字切分
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Normalize 原地做 L2 归一化，返回原始模长；模长为 0 时不修改
func Normalize(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return 0
	}
	for i := range v {
		v[i] /= norm
	}
	return norm
}
