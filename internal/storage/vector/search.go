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

package vector

import (
	"context"
	"math"
	"sort"
	"time"

	apperrors "forge-platform/pkg/errors"
	"forge-platform/pkg/metrics"
	"forge-platform/pkg/tracing"
)

// 检索默认值与打分权重
const (
	DefaultThreshold = 0.5
	DefaultLimit     = 10

	similarityWeight = 0.7
	relevanceWeight  = 0.3

	recencyHorizon = 168 * time.Hour
)

// SimilaritySearch 过滤、打分、按阈值截断并按综合得分排序
func (s *Store) SimilaritySearch(ctx context.Context, q SearchQuery) (results []SearchResult, err error) {
	if q.Query == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidArg, "query is required")
	}
	threshold := DefaultThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, span := tracing.StartSearchSpan(ctx, q.AgentID, limit)
	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
	}()

	qv, err := s.GenerateEmbedding(ctx, q.Query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	now := s.now()
	for _, e := range s.records {
		if !matchesQuery(e, q) {
			continue
		}
		sim := cosineSimilarity(qv, e.Vector)
		if sim < threshold {
			continue
		}
		results = append(results, SearchResult{
			Embedding:      e.clone(),
			Similarity:     sim,
			RelevanceScore: relevanceScore(e, q, now),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	if len(results) > limit {
		results = results[:limit]
	}
	metrics.EmbeddingOpsTotal.WithLabelValues("search").Inc()
	return results, nil
}

func matchesQuery(e *Embedding, q SearchQuery) bool {
	md := e.Metadata
	if q.AgentID != "" && md.AgentID != q.AgentID {
		return false
	}
	if q.SessionID != "" && md.SessionID != q.SessionID {
		return false
	}
	if q.Type != "" && md.Type != q.Type {
		return false
	}
	if q.Topic != "" && (md.Topic == "" || !containsFold(md.Topic, q.Topic)) {
		return false
	}
	if len(q.Tags) > 0 && countTags(md.Tags, q.Tags) == 0 {
		return false
	}
	return true
}

func countTags(have, want []string) int {
	n := 0
	for _, w := range want {
		for _, h := range have {
			if h == w {
				n++
				break
			}
		}
	}
	return n
}

// relevanceScore 元数据相关度，范围 [0,1]
func relevanceScore(e *Embedding, q SearchQuery, now time.Time) float64 {
	md := e.Metadata
	score := 0.0
	if q.Type != "" && md.Type == q.Type {
		score += 0.3
	}
	if q.Topic != "" && md.Topic != "" && containsFold(md.Topic, q.Topic) {
		score += 0.3
	}
	if len(q.Tags) > 0 {
		score += float64(countTags(md.Tags, q.Tags)) / float64(len(q.Tags)) * 0.2
	}
	age := now.Sub(md.Timestamp)
	recency := math.Max(0, 1-float64(age)/float64(recencyHorizon))
	score += math.Min(recency, 1) * 0.2
	return math.Min(score, 1)
}

// cosineSimilarity 维度不一致或任一零向量时返回 0
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
