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

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"forge-platform/internal/storage/vector"
)

// 上下文窗口默认参数
const (
	DefaultMaxEmbeddings = 20
	contextThreshold     = 0.3
	maxKeyTopics         = 5
	maxKeyTerms          = 10
	noContextSummary     = "No relevant context found."
)

// Searcher 相似度检索能力，由 vector.Store 实现
type Searcher interface {
	SimilaritySearch(ctx context.Context, q vector.SearchQuery) ([]vector.SearchResult, error)
}

// ContextOptions 构建选项
type ContextOptions struct {
	MaxEmbeddings int                  `json:"max_embeddings,omitempty"`
	TimeWindow    time.Duration        `json:"time_window,omitempty"` // 仅保留最近 TimeWindow 内的记录，0 表示不限
	Types         []vector.ContentType `json:"types,omitempty"`
}

// ContextWindow 为一次查询组装的上下文
type ContextWindow struct {
	Embeddings     []*vector.Embedding `json:"embeddings"`
	Summary        string              `json:"summary"`
	KeyTopics      []string            `json:"key_topics"`
	RelevanceScore float64             `json:"relevance_score"`
	Timestamp      time.Time           `json:"timestamp"`
}

// ContextBuilder 基于向量检索构建上下文窗口
type ContextBuilder struct {
	searcher Searcher
	now      func() time.Time
}

// NewContextBuilder 创建 ContextBuilder
func NewContextBuilder(searcher Searcher) *ContextBuilder {
	return &ContextBuilder{searcher: searcher, now: time.Now}
}

// BuildContextWindow 检索与 query 相关的记录并生成摘要
func (b *ContextBuilder) BuildContextWindow(ctx context.Context, query, agentID, sessionID string, opts ContextOptions) (*ContextWindow, error) {
	limit := opts.MaxEmbeddings
	if limit <= 0 {
		limit = DefaultMaxEmbeddings
	}
	base := vector.SearchQuery{
		Query:     query,
		AgentID:   agentID,
		SessionID: sessionID,
		Limit:     limit,
		Threshold: vector.Float64(contextThreshold),
	}

	results, err := b.search(ctx, base, opts.Types)
	if err != nil {
		return nil, err
	}

	now := b.now()
	if opts.TimeWindow > 0 {
		cutoff := now.Add(-opts.TimeWindow)
		kept := results[:0]
		for _, r := range results {
			if r.Embedding.Metadata.Timestamp.After(cutoff) {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	w := &ContextWindow{
		Embeddings: make([]*vector.Embedding, 0, len(results)),
		KeyTopics:  []string{},
		Timestamp:  now,
	}
	var total float64
	var topics []string
	for _, r := range results {
		w.Embeddings = append(w.Embeddings, r.Embedding)
		total += r.RelevanceScore
		if r.Embedding.Metadata.Topic != "" {
			topics = append(topics, r.Embedding.Metadata.Topic)
		}
	}
	if len(results) > 0 {
		w.RelevanceScore = total / float64(len(results))
	}
	w.KeyTopics = topN(topics, maxKeyTopics)
	w.Summary = summarize(w.Embeddings)
	return w, nil
}

// search 多个类型时逐类型检索再按综合得分合并
func (b *ContextBuilder) search(ctx context.Context, base vector.SearchQuery, types []vector.ContentType) ([]vector.SearchResult, error) {
	if len(types) <= 1 {
		if len(types) == 1 {
			base.Type = types[0]
		}
		return b.searcher.SimilaritySearch(ctx, base)
	}
	var merged []vector.SearchResult
	seen := make(map[vector.ContentType]bool, len(types))
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		q := base
		q.Type = t
		res, err := b.searcher.SimilaritySearch(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("search type %s: %w", t, err)
		}
		merged = append(merged, res...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score() > merged[j].Score()
	})
	if len(merged) > base.Limit {
		merged = merged[:base.Limit]
	}
	return merged, nil
}

// summarize 抽取式摘要：条数、主题、高频词与总字符数
func summarize(embeddings []*vector.Embedding) string {
	if len(embeddings) == 0 {
		return noContextSummary
	}
	contents := make([]string, 0, len(embeddings))
	var topics []string
	seen := make(map[string]bool)
	for _, e := range embeddings {
		contents = append(contents, e.Content)
		if t := e.Metadata.Topic; t != "" && !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	all := strings.Join(contents, " ")

	var words []string
	for _, w := range strings.Fields(strings.ToLower(all)) {
		if utf8.RuneCountInString(w) > 3 {
			words = append(words, w)
		}
	}
	terms := topN(words, maxKeyTerms)

	return fmt.Sprintf("Context summary: Found %d relevant items covering topics: %s. Key terms include: %s. Total context size: %d characters.",
		len(embeddings), strings.Join(topics, ", "), strings.Join(terms, ", "), utf8.RuneCountInString(all))
}

// topN 按出现次数降序取前 n 个，次数相同按首次出现顺序
func topN(items []string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, it := range items {
		if counts[it] == 0 {
			order = append(order, it)
		}
		counts[it]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	if order == nil {
		return []string{}
	}
	return order
}
