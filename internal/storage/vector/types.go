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

import "time"

// ContentType 向量内容类型
type ContentType string

const (
	TypeMessage   ContentType = "message"
	TypeDocument  ContentType = "document"
	TypeKnowledge ContentType = "knowledge"
	TypeContext   ContentType = "context"
)

// Valid 是否为已知类型
func (t ContentType) Valid() bool {
	switch t {
	case TypeMessage, TypeDocument, TypeKnowledge, TypeContext:
		return true
	}
	return false
}

// Metadata 向量元数据
type Metadata struct {
	AgentID    string      `json:"agent_id"`
	SessionID  string      `json:"session_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       ContentType `json:"type"`
	Topic      string      `json:"topic,omitempty"`
	Emotion    string      `json:"emotion,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	Source     string      `json:"source,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
}

// Embedding 一条向量记录；Vector 写入后不可变
type Embedding struct {
	ID       string    `json:"id"`
	Vector   []float64 `json:"vector"`
	Content  string    `json:"content"`
	Metadata Metadata  `json:"metadata"`
}

func (e *Embedding) clone() *Embedding {
	c := *e
	if e.Metadata.Tags != nil {
		c.Metadata.Tags = append([]string(nil), e.Metadata.Tags...)
	}
	if e.Metadata.Confidence != nil {
		v := *e.Metadata.Confidence
		c.Metadata.Confidence = &v
	}
	return &c
}

// SearchQuery 相似度检索条件；空字段表示不过滤
type SearchQuery struct {
	Query     string      `json:"query"`
	AgentID   string      `json:"agent_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Type      ContentType `json:"type,omitempty"`
	Topic     string      `json:"topic,omitempty"`
	Tags      []string    `json:"tags,omitempty"`
	Limit     int         `json:"limit,omitempty"`     // <=0 使用 DefaultLimit
	Threshold *float64    `json:"threshold,omitempty"` // nil 使用 DefaultThreshold
}

// SearchResult 检索结果
type SearchResult struct {
	Embedding      *Embedding `json:"embedding"`
	Similarity     float64    `json:"similarity"`
	RelevanceScore float64    `json:"relevance_score"`
}

// Score 排序使用的综合得分
func (r SearchResult) Score() float64 {
	return similarityWeight*r.Similarity + relevanceWeight*r.RelevanceScore
}

// DeleteFilter 删除条件，所有非空字段同时满足才删除
type DeleteFilter struct {
	AgentID   string      `json:"agent_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Type      ContentType `json:"type,omitempty"`
	Before    *time.Time  `json:"before,omitempty"` // 删除 Timestamp <= Before 的记录
}

func (f DeleteFilter) empty() bool {
	return f.AgentID == "" && f.SessionID == "" && f.Type == "" && f.Before == nil
}

// MetadataUpdate 局部更新元数据，nil 字段保持不变
type MetadataUpdate struct {
	SessionID  *string      `json:"session_id,omitempty"`
	Type       *ContentType `json:"type,omitempty"`
	Topic      *string      `json:"topic,omitempty"`
	Emotion    *string      `json:"emotion,omitempty"`
	Tags       []string     `json:"tags,omitempty"`
	Source     *string      `json:"source,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
}

// DailyCount 某日新增数量
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD (UTC)
	Count int    `json:"count"`
}

// Analytics 向量统计
type Analytics struct {
	TotalEmbeddings   int            `json:"total_embeddings"`
	EmbeddingsByType  map[string]int `json:"embeddings_by_type"`
	EmbeddingsByTopic map[string]int `json:"embeddings_by_topic"`
	AverageSimilarity float64        `json:"average_similarity"`
	GrowthTrend       []DailyCount   `json:"growth_trend"`
}

// Float64 返回 v 的指针，便于设置 Threshold / Confidence
func Float64(v float64) *float64 {
	return &v
}
