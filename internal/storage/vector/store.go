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
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"

	modelembed "forge-platform/internal/model/embedding"
	"forge-platform/internal/storage/kv"
	apperrors "forge-platform/pkg/errors"
	"forge-platform/pkg/log"
	"forge-platform/pkg/metrics"
)

// Store 进程内向量存储，按插入顺序保存记录并按键快照持久化
type Store struct {
	mu        sync.RWMutex
	records   []*Embedding
	byID      map[string]*Embedding
	embedder  embedding.Embedder
	dimension int
	persist   kv.Store
	logger    *log.Logger
	now       func() time.Time
}

// Option Store 可选项
type Option func(*Store)

// WithDimension 设置向量维度（默认 1536）
func WithDimension(d int) Option {
	return func(s *Store) {
		if d > 0 {
			s.dimension = d
		}
	}
}

// WithClock 替换时间源，测试中使用
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore 创建向量存储；persist 为 nil 时仅保存在内存
func NewStore(embedder embedding.Embedder, persist kv.Store, logger *log.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Store{
		byID:      make(map[string]*Embedding),
		embedder:  embedder,
		dimension: modelembed.DefaultDimension,
		persist:   persist,
		logger:    logger.With("component", "vector_store"),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load 从持久化恢复记录，无快照时为空
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	data, err := s.persist.Load(ctx, kv.KeyVectorEmbeddings)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	if len(data) == 0 {
		return nil
	}
	var records []*Embedding
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode embeddings snapshot: %w", err)
	}
	// 维度不一致时拒绝加载，否则下一次保存会覆盖掉这些记录
	mismatched := 0
	for _, r := range records {
		if r != nil && len(r.Vector) != s.dimension {
			mismatched++
		}
	}
	if mismatched > 0 {
		s.logger.Error("embeddings snapshot dimension mismatch", "mismatched", mismatched, "dimension", s.dimension)
		return apperrors.Wrapf(apperrors.ErrInvalidArg, "embeddings snapshot: %d records do not match dimension %d", mismatched, s.dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
	s.byID = make(map[string]*Embedding, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		s.records = append(s.records, r)
		s.byID[r.ID] = r
	}
	metrics.EmbeddingsStored.Set(float64(len(s.records)))
	s.logger.Info("embeddings loaded", "count", len(s.records))
	return nil
}

// saveLocked 调用方须持有写锁
func (s *Store) saveLocked(ctx context.Context) error {
	metrics.EmbeddingsStored.Set(float64(len(s.records)))
	if s.persist == nil {
		return nil
	}
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("encode embeddings snapshot: %w", err)
	}
	if err := s.persist.Save(ctx, kv.KeyVectorEmbeddings, data); err != nil {
		s.logger.Error("save embeddings failed", "error", err)
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	return nil
}

// GenerateEmbedding 生成单位长度的向量
func (s *Store) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	vecs, err := s.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
	}
	v := make([]float64, len(vecs[0]))
	copy(v, vecs[0])
	if len(v) != s.dimension {
		return nil, fmt.Errorf("embedding dimension %d does not match store dimension %d", len(v), s.dimension)
	}
	if modelembed.Normalize(v) == 0 {
		v[0] = 1
	}
	return v, nil
}

// StoreEmbedding 向量化 content 并保存，Timestamp 由存储写入
func (s *Store) StoreEmbedding(ctx context.Context, content string, md Metadata) (*Embedding, error) {
	if md.AgentID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidArg, "agent_id is required")
	}
	if !md.Type.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidArg, "unknown embedding type %q", md.Type)
	}
	vec, err := s.GenerateEmbedding(ctx, content)
	if err != nil {
		return nil, err
	}
	md.Timestamp = s.now()
	if md.Tags != nil {
		md.Tags = append([]string(nil), md.Tags...)
	}
	e := &Embedding{
		ID:       "emb-" + uuid.New().String(),
		Vector:   vec,
		Content:  content,
		Metadata: md,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, e)
	s.byID[e.ID] = e
	if err := s.saveLocked(ctx); err != nil {
		s.records = s.records[:len(s.records)-1]
		delete(s.byID, e.ID)
		metrics.EmbeddingsStored.Set(float64(len(s.records)))
		return nil, err
	}
	metrics.EmbeddingOpsTotal.WithLabelValues("store").Inc()
	return e.clone(), nil
}

// Get 按 ID 获取记录副本
func (s *Store) Get(ctx context.Context, id string) (*Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "embedding %s", id)
	}
	return e.clone(), nil
}

// Len 当前记录数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// UpdateEmbeddingMetadata 合并元数据，向量与 Timestamp 不变
func (s *Store) UpdateEmbeddingMetadata(ctx context.Context, id string, upd MetadataUpdate) error {
	if upd.Type != nil && !upd.Type.Valid() {
		return apperrors.Wrapf(apperrors.ErrInvalidArg, "unknown embedding type %q", *upd.Type)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "embedding %s", id)
	}
	md := &e.Metadata
	if upd.SessionID != nil {
		md.SessionID = *upd.SessionID
	}
	if upd.Type != nil {
		md.Type = *upd.Type
	}
	if upd.Topic != nil {
		md.Topic = *upd.Topic
	}
	if upd.Emotion != nil {
		md.Emotion = *upd.Emotion
	}
	if upd.Tags != nil {
		md.Tags = append([]string(nil), upd.Tags...)
	}
	if upd.Source != nil {
		md.Source = *upd.Source
	}
	if upd.Confidence != nil {
		c := *upd.Confidence
		md.Confidence = &c
	}
	metrics.EmbeddingOpsTotal.WithLabelValues("update").Inc()
	return s.saveLocked(ctx)
}

// DeleteEmbeddings 删除同时满足全部条件的记录，返回删除数量
func (s *Store) DeleteEmbeddings(ctx context.Context, f DeleteFilter) (int, error) {
	if f.empty() {
		return 0, apperrors.Wrap(apperrors.ErrInvalidArg, "delete filter must set at least one field")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	deleted := 0
	for _, e := range s.records {
		if matchesDelete(e, f) {
			delete(s.byID, e.ID)
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = nil
	}
	s.records = kept
	if deleted == 0 {
		return 0, nil
	}
	metrics.EmbeddingOpsTotal.WithLabelValues("delete").Add(float64(deleted))
	s.logger.Info("embeddings deleted", "count", deleted)
	return deleted, s.saveLocked(ctx)
}

// DeleteOlderThan 删除 Timestamp <= before 的全部记录
func (s *Store) DeleteOlderThan(ctx context.Context, before time.Time) (int, error) {
	return s.DeleteEmbeddings(ctx, DeleteFilter{Before: &before})
}

func matchesDelete(e *Embedding, f DeleteFilter) bool {
	if f.AgentID != "" && e.Metadata.AgentID != f.AgentID {
		return false
	}
	if f.SessionID != "" && e.Metadata.SessionID != f.SessionID {
		return false
	}
	if f.Type != "" && e.Metadata.Type != f.Type {
		return false
	}
	if f.Before != nil && e.Metadata.Timestamp.After(*f.Before) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
