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
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	modelembed "forge-platform/internal/model/embedding"
	"forge-platform/internal/storage/kv"
	apperrors "forge-platform/pkg/errors"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type failingKV struct{ kv.Store }

func (failingKV) Save(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func newTestStore(t *testing.T, clock *fakeClock, persist kv.Store) *Store {
	t.Helper()
	return NewStore(modelembed.NewHashEmbedder(0), persist, nil, WithClock(clock.Now))
}

func mustStore(t *testing.T, s *Store, content string, md Metadata) *Embedding {
	t.Helper()
	e, err := s.StoreEmbedding(context.Background(), content, md)
	if err != nil {
		t.Fatalf("StoreEmbedding(%q): %v", content, err)
	}
	return e
}

func vecNorm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func TestStoreEmbedding_VectorShape(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock, nil)
	e := mustStore(t, s, "the quick brown fox", Metadata{AgentID: "a1", Type: TypeMessage})
	if len(e.Vector) != 1536 {
		t.Fatalf("dimension: %d", len(e.Vector))
	}
	if math.Abs(vecNorm(e.Vector)-1) > 1e-9 {
		t.Errorf("norm: %v", vecNorm(e.Vector))
	}
	if !e.Metadata.Timestamp.Equal(clock.Now()) {
		t.Errorf("timestamp: %v", e.Metadata.Timestamp)
	}
	got, err := s.Get(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "the quick brown fox" {
		t.Errorf("content: %q", got.Content)
	}
}

func TestStoreEmbedding_Validation(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	ctx := context.Background()
	if _, err := s.StoreEmbedding(ctx, "x", Metadata{Type: TypeMessage}); !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Errorf("missing agent: %v", err)
	}
	if _, err := s.StoreEmbedding(ctx, "x", Metadata{AgentID: "a", Type: "note"}); !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Errorf("bad type: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len: %d", s.Len())
	}
}

func TestGenerateEmbedding_Deterministic(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	ctx := context.Background()
	a, _ := s.GenerateEmbedding(ctx, "same text")
	b, _ := s.GenerateEmbedding(ctx, "same text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("differs at %d", i)
		}
	}
}

func TestSimilaritySearch_ExactContentFirst(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	ctx := context.Background()
	mustStore(t, s, "deploy model to production cluster", Metadata{AgentID: "a1", Type: TypeDocument})
	target := mustStore(t, s, "customer asked about refund policy", Metadata{AgentID: "a1", Type: TypeMessage})
	mustStore(t, s, "training accuracy improved after epoch five", Metadata{AgentID: "a1", Type: TypeKnowledge})

	res, err := s.SimilaritySearch(ctx, SearchQuery{Query: "customer asked about refund policy", Threshold: Float64(0)})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(res) == 0 || res[0].Embedding.ID != target.ID {
		t.Fatalf("expected target first, got %+v", res)
	}
	if math.Abs(res[0].Similarity-1) > 1e-9 {
		t.Errorf("similarity: %v", res[0].Similarity)
	}
}

func TestSimilaritySearch_FinanceAboveWeather(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	ctx := context.Background()
	f1 := mustStore(t, s, "finance report draft", Metadata{AgentID: "a1", Type: TypeMessage, Topic: "finance", Tags: []string{"finance"}})
	w := mustStore(t, s, "weather is rainy today", Metadata{AgentID: "a1", Type: TypeMessage, Topic: "weather", Tags: []string{"weather"}})
	f2 := mustStore(t, s, "finance summary", Metadata{AgentID: "a1", Type: TypeMessage, Topic: "finance", Tags: []string{"finance"}})

	res, err := s.SimilaritySearch(ctx, SearchQuery{Query: "finance report", Type: TypeMessage, Threshold: Float64(0)})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(res) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(res))
	}
	top := map[string]bool{res[0].Embedding.ID: true, res[1].Embedding.ID: true}
	if !top[f1.ID] || !top[f2.ID] {
		t.Errorf("finance embeddings should rank first, got %s, %s", res[0].Embedding.Content, res[1].Embedding.Content)
	}
	if top[w.ID] {
		t.Errorf("weather ranked in top two")
	}
}

func TestSimilaritySearch_ThresholdMonotonic(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	ctx := context.Background()
	texts := []string{
		"refund policy for customers",
		"customer refund requested",
		"policy update for refunds and returns",
		"weather is sunny today",
		"deploy the service",
	}
	for _, txt := range texts {
		mustStore(t, s, txt, Metadata{AgentID: "a1", Type: TypeMessage})
	}
	q := "customer refund policy"
	low, err := s.SimilaritySearch(ctx, SearchQuery{Query: q, Threshold: Float64(0.1), Limit: 100})
	if err != nil {
		t.Fatalf("low: %v", err)
	}
	high, err := s.SimilaritySearch(ctx, SearchQuery{Query: q, Threshold: Float64(0.5), Limit: 100})
	if err != nil {
		t.Fatalf("high: %v", err)
	}
	inLow := make(map[string]bool)
	for _, r := range low {
		inLow[r.Embedding.ID] = true
	}
	for _, r := range high {
		if !inLow[r.Embedding.ID] {
			t.Errorf("%s in high-threshold result but not in low-threshold result", r.Embedding.ID)
		}
		if r.Similarity < 0.5 {
			t.Errorf("similarity %v below threshold", r.Similarity)
		}
	}
	if len(high) > len(low) {
		t.Errorf("high=%d low=%d", len(high), len(low))
	}
}

func TestSimilaritySearch_ZeroThresholdReturnsAll(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	for _, txt := range []string{"alpha", "beta", "gamma"} {
		mustStore(t, s, txt, Metadata{AgentID: "a1", Type: TypeMessage})
	}
	// 哈希向量可能出现负相似度，阈值取 -1 覆盖全部
	res, err := s.SimilaritySearch(context.Background(), SearchQuery{Query: "alpha", Threshold: Float64(-1)})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(res) != 3 {
		t.Errorf("want 3, got %d", len(res))
	}
}

func TestSimilaritySearch_DefaultLimit(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	for i := 0; i < 15; i++ {
		mustStore(t, s, "repeated content", Metadata{AgentID: "a1", Type: TypeMessage})
	}
	res, err := s.SimilaritySearch(context.Background(), SearchQuery{Query: "repeated content"})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(res) != DefaultLimit {
		t.Errorf("want %d, got %d", DefaultLimit, len(res))
	}
}

func TestSimilaritySearch_Filters(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	ctx := context.Background()
	mustStore(t, s, "order status", Metadata{AgentID: "a1", SessionID: "s1", Type: TypeMessage, Topic: "Billing Issues", Tags: []string{"billing", "urgent"}})
	mustStore(t, s, "order status", Metadata{AgentID: "a2", SessionID: "s1", Type: TypeMessage, Topic: "billing"})
	mustStore(t, s, "order status", Metadata{AgentID: "a1", SessionID: "s2", Type: TypeDocument, Topic: "shipping", Tags: []string{"logistics"}})

	cases := []struct {
		name string
		q    SearchQuery
		want int
	}{
		{"agent", SearchQuery{AgentID: "a1"}, 2},
		{"session", SearchQuery{SessionID: "s1"}, 2},
		{"type", SearchQuery{Type: TypeDocument}, 1},
		{"topic substring case-insensitive", SearchQuery{Topic: "BILLING"}, 2},
		{"tags any", SearchQuery{Tags: []string{"urgent", "logistics"}}, 2},
		{"combined", SearchQuery{AgentID: "a1", Topic: "bill"}, 1},
	}
	for _, tc := range cases {
		tc.q.Query = "order status"
		res, err := s.SimilaritySearch(ctx, tc.q)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(res) != tc.want {
			t.Errorf("%s: want %d, got %d", tc.name, tc.want, len(res))
		}
	}
}

func TestSimilaritySearch_EmptyQuery(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	if _, err := s.SimilaritySearch(context.Background(), SearchQuery{}); !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Errorf("want ErrInvalidArg, got %v", err)
	}
}

func TestRelevanceScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e := &Embedding{Metadata: Metadata{Type: TypeKnowledge, Topic: "Model Training", Tags: []string{"ml", "gpu"}, Timestamp: now}}

	cases := []struct {
		name string
		q    SearchQuery
		at   time.Time
		want float64
	}{
		{"fresh only", SearchQuery{}, now, 0.2},
		{"half week old", SearchQuery{}, now.Add(84 * time.Hour), 0.1},
		{"older than a week", SearchQuery{}, now.Add(200 * time.Hour), 0},
		{"type and topic", SearchQuery{Type: TypeKnowledge, Topic: "training"}, now, 0.8},
		{"half tags", SearchQuery{Tags: []string{"ml", "cpu"}}, now, 0.3},
		{"everything", SearchQuery{Type: TypeKnowledge, Topic: "model", Tags: []string{"ml", "gpu"}}, now, 1},
	}
	for _, tc := range cases {
		got := relevanceScore(e, tc.q, tc.at)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: want %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSimilaritySearch_RankingUsesRelevance(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock, nil)
	old := mustStore(t, s, "gpu cluster maintenance", Metadata{AgentID: "a1", Type: TypeMessage})
	clock.Advance(7 * 24 * time.Hour)
	fresh := mustStore(t, s, "gpu cluster maintenance", Metadata{AgentID: "a1", Type: TypeMessage})

	res, err := s.SimilaritySearch(context.Background(), SearchQuery{Query: "gpu cluster maintenance"})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(res) != 2 || res[0].Embedding.ID != fresh.ID || res[1].Embedding.ID != old.ID {
		t.Fatalf("fresher record should rank first: %+v", res)
	}
	if res[0].Score() <= res[1].Score() {
		t.Errorf("scores: %v <= %v", res[0].Score(), res[1].Score())
	}
}

func TestUpdateEmbeddingMetadata(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, nil)
	ctx := context.Background()
	e := mustStore(t, s, "hello", Metadata{AgentID: "a1", Type: TypeMessage, Topic: "greeting"})

	topic := "welcome"
	if err := s.UpdateEmbeddingMetadata(ctx, e.ID, MetadataUpdate{Topic: &topic, Tags: []string{"new"}, Confidence: Float64(0.9)}); err != nil {
		t.Fatalf("UpdateEmbeddingMetadata: %v", err)
	}
	got, _ := s.Get(ctx, e.ID)
	if got.Metadata.Topic != "welcome" || len(got.Metadata.Tags) != 1 || *got.Metadata.Confidence != 0.9 {
		t.Errorf("metadata: %+v", got.Metadata)
	}
	if got.Metadata.Type != TypeMessage || got.Metadata.AgentID != "a1" {
		t.Errorf("unchanged fields modified: %+v", got.Metadata)
	}
	for i := range e.Vector {
		if e.Vector[i] != got.Vector[i] {
			t.Fatal("vector changed")
		}
	}
	if err := s.UpdateEmbeddingMetadata(ctx, "emb-missing", MetadataUpdate{Topic: &topic}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
}

func TestDeleteEmbeddings(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock, nil)
	ctx := context.Background()
	mustStore(t, s, "one", Metadata{AgentID: "a1", SessionID: "s1", Type: TypeMessage})
	mustStore(t, s, "two", Metadata{AgentID: "a1", SessionID: "s2", Type: TypeMessage})
	cutoff := clock.Now()
	clock.Advance(time.Hour)
	mustStore(t, s, "three", Metadata{AgentID: "a1", SessionID: "s1", Type: TypeDocument})
	mustStore(t, s, "four", Metadata{AgentID: "a2", SessionID: "s1", Type: TypeMessage})

	if _, err := s.DeleteEmbeddings(ctx, DeleteFilter{}); !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Errorf("empty filter: %v", err)
	}
	n, err := s.DeleteEmbeddings(ctx, DeleteFilter{AgentID: "a1", SessionID: "s1"})
	if err != nil || n != 2 {
		t.Fatalf("agent+session: n=%d err=%v", n, err)
	}
	n, err = s.DeleteEmbeddings(ctx, DeleteFilter{Before: &cutoff})
	if err != nil || n != 1 {
		t.Fatalf("before: n=%d err=%v", n, err)
	}
	if s.Len() != 1 {
		t.Errorf("Len: %d", s.Len())
	}
	n, _ = s.DeleteEmbeddings(ctx, DeleteFilter{Type: TypeKnowledge})
	if n != 0 {
		t.Errorf("no match: %d", n)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock, nil)
	mustStore(t, s, "old", Metadata{AgentID: "a1", Type: TypeMessage})
	clock.Advance(48 * time.Hour)
	fresh := mustStore(t, s, "fresh", Metadata{AgentID: "a2", Type: TypeContext})

	n, err := s.DeleteOlderThan(context.Background(), clock.Now().Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if _, err := s.Get(context.Background(), fresh.ID); err != nil {
		t.Errorf("fresh record removed: %v", err)
	}
}

func TestGetEmbeddingAnalytics(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock, nil)
	ctx := context.Background()
	mustStore(t, s, "a", Metadata{AgentID: "a1", Type: TypeMessage, Topic: "billing"})
	clock.Advance(24 * time.Hour)
	mustStore(t, s, "b", Metadata{AgentID: "a1", Type: TypeMessage})
	mustStore(t, s, "c", Metadata{AgentID: "a1", Type: TypeDocument, Topic: "billing"})
	mustStore(t, s, "d", Metadata{AgentID: "a2", Type: TypeDocument})

	a, err := s.GetEmbeddingAnalytics(ctx, "a1")
	if err != nil {
		t.Fatalf("GetEmbeddingAnalytics: %v", err)
	}
	if a.TotalEmbeddings != 3 {
		t.Errorf("total: %d", a.TotalEmbeddings)
	}
	if a.EmbeddingsByType["message"] != 2 || a.EmbeddingsByType["document"] != 1 {
		t.Errorf("by type: %v", a.EmbeddingsByType)
	}
	if a.EmbeddingsByTopic["billing"] != 2 || a.EmbeddingsByTopic["unknown"] != 1 {
		t.Errorf("by topic: %v", a.EmbeddingsByTopic)
	}
	if len(a.GrowthTrend) != 7 {
		t.Fatalf("trend length: %d", len(a.GrowthTrend))
	}
	last := a.GrowthTrend[6]
	prev := a.GrowthTrend[5]
	if last.Date != "2026-03-02" || last.Count != 2 || prev.Date != "2026-03-01" || prev.Count != 1 {
		t.Errorf("trend tail: %+v %+v", prev, last)
	}

	all, _ := s.GetEmbeddingAnalytics(ctx, "")
	if all.TotalEmbeddings != 4 {
		t.Errorf("all total: %d", all.TotalEmbeddings)
	}
	if all.AverageSimilarity < -1 || all.AverageSimilarity > 1 {
		t.Errorf("average similarity out of range: %v", all.AverageSimilarity)
	}

	empty, _ := s.GetEmbeddingAnalytics(ctx, "nobody")
	if empty.TotalEmbeddings != 0 || empty.AverageSimilarity != 0 {
		t.Errorf("empty analytics: %+v", empty)
	}
}

func TestStore_PersistAndLoad(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	persist := kv.NewMemoryStore()
	s := newTestStore(t, clock, persist)
	ctx := context.Background()
	e := mustStore(t, s, "persist me", Metadata{AgentID: "a1", Type: TypeContext, Tags: []string{"x"}})

	s2 := newTestStore(t, clock, persist)
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := s2.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get after Load: %v", err)
	}
	if got.Content != "persist me" || got.Metadata.Type != TypeContext || !got.Metadata.Timestamp.Equal(e.Metadata.Timestamp) {
		t.Errorf("loaded: %+v", got)
	}
}

func TestStore_LoadRejectsDimensionMismatch(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	persist := kv.NewMemoryStore()
	ctx := context.Background()
	small := NewStore(modelembed.NewHashEmbedder(8), persist, nil, WithDimension(8), WithClock(clock.Now))
	mustStore(t, small, "eight dims", Metadata{AgentID: "a1", Type: TypeMessage})

	s := newTestStore(t, clock, persist)
	err := s.Load(ctx)
	if !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Fatalf("Load: want ErrInvalidArg, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len after rejected load: %d", s.Len())
	}
	// 快照未被覆盖
	again := NewStore(modelembed.NewHashEmbedder(8), persist, nil, WithDimension(8), WithClock(clock.Now))
	if err := again.Load(ctx); err != nil {
		t.Fatalf("reload with matching dimension: %v", err)
	}
	if again.Len() != 1 {
		t.Errorf("Len: %d", again.Len())
	}
}

func TestStore_PersistFailureRollsBack(t *testing.T) {
	s := newTestStore(t, &fakeClock{t: time.Now()}, failingKV{kv.NewMemoryStore()})
	_, err := s.StoreEmbedding(context.Background(), "x", Metadata{AgentID: "a1", Type: TypeMessage})
	if !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("record should be rolled back, Len=%d", s.Len())
	}
}
