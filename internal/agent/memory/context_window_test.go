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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelembed "forge-platform/internal/model/embedding"
	"forge-platform/internal/storage/vector"
)

func newVectorStore(t *testing.T, now *time.Time) *vector.Store {
	t.Helper()
	return vector.NewStore(modelembed.NewHashEmbedder(0), nil, nil, vector.WithClock(func() time.Time { return *now }))
}

func TestBuildContextWindow_Empty(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	b := NewContextBuilder(newVectorStore(t, &now))
	w, err := b.BuildContextWindow(context.Background(), "anything at all", "a1", "", ContextOptions{})
	require.NoError(t, err)
	assert.Empty(t, w.Embeddings)
	assert.Equal(t, "No relevant context found.", w.Summary)
	assert.Equal(t, 0.0, w.RelevanceScore)
	assert.Empty(t, w.KeyTopics)
}

func TestBuildContextWindow_SummaryAndTopics(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := newVectorStore(t, &now)
	ctx := context.Background()
	contents := []struct{ text, topic string }{
		{"refund request refund pending", "billing"},
		{"refund approved by billing team", "billing"},
		{"refund shipping label", "shipping"},
	}
	for _, c := range contents {
		_, err := store.StoreEmbedding(ctx, c.text, vector.Metadata{AgentID: "a1", Type: vector.TypeMessage, Topic: c.topic})
		require.NoError(t, err)
	}
	_, err := store.StoreEmbedding(ctx, "refund request refund pending", vector.Metadata{AgentID: "a2", Type: vector.TypeMessage})
	require.NoError(t, err)

	b := NewContextBuilder(store)
	w, err := b.BuildContextWindow(ctx, "refund", "a1", "", ContextOptions{})
	require.NoError(t, err)

	for _, e := range w.Embeddings {
		assert.Equal(t, "a1", e.Metadata.AgentID)
	}
	require.NotEmpty(t, w.Embeddings)
	assert.Equal(t, "billing", w.KeyTopics[0])
	assert.True(t, strings.HasPrefix(w.Summary, "Context summary: Found "), w.Summary)
	assert.Contains(t, w.Summary, "Key terms include: refund")
	assert.Contains(t, w.Summary, "characters.")
	assert.InDelta(t, 0.2, w.RelevanceScore, 1e-9)
}

func TestBuildContextWindow_TimeWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := newVectorStore(t, &now)
	ctx := context.Background()
	_, err := store.StoreEmbedding(ctx, "server outage report", vector.Metadata{AgentID: "a1", Type: vector.TypeDocument})
	require.NoError(t, err)
	now = now.Add(3 * time.Hour)
	fresh, err := store.StoreEmbedding(ctx, "server outage report", vector.Metadata{AgentID: "a1", Type: vector.TypeDocument})
	require.NoError(t, err)

	b := NewContextBuilder(store)
	b.now = func() time.Time { return now }
	w, err := b.BuildContextWindow(ctx, "server outage report", "a1", "", ContextOptions{TimeWindow: time.Hour})
	require.NoError(t, err)
	require.Len(t, w.Embeddings, 1)
	assert.Equal(t, fresh.ID, w.Embeddings[0].ID)
}

func TestBuildContextWindow_Types(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := newVectorStore(t, &now)
	ctx := context.Background()
	for _, typ := range []vector.ContentType{vector.TypeMessage, vector.TypeDocument, vector.TypeKnowledge} {
		_, err := store.StoreEmbedding(ctx, "quarterly revenue numbers", vector.Metadata{AgentID: "a1", Type: typ})
		require.NoError(t, err)
	}
	b := NewContextBuilder(store)

	w, err := b.BuildContextWindow(ctx, "quarterly revenue numbers", "a1", "", ContextOptions{Types: []vector.ContentType{vector.TypeDocument}})
	require.NoError(t, err)
	require.Len(t, w.Embeddings, 1)
	assert.Equal(t, vector.TypeDocument, w.Embeddings[0].Metadata.Type)

	w, err = b.BuildContextWindow(ctx, "quarterly revenue numbers", "a1", "", ContextOptions{
		Types: []vector.ContentType{vector.TypeDocument, vector.TypeKnowledge},
	})
	require.NoError(t, err)
	require.Len(t, w.Embeddings, 2)
	for _, e := range w.Embeddings {
		assert.NotEqual(t, vector.TypeMessage, e.Metadata.Type)
	}
}

func TestBuildContextWindow_MaxEmbeddings(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := newVectorStore(t, &now)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := store.StoreEmbedding(ctx, "same note", vector.Metadata{AgentID: "a1", Type: vector.TypeMessage})
		require.NoError(t, err)
	}
	b := NewContextBuilder(store)
	w, err := b.BuildContextWindow(ctx, "same note", "a1", "", ContextOptions{})
	require.NoError(t, err)
	assert.Len(t, w.Embeddings, DefaultMaxEmbeddings)

	w, err = b.BuildContextWindow(ctx, "same note", "a1", "", ContextOptions{MaxEmbeddings: 3})
	require.NoError(t, err)
	assert.Len(t, w.Embeddings, 3)
}

func TestTopN_TiesKeepFirstOccurrence(t *testing.T) {
	got := topN([]string{"b", "a", "c", "a", "b", "d"}, 3)
	assert.Equal(t, []string{"b", "a", "c"}, got)
	assert.Equal(t, []string{}, topN(nil, 5))
}

func TestSummarize(t *testing.T) {
	es := []*vector.Embedding{
		{Content: "Alpha beta gamma", Metadata: vector.Metadata{Topic: "greek"}},
		{Content: "alpha delta", Metadata: vector.Metadata{Topic: "greek"}},
	}
	got := summarize(es)
	want := "Context summary: Found 2 relevant items covering topics: greek. Key terms include: alpha, beta, gamma, delta. Total context size: 28 characters."
	assert.Equal(t, want, got)
}
