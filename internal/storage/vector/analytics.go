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
	"time"
)

const (
	analyticsSampleSize = 100
	growthTrendDays     = 7
)

// GetEmbeddingAnalytics 统计记录分布；agentID 为空时统计全部
func (s *Store) GetEmbeddingAnalytics(ctx context.Context, agentID string) (*Analytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*Embedding
	for _, e := range s.records {
		if agentID == "" || e.Metadata.AgentID == agentID {
			records = append(records, e)
		}
	}

	a := &Analytics{
		TotalEmbeddings:   len(records),
		EmbeddingsByType:  make(map[string]int),
		EmbeddingsByTopic: make(map[string]int),
	}
	for _, e := range records {
		a.EmbeddingsByType[string(e.Metadata.Type)]++
		topic := e.Metadata.Topic
		if topic == "" {
			topic = "unknown"
		}
		a.EmbeddingsByTopic[topic]++
	}

	sample := records
	if len(sample) > analyticsSampleSize {
		sample = sample[:analyticsSampleSize]
	}
	var total float64
	pairs := 0
	for i := 0; i < len(sample); i++ {
		for j := i + 1; j < len(sample); j++ {
			total += cosineSimilarity(sample[i].Vector, sample[j].Vector)
			pairs++
		}
	}
	if pairs > 0 {
		a.AverageSimilarity = total / float64(pairs)
	}

	now := s.now().UTC()
	counts := make(map[string]int)
	for _, e := range records {
		counts[e.Metadata.Timestamp.UTC().Format(time.DateOnly)]++
	}
	for i := growthTrendDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(time.DateOnly)
		a.GrowthTrend = append(a.GrowthTrend, DailyCount{Date: day, Count: counts[day]})
	}
	return a, nil
}
