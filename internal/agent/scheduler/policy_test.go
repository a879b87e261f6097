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

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("", 0)
	require.NoError(t, err)
	assert.Equal(t, ModeWeighted, p.Name())
	assert.Equal(t, DefaultWaitScale, p.(*WeightedPolicy).WaitScale)

	p, err = NewPolicy(ModeStrict, 0)
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, p.Name())

	_, err = NewPolicy("lottery", 0)
	assert.Error(t, err)
}

func TestSelect_Empty(t *testing.T) {
	assert.Equal(t, -1, StrictPolicy{}.Select(t0, nil))
	assert.Equal(t, -1, NewWeightedPolicy(0).Select(t0, nil))
}

func TestStrictPolicy_RankThenFIFO(t *testing.T) {
	cands := []Candidate{
		{ID: "low-old", Rank: 1, CreatedAt: t0},
		{ID: "high-new", Rank: 3, CreatedAt: t0.Add(2 * time.Second)},
		{ID: "high-old", Rank: 3, CreatedAt: t0.Add(time.Second)},
		{ID: "medium", Rank: 2, CreatedAt: t0},
	}
	// 无论等待多久 low 都不会越过 high
	idx := StrictPolicy{}.Select(t0.Add(24*time.Hour), cands)
	assert.Equal(t, "high-old", cands[idx].ID)
}

func TestWeightedPolicy_FreshHigherRankWins(t *testing.T) {
	p := NewWeightedPolicy(10 * time.Second)
	cands := []Candidate{
		{ID: "low", Rank: 1, CreatedAt: t0},
		{ID: "critical", Rank: 4, CreatedAt: t0},
	}
	idx := p.Select(t0.Add(5*time.Second), cands)
	assert.Equal(t, "critical", cands[idx].ID)
}

func TestWeightedPolicy_AntiStarvation(t *testing.T) {
	p := NewWeightedPolicy(10 * time.Second)
	now := t0.Add(60 * time.Second)
	cands := []Candidate{
		{ID: "critical-new", Rank: 4, CreatedAt: now},
		{ID: "low-old", Rank: 1, CreatedAt: t0}, // 1 + 6 = 7 > 4
	}
	idx := p.Select(now, cands)
	assert.Equal(t, "low-old", cands[idx].ID)
	assert.InDelta(t, 7.0, p.Score(now, cands[1]), 1e-9)
}

func TestWeightedPolicy_TieIsFIFO(t *testing.T) {
	p := NewWeightedPolicy(10 * time.Second)
	cands := []Candidate{
		{ID: "b", Rank: 2, CreatedAt: t0},
		{ID: "a", Rank: 2, CreatedAt: t0},
	}
	idx := p.Select(t0, cands)
	assert.Equal(t, "a", cands[idx].ID)
}

func TestWeightedPolicy_FutureCreatedAtClamped(t *testing.T) {
	p := NewWeightedPolicy(time.Second)
	assert.Equal(t, 2.0, p.Score(t0, Candidate{Rank: 2, CreatedAt: t0.Add(time.Minute)}))
}
