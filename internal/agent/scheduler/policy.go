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
	"fmt"
	"time"
)

// 调度模式
const (
	ModeWeighted = "weighted"
	ModeStrict   = "strict"
)

// DefaultWaitScale weighted 模式下每等待该时长得 1 分
const DefaultWaitScale = 10 * time.Second

// Candidate 一个可运行的候选任务；Rank 取值 1..4，越大优先级越高
type Candidate struct {
	ID        string
	Rank      int
	CreatedAt time.Time
}

// Policy 从候选集中选出下一个要运行的任务
type Policy interface {
	// Name 策略名
	Name() string
	// Select 返回被选中候选的下标，候选为空时返回 -1
	Select(now time.Time, candidates []Candidate) int
}

// NewPolicy 根据模式创建策略；mode 为空时使用 weighted
func NewPolicy(mode string, waitScale time.Duration) (Policy, error) {
	switch mode {
	case "", ModeWeighted:
		return NewWeightedPolicy(waitScale), nil
	case ModeStrict:
		return StrictPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown priority mode: %s", mode)
	}
}

// earlier FIFO 决胜：CreatedAt 早者优先，相同时按 ID
func earlier(a, b Candidate) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// StrictPolicy 严格优先级：高优先级永远先运行，同级 FIFO
type StrictPolicy struct{}

// Name 策略名
func (StrictPolicy) Name() string { return ModeStrict }

// Select 实现 Policy
func (StrictPolicy) Select(now time.Time, candidates []Candidate) int {
	best := -1
	for i, c := range candidates {
		if best < 0 {
			best = i
			continue
		}
		b := candidates[best]
		if c.Rank > b.Rank || (c.Rank == b.Rank && earlier(c, b)) {
			best = i
		}
	}
	return best
}

// WeightedPolicy 加权优先级：score = rank + wait/WaitScale，等待越久得分越高，防止低优先级饿死
type WeightedPolicy struct {
	WaitScale time.Duration
}

// NewWeightedPolicy 创建加权策略，waitScale<=0 时使用 DefaultWaitScale
func NewWeightedPolicy(waitScale time.Duration) *WeightedPolicy {
	if waitScale <= 0 {
		waitScale = DefaultWaitScale
	}
	return &WeightedPolicy{WaitScale: waitScale}
}

// Name 策略名
func (p *WeightedPolicy) Name() string { return ModeWeighted }

// Score 计算候选在 now 时刻的得分
func (p *WeightedPolicy) Score(now time.Time, c Candidate) float64 {
	wait := now.Sub(c.CreatedAt)
	if wait < 0 {
		wait = 0
	}
	return float64(c.Rank) + float64(wait)/float64(p.WaitScale)
}

// Select 实现 Policy
func (p *WeightedPolicy) Select(now time.Time, candidates []Candidate) int {
	best := -1
	var bestScore float64
	for i, c := range candidates {
		score := p.Score(now, c)
		if best < 0 || score > bestScore || (score == bestScore && earlier(c, candidates[best])) {
			best = i
			bestScore = score
		}
	}
	return best
}
