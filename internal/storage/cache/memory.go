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

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore 进程内缓存；超过 maxEntries 时先清理过期项，仍超出则拒绝写入新键
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]cacheItem
	maxEntries int
	now        func() time.Time
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time // 零值表示不过期
}

func (it cacheItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// NewMemoryStore maxEntries<=0 表示不限
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]cacheItem),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (s *MemoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, ok := s.items[key]; !ok && s.maxEntries > 0 && len(s.items) >= s.maxEntries {
		s.evictExpiredLocked(now)
		if len(s.items) >= s.maxEntries {
			return nil
		}
	}
	it := cacheItem{value: data}
	if ttl > 0 {
		it.expiresAt = now.Add(ttl)
	}
	s.items[key] = it
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string, dest any) error {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || it.expired(s.now()) {
		return ErrMiss
	}
	if err := json.Unmarshal(it.value, dest); err != nil {
		return fmt.Errorf("unmarshal cache value: %w", err)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len 当前条目数（含未清理的过期项）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) evictExpiredLocked(now time.Time) {
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
		}
	}
}

func (s *MemoryStore) Close() error {
	return nil
}
