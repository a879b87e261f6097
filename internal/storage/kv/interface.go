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

package kv

import "context"

// 持久化逻辑键
const (
	KeyTaskQueue        = "task_queue"
	KeyVectorEmbeddings = "vector_embeddings"
)

// Store 按键读写整块快照；键不存在时 Load 返回 (nil, nil)
type Store interface {
	// Load 读取 key 对应的数据
	Load(ctx context.Context, key string) ([]byte, error)
	// Save 覆盖写入 key 对应的数据
	Save(ctx context.Context, key string, value []byte) error
	// Close 关闭底层连接
	Close() error
}
