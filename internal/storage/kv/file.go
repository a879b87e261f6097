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

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileStore 每个键一个 JSON 文件，写入先落临时文件再 rename
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore 创建文件存储；fs 为 nil 时使用本地文件系统
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create persistence dir: %w", err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load 读取 key 对应文件
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Save 原子写入 key 对应文件
func (s *FileStore) Save(ctx context.Context, key string, value []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := s.fs.Rename(tmp, s.path(key)); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Close 无操作
func (s *FileStore) Close() error { return nil }
