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

package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultK8sMountPath Secret 卷默认挂载目录
const DefaultK8sMountPath = "/var/run/secrets/forge"

// K8sStore 读取以卷方式挂载的 Kubernetes Secret，每个 key 对应一个文件
type K8sStore struct {
	mountPath string
}

func NewK8sStore(mountPath string) *K8sStore {
	if mountPath == "" {
		mountPath = DefaultK8sMountPath
	}
	return &K8sStore{mountPath: mountPath}
}

func (k *K8sStore) Get(ctx context.Context, key string) (string, error) {
	clean := filepath.Clean("/" + key)
	data, err := os.ReadFile(filepath.Join(k.mountPath, clean))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
