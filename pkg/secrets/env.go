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
	"strings"
)

type envStore struct{}

// NewEnvStore 从环境变量读取；key 中的 "/" 与 "-" 转为 "_" 并大写
func NewEnvStore() Store {
	return envStore{}
}

func (envStore) Get(ctx context.Context, key string) (string, error) {
	name := strings.ToUpper(strings.NewReplacer("/", "_", "-", "_").Replace(key))
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, name)
	}
	return value, nil
}
