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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultAPIURL = "http://localhost:8080"

func apiBaseURL() string {
	if u := os.Getenv("FORGE_API_URL"); u != "" {
		return u
	}
	return defaultAPIURL
}

// client forge API 客户端
type client struct {
	rc *resty.Client
}

func newClient(baseURL string) *client {
	return &client{rc: resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")}
}

// apiError 服务端错误响应
type apiError struct {
	Error string `json:"error"`
}

// do 发送请求，状态码不在 ok 中时返回服务端错误信息
func (c *client) do(method, path string, body, out any, ok ...int) error {
	req := c.rc.R().SetError(&apiError{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if len(ok) == 0 {
		ok = []int{http.StatusOK}
	}
	for _, code := range ok {
		if resp.StatusCode() == code {
			return nil
		}
	}
	if e, _ := resp.Error().(*apiError); e != nil && e.Error != "" {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode(), e.Error)
	}
	return fmt.Errorf("%s %s: %s", method, path, resp.Status())
}

type taskView struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Priority   string         `json:"priority"`
	Status     string         `json:"status"`
	AgentID    string         `json:"agent_id"`
	UserID     string         `json:"user_id"`
	Progress   int            `json:"progress"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
	CreatedAt  time.Time      `json:"created_at"`
	Error      string         `json:"error"`
	Result     any            `json:"result"`
	Payload    map[string]any `json:"payload"`
}

type enqueueBody struct {
	Type         string         `json:"type"`
	Priority     string         `json:"priority,omitempty"`
	AgentID      string         `json:"agent_id,omitempty"`
	UserID       string         `json:"user_id"`
	Payload      map[string]any `json:"payload,omitempty"`
	MaxRetries   *int           `json:"max_retries,omitempty"`
	TimeoutMS    int64          `json:"timeout_ms,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

func (c *client) enqueueTask(body enqueueBody) (string, error) {
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.do(http.MethodPost, "/api/tasks", body, &out, http.StatusCreated); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

func (c *client) getTask(id string) (*taskView, error) {
	var out taskView
	if err := c.do(http.MethodGet, "/api/tasks/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) listTasks(agentID, userID, status string) ([]taskView, error) {
	var out struct {
		Tasks []taskView `json:"tasks"`
	}
	req := c.rc.R().SetResult(&out).SetError(&apiError{})
	for k, v := range map[string]string{"agent_id": agentID, "user_id": userID, "status": status} {
		if v != "" {
			req.SetQueryParam(k, v)
		}
	}
	resp, err := req.Get("/api/tasks")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/tasks: %s", resp.Status())
	}
	return out.Tasks, nil
}

func (c *client) cancelTask(id string) (bool, error) {
	var out struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.do(http.MethodPost, "/api/tasks/"+id+"/cancel", nil, &out)
	return out.Cancelled, err
}

func (c *client) retryTask(id string) (bool, error) {
	var out struct {
		Retried bool `json:"retried"`
	}
	err := c.do(http.MethodPost, "/api/tasks/"+id+"/retry", nil, &out)
	return out.Retried, err
}

func (c *client) queueMetrics() (map[string]any, error) {
	var out map[string]any
	err := c.do(http.MethodGet, "/api/queue/metrics", nil, &out)
	return out, err
}

func (c *client) cleanup(olderThan string) (int, error) {
	var out struct {
		Removed int `json:"removed"`
	}
	err := c.do(http.MethodPost, "/api/queue/cleanup", map[string]string{"older_than": olderThan}, &out)
	return out.Removed, err
}

type embeddingMetadata struct {
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id,omitempty"`
	Type      string    `json:"type"`
	Topic     string    `json:"topic,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type embeddingView struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata embeddingMetadata `json:"metadata"`
}

type searchHit struct {
	Embedding      embeddingView `json:"embedding"`
	Similarity     float64       `json:"similarity"`
	RelevanceScore float64       `json:"relevance_score"`
}

func (c *client) storeEmbedding(content string, md embeddingMetadata) (string, error) {
	var out embeddingView
	body := map[string]any{"content": content, "metadata": md}
	if err := c.do(http.MethodPost, "/api/embeddings", body, &out, http.StatusCreated); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *client) search(query map[string]any) ([]searchHit, error) {
	var out struct {
		Results []searchHit `json:"results"`
	}
	err := c.do(http.MethodPost, "/api/embeddings/search", query, &out)
	return out.Results, err
}

func (c *client) analytics(agentID string) (map[string]any, error) {
	var out map[string]any
	path := "/api/embeddings/analytics"
	if agentID != "" {
		path += "?agent_id=" + url.QueryEscape(agentID)
	}
	err := c.do(http.MethodGet, path, nil, &out)
	return out, err
}

type contextWindowView struct {
	Embeddings     []embeddingView `json:"embeddings"`
	Summary        string          `json:"summary"`
	KeyTopics      []string        `json:"key_topics"`
	RelevanceScore float64         `json:"relevance_score"`
}

func (c *client) contextWindow(body map[string]any) (*contextWindowView, error) {
	var out contextWindowView
	if err := c.do(http.MethodPost, "/api/context-window", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func prettyJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
