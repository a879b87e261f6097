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

package executor

import (
	"context"
	"fmt"
	"math/rand/v2"

	"forge-platform/internal/agent/memory"
	"forge-platform/internal/agent/task"
	"forge-platform/internal/storage/vector"
)

// AgentExecution 单次 agent 调用
func (e *Executors) AgentExecution(ctx context.Context, t *task.Task) (any, error) {
	prompt := payloadString(t.Payload, "prompt")
	if err := sleep(ctx, e.opts.Delays.AgentExecution.pick()); err != nil {
		return nil, err
	}
	task.ReportProgress(ctx, 50)
	return map[string]any{
		"agent_id":        agentID(t),
		"response":        fmt.Sprintf("Agent response for: %s", prompt),
		"timestamp":       e.timestamp(),
		"processing_time": e.elapsed(t),
	}, nil
}

// Training 分步训练，每步上报进度
func (e *Executors) Training(ctx context.Context, t *task.Task) (any, error) {
	steps := e.opts.TrainingSteps
	for i := 0; i < steps; i++ {
		if err := sleep(ctx, e.opts.Delays.TrainingStep.pick()); err != nil {
			return nil, err
		}
		task.ReportProgress(ctx, (i+1)*100/steps)
	}
	return map[string]any{
		"agent_id":           agentID(t),
		"training_complete":  true,
		"accuracy":           0.85 + rand.Float64()*0.1,
		"training_data_size": payloadLen(t.Payload, "training_data"),
		"timestamp":          e.timestamp(),
	}, nil
}

// Deployment 部署 agent 并返回访问地址
func (e *Executors) Deployment(ctx context.Context, t *task.Task) (any, error) {
	id := agentID(t)
	if id == "" {
		return nil, fmt.Errorf("deployment requires agent_id")
	}
	if err := sleep(ctx, e.opts.Delays.Deployment.pick()); err != nil {
		return nil, err
	}
	return map[string]any{
		"agent_id":  id,
		"deployed":  true,
		"endpoint":  fmt.Sprintf("https://api.example.com/agents/%s", id),
		"timestamp": e.timestamp(),
	}, nil
}

// Chat 处理一条消息：检索会话上下文，回复后把消息写入向量记忆
func (e *Executors) Chat(ctx context.Context, t *task.Task) (any, error) {
	message := payloadString(t.Payload, "message")
	if message == "" {
		return nil, fmt.Errorf("chat requires a non-empty message")
	}
	id := agentID(t)
	sessionID := payloadString(t.Payload, "session_id")

	result := map[string]any{
		"agent_id":   id,
		"session_id": sessionID,
	}
	if e.opts.Context != nil && id != "" {
		w, err := e.opts.Context.BuildContextWindow(ctx, message, id, sessionID, memory.ContextOptions{})
		if err != nil {
			return nil, fmt.Errorf("build context window: %w", err)
		}
		result["context_items"] = len(w.Embeddings)
		result["context_summary"] = w.Summary
	}

	if err := sleep(ctx, e.opts.Delays.Chat.pick()); err != nil {
		return nil, err
	}
	result["response"] = fmt.Sprintf("Response to: %s", message)
	result["timestamp"] = e.timestamp()

	if e.opts.Messages != nil && id != "" {
		emb, err := e.opts.Messages.StoreEmbedding(ctx, message, vector.Metadata{
			AgentID:   id,
			SessionID: sessionID,
			Type:      vector.TypeMessage,
			Topic:     payloadString(t.Payload, "topic"),
			Source:    "chat",
		})
		if err != nil {
			return nil, fmt.Errorf("store chat message: %w", err)
		}
		result["embedding_id"] = emb.ID
	}
	return result, nil
}

// Analysis 基于 agent 知识与文档生成洞察
func (e *Executors) Analysis(ctx context.Context, t *task.Task) (any, error) {
	id := agentID(t)
	analysisType := payloadString(t.Payload, "analysis_type")
	insights := []string{"Insight 1", "Insight 2", "Insight 3"}

	var keyTopics []string
	if q := payloadString(t.Payload, "query"); e.opts.Context != nil && id != "" && q != "" {
		w, err := e.opts.Context.BuildContextWindow(ctx, q, id, "", memory.ContextOptions{
			Types: []vector.ContentType{vector.TypeKnowledge, vector.TypeDocument},
		})
		if err != nil {
			return nil, fmt.Errorf("build context window: %w", err)
		}
		keyTopics = w.KeyTopics
		for _, topic := range w.KeyTopics {
			insights = append(insights, fmt.Sprintf("Recurring topic: %s", topic))
		}
	}

	if err := sleep(ctx, e.opts.Delays.Analysis.pick()); err != nil {
		return nil, err
	}
	return map[string]any{
		"agent_id":      id,
		"analysis_type": analysisType,
		"results": map[string]any{
			"insights":   insights,
			"key_topics": keyTopics,
			"confidence": 0.8 + rand.Float64()*0.15,
			"timestamp":  e.timestamp(),
		},
	}, nil
}

// MultiLLM 多模型协作
func (e *Executors) MultiLLM(ctx context.Context, t *task.Task) (any, error) {
	cfg, _ := t.Payload["config"].(map[string]any)
	models, _ := cfg["models"].([]any)
	enabled := 0
	for _, m := range models {
		if mm, ok := m.(map[string]any); ok {
			if on, _ := mm["enabled"].(bool); on {
				enabled++
			}
		}
	}
	if err := sleep(ctx, e.opts.Delays.MultiLLM.pick()); err != nil {
		return nil, err
	}
	mode, _ := cfg["collaboration_mode"].(string)
	return map[string]any{
		"prompt":             payloadString(t.Payload, "prompt"),
		"response":           "Multi-LLM collaboration result",
		"models_used":        enabled,
		"collaboration_mode": mode,
		"timestamp":          e.timestamp(),
	}, nil
}

func agentID(t *task.Task) string {
	if t.AgentID != "" {
		return t.AgentID
	}
	return payloadString(t.Payload, "agent_id")
}

func payloadString(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func payloadLen(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case []any:
		return len(v)
	case string:
		return len(v)
	default:
		return 0
	}
}
