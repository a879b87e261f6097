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
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func embeddingsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "embeddings", Short: "Vector memory operations"}
	cmd.AddCommand(embeddingStoreCmd(), embeddingSearchCmd(), embeddingAnalyticsCmd())
	return cmd
}

func embeddingStoreCmd() *cobra.Command {
	var md embeddingMetadata
	cmd := &cobra.Command{
		Use:   "store <content>",
		Short: "Store content as an embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := apiClient().storeEmbedding(args[0], md)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&md.AgentID, "agent", "", "agent id")
	cmd.Flags().StringVar(&md.SessionID, "session", "", "session id")
	cmd.Flags().StringVar(&md.Type, "type", "message", "message | document | knowledge | context")
	cmd.Flags().StringVar(&md.Topic, "topic", "", "topic")
	cmd.Flags().StringSliceVar(&md.Tags, "tag", nil, "tags")
	cmd.Flags().StringVar(&md.Source, "source", "cli", "source")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func embeddingSearchCmd() *cobra.Command {
	var (
		agentID, sessionID, typ, topic string
		tags                           []string
		limit                          int
		threshold                      float64
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Similarity search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := map[string]any{"query": args[0]}
			for k, v := range map[string]string{"agent_id": agentID, "session_id": sessionID, "type": typ, "topic": topic} {
				if v != "" {
					q[k] = v
				}
			}
			if len(tags) > 0 {
				q["tags"] = tags
			}
			if limit > 0 {
				q["limit"] = limit
			}
			if cmd.Flags().Changed("threshold") {
				q["threshold"] = threshold
			}
			hits, err := apiClient().search(q)
			if err != nil {
				return err
			}
			renderHits(cmd.OutOrStdout(), hits)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&typ, "type", "", "content type")
	cmd.Flags().StringVar(&topic, "topic", "", "topic")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "minimum similarity")
	return cmd
}

func renderHits(w io.Writer, hits []searchHit) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Type", "Topic", "Similarity", "Relevance", "Content"})
	for _, h := range hits {
		t.AppendRow(table.Row{
			h.Embedding.ID,
			h.Embedding.Metadata.Type,
			h.Embedding.Metadata.Topic,
			fmt.Sprintf("%.3f", h.Similarity),
			fmt.Sprintf("%.3f", h.RelevanceScore),
			truncate(h.Embedding.Content, 60),
		})
	}
	t.Render()
}

func embeddingAnalyticsCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Embedding statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := apiClient().analytics(agentID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prettyJSON(a))
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id (default all)")
	return cmd
}

func contextCmd() *cobra.Command {
	var (
		agentID, sessionID, window string
		maxEmbeddings              int
		types                      []string
	)
	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Build a context window for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"query": args[0], "agent_id": agentID}
			if sessionID != "" {
				body["session_id"] = sessionID
			}
			if window != "" {
				body["time_window"] = window
			}
			if maxEmbeddings > 0 {
				body["max_embeddings"] = maxEmbeddings
			}
			if len(types) > 0 {
				body["types"] = types
			}
			w, err := apiClient().contextWindow(body)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, w.Summary)
			fmt.Fprintf(out, "items: %d  relevance: %.2f\n", len(w.Embeddings), w.RelevanceScore)
			if len(w.KeyTopics) > 0 {
				fmt.Fprintf(out, "topics: %s\n", strings.Join(w.KeyTopics, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&window, "time-window", "", "only include items newer than this, e.g. 24h")
	cmd.Flags().IntVar(&maxEmbeddings, "max", 0, "max embeddings")
	cmd.Flags().StringSliceVar(&types, "type", nil, "content types")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
