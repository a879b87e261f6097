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
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "Manage queued tasks"}
	cmd.AddCommand(taskEnqueueCmd(), taskGetCmd(), taskListCmd(), taskCancelCmd(), taskRetryCmd())
	return cmd
}

func taskEnqueueCmd() *cobra.Command {
	var (
		body       enqueueBody
		payload    string
		maxRetries int
		timeoutMS  int64
		deps       []string
	)
	cmd := &cobra.Command{
		Use:   "enqueue <type>",
		Short: "Enqueue a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body.Type = args[0]
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &body.Payload); err != nil {
					return fmt.Errorf("invalid --payload: %w", err)
				}
			}
			if cmd.Flags().Changed("max-retries") {
				body.MaxRetries = &maxRetries
			}
			body.TimeoutMS = timeoutMS
			body.Dependencies = deps
			id, err := apiClient().enqueueTask(body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&body.UserID, "user", "", "owning user id")
	cmd.Flags().StringVar(&body.AgentID, "agent", "", "agent id")
	cmd.Flags().StringVar(&body.Priority, "priority", "", "low | medium | high | critical")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retry budget")
	cmd.Flags().Int64Var(&timeoutMS, "timeout-ms", 0, "execution timeout in milliseconds")
	cmd.Flags().StringSliceVar(&deps, "depends-on", nil, "task ids that must complete first")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <task_id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := apiClient().getTask(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prettyJSON(t))
			return nil
		},
	}
}

func taskListCmd() *cobra.Command {
	var agentID, userID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := apiClient().listTasks(agentID, userID, status)
			if err != nil {
				return err
			}
			renderTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "filter by agent id")
	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func taskCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task_id>",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := apiClient().cancelTask(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "task not cancellable")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
			return nil
		},
	}
}

func taskRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <task_id>",
		Short: "Retry a failed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := apiClient().retryTask(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "task not retryable")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "retried")
			return nil
		},
	}
}

func renderTasks(w io.Writer, tasks []taskView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Type", "Priority", "Status", "Progress", "Retries", "Created"})
	for _, task := range tasks {
		t.AppendRow(table.Row{
			task.ID,
			task.Type,
			task.Priority,
			task.Status,
			fmt.Sprintf("%d%%", task.Progress),
			fmt.Sprintf("%d/%d", task.RetryCount, task.MaxRetries),
			task.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(tasks)})
	t.Render()
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "queue", Short: "Queue statistics and maintenance"}
	cmd.AddCommand(&cobra.Command{
		Use:   "metrics",
		Short: "Show queue metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := apiClient().queueMetrics()
			if err != nil {
				return err
			}
			renderMetrics(cmd.OutOrStdout(), m)
			return nil
		},
	})

	var olderThan string
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old terminal tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := apiClient().cleanup(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d tasks\n", n)
			return nil
		},
	}
	cleanup.Flags().StringVar(&olderThan, "older-than", "24h", "age threshold")
	cmd.AddCommand(cleanup)
	return cmd
}

func renderMetrics(w io.Writer, m map[string]any) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	for _, k := range []string{
		"total_tasks", "pending_tasks", "running_tasks", "completed_tasks",
		"failed_tasks", "cancelled_tasks", "average_processing_ms", "throughput_per_minute",
	} {
		t.AppendRow(table.Row{strings.ReplaceAll(k, "_", " "), m[k]})
	}
	if byPriority, ok := m["queue_length_by_priority"].(map[string]any); ok {
		for _, p := range []string{"critical", "high", "medium", "low"} {
			t.AppendRow(table.Row{"pending " + p, byPriority[p]})
		}
	}
	t.Render()
}
