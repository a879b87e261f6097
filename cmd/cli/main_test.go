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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			var body enqueueBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid argument: user_id is required"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"task_id":"task-1"}`))
		case http.MethodGet:
			if r.URL.Query().Get("agent_id") != "a1" {
				_, _ = w.Write([]byte(`{"tasks":[],"total":0}`))
				return
			}
			_, _ = w.Write([]byte(`{"tasks":[{"id":"task-1","type":"chat","priority":"high","status":"pending","created_at":"2026-03-01T00:00:00Z","max_retries":3}],"total":1}`))
		}
	})
	mux.HandleFunc("/api/tasks/task-missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"task task-missing: not found"}`))
	})
	mux.HandleFunc("/api/tasks/task-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cancelled":true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_EnqueueTask(t *testing.T) {
	srv := newFakeAPI(t)
	c := newClient(srv.URL)

	id, err := c.enqueueTask(enqueueBody{Type: "chat", UserID: "u1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id != "task-1" {
		t.Errorf("id = %q", id)
	}

	_, err = c.enqueueTask(enqueueBody{Type: "chat"})
	if err == nil || !strings.Contains(err.Error(), "user_id is required") {
		t.Errorf("expected server error message, got %v", err)
	}
}

func TestClient_GetTaskNotFound(t *testing.T) {
	srv := newFakeAPI(t)
	_, err := newClient(srv.URL).getTask("task-missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestClient_ListAndCancel(t *testing.T) {
	srv := newFakeAPI(t)
	c := newClient(srv.URL)

	tasks, err := c.listTasks("a1", "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "task-1" || tasks[0].Status != "pending" {
		t.Errorf("tasks = %+v", tasks)
	}

	ok, err := c.cancelTask("task-1")
	if err != nil || !ok {
		t.Errorf("cancel: ok=%v err=%v", ok, err)
	}
}

func TestRenderTasks(t *testing.T) {
	var buf bytes.Buffer
	renderTasks(&buf, []taskView{{
		ID:         "task-1",
		Type:       "training",
		Priority:   "critical",
		Status:     "running",
		Progress:   40,
		RetryCount: 1,
		MaxRetries: 3,
		CreatedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}})
	out := buf.String()
	for _, want := range []string{"task-1", "training", "critical", "40%", "1/3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRootCmd_TasksList(t *testing.T) {
	srv := newFakeAPI(t)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--api-url", srv.URL, "tasks", "list", "--agent", "a1"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		apiURL = ""
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "task-1") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("truncate long = %q", got)
	}
}
