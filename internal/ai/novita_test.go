package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
)

func newTestNovita(t *testing.T, handler http.HandlerFunc) *Novita {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewNovita(config.Config{NovitaAPIKey: "test-key", NovitaBaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewNovita 报错: %v", err)
	}
	return client
}

func TestCreateVideoTaskTextToVideo(t *testing.T) {
	client := newTestNovita(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/async/txt2video" {
			t.Errorf("path = %s, 期望 txt2video", r.URL.Path)
		}
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if _, ok := payload["prompts"]; !ok {
			t.Error("文生视频应携带 prompts")
		}
		w.Write([]byte(`{"task_id":"vt-1"}`))
	})

	taskID, err := client.CreateVideoTask(context.Background(), VideoTaskRequest{
		Model:  "wan-v2",
		Prompt: "sunrise over mountains",
	})
	if err != nil {
		t.Fatalf("CreateVideoTask 报错: %v", err)
	}
	if taskID != "vt-1" {
		t.Errorf("taskID = %q", taskID)
	}
}

func TestCreateVideoTaskImageToVideo(t *testing.T) {
	client := newTestNovita(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/async/img2video" {
			t.Errorf("path = %s, 期望 img2video", r.URL.Path)
		}
		w.Write([]byte(`{"task_id":"vt-2"}`))
	})

	taskID, err := client.CreateVideoTask(context.Background(), VideoTaskRequest{
		Model:      "wan-v2",
		Prompt:     "animate this",
		InputImage: "data:image/png;base64,AAAA",
	})
	if err != nil {
		t.Fatalf("CreateVideoTask 报错: %v", err)
	}
	if taskID != "vt-2" {
		t.Errorf("taskID = %q", taskID)
	}
}

func TestNovitaPoll(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus TaskStatus
		wantURLs   int
		wantErrMsg string
	}{
		{
			name:       "处理中",
			body:       `{"task":{"task_id":"vt-1","status":"TASK_STATUS_PROCESSING","progress_percent":40}}`,
			wantStatus: TaskStatusRunning,
		},
		{
			name:       "成功返回视频地址",
			body:       `{"task":{"task_id":"vt-1","status":"TASK_STATUS_SUCCEED"},"videos":[{"video_url":"https://cdn.example.com/v.mp4"}]}`,
			wantStatus: TaskStatusSucceeded,
			wantURLs:   1,
		},
		{
			name:       "成功但缺少产物按失败处理",
			body:       `{"task":{"task_id":"vt-1","status":"TASK_STATUS_SUCCEED"}}`,
			wantStatus: TaskStatusFailed,
		},
		{
			name:       "失败透传原因",
			body:       `{"task":{"task_id":"vt-1","status":"TASK_STATUS_FAILED","reason":"nsfw content"}}`,
			wantStatus: TaskStatusFailed,
			wantErrMsg: "nsfw content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestNovita(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v3/async/task-result" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if r.URL.Query().Get("task_id") != "vt-1" {
					t.Errorf("task_id = %q", r.URL.Query().Get("task_id"))
				}
				w.Write([]byte(tt.body))
			})

			task, err := client.Poll(context.Background(), "vt-1")
			if err != nil {
				t.Fatalf("Poll 报错: %v", err)
			}
			if task.Status != tt.wantStatus {
				t.Errorf("status = %q, 期望 %q", task.Status, tt.wantStatus)
			}
			if tt.wantURLs > 0 {
				if task.Result == nil || len(task.Result.MediaURLs) != tt.wantURLs {
					t.Errorf("产物数量不符: %+v", task.Result)
				}
			}
			if tt.wantErrMsg != "" {
				if task.Error == nil || task.Error.Error() != tt.wantErrMsg {
					t.Errorf("错误 = %v, 期望 %q", task.Error, tt.wantErrMsg)
				}
			}
		})
	}
}
