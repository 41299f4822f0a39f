package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) (*OpenAI, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAI(config.Config{OpenAIAPIKey: "test-key", OpenAIBaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAI 报错: %v", err)
	}
	return client, server
}

func TestStreamChatAggregatesDeltas(t *testing.T) {
	client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
			`data: {"choices":[{"delta":{"content":", world"}}]}`,
			`data: {"choices":[],"usage":{"prompt_tokens":12,"completion_tokens":4}}`,
			`data: [DONE]`,
		}
		for _, chunk := range chunks {
			w.Write([]byte(chunk + "\n\n"))
		}
	})

	var streamed []string
	result, err := client.StreamChat(context.Background(), "gpt-4o-mini",
		[]ChatMessage{{Role: "user", Content: "hi"}},
		func(delta string) error {
			streamed = append(streamed, delta)
			return nil
		})
	if err != nil {
		t.Fatalf("StreamChat 报错: %v", err)
	}
	if result.Text != "Hello, world" {
		t.Errorf("Text = %q", result.Text)
	}
	if strings.Join(streamed, "|") != "Hello|, world" {
		t.Errorf("增量序列 = %v", streamed)
	}
	if result.Usage.PromptTokens != 12 || result.Usage.CompletionTokens != 4 {
		t.Errorf("用量 = %+v", result.Usage)
	}
}

func TestStreamChatHTTPError(t *testing.T) {
	client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	_, err := client.StreamChat(context.Background(), "gpt-4o-mini",
		[]ChatMessage{{Role: "user", Content: "hi"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, 期望携带状态码", err)
	}
}

func TestStreamChatHandlerAbort(t *testing.T) {
	client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"部分"}}]}` + "\n\n"))
		w.Write([]byte(`data: [DONE]` + "\n\n"))
	})

	wantErr := context.Canceled
	_, err := client.StreamChat(context.Background(), "gpt-4o-mini",
		[]ChatMessage{{Role: "user", Content: "hi"}},
		func(delta string) error { return wantErr })
	if err != wantErr {
		t.Fatalf("err = %v, 期望 handler 错误透传", err)
	}
}

func TestGenerateImagePrefersBase64(t *testing.T) {
	client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"b64_json":"QUJD"}]}`))
	})

	got, err := client.GenerateImage(context.Background(), "gpt-image-1", "a cat", "1024x1024")
	if err != nil {
		t.Fatalf("GenerateImage 报错: %v", err)
	}
	if got != "data:image/png;base64,QUJD" {
		t.Errorf("结果 = %q", got)
	}
}

func TestGenerateImageEmptyPrompt(t *testing.T) {
	client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("空提示词不应请求厂商")
	})

	if _, err := client.GenerateImage(context.Background(), "gpt-image-1", "  ", ""); err == nil {
		t.Fatal("空提示词应当报错")
	}
}
