package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/model"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/storage"

	"github.com/gin-gonic/gin"
)

// newTestRouter 用临时 SQLite 库和本地存储拉起精简版路由。
// 外部依赖（托管方、AI 厂商）均未配置。
func newTestRouter(t *testing.T) (*gin.Engine, *HTTPHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Config{
		DBType:               model.DBTypeSQLite,
		DBPath:               filepath.Join(dir, "test.db"),
		StorageType:          "local",
		StorageLocalDir:      filepath.Join(dir, "media"),
		StoragePublicBaseURL: "/files",
		JWTSecret:            "test-secret",
		JWTIssuer:            "usdc-ai-app",
		JWTExpirationMinutes: 60,
		DemoGenerationLimit:  5,
	}

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		t.Fatalf("init repository: %v", err)
	}
	store, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("init storage: %v", err)
	}
	handler, err := NewHTTPHandler(cfg, repo, store)
	if err != nil {
		t.Fatalf("init handler: %v", err)
	}

	r := gin.New()
	apiGroup := r.Group("/api")
	apiGroup.POST("/auth/register", handler.Register)
	apiGroup.POST("/auth/login", handler.Login)

	protected := apiGroup.Group("")
	protected.Use(handler.AuthMiddleware())
	protected.GET("/demolimit", handler.DemoLimit)
	protected.POST("/postchat", handler.PostChat)
	protected.GET("/chat", handler.ListChats)
	protected.DELETE("/chat/:id", handler.DeleteChat)
	protected.GET("/chatgen", handler.ListChatGenerations)
	protected.POST("/postchatgen", handler.PostChatGeneration)
	protected.DELETE("/image/:id", handler.DeleteImage)
	protected.DELETE("/model3d/:id", handler.DeleteModel3d)
	protected.DELETE("/video/:id", handler.DeleteVideo)
	return r, handler
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "",
		`{"email":"`+email+`","password":"password123","display_name":"测试用户"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var auth entity.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &auth); err != nil {
		t.Fatalf("unmarshal auth response: %v", err)
	}
	if auth.Token == "" {
		t.Fatal("expected a token")
	}
	return auth.Token
}

func TestChatLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r, "chat@example.com")

	t.Run("未认证请求被拒绝", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/chat", "", "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	var chat entity.ChatResponse
	t.Run("创建会话", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/postchat", token, `{"title":"旅行计划","chat_type":"text"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}
		if err := json.Unmarshal(w.Body.Bytes(), &chat); err != nil {
			t.Fatalf("unmarshal chat: %v", err)
		}
		if chat.ID == 0 || chat.Title != "旅行计划" {
			t.Fatalf("unexpected chat: %+v", chat)
		}
	})

	t.Run("列表包含新会话", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/chat?chat_type=text", token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var list entity.ChatListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("unmarshal list: %v", err)
		}
		if len(list.Chats) != 1 || list.Chats[0].ID != chat.ID {
			t.Fatalf("unexpected list: %+v", list)
		}
	})

	t.Run("补写一轮对话", func(t *testing.T) {
		body := `{"chat_id":` + itoa(chat.ID) + `,"prompt":"你好","response":"你好！","prompt_tokens":3,"completion_tokens":5}`
		w := doJSON(t, r, http.MethodPost, "/api/postchatgen", token, body)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}

		w = doJSON(t, r, http.MethodGet, "/api/chatgen?chat_id="+itoa(chat.ID), token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var generations entity.ChatGenerationListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &generations); err != nil {
			t.Fatalf("unmarshal generations: %v", err)
		}
		if len(generations.Generations) != 1 || generations.Generations[0].Prompt != "你好" {
			t.Fatalf("unexpected generations: %+v", generations)
		}
	})

	t.Run("他人会话不可见", func(t *testing.T) {
		other := registerAndLogin(t, r, "other@example.com")
		w := doJSON(t, r, http.MethodGet, "/api/chatgen?chat_id="+itoa(chat.ID), other, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		w = doJSON(t, r, http.MethodDelete, "/api/chat/"+itoa(chat.ID), other, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("删除会话", func(t *testing.T) {
		w := doJSON(t, r, http.MethodDelete, "/api/chat/"+itoa(chat.ID), token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		w = doJSON(t, r, http.MethodGet, "/api/chat", token, "")
		var list entity.ChatListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("unmarshal list: %v", err)
		}
		if len(list.Chats) != 0 {
			t.Fatalf("expected empty list, got %+v", list)
		}
	})
}

func TestDemoLimitWithoutWallet(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerAndLogin(t, r, "quota@example.com")

	w := doJSON(t, r, http.MethodGet, "/api/demolimit", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var limit entity.DemoLimitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &limit); err != nil {
		t.Fatalf("unmarshal demo limit: %v", err)
	}
	if !limit.CanGenerate || limit.Remaining != 5 {
		t.Fatalf("unexpected demo limit: %+v", limit)
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
