package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PostChat 创建一个新的聊天会话。
func (h *HTTPHandler) PostChat(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}

	var req entity.ChatCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	chat := &entity.DbChat{
		UserID:   user.ID,
		Title:    strings.TrimSpace(req.Title),
		ChatType: strings.TrimSpace(req.ChatType),
	}
	if chat.Title == "" {
		MissingField(c, "title")
		return
	}
	if err := h.repo.CreateChat(ctx, chat); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to create chat")
		InternalError(c, "创建会话失败")
		return
	}

	c.JSON(http.StatusCreated, makeChatResponse(chat))
}

// ListChats 列出当前用户的聊天会话，可按 chat_type 过滤。
func (h *HTTPHandler) ListChats(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	chats, err := h.repo.ListChats(ctx, user.ID, strings.TrimSpace(c.Query("chat_type")))
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to list chats")
		InternalError(c, "查询会话失败")
		return
	}

	response := entity.ChatListResponse{Chats: make([]entity.ChatResponse, 0, len(chats))}
	for i := range chats {
		response.Chats = append(response.Chats, makeChatResponse(&chats[i]))
	}
	c.JSON(http.StatusOK, response)
}

// DeleteChat 删除自己的会话及其全部轮次。
func (h *HTTPHandler) DeleteChat(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	chatID, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	chat, err := h.repo.GetChat(ctx, chatID)
	if err != nil || chat.UserID != user.ID {
		NotFound(c, ErrCodeRecordNotFound, "会话不存在")
		return
	}
	if err := h.repo.DeleteChat(ctx, chatID); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("failed to delete chat")
		InternalError(c, "删除会话失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// ListChatGenerations 列出某个会话的全部轮次，最老的在前。
func (h *HTTPHandler) ListChatGenerations(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	chatID, ok := parseIDQuery(c, "chat_id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	chat, err := h.repo.GetChat(ctx, chatID)
	if err != nil || chat.UserID != user.ID {
		NotFound(c, ErrCodeRecordNotFound, "会话不存在")
		return
	}

	generations, err := h.repo.ListChatGenerations(ctx, chatID)
	if err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("failed to list chat generations")
		InternalError(c, "查询对话记录失败")
		return
	}
	if generations == nil {
		generations = []entity.DbChatGeneration{}
	}

	c.JSON(http.StatusOK, entity.ChatGenerationListResponse{Generations: generations})
}

// ChatGenerate 计费后发起一次流式对话，以 SSE 把增量推给客户端。
// 计费或校验失败发生在流开始之前，仍然返回标准错误响应。
func (h *HTTPHandler) ChatGenerate(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	if h.generationService == nil {
		ServiceUnavailable(c, "生成服务未配置")
		return
	}

	var req entity.ChatGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		InternalError(c, "流式响应不可用")
		return
	}

	// 响应头推迟到第一个增量之前才写：计费或校验失败发生在流开始前，
	// 仍然要走标准 JSON 错误响应。
	streaming := false
	handler := func(delta string) error {
		if !streaming {
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.WriteHeader(http.StatusOK)
			streaming = true
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", encodeSSEData(delta)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if _, err := h.generationService.StreamChatGeneration(c.Request.Context(), user.ID, req, handler); err != nil {
		if streaming {
			// 响应头已发出，只能通过事件流告知失败。
			logrus.WithError(err).WithField("chat_id", req.ChatID).Error("chat stream aborted")
			fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", encodeSSEData("生成失败"))
			flusher.Flush()
			return
		}
		logrus.WithError(err).WithField("chat_id", req.ChatID).Warn("chat generation rejected")
		BillingError(c, err)
		return
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	flusher.Flush()
}

// PostChatGeneration 补写一轮客户端已在本地完成的对话。
func (h *HTTPHandler) PostChatGeneration(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	if h.generationService == nil {
		ServiceUnavailable(c, "生成服务未配置")
		return
	}

	var req entity.PostChatGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	generation, err := h.generationService.RecordChatGeneration(ctx, user.ID, req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeRecordNotFound, "会话不存在")
			return
		}
		logrus.WithError(err).WithField("chat_id", req.ChatID).Error("failed to record chat generation")
		InternalError(c, "保存对话记录失败")
		return
	}

	c.JSON(http.StatusCreated, generation)
}

func makeChatResponse(chat *entity.DbChat) entity.ChatResponse {
	return entity.ChatResponse{
		ID:       chat.ID,
		Title:    chat.Title,
		ChatType: chat.ChatType,
		Created:  chat.CreatedAt,
	}
}

// encodeSSEData 把增量按 SSE 规则转义，换行拆成多个 data 行不在此处处理，
// 统一替换为字面 \n 交给客户端还原。
func encodeSSEData(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", ""), "\n", "\\n")
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "无效的 ID")
		return 0, false
	}
	return uint(id), true
}

func parseIDQuery(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || id == 0 {
		MissingField(c, name)
		return 0, false
	}
	return uint(id), true
}
