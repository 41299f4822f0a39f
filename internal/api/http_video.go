package api

import (
	"context"
	"net/http"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CreateVideo 计费后提交图生视频任务，立即返回 queued 状态的记录。
// 后续进度由客户端轮询 CheckVideo 推进。
func (h *HTTPHandler) CreateVideo(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	if h.generationService == nil {
		ServiceUnavailable(c, "生成服务未配置")
		return
	}

	var req entity.VideoGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	generation, err := h.generationService.CreateVideoGeneration(ctx, user.ID, req)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("video generation failed")
		BillingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.makeVideoItem(generation))
}

// CheckVideo 查询一次视频任务的最新状态，必要时向上游轮询并推进状态机。
func (h *HTTPHandler) CheckVideo(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	if h.generationService == nil {
		ServiceUnavailable(c, "生成服务未配置")
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	generation, err := h.generationService.CheckVideoGeneration(ctx, user.ID, id)
	if err != nil {
		logrus.WithError(err).WithField("generation_id", id).Warn("video status check failed")
		BillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.makeVideoItem(generation))
}

// ListVideos 分页列出当前用户的视频生成记录。
func (h *HTTPHandler) ListVideos(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}

	var params entity.GenerationQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		InvalidPayload(c)
		return
	}
	params.UserID = user.ID

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	generations, meta, err := h.repo.ListVideoGenerations(ctx, &params)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to list video generations")
		InternalError(c, "查询生成记录失败")
		return
	}

	response := entity.GenerationListResponse{Items: make([]entity.GenerationItem, 0, len(generations)), Meta: meta}
	for i := range generations {
		response.Items = append(response.Items, h.makeVideoItem(&generations[i]))
	}
	c.JSON(http.StatusOK, response)
}

// DeleteVideo 删除自己的视频生成记录及其产物文件。
func (h *HTTPHandler) DeleteVideo(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	generation, err := h.repo.GetVideoGeneration(ctx, id)
	if err != nil || generation.UserID != user.ID {
		NotFound(c, ErrCodeRecordNotFound, "生成记录不存在")
		return
	}
	if err := h.repo.DeleteVideoGeneration(ctx, id); err != nil {
		logrus.WithError(err).WithField("generation_id", id).Error("failed to delete video generation")
		InternalError(c, "删除失败")
		return
	}
	if generation.ObjectPath != "" {
		if err := h.storage.Delete(ctx, generation.ObjectPath); err != nil {
			logrus.WithError(err).WithField("object_path", generation.ObjectPath).Warn("failed to delete stored video")
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

func (h *HTTPHandler) makeVideoItem(generation *entity.DbVideoGeneration) entity.GenerationItem {
	return entity.GenerationItem{
		ID:           generation.ID,
		Prompt:       generation.Prompt,
		Provider:     generation.Provider,
		ModelTag:     generation.ModelTag,
		Status:       generation.Status,
		URL:          h.publicURL(generation.ObjectPath),
		ErrorMessage: generation.ErrorMessage,
		CreatedAt:    generation.CreatedAt,
	}
}
