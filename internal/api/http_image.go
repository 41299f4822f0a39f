package api

import (
	"context"
	"net/http"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GenerateImage 计费后同步生成一张图像并返回存储后的访问地址。
func (h *HTTPHandler) GenerateImage(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	if h.generationService == nil {
		ServiceUnavailable(c, "生成服务未配置")
		return
	}

	var req entity.ImageGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	generation, err := h.generationService.GenerateImage(ctx, user.ID, req)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("image generation failed")
		BillingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.makeImageItem(generation))
}

// GetImage 返回单条图像生成记录。
func (h *HTTPHandler) GetImage(c *gin.Context) {
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

	generation, err := h.repo.GetImageGeneration(ctx, id)
	if err != nil || generation.UserID != user.ID {
		NotFound(c, ErrCodeRecordNotFound, "生成记录不存在")
		return
	}

	c.JSON(http.StatusOK, h.makeImageItem(generation))
}

// ListImages 分页列出当前用户的图像生成记录。
func (h *HTTPHandler) ListImages(c *gin.Context) {
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

	generations, meta, err := h.repo.ListImageGenerations(ctx, &params)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to list image generations")
		InternalError(c, "查询生成记录失败")
		return
	}

	response := entity.GenerationListResponse{Items: make([]entity.GenerationItem, 0, len(generations)), Meta: meta}
	for i := range generations {
		response.Items = append(response.Items, h.makeImageItem(&generations[i]))
	}
	c.JSON(http.StatusOK, response)
}

// DeleteImage 删除自己的图像生成记录。
func (h *HTTPHandler) DeleteImage(c *gin.Context) {
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

	generation, err := h.repo.GetImageGeneration(ctx, id)
	if err != nil || generation.UserID != user.ID {
		NotFound(c, ErrCodeRecordNotFound, "生成记录不存在")
		return
	}
	if err := h.repo.DeleteImageGeneration(ctx, id); err != nil {
		logrus.WithError(err).WithField("generation_id", id).Error("failed to delete image generation")
		InternalError(c, "删除失败")
		return
	}
	if generation.ObjectPath != "" {
		if err := h.storage.Delete(ctx, generation.ObjectPath); err != nil {
			logrus.WithError(err).WithField("object_path", generation.ObjectPath).Warn("failed to delete stored image")
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

func (h *HTTPHandler) makeImageItem(generation *entity.DbImageGeneration) entity.GenerationItem {
	return entity.GenerationItem{
		ID:        generation.ID,
		Prompt:    generation.Prompt,
		Provider:  generation.Provider,
		ModelTag:  generation.ModelTag,
		URL:       h.publicURL(generation.ObjectPath),
		CreatedAt: generation.CreatedAt,
	}
}
