package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GenerateModel3D 计费后发起图生 3D 任务并阻塞等到产物落盘。
// 上游任务通常要跑几分钟，超时上限放宽到轮询预算之上。
func (h *HTTPHandler) GenerateModel3D(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	if h.generationService == nil {
		ServiceUnavailable(c, "生成服务未配置")
		return
	}

	var req entity.Model3dGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		MissingField(c, "image")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Minute)
	defer cancel()

	generation, err := h.generationService.GenerateModel3D(ctx, user.ID, req)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("3d model generation failed")
		BillingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.makeModel3dItem(generation))
}

// ListModel3ds 分页列出当前用户的 3D 模型生成记录。
func (h *HTTPHandler) ListModel3ds(c *gin.Context) {
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

	generations, meta, err := h.repo.ListModel3dGenerations(ctx, &params)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to list 3d model generations")
		InternalError(c, "查询生成记录失败")
		return
	}

	response := entity.GenerationListResponse{Items: make([]entity.GenerationItem, 0, len(generations)), Meta: meta}
	for i := range generations {
		response.Items = append(response.Items, h.makeModel3dItem(&generations[i]))
	}
	c.JSON(http.StatusOK, response)
}

// DeleteModel3d 删除自己的 3D 模型生成记录及其全部产物文件。
func (h *HTTPHandler) DeleteModel3d(c *gin.Context) {
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

	generation, err := h.repo.GetModel3dGeneration(ctx, id)
	if err != nil || generation.UserID != user.ID {
		NotFound(c, ErrCodeRecordNotFound, "生成记录不存在")
		return
	}
	if err := h.repo.DeleteModel3dGeneration(ctx, id); err != nil {
		logrus.WithError(err).WithField("generation_id", id).Error("failed to delete 3d model generation")
		InternalError(c, "删除失败")
		return
	}
	for _, objectPath := range generation.ObjectPaths {
		if err := h.storage.Delete(ctx, objectPath); err != nil {
			logrus.WithError(err).WithField("object_path", objectPath).Warn("failed to delete stored model file")
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

func (h *HTTPHandler) makeModel3dItem(generation *entity.DbModel3dGeneration) entity.GenerationItem {
	return entity.GenerationItem{
		ID:        generation.ID,
		Prompt:    generation.Prompt,
		Provider:  generation.Provider,
		ModelTag:  generation.ModelTag,
		URLs:      h.publicURLs(generation.ObjectPaths.ToSlice()),
		CreatedAt: generation.CreatedAt,
	}
}
