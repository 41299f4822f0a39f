package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ListAiProjects 分页列出计费台账。普通用户只能看自己钱包的记录，
// 管理员可以带 all=true 查看全部。
func (h *HTTPHandler) ListAiProjects(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}

	var params entity.AiProjectQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if user.IsAdmin() && c.Query("all") == "true" {
		params.IncludeAll = true
	} else {
		wallet, err := h.repo.GetWalletByUserID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 无钱包则无台账。
				c.JSON(http.StatusOK, entity.AiProjectListResponse{
					Projects: []entity.DbAiProject{},
					Meta:     &entity.Meta{Page: 1, PageSize: params.PageSize},
				})
				return
			}
			logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load wallet")
			InternalError(c, "加载钱包失败")
			return
		}
		params.WalletID = wallet.ID
	}

	projects, meta, err := h.repo.ListAiProjects(ctx, &params)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to list billing records")
		InternalError(c, "查询台账失败")
		return
	}
	if projects == nil {
		projects = []entity.DbAiProject{}
	}

	c.JSON(http.StatusOK, entity.AiProjectListResponse{Projects: projects, Meta: meta})
}
