package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DemoLimit 返回当前用户的剩余生成配额。
func (h *HTTPHandler) DemoLimit(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	quota, err := h.billing.CheckQuota(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to check quota")
		InternalError(c, "配额查询失败")
		return
	}

	c.JSON(http.StatusOK, quota)
}
