package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/auth"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ListUsers 分页列出用户，管理端使用。
func (h *HTTPHandler) ListUsers(c *gin.Context) {
	var params entity.UserQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	users, meta, err := h.repo.ListUsers(ctx, &params)
	if err != nil {
		logrus.WithError(err).Error("failed to list users")
		InternalError(c, "查询用户失败")
		return
	}

	response := entity.UserListResponse{Users: make([]entity.UserSummary, 0, len(users)), Meta: meta}
	for i := range users {
		profile, err := h.repo.GetProfileByUserID(ctx, users[i].ID)
		if err != nil {
			profile = nil
		}
		response.Users = append(response.Users, makeUserSummary(&users[i], profile))
	}
	c.JSON(http.StatusOK, response)
}

// UpdateUser 更新用户的展示名、密码、启用状态或管理员标记，管理端使用。
func (h *HTTPHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req entity.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeUserNotFound, "用户不存在")
			return
		}
		logrus.WithError(err).WithField("user_id", id).Error("failed to load user")
		InternalError(c, "加载用户失败")
		return
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			BadRequest(c, ErrCodeInvalidRequest, "密码长度至少 8 位")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			logrus.WithError(err).Error("failed to hash password")
			InternalError(c, "密码处理失败")
			return
		}
		updates["password_hash"] = hash
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := h.repo.UpdateUser(ctx, user.ID, updates); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("failed to update user")
			InternalError(c, "更新用户失败")
			return
		}
	}

	if req.IsAdmin != nil {
		profile, err := h.repo.GetProfileByUserID(ctx, user.ID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load profile")
			InternalError(c, "加载档案失败")
			return
		}
		if err := h.repo.UpdateProfile(ctx, profile.ID, map[string]interface{}{"is_admin": *req.IsAdmin}); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("failed to update profile")
			InternalError(c, "更新档案失败")
			return
		}
	}

	updated, err := h.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		InternalError(c, "加载用户失败")
		return
	}
	profile, err := h.repo.GetProfileByUserID(ctx, user.ID)
	if err != nil {
		profile = nil
	}
	c.JSON(http.StatusOK, makeUserSummary(updated, profile))
}

// DeleteUser 删除用户，不允许删除自己。管理端使用。
func (h *HTTPHandler) DeleteUser(c *gin.Context) {
	current := CurrentUser(c)
	if current == nil {
		Unauthorized(c, "需要认证")
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if id == current.ID {
		BadRequest(c, ErrCodeCannotDeleteSelf, "不能删除当前登录用户")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.repo.GetUserByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeUserNotFound, "用户不存在")
			return
		}
		logrus.WithError(err).WithField("user_id", id).Error("failed to load user")
		InternalError(c, "加载用户失败")
		return
	}
	if err := h.repo.DeleteUser(ctx, id); err != nil {
		logrus.WithError(err).WithField("user_id", id).Error("failed to delete user")
		InternalError(c, "删除用户失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}
