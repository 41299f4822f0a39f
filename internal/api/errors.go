package api

import (
	"errors"
	"net/http"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/billing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	// 认证错误码
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeEmailExists        = "ERR_EMAIL_EXISTS"
	ErrCodeUserDisabled       = "ERR_USER_DISABLED"
	ErrCodeSessionExpired     = "ERR_SESSION_EXPIRED"
	ErrCodeUserNotFound       = "ERR_USER_NOT_FOUND"

	// 资源错误码
	ErrCodeRecordNotFound = "ERR_RECORD_NOT_FOUND"
	ErrCodeWalletNotFound = "ERR_WALLET_NOT_FOUND"

	// 计费错误码
	ErrCodeQuotaExceeded     = "ERR_QUOTA_EXCEEDED"
	ErrCodeInsufficientFunds = "ERR_INSUFFICIENT_FUNDS"

	// 业务逻辑错误码
	ErrCodeMissingField      = "ERR_MISSING_FIELD"
	ErrCodeCannotDeleteSelf  = "ERR_CANNOT_DELETE_SELF"
	ErrCodeGenerationFailed  = "ERR_GENERATION_FAILED"
	ErrCodeVendorUnavailable = "ERR_VENDOR_UNAVAILABLE"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails 返回带详情的错误响应
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// 常用错误响应快捷函数

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden 403 禁止访问
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable 503 服务不可用
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// BillingError 把计费层错误映射到对应的状态码：
// 配额用尽 403，余额不足 402，其余 500。
func BillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrQuotaExceeded):
		ErrorResponse(c, http.StatusForbidden, ErrCodeQuotaExceeded, "生成配额已用完")
	case errors.Is(err, billing.ErrInsufficientFunds):
		ErrorResponse(c, http.StatusPaymentRequired, ErrCodeInsufficientFunds, "钱包余额不足")
	case errors.Is(err, billing.ErrNoWalletForTransfer):
		NotFound(c, ErrCodeWalletNotFound, "用户还没有钱包")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, ErrCodeRecordNotFound, "记录不存在")
	default:
		InternalError(c, "操作失败")
	}
}
