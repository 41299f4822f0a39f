package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/circle"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateWallet 为当前用户在托管方创建一个开发者托管钱包。
// 每个档案只允许一个钱包。
func (h *HTTPHandler) CreateWallet(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	if h.circle == nil {
		ServiceUnavailable(c, "托管服务未配置")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	profile, err := h.repo.GetProfileByUserID(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load profile")
		InternalError(c, "加载档案失败")
		return
	}

	if existing, err := h.repo.GetWalletByProfileID(ctx, profile.ID); err == nil {
		c.JSON(http.StatusOK, existing)
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load wallet")
		InternalError(c, "加载钱包失败")
		return
	}

	created, err := h.circle.CreateWallet(ctx, h.cfg.CircleWalletSetID, h.cfg.CircleBlockchain)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to create custody wallet")
		InternalError(c, "创建钱包失败")
		return
	}

	wallet := &entity.DbWallet{
		ProfileID:      profile.ID,
		CircleWalletID: created.ID,
		Address:        created.Address,
		Blockchain:     created.Blockchain,
	}
	if err := h.repo.CreateWallet(ctx, wallet); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":          user.ID,
			"circle_wallet_id": created.ID,
		}).Error("custody wallet created but record insert failed")
		InternalError(c, "保存钱包失败")
		return
	}

	c.JSON(http.StatusCreated, wallet)
}

// GetWallet 返回当前用户的钱包记录。
func (h *HTTPHandler) GetWallet(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	wallet, err := h.repo.GetWalletByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeWalletNotFound, "用户还没有钱包")
			return
		}
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load wallet")
		InternalError(c, "加载钱包失败")
		return
	}

	c.JSON(http.StatusOK, wallet)
}

// WalletBalance 实时向托管方查询钱包的 USDC 余额。
func (h *HTTPHandler) WalletBalance(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}
	if h.circle == nil {
		ServiceUnavailable(c, "托管服务未配置")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	wallet, err := h.repo.GetWalletByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeWalletNotFound, "用户还没有钱包")
			return
		}
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load wallet")
		InternalError(c, "加载钱包失败")
		return
	}

	balances, err := h.circle.WalletBalances(ctx, wallet.CircleWalletID)
	if err != nil {
		logrus.WithError(err).WithField("wallet_id", wallet.ID).Error("failed to query wallet balance")
		InternalError(c, "余额查询失败")
		return
	}

	response := entity.WalletBalanceResponse{
		WalletID: wallet.CircleWalletID,
		Address:  wallet.Address,
		Token:    "USDC",
		Amount:   "0",
	}
	if usdc, ok := circle.FindUSDCBalance(balances); ok {
		response.Amount = usdc.Amount
	}

	c.JSON(http.StatusOK, response)
}

// WalletTransfer 从用户钱包向平台金库转账并记入计费台账。
func (h *HTTPHandler) WalletTransfer(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}

	var req entity.WalletTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	transaction, err := h.billing.Transfer(ctx, user.ID, req.Amount, "")
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("wallet transfer failed")
		BillingError(c, err)
		return
	}

	wallet, err := h.repo.GetWalletByUserID(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("transfer done but wallet lookup failed")
		InternalError(c, "转账已提交但记账失败")
		return
	}

	project := &entity.DbAiProject{
		Name:                req.ProjectName,
		AiModel:             req.ModelTag,
		WalletID:            wallet.ID,
		CircleTransactionID: transaction.ID,
	}
	if err := h.repo.CreateAiProject(ctx, project); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"wallet_id":      wallet.ID,
			"transaction_id": transaction.ID,
		}).Error("usdc transfer succeeded but billing record insert failed")
		InternalError(c, "转账已提交但记账失败")
		return
	}

	c.JSON(http.StatusOK, entity.WalletTransferResponse{
		TransactionID: transaction.ID,
		ProjectID:     project.ID,
	})
}

// CreateRampSession 生成 USDC 买入/卖出通道的跳转会话。
func (h *HTTPHandler) CreateRampSession(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要认证")
		return
	}

	var req entity.RampSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode != "buy" && mode != "sell" {
		BadRequest(c, ErrCodeInvalidRequest, "mode 只能是 buy 或 sell")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	wallet, err := h.repo.GetWalletByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeWalletNotFound, "用户还没有钱包")
			return
		}
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load wallet")
		InternalError(c, "加载钱包失败")
		return
	}

	sessionID := uuid.NewString()
	redirect := url.Values{}
	redirect.Set("walletAddress", wallet.Address)
	redirect.Set("blockchain", wallet.Blockchain)
	redirect.Set("sessionId", sessionID)
	if amount := strings.TrimSpace(req.Amount); amount != "" {
		redirect.Set("amount", amount)
	}

	c.JSON(http.StatusOK, entity.RampSessionResponse{
		SessionID:   sessionID,
		RedirectURL: fmt.Sprintf("https://ramp.circle.com/%s?%s", mode, redirect.Encode()),
	})
}

// TreasuryTransactions 列出平台金库钱包的入账交易，管理端使用。
func (h *HTTPHandler) TreasuryTransactions(c *gin.Context) {
	if h.circle == nil {
		ServiceUnavailable(c, "托管服务未配置")
		return
	}
	treasuryID := strings.TrimSpace(h.cfg.TreasuryWalletID)
	if treasuryID == "" {
		ServiceUnavailable(c, "金库钱包未配置")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	transactions, err := h.circle.ListTransactions(ctx, treasuryID)
	if err != nil {
		logrus.WithError(err).Error("failed to list treasury transactions")
		InternalError(c, "交易查询失败")
		return
	}

	response := entity.TreasuryTransactionsResponse{Transactions: []entity.TreasuryTransaction{}}
	for _, transaction := range transactions {
		item := entity.TreasuryTransaction{
			ID:         transaction.ID,
			State:      transaction.State,
			SourceID:   transaction.SourceAddress,
			CreateDate: transaction.CreateDate,
		}
		if len(transaction.Amounts) > 0 {
			item.Amount = transaction.Amounts[0]
		}
		response.Transactions = append(response.Transactions, item)
	}

	c.JSON(http.StatusOK, response)
}
