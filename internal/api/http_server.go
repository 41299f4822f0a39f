package api

import (
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/ai"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/auth"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/billing"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/circle"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/model"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/service"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/storage"

	"github.com/sirupsen/logrus"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg               config.Config
	repo              model.Repository
	storage           storage.Storage
	storagePublicBase string
	authManager       *auth.Manager

	// 托管方与计费
	circle  *circle.Client
	billing *billing.Service

	// 服务层
	generationService *service.GenerationService
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	// 托管方客户端；未配置时钱包端点返回服务不可用
	circleClient, err := circle.NewClient(cfg)
	if err != nil {
		logrus.WithError(err).Warn("circle client not configured, wallet operations disabled")
		circleClient = nil
	}

	var walletAPI billing.WalletAPI
	if circleClient != nil {
		walletAPI = circleClient
	}
	billingService := billing.NewService(repo, walletAPI, cfg.TreasuryWalletAddress, cfg.DemoGenerationLimit)

	// AI 厂商，按配置逐个接入
	var openaiClient service.ChatVendor
	if client, err := ai.NewOpenAI(cfg); err != nil {
		logrus.WithError(err).Warn("openai vendor not configured")
	} else {
		openaiClient = client
	}
	var seedreamClient service.SeedreamVendor
	if client, err := ai.NewVolcengine(cfg); err != nil {
		logrus.WithError(err).Warn("volcengine vendor not configured")
	} else {
		seedreamClient = client
	}
	var model3dClient service.Model3dVendor
	if client, err := ai.NewMeshy(cfg); err != nil {
		logrus.WithError(err).Warn("meshy vendor not configured")
	} else {
		model3dClient = client
	}
	var videoClient service.VideoVendor
	if client, err := ai.NewNovita(cfg); err != nil {
		logrus.WithError(err).Warn("novita vendor not configured")
	} else {
		videoClient = client
	}

	generationSvc := service.NewGenerationService(repo, store, billingService, cfg,
		openaiClient, seedreamClient, model3dClient, videoClient)

	return &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		storagePublicBase: normalisePublicBase(cfg.StoragePublicBaseURL),
		authManager:       authManager,
		circle:            circleClient,
		billing:           billingService,
		generationService: generationSvc,
	}, nil
}

// normalisePublicBase 规范化公共 URL 基础路径
func normalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}
