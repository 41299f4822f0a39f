package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/api"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/model"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}

	httpHandler, err := api.NewHTTPHandler(cfg, repo, store)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", httpHandler.Register)
	authGroup.POST("/login", httpHandler.Login)
	authGroup.GET("/me", httpHandler.AuthMiddleware(), httpHandler.Me)

	protected := apiGroup.Group("")
	protected.Use(httpHandler.AuthMiddleware())

	// 配额与计费
	protected.GET("/demolimit", httpHandler.DemoLimit)
	protected.GET("/projects", httpHandler.ListAiProjects)

	// 钱包
	walletGroup := protected.Group("/wallet")
	walletGroup.GET("", httpHandler.GetWallet)
	walletGroup.POST("", httpHandler.CreateWallet)
	walletGroup.GET("/balance", httpHandler.WalletBalance)
	walletGroup.POST("/transfer", httpHandler.WalletTransfer)
	walletGroup.POST("/ramp", httpHandler.CreateRampSession)
	walletGroup.GET("/transactions", httpHandler.RequireAdmin(), httpHandler.TreasuryTransactions)

	// 聊天
	protected.POST("/postchat", httpHandler.PostChat)
	protected.GET("/chat", httpHandler.ListChats)
	protected.DELETE("/chat/:id", httpHandler.DeleteChat)
	protected.GET("/chatgen", httpHandler.ListChatGenerations)
	protected.POST("/chatgen", httpHandler.ChatGenerate)
	protected.POST("/postchatgen", httpHandler.PostChatGeneration)

	// 图像生成
	protected.POST("/image", httpHandler.GenerateImage)
	protected.GET("/image", httpHandler.ListImages)
	protected.GET("/image/:id", httpHandler.GetImage)
	protected.DELETE("/image/:id", httpHandler.DeleteImage)

	// 3D 模型生成
	protected.POST("/model3d", httpHandler.GenerateModel3D)
	protected.GET("/model3d", httpHandler.ListModel3ds)
	protected.DELETE("/model3d/:id", httpHandler.DeleteModel3d)

	// 视频生成
	protected.POST("/video", httpHandler.CreateVideo)
	protected.GET("/video", httpHandler.ListVideos)
	protected.GET("/video/:id/check", httpHandler.CheckVideo)
	protected.DELETE("/video/:id", httpHandler.DeleteVideo)

	// 用户管理
	userAdmin := protected.Group("/users")
	userAdmin.Use(httpHandler.RequireAdmin())
	userAdmin.GET("", httpHandler.ListUsers)
	userAdmin.PATCH(":id", httpHandler.UpdateUser)
	userAdmin.DELETE(":id", httpHandler.DeleteUser)

	if localProvider, ok := store.(storage.LocalBaseDirProvider); ok {
		publicPrefix := strings.TrimSpace(cfg.StoragePublicBaseURL)
		if publicPrefix == "" {
			publicPrefix = "/files"
		}
		if !strings.HasPrefix(publicPrefix, "http://") && !strings.HasPrefix(publicPrefix, "https://") {
			if !strings.HasPrefix(publicPrefix, "/") {
				publicPrefix = "/" + publicPrefix
			}
			r.Static(publicPrefix, localProvider.LocalBaseDir())
		}
	}

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logger.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  900 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("服务器启动失败")
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
