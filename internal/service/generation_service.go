package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/ai"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/billing"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/model"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/storage"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/utils"
)

// 各生成类型的默认模型
const (
	DefaultChatModel    = "gpt-4o-mini"
	DefaultImageModel   = "gpt-image-1"
	DefaultModel3dModel = "meshy-4"
	DefaultVideoModel   = "wan-v2"
)

// Biller 生成服务所需的计费操作。
type Biller interface {
	CheckQuota(ctx context.Context, userID uint) (entity.DemoLimitResponse, error)
	Charge(ctx context.Context, req billing.ChargeRequest) (*entity.DbAiProject, error)
}

// ChatVendor OpenAI 协议的对话与图像生成。
type ChatVendor interface {
	StreamChat(ctx context.Context, model string, messages []ai.ChatMessage, handler ai.StreamHandler) (*ai.ChatResult, error)
	GenerateImage(ctx context.Context, model, prompt, size string) (string, error)
}

// SeedreamVendor 火山引擎图像生成。
type SeedreamVendor interface {
	GenerateImage(ctx context.Context, model, prompt, size string, referenceImages []string) (string, error)
}

// Model3dVendor 图生 3D 的异步任务端。
type Model3dVendor interface {
	ai.TaskPoller
	CreateImageTo3DTask(ctx context.Context, imageURL, model string) (string, error)
}

// VideoVendor 图生视频的异步任务端。
type VideoVendor interface {
	ai.TaskPoller
	CreateVideoTask(ctx context.Context, request ai.VideoTaskRequest) (string, error)
}

// GenerationService 内容生成服务，封装计费、厂商调用与产物落盘。
type GenerationService struct {
	repo    model.Repository
	storage storage.Storage
	billing Biller
	cfg     config.Config

	openai   ChatVendor
	seedream SeedreamVendor
	model3d  Model3dVendor
	video    VideoVendor
}

// NewGenerationService 创建生成服务实例。未配置的厂商传 nil，
// 对应端点会返回未配置错误。
func NewGenerationService(repo model.Repository, store storage.Storage, biller Biller, cfg config.Config,
	openai ChatVendor, seedream SeedreamVendor, model3d Model3dVendor, video VideoVendor) *GenerationService {
	return &GenerationService{
		repo:     repo,
		storage:  store,
		billing:  biller,
		cfg:      cfg,
		openai:   openai,
		seedream: seedream,
		model3d:  model3d,
		video:    video,
	}
}

// persistMedia 把厂商产物（URL 或 base64）落到对象存储，返回对象路径。
func (s *GenerationService) persistMedia(parentCtx context.Context, category, payload, baseName string) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	ctx, cancel := context.WithTimeout(parentCtx, 5*time.Minute)
	defer cancel()

	data, ext, err := s.resolveMediaPayload(ctx, payload)
	if err != nil {
		return "", err
	}

	return s.storage.Save(ctx, data, storage.SaveOptions{
		Category:  category,
		Extension: ext,
		BaseName:  baseName,
	})
}

// resolveMediaPayload 解析媒体数据（URL、data URL 或 base64）
func (s *GenerationService) resolveMediaPayload(ctx context.Context, payload string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, "", fmt.Errorf("empty payload")
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") || strings.HasPrefix(trimmed, "data:") {
		return utils.DownloadMedia(ctx, trimmed)
	}

	// 裸 base64
	data, ext, err := utils.DecodeMediaPayload(trimmed)
	if err == nil {
		return data, ext, nil
	}
	return utils.DecodeMediaPayload(utils.EnsureDataURL(trimmed))
}

// buildOutputBaseName 构建输出文件的基础名称
func buildOutputBaseName(modelName string, userID uint) string {
	token := storage.SanitizeToken(modelName)
	if token == "" {
		token = "model"
	}
	if len(token) > 32 {
		token = token[:32]
	}
	return fmt.Sprintf("%s_%d_%d", token, userID, time.Now().UTC().UnixNano())
}
