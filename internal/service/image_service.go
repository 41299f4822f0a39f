package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/billing"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/sirupsen/logrus"
)

// GenerateImage 计费后同步生成一张图片并把产物落到对象存储。
func (s *GenerationService) GenerateImage(ctx context.Context, userID uint, req entity.ImageGenerateRequest) (*entity.DbImageGeneration, error) {
	modelTag := strings.TrimSpace(req.ModelTag)
	if modelTag == "" {
		modelTag = DefaultImageModel
	}
	provider := imageProviderFor(modelTag)

	switch provider {
	case "volcengine":
		if s.seedream == nil {
			return nil, errors.New("volcengine vendor is not configured")
		}
	default:
		if s.openai == nil {
			return nil, errors.New("openai vendor is not configured")
		}
	}

	if _, err := s.billing.Charge(ctx, billing.ChargeRequest{
		UserID:      userID,
		ProjectName: "Image Generation",
		ModelTag:    modelTag,
		PriceUSDC:   s.cfg.ImagePriceUSDC,
	}); err != nil {
		return nil, err
	}

	var payload string
	var err error
	if provider == "volcengine" {
		payload, err = s.seedream.GenerateImage(ctx, modelTag, req.Prompt, req.Size, nil)
	} else {
		payload, err = s.openai.GenerateImage(ctx, modelTag, req.Prompt, req.Size)
	}
	if err != nil {
		return nil, err
	}

	objectPath, err := s.persistMedia(ctx, "images", payload, buildOutputBaseName(modelTag, userID))
	if err != nil {
		return nil, fmt.Errorf("persist image: %w", err)
	}

	generation := &entity.DbImageGeneration{
		UserID:     userID,
		Prompt:     req.Prompt,
		Provider:   provider,
		ModelTag:   modelTag,
		Size:       strings.TrimSpace(req.Size),
		ObjectPath: objectPath,
	}
	if err := s.repo.CreateImageGeneration(ctx, generation); err != nil {
		return nil, fmt.Errorf("record image generation: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"provider":    provider,
		"model":       modelTag,
		"object_path": objectPath,
	}).Info("image generation stored")

	return generation, nil
}

// imageProviderFor 按模型标签路由图像厂商。
func imageProviderFor(modelTag string) string {
	lower := strings.ToLower(modelTag)
	if strings.HasPrefix(lower, "doubao") || strings.Contains(lower, "seedream") {
		return "volcengine"
	}
	return "openai"
}
