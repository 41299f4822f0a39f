package ai

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

// 文档: https://www.volcengine.com/docs/82379/1824121

// Volcengine 火山引擎 Seedream 图像生成客户端。
type Volcengine struct {
	client *arkruntime.Client
}

func NewVolcengine(cfg config.Config) (*Volcengine, error) {
	if strings.TrimSpace(cfg.VolcengineAPIKey) == "" {
		return nil, errors.New("volcengine api key is not configured")
	}
	return &Volcengine{client: arkruntime.NewClientWithApiKey(cfg.VolcengineAPIKey)}, nil
}

// GenerateImage 流式生成一张图片，返回厂商下载地址（24 小时内有效）。
func (v *Volcengine) GenerateImage(ctx context.Context, model, prompt, size string, referenceImages []string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is required")
	}

	requestedSize := strings.TrimSpace(size)
	if requestedSize == "" {
		requestedSize = "2K"
	}

	var sequentialImageGeneration volcModel.SequentialImageGeneration = "disabled"
	generateReq := volcModel.GenerateImagesRequest{
		Model:                     model,
		Prompt:                    prompt,
		Image:                     referenceImages,
		Size:                      volcengine.String(requestedSize),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:                 volcengine.Bool(false),
		SequentialImageGeneration: &sequentialImageGeneration,
	}

	logger := vendorLogger(ctx, "volcengine", model)
	logger.WithFields(map[string]interface{}{
		"prompt_preview":      logSnippet(prompt),
		"reference_image_cnt": len(referenceImages),
		"size":                requestedSize,
	}).Info("image generation start")

	stream, err := v.client.GenerateImagesStreaming(ctx, generateReq)
	if err != nil {
		logger.WithError(err).Error("volcengine generate images failed")
		return "", err
	}
	defer stream.Close()

	var imageURL, vendorMessage string
	for {
		recv, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.WithError(err).Error("volcengine stream recv failed")
			return "", err
		}
		switch recv.Type {
		case "image_generation.partial_failed":
			if recv.Error != nil {
				vendorMessage = recv.Error.Message
				logger.WithField("code", recv.Error.Code).Warn("volcengine partial failure")
				if strings.EqualFold(recv.Error.Code, "InternalServiceError") {
					return "", errors.New(vendorMessage)
				}
			}
		case "image_generation.partial_succeeded":
			if recv.Error == nil && recv.Url != nil && imageURL == "" {
				imageURL = *recv.Url
			}
		}
	}

	if imageURL == "" {
		if vendorMessage != "" {
			return "", errors.New(vendorMessage)
		}
		return "", errors.New("no image in streamed response")
	}

	logger.Info("image generation end")
	return imageURL, nil
}
