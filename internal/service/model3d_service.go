package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/ai"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/billing"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/utils"

	"github.com/sirupsen/logrus"
)

// GenerateModel3D 计费后提交图生 3D 任务，在请求生命周期内有界轮询到完成，
// 并把全部产物格式落到对象存储。
func (s *GenerationService) GenerateModel3D(ctx context.Context, userID uint, req entity.Model3dGenerateRequest) (*entity.DbModel3dGeneration, error) {
	if s.model3d == nil {
		return nil, errors.New("model3d vendor is not configured")
	}
	if strings.TrimSpace(req.Image) == "" {
		return nil, errors.New("input image is required")
	}

	if _, err := s.billing.Charge(ctx, billing.ChargeRequest{
		UserID:      userID,
		ProjectName: "3D Model Generation",
		ModelTag:    DefaultModel3dModel,
		PriceUSDC:   s.cfg.Model3dPriceUSDC,
	}); err != nil {
		return nil, err
	}

	// 输入图也落一份，便于重放与审计；失败不阻断生成
	inputPath, err := s.persistMedia(ctx, "inputs", req.Image, "")
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to persist model3d input image")
	}

	taskID, err := s.model3d.CreateImageTo3DTask(ctx, utils.EnsureDataURL(strings.TrimSpace(req.Image)), DefaultModel3dModel)
	if err != nil {
		return nil, err
	}

	result, err := ai.WaitForTask(ctx, s.model3d, taskID, ai.MeshyPollConfig)
	if err != nil {
		return nil, fmt.Errorf("model3d task %s: %w", taskID, err)
	}

	var objectPaths []string
	for _, mediaURL := range result.MediaURLs {
		objectPath, err := s.persistMedia(ctx, "models", mediaURL, buildOutputBaseName(DefaultModel3dModel, userID))
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"task_id": taskID,
			}).Warn("failed to persist model3d asset")
			continue
		}
		objectPaths = append(objectPaths, objectPath)
	}
	if len(objectPaths) == 0 {
		return nil, fmt.Errorf("model3d task %s: no asset could be persisted", taskID)
	}

	generation := &entity.DbModel3dGeneration{
		UserID:      userID,
		Prompt:      req.Prompt,
		InputImage:  inputPath,
		Provider:    "meshy",
		ModelTag:    DefaultModel3dModel,
		TaskID:      taskID,
		ObjectPaths: entity.StringArray(objectPaths),
	}
	if err := s.repo.CreateModel3dGeneration(ctx, generation); err != nil {
		return nil, fmt.Errorf("record model3d generation: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"task_id":   taskID,
		"asset_cnt": len(objectPaths),
	}).Info("model3d generation stored")

	return generation, nil
}
