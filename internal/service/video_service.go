package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/ai"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/billing"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateVideoGeneration 计费后提交图生视频任务并落一行 queued 记录。
// 视频生成不在请求内等待，推进由 CheckVideoGeneration 驱动。
func (s *GenerationService) CreateVideoGeneration(ctx context.Context, userID uint, req entity.VideoGenerateRequest) (*entity.DbVideoGeneration, error) {
	if s.video == nil {
		return nil, errors.New("video vendor is not configured")
	}

	modelTag := strings.TrimSpace(req.ModelTag)
	if modelTag == "" {
		modelTag = DefaultVideoModel
	}

	if _, err := s.billing.Charge(ctx, billing.ChargeRequest{
		UserID:      userID,
		ProjectName: "Video Generation",
		ModelTag:    modelTag,
		PriceUSDC:   s.cfg.VideoPriceUSDC,
	}); err != nil {
		return nil, err
	}

	inputPath, err := s.persistMedia(ctx, "inputs", req.Image, "")
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to persist video input image")
	}

	taskID, err := s.video.CreateVideoTask(ctx, ai.VideoTaskRequest{
		Model:      modelTag,
		Prompt:     req.Prompt,
		InputImage: utils.EnsureDataURL(strings.TrimSpace(req.Image)),
	})
	if err != nil {
		return nil, err
	}

	generation := &entity.DbVideoGeneration{
		UserID:     userID,
		Prompt:     req.Prompt,
		InputImage: inputPath,
		Provider:   "novita",
		ModelTag:   modelTag,
		TaskID:     taskID,
		Status:     entity.VideoStatusQueued,
	}
	if err := s.repo.CreateVideoGeneration(ctx, generation); err != nil {
		return nil, fmt.Errorf("record video generation: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"task_id":  taskID,
		"video_id": generation.ID,
	}).Info("video generation queued")

	return generation, nil
}

// CheckVideoGeneration 查询并推进一条视频任务。终态的行原样返回；
// 非终态的行先做服务端超时判定，再向厂商查询一次并按结果迁移。
// 终态迁移通过状态守卫的 UPDATE 保证恰好发生一次。
func (s *GenerationService) CheckVideoGeneration(ctx context.Context, userID, id uint) (*entity.DbVideoGeneration, error) {
	generation, err := s.ownedVideo(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if entity.IsTerminalVideoStatus(generation.Status) {
		return generation, nil
	}

	// 服务端兜底超时：行创建后超过上限仍未到终态，直接判死，不再问厂商
	maxAge := time.Duration(s.cfg.VideoTaskTimeoutMinutes) * time.Minute
	if maxAge > 0 && time.Since(generation.CreatedAt) > maxAge {
		s.transitionVideo(ctx, generation.ID, map[string]interface{}{
			"status":        entity.VideoStatusError,
			"error_message": "video task timed out",
		})
		return s.ownedVideo(ctx, userID, id)
	}

	if s.video == nil {
		return generation, nil
	}

	task, err := s.video.Poll(ctx, generation.TaskID)
	if err != nil {
		// 查询失败当作瞬时故障，行保持原状，下次查询再推进
		logrus.WithError(err).WithFields(logrus.Fields{
			"video_id": generation.ID,
			"task_id":  generation.TaskID,
		}).Warn("video task poll failed")
		return generation, nil
	}

	switch task.Status {
	case ai.TaskStatusSucceeded:
		s.completeVideo(ctx, generation, task)
	case ai.TaskStatusFailed, ai.TaskStatusCancelled:
		message := "video task failed"
		if task.Error != nil {
			message = task.Error.Error()
		}
		s.transitionVideo(ctx, generation.ID, map[string]interface{}{
			"status":        entity.VideoStatusError,
			"error_message": message,
		})
	default:
		if generation.Status == entity.VideoStatusQueued {
			s.transitionVideo(ctx, generation.ID, map[string]interface{}{
				"status": entity.VideoStatusProcessing,
			})
		}
	}

	return s.ownedVideo(ctx, userID, id)
}

// completeVideo 下载厂商产物、落盘并迁移到 succeeded。
// 并发查询时只有一个赢家，输家清理自己落的对象。
func (s *GenerationService) completeVideo(ctx context.Context, generation *entity.DbVideoGeneration, task *ai.AsyncTask) {
	if task.Result == nil || len(task.Result.MediaURLs) == 0 {
		s.transitionVideo(ctx, generation.ID, map[string]interface{}{
			"status":        entity.VideoStatusError,
			"error_message": "vendor returned no video",
		})
		return
	}

	baseName := fmt.Sprintf("user-%d-%s", generation.UserID, uuid.NewString()[:8])
	objectPath, err := s.persistMedia(ctx, "videos", task.Result.MediaURLs[0], baseName)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"video_id": generation.ID,
			"task_id":  generation.TaskID,
		}).Error("failed to persist video asset")
		s.transitionVideo(ctx, generation.ID, map[string]interface{}{
			"status":        entity.VideoStatusError,
			"error_message": fmt.Sprintf("persist video: %v", err),
		})
		return
	}

	applied := s.transitionVideo(ctx, generation.ID, map[string]interface{}{
		"status":      entity.VideoStatusSucceeded,
		"object_path": objectPath,
	})
	if !applied {
		// 另一个并发查询先完成了迁移，回收本次落盘的对象
		if err := s.storage.Delete(ctx, objectPath); err != nil {
			logrus.WithError(err).WithField("object_path", objectPath).Warn("failed to clean up duplicate video asset")
		}
	}
}

func (s *GenerationService) transitionVideo(ctx context.Context, id uint, updates map[string]interface{}) bool {
	applied, err := s.repo.TransitionVideoGeneration(ctx, id, updates)
	if err != nil {
		logrus.WithError(err).WithField("video_id", id).Error("video status transition failed")
		return false
	}
	return applied
}

// ownedVideo 加载视频记录并校验归属；他人记录按不存在处理。
func (s *GenerationService) ownedVideo(ctx context.Context, userID, id uint) (*entity.DbVideoGeneration, error) {
	generation, err := s.repo.GetVideoGeneration(ctx, id)
	if err != nil {
		return nil, err
	}
	if generation.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return generation, nil
}
