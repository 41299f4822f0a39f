package sql

import (
	"context"
	"fmt"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"gorm.io/gorm"
)

func scopeGenerationQuery(query *gorm.DB, params *entity.GenerationQuery) *gorm.DB {
	if params != nil && !params.IncludeAll && params.UserID > 0 {
		query = query.Where("user_id = ?", params.UserID)
	}
	return query
}

// CreateImageGeneration inserts an image generation row.
func (r *GormRepository) CreateImageGeneration(ctx context.Context, gen *entity.DbImageGeneration) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if gen == nil {
		return fmt.Errorf("generation is nil")
	}
	return r.db.WithContext(ctx).Create(gen).Error
}

// GetImageGeneration retrieves an image generation row by ID.
func (r *GormRepository) GetImageGeneration(ctx context.Context, id uint) (*entity.DbImageGeneration, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var gen entity.DbImageGeneration
	if err := r.db.WithContext(ctx).First(&gen, id).Error; err != nil {
		return nil, err
	}
	return &gen, nil
}

// ListImageGenerations retrieves paginated image generation rows.
func (r *GormRepository) ListImageGenerations(ctx context.Context, params *entity.GenerationQuery) ([]entity.DbImageGeneration, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := scopeGenerationQuery(r.db.WithContext(ctx).Model(&entity.DbImageGeneration{}), params)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, nil, err
	}

	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
	}
	page, pageSize, offset := applyPagination(base)

	var gens []entity.DbImageGeneration
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&gens).Error; err != nil {
		return nil, nil, err
	}

	return gens, r.calculatePagination(totalCount, page, pageSize), nil
}

// DeleteImageGeneration removes an image generation row by ID.
func (r *GormRepository) DeleteImageGeneration(ctx context.Context, id uint) error {
	return r.deleteByID(ctx, &entity.DbImageGeneration{}, id)
}

// CreateModel3dGeneration inserts a 3D generation row.
func (r *GormRepository) CreateModel3dGeneration(ctx context.Context, gen *entity.DbModel3dGeneration) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if gen == nil {
		return fmt.Errorf("generation is nil")
	}
	return r.db.WithContext(ctx).Create(gen).Error
}

// GetModel3dGeneration retrieves a 3D generation row by ID.
func (r *GormRepository) GetModel3dGeneration(ctx context.Context, id uint) (*entity.DbModel3dGeneration, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var gen entity.DbModel3dGeneration
	if err := r.db.WithContext(ctx).First(&gen, id).Error; err != nil {
		return nil, err
	}
	return &gen, nil
}

// ListModel3dGenerations retrieves paginated 3D generation rows.
func (r *GormRepository) ListModel3dGenerations(ctx context.Context, params *entity.GenerationQuery) ([]entity.DbModel3dGeneration, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := scopeGenerationQuery(r.db.WithContext(ctx).Model(&entity.DbModel3dGeneration{}), params)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, nil, err
	}

	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
	}
	page, pageSize, offset := applyPagination(base)

	var gens []entity.DbModel3dGeneration
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&gens).Error; err != nil {
		return nil, nil, err
	}

	return gens, r.calculatePagination(totalCount, page, pageSize), nil
}

// DeleteModel3dGeneration removes a 3D generation row by ID.
func (r *GormRepository) DeleteModel3dGeneration(ctx context.Context, id uint) error {
	return r.deleteByID(ctx, &entity.DbModel3dGeneration{}, id)
}

// CreateVideoGeneration inserts a video generation row.
func (r *GormRepository) CreateVideoGeneration(ctx context.Context, gen *entity.DbVideoGeneration) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if gen == nil {
		return fmt.Errorf("generation is nil")
	}
	return r.db.WithContext(ctx).Create(gen).Error
}

// GetVideoGeneration retrieves a video generation row by ID.
func (r *GormRepository) GetVideoGeneration(ctx context.Context, id uint) (*entity.DbVideoGeneration, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var gen entity.DbVideoGeneration
	if err := r.db.WithContext(ctx).First(&gen, id).Error; err != nil {
		return nil, err
	}
	return &gen, nil
}

// ListVideoGenerations retrieves paginated video generation rows.
func (r *GormRepository) ListVideoGenerations(ctx context.Context, params *entity.GenerationQuery) ([]entity.DbVideoGeneration, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := scopeGenerationQuery(r.db.WithContext(ctx).Model(&entity.DbVideoGeneration{}), params)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, nil, err
	}

	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
	}
	page, pageSize, offset := applyPagination(base)

	var gens []entity.DbVideoGeneration
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&gens).Error; err != nil {
		return nil, nil, err
	}

	return gens, r.calculatePagination(totalCount, page, pageSize), nil
}

// DeleteVideoGeneration removes a video generation row by ID.
func (r *GormRepository) DeleteVideoGeneration(ctx context.Context, id uint) error {
	return r.deleteByID(ctx, &entity.DbVideoGeneration{}, id)
}

// TransitionVideoGeneration applies updates only while the row is still in a
// non-terminal status, so a task reaches its terminal state exactly once.
func (r *GormRepository) TransitionVideoGeneration(ctx context.Context, id uint, updates map[string]interface{}) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return false, fmt.Errorf("invalid video generation id")
	}
	if len(updates) == 0 {
		return false, fmt.Errorf("no updates provided")
	}

	result := r.db.WithContext(ctx).
		Model(&entity.DbVideoGeneration{}).
		Where("id = ? AND status IN ?", id, []string{entity.VideoStatusQueued, entity.VideoStatusProcessing}).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormRepository) deleteByID(ctx context.Context, value interface{}, id uint) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid id")
	}
	result := r.db.WithContext(ctx).Delete(value, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
