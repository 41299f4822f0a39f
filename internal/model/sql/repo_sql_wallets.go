package sql

import (
	"context"
	"fmt"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"gorm.io/gorm"
)

// CreateWallet inserts a wallet row linked to a profile.
func (r *GormRepository) CreateWallet(ctx context.Context, wallet *entity.DbWallet) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if wallet == nil {
		return fmt.Errorf("wallet is nil")
	}
	return r.db.WithContext(ctx).Create(wallet).Error
}

// GetWalletByProfileID retrieves the wallet linked to a profile.
func (r *GormRepository) GetWalletByProfileID(ctx context.Context, profileID uint) (*entity.DbWallet, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if profileID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var wallet entity.DbWallet
	if err := r.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetWalletByUserID resolves user → profile → wallet in one query.
func (r *GormRepository) GetWalletByUserID(ctx context.Context, userID uint) (*entity.DbWallet, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var wallet entity.DbWallet
	err := r.db.WithContext(ctx).
		Joins("JOIN profiles ON profiles.id = wallets.profile_id").
		Where("profiles.user_id = ?", userID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreateAiProject inserts a billing ledger row. Ledger rows are never updated.
func (r *GormRepository) CreateAiProject(ctx context.Context, project *entity.DbAiProject) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if project == nil {
		return fmt.Errorf("project is nil")
	}
	return r.db.WithContext(ctx).Create(project).Error
}

// CountAiProjectsByWallet counts billing rows for a wallet. 配额按钱包统计。
func (r *GormRepository) CountAiProjectsByWallet(ctx context.Context, walletID uint) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	if walletID == 0 {
		return 0, fmt.Errorf("invalid wallet id")
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.DbAiProject{}).Where("wallet_id = ?", walletID).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListAiProjects retrieves paginated billing rows.
func (r *GormRepository) ListAiProjects(ctx context.Context, params *entity.AiProjectQuery) ([]entity.DbAiProject, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbAiProject{})
	if params != nil && !params.IncludeAll {
		query = query.Where("wallet_id = ?", params.WalletID)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, nil, err
	}

	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
	}
	page, pageSize, offset := applyPagination(base)

	var projects []entity.DbAiProject
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&projects).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(totalCount, page, pageSize)
	return projects, meta, nil
}
