package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"gorm.io/gorm"
)

// CheckQuota 解析 用户 → 档案 → 钱包，并按钱包统计已计费生成数。
// 没有钱包的用户（新注册、演示账户）走无条件的默认配额，而不是报错。
func (s *Service) CheckQuota(ctx context.Context, userID uint) (entity.DemoLimitResponse, error) {
	if s == nil || s.repo == nil {
		return entity.DemoLimitResponse{}, errors.New("billing service not initialised")
	}

	wallet, err := s.repo.GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.DemoLimitResponse{
				CanGenerate: s.limit > 0,
				Remaining:   s.limit,
			}, nil
		}
		return entity.DemoLimitResponse{}, fmt.Errorf("resolve wallet: %w", err)
	}

	return s.quotaForWallet(ctx, wallet.ID)
}

func (s *Service) quotaForWallet(ctx context.Context, walletID uint) (entity.DemoLimitResponse, error) {
	count, err := s.repo.CountAiProjectsByWallet(ctx, walletID)
	if err != nil {
		return entity.DemoLimitResponse{}, fmt.Errorf("count billed generations: %w", err)
	}

	remaining := s.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return entity.DemoLimitResponse{
		CanGenerate: remaining > 0,
		Remaining:   remaining,
	}, nil
}
