package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/circle"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChargeRequest 描述一次生成的计费参数。
type ChargeRequest struct {
	UserID      uint
	ProjectName string
	ModelTag    string
	// PriceUSDC 为十进制字符串，空或非正数表示本次生成免费。
	PriceUSDC string
}

// Charge 在生成开始前执行计费：检查配额、校验余额、向平台金库转账，
// 并写入一条计费台账。配额或余额不足时生成不会开始。
//
// 没有托管钱包的用户按默认配额放行且不扣费（演示模式），此时返回 nil 台账。
func (s *Service) Charge(ctx context.Context, req ChargeRequest) (*entity.DbAiProject, error) {
	wallet, err := s.repo.GetWalletByUserID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.limit <= 0 {
				return nil, ErrQuotaExceeded
			}
			return nil, nil
		}
		return nil, fmt.Errorf("resolve wallet: %w", err)
	}

	// 余额检查与转账之间不能插入同一钱包的其他扣费
	lock := s.lockWallet(wallet.ID)
	lock.Lock()
	defer lock.Unlock()

	quota, err := s.quotaForWallet(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	if !quota.CanGenerate {
		return nil, ErrQuotaExceeded
	}

	price, free := parsePrice(req.PriceUSDC)

	transactionID := ""
	if !free {
		transactionID, err = s.debit(ctx, wallet, price)
		if err != nil {
			return nil, err
		}
	}

	project := &entity.DbAiProject{
		Name:                req.ProjectName,
		AiModel:             req.ModelTag,
		WalletID:            wallet.ID,
		CircleTransactionID: transactionID,
	}
	if err := s.repo.CreateAiProject(ctx, project); err != nil {
		if transactionID != "" {
			// 链上转账已发生但台账落库失败，必须留痕供人工对账
			logrus.WithFields(logrus.Fields{
				"wallet_id":      wallet.ID,
				"transaction_id": transactionID,
				"amount":         price.String(),
			}).WithError(err).Error("usdc transfer succeeded but billing record insert failed")
		}
		return nil, fmt.Errorf("record billing: %w", err)
	}

	return project, nil
}

func parsePrice(raw string) (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, true
	}
	return price, false
}

func (s *Service) debit(ctx context.Context, wallet *entity.DbWallet, price decimal.Decimal) (string, error) {
	if s.wallets == nil {
		return "", errors.New("custody client is not configured")
	}

	balances, err := s.wallets.WalletBalances(ctx, wallet.CircleWalletID)
	if err != nil {
		return "", fmt.Errorf("query wallet balance: %w", err)
	}

	usdc, ok := circle.FindUSDCBalance(balances)
	if !ok {
		return "", ErrInsufficientFunds
	}
	available, err := decimal.NewFromString(usdc.Amount)
	if err != nil {
		return "", fmt.Errorf("parse balance %q: %w", usdc.Amount, err)
	}
	if available.LessThan(price) {
		return "", ErrInsufficientFunds
	}

	transaction, err := s.wallets.CreateTransfer(ctx, circle.TransferRequest{
		WalletID:           wallet.CircleWalletID,
		TokenID:            usdc.Token.ID,
		DestinationAddress: s.treasuryAddress,
		Amount:             price.String(),
		IdempotencyKey:     uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("transfer usdc: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"wallet_id":      wallet.ID,
		"transaction_id": transaction.ID,
		"amount":         price.String(),
	}).Info("usdc debit submitted")

	return transaction.ID, nil
}

// Transfer 执行一笔用户主动发起的转账（例如向金库充值演示积分），
// 与按次扣费共享同一把钱包锁。
func (s *Service) Transfer(ctx context.Context, userID uint, amount, destinationAddress string) (*circle.Transaction, error) {
	if s.wallets == nil {
		return nil, errors.New("custody client is not configured")
	}

	price, err := decimal.NewFromString(amount)
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("invalid transfer amount %q", amount)
	}

	wallet, err := s.repo.GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoWalletForTransfer
		}
		return nil, fmt.Errorf("resolve wallet: %w", err)
	}

	destination := destinationAddress
	if destination == "" {
		destination = s.treasuryAddress
	}

	lock := s.lockWallet(wallet.ID)
	lock.Lock()
	defer lock.Unlock()

	balances, err := s.wallets.WalletBalances(ctx, wallet.CircleWalletID)
	if err != nil {
		return nil, fmt.Errorf("query wallet balance: %w", err)
	}
	usdc, ok := circle.FindUSDCBalance(balances)
	if !ok {
		return nil, ErrInsufficientFunds
	}
	available, err := decimal.NewFromString(usdc.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", usdc.Amount, err)
	}
	if available.LessThan(price) {
		return nil, ErrInsufficientFunds
	}

	return s.wallets.CreateTransfer(ctx, circle.TransferRequest{
		WalletID:           wallet.CircleWalletID,
		TokenID:            usdc.Token.ID,
		DestinationAddress: destination,
		Amount:             price.String(),
		IdempotencyKey:     uuid.NewString(),
	})
}
