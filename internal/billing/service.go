package billing

import (
	"context"
	"errors"
	"sync"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/circle"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"
)

var (
	// ErrQuotaExceeded 钱包的演示配额已用完
	ErrQuotaExceeded = errors.New("generation quota exceeded")
	// ErrInsufficientFunds 钱包的 USDC 余额不足以支付本次生成
	ErrInsufficientFunds = errors.New("insufficient USDC balance")
	// ErrNoWalletForTransfer 主动转账要求用户已有托管钱包
	ErrNoWalletForTransfer = errors.New("user has no wallet")
)

// WalletAPI 计费所需的托管方操作子集，便于测试替换。
type WalletAPI interface {
	WalletBalances(ctx context.Context, walletID string) ([]circle.TokenBalance, error)
	CreateTransfer(ctx context.Context, req circle.TransferRequest) (*circle.Transaction, error)
}

// Ledger 计费所需的存储操作子集。
type Ledger interface {
	GetWalletByUserID(ctx context.Context, userID uint) (*entity.DbWallet, error)
	CountAiProjectsByWallet(ctx context.Context, walletID uint) (int64, error)
	CreateAiProject(ctx context.Context, project *entity.DbAiProject) error
}

// Service 负责配额读取与按次扣费，扣费串行化到钱包粒度。
type Service struct {
	repo            Ledger
	wallets         WalletAPI
	treasuryAddress string
	limit           int

	mu          sync.Mutex
	walletLocks map[uint]*sync.Mutex
}

func NewService(repo Ledger, wallets WalletAPI, treasuryAddress string, demoLimit int) *Service {
	return &Service{
		repo:            repo,
		wallets:         wallets,
		treasuryAddress: treasuryAddress,
		limit:           demoLimit,
		walletLocks:     make(map[uint]*sync.Mutex),
	}
}

// lockWallet 返回该钱包专属的互斥锁，余额检查与转账必须在同一把锁内完成。
func (s *Service) lockWallet(walletID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.walletLocks[walletID]
	if !ok {
		lock = &sync.Mutex{}
		s.walletLocks[walletID] = lock
	}
	return lock
}
