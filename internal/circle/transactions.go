package circle

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FeeLevelMedium 是平台扣费固定使用的手续费档位。
const FeeLevelMedium = "MEDIUM"

// TransferRequest 描述一笔从用户钱包到目标地址的转账。
type TransferRequest struct {
	WalletID           string
	TokenID            string
	DestinationAddress string
	Amount             string
	// IdempotencyKey 为空时自动生成。金融操作不做重试，
	// 幂等键保证网络层重复提交不会造成双重扣费。
	IdempotencyKey string
}

type createTransferRequest struct {
	IdempotencyKey         string   `json:"idempotencyKey"`
	WalletID               string   `json:"walletId"`
	TokenID                string   `json:"tokenId"`
	DestinationAddress     string   `json:"destinationAddress"`
	Amounts                []string `json:"amounts"`
	FeeLevel               string   `json:"feeLevel"`
	EntitySecretCiphertext string   `json:"entitySecretCiphertext"`
}

// Transaction 是托管方的交易描述。
type Transaction struct {
	ID            string    `json:"id"`
	State         string    `json:"state"`
	Amounts       []string  `json:"amounts"`
	SourceAddress string    `json:"sourceAddress"`
	WalletID      string    `json:"walletId"`
	CreateDate    time.Time `json:"createDate"`
}

type createTransferData struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// CreateTransfer 提交一笔开发者托管转账，返回托管方交易 ID。
func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest) (*Transaction, error) {
	if strings.TrimSpace(req.WalletID) == "" {
		return nil, errors.New("wallet id is required")
	}
	if strings.TrimSpace(req.TokenID) == "" {
		return nil, errors.New("token id is required")
	}
	if strings.TrimSpace(req.DestinationAddress) == "" {
		return nil, errors.New("destination address is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, errors.New("amount is required")
	}

	ciphertext, err := c.entitySecretCiphertext(ctx)
	if err != nil {
		return nil, err
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	body := createTransferRequest{
		IdempotencyKey:         idempotencyKey,
		WalletID:               strings.TrimSpace(req.WalletID),
		TokenID:                strings.TrimSpace(req.TokenID),
		DestinationAddress:     strings.TrimSpace(req.DestinationAddress),
		Amounts:                []string{strings.TrimSpace(req.Amount)},
		FeeLevel:               FeeLevelMedium,
		EntitySecretCiphertext: ciphertext,
	}

	var data createTransferData
	if err := c.doRequest(ctx, http.MethodPost, "/v1/w3s/developer/transactions/transfer", nil, body, &data); err != nil {
		return nil, err
	}
	return &Transaction{ID: data.ID, State: data.State}, nil
}

type listTransactionsData struct {
	Transactions []Transaction `json:"transactions"`
}

// ListTransactions 列出某个钱包（例如平台金库）的交易。
func (c *Client) ListTransactions(ctx context.Context, walletID string) ([]Transaction, error) {
	trimmed := strings.TrimSpace(walletID)
	if trimmed == "" {
		return nil, errors.New("wallet id is required")
	}

	query := url.Values{}
	query.Set("walletIds", trimmed)

	var data listTransactionsData
	if err := c.doRequest(ctx, http.MethodGet, "/v1/w3s/transactions", query, nil, &data); err != nil {
		return nil, err
	}
	return data.Transactions, nil
}
