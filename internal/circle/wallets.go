package circle

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// TokenBalance 是钱包中一种币种的余额条目。
type TokenBalance struct {
	Token struct {
		ID       string `json:"id"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	} `json:"token"`
	Amount string `json:"amount"`
}

type walletBalancesData struct {
	TokenBalances []TokenBalance `json:"tokenBalances"`
}

// WalletBalances 列出钱包的全部币种余额。
func (c *Client) WalletBalances(ctx context.Context, walletID string) ([]TokenBalance, error) {
	trimmed := strings.TrimSpace(walletID)
	if trimmed == "" {
		return nil, errors.New("wallet id is required")
	}

	var data walletBalancesData
	if err := c.doRequest(ctx, http.MethodGet, "/v1/w3s/wallets/"+url.PathEscape(trimmed)+"/balances", nil, nil, &data); err != nil {
		return nil, err
	}
	return data.TokenBalances, nil
}

// USDCBalance 在余额条目中定位 USDC 并返回该条目。
func FindUSDCBalance(balances []TokenBalance) (TokenBalance, bool) {
	for _, balance := range balances {
		if strings.EqualFold(balance.Token.Symbol, "USDC") {
			return balance, true
		}
	}
	return TokenBalance{}, false
}

// Wallet 是托管方返回的钱包描述。
type Wallet struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	Blockchain string `json:"blockchain"`
	State      string `json:"state"`
}

type createWalletsRequest struct {
	IdempotencyKey         string   `json:"idempotencyKey"`
	WalletSetID            string   `json:"walletSetId"`
	Blockchains            []string `json:"blockchains"`
	Count                  int      `json:"count"`
	EntitySecretCiphertext string   `json:"entitySecretCiphertext"`
}

type createWalletsData struct {
	Wallets []Wallet `json:"wallets"`
}

// CreateWallet 在指定链上创建一个开发者托管钱包。
func (c *Client) CreateWallet(ctx context.Context, walletSetID, blockchain string) (*Wallet, error) {
	if strings.TrimSpace(walletSetID) == "" {
		return nil, errors.New("wallet set id is required")
	}
	if strings.TrimSpace(blockchain) == "" {
		return nil, errors.New("blockchain is required")
	}

	ciphertext, err := c.entitySecretCiphertext(ctx)
	if err != nil {
		return nil, err
	}

	body := createWalletsRequest{
		IdempotencyKey:         uuid.NewString(),
		WalletSetID:            strings.TrimSpace(walletSetID),
		Blockchains:            []string{strings.TrimSpace(blockchain)},
		Count:                  1,
		EntitySecretCiphertext: ciphertext,
	}

	var data createWalletsData
	if err := c.doRequest(ctx, http.MethodPost, "/v1/w3s/developer/wallets", nil, body, &data); err != nil {
		return nil, err
	}
	if len(data.Wallets) == 0 {
		return nil, errors.New("circle returned no wallets")
	}
	return &data.Wallets[0], nil
}
