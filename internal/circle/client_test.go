package circle

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.Config{
		CircleAPIKey:       "test-api-key",
		CircleAPIBaseURL:   server.URL,
		CircleEntitySecret: strings.Repeat("ab", 32),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func publicKeyPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestWalletBalances(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/w3s/wallets/wallet-1/balances" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-api-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Write([]byte(`{"data":{"tokenBalances":[
			{"token":{"id":"tok-eth","symbol":"ETH","decimals":18},"amount":"0.4"},
			{"token":{"id":"tok-usdc","symbol":"USDC","decimals":6},"amount":"12.5"}
		]}}`))
	}))

	balances, err := client.WalletBalances(context.Background(), "wallet-1")
	if err != nil {
		t.Fatalf("wallet balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(balances))
	}

	usdc, ok := FindUSDCBalance(balances)
	if !ok {
		t.Fatal("expected a USDC balance")
	}
	if usdc.Amount != "12.5" || usdc.Token.ID != "tok-usdc" {
		t.Fatalf("unexpected usdc balance: %+v", usdc)
	}
}

func TestCreateTransfer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	var captured struct {
		IdempotencyKey         string   `json:"idempotencyKey"`
		WalletID               string   `json:"walletId"`
		TokenID                string   `json:"tokenId"`
		DestinationAddress     string   `json:"destinationAddress"`
		Amounts                []string `json:"amounts"`
		FeeLevel               string   `json:"feeLevel"`
		EntitySecretCiphertext string   `json:"entitySecretCiphertext"`
	}

	mux := http.NewServeMux()
	publicKeyCalls := 0
	mux.HandleFunc("/v1/w3s/config/entity/publicKey", func(w http.ResponseWriter, r *http.Request) {
		publicKeyCalls++
		body, _ := json.Marshal(map[string]any{"data": map[string]string{"publicKey": publicKeyPEM(t, key)}})
		w.Write(body)
	})
	mux.HandleFunc("/v1/w3s/developer/transactions/transfer", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode transfer request: %v", err)
		}
		w.Write([]byte(`{"data":{"id":"txn-1","state":"INITIATED"}}`))
	})

	client, _ := newTestClient(t, mux)

	transaction, err := client.CreateTransfer(context.Background(), TransferRequest{
		WalletID:           "wallet-1",
		TokenID:            "tok-usdc",
		DestinationAddress: "0xabc",
		Amount:             "0.05",
		IdempotencyKey:     "fixed-key",
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if transaction.ID != "txn-1" || transaction.State != "INITIATED" {
		t.Fatalf("unexpected transaction: %+v", transaction)
	}

	if captured.IdempotencyKey != "fixed-key" {
		t.Errorf("expected idempotency key to be passed through, got %q", captured.IdempotencyKey)
	}
	if captured.FeeLevel != FeeLevelMedium {
		t.Errorf("expected fee level %s, got %s", FeeLevelMedium, captured.FeeLevel)
	}
	if len(captured.Amounts) != 1 || captured.Amounts[0] != "0.05" {
		t.Errorf("unexpected amounts: %v", captured.Amounts)
	}
	if captured.EntitySecretCiphertext == "" {
		t.Error("expected an entity secret ciphertext")
	}

	// 公钥只取一次，之后走缓存
	if _, err := client.CreateTransfer(context.Background(), TransferRequest{
		WalletID:           "wallet-1",
		TokenID:            "tok-usdc",
		DestinationAddress: "0xabc",
		Amount:             "0.10",
	}); err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	if publicKeyCalls != 1 {
		t.Errorf("expected 1 public key fetch, got %d", publicKeyCalls)
	}
	if captured.IdempotencyKey == "" {
		t.Error("expected a generated idempotency key")
	}
}

func TestDoRequestErrorEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":155101,"message":"invalid wallet id"}`))
	}))

	_, err := client.WalletBalances(context.Background(), "bad-wallet")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "invalid wallet id") {
		t.Errorf("expected envelope message in error, got %v", err)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(config.Config{}); err == nil {
		t.Fatal("expected an error without api key")
	}
}
