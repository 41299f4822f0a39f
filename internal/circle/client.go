package circle

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"

	"github.com/sirupsen/logrus"
)

// 文档: https://developers.circle.com/w3s/reference

// Client 是 Circle 开发者托管钱包 REST API 的客户端。
type Client struct {
	apiKey       string
	entitySecret string
	baseURL      string
	httpClient   *http.Client

	mu        sync.Mutex
	publicKey *rsa.PublicKey
}

// NewClient 创建 Circle API 客户端。
func NewClient(cfg config.Config) (*Client, error) {
	if strings.TrimSpace(cfg.CircleAPIKey) == "" {
		return nil, errors.New("circle api key is not configured")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.CircleAPIBaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.circle.com"
	}

	return &Client{
		apiKey:       cfg.CircleAPIKey,
		entitySecret: strings.TrimSpace(cfg.CircleEntitySecret),
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doRequest 执行一次 API 调用并解出 data 字段。
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("circle request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"body":   string(raw),
		}).Error("circle api request failed")

		var envelope apiEnvelope
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
			return fmt.Errorf("circle http %d: %s", resp.StatusCode, envelope.Message)
		}
		return fmt.Errorf("circle http %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return errors.New("circle response missing data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

type entityPublicKeyData struct {
	PublicKey string `json:"publicKey"`
}

// entityPublicKey 获取并缓存实体公钥。
func (c *Client) entityPublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.publicKey != nil {
		return c.publicKey, nil
	}

	var data entityPublicKeyData
	if err := c.doRequest(ctx, http.MethodGet, "/v1/w3s/config/entity/publicKey", nil, nil, &data); err != nil {
		return nil, err
	}

	key, err := parseRSAPublicKey(data.PublicKey)
	if err != nil {
		return nil, err
	}
	c.publicKey = key
	return key, nil
}

func parseRSAPublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemText)))
	if block == nil {
		return nil, errors.New("invalid entity public key pem")
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse entity public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("entity public key is not RSA")
	}
	return key, nil
}

// entitySecretCiphertext 为每次写操作生成新的实体密钥密文。
// Circle 要求密文不可复用，因此每次请求现算。
func (c *Client) entitySecretCiphertext(ctx context.Context) (string, error) {
	if c.entitySecret == "" {
		return "", errors.New("circle entity secret is not configured")
	}

	secret, err := hex.DecodeString(c.entitySecret)
	if err != nil {
		return "", fmt.Errorf("decode entity secret: %w", err)
	}

	key, err := c.entityPublicKey(ctx)
	if err != nil {
		return "", err
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, key, secret, nil)
	if err != nil {
		return "", fmt.Errorf("encrypt entity secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
