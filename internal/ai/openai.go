package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
)

// OpenAI 走 OpenAI 协议的对话与图像生成客户端。
type OpenAI struct {
	apiKey  string
	baseURL string

	httpClient *http.Client
}

func NewOpenAI(cfg config.Config) (*OpenAI, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, errors.New("openai api key is not configured")
	}
	return &OpenAI{
		apiKey:  cfg.OpenAIAPIKey,
		baseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		// 图像生成较慢，流式对话不设超时
		httpClient: &http.Client{},
	}, nil
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type oaChatRequest struct {
	Model         string           `json:"model"`
	Messages      []oaMessage      `json:"messages"`
	Stream        bool             `json:"stream"`
	StreamOptions *oaStreamOptions `json:"stream_options,omitempty"`
}

type oaDelta struct {
	Content string `json:"content"`
}
type oaChoice struct {
	Delta        oaDelta `json:"delta"`
	FinishReason string  `json:"finish_reason"`
	Index        int     `json:"index"`
}
type oaStreamChunk struct {
	Choices []oaChoice `json:"choices"`
	Usage   *ChatUsage `json:"usage"`
}

// StreamChat 发起流式对话，把每个增量交给 handler，并返回汇总文本与用量。
func (o *OpenAI) StreamChat(ctx context.Context, model string, messages []ChatMessage, handler StreamHandler) (*ChatResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages are required")
	}

	payload := oaChatRequest{
		Model:         model,
		Stream:        true,
		StreamOptions: &oaStreamOptions{IncludeUsage: true},
	}
	for _, message := range messages {
		payload.Messages = append(payload.Messages, oaMessage{Role: message.Role, Content: message.Content})
	}

	bs, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logger := vendorLogger(ctx, "openai", model)
	logger.WithField("message_cnt", len(messages)).Info("chat stream start")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		logger.WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"body":   logSnippet(buf.String()),
		}).Error("openai chat stream failed")
		return nil, fmt.Errorf("openai http %d: %s", resp.StatusCode, buf.String())
	}

	result := &ChatResult{}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk oaStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			result.Usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		result.Text += delta
		if handler != nil {
			if err := handler(delta); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"text_len":          len(result.Text),
		"prompt_tokens":     result.Usage.PromptTokens,
		"completion_tokens": result.Usage.CompletionTokens,
	}).Info("chat stream end")

	if strings.TrimSpace(result.Text) == "" {
		return nil, errors.New("no content in streamed response")
	}
	return result, nil
}

type oaImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size,omitempty"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type oaImageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage 同步生成一张图片，返回 data URL 或厂商下载地址。
func (o *OpenAI) GenerateImage(ctx context.Context, model, prompt, size string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is required")
	}

	payload := oaImageRequest{
		Model:  model,
		Prompt: prompt,
		Size:   strings.TrimSpace(size),
		N:      1,
	}
	// gpt-image-1 固定返回 b64_json，老接口需要显式指定
	if !strings.HasPrefix(model, "gpt-image") {
		payload.ResponseFormat = "b64_json"
	}

	bs, _ := json.Marshal(payload)
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, o.baseURL+"/v1/images/generations", bytes.NewReader(bs))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logger := vendorLogger(ctx, "openai", model)
	logger.WithFields(map[string]interface{}{
		"prompt_preview": logSnippet(prompt),
		"size":           payload.Size,
	}).Info("image generation start")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		logger.WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"body":   logSnippet(buf.String()),
		}).Error("openai image generation failed")
		return "", fmt.Errorf("openai http %d: %s", resp.StatusCode, buf.String())
	}

	var decoded oaImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return "", errors.New("no image in response")
	}

	item := decoded.Data[0]
	if item.B64JSON != "" {
		return "data:image/png;base64," + item.B64JSON, nil
	}
	if item.URL != "" {
		return item.URL, nil
	}
	return "", errors.New("image response has neither url nor b64_json")
}
