package ai

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// ChatMessage 是对话历史中的一条消息。
type ChatMessage struct {
	Role    string `json:"role"` // "user" | "assistant" | "system"
	Content string `json:"content"`
}

// ChatUsage 是厂商返回的 token 用量。
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatResult 是一次流式对话的汇总结果。
type ChatResult struct {
	Text  string
	Usage ChatUsage
}

// StreamHandler 在每个流式增量到达时被调用，返回错误会中断流。
type StreamHandler func(delta string) error

// TaskResult 是异步任务成功后的产物。
type TaskResult struct {
	// MediaURLs 厂商侧的产物下载地址（3D 模型的多种格式、视频文件）
	MediaURLs []string
	Text      string
}

const logSnippetLimit = 120

func vendorLogger(ctx context.Context, vendor, model string) *logrus.Entry {
	fields := logrus.Fields{
		"vendor": vendor,
	}
	if trimmedModel := strings.TrimSpace(model); trimmedModel != "" {
		fields["model"] = trimmedModel
	}

	entry := logrus.WithFields(fields)
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	return entry
}

func logSnippet(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	runes := []rune(value)
	if len(runes) <= logSnippetLimit {
		return value
	}

	return string(runes[:logSnippetLimit]) + "..."
}
