package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const downloadTimeout = 60 * time.Second

// DownloadMedia 拉取厂商返回的媒体 URL，返回内容与推断的文件后缀。
// 结果可能较大（视频），调用方负责落到对象存储。
func DownloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(mediaURL)
	if trimmed == "" {
		return nil, "", fmt.Errorf("empty media url")
	}
	if strings.HasPrefix(trimmed, "data:") {
		return DecodeMediaPayload(trimmed)
	}

	reqCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, trimmed, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create media request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download media http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read media body: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("media payload empty")
	}

	ext := ExtensionFromMime(resp.Header.Get("Content-Type"))
	if ext == "" {
		ext = ExtensionFromMime(http.DetectContentType(data))
	}
	if ext == "" {
		ext = "bin"
	}
	return data, ext, nil
}
