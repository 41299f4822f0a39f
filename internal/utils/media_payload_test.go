package utils

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestSplitDataURL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantMime    string
		wantPayload string
	}{
		{name: "标准 data URL", input: "data:image/png;base64,AAAA", wantMime: "image/png", wantPayload: "AAAA"},
		{name: "裸 base64 默认 jpeg", input: "AAAA", wantMime: "image/jpeg", wantPayload: "AAAA"},
		{name: "缺少 base64 标记", input: "data:image/png,AAAA", wantMime: "image/jpeg", wantPayload: ""},
		{name: "视频类型", input: "data:video/mp4;base64,BBBB", wantMime: "video/mp4", wantPayload: "BBBB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mimeType, payload := SplitDataURL(tt.input)
			if mimeType != tt.wantMime {
				t.Errorf("mime = %q, 期望 %q", mimeType, tt.wantMime)
			}
			if payload != tt.wantPayload {
				t.Errorf("payload = %q, 期望 %q", payload, tt.wantPayload)
			}
		})
	}
}

func TestDecodeMediaPayload(t *testing.T) {
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	data, ext, err := DecodeMediaPayload("data:image/png;base64," + encoded)
	if err != nil {
		t.Fatalf("DecodeMediaPayload 报错: %v", err)
	}
	if string(data) != string(pngHeader) {
		t.Error("解码内容不一致")
	}
	if ext != "png" {
		t.Errorf("ext = %q, 期望 png", ext)
	}

	if _, _, err := DecodeMediaPayload("   "); err == nil {
		t.Error("空载荷应当报错")
	}
	if _, _, err := DecodeMediaPayload("data:image/png;base64,!!!"); err == nil {
		t.Error("非法 base64 应当报错")
	}
}

func TestEnsureDataURL(t *testing.T) {
	if got := EnsureDataURL("AAAA"); !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("裸载荷应补上前缀, got %q", got)
	}
	already := "data:image/png;base64,AAAA"
	if got := EnsureDataURL(already); got != already {
		t.Errorf("已有前缀不应改写, got %q", got)
	}
}

func TestExtensionFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", "png"},
		{"image/jpeg; charset=utf-8", "jpg"},
		{"video/mp4", "mp4"},
		{"model/gltf-binary", "glb"},
		{"application/octet-stream", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtensionFromMime(tt.mime); got != tt.want {
			t.Errorf("ExtensionFromMime(%q) = %q, 期望 %q", tt.mime, got, tt.want)
		}
	}
}
