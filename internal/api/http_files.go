package api

import (
	"fmt"
	"strings"
)

func (h *HTTPHandler) publicURL(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	base := h.storagePublicBase
	if base == "" {
		base = "/files"
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(trimmed, "/"))
}

func (h *HTTPHandler) publicURLs(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	urls := make([]string, 0, len(paths))
	for _, path := range paths {
		if url := h.publicURL(path); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}
