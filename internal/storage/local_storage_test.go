package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorageSaveAndDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage 报错: %v", err)
	}

	objectPath, err := store.Save(context.Background(), []byte("video-bytes"), SaveOptions{
		Category:  "videos",
		BaseName:  "user-7-abc123",
		Extension: "mp4",
	})
	if err != nil {
		t.Fatalf("Save 报错: %v", err)
	}
	if !strings.HasPrefix(objectPath, "videos/") {
		t.Errorf("对象路径应以分类开头: %q", objectPath)
	}
	if !strings.HasSuffix(objectPath, ".mp4") {
		t.Errorf("对象路径应保留扩展名: %q", objectPath)
	}

	absPath := filepath.Join(store.LocalBaseDir(), filepath.FromSlash(objectPath))
	if _, err := os.Stat(absPath); err != nil {
		t.Fatalf("文件未落盘: %v", err)
	}

	if err := store.Delete(context.Background(), objectPath); err != nil {
		t.Fatalf("Delete 报错: %v", err)
	}
	if _, err := os.Stat(absPath); !os.IsNotExist(err) {
		t.Error("删除后文件仍存在")
	}

	// 幂等删除
	if err := store.Delete(context.Background(), objectPath); err != nil {
		t.Errorf("重复删除不应报错: %v", err)
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage 报错: %v", err)
	}

	if err := store.Delete(context.Background(), "../outside.txt"); err == nil {
		t.Error("目录穿越应当被拒绝")
	}
}

func TestBuildObjectPath(t *testing.T) {
	got := buildObjectPath("Videos", "User 7 ABC", "MP4")
	if !strings.HasPrefix(got, "videos/") {
		t.Errorf("分类应当小写化: %q", got)
	}
	if !strings.HasSuffix(got, "user-7-abc.mp4") {
		t.Errorf("文件名应当规整: %q", got)
	}

	got = buildObjectPath("", "", "")
	if !strings.HasPrefix(got, "misc/") || !strings.HasSuffix(got, ".bin") {
		t.Errorf("空参数应有兜底: %q", got)
	}
}
