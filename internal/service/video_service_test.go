package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/ai"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/billing"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/model"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/storage"

	"gorm.io/gorm"
)

// fakeVideoRepo 只实现视频相关方法，其余操作继承自空接口，调用即 panic。
type fakeVideoRepo struct {
	model.Repository
	video       entity.DbVideoGeneration
	transitions int
}

func (f *fakeVideoRepo) GetVideoGeneration(ctx context.Context, id uint) (*entity.DbVideoGeneration, error) {
	if id != f.video.ID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := f.video
	return &copied, nil
}

func (f *fakeVideoRepo) TransitionVideoGeneration(ctx context.Context, id uint, updates map[string]interface{}) (bool, error) {
	if id != f.video.ID || entity.IsTerminalVideoStatus(f.video.Status) {
		return false, nil
	}
	f.transitions++
	if status, ok := updates["status"].(string); ok {
		f.video.Status = status
	}
	if objectPath, ok := updates["object_path"].(string); ok {
		f.video.ObjectPath = objectPath
	}
	if message, ok := updates["error_message"].(string); ok {
		f.video.ErrorMessage = message
	}
	return true, nil
}

type fakeVideoVendor struct {
	task      *ai.AsyncTask
	pollErr   error
	pollCalls int
}

func (f *fakeVideoVendor) CreateVideoTask(ctx context.Context, request ai.VideoTaskRequest) (string, error) {
	return "vt-1", nil
}

func (f *fakeVideoVendor) Poll(ctx context.Context, taskID string) (*ai.AsyncTask, error) {
	f.pollCalls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	return f.task, nil
}

type nopBiller struct{}

func (nopBiller) CheckQuota(ctx context.Context, userID uint) (entity.DemoLimitResponse, error) {
	return entity.DemoLimitResponse{CanGenerate: true, Remaining: 5}, nil
}

func (nopBiller) Charge(ctx context.Context, req billing.ChargeRequest) (*entity.DbAiProject, error) {
	return nil, nil
}

func newVideoService(t *testing.T, repo model.Repository, vendor VideoVendor) *GenerationService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage 报错: %v", err)
	}
	cfg := config.Config{VideoTaskTimeoutMinutes: 30, VideoPriceUSDC: "0.50"}
	return NewGenerationService(repo, store, nopBiller{}, cfg, nil, nil, nil, vendor)
}

func queuedVideo(createdAt time.Time) entity.DbVideoGeneration {
	return entity.DbVideoGeneration{
		ID:        1,
		CreatedAt: createdAt,
		UserID:    7,
		TaskID:    "vt-1",
		Status:    entity.VideoStatusQueued,
	}
}

func TestCheckVideoTerminalRowSkipsVendor(t *testing.T) {
	repo := &fakeVideoRepo{video: queuedVideo(time.Now())}
	repo.video.Status = entity.VideoStatusSucceeded
	repo.video.ObjectPath = "videos/2026/08/30/user-7-abc.mp4"
	vendor := &fakeVideoVendor{}

	service := newVideoService(t, repo, vendor)
	got, err := service.CheckVideoGeneration(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("CheckVideoGeneration 报错: %v", err)
	}
	if got.Status != entity.VideoStatusSucceeded {
		t.Errorf("status = %q", got.Status)
	}
	if vendor.pollCalls != 0 {
		t.Error("终态的行不应再查询厂商")
	}
	if repo.transitions != 0 {
		t.Error("终态的行不应再迁移")
	}
}

func TestCheckVideoStillProcessing(t *testing.T) {
	repo := &fakeVideoRepo{video: queuedVideo(time.Now())}
	vendor := &fakeVideoVendor{task: &ai.AsyncTask{Status: ai.TaskStatusRunning}}

	service := newVideoService(t, repo, vendor)
	got, err := service.CheckVideoGeneration(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("CheckVideoGeneration 报错: %v", err)
	}
	if got.Status != entity.VideoStatusProcessing {
		t.Errorf("status = %q, 期望 processing", got.Status)
	}
	if vendor.pollCalls != 1 {
		t.Errorf("pollCalls = %d, 期望 1", vendor.pollCalls)
	}
}

func TestCheckVideoSuccessTransitionsOnce(t *testing.T) {
	mediaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("video-bytes"))
	}))
	defer mediaServer.Close()

	repo := &fakeVideoRepo{video: queuedVideo(time.Now())}
	vendor := &fakeVideoVendor{task: &ai.AsyncTask{
		Status: ai.TaskStatusSucceeded,
		Result: &ai.TaskResult{MediaURLs: []string{mediaServer.URL + "/v.mp4"}},
	}}

	service := newVideoService(t, repo, vendor)
	got, err := service.CheckVideoGeneration(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("CheckVideoGeneration 报错: %v", err)
	}
	if got.Status != entity.VideoStatusSucceeded {
		t.Fatalf("status = %q, 期望 succeeded", got.Status)
	}
	if got.ObjectPath == "" {
		t.Error("成功后应有对象路径")
	}
	if repo.transitions != 1 {
		t.Errorf("transitions = %d, 期望 1", repo.transitions)
	}

	// 再查一次：终态原样返回，不再触发厂商查询或迁移
	again, err := service.CheckVideoGeneration(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("二次查询报错: %v", err)
	}
	if again.ObjectPath != got.ObjectPath {
		t.Error("二次查询不应改变对象路径")
	}
	if vendor.pollCalls != 1 || repo.transitions != 1 {
		t.Errorf("pollCalls = %d, transitions = %d, 期望均为 1", vendor.pollCalls, repo.transitions)
	}
}

func TestCheckVideoVendorFailure(t *testing.T) {
	repo := &fakeVideoRepo{video: queuedVideo(time.Now())}
	vendor := &fakeVideoVendor{task: &ai.AsyncTask{
		Status: ai.TaskStatusFailed,
		Error:  errors.New("nsfw content"),
	}}

	service := newVideoService(t, repo, vendor)
	got, err := service.CheckVideoGeneration(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("CheckVideoGeneration 报错: %v", err)
	}
	if got.Status != entity.VideoStatusError {
		t.Errorf("status = %q, 期望 error", got.Status)
	}
	if got.ErrorMessage != "nsfw content" {
		t.Errorf("error_message = %q", got.ErrorMessage)
	}
}

func TestCheckVideoPollErrorKeepsRow(t *testing.T) {
	repo := &fakeVideoRepo{video: queuedVideo(time.Now())}
	vendor := &fakeVideoVendor{pollErr: errors.New("connection refused")}

	service := newVideoService(t, repo, vendor)
	got, err := service.CheckVideoGeneration(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("CheckVideoGeneration 报错: %v", err)
	}
	if got.Status != entity.VideoStatusQueued {
		t.Errorf("查询失败行应保持原状, status = %q", got.Status)
	}
	if repo.transitions != 0 {
		t.Error("查询失败不应迁移")
	}
}

func TestCheckVideoServerSideTimeout(t *testing.T) {
	repo := &fakeVideoRepo{video: queuedVideo(time.Now().Add(-time.Hour))}
	vendor := &fakeVideoVendor{task: &ai.AsyncTask{Status: ai.TaskStatusRunning}}

	service := newVideoService(t, repo, vendor)
	got, err := service.CheckVideoGeneration(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("CheckVideoGeneration 报错: %v", err)
	}
	if got.Status != entity.VideoStatusError {
		t.Errorf("status = %q, 期望 error", got.Status)
	}
	if vendor.pollCalls != 0 {
		t.Error("超时判定不应再查询厂商")
	}
}

func TestCheckVideoOwnershipMismatch(t *testing.T) {
	repo := &fakeVideoRepo{video: queuedVideo(time.Now())}
	vendor := &fakeVideoVendor{}

	service := newVideoService(t, repo, vendor)
	_, err := service.CheckVideoGeneration(context.Background(), 99, 1)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, 期望按不存在处理", err)
	}
}
