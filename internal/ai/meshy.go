package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
)

// Meshy 图生 3D 模型的异步任务客户端，实现 TaskPoller。
type Meshy struct {
	apiKey  string
	baseURL string

	httpClient *http.Client
}

func NewMeshy(cfg config.Config) (*Meshy, error) {
	if strings.TrimSpace(cfg.MeshyAPIKey) == "" {
		return nil, errors.New("meshy api key is not configured")
	}
	return &Meshy{
		apiKey:     cfg.MeshyAPIKey,
		baseURL:    strings.TrimRight(cfg.MeshyBaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type meshyCreateTaskRequest struct {
	ImageURL  string `json:"image_url"`
	EnablePBR bool   `json:"enable_pbr"`
	AIModel   string `json:"ai_model,omitempty"`
}

type meshyCreateTaskResponse struct {
	Result string `json:"result"`
}

// CreateImageTo3DTask 提交一个图生 3D 任务，imageURL 支持 data URL。
func (m *Meshy) CreateImageTo3DTask(ctx context.Context, imageURL, model string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", errors.New("input image is required")
	}

	payload := meshyCreateTaskRequest{
		ImageURL:  imageURL,
		EnablePBR: true,
		AIModel:   strings.TrimSpace(model),
	}

	bs, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/openapi/v1/image-to-3d", bytes.NewReader(bs))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logger := vendorLogger(ctx, "meshy", model)
	logger.Info("image-to-3d task create")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		logger.WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"body":   logSnippet(buf.String()),
		}).Error("meshy create task failed")
		return "", fmt.Errorf("meshy http %d: %s", resp.StatusCode, buf.String())
	}

	var decoded meshyCreateTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode create task response: %w", err)
	}
	if decoded.Result == "" {
		return "", errors.New("meshy returned empty task id")
	}

	logger.WithField("task_id", decoded.Result).Info("image-to-3d task created")
	return decoded.Result, nil
}

type meshyTaskResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Progress  float64           `json:"progress"`
	ModelURLs map[string]string `json:"model_urls"`
	TaskError *struct {
		Message string `json:"message"`
	} `json:"task_error"`
}

// 产物格式的固定遍历顺序，保证结果稳定
var meshyModelFormats = []string{"glb", "fbx", "obj", "usdz"}

// Poll 查询任务当前状态，供 WaitForTask 轮询。
func (m *Meshy) Poll(ctx context.Context, taskID string) (*AsyncTask, error) {
	trimmed := strings.TrimSpace(taskID)
	if trimmed == "" {
		return nil, errors.New("task ID is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/openapi/v1/image-to-3d/"+url.PathEscape(trimmed), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("meshy http %d: %s", resp.StatusCode, buf.String())
	}

	var decoded meshyTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode task response: %w", err)
	}

	task := &AsyncTask{
		ID:       decoded.ID,
		Status:   MapTaskStatus(decoded.Status),
		Progress: decoded.Progress,
	}

	switch task.Status {
	case TaskStatusSucceeded:
		var urls []string
		for _, format := range meshyModelFormats {
			if u := strings.TrimSpace(decoded.ModelURLs[format]); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			task.Status = TaskStatusFailed
			task.Error = errors.New("meshy task succeeded without model urls")
			break
		}
		task.Result = &TaskResult{MediaURLs: urls}
	case TaskStatusFailed:
		message := "meshy task failed"
		if decoded.TaskError != nil && decoded.TaskError.Message != "" {
			message = decoded.TaskError.Message
		}
		task.Error = errors.New(message)
	}

	return task, nil
}
