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

// Novita 文/图生视频的异步任务客户端。
// 视频任务不在请求生命周期内等待，创建后由查询接口驱动推进。
type Novita struct {
	apiKey  string
	baseURL string

	httpClient *http.Client
}

func NewNovita(cfg config.Config) (*Novita, error) {
	if strings.TrimSpace(cfg.NovitaAPIKey) == "" {
		return nil, errors.New("novita api key is not configured")
	}
	return &Novita{
		apiKey:     cfg.NovitaAPIKey,
		baseURL:    strings.TrimRight(cfg.NovitaBaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// VideoTaskRequest 描述一次视频生成任务。
type VideoTaskRequest struct {
	Model  string
	Prompt string
	// InputImage 可选，data URL；提供时走图生视频
	InputImage string
}

type novitaPrompt struct {
	Prompt string `json:"prompt"`
	Frames int    `json:"frames"`
}

type novitaCreateTaskRequest struct {
	ModelName string         `json:"model_name"`
	Prompts   []novitaPrompt `json:"prompts,omitempty"`
	Prompt    string         `json:"prompt,omitempty"`
	ImageFile string         `json:"image_file,omitempty"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Steps     int            `json:"steps"`
}

type novitaCreateTaskResponse struct {
	TaskID string `json:"task_id"`
}

// CreateVideoTask 提交视频生成任务并返回厂商任务 ID。
func (n *Novita) CreateVideoTask(ctx context.Context, request VideoTaskRequest) (string, error) {
	if strings.TrimSpace(request.Prompt) == "" {
		return "", errors.New("prompt is required")
	}

	path := "/v3/async/txt2video"
	payload := novitaCreateTaskRequest{
		ModelName: request.Model,
		Width:     640,
		Height:    360,
		Steps:     20,
	}
	if strings.TrimSpace(request.InputImage) != "" {
		path = "/v3/async/img2video"
		payload.Prompt = request.Prompt
		payload.ImageFile = request.InputImage
	} else {
		payload.Prompts = []novitaPrompt{{Prompt: request.Prompt, Frames: 64}}
	}

	bs, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(bs))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logger := vendorLogger(ctx, "novita", request.Model)
	logger.WithFields(map[string]interface{}{
		"prompt_preview": logSnippet(request.Prompt),
		"has_image":      payload.ImageFile != "",
	}).Info("video task create")

	resp, err := n.httpClient.Do(req)
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
		}).Error("novita create task failed")
		return "", fmt.Errorf("novita http %d: %s", resp.StatusCode, buf.String())
	}

	var decoded novitaCreateTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode create task response: %w", err)
	}
	if decoded.TaskID == "" {
		return "", errors.New("novita returned empty task id")
	}

	logger.WithField("task_id", decoded.TaskID).Info("video task created")
	return decoded.TaskID, nil
}

type novitaTaskResultResponse struct {
	Task struct {
		TaskID   string  `json:"task_id"`
		Status   string  `json:"status"`
		Reason   string  `json:"reason"`
		Progress float64 `json:"progress_percent"`
	} `json:"task"`
	Videos []struct {
		VideoURL string `json:"video_url"`
	} `json:"videos"`
}

// Poll 查询视频任务的当前状态，单次查询不等待。
func (n *Novita) Poll(ctx context.Context, taskID string) (*AsyncTask, error) {
	trimmed := strings.TrimSpace(taskID)
	if trimmed == "" {
		return nil, errors.New("task ID is required")
	}

	query := url.Values{}
	query.Set("task_id", trimmed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/v3/async/task-result?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("novita http %d: %s", resp.StatusCode, buf.String())
	}

	var decoded novitaTaskResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode task result: %w", err)
	}

	task := &AsyncTask{
		ID:       decoded.Task.TaskID,
		Status:   MapTaskStatus(decoded.Task.Status),
		Progress: decoded.Task.Progress,
	}

	switch task.Status {
	case TaskStatusSucceeded:
		var urls []string
		for _, video := range decoded.Videos {
			if u := strings.TrimSpace(video.VideoURL); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			task.Status = TaskStatusFailed
			task.Error = errors.New("novita task succeeded without video urls")
			break
		}
		task.Result = &TaskResult{MediaURLs: urls}
	case TaskStatusFailed:
		message := "novita task failed"
		if decoded.Task.Reason != "" {
			message = decoded.Task.Reason
		}
		task.Error = errors.New(message)
	}

	return task, nil
}
