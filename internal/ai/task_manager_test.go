package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedPoller struct {
	tasks []AsyncTask
	calls int
}

func (p *scriptedPoller) Poll(ctx context.Context, taskID string) (*AsyncTask, error) {
	index := p.calls
	if index >= len(p.tasks) {
		index = len(p.tasks) - 1
	}
	p.calls++
	task := p.tasks[index]
	return &task, nil
}

func fastPollConfig(maxAttempts int) PollConfig {
	return PollConfig{Interval: time.Millisecond, MaxAttempts: maxAttempts}
}

func TestWaitForTaskSucceeds(t *testing.T) {
	poller := &scriptedPoller{tasks: []AsyncTask{
		{Status: TaskStatusPending},
		{Status: TaskStatusRunning},
		{Status: TaskStatusSucceeded, Result: &TaskResult{MediaURLs: []string{"https://cdn.example.com/a.glb"}}},
	}}

	result, err := WaitForTask(context.Background(), poller, "task-1", fastPollConfig(10))
	if err != nil {
		t.Fatalf("WaitForTask 报错: %v", err)
	}
	if len(result.MediaURLs) != 1 || result.MediaURLs[0] != "https://cdn.example.com/a.glb" {
		t.Errorf("结果不符: %+v", result)
	}
	if poller.calls != 3 {
		t.Errorf("轮询次数 = %d, 期望 3", poller.calls)
	}
}

func TestWaitForTaskFailure(t *testing.T) {
	wantErr := errors.New("render exploded")
	poller := &scriptedPoller{tasks: []AsyncTask{
		{Status: TaskStatusFailed, Error: wantErr},
	}}

	_, err := WaitForTask(context.Background(), poller, "task-1", fastPollConfig(10))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, 期望厂商错误透传", err)
	}
}

func TestWaitForTaskMaxAttempts(t *testing.T) {
	poller := &scriptedPoller{tasks: []AsyncTask{{Status: TaskStatusRunning}}}

	_, err := WaitForTask(context.Background(), poller, "task-1", fastPollConfig(3))
	if err == nil {
		t.Fatal("超过最大轮询次数应当报错")
	}
	if poller.calls != 3 {
		t.Errorf("轮询次数 = %d, 期望 3", poller.calls)
	}
}

func TestWaitForTaskContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller := &scriptedPoller{tasks: []AsyncTask{{Status: TaskStatusRunning}}}
	_, err := WaitForTask(ctx, poller, "task-1", fastPollConfig(100))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, 期望 context.Canceled", err)
	}
}

func TestWaitForTaskEmptyID(t *testing.T) {
	if _, err := WaitForTask(context.Background(), &scriptedPoller{tasks: []AsyncTask{{}}}, "", fastPollConfig(1)); err == nil {
		t.Fatal("空任务 ID 应当报错")
	}
}

func TestMapTaskStatus(t *testing.T) {
	tests := []struct {
		input string
		want  TaskStatus
	}{
		{"PENDING", TaskStatusPending},
		{"queued", TaskStatusPending},
		{"IN_PROGRESS", TaskStatusRunning},
		{"TASK_STATUS_PROCESSING", TaskStatusRunning},
		{"SUCCEEDED", TaskStatusSucceeded},
		{"TASK_STATUS_SUCCEED", TaskStatusSucceeded},
		{"FAILED", TaskStatusFailed},
		{"expired", TaskStatusFailed},
		{"CANCELED", TaskStatusCancelled},
		{"something_new", TaskStatusRunning},
	}

	for _, tt := range tests {
		if got := MapTaskStatus(tt.input); got != tt.want {
			t.Errorf("MapTaskStatus(%q) = %q, 期望 %q", tt.input, got, tt.want)
		}
	}
}
