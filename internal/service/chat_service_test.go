package service

import (
	"context"
	"testing"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/ai"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/config"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/model"

	"gorm.io/gorm"
)

// fakeChatRepo 只实现聊天相关方法，其余操作继承自空接口，调用即 panic。
type fakeChatRepo struct {
	model.Repository
	chat     entity.DbChat
	history  []entity.DbChatGeneration
	inserted []entity.DbChatGeneration
}

func (f *fakeChatRepo) GetChat(ctx context.Context, id uint) (*entity.DbChat, error) {
	if id != f.chat.ID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := f.chat
	return &copied, nil
}

func (f *fakeChatRepo) ListChatGenerations(ctx context.Context, chatID uint) ([]entity.DbChatGeneration, error) {
	return f.history, nil
}

func (f *fakeChatRepo) CreateChatGeneration(ctx context.Context, gen *entity.DbChatGeneration) error {
	gen.ID = uint(len(f.inserted) + 1)
	f.inserted = append(f.inserted, *gen)
	return nil
}

type fakeChatVendor struct {
	messages []ai.ChatMessage
	result   ai.ChatResult
}

func (f *fakeChatVendor) StreamChat(ctx context.Context, model string, messages []ai.ChatMessage, handler ai.StreamHandler) (*ai.ChatResult, error) {
	f.messages = messages
	if handler != nil {
		if err := handler(f.result.Text); err != nil {
			return nil, err
		}
	}
	copied := f.result
	return &copied, nil
}

func (f *fakeChatVendor) GenerateImage(ctx context.Context, model, prompt, size string) (string, error) {
	return "", nil
}

func newChatService(repo model.Repository, vendor ChatVendor) *GenerationService {
	cfg := config.Config{ChatPriceUSDC: "0.05"}
	return NewGenerationService(repo, nil, nopBiller{}, cfg, vendor, nil, nil, nil)
}

func TestStreamChatGenerationDoesNotPersist(t *testing.T) {
	repo := &fakeChatRepo{chat: entity.DbChat{ID: 7, UserID: 3, Title: "对话"}}
	vendor := &fakeChatVendor{result: ai.ChatResult{
		Text:  "回复内容",
		Usage: ai.ChatUsage{PromptTokens: 4, CompletionTokens: 9},
	}}
	svc := newChatService(repo, vendor)

	var streamed string
	result, err := svc.StreamChatGeneration(context.Background(), 3, entity.ChatGenerateRequest{
		ChatID: 7,
		Prompt: "你好",
	}, func(delta string) error {
		streamed += delta
		return nil
	})
	if err != nil {
		t.Fatalf("StreamChatGeneration 报错: %v", err)
	}
	if result.Text != "回复内容" || streamed != "回复内容" {
		t.Fatalf("流式结果不符: result=%q streamed=%q", result.Text, streamed)
	}

	// 转写由客户端通过 postchatgen 补写，流式路径不落库
	if len(repo.inserted) != 0 {
		t.Fatalf("期望流式路径不插入记录, 实际插入 %d 条", len(repo.inserted))
	}
}

func TestRecordChatGenerationIsSinglePersistStep(t *testing.T) {
	repo := &fakeChatRepo{chat: entity.DbChat{ID: 7, UserID: 3, Title: "对话"}}
	vendor := &fakeChatVendor{result: ai.ChatResult{Text: "回复内容"}}
	svc := newChatService(repo, vendor)

	if _, err := svc.StreamChatGeneration(context.Background(), 3, entity.ChatGenerateRequest{
		ChatID: 7,
		Prompt: "你好",
	}, func(string) error { return nil }); err != nil {
		t.Fatalf("StreamChatGeneration 报错: %v", err)
	}

	gen, err := svc.RecordChatGeneration(context.Background(), 3, entity.PostChatGenerationRequest{
		ChatID:           7,
		Prompt:           "你好",
		Response:         "回复内容",
		PromptTokens:     4,
		CompletionTokens: 9,
	})
	if err != nil {
		t.Fatalf("RecordChatGeneration 报错: %v", err)
	}
	if gen.Response != "回复内容" || gen.CostUSDC != "0.05" {
		t.Fatalf("记录内容不符: %+v", gen)
	}

	// 一轮计费对话对应且仅对应一条 chat_generations 行
	if len(repo.inserted) != 1 {
		t.Fatalf("期望恰好 1 条记录, 实际 %d 条", len(repo.inserted))
	}
}

func TestStreamChatGenerationIncludesHistory(t *testing.T) {
	repo := &fakeChatRepo{
		chat: entity.DbChat{ID: 7, UserID: 3, Title: "对话"},
		history: []entity.DbChatGeneration{
			{ChatID: 7, Prompt: "第一问", Response: "第一答"},
		},
	}
	vendor := &fakeChatVendor{result: ai.ChatResult{Text: "第二答"}}
	svc := newChatService(repo, vendor)

	if _, err := svc.StreamChatGeneration(context.Background(), 3, entity.ChatGenerateRequest{
		ChatID: 7,
		Prompt: "第二问",
	}, func(string) error { return nil }); err != nil {
		t.Fatalf("StreamChatGeneration 报错: %v", err)
	}

	want := []ai.ChatMessage{
		{Role: "user", Content: "第一问"},
		{Role: "assistant", Content: "第一答"},
		{Role: "user", Content: "第二问"},
	}
	if len(vendor.messages) != len(want) {
		t.Fatalf("期望 %d 条消息, 实际 %d 条", len(want), len(vendor.messages))
	}
	for i := range want {
		if vendor.messages[i] != want[i] {
			t.Fatalf("第 %d 条消息不符: %+v", i, vendor.messages[i])
		}
	}
}

func TestStreamChatGenerationForeignChat(t *testing.T) {
	repo := &fakeChatRepo{chat: entity.DbChat{ID: 7, UserID: 3}}
	svc := newChatService(repo, &fakeChatVendor{})

	_, err := svc.StreamChatGeneration(context.Background(), 99, entity.ChatGenerateRequest{
		ChatID: 7,
		Prompt: "你好",
	}, func(string) error { return nil })
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("期望 ErrRecordNotFound, 实际 %v", err)
	}
}
