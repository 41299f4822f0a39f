package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/ai"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/billing"
	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"gorm.io/gorm"
)

// chatHistoryLimit 拼入上下文的历史轮数上限
const chatHistoryLimit = 20

// StreamChatGeneration 计费后发起一次流式对话，增量通过 handler 透传给调用方。
// 这里不落库：完整的转写由客户端在流结束后通过 postchatgen 补写，
// 服务端只保证计费与配额检查先于生成发生。
func (s *GenerationService) StreamChatGeneration(ctx context.Context, userID uint, req entity.ChatGenerateRequest, handler ai.StreamHandler) (*ai.ChatResult, error) {
	if s.openai == nil {
		return nil, errors.New("chat vendor is not configured")
	}

	chat, err := s.ownedChat(ctx, userID, req.ChatID)
	if err != nil {
		return nil, err
	}

	modelTag := strings.TrimSpace(req.ModelTag)
	if modelTag == "" {
		modelTag = DefaultChatModel
	}

	if _, err := s.billing.Charge(ctx, billing.ChargeRequest{
		UserID:      userID,
		ProjectName: chat.Title,
		ModelTag:    modelTag,
		PriceUSDC:   s.cfg.ChatPriceUSDC,
	}); err != nil {
		return nil, err
	}

	messages, err := s.chatContext(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: req.Prompt})

	return s.openai.StreamChat(ctx, modelTag, messages, handler)
}

// RecordChatGeneration 持久化一轮客户端已完成的对话（postchatgen）。
func (s *GenerationService) RecordChatGeneration(ctx context.Context, userID uint, req entity.PostChatGenerationRequest) (*entity.DbChatGeneration, error) {
	chat, err := s.ownedChat(ctx, userID, req.ChatID)
	if err != nil {
		return nil, err
	}

	modelTag := strings.TrimSpace(req.ModelTag)
	if modelTag == "" {
		modelTag = DefaultChatModel
	}

	generation := &entity.DbChatGeneration{
		ChatID:           chat.ID,
		UserID:           userID,
		Prompt:           req.Prompt,
		Response:         req.Response,
		Provider:         "openai",
		ModelTag:         modelTag,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		CostUSDC:         s.cfg.ChatPriceUSDC,
	}
	if err := s.repo.CreateChatGeneration(ctx, generation); err != nil {
		return nil, fmt.Errorf("record chat generation: %w", err)
	}
	return generation, nil
}

// ownedChat 加载会话并校验归属；他人会话按不存在处理。
func (s *GenerationService) ownedChat(ctx context.Context, userID, chatID uint) (*entity.DbChat, error) {
	chat, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return chat, nil
}

// chatContext 把历史轮次展开为消息序列，最老的在前。
func (s *GenerationService) chatContext(ctx context.Context, chatID uint) ([]ai.ChatMessage, error) {
	history, err := s.repo.ListChatGenerations(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}

	var messages []ai.ChatMessage
	for _, turn := range history {
		if strings.TrimSpace(turn.Prompt) != "" {
			messages = append(messages, ai.ChatMessage{Role: "user", Content: turn.Prompt})
		}
		if strings.TrimSpace(turn.Response) != "" {
			messages = append(messages, ai.ChatMessage{Role: "assistant", Content: turn.Response})
		}
	}
	return messages, nil
}
