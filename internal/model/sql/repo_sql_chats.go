package sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"

	"gorm.io/gorm"
)

// CreateChat inserts a new chat container.
func (r *GormRepository) CreateChat(ctx context.Context, chat *entity.DbChat) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if chat == nil {
		return fmt.Errorf("chat is nil")
	}
	return r.db.WithContext(ctx).Create(chat).Error
}

// GetChat retrieves a single chat by ID.
func (r *GormRepository) GetChat(ctx context.Context, id uint) (*entity.DbChat, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var chat entity.DbChat
	if err := r.db.WithContext(ctx).First(&chat, id).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChats retrieves a user's chats, optionally filtered by type.
func (r *GormRepository) ListChats(ctx context.Context, userID uint, chatType string) ([]entity.DbChat, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if trimmed := strings.TrimSpace(chatType); trimmed != "" {
		query = query.Where("chat_type = ?", trimmed)
	}

	var chats []entity.DbChat
	if err := query.Order("updated_at DESC, id DESC").Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

// DeleteChat removes a chat and cascades to its generations.
func (r *GormRepository) DeleteChat(ctx context.Context, id uint) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid chat id")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&entity.DbChatGeneration{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.DbChat{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CreateChatGeneration inserts a completed chat turn.
func (r *GormRepository) CreateChatGeneration(ctx context.Context, gen *entity.DbChatGeneration) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if gen == nil {
		return fmt.Errorf("chat generation is nil")
	}
	return r.db.WithContext(ctx).Create(gen).Error
}

// ListChatGenerations retrieves a chat's turns in order.
func (r *GormRepository) ListChatGenerations(ctx context.Context, chatID uint) ([]entity.DbChatGeneration, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("invalid chat id")
	}

	var gens []entity.DbChatGeneration
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at ASC, id ASC").Find(&gens).Error; err != nil {
		return nil, err
	}
	return gens, nil
}
