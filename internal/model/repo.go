package model

import (
	"context"
	"time"

	"github.com/canewton/usdc-for-ai-inference-sub001/internal/entity"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 用户与档案
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates map[string]interface{}) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	DeleteUser(ctx context.Context, id uint) error
	CountUsers(ctx context.Context) (int64, error)

	CreateProfile(ctx context.Context, profile *entity.DbProfile) error
	GetProfileByUserID(ctx context.Context, userID uint) (*entity.DbProfile, error)
	UpdateProfile(ctx context.Context, id uint, updates map[string]interface{}) error
	TouchProfile(ctx context.Context, userID uint, at time.Time) error

	// 钱包
	CreateWallet(ctx context.Context, wallet *entity.DbWallet) error
	GetWalletByProfileID(ctx context.Context, profileID uint) (*entity.DbWallet, error)
	GetWalletByUserID(ctx context.Context, userID uint) (*entity.DbWallet, error)

	// 计费台账
	CreateAiProject(ctx context.Context, project *entity.DbAiProject) error
	CountAiProjectsByWallet(ctx context.Context, walletID uint) (int64, error)
	ListAiProjects(ctx context.Context, params *entity.AiProjectQuery) ([]entity.DbAiProject, *entity.Meta, error)

	// 聊天
	CreateChat(ctx context.Context, chat *entity.DbChat) error
	GetChat(ctx context.Context, id uint) (*entity.DbChat, error)
	ListChats(ctx context.Context, userID uint, chatType string) ([]entity.DbChat, error)
	DeleteChat(ctx context.Context, id uint) error
	CreateChatGeneration(ctx context.Context, gen *entity.DbChatGeneration) error
	ListChatGenerations(ctx context.Context, chatID uint) ([]entity.DbChatGeneration, error)

	// 图像生成
	CreateImageGeneration(ctx context.Context, gen *entity.DbImageGeneration) error
	GetImageGeneration(ctx context.Context, id uint) (*entity.DbImageGeneration, error)
	ListImageGenerations(ctx context.Context, params *entity.GenerationQuery) ([]entity.DbImageGeneration, *entity.Meta, error)
	DeleteImageGeneration(ctx context.Context, id uint) error

	// 3D 模型生成
	CreateModel3dGeneration(ctx context.Context, gen *entity.DbModel3dGeneration) error
	GetModel3dGeneration(ctx context.Context, id uint) (*entity.DbModel3dGeneration, error)
	ListModel3dGenerations(ctx context.Context, params *entity.GenerationQuery) ([]entity.DbModel3dGeneration, *entity.Meta, error)
	DeleteModel3dGeneration(ctx context.Context, id uint) error

	// 视频生成
	CreateVideoGeneration(ctx context.Context, gen *entity.DbVideoGeneration) error
	GetVideoGeneration(ctx context.Context, id uint) (*entity.DbVideoGeneration, error)
	ListVideoGenerations(ctx context.Context, params *entity.GenerationQuery) ([]entity.DbVideoGeneration, *entity.Meta, error)
	DeleteVideoGeneration(ctx context.Context, id uint) error
	// TransitionVideoGeneration 仅在行仍处于非终态时应用 updates，
	// 返回是否真的发生了迁移。保证终态只进入一次。
	TransitionVideoGeneration(ctx context.Context, id uint, updates map[string]interface{}) (bool, error)
}
