package entity

import "time"

// DbChat 是有标题的会话容器，按序持有聊天生成记录。
type DbChat struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   uint    `gorm:"column:user_id;index;not null" json:"user_id"`
	User     *DbUser `gorm:"foreignKey:UserID" json:"-"`
	Title    string  `gorm:"column:title;type:varchar(255);not null" json:"title"`
	ChatType string  `gorm:"column:chat_type;type:varchar(64);index" json:"chat_type"`
}

// TableName 指定表名。
func (DbChat) TableName() string {
	return "chats"
}

// DbChatGeneration 是一轮聊天：提示词与模型回复，以及 token 和成本核算。
// 由客户端在流式响应结束后通过 postchatgen 补写。
type DbChatGeneration struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ChatID uint    `gorm:"column:chat_id;index;not null" json:"chat_id"`
	Chat   *DbChat `gorm:"foreignKey:ChatID" json:"-"`
	UserID uint    `gorm:"column:user_id;index;not null" json:"user_id"`

	Prompt   string `gorm:"column:prompt;type:text" json:"prompt"`
	Response string `gorm:"column:response;type:text" json:"response"`
	Provider string `gorm:"column:provider;type:varchar(64)" json:"provider"`
	ModelTag string `gorm:"column:model_tag;type:varchar(255)" json:"model_tag"`

	PromptTokens     int    `gorm:"column:prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int    `gorm:"column:completion_tokens" json:"completion_tokens"`
	CostUSDC         string `gorm:"column:cost_usdc;type:varchar(64)" json:"cost_usdc"`
}

// TableName 指定表名。
func (DbChatGeneration) TableName() string {
	return "chat_generations"
}

type ChatCreateRequest struct {
	Title    string `json:"title" binding:"required"`
	ChatType string `json:"chat_type"`
}

type ChatResponse struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	ChatType string    `json:"chat_type,omitempty"`
	Created  time.Time `json:"created_at"`
}

type ChatGenerateRequest struct {
	ChatID   uint   `json:"chat_id" binding:"required"`
	Prompt   string `json:"prompt" binding:"required"`
	ModelTag string `json:"model_tag"`
}

// PostChatGenerationRequest 持久化一轮已完成的流式对话。
type PostChatGenerationRequest struct {
	ChatID           uint   `json:"chat_id" binding:"required"`
	Prompt           string `json:"prompt" binding:"required"`
	Response         string `json:"response"`
	ModelTag         string `json:"model_tag"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

type ChatListResponse struct {
	Chats []ChatResponse `json:"chats"`
}

type ChatGenerationListResponse struct {
	Generations []DbChatGeneration `json:"generations"`
}
