package entity

import "time"

// 视频任务状态机：queued → processing → succeeded|error。
const (
	VideoStatusQueued     = "queued"
	VideoStatusProcessing = "processing"
	VideoStatusSucceeded  = "succeeded"
	VideoStatusError      = "error"
)

// IsTerminalVideoStatus 判断状态是否为终态。
func IsTerminalVideoStatus(status string) bool {
	return status == VideoStatusSucceeded || status == VideoStatusError
}

// DbImageGeneration 保存一次图像生成及其存储对象路径。
type DbImageGeneration struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID   uint    `gorm:"column:user_id;index;not null" json:"user_id"`
	User     *DbUser `gorm:"foreignKey:UserID" json:"-"`
	Prompt   string  `gorm:"column:prompt;type:text" json:"prompt"`
	Provider string  `gorm:"column:provider;type:varchar(64)" json:"provider"`
	ModelTag string  `gorm:"column:model_tag;type:varchar(255)" json:"model_tag"`
	Size     string  `gorm:"column:size;type:varchar(64)" json:"size"`

	ObjectPath string `gorm:"column:object_path;type:varchar(512)" json:"object_path"`
}

// TableName 指定表名。
func (DbImageGeneration) TableName() string {
	return "image_generations"
}

// DbModel3dGeneration 保存一次 3D 模型生成，输出可能有多个文件（glb、缩略图等）。
type DbModel3dGeneration struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID      uint        `gorm:"column:user_id;index;not null" json:"user_id"`
	Prompt      string      `gorm:"column:prompt;type:text" json:"prompt"`
	InputImage  string      `gorm:"column:input_image;type:varchar(512)" json:"input_image"`
	Provider    string      `gorm:"column:provider;type:varchar(64)" json:"provider"`
	ModelTag    string      `gorm:"column:model_tag;type:varchar(255)" json:"model_tag"`
	TaskID      string      `gorm:"column:task_id;type:varchar(255)" json:"task_id"`
	ObjectPaths StringArray `gorm:"column:object_paths;type:json" json:"object_paths"`
}

// TableName 指定表名。
func (DbModel3dGeneration) TableName() string {
	return "model3d_generations"
}

// DbVideoGeneration 保存一次图生视频任务。行创建于扣费之后、任务提交之时，
// 之后由轮询端点推进到终态；终态迁移只发生一次。
type DbVideoGeneration struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID     uint   `gorm:"column:user_id;index;not null" json:"user_id"`
	Prompt     string `gorm:"column:prompt;type:text" json:"prompt"`
	InputImage string `gorm:"column:input_image;type:varchar(512)" json:"input_image"`
	Provider   string `gorm:"column:provider;type:varchar(64)" json:"provider"`
	ModelTag   string `gorm:"column:model_tag;type:varchar(255)" json:"model_tag"`

	TaskID       string `gorm:"column:task_id;type:varchar(255);index" json:"task_id"`
	Status       string `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	ObjectPath   string `gorm:"column:object_path;type:varchar(512)" json:"object_path"`
	ErrorMessage string `gorm:"column:error_message;type:text" json:"error_message"`
}

// TableName 指定表名。
func (DbVideoGeneration) TableName() string {
	return "video_generations"
}

type ImageGenerateRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	ModelTag string `json:"model_tag"`
	Size     string `json:"size"`
}

type Model3dGenerateRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"` // URL 或 base64；与 Prompt 至少有一个
}

type VideoGenerateRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Image    string `json:"image" binding:"required"`
	ModelTag string `json:"model_tag"`
}

// GenerationItem 是生成记录的通用响应表示。
type GenerationItem struct {
	ID           uint      `json:"id"`
	Prompt       string    `json:"prompt"`
	Provider     string    `json:"provider"`
	ModelTag     string    `json:"model_tag"`
	Status       string    `json:"status,omitempty"`
	URL          string    `json:"url,omitempty"`
	URLs         []string  `json:"urls,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type GenerationListResponse struct {
	Items []GenerationItem `json:"items"`
	Meta  *Meta            `json:"meta"`
}

// GenerationQuery supports listing generation rows with pagination.
type GenerationQuery struct {
	BaseParams
	UserID     uint `json:"-" form:"-" query:"-"`
	IncludeAll bool `json:"-" form:"-" query:"-"`
}
