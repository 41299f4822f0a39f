package entity

import "time"

// DbAiProject 是计费台账：每次计费动作一行，关联托管方交易。
// 只插入，从不更新；配额按 wallet_id 统计此表行数。
type DbAiProject struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Name    string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	AiModel string `gorm:"column:ai_model;type:varchar(255)" json:"ai_model"`

	WalletID uint      `gorm:"column:wallet_id;index;not null" json:"wallet_id"`
	Wallet   *DbWallet `gorm:"foreignKey:WalletID" json:"-"`

	// 扣费被跳过（价格为 0）时为空。
	CircleTransactionID string `gorm:"column:circle_transaction_id;type:varchar(255)" json:"circle_transaction_id"`
}

// TableName 指定表名。
func (DbAiProject) TableName() string {
	return "ai_projects"
}

// AiProjectQuery supports listing billing records with pagination.
type AiProjectQuery struct {
	BaseParams
	WalletID   uint `json:"-" form:"-" query:"-"`
	IncludeAll bool `json:"-" form:"-" query:"-"`
}

// AiProjectListResponse is the response for listing billing records.
type AiProjectListResponse struct {
	Projects []DbAiProject `json:"projects"`
	Meta     *Meta         `json:"meta"`
}

// DemoLimitResponse 是配额检查的结果。
type DemoLimitResponse struct {
	CanGenerate bool `json:"can_generate"`
	Remaining   int  `json:"remaining"`
}
