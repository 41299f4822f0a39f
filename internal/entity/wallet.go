package entity

import "time"

// DbWallet 与 Profile 1:1，保存托管方钱包标识。
// 余额不落库，始终从托管方实时查询。
type DbWallet struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ProfileID      uint       `gorm:"column:profile_id;uniqueIndex;not null" json:"profile_id"`
	Profile        *DbProfile `gorm:"foreignKey:ProfileID" json:"-"`
	CircleWalletID string     `gorm:"column:circle_wallet_id;type:varchar(255);not null" json:"circle_wallet_id"`
	Address        string     `gorm:"column:address;type:varchar(255)" json:"address"`
	Blockchain     string     `gorm:"column:blockchain;type:varchar(64)" json:"blockchain"`
}

// TableName 指定表名。
func (DbWallet) TableName() string {
	return "wallets"
}

// WalletBalanceResponse 返回钱包的 USDC 余额。
type WalletBalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Address  string `json:"address"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
}

// WalletTransferRequest 是面向仪表盘的直接转账请求。
type WalletTransferRequest struct {
	Amount      string `json:"amount" binding:"required"`
	ProjectName string `json:"project_name" binding:"required"`
	ModelTag    string `json:"model_tag"`
}

// WalletTransferResponse 返回托管方的交易标识。
type WalletTransferResponse struct {
	TransactionID string `json:"transaction_id"`
	ProjectID     uint   `json:"project_id"`
}

// RampSessionRequest 创建 USDC 买入/卖出通道会话。
type RampSessionRequest struct {
	Mode   string `json:"mode" binding:"required"` // buy | sell
	Amount string `json:"amount"`
}

// RampSessionResponse 返回通道会话跳转信息。
type RampSessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// TreasuryTransaction 是托管方的一笔入账交易。
type TreasuryTransaction struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	Amount     string    `json:"amount"`
	SourceID   string    `json:"source_id"`
	CreateDate time.Time `json:"create_date"`
}

// TreasuryTransactionsResponse 列出平台金库钱包的入账交易。
type TreasuryTransactionsResponse struct {
	Transactions []TreasuryTransaction `json:"transactions"`
}
