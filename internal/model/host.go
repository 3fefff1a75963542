package model

import "time"

// 以下表由宿主文档管理系统维护, 本模块只读取或做最小更新

// UserModel 用户
type UserModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Email     string    `gorm:"type:varchar(255)"`
	Role      string    `gorm:"type:varchar(32);not null;index"` // admin/director/manager/employee
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// UserSessionModel 用户会话记录, Duration 单位为秒
type UserSessionModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	UserID    string    `gorm:"type:varchar(64);not null;index"`
	StartedAt time.Time `gorm:"not null"`
	Duration  int64     `gorm:"not null;default:0"`
}

// TableName 指定表名
func (UserSessionModel) TableName() string {
	return "user_sessions"
}

// DocumentModel 文档
type DocumentModel struct {
	ID         string `gorm:"primaryKey;type:varchar(64)"`
	Title      string `gorm:"type:varchar(255);not null"`
	Archived   bool   `gorm:"not null;default:false;index"`
	ArchivedAt *time.Time
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (DocumentModel) TableName() string {
	return "documents"
}
