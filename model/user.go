package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 账号可见性
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

// User 用户表
// 用户主体由外部身份服务管理，core 只读取 privacy 字段来决定关注流程
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username  string    `json:"username" gorm:"type:varchar(50);not null;uniqueIndex"`
	Privacy   string    `json:"privacy" gorm:"type:varchar(10);not null;default:'public'"` // 'public' | 'private'
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsPrivate 是否私密账号
func (u *User) IsPrivate() bool {
	return u.Privacy == PrivacyPrivate
}
