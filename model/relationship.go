package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Block 拉黑表
// 存储是单向的（只记录拉黑方的动作），效果是双向的：
// 任一方向存在拉黑即禁止互动、互相隐藏内容
type Block struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BlockerID uuid.UUID `json:"blocker_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_blocker_blocked"`
	BlockedID uuid.UUID `json:"blocked_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_blocker_blocked"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Block) TableName() string {
	return "blocks"
}

func (b *Block) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Mute 静音表
// 单向：只对静音方隐藏内容，不限制被静音方的任何互动
type Mute struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MuterID   uuid.UUID `json:"muter_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_muter_muted"`
	MutedID   uuid.UUID `json:"muted_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_muter_muted"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Mute) TableName() string {
	return "mutes"
}

func (m *Mute) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
