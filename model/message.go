package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRequest 状态
const (
	MessageRequestPending  = "pending"
	MessageRequestAccepted = "accepted"
	MessageRequestRejected = "rejected"
)

// Message 私信表
type Message struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	SenderID       uuid.UUID  `json:"sender_id" gorm:"type:uuid;not null;index"`
	RecipientID    uuid.UUID  `json:"recipient_id" gorm:"type:uuid;not null;index"`
	Content        string     `json:"content" gorm:"type:text;not null"`
	NotificationID *uuid.UUID `json:"notification_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MessageRequest 私信请求表
// 双方没有任何已建立关系时，首条私信先进入请求，对方同意后才投递。
// (sender_id, recipient_id) 唯一，拒绝后再次发送重置回 pending（与关注请求一致）
type MessageRequest struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	SenderID       uuid.UUID  `json:"sender_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_msgreq_sender_recipient"`
	RecipientID    uuid.UUID  `json:"recipient_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_msgreq_sender_recipient"`
	Message        string     `json:"message" gorm:"type:text;not null"` // 暂存的首条私信内容
	Status         string     `json:"status" gorm:"type:varchar(10);not null;default:'pending'"`
	NotificationID *uuid.UUID `json:"notification_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (MessageRequest) TableName() string {
	return "message_requests"
}

func (r *MessageRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
