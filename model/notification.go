package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 通知类型
const (
	NotifTypeLike           = "like"
	NotifTypeComment        = "comment"
	NotifTypeFollow         = "follow"
	NotifTypeFollowRequest  = "follow-request"
	NotifTypeMessage        = "message"
	NotifTypeMessageRequest = "message-request"
	NotifTypeMention        = "mention"
	NotifTypeRetweet        = "retweet"
	NotifTypeTransaction    = "transaction"
)

// Notification 通知表
// 来源引用按类型分列存储（tagged union）：与 Type 匹配的那一列被设置，
// 其余为 NULL，避免字符串 entity_id 的跨类型误查
type Notification struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID  `json:"recipient_id" gorm:"type:uuid;not null;index"`
	ActorID     uuid.UUID  `json:"actor_id" gorm:"type:uuid;not null;index"`
	Type        string     `json:"type" gorm:"type:varchar(20);not null"`
	Content     string     `json:"content" gorm:"type:text"`
	IsRead      bool       `json:"is_read" gorm:"not null;default:false"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`

	// 按类型分列的来源引用
	PostID           *uuid.UUID `json:"post_id,omitempty" gorm:"type:uuid"`            // like / retweet / mention
	CommentID        *uuid.UUID `json:"comment_id,omitempty" gorm:"type:uuid"`         // comment
	FollowRequestID  *uuid.UUID `json:"follow_request_id,omitempty" gorm:"type:uuid"`  // follow-request
	MessageID        *uuid.UUID `json:"message_id,omitempty" gorm:"type:uuid"`         // message
	MessageRequestID *uuid.UUID `json:"message_request_id,omitempty" gorm:"type:uuid"` // message-request
	TipID            *uuid.UUID `json:"tip_id,omitempty" gorm:"type:uuid"`             // transaction
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// EntityID 按通知类型解析来源引用
// follow 类型没有独立的来源对象，返回 nil
func (n *Notification) EntityID() *uuid.UUID {
	switch n.Type {
	case NotifTypeLike, NotifTypeRetweet, NotifTypeMention:
		return n.PostID
	case NotifTypeComment:
		return n.CommentID
	case NotifTypeFollowRequest:
		return n.FollowRequestID
	case NotifTypeMessage:
		return n.MessageID
	case NotifTypeMessageRequest:
		return n.MessageRequestID
	case NotifTypeTransaction:
		return n.TipID
	default:
		return nil
	}
}

// NotificationPayload WebSocket 推送载荷
type NotificationPayload struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	ActorID     uuid.UUID  `json:"actor_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	Content     string     `json:"content,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Payload 构造推送载荷
func (n *Notification) Payload() NotificationPayload {
	return NotificationPayload{
		ID:          n.ID,
		Type:        n.Type,
		ActorID:     n.ActorID,
		RecipientID: n.RecipientID,
		EntityID:    n.EntityID(),
		Content:     n.Content,
		CreatedAt:   n.CreatedAt,
	}
}
