package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Like 点赞表
// (user_id, post_id) 唯一：同一用户对同一帖子至多一个赞，再次点击为取消
type Like struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_like_user_post"`
	PostID         uuid.UUID  `json:"post_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_like_user_post"`
	NotificationID *uuid.UUID `json:"notification_id,omitempty" gorm:"type:uuid"` // 回链：取消点赞时删除对应通知
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Like) TableName() string {
	return "likes"
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Retweet 转发表
// (user_id, post_id) 唯一：重复转发返回业务错误而不是静默成功
type Retweet struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_retweet_user_post"`
	PostID         uuid.UUID  `json:"post_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_retweet_user_post"`
	RepostID       uuid.UUID  `json:"repost_id" gorm:"type:uuid;not null"` // 生成的转发视图行
	NotificationID *uuid.UUID `json:"notification_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Retweet) TableName() string {
	return "retweets"
}

func (r *Retweet) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Comment 评论表（追加写，不支持修改）
type Comment struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	PostID         uuid.UUID  `json:"post_id" gorm:"type:uuid;not null;index"`
	Content        string     `json:"content" gorm:"type:text;not null"`
	NotificationID *uuid.UUID `json:"notification_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Tip 打赏流水表
// 只记账，结算由外部支付服务负责
type Tip struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	SenderID       uuid.UUID  `json:"sender_id" gorm:"type:uuid;not null;index"`
	RecipientID    uuid.UUID  `json:"recipient_id" gorm:"type:uuid;not null;index"`
	PostID         *uuid.UUID `json:"post_id,omitempty" gorm:"type:uuid"` // 可为空：直接打赏用户
	Amount         int64      `json:"amount" gorm:"not null"`             // 最小货币单位
	NotificationID *uuid.UUID `json:"notification_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Tip) TableName() string {
	return "tips"
}

func (t *Tip) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
