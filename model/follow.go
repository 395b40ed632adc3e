package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FollowRequest 状态
const (
	FollowRequestPending  = "pending"
	FollowRequestAccepted = "accepted"
	FollowRequestDenied   = "denied"
)

// Follow 关注边表
// (follower_id, following_id) 唯一，作为并发重复关注的最终防线
type Follow struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	FollowerID     uuid.UUID  `json:"follower_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_follower_following"`
	FollowingID    uuid.UUID  `json:"following_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_follower_following"`
	NotificationID *uuid.UUID `json:"notification_id,omitempty" gorm:"type:uuid"` // 回链：取关时清理对应通知
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Follow) TableName() string {
	return "follows"
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FollowRequest 关注请求表（私密账号的关注审批）
// (requester_id, target_id) 唯一：拒绝后再次请求会把同一行重置回 pending，
// 而不是新建一行
type FollowRequest struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	RequesterID    uuid.UUID  `json:"requester_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_requester_target"`
	TargetID       uuid.UUID  `json:"target_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_requester_target"`
	Status         string     `json:"status" gorm:"type:varchar(10);not null;default:'pending'"` // 'pending' | 'accepted' | 'denied'
	NotificationID *uuid.UUID `json:"notification_id,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (FollowRequest) TableName() string {
	return "follow_requests"
}

func (r *FollowRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
