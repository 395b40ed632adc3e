package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post 帖子表
// 帖子内容由上游内容服务负责，core 只维护计数器和转发视图行，
// 不修改原始内容本身
type Post struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	AuthorID     uuid.UUID  `json:"author_id" gorm:"type:uuid;not null;index"`
	Content      string     `json:"content" gorm:"type:text"`
	LikeCount    int        `json:"like_count" gorm:"not null;default:0"`
	RetweetCount int        `json:"retweet_count" gorm:"not null;default:0"`
	RepostOfID   *uuid.UUID `json:"repost_of_id,omitempty" gorm:"type:uuid;index"` // 转发视图行指向原帖
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
