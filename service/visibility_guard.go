package service

import (
	"fmt"

	"orbit_social/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VisibilityGuard 可见性过滤层
// 纯读谓词，不产生任何副作用：所有写路径在入口处调用 CanInteract，
// 所有列表读路径在返回前用 ShouldHide 过滤
type VisibilityGuard struct {
	db *gorm.DB
}

func NewVisibilityGuard(db *gorm.DB) *VisibilityGuard {
	return &VisibilityGuard{db: db}
}

// IsBlocked 任一方向存在拉黑即为 true
func (g *VisibilityGuard) IsBlocked(a, b uuid.UUID) (bool, error) {
	var count int64
	err := g.db.Model(&model.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return count > 0, nil
}

// IsMuted muter 是否静音了 target（单向）
func (g *VisibilityGuard) IsMuted(muterID, targetID uuid.UUID) (bool, error) {
	var count int64
	err := g.db.Model(&model.Mute{}).
		Where("muter_id = ? AND muted_id = ?", muterID, targetID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check mute: %w", err)
	}
	return count > 0, nil
}

// CanInteract 双方之间是否允许互动（无拉黑）
func (g *VisibilityGuard) CanInteract(actorID, targetID uuid.UUID) (bool, error) {
	blocked, err := g.IsBlocked(actorID, targetID)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}

// ShouldHide viewer 的视角里是否应该隐藏 author 的内容
func (g *VisibilityGuard) ShouldHide(viewerID, authorID uuid.UUID) (bool, error) {
	blocked, err := g.IsBlocked(viewerID, authorID)
	if err != nil {
		return false, err
	}
	if blocked {
		return true, nil
	}
	return g.IsMuted(viewerID, authorID)
}

// FilterUserIDs 过滤掉 viewer 不可见的用户，保持原有顺序
// 列表类读路径（粉丝列表、点赞列表等）统一走这里
func (g *VisibilityGuard) FilterUserIDs(viewerID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	visible := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		hide, err := g.ShouldHide(viewerID, id)
		if err != nil {
			return nil, err
		}
		if !hide {
			visible = append(visible, id)
		}
	}
	return visible, nil
}
