package service

import (
	"fmt"
	"log"
	"time"

	"orbit_social/model"
	"orbit_social/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Broadcaster 接口用于向在线用户推送通知（由 WebSocket Hub 实现）
type Broadcaster interface {
	EmitToUser(userID uuid.UUID, event string, payload interface{}) error
	IsUserOnline(userID uuid.UUID) bool
}

// NotificationService 通知引擎
// 负责：事件 -> 接收人映射之后的抑制判断、落库、回链、交给 Broadcaster 推送
type NotificationService struct {
	db          *gorm.DB
	guard       *VisibilityGuard
	broadcaster Broadcaster
}

func NewNotificationService(db *gorm.DB, guard *VisibilityGuard) *NotificationService {
	return &NotificationService{db: db, guard: guard}
}

// SetBroadcaster 设置推送器（用于依赖注入，测试时可注入 fake）
func (s *NotificationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Publish 创建并推送一条通知
// 抑制规则：
//  1. 自己触发的事件不通知自己
//  2. 接收方拉黑或静音了发起方时不通知（拉黑是双向判定，通知绝不能穿透拉黑）
//
// 被抑制时返回 (nil, nil)，调用方据此跳过回链写入。
// 推送失败不影响落库结果：通知已持久化、离线可查
func (s *NotificationService) Publish(n *model.Notification) (*model.Notification, error) {
	if n.ActorID == n.RecipientID {
		return nil, nil
	}

	blocked, err := s.guard.IsBlocked(n.RecipientID, n.ActorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check block before notify: %w", err)
	}
	if blocked {
		return nil, nil
	}

	muted, err := s.guard.IsMuted(n.RecipientID, n.ActorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check mute before notify: %w", err)
	}
	if muted {
		return nil, nil
	}

	n.IsRead = false
	if err := s.db.Create(n).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	// 推送与触发请求解耦：不阻塞、不回传失败
	go s.push(n)

	return n, nil
}

// NotifyMentions 为一批被提及的用户生成 mention 通知
// 提及解析（@xxx）由上游完成，这里只接收解析好的用户 ID 列表；
// 单个接收人失败不影响其他人
func (s *NotificationService) NotifyMentions(actorID, postID uuid.UUID, mentionedIDs []uuid.UUID, content string) {
	for _, recipientID := range mentionedIDs {
		n := &model.Notification{
			RecipientID: recipientID,
			ActorID:     actorID,
			Type:        model.NotifTypeMention,
			Content:     content,
			PostID:      &postID,
		}
		if _, err := s.Publish(n); err != nil {
			log.Printf("[ERROR] Failed to notify mention for user %s: %v", recipientID, err)
		}
	}
}

// push 推送给在线用户（仅在线时才发，离线用户下次轮询能查到）
func (s *NotificationService) push(n *model.Notification) {
	if s.broadcaster == nil || !s.broadcaster.IsUserOnline(n.RecipientID) {
		return
	}
	if err := s.broadcaster.EmitToUser(n.RecipientID, "notification", n.Payload()); err != nil {
		log.Printf("[WARN] Failed to push notification %s to user %s: %v", n.ID, n.RecipientID, err)
	}
}

// BackLink 把通知 ID 写回来源行的 notification_id 列
// 失败只记日志：通知已经落库，宁可留下无回链的孤儿通知，
// 也不能悄悄丢掉一条通知
func (s *NotificationService) BackLink(sourceModel interface{}, sourceID uuid.UUID, n *model.Notification) {
	if n == nil {
		return
	}
	err := s.db.Model(sourceModel).
		Where("id = ?", sourceID).
		Update("notification_id", n.ID).Error
	if err != nil {
		log.Printf("[WARN] Failed to back-link notification %s to source %s: %v", n.ID, sourceID, err)
	}
}

// DeleteByID 删除一条通知（来源行被撤销时的回链清理）
func (s *NotificationService) DeleteByID(notificationID *uuid.UUID) {
	if notificationID == nil {
		return
	}
	if err := s.db.Delete(&model.Notification{}, "id = ?", *notificationID).Error; err != nil {
		log.Printf("[ERROR] Failed to delete notification %s: %v", *notificationID, err)
	}
}

// MarkReadByID 标记一条通知为已读（请求被处理后的回链清理）
func (s *NotificationService) MarkReadByID(notificationID *uuid.UUID) {
	if notificationID == nil {
		return
	}
	now := time.Now()
	err := s.db.Model(&model.Notification{}).
		Where("id = ?", *notificationID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
	if err != nil {
		log.Printf("[ERROR] Failed to mark notification %s read: %v", *notificationID, err)
	}
}

// GetNotifications 获取通知列表（分页）
func (s *NotificationService) GetNotifications(userID uuid.UUID, limit, offset int, unreadOnly bool) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := s.db.Where("recipient_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []model.Notification
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	return notifications, nil
}

// GetUnreadCount 获取未读通知数量
func (s *NotificationService) GetUnreadCount(userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAllAsRead 标记所有通知为已读
func (s *NotificationService) MarkAllAsRead(userID uuid.UUID) error {
	now := time.Now()
	err := s.db.Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// DeleteNotification 用户删除自己的一条通知
func (s *NotificationService) DeleteNotification(userID, notificationID uuid.UUID) error {
	result := s.db.Where("id = ? AND recipient_id = ?", notificationID, userID).
		Delete(&model.Notification{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NotFoundError("notification not found")
	}
	return nil
}
