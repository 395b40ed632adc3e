package service

import (
	"errors"
	"fmt"
	"log"

	"orbit_social/model"
	"orbit_social/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 关注结果
const (
	FollowOutcomeFollowing = "following" // 公开账号：关注边已建立
	FollowOutcomeRequested = "requested" // 私密账号：进入审批
)

// 审批决定
const (
	DecisionAccept = "accept"
	DecisionDeny   = "deny"
)

// RelationshipService 关系服务
// 管理关注 / 关注请求 / 拉黑 / 静音四类边，以及供 VisibilityGuard
// 之外的调用方使用的读谓词
type RelationshipService struct {
	db       *gorm.DB
	guard    *VisibilityGuard
	notifSvc *NotificationService
}

func NewRelationshipService(db *gorm.DB, guard *VisibilityGuard) *RelationshipService {
	return &RelationshipService{db: db, guard: guard}
}

// SetNotificationService 设置通知服务（用于依赖注入）
func (s *RelationshipService) SetNotificationService(notifSvc *NotificationService) {
	s.notifSvc = notifSvc
}

// Follow 关注用户
// 公开账号直接建边；私密账号创建（或重置）一条 pending 关注请求。
// 重复关注返回 duplicate 业务错误，关注边表的唯一约束兜底并发场景
func (s *RelationshipService) Follow(actorID, targetID uuid.UUID) (string, error) {
	if actorID == targetID {
		return "", utils.ValidationError("cannot follow yourself")
	}

	var target model.User
	if err := s.db.First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", utils.NotFoundError("target user not found")
		}
		return "", utils.TransientError("failed to load target user", err)
	}

	ok, err := s.guard.CanInteract(actorID, targetID)
	if err != nil {
		return "", utils.TransientError("failed to check visibility", err)
	}
	if !ok {
		return "", utils.BlockedError("interaction not allowed between these users")
	}

	following, err := s.IsFollowing(actorID, targetID)
	if err != nil {
		return "", utils.TransientError("failed to check existing follow", err)
	}
	if following {
		return "", utils.DuplicateError("already following this user")
	}

	if target.IsPrivate() {
		return s.requestFollow(actorID, targetID)
	}

	follow := &model.Follow{FollowerID: actorID, FollowingID: targetID}
	if err := s.db.Create(follow).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", utils.DuplicateError("already following this user")
		}
		return "", utils.TransientError("failed to create follow", err)
	}

	s.notifyFollow(follow)
	return FollowOutcomeFollowing, nil
}

// requestFollow 私密账号的关注进入审批流程
// (requester, target) 至多一行请求：pending 时复用，denied/accepted 时重置回 pending
func (s *RelationshipService) requestFollow(actorID, targetID uuid.UUID) (string, error) {
	var req model.FollowRequest
	err := s.db.Where("requester_id = ? AND target_id = ?", actorID, targetID).First(&req).Error

	switch {
	case err == nil:
		if req.Status == model.FollowRequestPending {
			// 已有待处理请求，幂等复用，不重复打扰对方
			return FollowOutcomeRequested, nil
		}
		updates := map[string]interface{}{"status": model.FollowRequestPending}
		if err := s.db.Model(&req).Updates(updates).Error; err != nil {
			return "", utils.TransientError("failed to reset follow request", err)
		}
		req.Status = model.FollowRequestPending

	case errors.Is(err, gorm.ErrRecordNotFound):
		req = model.FollowRequest{
			RequesterID: actorID,
			TargetID:    targetID,
			Status:      model.FollowRequestPending,
		}
		if err := s.db.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// 并发重复请求，另一条已经建好
				return FollowOutcomeRequested, nil
			}
			return "", utils.TransientError("failed to create follow request", err)
		}

	default:
		return "", utils.TransientError("failed to query follow request", err)
	}

	if s.notifSvc != nil {
		n, err := s.notifSvc.Publish(&model.Notification{
			RecipientID:     targetID,
			ActorID:         actorID,
			Type:            model.NotifTypeFollowRequest,
			FollowRequestID: &req.ID,
		})
		if err != nil {
			return "", fmt.Errorf("failed to notify follow request: %w", err)
		}
		s.notifSvc.BackLink(&model.FollowRequest{}, req.ID, n)
	}

	return FollowOutcomeRequested, nil
}

// notifyFollow 关注边建立后通知被关注方
func (s *RelationshipService) notifyFollow(follow *model.Follow) {
	if s.notifSvc == nil {
		return
	}
	n, err := s.notifSvc.Publish(&model.Notification{
		RecipientID: follow.FollowingID,
		ActorID:     follow.FollowerID,
		Type:        model.NotifTypeFollow,
	})
	if err != nil {
		// 关注本身已成功，通知失败不回滚
		log.Printf("[ERROR] Failed to notify follow: %v", err)
		return
	}
	s.notifSvc.BackLink(&model.Follow{}, follow.ID, n)
}

// Unfollow 取消关注
// 没有关注边时是 no-op，不报错；有边时同时清理回链的通知
func (s *RelationshipService) Unfollow(actorID, targetID uuid.UUID) error {
	var follow model.Follow
	err := s.db.Where("follower_id = ? AND following_id = ?", actorID, targetID).First(&follow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return utils.TransientError("failed to query follow", err)
	}

	if err := s.db.Delete(&follow).Error; err != nil {
		return utils.TransientError("failed to delete follow", err)
	}

	if s.notifSvc != nil {
		s.notifSvc.DeleteByID(follow.NotificationID)
	}
	return nil
}

// RespondToFollowRequest 处理关注请求
// 只有请求的目标用户可以处理；只有 pending 状态可以转换。
// accept 时建边和状态翻转在同一事务里完成——请求已接受但边没建出来
// 属于正确性 bug，不是可接受的降级
func (s *RelationshipService) RespondToFollowRequest(requestID, responderID uuid.UUID, decision string) error {
	if decision != DecisionAccept && decision != DecisionDeny {
		return utils.ValidationError("decision must be 'accept' or 'deny'")
	}

	var req model.FollowRequest
	if err := s.db.First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundError("follow request not found")
		}
		return utils.TransientError("failed to load follow request", err)
	}

	if req.TargetID != responderID {
		return utils.NotAuthorizedError("only the request target can respond")
	}
	if req.Status != model.FollowRequestPending {
		return utils.InvalidStateError("follow request already resolved")
	}

	if decision == DecisionDeny {
		err := s.db.Model(&req).Update("status", model.FollowRequestDenied).Error
		if err != nil {
			return utils.TransientError("failed to deny follow request", err)
		}
		// 被拒绝的请求不该在对方的通知列表里留尾巴
		if s.notifSvc != nil {
			s.notifSvc.DeleteByID(req.NotificationID)
		}
		return nil
	}

	follow := &model.Follow{FollowerID: req.RequesterID, FollowingID: req.TargetID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(follow).Error; err != nil {
			return err
		}
		return tx.Model(&model.FollowRequest{}).
			Where("id = ?", req.ID).
			Update("status", model.FollowRequestAccepted).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.DuplicateError("follow edge already exists")
		}
		return utils.TransientError("failed to accept follow request", err)
	}

	if s.notifSvc != nil {
		s.notifSvc.MarkReadByID(req.NotificationID)
	}
	s.notifyFollow(follow)
	return nil
}

// Block 拉黑用户
// 同一事务内建拉黑边并摘除双向的关注边和待处理关注请求，
// 对应的通知一并删除
func (s *RelationshipService) Block(actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return utils.ValidationError("cannot block yourself")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		block := &model.Block{BlockerID: actorID, BlockedID: targetID}
		if err := tx.Create(block).Error; err != nil {
			return err
		}

		// 双向摘除关注边
		var follows []model.Follow
		if err := tx.Where(
			"(follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?)",
			actorID, targetID, targetID, actorID,
		).Find(&follows).Error; err != nil {
			return err
		}
		for _, f := range follows {
			if err := tx.Delete(&model.Follow{}, "id = ?", f.ID).Error; err != nil {
				return err
			}
			if f.NotificationID != nil {
				if err := tx.Delete(&model.Notification{}, "id = ?", *f.NotificationID).Error; err != nil {
					return err
				}
			}
		}

		// 双向摘除待处理的关注请求
		var requests []model.FollowRequest
		if err := tx.Where(
			"((requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?)) AND status = ?",
			actorID, targetID, targetID, actorID, model.FollowRequestPending,
		).Find(&requests).Error; err != nil {
			return err
		}
		for _, r := range requests {
			if err := tx.Delete(&model.FollowRequest{}, "id = ?", r.ID).Error; err != nil {
				return err
			}
			if r.NotificationID != nil {
				if err := tx.Delete(&model.Notification{}, "id = ?", *r.NotificationID).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.DuplicateError("user already blocked")
		}
		return utils.TransientError("failed to block user", err)
	}
	return nil
}

// Unblock 取消拉黑
func (s *RelationshipService) Unblock(actorID, targetID uuid.UUID) error {
	result := s.db.Where("blocker_id = ? AND blocked_id = ?", actorID, targetID).
		Delete(&model.Block{})
	if result.Error != nil {
		return utils.TransientError("failed to unblock user", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NotFoundError("user not blocked")
	}
	return nil
}

// Mute 静音用户（不影响关注边）
func (s *RelationshipService) Mute(actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return utils.ValidationError("cannot mute yourself")
	}

	mute := &model.Mute{MuterID: actorID, MutedID: targetID}
	if err := s.db.Create(mute).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.DuplicateError("user already muted")
		}
		return utils.TransientError("failed to mute user", err)
	}
	return nil
}

// Unmute 取消静音
func (s *RelationshipService) Unmute(actorID, targetID uuid.UUID) error {
	result := s.db.Where("muter_id = ? AND muted_id = ?", actorID, targetID).
		Delete(&model.Mute{})
	if result.Error != nil {
		return utils.TransientError("failed to unmute user", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NotFoundError("user not muted")
	}
	return nil
}

// IsFollowing a 是否关注了 b
func (s *RelationshipService) IsFollowing(a, b uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&model.Follow{}).
		Where("follower_id = ? AND following_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return count > 0, nil
}

// HasEstablishedRelationship 双方是否存在任一方向的关注边
// 私信请求门禁用：有关注关系的用户之间的私信直接投递
func (s *RelationshipService) HasEstablishedRelationship(a, b uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&model.Follow{}).
		Where("(follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check relationship: %w", err)
	}
	return count > 0, nil
}

// ListFollowers 获取粉丝列表（经过可见性过滤）
func (s *RelationshipService) ListFollowers(viewerID, userID uuid.UUID) ([]uuid.UUID, error) {
	var followerIDs []uuid.UUID
	err := s.db.Model(&model.Follow{}).
		Where("following_id = ?", userID).
		Order("created_at DESC").
		Pluck("follower_id", &followerIDs).Error
	if err != nil {
		return nil, utils.TransientError("failed to query followers", err)
	}
	return s.guard.FilterUserIDs(viewerID, followerIDs)
}

// ListFollowing 获取关注列表（经过可见性过滤）
func (s *RelationshipService) ListFollowing(viewerID, userID uuid.UUID) ([]uuid.UUID, error) {
	var followingIDs []uuid.UUID
	err := s.db.Model(&model.Follow{}).
		Where("follower_id = ?", userID).
		Order("created_at DESC").
		Pluck("following_id", &followingIDs).Error
	if err != nil {
		return nil, utils.TransientError("failed to query following", err)
	}
	return s.guard.FilterUserIDs(viewerID, followingIDs)
}

// ListBlockedUsers 获取拉黑列表
func (s *RelationshipService) ListBlockedUsers(userID uuid.UUID) ([]model.Block, error) {
	var blocks []model.Block
	err := s.db.Where("blocker_id = ?", userID).
		Order("created_at DESC").
		Find(&blocks).Error
	if err != nil {
		return nil, utils.TransientError("failed to query blocked users", err)
	}
	return blocks, nil
}

// ListPendingFollowRequests 获取待处理的关注请求（收到方视角）
func (s *RelationshipService) ListPendingFollowRequests(targetID uuid.UUID) ([]model.FollowRequest, error) {
	var requests []model.FollowRequest
	err := s.db.Where("target_id = ? AND status = ?", targetID, model.FollowRequestPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, utils.TransientError("failed to query follow requests", err)
	}
	return requests, nil
}
