package service

import (
	"errors"
	"log"
	"strings"

	"orbit_social/model"
	"orbit_social/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 点赞结果
const (
	LikeOutcomeLiked   = "liked"
	LikeOutcomeUnliked = "unliked"
)

// InteractionService 互动流水服务
// 点赞 / 转发 / 评论 / 打赏。每个写入口先过 VisibilityGuard，
// 多行变更（行 + 计数器）在同一事务内完成
type InteractionService struct {
	db       *gorm.DB
	guard    *VisibilityGuard
	notifSvc *NotificationService
}

func NewInteractionService(db *gorm.DB, guard *VisibilityGuard) *InteractionService {
	return &InteractionService{db: db, guard: guard}
}

// SetNotificationService 设置通知服务（用于依赖注入）
func (s *InteractionService) SetNotificationService(notifSvc *NotificationService) {
	s.notifSvc = notifSvc
}

// loadPost 加载目标帖子并做拉黑检查
func (s *InteractionService) loadPost(actorID, postID uuid.UUID) (*model.Post, error) {
	var post model.Post
	if err := s.db.First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("post not found")
		}
		return nil, utils.TransientError("failed to load post", err)
	}

	ok, err := s.guard.CanInteract(actorID, post.AuthorID)
	if err != nil {
		return nil, utils.TransientError("failed to check visibility", err)
	}
	if !ok {
		return nil, utils.BlockedError("interaction not allowed between these users")
	}

	return &post, nil
}

// ToggleLike 点赞 / 取消点赞
// 已有赞则删除并回退计数器，没有则创建并递增，行与计数器同事务。
// 并发下重复创建由 (user_id, post_id) 唯一约束兜底
func (s *InteractionService) ToggleLike(userID, postID uuid.UUID) (string, error) {
	post, err := s.loadPost(userID, postID)
	if err != nil {
		return "", err
	}

	var existing model.Like
	err = s.db.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error

	if err == nil {
		// 取消点赞
		deleted := false
		txErr := s.db.Transaction(func(tx *gorm.DB) error {
			result := tx.Delete(&model.Like{}, "id = ?", existing.ID)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				// 并发下已被另一个请求删掉，计数器不再回退
				return nil
			}
			deleted = true
			return tx.Model(&model.Post{}).
				Where("id = ?", postID).
				UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
		})
		if txErr != nil {
			return "", utils.TransientError("failed to unlike post", txErr)
		}
		// 撤销点赞时删除它产生的通知，避免残留 "X liked your post"
		if deleted && s.notifSvc != nil {
			s.notifSvc.DeleteByID(existing.NotificationID)
		}
		return LikeOutcomeUnliked, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", utils.TransientError("failed to query like", err)
	}

	like := &model.Like{UserID: userID, PostID: postID}
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(like).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			return "", utils.DuplicateError("already liked this post")
		}
		return "", utils.TransientError("failed to like post", txErr)
	}

	if s.notifSvc != nil {
		n, err := s.notifSvc.Publish(&model.Notification{
			RecipientID: post.AuthorID,
			ActorID:     userID,
			Type:        model.NotifTypeLike,
			PostID:      &postID,
		})
		if err == nil {
			s.notifSvc.BackLink(&model.Like{}, like.ID, n)
		}
	}
	return LikeOutcomeLiked, nil
}

// Retweet 转发帖子
// 至多一次，重复转发返回 duplicate 错误。转发生成一条视图行：
// 引用原帖的作者与内容，不复制内容本体
func (s *InteractionService) Retweet(userID, postID uuid.UUID) (*model.Post, error) {
	post, err := s.loadPost(userID, postID)
	if err != nil {
		return nil, err
	}

	repost := &model.Post{
		AuthorID:   userID,
		RepostOfID: &post.ID,
	}
	retweet := &model.Retweet{UserID: userID, PostID: postID}

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(retweet).Error; err != nil {
			return err
		}
		if err := tx.Create(repost).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Retweet{}).
			Where("id = ?", retweet.ID).
			Update("repost_id", repost.ID).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("retweet_count", gorm.Expr("retweet_count + 1")).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			return nil, utils.DuplicateError("already retweeted this post")
		}
		return nil, utils.TransientError("failed to retweet post", txErr)
	}

	if s.notifSvc != nil {
		n, err := s.notifSvc.Publish(&model.Notification{
			RecipientID: post.AuthorID,
			ActorID:     userID,
			Type:        model.NotifTypeRetweet,
			PostID:      &postID,
		})
		if err == nil {
			s.notifSvc.BackLink(&model.Retweet{}, retweet.ID, n)
		}
	}
	return repost, nil
}

// Unretweet 撤销转发
// 转发行、视图行、计数器在同一事务内一起回退；回链通知随后删除
func (s *InteractionService) Unretweet(userID, postID uuid.UUID) error {
	var retweet model.Retweet
	err := s.db.Where("user_id = ? AND post_id = ?", userID, postID).First(&retweet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NotFoundError("retweet not found")
	}
	if err != nil {
		return utils.TransientError("failed to query retweet", err)
	}

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&model.Retweet{}, "id = ?", retweet.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Delete(&model.Post{}, "id = ?", retweet.RepostID).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).
			Where("id = ?", postID).
			UpdateColumn("retweet_count", gorm.Expr("retweet_count - 1")).Error
	})
	if txErr != nil {
		return utils.TransientError("failed to unretweet post", txErr)
	}

	if s.notifSvc != nil {
		s.notifSvc.DeleteByID(retweet.NotificationID)
	}
	return nil
}

// AddComment 发表评论（追加写）
func (s *InteractionService) AddComment(userID, postID uuid.UUID, content string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, utils.ValidationError("comment content is required")
	}

	post, err := s.loadPost(userID, postID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{UserID: userID, PostID: postID, Content: content}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, utils.TransientError("failed to create comment", err)
	}

	if s.notifSvc != nil {
		n, err := s.notifSvc.Publish(&model.Notification{
			RecipientID: post.AuthorID,
			ActorID:     userID,
			Type:        model.NotifTypeComment,
			CommentID:   &comment.ID,
		})
		if err == nil {
			s.notifSvc.BackLink(&model.Comment{}, comment.ID, n)
		}
	}
	return comment, nil
}

// Tip 打赏
// 只写一条流水，结算在 core 之外。postID 可为 nil（直接打赏用户）
func (s *InteractionService) Tip(senderID, recipientID uuid.UUID, postID *uuid.UUID, amount int64) (*model.Tip, error) {
	if amount <= 0 {
		return nil, utils.ValidationError("tip amount must be positive")
	}
	if senderID == recipientID {
		return nil, utils.ValidationError("cannot tip yourself")
	}

	ok, err := s.guard.CanInteract(senderID, recipientID)
	if err != nil {
		return nil, utils.TransientError("failed to check visibility", err)
	}
	if !ok {
		return nil, utils.BlockedError("interaction not allowed between these users")
	}

	if postID != nil {
		var count int64
		if err := s.db.Model(&model.Post{}).Where("id = ?", *postID).Count(&count).Error; err != nil {
			return nil, utils.TransientError("failed to check post", err)
		}
		if count == 0 {
			return nil, utils.NotFoundError("post not found")
		}
	}

	tip := &model.Tip{SenderID: senderID, RecipientID: recipientID, PostID: postID, Amount: amount}
	if err := s.db.Create(tip).Error; err != nil {
		return nil, utils.TransientError("failed to record tip", err)
	}

	if s.notifSvc != nil {
		n, err := s.notifSvc.Publish(&model.Notification{
			RecipientID: recipientID,
			ActorID:     senderID,
			Type:        model.NotifTypeTransaction,
			TipID:       &tip.ID,
		})
		if err == nil {
			s.notifSvc.BackLink(&model.Tip{}, tip.ID, n)
		}
	}
	return tip, nil
}

// ListLikers 获取帖子的点赞用户（经过可见性过滤）
func (s *InteractionService) ListLikers(viewerID, postID uuid.UUID) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	err := s.db.Model(&model.Like{}).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, utils.TransientError("failed to query likers", err)
	}
	return s.guard.FilterUserIDs(viewerID, userIDs)
}

// ReconcileAllCounters 分批对账全部帖子的冗余计数器
// main 里的周期任务调用，单个帖子失败不中断整轮
func (s *InteractionService) ReconcileAllCounters(batchSize int) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	offset := 0
	for {
		var postIDs []uuid.UUID
		err := s.db.Model(&model.Post{}).
			Order("created_at ASC").
			Limit(batchSize).
			Offset(offset).
			Pluck("id", &postIDs).Error
		if err != nil {
			return utils.TransientError("failed to list posts for reconciliation", err)
		}
		if len(postIDs) == 0 {
			return nil
		}

		for _, postID := range postIDs {
			if err := s.ReconcileCounters(postID); err != nil {
				log.Printf("[WARN] Counter reconciliation failed for post %s: %v", postID, err)
			}
		}
		offset += len(postIDs)
	}
}

// ReconcileCounters 用流水重算一个帖子的冗余计数器
// 缓存计数器允许漂移，周期性对账把漂移拉回来
func (s *InteractionService) ReconcileCounters(postID uuid.UUID) error {
	var likeCount, retweetCount int64
	if err := s.db.Model(&model.Like{}).Where("post_id = ?", postID).Count(&likeCount).Error; err != nil {
		return utils.TransientError("failed to count likes", err)
	}
	if err := s.db.Model(&model.Retweet{}).Where("post_id = ?", postID).Count(&retweetCount).Error; err != nil {
		return utils.TransientError("failed to count retweets", err)
	}

	err := s.db.Model(&model.Post{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{
			"like_count":    likeCount,
			"retweet_count": retweetCount,
		}).Error
	if err != nil {
		return utils.TransientError("failed to reconcile counters", err)
	}
	return nil
}
