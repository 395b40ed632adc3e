package service

import (
	"errors"
	"strings"

	"orbit_social/model"
	"orbit_social/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 发送结果
const (
	MessageOutcomeDelivered = "delivered" // 已投递为正式私信
	MessageOutcomeRequested = "requested" // 进入私信请求，等待对方同意
)

// MessageService 私信服务
// 双方有任一方向的关注边、或此前的私信请求已被接受时直接投递；
// 否则首条私信先暂存在请求里（与关注审批同构的门禁）
type MessageService struct {
	db       *gorm.DB
	guard    *VisibilityGuard
	relSvc   *RelationshipService
	notifSvc *NotificationService
}

func NewMessageService(db *gorm.DB, guard *VisibilityGuard, relSvc *RelationshipService) *MessageService {
	return &MessageService{db: db, guard: guard, relSvc: relSvc}
}

// SetNotificationService 设置通知服务（用于依赖注入）
func (s *MessageService) SetNotificationService(notifSvc *NotificationService) {
	s.notifSvc = notifSvc
}

// SendMessage 发送私信
func (s *MessageService) SendMessage(senderID, recipientID uuid.UUID, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", utils.ValidationError("message content is required")
	}
	if senderID == recipientID {
		return "", utils.ValidationError("cannot message yourself")
	}

	ok, err := s.guard.CanInteract(senderID, recipientID)
	if err != nil {
		return "", utils.TransientError("failed to check visibility", err)
	}
	if !ok {
		return "", utils.BlockedError("interaction not allowed between these users")
	}

	established, err := s.hasEstablishedChannel(senderID, recipientID)
	if err != nil {
		return "", utils.TransientError("failed to check relationship", err)
	}

	if !established {
		return s.requestMessage(senderID, recipientID, content)
	}

	if err := s.deliver(s.db, senderID, recipientID, content); err != nil {
		return "", err
	}
	return MessageOutcomeDelivered, nil
}

// hasEstablishedChannel 是否允许直接投递
// 任一方向的关注边，或者存在已接受的私信请求（任一方向）
func (s *MessageService) hasEstablishedChannel(a, b uuid.UUID) (bool, error) {
	related, err := s.relSvc.HasEstablishedRelationship(a, b)
	if err != nil {
		return false, err
	}
	if related {
		return true, nil
	}

	var count int64
	err = s.db.Model(&model.MessageRequest{}).
		Where("((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)) AND status = ?",
			a, b, b, a, model.MessageRequestAccepted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// deliver 写入正式私信并通知接收方
func (s *MessageService) deliver(db *gorm.DB, senderID, recipientID uuid.UUID, content string) error {
	msg := &model.Message{SenderID: senderID, RecipientID: recipientID, Content: content}
	if err := db.Create(msg).Error; err != nil {
		return utils.TransientError("failed to create message", err)
	}

	if s.notifSvc != nil {
		n, err := s.notifSvc.Publish(&model.Notification{
			RecipientID: recipientID,
			ActorID:     senderID,
			Type:        model.NotifTypeMessage,
			MessageID:   &msg.ID,
		})
		if err == nil {
			s.notifSvc.BackLink(&model.Message{}, msg.ID, n)
		}
	}
	return nil
}

// requestMessage 首条私信进入请求门禁
// (sender, recipient) 至多一行：pending 复用，rejected 重置回 pending 并更新暂存内容
func (s *MessageService) requestMessage(senderID, recipientID uuid.UUID, content string) (string, error) {
	var req model.MessageRequest
	err := s.db.Where("sender_id = ? AND recipient_id = ?", senderID, recipientID).First(&req).Error

	switch {
	case err == nil:
		if req.Status == model.MessageRequestPending {
			return MessageOutcomeRequested, nil
		}
		updates := map[string]interface{}{
			"status":  model.MessageRequestPending,
			"message": content,
		}
		if err := s.db.Model(&req).Updates(updates).Error; err != nil {
			return "", utils.TransientError("failed to reset message request", err)
		}

	case errors.Is(err, gorm.ErrRecordNotFound):
		req = model.MessageRequest{
			SenderID:    senderID,
			RecipientID: recipientID,
			Message:     content,
			Status:      model.MessageRequestPending,
		}
		if err := s.db.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return MessageOutcomeRequested, nil
			}
			return "", utils.TransientError("failed to create message request", err)
		}

	default:
		return "", utils.TransientError("failed to query message request", err)
	}

	if s.notifSvc != nil {
		n, pubErr := s.notifSvc.Publish(&model.Notification{
			RecipientID:      recipientID,
			ActorID:          senderID,
			Type:             model.NotifTypeMessageRequest,
			MessageRequestID: &req.ID,
		})
		if pubErr == nil {
			s.notifSvc.BackLink(&model.MessageRequest{}, req.ID, n)
		}
	}
	return MessageOutcomeRequested, nil
}

// RespondToMessageRequest 处理私信请求
// accept 时在同一事务内翻转状态并把暂存的首条私信投递为正式消息
func (s *MessageService) RespondToMessageRequest(requestID, responderID uuid.UUID, decision string) error {
	if decision != DecisionAccept && decision != DecisionDeny {
		return utils.ValidationError("decision must be 'accept' or 'deny'")
	}

	var req model.MessageRequest
	if err := s.db.First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundError("message request not found")
		}
		return utils.TransientError("failed to load message request", err)
	}

	if req.RecipientID != responderID {
		return utils.NotAuthorizedError("only the request recipient can respond")
	}
	if req.Status != model.MessageRequestPending {
		return utils.InvalidStateError("message request already resolved")
	}

	if decision == DecisionDeny {
		err := s.db.Model(&req).Update("status", model.MessageRequestRejected).Error
		if err != nil {
			return utils.TransientError("failed to reject message request", err)
		}
		if s.notifSvc != nil {
			s.notifSvc.DeleteByID(req.NotificationID)
		}
		return nil
	}

	msg := &model.Message{SenderID: req.SenderID, RecipientID: req.RecipientID, Content: req.Message}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.MessageRequest{}).
			Where("id = ?", req.ID).
			Update("status", model.MessageRequestAccepted).Error; err != nil {
			return err
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		return utils.TransientError("failed to accept message request", err)
	}

	if s.notifSvc != nil {
		s.notifSvc.MarkReadByID(req.NotificationID)
		// 请求被接受后，暂存的首条私信作为正式消息通知接收方
		n, pubErr := s.notifSvc.Publish(&model.Notification{
			RecipientID: msg.RecipientID,
			ActorID:     msg.SenderID,
			Type:        model.NotifTypeMessage,
			MessageID:   &msg.ID,
		})
		if pubErr == nil {
			s.notifSvc.BackLink(&model.Message{}, msg.ID, n)
		}
	}
	return nil
}

// ListMessages 获取双方之间的私信（时间正序，分页）
func (s *MessageService) ListMessages(userID, peerID uuid.UUID, limit, offset int) ([]model.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var messages []model.Message
	err := s.db.Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID, peerID, peerID, userID,
	).Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, utils.TransientError("failed to query messages", err)
	}
	return messages, nil
}

// ListPendingMessageRequests 获取待处理的私信请求（接收方视角）
func (s *MessageService) ListPendingMessageRequests(recipientID uuid.UUID) ([]model.MessageRequest, error) {
	var requests []model.MessageRequest
	err := s.db.Where("recipient_id = ? AND status = ?", recipientID, model.MessageRequestPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, utils.TransientError("failed to query message requests", err)
	}
	return requests, nil
}
