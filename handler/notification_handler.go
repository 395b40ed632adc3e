package handler

import (
	"strconv"

	"orbit_social/middleware"
	"orbit_social/service"
	"orbit_social/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	notifSvc *service.NotificationService
}

func NewNotificationHandler(notifSvc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifSvc: notifSvc}
}

// GetNotifications 获取通知列表
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	// 分页参数
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	unreadOnly := c.DefaultQuery("unread_only", "false") == "true"

	notifications, err := h.notifSvc.GetNotifications(userID, limit, offset, unreadOnly)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	unreadCount, _ := h.notifSvc.GetUnreadCount(userID)

	utils.SuccessResponse(c, gin.H{
		"notifications": notifications,
		"unread_count":  unreadCount,
	})
}

// MarkAllAsRead 标记所有通知为已读
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	if err := h.notifSvc.MarkAllAsRead(userID); err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "all notifications marked as read", nil)
}

// NotifyMentions 接收内容侧解析好的提及列表，逐个发提及通知
// 提及解析在发帖链路完成，这里只负责通知落库和推送
func (h *NotificationHandler) NotifyMentions(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		PostID       uuid.UUID   `json:"post_id" binding:"required"`
		MentionedIDs []uuid.UUID `json:"mentioned_ids" binding:"required"`
		Content      string      `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request body")
		return
	}

	h.notifSvc.NotifyMentions(userID, req.PostID, req.MentionedIDs, req.Content)
	utils.SuccessWithMessage(c, "mentions notified", nil)
}

// DeleteNotification 删除通知
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid notification id")
		return
	}

	if err := h.notifSvc.DeleteNotification(userID, notificationID); err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "notification deleted", nil)
}
