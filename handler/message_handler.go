package handler

import (
	"strconv"

	"orbit_social/middleware"
	"orbit_social/service"
	"orbit_social/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	msgSvc *service.MessageService
}

func NewMessageHandler(msgSvc *service.MessageService) *MessageHandler {
	return &MessageHandler{msgSvc: msgSvc}
}

// SendMessage 发送私信
// 没有已建立关系时自动转为私信请求，响应里的 outcome 区分两种情况
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
		Content     string    `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	outcome, err := h.msgSvc.SendMessage(userID, req.RecipientID, req.Content)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"outcome": outcome})
}

// ListMessages 获取与某个用户的私信历史
func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	peerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid user id")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.msgSvc.ListMessages(userID, peerID, limit, offset)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"messages": messages})
}

// ListMessageRequests 获取待处理的私信请求
func (h *MessageHandler) ListMessageRequests(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	requests, err := h.msgSvc.ListPendingMessageRequests(userID)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"requests": requests})
}

// RespondToMessageRequest 处理私信请求（accept / deny）
func (h *MessageHandler) RespondToMessageRequest(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid request id")
		return
	}

	var req struct {
		Decision string `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.msgSvc.RespondToMessageRequest(requestID, userID, req.Decision); err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "message request resolved", nil)
}
