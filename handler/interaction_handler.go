package handler

import (
	"orbit_social/middleware"
	"orbit_social/service"
	"orbit_social/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InteractionHandler struct {
	interactionSvc *service.InteractionService
}

func NewInteractionHandler(interactionSvc *service.InteractionService) *InteractionHandler {
	return &InteractionHandler{interactionSvc: interactionSvc}
}

// ToggleLike 点赞 / 取消点赞
func (h *InteractionHandler) ToggleLike(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid post id")
		return
	}

	outcome, err := h.interactionSvc.ToggleLike(userID, postID)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"outcome": outcome})
}

// Retweet 转发帖子
func (h *InteractionHandler) Retweet(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid post id")
		return
	}

	repost, err := h.interactionSvc.Retweet(userID, postID)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"repost": repost})
}

// Unretweet 撤销转发
func (h *InteractionHandler) Unretweet(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid post id")
		return
	}

	if err := h.interactionSvc.Unretweet(userID, postID); err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "retweet removed", nil)
}

// AddComment 发表评论
func (h *InteractionHandler) AddComment(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid post id")
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	comment, err := h.interactionSvc.AddComment(userID, postID, req.Content)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"comment": comment})
}

// Tip 打赏
func (h *InteractionHandler) Tip(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		RecipientID uuid.UUID  `json:"recipient_id" binding:"required"`
		PostID      *uuid.UUID `json:"post_id"`
		Amount      int64      `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	tip, err := h.interactionSvc.Tip(userID, req.RecipientID, req.PostID, req.Amount)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"tip": tip})
}

// ListLikers 获取帖子的点赞用户
func (h *InteractionHandler) ListLikers(c *gin.Context) {
	viewerID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid post id")
		return
	}

	likers, err := h.interactionSvc.ListLikers(viewerID, postID)
	if err != nil {
		utils.FailWithError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"likers": likers})
}
