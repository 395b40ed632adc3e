package service

import (
	"testing"

	"orbit_social/model"
	"orbit_social/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSendMessage_WithRelationship 测试有关注关系时直接投递
func TestSendMessage_WithRelationship(t *testing.T) {
	db, relSvc, _, msgSvc, _, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	_, err := relSvc.Follow(userA.ID, userB.ID)
	require.NoError(t, err)

	outcome, err := msgSvc.SendMessage(userA.ID, userB.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, MessageOutcomeDelivered, outcome)

	var messages []model.Message
	require.NoError(t, db.Find(&messages).Error)
	require.Len(t, messages, 1)

	var notifs []model.Notification
	require.NoError(t, db.Where("recipient_id = ? AND type = ?", userB.ID, model.NotifTypeMessage).
		Find(&notifs).Error)
	require.Len(t, notifs, 1)
	require.NotNil(t, notifs[0].MessageID)
	assert.Equal(t, messages[0].ID, *notifs[0].MessageID)
}

// TestSendMessage_NoRelationship 测试无关系时走请求门禁
//
// 验证闭环：
// 1. 首条私信进入 pending 请求，没有正式消息
// 2. 接收方收到 message-request 通知
// 3. 接受后暂存内容投递为正式消息，后续私信直接送达
func TestSendMessage_NoRelationship(t *testing.T) {
	db, _, _, msgSvc, _, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	outcome, err := msgSvc.SendMessage(userA.ID, userB.ID, "hello stranger")
	require.NoError(t, err)
	assert.Equal(t, MessageOutcomeRequested, outcome)

	var msgCount int64
	require.NoError(t, db.Model(&model.Message{}).Count(&msgCount).Error)
	assert.Equal(t, int64(0), msgCount, "审批前不应产生正式消息")

	var req model.MessageRequest
	require.NoError(t, db.First(&req).Error)
	assert.Equal(t, model.MessageRequestPending, req.Status)
	assert.Equal(t, "hello stranger", req.Message)

	var notifs []model.Notification
	require.NoError(t, db.Where("recipient_id = ?", userB.ID).Find(&notifs).Error)
	require.Len(t, notifs, 1)
	assert.Equal(t, model.NotifTypeMessageRequest, notifs[0].Type)

	// 接受请求
	require.NoError(t, msgSvc.RespondToMessageRequest(req.ID, userB.ID, DecisionAccept))

	var messages []model.Message
	require.NoError(t, db.Find(&messages).Error)
	require.Len(t, messages, 1, "暂存的首条私信应被投递")
	assert.Equal(t, "hello stranger", messages[0].Content)
	assert.Equal(t, userA.ID, messages[0].SenderID)

	// 渠道已建立，后续私信直接送达
	outcome, err = msgSvc.SendMessage(userA.ID, userB.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, MessageOutcomeDelivered, outcome)
}

// TestSendMessage_PendingRequestReused 测试待处理请求的幂等复用
func TestSendMessage_PendingRequestReused(t *testing.T) {
	db, _, _, msgSvc, _, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	_, err := msgSvc.SendMessage(userA.ID, userB.ID, "first")
	require.NoError(t, err)
	_, err = msgSvc.SendMessage(userA.ID, userB.ID, "second")
	require.NoError(t, err)

	var reqCount int64
	require.NoError(t, db.Model(&model.MessageRequest{}).Count(&reqCount).Error)
	assert.Equal(t, int64(1), reqCount)

	var req model.MessageRequest
	require.NoError(t, db.First(&req).Error)
	assert.Equal(t, "first", req.Message, "pending 请求不应被覆盖")
}

// TestRespondToMessageRequest_Deny 测试拒绝私信请求
//
// 拒绝后请求为 rejected、通知被清理；再次发送把同一行重置回 pending
func TestRespondToMessageRequest_Deny(t *testing.T) {
	db, _, _, msgSvc, _, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	_, err := msgSvc.SendMessage(userA.ID, userB.ID, "hello")
	require.NoError(t, err)

	var req model.MessageRequest
	require.NoError(t, db.First(&req).Error)

	require.NoError(t, msgSvc.RespondToMessageRequest(req.ID, userB.ID, DecisionDeny))

	require.NoError(t, db.First(&req, "id = ?", req.ID).Error)
	assert.Equal(t, model.MessageRequestRejected, req.Status)

	var msgCount, notifCount int64
	require.NoError(t, db.Model(&model.Message{}).Count(&msgCount).Error)
	assert.Equal(t, int64(0), msgCount)
	require.NoError(t, db.Model(&model.Notification{}).Count(&notifCount).Error)
	assert.Equal(t, int64(0), notifCount, "被拒绝请求的通知应被清理")

	// 拒绝后再次发送：同一行重置回 pending，内容更新
	_, err = msgSvc.SendMessage(userA.ID, userB.ID, "sorry, one more try")
	require.NoError(t, err)

	var reqCount int64
	require.NoError(t, db.Model(&model.MessageRequest{}).Count(&reqCount).Error)
	assert.Equal(t, int64(1), reqCount)

	require.NoError(t, db.First(&req, "id = ?", req.ID).Error)
	assert.Equal(t, model.MessageRequestPending, req.Status)
	assert.Equal(t, "sorry, one more try", req.Message)
}

// TestRespondToMessageRequest_Authorization 测试权限与状态检查
func TestRespondToMessageRequest_Authorization(t *testing.T) {
	db, _, _, msgSvc, _, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)
	userC := createTestUser(t, db, model.PrivacyPublic)

	_, err := msgSvc.SendMessage(userA.ID, userB.ID, "hello")
	require.NoError(t, err)

	var req model.MessageRequest
	require.NoError(t, db.First(&req).Error)

	err = msgSvc.RespondToMessageRequest(req.ID, userC.ID, DecisionAccept)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.ErrKindNotAuthorized))

	require.NoError(t, msgSvc.RespondToMessageRequest(req.ID, userB.ID, DecisionAccept))

	err = msgSvc.RespondToMessageRequest(req.ID, userB.ID, DecisionAccept)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.ErrKindInvalidState))
}

// TestSendMessage_Blocked 测试拉黑后私信被拒绝
func TestSendMessage_Blocked(t *testing.T) {
	db, relSvc, _, msgSvc, _, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	require.NoError(t, relSvc.Block(userB.ID, userA.ID))

	_, err := msgSvc.SendMessage(userA.ID, userB.ID, "hello")
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.ErrKindBlocked))
}

// TestListMessages 测试私信历史
func TestListMessages(t *testing.T) {
	db, relSvc, _, msgSvc, _, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	_, err := relSvc.Follow(userA.ID, userB.ID)
	require.NoError(t, err)

	_, err = msgSvc.SendMessage(userA.ID, userB.ID, "one")
	require.NoError(t, err)
	_, err = msgSvc.SendMessage(userB.ID, userA.ID, "two")
	require.NoError(t, err)

	messages, err := msgSvc.ListMessages(userA.ID, userB.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)
}
