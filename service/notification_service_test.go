package service

import (
	"testing"
	"time"

	"orbit_social/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublish_SelfSuppression 测试不给自己发通知
func TestPublish_SelfSuppression(t *testing.T) {
	db, _, _, _, notifSvc, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)

	n, err := notifSvc.Publish(&model.Notification{
		RecipientID: userA.ID,
		ActorID:     userA.ID,
		Type:        model.NotifTypeLike,
	})
	require.NoError(t, err)
	assert.Nil(t, n, "自己触发的事件应被抑制")

	var count int64
	require.NoError(t, db.Model(&model.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

// TestPublish_BlockSuppression 测试通知不穿透拉黑
//
// B 拉黑 A 之后，A 给 B 的帖子点赞，B 不应收到任何通知行
// （点赞本身也会被 guard 拒绝，这里直接验证引擎层的二次检查）
func TestPublish_BlockSuppression(t *testing.T) {
	db, relSvc, _, _, notifSvc, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	require.NoError(t, relSvc.Block(userB.ID, userA.ID))

	n, err := notifSvc.Publish(&model.Notification{
		RecipientID: userB.ID,
		ActorID:     userA.ID,
		Type:        model.NotifTypeLike,
	})
	require.NoError(t, err)
	assert.Nil(t, n)

	var count int64
	require.NoError(t, db.Model(&model.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "通知绝不能穿透拉黑")
}

// TestPublish_MuteSuppression 测试接收方静音发起方时抑制通知
func TestPublish_MuteSuppression(t *testing.T) {
	db, relSvc, _, _, notifSvc, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	require.NoError(t, relSvc.Mute(userB.ID, userA.ID))

	n, err := notifSvc.Publish(&model.Notification{
		RecipientID: userB.ID,
		ActorID:     userA.ID,
		Type:        model.NotifTypeFollow,
	})
	require.NoError(t, err)
	assert.Nil(t, n)
}

// TestPublish_PushesToOnlineRecipient 测试在线用户收到实时推送
//
// 验证闭环：
// 1. 通知落库
// 2. 推送到达 fake 推送器，载荷包含 id/type/actor/recipient
// 3. 离线用户不推送，但通知仍然可查
func TestPublish_PushesToOnlineRecipient(t *testing.T) {
	db, _, _, _, notifSvc, broadcaster := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	broadcaster.SetOnline(userB.ID, true)

	n, err := notifSvc.Publish(&model.Notification{
		RecipientID: userB.ID,
		ActorID:     userA.ID,
		Type:        model.NotifTypeFollow,
	})
	require.NoError(t, err)
	require.NotNil(t, n)

	// 推送是 fire-and-forget 的 goroutine
	require.Eventually(t, func() bool {
		return broadcaster.EmitCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "在线用户应收到推送")

	emit, ok := broadcaster.LastEmit()
	require.True(t, ok)
	assert.Equal(t, userB.ID, emit.UserID)
	assert.Equal(t, "notification", emit.Event)

	payload, ok := emit.Payload.(model.NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, n.ID, payload.ID)
	assert.Equal(t, model.NotifTypeFollow, payload.Type)
	assert.Equal(t, userA.ID, payload.ActorID)
	assert.Equal(t, userB.ID, payload.RecipientID)
}

// TestPublish_OfflineRecipientStillPersisted 测试离线用户不推送但可查
func TestPublish_OfflineRecipientStillPersisted(t *testing.T) {
	db, _, _, _, notifSvc, broadcaster := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	n, err := notifSvc.Publish(&model.Notification{
		RecipientID: userB.ID,
		ActorID:     userA.ID,
		Type:        model.NotifTypeFollow,
	})
	require.NoError(t, err)
	require.NotNil(t, n)

	notifications, err := notifSvc.GetNotifications(userB.ID, 50, 0, false)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.False(t, notifications[0].IsRead)

	// 没有任何推送发生
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, broadcaster.EmitCount())
}

// TestNotifyMentions 测试提及通知
//
// 接收解析好的用户 ID 列表，逐个生成 mention 通知；
// 自己提及自己被抑制
func TestNotifyMentions(t *testing.T) {
	db, _, _, _, notifSvc, _ := newServices(t)
	author := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)
	userC := createTestUser(t, db, model.PrivacyPublic)
	post := createTestPost(t, db, author.ID)

	notifSvc.NotifyMentions(author.ID, post.ID,
		[]uuid.UUID{userB.ID, userC.ID, author.ID}, "mentioned you")

	var notifs []model.Notification
	require.NoError(t, db.Order("created_at ASC").Find(&notifs).Error)
	require.Len(t, notifs, 2, "自己提及自己应被抑制")
	for _, n := range notifs {
		assert.Equal(t, model.NotifTypeMention, n.Type)
		require.NotNil(t, n.PostID)
		assert.Equal(t, post.ID, *n.PostID)
	}
}

// TestMarkAllAsRead 测试全部已读
func TestMarkAllAsRead(t *testing.T) {
	db, _, _, _, notifSvc, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)

	for i := 0; i < 3; i++ {
		_, err := notifSvc.Publish(&model.Notification{
			RecipientID: userB.ID,
			ActorID:     userA.ID,
			Type:        model.NotifTypeFollow,
		})
		require.NoError(t, err)
	}

	count, err := notifSvc.GetUnreadCount(userB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, notifSvc.MarkAllAsRead(userB.ID))

	count, err = notifSvc.GetUnreadCount(userB.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// TestDeleteNotification_OwnershipCheck 测试只能删除自己的通知
func TestDeleteNotification_OwnershipCheck(t *testing.T) {
	db, _, _, _, notifSvc, _ := newServices(t)
	userA := createTestUser(t, db, model.PrivacyPublic)
	userB := createTestUser(t, db, model.PrivacyPublic)
	userC := createTestUser(t, db, model.PrivacyPublic)

	n, err := notifSvc.Publish(&model.Notification{
		RecipientID: userB.ID,
		ActorID:     userA.ID,
		Type:        model.NotifTypeFollow,
	})
	require.NoError(t, err)

	// C 删不掉 B 的通知
	err = notifSvc.DeleteNotification(userC.ID, n.ID)
	require.Error(t, err)

	require.NoError(t, notifSvc.DeleteNotification(userB.ID, n.ID))
}
