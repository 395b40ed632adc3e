package handler

import (
	"encoding/json"
	"testing"

	"orbit_social/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRegisteredClient 构造一个已注册的本地客户端（不带真实连接）
func newRegisteredClient(hub *Hub, userID uuid.UUID) *Client {
	client := &Client{
		ID:     uuid.New(),
		UserID: userID,
		Send:   make(chan []byte, 16),
		Hub:    hub,
	}
	hub.mu.Lock()
	if hub.Clients[userID] == nil {
		hub.Clients[userID] = make(map[uuid.UUID]*Client)
	}
	hub.Clients[userID][client.ID] = client
	hub.mu.Unlock()
	return client
}

// TestEmitToUser_InvalidEventName 测试事件名校验
//
// 空事件名或含空白/控制字符的事件名必须快速失败，不能静默吞掉
func TestEmitToUser_InvalidEventName(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()

	for _, event := range []string{"", "bad event", "bad\nevent", "bad\tevent"} {
		err := hub.EmitToUser(userID, event, nil)
		require.Error(t, err, "事件名 %q 应被拒绝", event)
		assert.True(t, utils.IsKind(err, utils.ErrKindValidation))
	}

	err := hub.EmitToAll("", nil)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.ErrKindValidation))
}

// TestEmitToUser_DeliversToAllDevices 测试多设备投递
func TestEmitToUser_DeliversToAllDevices(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()

	clientA := newRegisteredClient(hub, userID)
	clientB := newRegisteredClient(hub, userID)

	require.NoError(t, hub.EmitToUser(userID, "notification", map[string]string{"k": "v"}))

	for _, client := range []*Client{clientA, clientB} {
		select {
		case msg := <-client.Send:
			var envelope map[string]interface{}
			require.NoError(t, json.Unmarshal(msg, &envelope))
			assert.Equal(t, "notification", envelope["type"])
		default:
			t.Fatalf("client %s 没有收到消息", client.ID)
		}
	}
}

// TestEmitToUser_OfflineIsNotAnError 测试离线投递不算错误
func TestEmitToUser_OfflineIsNotAnError(t *testing.T) {
	hub := NewHub(nil)

	err := hub.EmitToUser(uuid.New(), "notification", nil)
	assert.NoError(t, err, "用户离线时通知仍然可查，不是错误")
}

// TestIsUserOnline 测试在线判定与注销
func TestIsUserOnline(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()

	assert.False(t, hub.IsUserOnline(userID))

	clientA := newRegisteredClient(hub, userID)
	clientB := newRegisteredClient(hub, userID)
	assert.True(t, hub.IsUserOnline(userID))

	hub.Unregister(clientA)
	assert.True(t, hub.IsUserOnline(userID), "还有设备在线")

	hub.Unregister(clientB)
	assert.False(t, hub.IsUserOnline(userID))

	// 重复注销是安全的
	hub.Unregister(clientB)
}

// TestStartPubSub_InitOnce 测试 Pub/Sub 只初始化一次
//
// 第二次启动必须被忽略而不是替换现有订阅，
// 否则已连接的客户端会收不到跨 Pod 消息
func TestStartPubSub_InitOnce(t *testing.T) {
	hub := NewHub(nil)

	hub.StartPubSub()
	assert.True(t, hub.started)

	// 重复调用：记日志并忽略，不 panic 不替换
	hub.StartPubSub()
	assert.True(t, hub.started)
}

// TestHandleBroadcastMessage_SelfDedup 测试跨 Pod 广播的自我去重
func TestHandleBroadcastMessage_SelfDedup(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	client := newRegisteredClient(hub, userID)

	// 自己发出的广播应被忽略
	selfMsg, err := json.Marshal(BroadcastMessage{
		UserID:  userID.String(),
		PodID:   hub.podID,
		Payload: []byte(`{"type":"notification"}`),
	})
	require.NoError(t, err)
	hub.handleBroadcastMessage(selfMsg)

	select {
	case <-client.Send:
		t.Fatal("自己 Pod 的广播不应被重复投递")
	default:
	}

	// 其他 Pod 的广播正常投递
	otherMsg, err := json.Marshal(BroadcastMessage{
		UserID:  userID.String(),
		PodID:   uuid.New().String(),
		Payload: []byte(`{"type":"notification"}`),
	})
	require.NoError(t, err)
	hub.handleBroadcastMessage(otherMsg)

	select {
	case msg := <-client.Send:
		assert.JSONEq(t, `{"type":"notification"}`, string(msg))
	default:
		t.Fatal("其他 Pod 的广播应被投递给本地用户")
	}
}
