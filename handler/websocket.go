package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
	"unicode"

	"orbit_social/middleware"
	"orbit_social/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境需要检查 Origin
		return true
	},
}

// Client WebSocket 客户端
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
	mu     sync.Mutex
	closed bool // Send channel 是否已关闭
}

// Hub WebSocket 连接管理中心（Fan-out 推送器）
// 由 main 显式构造并注入给需要它的服务，不做包级单例
type Hub struct {
	// 在线用户 map[userID]map[clientID]*Client（支持多设备）
	Clients map[uuid.UUID]map[uuid.UUID]*Client
	mu      sync.RWMutex

	// 最大连接数限制（每个用户）
	MaxConnectionsPerUser int

	// Redis 客户端（在线状态 + 跨 Pod 广播），可为 nil（单机/测试）
	rdb *redis.Client

	// Pod ID（用于跨 Pod 广播去重）
	podID string

	// Pub/Sub 只允许启动一次，重复启动记日志并忽略，
	// 避免替换掉已有订阅导致已连接客户端收不到跨 Pod 消息
	startOnce sync.Once
	started   bool

	// 停止 Pub/Sub 订阅
	stopPubSub chan struct{}
}

// Redis Pub/Sub channel 名称
const redisBroadcastChannel = "ws:broadcast"

// BroadcastMessage 跨 Pod 广播消息格式
type BroadcastMessage struct {
	UserID  string `json:"user_id"`
	PodID   string `json:"pod_id"` // 发送方 Pod ID，用于去重
	Payload []byte `json:"payload"`
}

// NewHub 创建 Hub
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		Clients:               make(map[uuid.UUID]map[uuid.UUID]*Client),
		MaxConnectionsPerUser: 10,
		rdb:                   rdb,
		podID:                 uuid.New().String(), // 每个 Pod 实例唯一 ID
		stopPubSub:            make(chan struct{}),
	}
}

// Register 注册客户端（支持多设备，限制最大连接数）
func (h *Hub) Register(client *Client) {
	h.mu.Lock()

	if h.Clients[client.UserID] == nil {
		h.Clients[client.UserID] = make(map[uuid.UUID]*Client)
	}

	// 检查连接数限制
	if len(h.Clients[client.UserID]) >= h.MaxConnectionsPerUser {
		h.mu.Unlock() // 先释放锁，再进行网络操作

		log.Printf("[ERROR] User %s exceeds max connections (%d), rejecting new connection (client ID: %s)",
			client.UserID, h.MaxConnectionsPerUser, client.ID)

		client.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure,
				fmt.Sprintf("Maximum %d devices allowed", h.MaxConnectionsPerUser)))
		client.Conn.Close()
		return
	}

	h.Clients[client.UserID][client.ID] = client
	deviceCount := len(h.Clients[client.UserID])
	isFirstDevice := deviceCount == 1

	h.mu.Unlock() // 尽早释放锁

	// 在线状态标记（不持有锁的情况下进行 Redis 操作）
	if h.rdb != nil && isFirstDevice {
		ctx := context.Background()
		h.rdb.Set(ctx, "online:"+client.UserID.String(), "1", 0)
	}

	log.Printf("User %s connected (client: %s), devices: %d", client.UserID, client.ID, deviceCount)
}

// Unregister 注销客户端（支持多设备）
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()

	if userClients, exists := h.Clients[client.UserID]; exists {
		if _, found := userClients[client.ID]; found {
			delete(userClients, client.ID)

			// 如果用户没有任何连接了，删除整个 userID 的 map
			if len(userClients) == 0 {
				delete(h.Clients, client.UserID)

				if h.rdb != nil {
					ctx := context.Background()
					h.rdb.Del(ctx, "online:"+client.UserID.String())
				}

				log.Printf("User %s disconnected (client: %s), all devices offline", client.UserID, client.ID)
			} else {
				log.Printf("User %s disconnected (client: %s), remaining devices: %d",
					client.UserID, client.ID, len(userClients))
			}
		}
	}

	h.mu.Unlock()

	// 安全关闭 Send channel
	client.mu.Lock()
	if !client.closed {
		close(client.Send)
		client.closed = true
	}
	client.mu.Unlock()
}

// SendToUser 发送消息给指定用户的所有设备
func (h *Hub) SendToUser(userID uuid.UUID, message []byte) bool {
	h.mu.RLock()
	userClients, exists := h.Clients[userID]
	if !exists || len(userClients) == 0 {
		h.mu.RUnlock()
		// 用户不在线（正常情况，不记录）：通知已落库，下次轮询可查
		return false
	}

	// 复制一份 client 列表，避免在遍历时发生并发修改 panic
	clientsCopy := make([]*Client, 0, len(userClients))
	for _, client := range userClients {
		clientsCopy = append(clientsCopy, client)
	}
	h.mu.RUnlock()

	sentToAny := false
	for _, client := range clientsCopy {
		select {
		case client.Send <- message:
			sentToAny = true
		default:
			// 发送通道满了，关闭该设备连接
			log.Printf("[ERROR] Send channel FULL: user=%s, client=%s, closing connection", userID, client.ID)
			go h.Unregister(client)
		}
	}

	return sentToAny
}

// validEventName 事件名必须非空且不含空白/控制字符
func validEventName(event string) bool {
	if event == "" {
		return false
	}
	for _, r := range event {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// EmitToUser 向指定用户推送一个具名事件
// 事件名非法时快速失败，而不是把请求悄悄吞掉；
// 用户离线不算错误（fan-out 的投递失败永远不升级为触发写的失败）
func (h *Hub) EmitToUser(userID uuid.UUID, event string, payload interface{}) error {
	if !validEventName(event) {
		return utils.ValidationError("invalid event name")
	}

	envelope := map[string]interface{}{
		"type": event,
		"data": payload,
	}
	msgBytes, err := json.Marshal(envelope)
	if err != nil {
		return utils.ValidationError("event payload is not serializable")
	}

	// 先尝试本地发送，再发布到 Redis 让其他 Pod 也能推送
	h.SendToUser(userID, msgBytes)
	h.publishBroadcast(userID, msgBytes)
	return nil
}

// EmitToAll 向所有在线用户推送一个具名事件（系统公告类）
func (h *Hub) EmitToAll(event string, payload interface{}) error {
	if !validEventName(event) {
		return utils.ValidationError("invalid event name")
	}

	envelope := map[string]interface{}{
		"type": event,
		"data": payload,
	}
	msgBytes, err := json.Marshal(envelope)
	if err != nil {
		return utils.ValidationError("event payload is not serializable")
	}

	h.mu.RLock()
	userIDs := make([]uuid.UUID, 0, len(h.Clients))
	for userID := range h.Clients {
		userIDs = append(userIDs, userID)
	}
	h.mu.RUnlock()

	for _, userID := range userIDs {
		h.SendToUser(userID, msgBytes)
	}
	return nil
}

// publishBroadcast 发布到 Redis，让其他 Pod 上的连接也收到
func (h *Hub) publishBroadcast(userID uuid.UUID, message []byte) {
	if h.rdb == nil {
		return
	}

	broadcastMsg := BroadcastMessage{
		UserID:  userID.String(),
		PodID:   h.podID,
		Payload: message,
	}
	msgBytes, err := json.Marshal(broadcastMsg)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal broadcast message: %v", err)
		return
	}

	ctx := context.Background()
	if err := h.rdb.Publish(ctx, redisBroadcastChannel, msgBytes).Err(); err != nil {
		log.Printf("[ERROR] Failed to publish to Redis: %v", err)
	}
}

// StartPubSub 启动 Redis Pub/Sub 订阅（跨 Pod 消息广播）
// 进程生命周期内只生效一次，重复调用记日志并忽略
func (h *Hub) StartPubSub() {
	alreadyStarted := true
	h.startOnce.Do(func() {
		alreadyStarted = false
		h.started = true

		if h.rdb == nil {
			log.Printf("[WARN] Hub has no Redis client, cross-pod broadcast disabled")
			return
		}

		go func() {
			ctx := context.Background()
			pubsub := h.rdb.Subscribe(ctx, redisBroadcastChannel)
			defer pubsub.Close()

			log.Printf("Pod %s started Redis Pub/Sub subscription", h.podID[:8])

			ch := pubsub.Channel()
			for {
				select {
				case <-h.stopPubSub:
					log.Printf("Pod %s stopping Redis Pub/Sub subscription", h.podID[:8])
					return
				case msg := <-ch:
					if msg == nil {
						continue
					}
					h.handleBroadcastMessage([]byte(msg.Payload))
				}
			}
		}()
	})

	if alreadyStarted {
		log.Printf("[WARN] Hub already started, ignoring repeated StartPubSub call")
	}
}

// StopPubSub 停止 Redis Pub/Sub 订阅
func (h *Hub) StopPubSub() {
	close(h.stopPubSub)
}

// handleBroadcastMessage 处理来自 Redis 的广播消息
func (h *Hub) handleBroadcastMessage(data []byte) {
	var msg BroadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[ERROR] Failed to unmarshal broadcast message: %v", err)
		return
	}

	// 忽略自己发的消息（避免重复推送）
	if msg.PodID == h.podID {
		return
	}

	userID, err := uuid.Parse(msg.UserID)
	if err != nil {
		log.Printf("[ERROR] Invalid user ID in broadcast message: %v", err)
		return
	}

	h.SendToUser(userID, msg.Payload)
}

// IsUserOnline 检查用户是否在线（至少有一个设备在线）
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	userClients, exists := h.Clients[userID]
	return exists && len(userClients) > 0
}

// HandleWebSocket WebSocket 连接入口（token 认证，不走 HTTP 中间件）
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			utils.Unauthorized(c, "missing token")
			return
		}

		userID, err := middleware.ValidateToken(tokenString)
		if err != nil {
			utils.Unauthorized(c, "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ERROR] WebSocket upgrade failed for user %s: %v", userID, err)
			return
		}

		client := &Client{
			ID:     uuid.New(),
			UserID: userID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
			Hub:    hub,
		}

		hub.Register(client)

		go client.readPump()
		go client.writePump()
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// readPump 读取循环：本服务的推送是单向的，客户端上行只处理心跳
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(1024)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WARN] WebSocket read error for user %s: %v", c.UserID, err)
			}
			return
		}
	}
}

// writePump 写入循环：把 Send channel 里的消息写出去，定期 ping 保活
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了 Send channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
