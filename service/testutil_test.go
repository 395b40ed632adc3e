package service

import (
	"sync"
	"testing"

	"orbit_social/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 打开内存数据库并建表
// 内存 SQLite 每个连接是独立的数据库，必须把连接池限制为 1
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Post{},
		&model.Follow{},
		&model.FollowRequest{},
		&model.Block{},
		&model.Mute{},
		&model.Like{},
		&model.Retweet{},
		&model.Comment{},
		&model.Tip{},
		&model.Message{},
		&model.MessageRequest{},
		&model.Notification{},
	))

	return db
}

// createTestUser 创建测试用户
func createTestUser(t *testing.T, db *gorm.DB, privacy string) *model.User {
	t.Helper()

	user := &model.User{
		Username: "user_" + uuid.NewString()[:8],
		Privacy:  privacy,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createTestPost 创建测试帖子
func createTestPost(t *testing.T, db *gorm.DB, authorID uuid.UUID) *model.Post {
	t.Helper()

	post := &model.Post{AuthorID: authorID, Content: "hello"}
	require.NoError(t, db.Create(post).Error)
	return post
}

// newServices 组装一套完整的核心服务（带 fake 推送器）
func newServices(t *testing.T) (*gorm.DB, *RelationshipService, *InteractionService, *MessageService, *NotificationService, *fakeBroadcaster) {
	t.Helper()

	db := newTestDB(t)
	guard := NewVisibilityGuard(db)
	notifSvc := NewNotificationService(db, guard)
	relSvc := NewRelationshipService(db, guard)
	interactionSvc := NewInteractionService(db, guard)
	msgSvc := NewMessageService(db, guard, relSvc)

	broadcaster := newFakeBroadcaster()
	notifSvc.SetBroadcaster(broadcaster)
	relSvc.SetNotificationService(notifSvc)
	interactionSvc.SetNotificationService(notifSvc)
	msgSvc.SetNotificationService(notifSvc)

	return db, relSvc, interactionSvc, msgSvc, notifSvc, broadcaster
}

// fakeBroadcaster 记录推送调用的 fake 实现
// 推送是 fire-and-forget 的 goroutine，测试里用 Eventually 等待
type fakeBroadcaster struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	emits  []fakeEmit
}

type fakeEmit struct {
	UserID  uuid.UUID
	Event   string
	Payload interface{}
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{online: make(map[uuid.UUID]bool)}
}

func (f *fakeBroadcaster) SetOnline(userID uuid.UUID, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = online
}

func (f *fakeBroadcaster) IsUserOnline(userID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakeBroadcaster) EmitToUser(userID uuid.UUID, event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, fakeEmit{UserID: userID, Event: event, Payload: payload})
	return nil
}

// EmitCount 已推送次数
func (f *fakeBroadcaster) EmitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emits)
}

// LastEmit 最近一次推送
func (f *fakeBroadcaster) LastEmit() (fakeEmit, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.emits) == 0 {
		return fakeEmit{}, false
	}
	return f.emits[len(f.emits)-1], true
}
