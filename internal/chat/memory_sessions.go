package chat

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemorySessionStore はgo-cacheを使用したインプロセスのセッションストア。
// TTLを過ぎたセッションは自動的に破棄され、次のイベントで
// StartRegisterから再開する。
type MemorySessionStore struct {
	cache *gocache.Cache
}

// NewMemorySessionStore はMemorySessionStoreを生成する。
// ttlはセッションの有効期限、cleanupIntervalは期限切れエントリの回収間隔。
func NewMemorySessionStore(ttl, cleanupInterval time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		cache: gocache.New(ttl, cleanupInterval),
	}
}

func sessionKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// GetOrDefault はセッションを取得する。存在しない場合は初期状態を返す。
func (s *MemorySessionStore) GetOrDefault(chatID int64) Session {
	if v, ok := s.cache.Get(sessionKey(chatID)); ok {
		return v.(Session)
	}
	return Session{State: StateStartRegister}
}

// Put はセッションを保存し、有効期限をリセットする。
func (s *MemorySessionStore) Put(chatID int64, sess Session) {
	s.cache.SetDefault(sessionKey(chatID), sess)
}

// Delete はセッションを破棄する。
func (s *MemorySessionStore) Delete(chatID int64) {
	s.cache.Delete(sessionKey(chatID))
}

// compile-time interface check
var _ SessionStore = (*MemorySessionStore)(nil)
