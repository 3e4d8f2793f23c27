package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker 按 key 的互斥锁，拿不到锁时立即返回 false
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// NewLocker 配置了 Redis 时使用分布式锁，否则退化为进程内锁
func NewLocker(client *redis.Client) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return &RedisLocker{client: client, prefix: "nullfake:lock:"}
}

// RedisLocker SET NX PX 加锁，按 token 比较后删除
type RedisLocker struct {
	client *redis.Client
	prefix string
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	fullKey := l.prefix + key
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis 加锁失败: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// 请求 ctx 可能已取消，释放锁用独立的超时
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = unlockScript.Run(rctx, l.client, []string{fullKey}, token).Err()
	}
	return release, true, nil
}

// LocalLocker 单进程部署使用
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, false, nil
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// 过期后被别人重新拿到的锁不能删
			if cur, ok := l.held[key]; ok && cur.Equal(expires) {
				delete(l.held, key)
			}
		})
	}
	return release, true, nil
}
