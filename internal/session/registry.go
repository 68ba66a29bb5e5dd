package session

import (
	"sync"
	"time"

	"github.com/Devifyo/lumina/common"

	"github.com/patrickmn/go-cache"
)

// DefaultID 未指定会话 ID 时使用
const DefaultID = "default"

// Registry 按 ID 管理会话，闲置超时后自动回收
type Registry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	ttl     time.Duration
	factory func(id string) *Session
}

// NewRegistry 创建会话表。idle <= 0 表示永不过期
func NewRegistry(idle time.Duration, factory func(id string) *Session) *Registry {
	ttl := idle
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	cleanup := idle
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}

	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(id string, _ interface{}) {
		common.WithField("session", id).Info("Session removed")
	})
	return &Registry{cache: c, ttl: ttl, factory: factory}
}

// Get 取会话，不存在时创建。每次访问都会刷新过期时间
func (r *Registry) Get(id string) *Session {
	if id == "" {
		id = DefaultID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(id); ok {
		s := v.(*Session)
		r.cache.Set(id, s, r.ttl)
		return s
	}

	s := r.factory(id)
	r.cache.Set(id, s, r.ttl)
	common.WithField("session", id).Debug("Session created")
	return s
}

// Lookup 取已存在的会话
func (r *Registry) Lookup(id string) (*Session, bool) {
	if id == "" {
		id = DefaultID
	}
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Close 删除会话，正在编辑的会话不能删除
func (r *Registry) Close(id string) error {
	if id == "" {
		id = DefaultID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(id); ok && v.(*Session).Snapshot().Editing {
		return ErrBusy
	}
	r.cache.Delete(id)
	return nil
}

// Len 当前会话数量（含尚未清理的过期会话）
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
