package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/room4-2/aasha/config"
	"github.com/room4-2/aasha/metrics"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "call:"
	redisActiveCalls = "active_calls"

	shutdownRedisWait = 2 * time.Second
)

// Manager is the process-wide store of call sessions keyed by phone number.
type Manager struct {
	sessions  map[string]*CallSession
	mu        sync.RWMutex
	redis     *redis.Client
	config    *config.Config
	listeners []func(Snapshot)
}

// NewManager creates a session manager with an optional Redis mirror
func NewManager(cfg *config.Config) (*Manager, error) {
	// Try to connect to Redis, but don't fail if unavailable
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unavailable at %s, sessions stay in memory only: %v", cfg.RedisURL, err)
		redisClient.Close()
		redisClient = nil
	}

	return NewManagerWithClient(cfg, redisClient), nil
}

// NewManagerWithClient creates a manager around an existing Redis client. A nil
// client disables mirroring.
func NewManagerWithClient(cfg *config.Config, client *redis.Client) *Manager {
	return &Manager{
		sessions: make(map[string]*CallSession),
		redis:    client,
		config:   cfg,
	}
}

// OnUpdate registers a callback invoked with a fresh snapshot whenever a session
// is created or saved. Register listeners before serving traffic.
func (sm *Manager) OnUpdate(fn func(Snapshot)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

// Start begins a new call for phoneNumber. Any session already held for the
// number is replaced, progress included.
func (sm *Manager) Start(ctx context.Context, phoneNumber string) *CallSession {
	sm.mu.Lock()
	if prev, exists := sm.sessions[phoneNumber]; exists {
		log.Printf("⚠️ [%s] New call from %s replaces an unfinished session", prev.ShortID(), phoneNumber)
	} else {
		metrics.CallsActive.Inc()
	}
	session := NewCallSession(phoneNumber)
	sm.sessions[phoneNumber] = session
	sm.mu.Unlock()

	metrics.CallsTotal.Inc()
	sm.Save(ctx, session)
	return session
}

// GetOrCreate returns the session for phoneNumber, creating a fresh one if the
// number has none.
func (sm *Manager) GetOrCreate(ctx context.Context, phoneNumber string) *CallSession {
	sm.mu.RLock()
	session, exists := sm.sessions[phoneNumber]
	sm.mu.RUnlock()
	if exists {
		return session
	}

	sm.mu.Lock()
	// Another request may have created it in between.
	if session, exists = sm.sessions[phoneNumber]; exists {
		sm.mu.Unlock()
		return session
	}
	session = NewCallSession(phoneNumber)
	sm.sessions[phoneNumber] = session
	metrics.CallsActive.Inc()
	sm.mu.Unlock()

	sm.Save(ctx, session)
	return session
}

// Get retrieves the session for phoneNumber
func (sm *Manager) Get(phoneNumber string) (*CallSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[phoneNumber]
	return session, exists
}

// Save publishes the session's current state to the Redis mirror and to
// listeners. It takes the session lock, so callers must have released it.
func (sm *Manager) Save(ctx context.Context, session *CallSession) {
	snap := session.Snapshot()

	sm.mu.RLock()
	current := sm.sessions[snap.PhoneNumber] == session
	listeners := sm.listeners
	sm.mu.RUnlock()

	// A replaced session must not overwrite its successor in Redis.
	if current {
		sm.mirror(ctx, snap)
	}
	for _, fn := range listeners {
		fn(snap)
	}
}

func (sm *Manager) mirror(ctx context.Context, snap Snapshot) {
	if sm.redis == nil {
		return
	}
	data, err := sonic.MarshalString(snap)
	if err != nil {
		log.Printf("❌ [%s] Failed to encode snapshot: %v", shortID(snap.CallID), err)
		return
	}

	key := redisKeyPrefix + snap.PhoneNumber
	pipe := sm.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"call_id":    snap.CallID,
		"stage":      string(snap.Stage),
		"snapshot":   data,
		"updated_at": time.Now().Format(time.RFC3339),
	})
	pipe.SAdd(ctx, redisActiveCalls, snap.PhoneNumber)
	pipe.Expire(ctx, key, sm.config.SessionTimeout)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("⚠️ [%s] Redis mirror failed: %v", shortID(snap.CallID), err)
	}
}

// Snapshot returns the status view of the call for phoneNumber. Numbers not held
// in memory are looked up in the Redis mirror.
func (sm *Manager) Snapshot(ctx context.Context, phoneNumber string) (Snapshot, bool) {
	if session, exists := sm.Get(phoneNumber); exists {
		return session.Snapshot(), true
	}
	if sm.redis == nil {
		return Snapshot{}, false
	}

	data, err := sm.redis.HGet(ctx, redisKeyPrefix+phoneNumber, "snapshot").Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("⚠️ Redis lookup for %s failed: %v", phoneNumber, err)
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := sonic.UnmarshalString(data, &snap); err != nil {
		log.Printf("⚠️ Corrupt snapshot in Redis for %s: %v", phoneNumber, err)
		return Snapshot{}, false
	}
	return snap, true
}

// RemoveSession drops the session for phoneNumber
func (sm *Manager) RemoveSession(ctx context.Context, phoneNumber string) {
	sm.mu.Lock()
	removed := sm.dropLocked(phoneNumber)
	sm.mu.Unlock()

	if removed {
		sm.forget(ctx, phoneNumber)
	}
}

// dropLocked removes phoneNumber from memory. The caller holds sm.mu.
func (sm *Manager) dropLocked(phoneNumber string) bool {
	if _, exists := sm.sessions[phoneNumber]; !exists {
		return false
	}
	delete(sm.sessions, phoneNumber)
	metrics.CallsActive.Dec()
	return true
}

// forget deletes the Redis mirror of the given numbers. It must not be called
// with sm.mu held.
func (sm *Manager) forget(ctx context.Context, phoneNumbers ...string) {
	if sm.redis == nil || len(phoneNumbers) == 0 {
		return
	}

	keys := make([]string, 0, len(phoneNumbers))
	members := make([]interface{}, 0, len(phoneNumbers))
	for _, phone := range phoneNumbers {
		keys = append(keys, redisKeyPrefix+phone)
		members = append(members, phone)
	}

	pipe := sm.redis.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, redisActiveCalls, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("⚠️ Redis cleanup of %d calls failed: %v", len(phoneNumbers), err)
	}
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions removes sessions that have been inactive
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	var idle []string

	sm.mu.Lock()
	now := time.Now()
	for phone, session := range sm.sessions {
		if now.Sub(session.LastActivity()) > sm.config.SessionTimeout {
			log.Printf("🧹 [%s] Evicting idle call from %s", session.ShortID(), phone)
			sm.dropLocked(phone)
			idle = append(idle, phone)
		}
	}
	sm.mu.Unlock()

	sm.forget(ctx, idle...)
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown drops all sessions and their Redis mirror, so status queries stop
// reporting calls this process can no longer serve.
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	phones := make([]string, 0, len(sm.sessions))
	for phone := range sm.sessions {
		sm.dropLocked(phone)
		phones = append(phones, phone)
	}
	sm.mu.Unlock()

	if sm.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownRedisWait)
	defer cancel()
	sm.forget(ctx, phones...)
	sm.redis.Close()
}

func shortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
