package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/room4-2/aasha/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{SessionTimeout: 30 * time.Minute}
}

// newTestManager creates a Manager backed by a miniredis server.
func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewManagerWithClient(testConfig(), client), mr
}

func TestStartCreatesFreshSession(t *testing.T) {
	sm := NewManagerWithClient(testConfig(), nil)

	cs := sm.Start(context.Background(), "+911234567890")

	assert.Equal(t, StageLanguageSelection, cs.Stage)
	assert.Empty(t, cs.Language)
	assert.Zero(t, cs.QuestionsAsked)
	assert.NotEmpty(t, cs.ID)
	for _, name := range SlotOrder {
		assert.False(t, cs.RequiredInfo.Slot(name).Obtained(), name)
	}
}

func TestStartReplacesInProgressSession(t *testing.T) {
	ctx := context.Background()
	sm := NewManagerWithClient(testConfig(), nil)

	first := sm.Start(ctx, "+911234567890")
	first.Lock()
	first.Stage = StageInformationGathering
	first.Language = English
	first.QuestionsAsked = 2
	first.RequiredInfo.Obtain(SlotLocation, "MG Road")
	first.RequiredInfo.Obtain(SlotEmergencyType, "fire")
	first.Unlock()

	second := sm.Start(ctx, "+911234567890")

	require.NotSame(t, first, second)
	assert.Equal(t, StageLanguageSelection, second.Stage)
	assert.Zero(t, second.QuestionsAsked)
	for _, name := range SlotOrder {
		assert.False(t, second.RequiredInfo.Slot(name).Obtained(), name)
	}
	got, ok := sm.Get("+911234567890")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, sm.GetActiveSessionCount())
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	ctx := context.Background()
	sm := NewManagerWithClient(testConfig(), nil)

	started := sm.Start(ctx, "+15550001")
	assert.Same(t, started, sm.GetOrCreate(ctx, "+15550001"))

	created := sm.GetOrCreate(ctx, "+15550002")
	assert.Equal(t, StageLanguageSelection, created.Stage)
	assert.Equal(t, 2, sm.GetActiveSessionCount())
}

func TestGetMissing(t *testing.T) {
	sm := NewManagerWithClient(testConfig(), nil)
	_, ok := sm.Get("+15550009")
	assert.False(t, ok)

	_, ok = sm.Snapshot(context.Background(), "+15550009")
	assert.False(t, ok)
}

func TestConcurrentCallsFromDifferentNumbers(t *testing.T) {
	ctx := context.Background()
	sm := NewManagerWithClient(testConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			phone := fmt.Sprintf("+1555%04d", i)
			cs := sm.Start(ctx, phone)
			cs.Lock()
			cs.QuestionsAsked++
			cs.Unlock()
			sm.Save(ctx, cs)
			_, _ = sm.Snapshot(ctx, phone)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, sm.GetActiveSessionCount())
}

func TestRedisMirrorAndFallback(t *testing.T) {
	ctx := context.Background()
	sm, mr := newTestManager(t)

	cs := sm.Start(ctx, "+911111111111")
	cs.Lock()
	cs.Stage = StageInformationGathering
	cs.Language = Hindi
	cs.RequiredInfo.Obtain(SlotLocation, "Andheri station")
	cs.Unlock()
	sm.Save(ctx, cs)

	assert.Equal(t, "information_gathering", mr.HGet("call:+911111111111", "stage"))
	members, err := mr.Members("active_calls")
	require.NoError(t, err)
	assert.Contains(t, members, "+911111111111")
	assert.Greater(t, mr.TTL("call:+911111111111"), time.Duration(0))

	// A second manager sharing the Redis instance sees the call through the mirror.
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	other := NewManagerWithClient(testConfig(), client)

	snap, ok := other.Snapshot(ctx, "+911111111111")
	require.True(t, ok)
	assert.Equal(t, cs.ID, snap.CallID)
	assert.Equal(t, StageInformationGathering, snap.Stage)
	assert.Equal(t, "hi-IN", snap.LanguageCode)
	loc := snap.RequiredInfo[SlotLocation]
	require.NotNil(t, loc.Value)
	assert.Equal(t, "Andheri station", *loc.Value)
	assert.Nil(t, snap.RequiredInfo[SlotPeopleInvolved].Value)
}

func TestReplacedSessionDoesNotOverwriteMirror(t *testing.T) {
	ctx := context.Background()
	sm, mr := newTestManager(t)

	old := sm.Start(ctx, "+912222222222")
	fresh := sm.Start(ctx, "+912222222222")

	old.Lock()
	old.Stage = StageOngoingSupport
	old.Unlock()
	sm.Save(ctx, old)

	assert.Equal(t, fresh.ID, mr.HGet("call:+912222222222", "call_id"))
	assert.Equal(t, "language_selection", mr.HGet("call:+912222222222", "stage"))
}

func TestRemoveSession(t *testing.T) {
	ctx := context.Background()
	sm, mr := newTestManager(t)

	sm.Start(ctx, "+913333333333")
	sm.RemoveSession(ctx, "+913333333333")

	_, ok := sm.Get("+913333333333")
	assert.False(t, ok)
	assert.False(t, mr.Exists("call:+913333333333"))
}

func TestCleanupInactiveSessions(t *testing.T) {
	ctx := context.Background()
	sm := NewManagerWithClient(&config.Config{SessionTimeout: time.Minute}, nil)

	idle := sm.Start(ctx, "+15550100")
	sm.Start(ctx, "+15550101")
	idle.lastActivity.Store(time.Now().Add(-2 * time.Minute).UnixNano())

	sm.CleanupInactiveSessions(ctx)

	_, ok := sm.Get("+15550100")
	assert.False(t, ok)
	_, ok = sm.Get("+15550101")
	assert.True(t, ok)
}

func TestOnUpdateReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	sm := NewManagerWithClient(testConfig(), nil)

	var got []Snapshot
	sm.OnUpdate(func(s Snapshot) { got = append(got, s) })

	cs := sm.Start(ctx, "+15550200")
	cs.Lock()
	cs.Stage = StageInformationGathering
	cs.Unlock()
	sm.Save(ctx, cs)

	require.Len(t, got, 2)
	assert.Equal(t, StageLanguageSelection, got[0].Stage)
	assert.Equal(t, StageInformationGathering, got[1].Stage)
}

func TestCleanupInactiveSessionsClearsMirror(t *testing.T) {
	ctx := context.Background()
	sm, mr := newTestManager(t)

	idle := sm.Start(ctx, "+15550110")
	sm.Start(ctx, "+15550111")
	idle.lastActivity.Store(time.Now().Add(-time.Hour).UnixNano())

	sm.CleanupInactiveSessions(ctx)

	assert.False(t, mr.Exists("call:+15550110"))
	assert.True(t, mr.Exists("call:+15550111"))
	members, err := mr.Members("active_calls")
	require.NoError(t, err)
	assert.Equal(t, []string{"+15550111"}, members)
}

// stalledRedis accepts connections and never answers.
func stalledRedis(t *testing.T) *redis.Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, conn)
				conn.Close()
			}()
		}
	}()

	client := redis.NewClient(&redis.Options{
		Addr:        ln.Addr().String(),
		ReadTimeout: time.Second,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCleanupDoesNotHoldLookupsOnSlowRedis(t *testing.T) {
	ctx := context.Background()
	sm := NewManagerWithClient(testConfig(), nil)

	idle := sm.Start(ctx, "+15550112")
	sm.Start(ctx, "+15550113")
	idle.lastActivity.Store(time.Now().Add(-time.Hour).UnixNano())
	sm.redis = stalledRedis(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sm.CleanupInactiveSessions(ctx)
	}()

	start := time.Now()
	require.Eventually(t, func() bool {
		_, ok := sm.Get("+15550112")
		return !ok
	}, 500*time.Millisecond, 5*time.Millisecond)
	_, ok := sm.Get("+15550113")
	assert.True(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("cleanup never returned")
	}
}

func TestShutdownClearsMirror(t *testing.T) {
	ctx := context.Background()
	sm, mr := newTestManager(t)

	sm.Start(ctx, "+15550114")
	sm.Start(ctx, "+15550115")
	require.True(t, mr.Exists("call:+15550114"))

	sm.Shutdown()

	assert.False(t, mr.Exists("call:+15550114"))
	assert.False(t, mr.Exists("call:+15550115"))
	members, _ := mr.Members("active_calls")
	assert.Empty(t, members)
	assert.Zero(t, sm.GetActiveSessionCount())

	// A restarted process sharing the instance reports no call.
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	_, ok := NewManagerWithClient(testConfig(), client).Snapshot(ctx, "+15550114")
	assert.False(t, ok)
}
