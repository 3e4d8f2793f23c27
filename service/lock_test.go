package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = l.TryLock(ctx, "b", time.Minute)
	assert.True(t, ok)

	release()
	release()
	_, ok, _ = l.TryLock(ctx, "a", time.Minute)
	assert.True(t, ok)
}

func TestLocalLocker_Expiry(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	now := time.Now()
	l.now = func() time.Time { return now }

	staleRelease, ok, _ := l.TryLock(ctx, "a", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = l.TryLock(ctx, "a", time.Minute)
	require.True(t, ok)

	// 过期锁的 release 不能释放新持有者的锁
	staleRelease()
	_, ok, _ = l.TryLock(ctx, "a", time.Minute)
	assert.False(t, ok)
}

func TestNewLocker_FallsBackToLocal(t *testing.T) {
	_, isLocal := NewLocker(nil).(*LocalLocker)
	assert.True(t, isLocal)
}
