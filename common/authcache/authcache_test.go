package authcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckMissOnEmptyCache(t *testing.T) {
	c := New(4, time.Minute)

	_, ok := c.Check(NamespaceManage, "key-a")
	require.False(t, ok)
}

func TestSetThenCheck(t *testing.T) {
	c := New(4, time.Minute)

	c.Set(NamespaceManage, "key-a", "acct-1", time.Minute)
	got, ok := c.Check(NamespaceManage, "key-a")
	require.True(t, ok)
	require.Equal(t, "acct-1", got)
}

func TestNamespacesAreDisjoint(t *testing.T) {
	c := New(4, time.Minute)

	c.Set(NamespaceManage, "shared-key", "acct-manage", time.Minute)
	_, ok := c.Check(NamespaceModel, "shared-key")
	require.False(t, ok)

	c.Set(NamespaceModel, "shared-key", "acct-model", time.Minute)
	got, ok := c.Check(NamespaceManage, "shared-key")
	require.True(t, ok)
	require.Equal(t, "acct-manage", got)

	// A local pair verdict must never read back as a remote one.
	c.Set(NamespaceLocal, "pair-key", "uk", time.Minute)
	_, ok = c.Check(NamespaceModel, "pair-key")
	require.False(t, ok)
}

func TestExpiredEntryIsNeverReturned(t *testing.T) {
	c := New(4, time.Minute)

	c.Set(NamespaceModel, "key-a", "acct-1", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Check(NamespaceModel, "key-a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len(NamespaceModel))
}

func TestCapacityNeverExceeded(t *testing.T) {
	const capacity = 8
	c := New(capacity, time.Minute)

	for i := 0; i < capacity*4; i++ {
		c.Set(NamespaceModel, fmt.Sprintf("key-%d", i), "acct", time.Minute)
		require.LessOrEqual(t, c.Len(NamespaceModel), capacity)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(2, time.Minute)

	c.Set(NamespaceManage, "old", "acct-old", time.Minute)
	c.Set(NamespaceManage, "warm", "acct-warm", time.Minute)

	// Touch "old" so "warm" becomes the eviction candidate.
	_, ok := c.Check(NamespaceManage, "old")
	require.True(t, ok)

	c.Set(NamespaceManage, "new", "acct-new", time.Minute)

	_, ok = c.Check(NamespaceManage, "old")
	require.True(t, ok)
	_, ok = c.Check(NamespaceManage, "warm")
	require.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := New(4, time.Minute)

	c.Set(NamespaceManage, "key-a", "acct-1", time.Minute)
	require.True(t, c.Invalidate(NamespaceManage, "key-a"))
	require.False(t, c.Invalidate(NamespaceManage, "key-a"))

	_, ok := c.Check(NamespaceManage, "key-a")
	require.False(t, ok)
}

func TestDefensiveClamping(t *testing.T) {
	c := New(0, 0)

	c.Set(NamespaceManage, "key-a", "acct-1", 0)
	got, ok := c.Check(NamespaceManage, "key-a")
	require.True(t, ok)
	require.Equal(t, "acct-1", got)
}

func TestModelKey(t *testing.T) {
	require.Equal(t, "uk|ak|m", ModelKey("uk", "ak", "m"))
}
