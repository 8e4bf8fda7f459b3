package writelock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadonlyNeverBlocks(t *testing.T) {
	c := New()
	ran := false
	err := c.Acquire(1, KindReadOnly, func() error { ran = true; return nil })
	require.NoError(t, err)
	assert.True(t, ran, "readonly fn did not run")
}

func TestBeginClaimsAndCommitReleases(t *testing.T) {
	c := New()
	require.NoError(t, c.Acquire(1, KindBegin, func() error { return nil }))

	h, ok := c.Holder()
	require.True(t, ok)
	assert.Equal(t, HolderID(1), h)

	require.NoError(t, c.Acquire(1, KindCommit, func() error { return nil }))
	_, ok = c.Holder()
	assert.False(t, ok, "expected no holder after commit")
}

func TestWriteDoesNotClaimSlot(t *testing.T) {
	c := New()
	require.NoError(t, c.Acquire(1, KindWrite, func() error { return nil }))
	_, ok := c.Holder()
	assert.False(t, ok, "plain write must not claim the slot")
}

func TestOtherSessionWriteBlocksUntilNone(t *testing.T) {
	c := New()
	require.NoError(t, c.Acquire(1, KindBegin, func() error { return nil }))

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		c.Acquire(2, KindWrite, func() error {
			record("other-write")
			return nil
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	blocked := len(order) == 0
	mu.Unlock()
	assert.True(t, blocked, "other session's write ran before holder released the slot")

	record("commit")
	require.NoError(t, c.Acquire(1, KindCommit, func() error { return nil }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("other session's write never ran after release")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"commit", "other-write"}, order)
}

func TestReleaseOnDestroyClearsSlot(t *testing.T) {
	c := New()
	require.NoError(t, c.Acquire(5, KindBegin, func() error { return nil }))
	c.Release(5)
	_, ok := c.Holder()
	assert.False(t, ok, "expected slot cleared after Release")
}

func TestTransactionAffinityKeepsSlotAcrossStatements(t *testing.T) {
	c := New()
	require.NoError(t, c.Acquire(1, KindBegin, func() error { return nil }))
	require.NoError(t, c.Acquire(1, KindWrite, func() error { return nil }))

	h, ok := c.Holder()
	require.True(t, ok, "holder lost affinity mid-transaction")
	assert.Equal(t, HolderID(1), h)
}
