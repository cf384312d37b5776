// ABOUTME: Tests for the in-memory conversation store
// ABOUTME: Covers reuse, expiry, eviction, discard and concurrent access

package assistant

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestConversations(t *testing.T, ttl time.Duration, size int) (*ConversationStore, *time.Time) {
	t.Helper()
	s := NewConversationStore(ttl, size)
	t.Cleanup(s.Close)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestConversationStore_Reuse(t *testing.T) {
	s, _ := newTestConversations(t, time.Hour, 10)

	a := s.Get("sess-a")
	a.append(Turn{Role: RoleUser, Content: "hello"})
	assert.Same(t, a, s.Get("sess-a"))
	assert.NotSame(t, a, s.Get("sess-b"))
	assert.Equal(t, 2, s.Len())
}

func TestConversationStore_Expiry(t *testing.T) {
	s, now := newTestConversations(t, time.Hour, 10)

	a := s.Get("sess-a")
	*now = now.Add(2 * time.Hour)
	assert.NotSame(t, a, s.Get("sess-a"), "expired conversation starts fresh")

	s.Get("sess-b")
	*now = now.Add(2 * time.Hour)
	s.expire()
	assert.Equal(t, 0, s.Len())
}

func TestConversationStore_Eviction(t *testing.T) {
	s, now := newTestConversations(t, time.Hour, 2)

	a := s.Get("a")
	*now = now.Add(time.Second)
	s.Get("b")
	*now = now.Add(time.Second)
	s.Get("a") // touch a so b is the oldest
	*now = now.Add(time.Second)
	s.Get("c")

	assert.Equal(t, 2, s.Len())
	assert.Same(t, a, s.Get("a"))
}

func TestConversationStore_Discard(t *testing.T) {
	s, _ := newTestConversations(t, time.Hour, 10)

	a := s.Get("sess")
	a.append(Turn{Role: RoleUser, Content: "secret plans"})
	s.Discard("sess")
	s.Discard("never-existed")

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Get("sess").Turns())
}

func TestConversationStore_Concurrent(t *testing.T) {
	s := NewConversationStore(time.Hour, 50)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("s%d", i%5)
			s.Get(key).append(Turn{Role: RoleUser, Content: key})
			if i%7 == 0 {
				s.Discard(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 5)
}

func TestConversationStore_CloseTwice(t *testing.T) {
	s := NewConversationStore(time.Minute, 1)
	s.Close()
	s.Close()
}
