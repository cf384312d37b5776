// ABOUTME: In-memory conversation store keyed by browser session
// ABOUTME: TTL and size bounded, with background expiry; nothing is persisted

package assistant

import (
	"container/list"
	"sync"
	"time"
)

type conversationEntry struct {
	conv     *Conversation
	lastUsed time.Time
	element  *list.Element
}

// ConversationStore keeps one Conversation per session key. Entries idle for
// longer than the TTL are dropped, and the least recently used entry is
// evicted when the store is full.
type ConversationStore struct {
	mu      sync.Mutex
	entries map[string]*conversationEntry
	order   *list.List // keys, least recently used at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// NewConversationStore creates a store and starts its cleanup goroutine.
func NewConversationStore(ttl time.Duration, maxSize int) *ConversationStore {
	s := &ConversationStore{
		entries: make(map[string]*conversationEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Get returns the conversation for key, starting a fresh one if there is
// none or the old one expired.
func (s *ConversationStore) Get(key string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok {
		if now.Sub(e.lastUsed) < s.ttl {
			e.lastUsed = now
			s.order.MoveToBack(e.element)
			return e.conv
		}
		s.removeLocked(key, e)
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	conv := &Conversation{}
	s.entries[key] = &conversationEntry{
		conv:     conv,
		lastUsed: now,
		element:  s.order.PushBack(key),
	}
	return conv
}

// Discard drops the conversation for key.
func (s *ConversationStore) Discard(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		s.removeLocked(key, e)
	}
}

// Len returns the number of live conversations.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// removeLocked must be called with mu held.
func (s *ConversationStore) removeLocked(key string, e *conversationEntry) {
	s.order.Remove(e.element)
	delete(s.entries, key)
}

// evictOldest must be called with mu held.
func (s *ConversationStore) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.entries, key)
}

func (s *ConversationStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expire()
		case <-s.done:
			return
		}
	}
}

func (s *ConversationStore) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if now.Sub(e.lastUsed) >= s.ttl {
			s.removeLocked(key, e)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *ConversationStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.done)
		s.closed = true
	}
}
