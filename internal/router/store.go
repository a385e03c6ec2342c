package router

import (
	"strings"
	"sync"
)

// ChatRef points at one message in one chat.
type ChatRef struct {
	ChatID    int64
	MessageID int64
}

// Store holds the router's correlation state. Implementations must be safe for
// concurrent use.
type Store interface {
	// PutPendingEcho registers the chat echo of an outbound text. A later put
	// for the same text replaces the earlier one.
	PutPendingEcho(text string, ref ChatRef)
	// TakePendingEcho returns and removes the echo registered for text.
	TakePendingEcho(text string) (ChatRef, bool)
	PendingEcho(text string) (ChatRef, bool)

	PutChatMessage(key string, ref ChatRef)
	ChatMessage(key string) (ChatRef, bool)

	PutMailbox(radioID, text string)
	Mailbox(radioID string) (string, bool)
}

// MemoryStore keeps all state in process memory; it is empty after a restart.
type MemoryStore struct {
	mu       sync.Mutex
	pending  map[string]ChatRef
	messages map[string]ChatRef
	mailbox  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending:  map[string]ChatRef{},
		messages: map[string]ChatRef{},
		mailbox:  map[string]string{},
	}
}

func (s *MemoryStore) PutPendingEcho(text string, ref ChatRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[text] = ref
}

func (s *MemoryStore) TakePendingEcho(text string) (ChatRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.pending[text]
	if ok {
		delete(s.pending, text)
	}
	return ref, ok
}

func (s *MemoryStore) PendingEcho(text string) (ChatRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.pending[text]
	return ref, ok
}

func (s *MemoryStore) PutChatMessage(key string, ref ChatRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[key] = ref
}

func (s *MemoryStore) ChatMessage(key string) (ChatRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.messages[key]
	return ref, ok
}

func (s *MemoryStore) PutMailbox(radioID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailbox[strings.TrimSpace(radioID)] = text
}

func (s *MemoryStore) Mailbox(radioID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.mailbox[strings.TrimSpace(radioID)]
	return text, ok
}
