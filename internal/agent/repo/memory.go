package repo

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/golang/groupcache/lru"

	"github.com/partselect-assistant/server/internal/agent/model"
)

type memoryEntry struct {
	messages []*schema.Message
	touched  time.Time
}

// MemoryConversationRepository keeps conversations in process. Each
// conversation holds at most maxMessages (oldest dropped), the least recently
// used conversation is evicted past maxConversations, and entries idle for
// longer than ttl read as empty.
type MemoryConversationRepository struct {
	mu          sync.Mutex
	cache       *lru.Cache
	maxMessages int
	ttl         time.Duration
	now         func() time.Time
}

func NewMemoryConversationRepository(cfg model.ConversationConfig) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		cache:       lru.New(cfg.MaxConversations),
		maxMessages: cfg.MaxMessages,
		ttl:         cfg.TTL,
		now:         time.Now,
	}
}

// entry returns the live entry for id; expired entries are removed. Callers hold mu.
func (r *MemoryConversationRepository) entry(id string) (*memoryEntry, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	e := v.(*memoryEntry)
	if r.ttl > 0 && r.now().Sub(e.touched) > r.ttl {
		r.cache.Remove(id)
		return nil, false
	}
	return e, true
}

func (r *MemoryConversationRepository) AddMessages(_ context.Context, conversationID string, messages ...*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entry(conversationID)
	if !ok {
		e = &memoryEntry{}
	}
	e.messages = append(e.messages, messages...)
	if r.maxMessages > 0 && len(e.messages) > r.maxMessages {
		e.messages = append([]*schema.Message(nil), e.messages[len(e.messages)-r.maxMessages:]...)
	}
	e.touched = r.now()
	r.cache.Add(conversationID, e)
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := &model.ConversationHistory{ConversationID: conversationID, Messages: []*schema.Message{}}
	if e, ok := r.entry(conversationID); ok {
		h.Messages = append(h.Messages, e.messages...)
	}
	return h, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	r.cache.Remove(conversationID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entry(conversationID); ok {
		return len(e.messages), nil
	}
	return 0, nil
}

// Len reports how many conversations are held.
func (r *MemoryConversationRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
