// Package conversations mediates between the agents and the history store.
package conversations

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/model"
)

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxMessages      int

	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxMessages:      config.MaxMessages,
		locks:            make(map[string]*keyedLock),
	}
}

// History returns the most recent stored turns for conversationID, oldest first.
func (cm *MessagesManager) History(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return trimTail(history.Messages, cm.maxMessages), nil
}

// SaveTurn appends one user message and the assistant reply.
func (cm *MessagesManager) SaveTurn(ctx context.Context, conversationID, userText, assistantText string) error {
	if strings.TrimSpace(userText) == "" || strings.TrimSpace(assistantText) == "" {
		return nil
	}
	return cm.conversationRepo.AddMessages(ctx, conversationID,
		schema.UserMessage(userText),
		schema.AssistantMessage(assistantText, nil),
	)
}

// Clear drops the stored history for conversationID.
func (cm *MessagesManager) Clear(ctx context.Context, conversationID string) error {
	return cm.conversationRepo.ClearHistory(ctx, conversationID)
}

// Lock serializes work on one conversation and returns the unlock function.
// It gives up with ctx's error if ctx ends while waiting. Lock entries are
// released once no request holds or waits on them.
func (cm *MessagesManager) Lock(ctx context.Context, conversationID string) (func(), error) {
	cm.mu.Lock()
	l, ok := cm.locks[conversationID]
	if !ok {
		l = &keyedLock{sem: make(chan struct{}, 1)}
		cm.locks[conversationID] = l
	}
	l.refs++
	cm.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		cm.release(conversationID, l)
		return nil, ctx.Err()
	}
	return func() {
		<-l.sem
		cm.release(conversationID, l)
	}, nil
}

func (cm *MessagesManager) release(conversationID string, l *keyedLock) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(cm.locks, conversationID)
	}
}

func (cm *MessagesManager) activeLocks() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.locks)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
