package store

import (
	"context"
	"sync"

	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/pkg/llms"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[string][]llms.Message
}

func NewMemoryStore() MessageStore {
	return &inMemory{}
}

func (m *inMemory) Messages(ctx context.Context) []llms.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.storage == nil {
		return nil
	}
	return m.storage[chatmodel.GetChatID(ctx)]
}

func (m *inMemory) Add(ctx context.Context, add ...llms.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string][]llms.Message)
	}
	chatID := chatmodel.GetChatID(ctx)
	msgs := append(m.storage[chatID], add...)
	if len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	m.storage[chatID] = msgs
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage != nil {
		delete(m.storage, chatmodel.GetChatID(ctx))
	}
	return nil
}
