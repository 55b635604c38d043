package store

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"

	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/pkg/llms"
)

// The redis store keeps chat messages and metadata in Redis.
// The keys namespace is organized as follows:
//   - `<prefix>/chatstore/messages/<chatID>` for chat messages
//   - `<prefix>/chatstore/info/<chatID>` for chat metadata
//   - `<prefix>/chatstore/chats` for the set of known chat IDs

type redisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) ChatManager {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) messagesKey(chatID string) string {
	return path.Join(m.prefix, "chatstore", "messages", chatID)
}

func (m *redisStore) chatInfoKey(chatID string) string {
	return path.Join(m.prefix, "chatstore", "info", chatID)
}

func (m *redisStore) chatListKey() string {
	return path.Join(m.prefix, "chatstore", "chats")
}

func (m *redisStore) Messages(ctx context.Context) []llms.Message {
	return ToMessages(m.messages(ctx))
}

func (m *redisStore) messages(ctx context.Context) []MessageModel {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return nil
	}

	data, err := m.client.LRange(ctx, m.messagesKey(chatID), 0, -1).Result()
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "redis_lrange", "err", err.Error())
		return nil
	}

	var messages []MessageModel
	for _, item := range data {
		var msg MessageModel
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal_message", "err", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

func (m *redisStore) Add(ctx context.Context, msgs ...llms.Message) error {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return errors.New("no chat ID in context")
	}
	if len(msgs) == 0 {
		return nil
	}

	key := m.messagesKey(chatID)
	pipe := m.client.Pipeline()
	for _, msg := range msgs {
		data, err := json.Marshal(ToModel(msg))
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		pipe.RPush(ctx, key, data)
	}
	// keep only the most recent messages
	pipe.LTrim(ctx, key, -maxMessages, -1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store message in Redis")
	}

	// touch chat info
	return m.UpdateChat(ctx, "", nil)
}

func (m *redisStore) Reset(ctx context.Context) error {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return errors.New("no chat ID in context")
	}

	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.messagesKey(chatID))
	pipe.Del(ctx, m.chatInfoKey(chatID))
	pipe.SRem(ctx, m.chatListKey(), chatID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}

	return nil
}

// UpdateChat creates or updates the chat metadata for the chat ID from
// context.
func (m *redisStore) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	chat, err := m.getChatInfo(ctx, "")
	if err != nil {
		return err
	}

	if title != "" {
		chat.Title = title
	}
	if metadata != nil {
		if chat.Metadata == nil {
			chat.Metadata = make(map[string]any)
		}
		for k, v := range metadata {
			chat.Metadata[k] = v
		}
	}
	chat.UpdatedAt = time.Now()

	return m.updateChat(ctx, chat, false)
}

func (m *redisStore) updateChat(ctx context.Context, chat *ChatInfo, isNew bool) error {
	chatData, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.chatInfoKey(chat.ChatID), chatData, 0)
	if isNew {
		pipe.SAdd(ctx, m.chatListKey(), chat.ChatID)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store chat info in Redis")
	}

	return nil
}

func (m *redisStore) ListChats(ctx context.Context) ([]string, error) {
	chatIDs, err := m.client.SMembers(ctx, m.chatListKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	return chatIDs, nil
}

func (m *redisStore) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	info, err := m.getChatInfo(ctx, chatID)
	if err != nil {
		return nil, err
	}
	info.Messages = m.messages(ctx)
	return info, nil
}

// returns the chat information without messages, creating it on first
// use
func (m *redisStore) getChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	if chatID == "" {
		chatID = chatmodel.GetChatID(ctx)
	}
	if chatID == "" {
		return nil, errors.New("no chat ID in context")
	}

	data, err := m.client.Get(ctx, m.chatInfoKey(chatID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, errors.Wrap(err, "failed to get chat info from Redis")
		}
		chat := &ChatInfo{
			ChatID:    chatID,
			Title:     "New Chat",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
			Metadata:  make(map[string]any),
		}
		if err := m.updateChat(ctx, chat, true); err != nil {
			return nil, errors.Wrap(err, "failed to initialize new chat info")
		}
		return chat, nil
	}

	chat := &ChatInfo{}
	if err := json.Unmarshal([]byte(data), chat); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat, nil
}

func (m *redisStore) Cleanup(ctx context.Context, olderThan time.Duration) (uint32, error) {
	chatIDs, err := m.client.SMembers(ctx, m.chatListKey()).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	deleted := uint32(0)
	cutoff := time.Now().Add(-olderThan)
	for _, chatID := range chatIDs {
		data, err := m.client.Get(ctx, m.chatInfoKey(chatID)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return 0, errors.Wrap(err, "failed to get chat info")
		}

		var chat ChatInfo
		if err := json.Unmarshal([]byte(data), &chat); err != nil {
			return 0, errors.Wrap(err, "failed to unmarshal chat info")
		}

		if chat.UpdatedAt.Before(cutoff) {
			pipe := m.client.Pipeline()
			pipe.Del(ctx, m.chatInfoKey(chatID))
			pipe.Del(ctx, m.messagesKey(chatID))
			pipe.SRem(ctx, m.chatListKey(), chatID)
			_, err = pipe.Exec(ctx)
			if err != nil {
				return 0, errors.Wrap(err, "failed to delete chat from Redis")
			}
			deleted++
		}
	}
	return deleted, nil
}
