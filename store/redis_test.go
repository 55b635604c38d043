package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/chatmodel"
	"github.com/nviro-labs/pathway/pkg/llms"
	"github.com/nviro-labs/pathway/store"
)

func newRedisStore(t *testing.T) store.ChatManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.NewRedisStore(client, "test")
}

func Test_RedisStore(t *testing.T) {
	st := newRedisStore(t)

	// no chat ID in context
	ctx := context.Background()
	require.Error(t, st.Add(ctx, llms.MessageFromTextParts(llms.RoleHuman, "Hello")))
	require.Error(t, st.Reset(ctx))
	assert.Empty(t, st.Messages(ctx))

	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("chat1", nil))

	require.NoError(t, st.Add(ctx, llms.MessageFromTextParts(llms.RoleHuman, "Hello")))
	require.NoError(t, st.Add(ctx, llms.MessageFromTextParts(llms.RoleAI, "Hi there!")))

	msgs := st.Messages(ctx)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[0].GetContent())
	assert.Equal(t, "Hi there!", msgs[1].GetContent())

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat1"}, chats)

	require.NoError(t, st.UpdateChat(ctx, "Projects in Atacama", map[string]any{"region": "Atacama"}))
	info, err := st.GetChatInfo(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Projects in Atacama", info.Title)
	assert.Equal(t, "Atacama", info.Metadata["region"])
	assert.Len(t, info.Messages, 2)

	require.NoError(t, st.Reset(ctx))
	assert.Empty(t, st.Messages(ctx))
	chats, err = st.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func Test_RedisStore_Trim(t *testing.T) {
	st := newRedisStore(t)
	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat-trim", nil))

	for i := 0; i < 55; i++ {
		require.NoError(t, st.Add(ctx, llms.MessageFromTextParts(llms.RoleHuman, "msg")))
	}
	assert.Len(t, st.Messages(ctx), 50)
}

func Test_RedisStore_ToolCalls(t *testing.T) {
	st := newRedisStore(t)
	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat-tools", nil))

	call := llms.MessageFromToolCalls(llms.RoleAI, []llms.ToolCall{
		{
			ID:           "call_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "list_regions", Arguments: "{}"},
		},
	}...)
	require.NoError(t, st.Add(ctx, call))

	msgs := st.Messages(ctx)
	require.Len(t, msgs, 1)
	assert.Equal(t, call, msgs[0])
}

func Test_RedisStore_Cleanup(t *testing.T) {
	st := newRedisStore(t)
	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat-old", nil))

	require.NoError(t, st.Add(ctx, llms.MessageFromTextParts(llms.RoleHuman, "old")))

	// nothing old enough yet
	deleted, err := st.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), deleted)

	deleted, err = st.Cleanup(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), deleted)

	chats, err := st.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}
