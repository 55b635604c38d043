package chatmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatContext_Basics(t *testing.T) {
	t.Parallel()
	c := NewChatContext("cid", 123)
	require.NotNil(t, c)
	assert.Equal(t, "cid", c.GetChatID())
	assert.Equal(t, 123, c.AppData())

	// Metadata
	val, ok := c.GetMetadata("not-found")
	assert.Nil(t, val)
	assert.False(t, ok)
	c.SetMetadata("foo", 1)
	v, ok := c.GetMetadata("foo")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestNewChatContext_DefaultID(t *testing.T) {
	t.Parallel()
	c := NewChatContext("", nil)
	require.NotNil(t, c)
	assert.NotEmpty(t, c.GetChatID())
}

func TestContextPlumbing(t *testing.T) {
	t.Parallel()
	c := NewChatContext("y", nil)
	ctx := WithChatContext(context.Background(), c)
	assert.Equal(t, c, GetChatContext(ctx))
	assert.Equal(t, "y", GetChatID(ctx))

	// Context without a chat context
	assert.Nil(t, GetChatContext(context.Background()))
	assert.Empty(t, GetChatID(context.Background()))
}

func TestNewChatID_Unique(t *testing.T) {
	id1 := NewChatID()
	id2 := NewChatID()
	assert.NotEqual(t, id1, id2)
}

func TestStringify(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "text", Stringify(NewString("text")))
	assert.Equal(t, "a question", Stringify(InputRequest{Input: "a question"}))
	assert.Equal(t, `{"content":"done"}`, Stringify(struct {
		Content string `json:"content"`
	}{Content: "done"}))

	assert.Equal(t, []byte("an answer"), ToBytes(OutputResult{Content: "an answer"}))
}

func TestString_Unmarshal(t *testing.T) {
	t.Parallel()
	var s String
	require.NoError(t, s.Unmarshal([]byte(`"quoted"`)))
	assert.Equal(t, "quoted", s.String())
	assert.Equal(t, []byte("quoted"), s.Bytes())
	assert.Equal(t, "quoted", s.GetContent())
}
