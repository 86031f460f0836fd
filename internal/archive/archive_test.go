package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentchat/agentchat/internal/domain"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestUpsertAndGetSession(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	rec := &SessionRecord{ID: "sess_1", AgentName: "root", Title: "First try"}
	require.NoError(t, a.UpsertSession(ctx, rec))

	got, err := a.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "First try", got.Title)
	assert.False(t, got.ToolsApproved)

	// Upsert again with new title and token totals.
	rec.Title = "Renamed"
	rec.InputTokens = 100
	rec.OutputTokens = 50
	rec.ToolsApproved = true
	require.NoError(t, a.UpsertSession(ctx, rec))

	got, err = a.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 100, got.InputTokens)
	assert.True(t, got.ToolsApproved)
}

func TestGetSessionMissing(t *testing.T) {
	a := newTestArchive(t)

	got, err := a.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveAndGetMessages(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.UpsertSession(ctx, &SessionRecord{ID: "sess_1", AgentName: "root"}))

	msgs := []domain.Message{
		{ID: "msg_1", Role: domain.RoleUser, Content: "hello", Timestamp: time.Now()},
		{
			ID:      "msg_2",
			Role:    domain.RoleAssistant,
			Content: "thinking. hi",
			ContentParts: []domain.ContentPart{
				{Kind: domain.SegmentReasoning, Text: "thinking. "},
				{Kind: domain.SegmentFinal, Text: "hi"},
			},
			AgentName: "root",
			Tokens:    &domain.TokenDelta{Input: 10, Output: 4},
			Timestamp: time.Now(),
		},
	}
	require.NoError(t, a.SaveMessages(ctx, "sess_1", msgs))

	got, err := a.GetMessages(ctx, "sess_1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.RoleUser, got[0].Role)
	assert.Equal(t, "hello", got[0].Content)
	require.Len(t, got[1].ContentParts, 2)
	assert.Equal(t, domain.SegmentReasoning, got[1].ContentParts[0].Kind)
	require.NotNil(t, got[1].Tokens)
	assert.Equal(t, 10, got[1].Tokens.Input)
}

func TestSaveMessagesReplaces(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.UpsertSession(ctx, &SessionRecord{ID: "sess_1", AgentName: "root"}))
	require.NoError(t, a.SaveMessages(ctx, "sess_1", []domain.Message{
		{ID: "msg_1", Role: domain.RoleUser, Content: "v1", Timestamp: time.Now()},
	}))
	require.NoError(t, a.SaveMessages(ctx, "sess_1", []domain.Message{
		{ID: "msg_1", Role: domain.RoleUser, Content: "v2", Timestamp: time.Now()},
		{ID: "msg_2", Role: domain.RoleAssistant, Content: "reply", Timestamp: time.Now()},
	}))

	got, err := a.GetMessages(ctx, "sess_1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "v2", got[0].Content)
}

func TestListSessions(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.UpsertSession(ctx, &SessionRecord{ID: "sess_1", AgentName: "root"}))
	require.NoError(t, a.UpsertSession(ctx, &SessionRecord{ID: "sess_2", AgentName: "helper"}))

	records, err := a.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDeleteSession(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.UpsertSession(ctx, &SessionRecord{ID: "sess_1", AgentName: "root"}))
	require.NoError(t, a.SaveMessages(ctx, "sess_1", []domain.Message{
		{ID: "msg_1", Role: domain.RoleUser, Content: "hi", Timestamp: time.Now()},
	}))

	require.NoError(t, a.DeleteSession(ctx, "sess_1"))

	got, err := a.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	assert.Nil(t, got)

	msgs, err := a.GetMessages(ctx, "sess_1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
