package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentchat/agentchat/internal/domain"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	tr := New()
	tr.Append(domain.Message{Role: domain.RoleUser, Content: "hi"})

	require.Equal(t, 1, tr.Len())
	msg := tr.Latest()
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestAppendToLatestSegmentStartsAssistantMessage(t *testing.T) {
	tr := New()
	tr.AppendToLatestSegment(domain.SegmentFinal, "hello", "root")

	require.Equal(t, 1, tr.Len())
	msg := tr.Latest()
	assert.Equal(t, domain.RoleAssistant, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "root", msg.AgentName)
	require.Len(t, msg.ContentParts, 1)
	assert.Equal(t, domain.SegmentFinal, msg.ContentParts[0].Kind)
}

func TestAppendToLatestSegmentMergesSameKind(t *testing.T) {
	tr := New()
	tr.AppendToLatestSegment(domain.SegmentFinal, "hel", "root")
	tr.AppendToLatestSegment(domain.SegmentFinal, "lo", "root")

	require.Equal(t, 1, tr.Len())
	msg := tr.Latest()
	assert.Equal(t, "hello", msg.Content)
	require.Len(t, msg.ContentParts, 1)
	assert.Equal(t, "hello", msg.ContentParts[0].Text)
}

func TestAppendToLatestSegmentFinalAfterReasoningStartsNewMessage(t *testing.T) {
	tr := New()
	tr.AppendToLatestSegment(domain.SegmentReasoning, "thinking", "root")
	tr.AppendToLatestSegment(domain.SegmentFinal, "answer", "root")

	require.Equal(t, 2, tr.Len())
	msgs := tr.Messages()
	assert.Equal(t, "thinking", msgs[0].Content)
	assert.Equal(t, "answer", msgs[1].Content)
	assert.Equal(t, domain.SegmentFinal, msgs[1].ContentParts[0].Kind)
}

func TestAppendToLatestSegmentReasoningAfterFinalStaysOnMessage(t *testing.T) {
	tr := New()
	tr.AppendToLatestSegment(domain.SegmentFinal, "partial answer. ", "root")
	tr.AppendToLatestSegment(domain.SegmentReasoning, "more thinking", "root")

	require.Equal(t, 1, tr.Len())
	msg := tr.Latest()
	require.Len(t, msg.ContentParts, 2)
	assert.Equal(t, "partial answer. more thinking", msg.Content)
}

func TestAppendToLatestSegmentAgentChangeStartsNewMessage(t *testing.T) {
	tr := New()
	tr.AppendToLatestSegment(domain.SegmentFinal, "handing off", "root")
	tr.AppendToLatestSegment(domain.SegmentFinal, "taking over", "worker")

	require.Equal(t, 2, tr.Len())
	msgs := tr.Messages()
	assert.Equal(t, "root", msgs[0].AgentName)
	assert.Equal(t, "worker", msgs[1].AgentName)
}

func TestAppendToLatestSegmentAfterUserMessage(t *testing.T) {
	tr := New()
	tr.Append(domain.Message{Role: domain.RoleUser, Content: "question"})
	tr.AppendToLatestSegment(domain.SegmentFinal, "answer", "root")

	require.Equal(t, 2, tr.Len())
	assert.Equal(t, domain.RoleAssistant, tr.Latest().Role)
}

func TestAppendToLatestSegmentPlaceholderMessage(t *testing.T) {
	// An empty assistant placeholder has no parts yet; the first chunk
	// should fill it rather than open a second message.
	tr := New()
	tr.Append(domain.Message{Role: domain.RoleAssistant})
	tr.AppendToLatestSegment(domain.SegmentFinal, "filled in", "root")

	require.Equal(t, 1, tr.Len())
	assert.Equal(t, "filled in", tr.Latest().Content)
}

func TestAppendToLatestSegmentContentMatchesParts(t *testing.T) {
	tr := New()
	tr.AppendToLatestSegment(domain.SegmentFinal, "a", "root")
	tr.AppendToLatestSegment(domain.SegmentReasoning, "b", "root")
	tr.AppendToLatestSegment(domain.SegmentReasoning, "c", "root")

	msg := tr.Latest()
	var joined string
	for _, p := range msg.ContentParts {
		joined += p.Text
	}
	assert.Equal(t, joined, msg.Content)
}

func TestAppendToLatestTextNoOpOnEmpty(t *testing.T) {
	tr := New()
	tr.AppendToLatestText("orphan")
	assert.Equal(t, 0, tr.Len())
}

func TestReplaceLatest(t *testing.T) {
	tr := New()
	tr.Append(domain.Message{Role: domain.RoleAssistant, Content: "draft"})
	tr.ReplaceLatest(domain.Message{Role: domain.RoleAssistant, Content: "final"})

	require.Equal(t, 1, tr.Len())
	assert.Equal(t, "final", tr.Latest().Content)

	empty := New()
	empty.ReplaceLatest(domain.Message{Content: "ignored"})
	assert.Equal(t, 0, empty.Len())
}

func TestStampTokens(t *testing.T) {
	tr := New()
	tr.AppendToLatestSegment(domain.SegmentFinal, "answer", "root")

	tr.StampTokens(domain.TokenDelta{Input: 12, Output: 34})

	msg := tr.Latest()
	require.NotNil(t, msg.Tokens)
	assert.Equal(t, 12, msg.Tokens.Input)
	assert.Equal(t, 34, msg.Tokens.Output)
}

func TestStampTokensSkippedWhenAssistantNotLast(t *testing.T) {
	tr := New()
	tr.AppendToLatestSegment(domain.SegmentFinal, "answer", "root")
	tr.Append(domain.Message{Role: domain.RoleTool, Content: "tool output"})

	tr.StampTokens(domain.TokenDelta{Input: 1, Output: 2})

	msgs := tr.Messages()
	assert.Nil(t, msgs[0].Tokens)
	assert.Nil(t, msgs[1].Tokens)
}

func TestStampTokensNoOpOnEmpty(t *testing.T) {
	tr := New()
	tr.StampTokens(domain.TokenDelta{Input: 1, Output: 2})
	assert.Equal(t, 0, tr.Len())
}

func TestClear(t *testing.T) {
	tr := New()
	tr.Append(domain.Message{Role: domain.RoleUser, Content: "hi"})
	tr.Clear()
	assert.Equal(t, 0, tr.Len())
	assert.Nil(t, tr.Latest())
}
