package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSummarizer struct {
	summarizeFunc func(ctx context.Context, messages []Message) (string, error)
}

func (m *mockSummarizer) Summarize(ctx context.Context, messages []Message) (string, error) {
	return m.summarizeFunc(ctx, messages)
}

func populatedSession(n int) *Session {
	s := NewSession("")
	s.SetSystemPrompt("sys")
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		s.Append(NewMessage(role, "msg"))
	}
	return s
}

func TestCompact_Success(t *testing.T) {
	var requested []Message
	ms := &mockSummarizer{
		summarizeFunc: func(ctx context.Context, messages []Message) (string, error) {
			requested = messages
			return "<summary>key points</summary>", nil
		},
	}
	s := populatedSession(6)
	c := NewCompactor(ms, 2, time.Minute, nil)

	err := c.Compact(context.Background(), s)

	require.NoError(t, err)
	assert.True(t, s.Compacted())
	assert.Equal(t, 6, s.CompactIndex())
	assert.Equal(t, "key points", s.CompactSummary())

	// The request carries the system prompt, the history and the instruction.
	require.NotEmpty(t, requested)
	assert.Equal(t, RoleSystem, requested[0].Role)
	assert.Equal(t, RoleUser, requested[len(requested)-1].Role)
	assert.Len(t, requested, 8)
}

func TestCompact_AlreadyCompacted(t *testing.T) {
	ms := &mockSummarizer{
		summarizeFunc: func(ctx context.Context, messages []Message) (string, error) {
			return "<summary>again</summary>", nil
		},
	}
	s := populatedSession(4)
	c := NewCompactor(ms, 2, time.Minute, nil)
	require.NoError(t, c.Compact(context.Background(), s))

	err := c.Compact(context.Background(), s)
	assert.ErrorIs(t, err, ErrAlreadyCompacted)
}

func TestCompact_InsufficientHistory(t *testing.T) {
	ms := &mockSummarizer{
		summarizeFunc: func(ctx context.Context, messages []Message) (string, error) {
			t.Fatal("summarizer must not be called")
			return "", nil
		},
	}
	s := populatedSession(1)
	c := NewCompactor(ms, 2, time.Minute, nil)

	err := c.Compact(context.Background(), s)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
	assert.False(t, s.Compacted())
}

func TestCompact_SummarizerFailureLeavesSessionUnchanged(t *testing.T) {
	ms := &mockSummarizer{
		summarizeFunc: func(ctx context.Context, messages []Message) (string, error) {
			return "", errors.New("backend down")
		},
	}
	s := populatedSession(4)
	c := NewCompactor(ms, 2, time.Minute, nil)

	err := c.Compact(context.Background(), s)
	require.Error(t, err)
	assert.False(t, s.Compacted())
	assert.Equal(t, 0, s.CompactIndex())
}

func TestCompact_UntaggedResponseFallsBackToRaw(t *testing.T) {
	ms := &mockSummarizer{
		summarizeFunc: func(ctx context.Context, messages []Message) (string, error) {
			return "  plain summary without tags  ", nil
		},
	}
	s := populatedSession(4)
	c := NewCompactor(ms, 2, time.Minute, nil)

	require.NoError(t, c.Compact(context.Background(), s))
	assert.Equal(t, "plain summary without tags", s.CompactSummary())
}

func TestCompact_EmptySummaryIsError(t *testing.T) {
	ms := &mockSummarizer{
		summarizeFunc: func(ctx context.Context, messages []Message) (string, error) {
			return "<summary>   </summary>", nil
		},
	}
	s := populatedSession(4)
	c := NewCompactor(ms, 2, time.Minute, nil)

	err := c.Compact(context.Background(), s)
	require.Error(t, err)
	assert.False(t, s.Compacted())
}

func TestCompactor_Reset(t *testing.T) {
	ms := &mockSummarizer{
		summarizeFunc: func(ctx context.Context, messages []Message) (string, error) {
			return "<summary>s</summary>", nil
		},
	}
	s := populatedSession(4)
	c := NewCompactor(ms, 2, time.Minute, nil)

	assert.Error(t, c.Reset(s))

	require.NoError(t, c.Compact(context.Background(), s))
	require.NoError(t, c.Reset(s))
	assert.False(t, s.Compacted())
	assert.Equal(t, 5, s.MessageCount())
}

func TestCompactor_Stats(t *testing.T) {
	ms := &mockSummarizer{
		summarizeFunc: func(ctx context.Context, messages []Message) (string, error) {
			return "<summary>s</summary>", nil
		},
	}
	s := populatedSession(4)
	c := NewCompactor(ms, 2, time.Minute, nil)

	st := c.Stats(s)
	assert.Equal(t, 5, st.TotalMessages)
	assert.Equal(t, 4, st.NonSystemMessages)
	assert.False(t, st.Compacted)

	require.NoError(t, c.Compact(context.Background(), s))
	st = c.Stats(s)
	assert.True(t, st.Compacted)
	assert.Equal(t, 4, st.CompactIndex)
	assert.Equal(t, 1, st.SummaryLength)
}

func TestExtractSummary(t *testing.T) {
	assert.Equal(t, "inner", extractSummary("before <summary>inner</summary> after"))
	assert.Equal(t, "multi\nline", extractSummary("<SUMMARY>\nmulti\nline\n</SUMMARY>"))
	assert.Equal(t, "no tags here", extractSummary("  no tags here "))
}
