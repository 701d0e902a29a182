package loop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/provider"
	"github.com/loopchat/loopchat/internal/tool"
	"github.com/loopchat/loopchat/internal/workflow"
)

type mockProvider struct {
	model        string
	generateFunc func(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error)
}

func (m *mockProvider) Generate(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
	return m.generateFunc(ctx, history, decls)
}

func (m *mockProvider) Model() string {
	if m.model == "" {
		return "gpt-4o"
	}
	return m.model
}

type mockDispatcher struct {
	declarations []tool.Declaration
	dispatchFunc func(ctx context.Context, calls []chat.ToolCall, events chan<- workflow.Event) []chat.ToolResult
}

func (m *mockDispatcher) Declarations() []tool.Declaration { return m.declarations }

func (m *mockDispatcher) Dispatch(ctx context.Context, calls []chat.ToolCall, events chan<- workflow.Event) []chat.ToolResult {
	if m.dispatchFunc != nil {
		return m.dispatchFunc(ctx, calls, events)
	}
	results := make([]chat.ToolResult, len(calls))
	for i, c := range calls {
		results[i] = chat.ToolResult{CallID: c.ID, Name: c.Name, Content: "ok"}
	}
	return results
}

func TestRun_TextOnlyTurn(t *testing.T) {
	events := make(chan workflow.Event, 10)
	mp := &mockProvider{
		generateFunc: func(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
			return &provider.Response{Content: "Hello!"}, nil
		},
	}
	session := chat.NewSession("")
	l := New(mp, &mockDispatcher{}, session, WithEvents(events))

	msg, err := l.Run(context.Background(), "Hi")

	require.NoError(t, err)
	assert.Equal(t, "Hello!", msg.Content)
	assert.Equal(t, chat.RoleAssistant, msg.Role)

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hi", msgs[0].Content)

	assert.IsType(t, workflow.ThinkingEvent{}, <-events)
	assert.Equal(t, workflow.TextEvent{Text: "Hello!"}, <-events)
	assert.IsType(t, workflow.DoneEvent{}, <-events)
}

func TestRun_ToolCallThenAnswer(t *testing.T) {
	var dispatched []chat.ToolCall
	turn := 0
	mp := &mockProvider{
		generateFunc: func(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
			turn++
			if turn == 1 {
				return &provider.Response{
					ToolCalls: []chat.ToolCall{
						{ID: "c1", Name: "calculate", Args: map[string]any{"expression": "15 * 23"}},
					},
				}, nil
			}
			// The observation is in the history on the second turn.
			last := history[len(history)-1]
			assert.Equal(t, chat.RoleTool, last.Role)
			assert.Equal(t, "345", last.Content)
			return &provider.Response{Content: "The answer is 345."}, nil
		},
	}
	md := &mockDispatcher{
		declarations: []tool.Declaration{{Name: "calculate"}},
		dispatchFunc: func(ctx context.Context, calls []chat.ToolCall, events chan<- workflow.Event) []chat.ToolResult {
			dispatched = calls
			return []chat.ToolResult{{CallID: "c1", Name: "calculate", Content: "345"}}
		},
	}
	session := chat.NewSession("")
	l := New(mp, md, session)

	msg, err := l.Run(context.Background(), "what is 15 * 23?")

	require.NoError(t, err)
	assert.Equal(t, "The answer is 345.", msg.Content)
	assert.Equal(t, 2, turn)
	require.Len(t, dispatched, 1)
	assert.Equal(t, "calculate", dispatched[0].Name)

	msgs := session.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	assert.Equal(t, chat.RoleTool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, chat.RoleAssistant, msgs[3].Role)
}

func TestRun_IterationCapSynthesizesAnswer(t *testing.T) {
	turns := 0
	mp := &mockProvider{
		generateFunc: func(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
			turns++
			return &provider.Response{
				ToolCalls: []chat.ToolCall{{ID: "c", Name: "spin"}},
			}, nil
		},
	}
	session := chat.NewSession("")
	l := New(mp, &mockDispatcher{}, session, WithMaxIterations(3))

	msg, err := l.Run(context.Background(), "loop forever")

	require.NoError(t, err)
	assert.Equal(t, 3, turns)
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Contains(t, msg.Content, "maximum number of reasoning steps")

	// user + 3x(assistant + tool) + synthesized final answer
	assert.Equal(t, 8, session.MessageCount())
}

func TestRun_CancellationKeepsAppendedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mp := &mockProvider{
		generateFunc: func(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
			cancel()
			return &provider.Response{
				ToolCalls: []chat.ToolCall{{ID: "c", Name: "spin"}},
			}, nil
		},
	}
	session := chat.NewSession("")
	l := New(mp, &mockDispatcher{}, session)

	_, err := l.Run(ctx, "go")

	assert.ErrorIs(t, err, context.Canceled)
	// The user message and the assistant turn stay in the session.
	assert.Equal(t, 2, session.MessageCount())
}

func TestRun_ProviderErrorSurfaces(t *testing.T) {
	mp := &mockProvider{
		generateFunc: func(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
			return nil, &provider.Error{Code: provider.ErrorCodeRateLimit, Message: "slow down"}
		},
	}
	session := chat.NewSession("")
	l := New(mp, &mockDispatcher{}, session)

	_, err := l.Run(context.Background(), "hi")

	require.Error(t, err)
	var perr *provider.Error
	assert.ErrorAs(t, err, &perr)
	// The user message is not rolled back.
	assert.Equal(t, 1, session.MessageCount())
}

func TestRun_IncompatibleModelDropsDeclarations(t *testing.T) {
	events := make(chan workflow.Event, 10)
	var seenDecls []tool.Declaration = []tool.Declaration{{Name: "sentinel"}}
	mp := &mockProvider{
		model: "text-davinci-003",
		generateFunc: func(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
			seenDecls = decls
			return &provider.Response{Content: "plain answer"}, nil
		},
	}
	md := &mockDispatcher{declarations: []tool.Declaration{{Name: "calculate"}}}
	session := chat.NewSession("")
	l := New(mp, md, session, WithEvents(events))

	_, err := l.Run(context.Background(), "hi")

	require.NoError(t, err)
	assert.Nil(t, seenDecls)
	assert.IsType(t, workflow.WarningEvent{}, <-events)
}

func TestRun_EffectiveHistoryIncludesSystemPrompt(t *testing.T) {
	var seen []chat.Message
	mp := &mockProvider{
		generateFunc: func(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error) {
			seen = history
			return &provider.Response{Content: "ok"}, nil
		},
	}
	session := chat.NewSession("")
	session.SetSystemPrompt("be terse")
	l := New(mp, &mockDispatcher{}, session)

	_, err := l.Run(context.Background(), "hi")

	require.NoError(t, err)
	require.NotEmpty(t, seen)
	assert.Equal(t, chat.RoleSystem, seen[0].Role)
	assert.Equal(t, "be terse", seen[0].Content)
}
