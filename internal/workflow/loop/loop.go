// Package loop runs the reason-act-observe conversation cycle.
package loop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/provider"
	"github.com/loopchat/loopchat/internal/tool"
	"github.com/loopchat/loopchat/internal/workflow"
	"github.com/loopchat/loopchat/internal/workflow/toolmanager"
)

const defaultMaxIterations = 10

// capMessage is the terminal reply synthesized when the iteration cap is
// reached before the model stops requesting tools.
const capMessage = "I reached the maximum number of reasoning steps for this turn " +
	"without arriving at a final answer. The tool results gathered so far are in " +
	"the conversation; ask me to continue if you want me to keep going."

// llmProvider is the slice of the provider the loop needs.
type llmProvider interface {
	Generate(ctx context.Context, history []chat.Message, decls []tool.Declaration) (*provider.Response, error)
	Model() string
}

// toolDispatcher is the slice of the tool manager the loop needs.
type toolDispatcher interface {
	Declarations() []tool.Declaration
	Dispatch(ctx context.Context, calls []chat.ToolCall, events chan<- workflow.Event) []chat.ToolResult
}

// Loop drives one conversation turn: model calls alternate with tool
// dispatch until the model answers in plain text or the iteration cap hits.
type Loop struct {
	provider      llmProvider
	tools         toolDispatcher
	session       *chat.Session
	events        chan<- workflow.Event
	logger        *slog.Logger
	maxIterations int
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations overrides the iteration cap.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithEvents attaches the event channel the UI consumes.
func WithEvents(events chan<- workflow.Event) Option {
	return func(l *Loop) { l.events = events }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a loop bound to one session.
func New(p llmProvider, tools toolDispatcher, session *chat.Session, opts ...Option) *Loop {
	l := &Loop{
		provider:      p,
		tools:         tools,
		session:       session,
		logger:        slog.Default(),
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes one user input to a terminal assistant message. Everything
// the loop appends stays in the session even on error; cancellation stops at
// the next transition without rolling back.
func (l *Loop) Run(ctx context.Context, input string) (*chat.Message, error) {
	l.session.Append(chat.NewMessage(chat.RoleUser, input))

	defer l.emit(workflow.DoneEvent{})

	decls := l.tools.Declarations()
	if len(decls) > 0 && !toolmanager.SupportsToolCalling(l.provider.Model()) {
		l.emit(workflow.WarningEvent{
			Message: fmt.Sprintf("model %q is not known to support tool calling; continuing without tools", l.provider.Model()),
		})
		l.logger.Warn("tools dropped for incompatible model", "model", l.provider.Model())
		decls = nil
	}

	for i := 0; i < l.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		l.emit(workflow.ThinkingEvent{Iteration: i + 1})

		resp, err := l.provider.Generate(ctx, l.session.EffectiveHistory(), decls)
		if err != nil {
			return nil, fmt.Errorf("generating model turn: %w", err)
		}

		assistant := chat.NewMessage(chat.RoleAssistant, resp.Content)
		assistant.ToolCalls = resp.ToolCalls
		if resp.Usage.TotalTokens > 0 {
			usage := resp.Usage
			assistant.Usage = &usage
		}
		l.session.Append(assistant)

		if resp.Content != "" {
			l.emit(workflow.TextEvent{Text: resp.Content})
		}

		if len(resp.ToolCalls) == 0 {
			l.logger.Debug("turn complete", "iterations", i+1)
			return &assistant, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results := l.tools.Dispatch(ctx, resp.ToolCalls, l.events)
		for _, result := range results {
			l.session.Append(chat.NewToolMessage(result))
		}
	}

	l.logger.Info("iteration cap reached", "max", l.maxIterations)
	final := chat.NewMessage(chat.RoleAssistant, capMessage)
	l.session.Append(final)
	return &final, nil
}

func (l *Loop) emit(e workflow.Event) {
	if l.events != nil {
		l.events <- e
	}
}
