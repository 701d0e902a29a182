package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Compaction failure modes. Both leave the session unchanged.
var (
	ErrAlreadyCompacted    = errors.New("session is already compacted")
	ErrInsufficientHistory = errors.New("not enough messages to compact")
)

// compactPrompt asks the model to fold the conversation so far into a
// structured summary. The sections mirror what a resumed conversation needs
// to stay coherent.
const compactPrompt = `Summarize the conversation so far into a handoff note for a future
assistant continuing this conversation. Cover these sections:

1. Key decisions: conclusions reached and choices made, with their reasons.
2. Open questions: anything raised but not yet resolved.
3. Code and artifacts referenced: files, snippets, commands, URLs or data
   the conversation relied on, precisely enough to find them again.
4. Next steps: what the user appears to want next.

Wrap the final summary in <summary></summary> tags.`

// summaryPattern extracts the tagged summary from the model response.
var summaryPattern = regexp.MustCompile(`(?is)<summary>\s*(.*?)\s*</summary>`)

// Summarizer is the one-shot model call the Compactor needs. No tool schema
// is offered and no multi-turn exchange happens.
type Summarizer interface {
	Summarize(ctx context.Context, messages []Message) (string, error)
}

// Compactor replaces the prefix of a session's history with a generated
// summary, preserving the original messages so the operation is reversible.
type Compactor struct {
	llm         Summarizer
	minMessages int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewCompactor creates a Compactor. minMessages is the minimum number of
// non-system messages required before compaction is allowed; timeout bounds
// the single summarization call.
func NewCompactor(llm Summarizer, minMessages int, timeout time.Duration, logger *slog.Logger) *Compactor {
	if minMessages < 2 {
		minMessages = 2
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{llm: llm, minMessages: minMessages, timeout: timeout, logger: logger}
}

// Stats describes what compaction would (or did) cover. Computing it does
// not mutate the session; callers use it for reporting before committing.
type Stats struct {
	TotalMessages     int
	NonSystemMessages int
	EstimatedTokens   int
	Compacted         bool
	CompactIndex      int
	SummaryLength     int
}

// Stats reports message and token counts for the session.
func (c *Compactor) Stats(s *Session) Stats {
	msgs := s.Messages()
	st := Stats{
		TotalMessages: len(msgs),
		Compacted:     s.Compacted(),
		CompactIndex:  s.CompactIndex(),
		SummaryLength: len(s.CompactSummary()),
	}
	for i, m := range msgs {
		if i == 0 && m.Role == RoleSystem {
			continue
		}
		st.NonSystemMessages++
		st.EstimatedTokens += m.EstimatedTokens()
	}
	return st
}

// Compact generates a summary of every non-system message stored so far and
// installs it as the session's compaction summary. The original messages are
// kept; ResetCompact restores the full transcript.
func (c *Compactor) Compact(ctx context.Context, s *Session) error {
	if s.Compacted() {
		return ErrAlreadyCompacted
	}
	if s.NonSystemCount() < c.minMessages {
		return fmt.Errorf("%w: have %d non-system messages, need %d",
			ErrInsufficientHistory, s.NonSystemCount(), c.minMessages)
	}

	request := c.buildRequest(s)

	// The summarization call is a single atomic external request with its
	// own deadline; it is not interruptible mid-flight.
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.llm.Summarize(callCtx, request)
	if err != nil {
		return fmt.Errorf("summary generation failed: %w", err)
	}
	summary := extractSummary(raw)
	if summary == "" {
		return errors.New("model returned an empty summary")
	}

	s.applyCompact(summary)
	c.logger.Info("session compacted",
		"session_id", s.ID(),
		"messages_folded", s.CompactIndex(),
		"summary_chars", len(summary))
	return nil
}

// Reset clears the compaction state. The stored transcript is untouched.
func (c *Compactor) Reset(s *Session) error {
	if !s.Compacted() {
		return errors.New("session is not compacted")
	}
	s.ResetCompact()
	return nil
}

// buildRequest assembles the one-shot summarization conversation: the
// session's system prompt, every non-system message, then the instruction.
func (c *Compactor) buildRequest(s *Session) []Message {
	msgs := s.Messages()
	out := make([]Message, 0, len(msgs)+2)

	systemPrompt := s.SystemPrompt()
	if systemPrompt == "" {
		systemPrompt = "You are a helpful assistant."
	}
	out = append(out, Message{Role: RoleSystem, Content: systemPrompt})

	for i, m := range msgs {
		if i == 0 && m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	out = append(out, Message{Role: RoleUser, Content: compactPrompt})
	return out
}

// extractSummary pulls the content between <summary> tags, falling back to
// the whole response when the model ignored the tagging instruction.
func extractSummary(raw string) string {
	if m := summaryPattern.FindStringSubmatch(raw); m != nil {
		if content := strings.TrimSpace(m[1]); content != "" {
			return content
		}
	}
	return strings.TrimSpace(raw)
}
