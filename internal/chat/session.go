package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// compactPreamble prefixes the synthetic message that carries the compaction
// summary in the effective history.
const compactPreamble = "Summary of the earlier conversation:\n\n"

// Session is the durable conversation state: an append-only ordered message
// history plus compaction markers and token accounting.
//
// A session has a single logical owner (the conversation loop), but the UI
// may read history while the loop appends, so all access goes through the
// mutex.
//
// Invariants:
//   - at most one system message, always at index 0, exempt from compaction
//   - compactIndex only increases, and only via the Compactor
//   - compaction never deletes messages; Reset restores the full transcript
type Session struct {
	mu sync.RWMutex

	id             string
	name           string
	messages       []Message
	compacted      bool
	compactSummary string
	compactIndex   int
	createdAt      time.Time
	updatedAt      time.Time
	usage          TokenUsage
}

// NewSession creates an empty session with a fresh ID.
func NewSession(name string) *Session {
	if name == "" {
		name = "New Chat"
	}
	now := time.Now()
	return &Session{
		id:        uuid.NewString(),
		name:      name,
		createdAt: now,
		updatedAt: now,
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Name() string { return s.name }

func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Append adds a message to the history.
func (s *Session) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.messages = append(s.messages, msg)
	if msg.Usage != nil {
		s.usage.add(*msg.Usage)
	}
	s.updatedAt = time.Now()
}

// SetSystemPrompt installs or replaces the system message at index 0.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := Message{Role: RoleSystem, Content: prompt, Timestamp: time.Now()}
	if len(s.messages) > 0 && s.messages[0].Role == RoleSystem {
		s.messages[0] = msg
	} else {
		s.messages = append([]Message{msg}, s.messages...)
	}
	s.updatedAt = time.Now()
}

// SystemPrompt returns the system message content, or "" if none is set.
func (s *Session) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) > 0 && s.messages[0].Role == RoleSystem {
		return s.messages[0].Content
	}
	return ""
}

// Messages returns a copy of the full stored history.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// MessageCount returns the number of stored messages.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// nonSystemCountLocked counts messages excluding the system prompt.
// Caller must hold at least a read lock.
func (s *Session) nonSystemCountLocked() int {
	n := len(s.messages)
	if n > 0 && s.messages[0].Role == RoleSystem {
		n--
	}
	return n
}

// NonSystemCount counts messages excluding the system prompt.
func (s *Session) NonSystemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonSystemCountLocked()
}

// EffectiveHistory is the sequence actually sent to the model: the system
// message if any, then the compaction summary as a synthetic system message
// when compacted, then every stored message with index >= compactIndex.
func (s *Session) EffectiveHistory() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.messages))
	sysCount := 0
	if len(s.messages) > 0 && s.messages[0].Role == RoleSystem {
		out = append(out, s.messages[0])
		sysCount = 1
	}
	if s.compacted {
		out = append(out, Message{
			Role:      RoleSystem,
			Content:   compactPreamble + s.compactSummary,
			Timestamp: s.updatedAt,
		})
	}
	start := sysCount + s.compactIndex
	if start > len(s.messages) {
		start = len(s.messages)
	}
	out = append(out, s.messages[start:]...)
	return out
}

// Compacted reports whether a compaction summary is active.
func (s *Session) Compacted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compacted
}

// CompactIndex is the count of original messages folded into the summary.
func (s *Session) CompactIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compactIndex
}

// CompactSummary returns the active summary text, or "" when not compacted.
func (s *Session) CompactSummary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compactSummary
}

// applyCompact installs a summary covering every currently stored message
// except the system prompt. compactIndex records how many non-system
// messages were folded in. Only the Compactor calls this.
func (s *Session) applyCompact(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compactSummary = strings.TrimSpace(summary)
	s.compactIndex = s.nonSystemCountLocked()
	s.compacted = true
	s.updatedAt = time.Now()
}

// ResetCompact clears compaction state without deleting any stored message,
// restoring the full transcript as the effective history.
func (s *Session) ResetCompact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compacted = false
	s.compactSummary = ""
	s.compactIndex = 0
	s.updatedAt = time.Now()
}

// Usage returns the accumulated token usage across all appended messages.
func (s *Session) Usage() TokenUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

// Snapshot is the serializable form of a session. Save/load round-trips are
// lossless: Restore(s.Snapshot()) reproduces the session exactly.
type Snapshot struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Messages       []Message  `json:"messages"`
	Compacted      bool       `json:"compacted"`
	CompactSummary string     `json:"compact_summary,omitempty"`
	CompactIndex   int        `json:"compact_index"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Usage          TokenUsage `json:"total_usage"`
}

// Snapshot captures the full session state for persistence.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		ID:             s.id,
		Name:           s.name,
		Messages:       msgs,
		Compacted:      s.compacted,
		CompactSummary: s.compactSummary,
		CompactIndex:   s.compactIndex,
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
		Usage:          s.usage,
	}
}

// Restore rebuilds a session from a snapshot.
func Restore(snap Snapshot) *Session {
	msgs := make([]Message, len(snap.Messages))
	copy(msgs, snap.Messages)
	return &Session{
		id:             snap.ID,
		name:           snap.Name,
		messages:       msgs,
		compacted:      snap.Compacted,
		compactSummary: snap.CompactSummary,
		compactIndex:   snap.CompactIndex,
		createdAt:      snap.CreatedAt,
		updatedAt:      snap.UpdatedAt,
		usage:          snap.Usage,
	}
}
