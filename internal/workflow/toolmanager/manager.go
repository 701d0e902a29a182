// Package toolmanager mediates between the conversation loop and the tool
// registry: enablement, approval gating and parallel dispatch.
package toolmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/tool"
	"github.com/loopchat/loopchat/internal/workflow"
)

// Decision is the user's verdict on a gated tool call.
type Decision int

const (
	// Approve runs the call.
	Approve Decision = iota
	// Deny refuses the call; the model receives a refusal observation.
	Deny
	// Inspect asks to see the full call details before deciding again.
	Inspect
)

// Approver resolves approval prompts for gated tool calls. Implementations
// showing Inspect detail redisplay the call before returning another
// decision.
type Approver interface {
	ApproveCall(ctx context.Context, call chat.ToolCall) (Decision, error)
}

// ErrUnknownTools reports enable requests naming tools that do not exist.
// The valid names in the same request are still enabled.
type ErrUnknownTools struct {
	Names []string
}

func (e *ErrUnknownTools) Error() string {
	return fmt.Sprintf("unknown tools: %s", strings.Join(e.Names, ", "))
}

const (
	defaultFanOut      = 4
	defaultCallTimeout = 30 * time.Second
)

// Manager owns the enabled-tool set and executes model-issued tool calls.
type Manager struct {
	registry tool.Registry
	approver Approver
	logger   *slog.Logger

	fanOut      int64
	callTimeout time.Duration

	mu              sync.RWMutex
	enabled         map[string]bool
	requireApproval bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithFanOut bounds how many tool calls run concurrently.
func WithFanOut(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.fanOut = int64(n)
		}
	}
}

// WithCallTimeout bounds each tool call's execution time.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.callTimeout = d
		}
	}
}

// WithApprover sets the approval prompt implementation. Without one, gated
// calls are denied.
func WithApprover(a Approver) Option {
	return func(m *Manager) { m.approver = a }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager over the given registry. No tools are enabled
// initially.
func New(registry tool.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry:    registry,
		logger:      slog.Default(),
		fanOut:      defaultFanOut,
		callTimeout: defaultCallTimeout,
		enabled:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enable turns on the named tools. Unknown names are reported via
// ErrUnknownTools while the known names in the same request still enable.
func (m *Manager) Enable(names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var unknown []string
	for _, name := range names {
		if _, ok := m.registry.Lookup(name); !ok {
			unknown = append(unknown, name)
			continue
		}
		m.enabled[name] = true
	}
	if len(unknown) > 0 {
		return &ErrUnknownTools{Names: unknown}
	}
	return nil
}

// EnableAll turns on every registered tool.
func (m *Manager) EnableAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.registry.List() {
		m.enabled[t.Name] = true
	}
}

// Disable turns off the named tools. Unknown names are ignored.
func (m *Manager) Disable(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		delete(m.enabled, name)
	}
}

// Enabled returns the enabled tool names, sorted.
func (m *Manager) Enabled() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.enabled))
	for name := range m.enabled {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ToolInfo is one row of the tool listing.
type ToolInfo struct {
	Name             string
	Description      string
	Enabled          bool
	RequiresApproval bool
}

// Tools returns every registered tool with its enablement state, sorted by
// name.
func (m *Manager) Tools() []ToolInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.registry.List()
	out := make([]ToolInfo, 0, len(list))
	for _, t := range list {
		out = append(out, ToolInfo{
			Name:             t.Name,
			Description:      t.Description,
			Enabled:          m.enabled[t.Name],
			RequiresApproval: t.RequiresApproval,
		})
	}
	return out
}

// SetRequireApproval toggles global approval gating. Individual tools may
// also require approval regardless of this flag.
func (m *Manager) SetRequireApproval(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireApproval = v
}

// RequireApproval reports the global gating flag.
func (m *Manager) RequireApproval() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requireApproval
}

// Declarations returns the function declarations for the enabled tools,
// sorted by name.
func (m *Manager) Declarations() []tool.Declaration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	decls := make([]tool.Declaration, 0, len(m.enabled))
	for name := range m.enabled {
		t, ok := m.registry.Lookup(name)
		if !ok {
			continue
		}
		decls = append(decls, t.Declaration())
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls
}

// functionCallingModels lists model name prefixes known to support native
// tool calling. Unknown models are assumed incompatible and run without
// declarations.
var functionCallingModels = []string{
	"gpt-3.5-turbo",
	"gpt-4",
	"gpt-4o",
	"gpt-5",
	"o1",
	"o3",
	"gemini-1.5",
	"gemini-2.0",
	"gemini-2.5",
	"claude-3",
	"claude-4",
	"mistral",
	"qwen",
	"llama-3",
}

// SupportsToolCalling reports whether the model is known to handle function
// declarations.
func SupportsToolCalling(model string) bool {
	model = strings.ToLower(model)
	for _, prefix := range functionCallingModels {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// Reload re-scans the sources and re-registers their tools, overwriting
// definitions that changed. Enabled names that no longer exist are disabled.
func (m *Manager) Reload(sources ...tool.Source) []tool.LoadError {
	tools, errs := tool.Scan(sources...)
	for _, t := range tools {
		if err := m.registry.Register(t); err != nil {
			errs = append(errs, tool.LoadError{Source: "reload", Err: err})
		}
	}
	m.mu.Lock()
	for name := range m.enabled {
		if _, ok := m.registry.Lookup(name); !ok {
			delete(m.enabled, name)
		}
	}
	m.mu.Unlock()
	return errs
}

// Dispatch executes a batch of tool calls and returns one result per call,
// in call order. Failures never abort siblings; every failure mode lands in
// the matching result slot as a model-readable observation.
func (m *Manager) Dispatch(ctx context.Context, calls []chat.ToolCall, events chan<- workflow.Event) []chat.ToolResult {
	results := make([]chat.ToolResult, len(calls))

	m.mu.RLock()
	globalGate := m.requireApproval
	m.mu.RUnlock()

	type job struct {
		index int
		t     tool.Tool
		call  chat.ToolCall
		args  map[string]any
	}

	sem := semaphore.NewWeighted(m.fanOut)
	var wg sync.WaitGroup
	run := func(j job) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[j.index].Status = chat.StatusFailed
				results[j.index].Err = chat.ErrCancelled
				results[j.index].Content = "cancelled before execution"
				return
			}
			defer sem.Release(1)
			j.call.Status = chat.StatusExecuting
			if events != nil {
				events <- workflow.ToolStartEvent{Call: j.call}
			}
			results[j.index] = m.execute(ctx, j.t, j.call, j.args)
			if events != nil {
				events <- workflow.ToolEndEvent{Result: results[j.index]}
			}
		}()
	}

	// Resolution and validation run up front; unguarded calls start
	// executing immediately. Guarded calls queue so the approval prompts
	// never interleave, while the unguarded batch keeps running.
	var guarded []job
	for i, call := range calls {
		results[i] = chat.ToolResult{CallID: call.ID, Name: call.Name}

		m.mu.RLock()
		enabled := m.enabled[call.Name]
		m.mu.RUnlock()
		t, ok := m.registry.Lookup(call.Name)
		if !ok || !enabled {
			results[i].Status = chat.StatusFailed
			results[i].Err = chat.ErrUnknownTool
			results[i].Content = fmt.Sprintf("tool %q is not available; available tools: %s",
				call.Name, strings.Join(m.Enabled(), ", "))
			continue
		}

		args, err := tool.ValidateArgs(t, call.Args)
		if err != nil {
			results[i].Status = chat.StatusFailed
			results[i].Err = chat.ErrValidation
			results[i].Content = err.Error()
			continue
		}

		j := job{index: i, t: t, call: call, args: args}
		if globalGate || t.RequiresApproval {
			guarded = append(guarded, j)
			continue
		}
		run(j)
	}

	for _, j := range guarded {
		decision, err := m.approve(ctx, j.call)
		if err != nil {
			results[j.index].Status = chat.StatusFailed
			results[j.index].Err = chat.ErrCancelled
			results[j.index].Content = "approval prompt aborted"
			continue
		}
		if decision == Deny {
			results[j.index].Status = chat.StatusDenied
			results[j.index].Content = "Tool call denied by the user."
			m.logger.Info("tool call denied", "tool", j.call.Name, "call_id", j.call.ID)
			if events != nil {
				events <- workflow.ToolEndEvent{Result: results[j.index]}
			}
			continue
		}
		j.call.Status = chat.StatusApproved
		run(j)
	}

	wg.Wait()
	return results
}

// approve loops the prompt until the user settles on Approve or Deny.
// Inspect never consumes the decision; the approver shows the detail and is
// asked again.
func (m *Manager) approve(ctx context.Context, call chat.ToolCall) (Decision, error) {
	if m.approver == nil {
		return Deny, nil
	}
	for {
		decision, err := m.approver.ApproveCall(ctx, call)
		if err != nil {
			return Deny, err
		}
		if decision != Inspect {
			return decision, nil
		}
	}
}

// execute runs one approved, validated call with the per-call timeout.
// Handler panics become execution errors so one bad tool cannot take down
// the batch.
func (m *Manager) execute(ctx context.Context, t tool.Tool, call chat.ToolCall, args map[string]any) chat.ToolResult {
	result := chat.ToolResult{CallID: call.ID, Name: call.Name}

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		content, err := t.Handler(callCtx, args)
		done <- outcome{content: content, err: err}
	}()

	start := time.Now()
	select {
	case <-callCtx.Done():
		result.Status = chat.StatusFailed
		if ctx.Err() != nil {
			result.Err = chat.ErrCancelled
			result.Content = "cancelled"
		} else {
			result.Err = chat.ErrTimeout
			result.Content = fmt.Sprintf("tool did not finish within %s", m.callTimeout)
		}
		m.logger.Warn("tool call aborted",
			"tool", call.Name, "call_id", call.ID,
			"kind", string(result.Err), "elapsed", time.Since(start))
		return result
	case out := <-done:
		if out.err != nil {
			result.Status = chat.StatusFailed
			result.Err = chat.ErrExecution
			result.Content = out.err.Error()
			m.logger.Warn("tool call failed",
				"tool", call.Name, "call_id", call.ID, "error", out.err)
			return result
		}
		result.Status = chat.StatusSucceeded
		result.Content = out.content
		m.logger.Debug("tool call succeeded",
			"tool", call.Name, "call_id", call.ID, "elapsed", time.Since(start))
		return result
	}
}
