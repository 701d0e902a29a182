package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/loopchat/loopchat/internal/chat"
	"github.com/loopchat/loopchat/internal/config"
	"github.com/loopchat/loopchat/internal/provider"
	geminiprovider "github.com/loopchat/loopchat/internal/provider/gemini"
	openaiprovider "github.com/loopchat/loopchat/internal/provider/openai"
	"github.com/loopchat/loopchat/internal/store"
	"github.com/loopchat/loopchat/internal/tool"
	"github.com/loopchat/loopchat/internal/tool/builtin"
	"github.com/loopchat/loopchat/internal/ui"
	"github.com/loopchat/loopchat/internal/workflow"
	"github.com/loopchat/loopchat/internal/workflow/loop"
	"github.com/loopchat/loopchat/internal/workflow/toolmanager"
)

const defaultSystemPrompt = "You are a helpful assistant with access to local tools. " +
	"Use them when they help answer the user's question, and answer in plain text " +
	"when you have what you need."

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	logFile  *os.File
	db       *store.DB
	session  *chat.Session
	llm      provider.Provider
	manager  *toolmanager.Manager
	compact  *chat.Compactor
	terminal *ui.UI
	sources  []tool.Source
	loadErrs []tool.LoadError
	events   chan workflow.Event
}

func newApp(ctx context.Context, cfg *config.Config, sessionID string) (*app, error) {
	a := &app{cfg: cfg, events: make(chan workflow.Event, 32)}

	a.logger, a.logFile = newLogger()

	a.sources = append(a.sources, builtin.Source())
	for _, dir := range cfg.Tools.UserToolDirs {
		a.sources = append(a.sources, tool.ManifestDir(dir))
	}
	registry := tool.NewRegistry()
	tools, loadErrs := tool.Scan(a.sources...)
	a.loadErrs = loadErrs
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			a.loadErrs = append(a.loadErrs, tool.LoadError{Source: "startup", Err: err})
		}
	}

	a.terminal = ui.New()

	a.manager = toolmanager.New(registry,
		toolmanager.WithFanOut(cfg.Tools.MaxParallel),
		toolmanager.WithCallTimeout(time.Duration(cfg.Tools.CallTimeoutSeconds)*time.Second),
		toolmanager.WithApprover(a.terminal),
		toolmanager.WithLogger(a.logger),
	)
	a.manager.SetRequireApproval(cfg.Tools.RequireApproval)
	if len(cfg.Tools.Enabled) > 0 {
		if err := a.manager.Enable(cfg.Tools.Enabled...); err != nil {
			a.loadErrs = append(a.loadErrs, tool.LoadError{Source: "config", Err: err})
		}
	} else {
		a.manager.EnableAll()
	}

	llm, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.llm = llm

	if cfg.Store.Path != "" {
		db, err := store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		a.db = db
	}

	if sessionID != "" {
		if a.db == nil {
			return nil, fmt.Errorf("cannot resume session %s: no store path configured", sessionID)
		}
		session, err := a.db.LoadSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		a.session = session
	} else {
		a.session = chat.NewSession("")
		a.session.SetSystemPrompt(defaultSystemPrompt)
	}

	a.compact = chat.NewCompactor(
		summarizer{llm: llm},
		cfg.Compact.MinMessages,
		time.Duration(cfg.Compact.TimeoutSeconds)*time.Second,
		a.logger,
	)

	return a, nil
}

// buildProvider selects the backend from config. The loader resolves the
// API key from the environment; the config file never carries it.
func buildProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		client := openaiprovider.NewClient(cfg.APIKey, cfg.BaseURL)
		return openaiprovider.New(client, cfg.Model), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return geminiprovider.New(geminiprovider.NewSDKClient(client), cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// summarizer adapts the provider to the Compactor's one-shot interface.
type summarizer struct {
	llm provider.Provider
}

func (s summarizer) Summarize(ctx context.Context, messages []chat.Message) (string, error) {
	resp, err := s.llm.Generate(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// newLogger logs to a file next to the config so the TUI owns the terminal.
func newLogger() (*slog.Logger, *os.File) {
	home, err := os.UserHomeDir()
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	dir := filepath.Join(home, ".config", config.ConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "loopchat.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	return slog.New(slog.NewTextHandler(f, nil)), f
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// Run starts the UI, the event forwarder and the REPL, and blocks until the
// user quits.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.forwardEvents(ctx)
	go a.repl(ctx)

	err := a.terminal.Start()
	cancel()
	return err
}

// forwardEvents translates loop events into UI updates.
func (a *app) forwardEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-a.events:
			switch e := e.(type) {
			case workflow.ThinkingEvent:
				a.terminal.WriteStatus(fmt.Sprintf("thinking (step %d)", e.Iteration))
			case workflow.TextEvent:
				a.terminal.WriteMessage("assistant", e.Text)
			case workflow.ToolStartEvent:
				a.terminal.WriteMessage("tool", ui.FormatToolLine(e.Call.Name, "running"))
			case workflow.ToolEndEvent:
				outcome := string(e.Result.Status)
				if e.Result.Err != "" {
					outcome = string(e.Result.Err)
				}
				a.terminal.WriteMessage("tool", ui.FormatToolLine(e.Result.Name, outcome))
			case workflow.WarningEvent:
				a.terminal.WriteMessage("warning", e.Message)
			case workflow.DoneEvent:
				a.terminal.WriteStatus("")
			}
		}
	}
}

// repl reads lines from the UI and runs turns or slash commands.
func (a *app) repl(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-a.terminal.Ready():
	}

	for _, le := range a.loadErrs {
		a.terminal.WriteMessage("warning", le.Error())
	}
	a.terminal.WriteMessage("warning",
		fmt.Sprintf("connected to %s (%s); type /help for commands", a.cfg.Provider, a.llm.Model()))

	for {
		line, err := a.terminal.ReadInput(ctx, "> ")
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := a.handleCommand(ctx, line); quit {
				a.terminal.Quit()
				return
			}
			continue
		}

		l := loop.New(a.llm, a.manager, a.session,
			loop.WithMaxIterations(a.cfg.Loop.MaxIterations),
			loop.WithEvents(a.events),
			loop.WithLogger(a.logger),
		)
		if _, err := l.Run(ctx, line); err != nil {
			a.terminal.WriteMessage("warning", fmt.Sprintf("turn failed: %v", err))
			a.logger.Error("turn failed", "error", err)
		}
	}
}
