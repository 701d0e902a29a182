package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/loopchat/loopchat/internal/config"
	"github.com/loopchat/loopchat/internal/store"
)

const helpText = `Available commands:
  /tools                 list tools and their state
  /tools-enable <names>  enable tools (space separated)
  /tools-disable <names> disable tools
  /tools-approval on|off toggle approval gating for all tools
  /tools-reload          re-scan tool sources
  /compact               fold older history into a summary
  /compact-info          show what compaction would cover
  /compact-reset         restore the full transcript
  /save                  persist the session
  /quit                  exit`

// handleCommand executes one slash command. Returns true to quit.
func (a *app) handleCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	show := func(format string, v ...any) {
		a.terminal.WriteMessage("tool", fmt.Sprintf(format, v...))
	}

	switch cmd {
	case "/help":
		show("%s", helpText)

	case "/quit", "/exit":
		return true

	case "/tools":
		for _, info := range a.manager.Tools() {
			state := "off"
			if info.Enabled {
				state = "on"
			}
			gated := ""
			if info.RequiresApproval {
				gated = " [approval]"
			}
			show("  %-22s %-3s%s  %s", info.Name, state, gated, info.Description)
		}

	case "/tools-enable":
		if len(args) == 0 {
			show("usage: /tools-enable <names>")
			break
		}
		if err := a.manager.Enable(args...); err != nil {
			show("%v", err)
		}
		show("enabled: %s", strings.Join(a.manager.Enabled(), ", "))

	case "/tools-disable":
		if len(args) == 0 {
			show("usage: /tools-disable <names>")
			break
		}
		a.manager.Disable(args...)
		show("enabled: %s", strings.Join(a.manager.Enabled(), ", "))

	case "/tools-approval":
		switch {
		case len(args) == 1 && args[0] == "on":
			a.manager.SetRequireApproval(true)
			show("approval gating on")
		case len(args) == 1 && args[0] == "off":
			a.manager.SetRequireApproval(false)
			show("approval gating off")
		default:
			show("usage: /tools-approval on|off")
		}

	case "/tools-reload":
		errs := a.manager.Reload(a.sources...)
		for _, e := range errs {
			a.terminal.WriteMessage("warning", e.Error())
		}
		show("reloaded; %d tools registered", len(a.manager.Tools()))

	case "/compact":
		if err := a.compact.Compact(ctx, a.session); err != nil {
			show("compaction failed: %v", err)
			break
		}
		st := a.compact.Stats(a.session)
		show("compacted %d messages into a %d character summary", st.CompactIndex, st.SummaryLength)

	case "/compact-info":
		st := a.compact.Stats(a.session)
		if st.Compacted {
			show("compacted: %d messages folded, summary %d chars, %d stored messages",
				st.CompactIndex, st.SummaryLength, st.TotalMessages)
		} else {
			show("not compacted: %d non-system messages, ~%d tokens",
				st.NonSystemMessages, st.EstimatedTokens)
		}

	case "/compact-reset":
		if err := a.compact.Reset(a.session); err != nil {
			show("%v", err)
			break
		}
		show("full transcript restored")

	case "/save":
		if a.db == nil {
			show("no store path configured; set store.path in the config file")
			break
		}
		if err := a.db.SaveSession(ctx, a.session); err != nil {
			show("save failed: %v", err)
			break
		}
		show("saved session %s", a.session.ID())

	default:
		show("unknown command %s; try /help", cmd)
	}
	return false
}

// listSessions prints saved sessions to stdout for the sessions subcommand.
func listSessions(ctx context.Context, cfg *config.Config) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("no store path configured; set store.path in the config file")
	}
	db, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no saved sessions")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-20s  updated %s\n", s.ID, s.Name, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
