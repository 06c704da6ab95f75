package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/redline/internal/api"
	"github.com/verte-zerg/redline/internal/config"
	"github.com/verte-zerg/redline/internal/historyui"
	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/persist"
	"github.com/verte-zerg/redline/internal/stats"
)

const defaultServeAddr = "127.0.0.1:8470"

var (
	historyScope  string
	historyLast   int
	historyBrowse bool

	draftTitle string
	draftFile  string

	showFormat string

	serveAddr string
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.DefaultTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// withGateway loads the config, opens the configured backend and runs fn.
func withGateway(cmd *cobra.Command, fn func(ctx context.Context, gw persist.Gateway) error) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	gw, closeGateway, err := openGateway(cmd, fileCfg.Remote)
	if err != nil {
		return err
	}
	defer closeGateway()
	err = fn(cmd.Context(), gw)
	if errors.Is(err, persist.ErrUnauthorized) {
		return fmt.Errorf("access denied: check the remote token")
	}
	return err
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyScope, "scope", string(model.ScopeHistory), "history, drafts or all")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	cmd.Flags().BoolVar(&historyBrowse, "browse", false, "browse sessions interactively")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	scope := model.Scope(historyScope)
	switch scope {
	case model.ScopeHistory, model.ScopeDrafts, model.ScopeAll:
	default:
		return fmt.Errorf("--scope must be history, drafts or all")
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	return withGateway(cmd, func(ctx context.Context, gw persist.Gateway) error {
		if historyBrowse {
			program := tea.NewProgram(historyui.NewModel(gw, scope, historyLast), tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("failed to run history TUI: %w", err)
			}
			return nil
		}
		records, err := gw.List(ctx, model.ListFilter{Scope: scope, Last: historyLast})
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if err := stats.RenderSummary(out, records); err != nil {
			return err
		}
		return stats.RenderHistory(out, records)
	})
}

func newDraftsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drafts",
		Short: "List drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withGateway(cmd, func(ctx context.Context, gw persist.Gateway) error {
				records, err := gw.List(ctx, model.ListFilter{Scope: model.ScopeDrafts})
				if err != nil {
					return fmt.Errorf("failed to list drafts: %w", err)
				}
				if len(records) == 0 {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "No drafts.")
					return err
				}
				return stats.RenderHistory(cmd.OutOrStdout(), records)
			})
		},
	}
}

func newDraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Manage drafts",
	}
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create a draft",
		Args:  cobra.NoArgs,
		RunE:  runDraftNewCmd,
	}
	newCmd.Flags().StringVar(&draftTitle, "title", "", "draft title")
	newCmd.Flags().StringVar(&draftFile, "file", "", "initial content from a file (- for stdin)")
	cmd.AddCommand(newCmd)
	return cmd
}

func runDraftNewCmd(cmd *cobra.Command, _ []string) error {
	var content string
	switch draftFile {
	case "":
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		content = string(data)
	default:
		data, err := os.ReadFile(draftFile)
		if err != nil {
			return fmt.Errorf("failed to read draft file: %w", err)
		}
		content = string(data)
	}
	return withGateway(cmd, func(ctx context.Context, gw persist.Gateway) error {
		rec, err := gw.Create(ctx, model.CreateRequest{
			Outcome: model.OutcomeDraft,
			Title:   draftTitle,
			Content: content,
		})
		if err != nil {
			return fmt.Errorf("failed to create draft: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
		return err
	})
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
	cmd.Flags().StringVar(&showFormat, "format", "text", "text, yaml or json")
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	switch showFormat {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("--format must be text, yaml or json")
	}
	return withGateway(cmd, func(ctx context.Context, gw persist.Gateway) error {
		rec, err := resolveRecord(ctx, gw, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch showFormat {
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("failed to encode yaml: %w", err)
			}
			return enc.Close()
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		default:
			return renderRecordText(out, rec, stdoutIsTerminal())
		}
	})
}

// resolveRecord accepts a full id or the short prefix printed by history.
func resolveRecord(ctx context.Context, gw persist.Gateway, id string) (model.SessionRecord, error) {
	rec, err := gw.Get(ctx, id)
	if err == nil || !errors.Is(err, persist.ErrNotFound) {
		return rec, err
	}
	records, lerr := gw.List(ctx, model.ListFilter{Scope: model.ScopeAll})
	if lerr != nil {
		return model.SessionRecord{}, fmt.Errorf("failed to list sessions: %w", lerr)
	}
	var matches []model.SessionRecord
	for _, r := range records {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return model.SessionRecord{}, fmt.Errorf("session %q: %w", id, persist.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.SessionRecord{}, fmt.Errorf("session prefix %q is ambiguous (%d matches)", id, len(matches))
	}
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func renderRecordText(w io.Writer, rec model.SessionRecord, pretty bool) error {
	doc := stats.RecordMarkdown(rec)
	if pretty {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(terminalWidth()),
		)
		if err == nil {
			if rendered, rerr := renderer.Render(doc); rerr == nil {
				doc = rendered
			}
		}
	}
	_, err := io.WriteString(w, doc)
	return err
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd, func(ctx context.Context, gw persist.Gateway) error {
				rec, err := resolveRecord(ctx, gw, args[0])
				if err != nil {
					return err
				}
				if err := gw.Delete(ctx, rec.ID); err != nil {
					return fmt.Errorf("failed to delete session: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", rec.ID)
				return err
			})
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultServeAddr, "listen address")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
	opts := api.Options{Tokens: fileCfg.Server.Tokens}
	if fileCfg.Server.AnonymousUser != nil {
		opts.AnonymousUser = *fileCfg.Server.AnonymousUser
	}
	if fileCfg.Server.DraftEndOverride != nil {
		opts.DraftEndOverride = *fileCfg.Server.DraftEndOverride
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	opts.Store = st

	server, err := api.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to configure server: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if len(opts.Tokens) == 0 {
		logErrln("warning: no tokens configured; every request runs as", opts.AnonymousUser)
	}
	return server.Serve(ctx, serveAddr)
}
