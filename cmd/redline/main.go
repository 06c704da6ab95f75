// Package main provides the CLI entrypoint for redline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/redline/internal/config"
	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/persist"
	"github.com/verte-zerg/redline/internal/store"
	"github.com/verte-zerg/redline/internal/tui"
)

const (
	defaultDuration      = 15
	defaultMinWPM        = 20
	defaultInactivitySec = 5
	localUserID          = "local"
	drainTimeout         = 10 * time.Second
)

var (
	writeDuration      int
	writeMinWPM        int
	writeOrganizer     string
	writeOrganizerFile string
	writePreventCopy   bool
	writeRedact        bool
	writeShowHeadings  bool
	writeInactivity    bool
	writeInactivitySec int
	writeIntervals     []string
	writeTitle         string
	writeDraft         string

	remoteURL   string
	remoteToken string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "redline",
		Short:         "Timed writing sessions that delete your work if you stop",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runWriteCmd,
	}

	rootCmd.Flags().IntVar(&writeDuration, "duration", defaultDuration, "session length in minutes")
	rootCmd.Flags().IntVar(&writeMinWPM, "min-wpm", defaultMinWPM, "minimum words per minute")
	rootCmd.Flags().StringVar(&writeOrganizer, "organizer", "", "notes shown beside the editor")
	rootCmd.Flags().StringVar(&writeOrganizerFile, "organizer-file", "", "read organizer notes from a file")
	rootCmd.Flags().BoolVar(&writePreventCopy, "prevent-copy", false, "block paste while writing")
	rootCmd.Flags().BoolVar(&writeRedact, "redact", false, "mask the text while writing")
	rootCmd.Flags().BoolVar(&writeShowHeadings, "show-headings", false, "leave headings unmasked while redacting")
	rootCmd.Flags().BoolVar(&writeInactivity, "inactivity", true, "delete everything after a pause")
	rootCmd.Flags().IntVar(&writeInactivitySec, "inactivity-sec", defaultInactivitySec, "seconds of inactivity allowed")
	rootCmd.Flags().StringArrayVar(&writeIntervals, "interval", nil, "interval as kind:minutes[:name] (repeatable)")
	rootCmd.Flags().StringVar(&writeTitle, "title", "", "session title")
	rootCmd.Flags().StringVar(&writeDraft, "draft", "", "continue a draft in timed mode")

	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "session API base URL (default: local database)")
	rootCmd.PersistentFlags().StringVar(&remoteToken, "token", "", "bearer token for --remote")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newDraftsCmd())
	rootCmd.AddCommand(newDraftCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func runWriteCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := buildSessionConfig(cmd, fileCfg.Session)
	if err != nil {
		return err
	}

	gw, closeGateway, err := openGateway(cmd, fileCfg.Remote)
	if err != nil {
		return err
	}
	defer closeGateway()

	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}()

	outbox := persist.NewOutbox(gw, persist.DefaultOutboxCapacity, func(err error) {
		log.Printf("save failed: %v", err)
	})

	m := tui.NewModel(tui.Options{
		Config:  cfg,
		Gateway: gw,
		Sink:    outbox,
		DraftID: writeDraft,
		Bell:    os.Stderr,
	})
	program := tea.NewProgram(m)
	_, runErr := program.Run()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := outbox.Close(ctx); err != nil {
		logErrf("some writes were not saved: %v\n", err)
	}

	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	if err := m.Err(); err != nil {
		if errors.Is(err, persist.ErrUnauthorized) {
			return fmt.Errorf("access denied: check the remote token")
		}
		return fmt.Errorf("failed to start session: %w", err)
	}
	if outcome := m.Outcome(); outcome != model.OutcomeNone {
		logErrf("session %s: %s\n", m.SessionID(), outcome)
	}
	return nil
}

// buildSessionConfig merges flags over the [session] config section.
func buildSessionConfig(cmd *cobra.Command, fileCfg config.SessionConfig) (model.SessionConfig, error) {
	applyIntConfig(cmd, "duration", &writeDuration, fileCfg.Duration)
	applyIntConfig(cmd, "min-wpm", &writeMinWPM, fileCfg.MinWPM)
	applyStringConfig(cmd, "organizer", &writeOrganizer, fileCfg.Organizer)
	applyBoolConfig(cmd, "prevent-copy", &writePreventCopy, fileCfg.PreventCopy)
	applyBoolConfig(cmd, "redact", &writeRedact, fileCfg.Redact)
	applyBoolConfig(cmd, "show-headings", &writeShowHeadings, fileCfg.ExemptHeadings)
	applyBoolConfig(cmd, "inactivity", &writeInactivity, fileCfg.Inactivity)
	applyIntConfig(cmd, "inactivity-sec", &writeInactivitySec, fileCfg.InactivitySec)

	organizer := writeOrganizer
	if writeOrganizerFile != "" {
		data, err := os.ReadFile(writeOrganizerFile)
		if err != nil {
			return model.SessionConfig{}, fmt.Errorf("failed to read organizer file: %w", err)
		}
		organizer = strings.TrimRight(string(data), "\n")
	}

	cfg := model.SessionConfig{
		Title:             writeTitle,
		DurationMin:       writeDuration,
		MinWPM:            writeMinWPM,
		OrganizerText:     organizer,
		PreventCopy:       writePreventCopy,
		Redact:            writeRedact,
		ExemptHeadings:    writeShowHeadings,
		InactivityEnabled: writeInactivity,
		InactivitySec:     writeInactivitySec,
	}

	switch {
	case cmd.Flags().Changed("interval"):
		intervals, err := parseIntervals(writeIntervals)
		if err != nil {
			return model.SessionConfig{}, err
		}
		cfg.UseIntervals = true
		cfg.Intervals = intervals
	case len(fileCfg.Intervals) > 0 && !cmd.Flags().Changed("duration"):
		cfg.UseIntervals = true
		cfg.Intervals = fileCfg.Intervals
	}

	if err := cfg.Validate(); err != nil {
		return model.SessionConfig{}, err
	}
	return cfg, nil
}

func parseIntervals(values []string) ([]model.Interval, error) {
	out := make([]model.Interval, 0, len(values))
	for _, value := range values {
		it, err := parseInterval(value)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// parseInterval reads kind:minutes[:name].
func parseInterval(value string) (model.Interval, error) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return model.Interval{}, fmt.Errorf("invalid --interval %q: expected kind:minutes[:name]", value)
	}
	kind := model.IntervalKind(strings.ToLower(strings.TrimSpace(parts[0])))
	if !kind.Valid() {
		return model.Interval{}, fmt.Errorf("invalid --interval %q: kind must be work, edit or break", value)
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minutes < 1 {
		return model.Interval{}, fmt.Errorf("invalid --interval %q: minutes must be a positive integer", value)
	}
	it := model.Interval{Kind: kind, Minutes: minutes}
	if len(parts) == 3 {
		it.Name = strings.TrimSpace(parts[2])
	}
	return it, nil
}

// openGateway returns the remote API when one is configured and the local
// database otherwise.
func openGateway(cmd *cobra.Command, remoteCfg config.RemoteConfig) (persist.Gateway, func(), error) {
	applyStringConfig(cmd, "remote", &remoteURL, remoteCfg.URL)
	applyStringConfig(cmd, "token", &remoteToken, remoteCfg.Token)
	if remoteURL != "" {
		return persist.NewHTTP(remoteURL, remoteToken), func() {}, nil
	}
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}
	return &persist.Local{Store: st, UserID: localUserID}, closeStore, nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

// openLogFile routes the standard logger to a file while the TUI owns the terminal.
func openLogFile() (*os.File, error) {
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := tea.LogToFile(path, "redline")
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return f, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
