package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/redline/internal/config"
	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/persist"
	"github.com/verte-zerg/redline/internal/store"
)

func TestParseInterval(t *testing.T) {
	it, err := parseInterval("work:20:outline")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if it.Kind != model.KindWork || it.Minutes != 20 || it.Name != "outline" {
		t.Fatalf("unexpected interval %+v", it)
	}
	it, err = parseInterval("Break:5")
	if err != nil || it.Kind != model.KindBreak || it.Name != "" {
		t.Fatalf("unexpected interval %+v (%v)", it, err)
	}
	for _, bad := range []string{"work", "nap:5", "edit:0", "edit:x"} {
		if _, err := parseInterval(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBuildSessionConfigFlagsOverrideFile(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--min-wpm", "30", "--redact"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	duration, minWPM, inactivitySec := 25, 10, 8
	cfg, err := buildSessionConfig(cmd, config.SessionConfig{
		Duration:      &duration,
		MinWPM:        &minWPM,
		InactivitySec: &inactivitySec,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.DurationMin != 25 || cfg.MinWPM != 30 || cfg.InactivitySec != 8 {
		t.Fatalf("unexpected merge %+v", cfg)
	}
	if !cfg.Redact || !cfg.InactivityEnabled || cfg.UseIntervals {
		t.Fatalf("unexpected flags %+v", cfg)
	}
	if cfg.ExemptHeadings {
		t.Fatalf("expected headings to be masked by default")
	}

	cmd = newRootCmd()
	if err := cmd.ParseFlags([]string{"--redact", "--show-headings"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err = buildSessionConfig(cmd, config.SessionConfig{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !cfg.ExemptHeadings {
		t.Fatalf("expected --show-headings to exempt headings from masking")
	}
}

func TestBuildSessionConfigIntervals(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--interval", "work:10", "--interval", "break:2:tea"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := buildSessionConfig(cmd, config.SessionConfig{
		Intervals: []model.Interval{{Minutes: 1, Kind: model.KindEdit}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !cfg.UseIntervals || len(cfg.Intervals) != 2 || cfg.TotalMinutes() != 12 {
		t.Fatalf("expected flag intervals to win, got %+v", cfg.Intervals)
	}

	cmd = newRootCmd()
	cfg, err = buildSessionConfig(cmd, config.SessionConfig{
		Intervals: []model.Interval{{Minutes: 3, Kind: model.KindEdit}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !cfg.UseIntervals || cfg.TotalMinutes() != 3 {
		t.Fatalf("expected config intervals, got %+v", cfg)
	}

	cmd = newRootCmd()
	if err := cmd.ParseFlags([]string{"--min-wpm", "0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := buildSessionConfig(cmd, config.SessionConfig{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestResolveRecordByPrefix(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "redline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	gw := &persist.Local{Store: st, UserID: localUserID}
	ctx := context.Background()
	rec, err := gw.Create(ctx, model.CreateRequest{DurationMin: 5, MinWPM: 10, Title: "Essay"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := resolveRecord(ctx, gw, rec.ID[:8])
	if err != nil || got.ID != rec.ID {
		t.Fatalf("expected prefix match, got %+v (%v)", got, err)
	}
	if _, err := resolveRecord(ctx, gw, "zzzz"); !errors.Is(err, persist.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRenderRecordTextPlain(t *testing.T) {
	rec := model.SessionRecord{
		Title:         "Morning pages",
		Outcome:       model.OutcomeCompleted,
		DurationMin:   10,
		MinWPM:        20,
		ElapsedSec:    600,
		WordCount:     250,
		WPMAtEnd:      25,
		OrganizerText: "keep going",
		Content:       "# Morning\nwords",
	}
	var buf bytes.Buffer
	if err := renderRecordText(&buf, rec, false); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# Morning pages", "Outcome: completed", "Time: 10:00 of 10 min", "250 at 25 WPM", "## Notes", "words"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
