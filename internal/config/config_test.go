package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/redline/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("expected missing file to be fine, got %v", err)
	}
	if cfg.Session.Duration != nil || cfg.Remote.URL != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := writeConfig(t, `
[session]
duration = 25
min-wpm = 18
inactivity = true
inactivity-sec = 7
show-headings = true

[[session.intervals]]
name = "draft"
minutes = 20
kind = "work"

[[session.intervals]]
minutes = 5
kind = "break"

[remote]
url = "http://example.test"

[server]
addr = ":9000"
draft-end-override = true

[server.tokens]
abc = "writer"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg.Session.Duration != 25 || *cfg.Session.MinWPM != 18 || *cfg.Session.InactivitySec != 7 {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Session.Redact != nil {
		t.Fatalf("expected unset redact to stay nil")
	}
	if len(cfg.Session.Intervals) != 2 || cfg.Session.Intervals[0].Name != "draft" || cfg.Session.Intervals[1].Kind != model.KindBreak {
		t.Fatalf("unexpected intervals: %+v", cfg.Session.Intervals)
	}
	if *cfg.Remote.URL != "http://example.test" || cfg.Remote.Token != nil {
		t.Fatalf("unexpected remote config: %+v", cfg.Remote)
	}
	if *cfg.Server.Addr != ":9000" || !*cfg.Server.DraftEndOverride || cfg.Server.Tokens["abc"] != "writer" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "[session]\nspeed = 3\n",
		"bad kind":     "[[session.intervals]]\nminutes = 1\nkind = \"nap\"\n",
		"invalid toml": "[session\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDefaultTemplateDecodes(t *testing.T) {
	var cfg FileConfig
	if _, err := toml.Decode(DefaultTemplate(), &cfg); err != nil {
		t.Fatalf("template must be valid toml: %v", err)
	}
	if cfg.Session.Duration != nil {
		t.Fatalf("template values must be commented out")
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "redline", "config.toml") {
		t.Fatalf("unexpected config path %q", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "redline", "redline.db") {
		t.Fatalf("unexpected db path %q", got)
	}
	if got := DefaultLogPath(); !strings.HasSuffix(got, "redline.log") {
		t.Fatalf("unexpected log path %q", got)
	}
}
