// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/redline/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Session SessionConfig `toml:"session"`
	Remote  RemoteConfig  `toml:"remote"`
	Server  ServerConfig  `toml:"server"`
}

// SessionConfig maps session defaults. Nil fields are unset.
type SessionConfig struct {
	Duration       *int             `toml:"duration"`
	MinWPM         *int             `toml:"min-wpm"`
	Organizer      *string          `toml:"organizer"`
	PreventCopy    *bool            `toml:"prevent-copy"`
	Redact         *bool            `toml:"redact"`
	ExemptHeadings *bool            `toml:"show-headings"`
	Inactivity     *bool            `toml:"inactivity"`
	InactivitySec  *int             `toml:"inactivity-sec"`
	Intervals      []model.Interval `toml:"intervals"`
}

// RemoteConfig points the client at a session API instead of the local database.
type RemoteConfig struct {
	URL   *string `toml:"url"`
	Token *string `toml:"token"`
}

// ServerConfig configures `redline serve`.
type ServerConfig struct {
	Addr             *string           `toml:"addr"`
	AnonymousUser    *string           `toml:"anonymous-user"`
	DraftEndOverride *bool             `toml:"draft-end-override"`
	Tokens           map[string]string `toml:"tokens"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	for i, it := range cfg.Session.Intervals {
		if !it.Kind.Valid() {
			return FileConfig{}, fmt.Errorf("session.intervals[%d]: unknown kind %q", i, it.Kind)
		}
	}
	return cfg, nil
}

// DefaultTemplate is written by `redline config` when no file exists.
func DefaultTemplate() string {
	return `# redline config
# Uncomment a value to enable it. CLI flags override config values.

[session]
# duration = 15
# min-wpm = 20
# organizer = "Outline: intro, argument, close"
# prevent-copy = false
# redact = false
# show-headings = false   # keep headings readable when redact is on
# inactivity = true
# inactivity-sec = 5

# Intervals replace duration when present.
# [[session.intervals]]
# name = "draft"
# minutes = 20
# kind = "work"
#
# [[session.intervals]]
# minutes = 5
# kind = "break"

[remote]
# url = "http://127.0.0.1:8470"
# token = ""

[server]
# addr = "127.0.0.1:8470"
# anonymous-user = ""
# draft-end-override = false

# [server.tokens]
# "change-me" = "writer"
`
}
