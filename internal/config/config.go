// Package config loads party-deck configuration from a TOML file with
// zero-value defaults, an env override for the bot token, and a file watcher
// for live reload.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the TOML config file under the party-deck directory.
const FileName = "config.toml"

// Config is the full user-facing configuration.
type Config struct {
	Discord   DiscordSettings   `toml:"discord"`
	Session   SessionSettings   `toml:"session"`
	Scheduler SchedulerSettings `toml:"scheduler"`
	Logs      LogSettings       `toml:"logs"`
}

// DiscordSettings configures the chat-platform binding.
type DiscordSettings struct {
	// Token is the bot token. The PARTYDECK_TOKEN (or DISCORD_TOKEN) env
	// var overrides it so the token can stay out of the config file.
	Token string `toml:"token"`

	// RecruitChannelID is the channel where recruitment commands are
	// accepted and threads are opened.
	RecruitChannelID string `toml:"recruit_channel_id"`

	// CommandPrefix for text commands (default "!")
	CommandPrefix string `toml:"command_prefix"`

	// Roles are the selectable role labels in the sign-up menu.
	Roles []string `toml:"roles"`
}

// SessionSettings configures session domain constants.
type SessionSettings struct {
	// Capacity is the roster size (default 8); overflow is waitlisted.
	Capacity int `toml:"capacity"`

	// ReminderLeadMinutes before start time (default 30)
	ReminderLeadMinutes int `toml:"reminder_lead_minutes"`

	// CleanupDelayMinutes after start time (default 60)
	CleanupDelayMinutes int `toml:"cleanup_delay_minutes"`

	// BackwardToleranceMinutes a start time may lie in the past (default 5)
	BackwardToleranceMinutes int `toml:"backward_tolerance_minutes"`

	// Timezone is the IANA zone used to resolve typed dates (default:
	// the process local zone).
	Timezone string `toml:"timezone"`

	// PromptTimeoutSeconds bounds interactive detail-entry waits (default 60)
	PromptTimeoutSeconds int `toml:"prompt_timeout_seconds"`
}

// SchedulerSettings configures the tick loop and dispatch.
type SchedulerSettings struct {
	// TickSeconds between scheduler passes (default 60)
	TickSeconds int `toml:"tick_seconds"`

	// StalenessMinutes after which a missed reminder is dropped instead of
	// sent late (default 30, the reminder lead: anything recovered before
	// start still fires)
	StalenessMinutes int `toml:"staleness_minutes"`

	// DispatchTimeoutSeconds bounds each adapter call (default 15)
	DispatchTimeoutSeconds int `toml:"dispatch_timeout_seconds"`

	// MessagesPerSecond outbound rate limit (default 5)
	MessagesPerSecond float64 `toml:"messages_per_second"`

	// Burst for the rate limiter (default 10)
	Burst int `toml:"burst"`
}

// LogSettings mirrors logging.Config in TOML form.
type LogSettings struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
	Stderr     bool   `toml:"stderr"`
}

// DefaultRoles matches the original guild's eight-class lineup shape but is
// deliberately generic; guilds override it in config.toml.
var DefaultRoles = []string{
	"Tank", "Healer", "Bard", "Lancer",
	"Knight", "Stinger", "Alchemist", "Gunner",
}

// DefaultDir returns the base party-deck directory (~/.party-deck).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".party-deck"), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the config file at path. A missing file yields pure defaults;
// a malformed file is an error. The token env override is always applied.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Discord.CommandPrefix == "" {
		c.Discord.CommandPrefix = "!"
	}
	if len(c.Discord.Roles) == 0 {
		c.Discord.Roles = append([]string(nil), DefaultRoles...)
	}
	if c.Session.Capacity <= 0 {
		c.Session.Capacity = 8
	}
	if c.Session.ReminderLeadMinutes <= 0 {
		c.Session.ReminderLeadMinutes = 30
	}
	if c.Session.CleanupDelayMinutes <= 0 {
		c.Session.CleanupDelayMinutes = 60
	}
	if c.Session.BackwardToleranceMinutes <= 0 {
		c.Session.BackwardToleranceMinutes = 5
	}
	if c.Session.PromptTimeoutSeconds <= 0 {
		c.Session.PromptTimeoutSeconds = 60
	}
	if c.Scheduler.TickSeconds <= 0 {
		c.Scheduler.TickSeconds = 60
	}
	if c.Scheduler.StalenessMinutes <= 0 {
		c.Scheduler.StalenessMinutes = 30
	}
	if c.Scheduler.DispatchTimeoutSeconds <= 0 {
		c.Scheduler.DispatchTimeoutSeconds = 15
	}
	if c.Scheduler.MessagesPerSecond <= 0 {
		c.Scheduler.MessagesPerSecond = 5
	}
	if c.Scheduler.Burst <= 0 {
		c.Scheduler.Burst = 10
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if token := os.Getenv("PARTYDECK_TOKEN"); token != "" {
		c.Discord.Token = token
	} else if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		c.Discord.Token = token
	}
}

// Location resolves the configured timezone, falling back to the process
// local zone on empty or bad values.
func (c *Config) Location() *time.Location {
	if c.Session.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Session.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Duration accessors, so callers never multiply units themselves.

func (s SessionSettings) ReminderOffset() time.Duration {
	return time.Duration(s.ReminderLeadMinutes) * time.Minute
}

func (s SessionSettings) CleanupOffset() time.Duration {
	return time.Duration(s.CleanupDelayMinutes) * time.Minute
}

func (s SessionSettings) BackwardTolerance() time.Duration {
	return time.Duration(s.BackwardToleranceMinutes) * time.Minute
}

func (s SessionSettings) PromptTimeout() time.Duration {
	return time.Duration(s.PromptTimeoutSeconds) * time.Second
}

func (s SchedulerSettings) TickInterval() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

func (s SchedulerSettings) Staleness() time.Duration {
	return time.Duration(s.StalenessMinutes) * time.Minute
}

func (s SchedulerSettings) DispatchTimeout() time.Duration {
	return time.Duration(s.DispatchTimeoutSeconds) * time.Second
}
