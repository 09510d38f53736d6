// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and AFFIRM_* env vars.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"runtime"
)

// Mode names used as keys in Triggers and Intervals.
const (
	ModeU18Release   = "u18_release"
	ModeU18Register  = "u18_register"
	ModeFrequency    = "frequency"
	ModeDiaryOn      = "diary_register"
	ModeDiaryOff     = "diary_release"
	ModeFortune      = "fortune"
	ModeAnalyze      = "analyze"
	ModeDJ           = "dj"
	ModeConversation = "conversation"
	ModeCheer        = "cheer"
	ModeAffirmation  = "affirmation"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address for /healthz, /stats and /events.
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory event queue across all shards.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of queue shards, one worker each.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the seen-event and effect ledgers.
	DedupeSize int `koanf:"dedupe_size"`

	// RetryAttempts bounds how many times one event's dispatch runs.
	RetryAttempts int `koanf:"retry_attempts"`

	// HTTPRetryMax bounds transport-level retries of a single remote call.
	HTTPRetryMax int `koanf:"http_retry_max"`

	// Bluesky account and endpoints.
	RelayHost             string `koanf:"relay_host"`
	BskyHost              string `koanf:"bsky_host"`
	BskyHandle            string `koanf:"bsky_handle"`
	BskyPassword          string `koanf:"bsky_password"`
	BotDID                string `koanf:"bot_did"`
	SessionRefreshMinutes int    `koanf:"session_refresh_minutes"`

	// Gemini generation.
	GeminiAPIKey string `koanf:"gemini_api_key"`
	GeminiModel  string `koanf:"gemini_model"`

	// DatabasePath is the SQLite file; DatabaseURL selects PostgreSQL when set.
	DatabasePath string `koanf:"database_path"`
	DatabaseURL  string `koanf:"database_url"`

	// SubscribersCSVURL points at a published spreadsheet (first column: DID).
	SubscribersCSVURL      string `koanf:"subscribers_csv_url"`
	AudienceRefreshMinutes int    `koanf:"audience_refresh_minutes"`

	// SlackWebhookURL receives alerts for events that exhausted their retries.
	SlackWebhookURL string `koanf:"slack_webhook_url"`

	// Filtering.
	SpamKeywords    []string `koanf:"spam_keywords"`
	ForbiddenLabels []string `koanf:"forbidden_labels"`

	// DailyCap is the RPD budget for AI-cost-bearing modes.
	DailyCap int `koanf:"daily_cap"`
	// TimezoneOffsetMinutes positions the daily budget boundary (540 = JST).
	TimezoneOffsetMinutes int `koanf:"timezone_offset_minutes"`

	// Intervals holds per-mode minimum minutes between two reactions of the
	// same kind for one actor.
	Intervals map[string]int `koanf:"intervals"`

	// Triggers holds per-mode keyword lists (case-insensitive substring match).
	Triggers map[string][]string `koanf:"triggers"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		EventQueueSize:         10_000,
		WorkerCount:            runtime.NumCPU() * 2,
		DedupeSize:             100_000,
		RetryAttempts:          3,
		HTTPRetryMax:           3,
		RelayHost:              "wss://bsky.network",
		BskyHost:               "https://bsky.social",
		SessionRefreshMinutes:  60,
		GeminiModel:            "gemini-2.0-flash",
		DatabasePath:           "affirmbot.db",
		AudienceRefreshMinutes: 10,
		SpamKeywords:           []string{"donate", "donation", "donating", "gofund.me", "paypal.me"},
		ForbiddenLabels:        []string{"spam"},
		DailyCap:               1000,
		TimezoneOffsetMinutes:  9 * 60,
		Intervals: map[string]int{
			ModeAffirmation:  10,
			ModeFortune:      0,
			ModeAnalyze:      0,
			ModeDJ:           0,
			ModeConversation: 0,
			ModeCheer:        8 * 60,
		},
		Triggers: map[string][]string{
			ModeU18Release:   {"18歳以上です", "u18 release", "i'm over 18"},
			ModeU18Register:  {"18歳未満です", "u18 register", "i'm under 18"},
			ModeFrequency:    {"freq", "頻度"},
			ModeDiaryOn:      {"日記をつけて", "diary register"},
			ModeDiaryOff:     {"日記をやめて", "diary release"},
			ModeFortune:      {"占って", "fortune"},
			ModeAnalyze:      {"分析して", "analyze me"},
			ModeDJ:           {"djお願い", "dj please"},
			ModeConversation: {},
			ModeCheer:        {"#全肯定応援団", "#cheer_me"},
		},
	}
}

// Interval returns the configured minutes for mode (0 when unset).
func (c *Config) Interval(mode string) int {
	return c.Intervals[mode]
}

// TriggersFor returns the keyword list for mode.
func (c *Config) TriggersFor(mode string) []string {
	return c.Triggers[mode]
}
