package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MAILROOM_"

// Config carries everything the triage service needs at startup. Defaults are
// declared on the struct and overridden by MAILROOM_* environment variables
// (e.g. MAILROOM_DATABASE_PATH, MAILROOM_OPENAI_API_KEY).
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Log       LogConfig       `koanf:"log"`
}

type DatabaseConfig struct {
	// Path is the sqlite database location, ":memory:" for ephemeral runs.
	Path string `koanf:"path"`
}

// OpenAIConfig configures the optional oracle. An empty APIKey switches every
// decision point to its deterministic fallback.
type OpenAIConfig struct {
	APIKey     string `koanf:"api_key"`
	ChatModel  string `koanf:"chat_model"`
	EmbedModel string `koanf:"embed_model"`
}

type RetrievalConfig struct {
	TopK int `koanf:"top_k"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

func Default() *Config {
	return &Config{
		Database:  DatabaseConfig{Path: "mailroom.db"},
		OpenAI:    OpenAIConfig{ChatModel: "gpt-4o-mini", EmbedModel: "text-embedding-3-small"},
		Retrieval: RetrievalConfig{TopK: 4},
		Log:       LogConfig{Level: "info"},
	}
}

// Load builds the effective configuration: struct defaults first, then
// environment overrides.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// transformEnvKey converts MAILROOM_OPENAI_API_KEY to openai.api_key. The
// first underscore separates the section; the rest stays joined.
func transformEnvKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return section
	}
	return section + "." + rest
}
