// Package config loads bibliofind's runtime configuration from an
// optional YAML file plus environment variables, grounded on the
// teacher's viper.New()/SetConfigType("yaml")/AutomaticEnv() pattern
// (cmd/bd/config.go, internal/labelmutex/policy.go): a scoped *viper.Viper
// per concern rather than one global instance, with env vars always
// taking precedence over the file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is bibliofind's full runtime configuration (spec.md §6 External
// Interfaces: oracle credentials, storage locations, server bind address).
type Config struct {
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	LogLevel string         `mapstructure:"log_level"`
}

// OracleConfig configures the shared LLM oracle client (pkg/oracle.Config).
type OracleConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxRetries     int    `mapstructure:"max_retries"`
	InitialBackoff string `mapstructure:"initial_backoff"`
}

// StorageConfig locates the bibliographic store, session store, and the
// append-only oracle caches (plan, intent, and one alias-decision cache
// per alias field). Place/publisher/agent alias decisions are kept in
// separate files: they're independent oracle verdicts over independent
// vocabularies, and a raw string that cleans to the same key under two
// different fields (e.g. a place name that is also someone's surname)
// must not have one field's decision silently reused for the other.
type StorageConfig struct {
	BibliostoreDSN          string `mapstructure:"bibliostore_dsn"`
	SessionDSN              string `mapstructure:"session_dsn"`
	PlanCachePath           string `mapstructure:"plan_cache_path"`
	IntentCachePath         string `mapstructure:"intent_cache_path"`
	PlaceAliasCachePath     string `mapstructure:"place_alias_cache_path"`
	PublisherAliasCachePath string `mapstructure:"publisher_alias_cache_path"`
	AgentAliasCachePath     string `mapstructure:"agent_alias_cache_path"`
}

// ServerConfig carries a listen address. No command reads it:
// cmd/bibliofind serve is a stdin/stdout loop.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// envPrefix namespaces every environment-variable override, e.g.
// BIBLIOFIND_ORACLE_API_KEY, BIBLIOFIND_STORAGE_BIBLIOSTORE_DSN.
const envPrefix = "BIBLIOFIND"

// Load reads configuration from path (if non-empty and present), then
// layers environment variable overrides on top. A missing path is not an
// error: defaults plus env vars are enough to run.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read %q: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind every key explicitly: AutomaticEnv alone only resolves env vars
	// for keys viper already knows about from SetDefault/config file, and
	// nested mapstructure keys need an explicit BindEnv to be discoverable
	// from a fresh Viper with no config file present.
	for _, key := range []string{
		"oracle.api_key", "oracle.model", "oracle.max_retries", "oracle.initial_backoff",
		"storage.bibliostore_dsn", "storage.session_dsn", "storage.plan_cache_path",
		"storage.intent_cache_path", "storage.place_alias_cache_path",
		"storage.publisher_alias_cache_path", "storage.agent_alias_cache_path",
		"server.listen_addr", "log_level",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind env %q: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("oracle.model", "claude-haiku-4-5")
	v.SetDefault("oracle.max_retries", 3)
	v.SetDefault("oracle.initial_backoff", "1s")
	v.SetDefault("storage.bibliostore_dsn", "bibliofind.db")
	v.SetDefault("storage.session_dsn", "sessions.db")
	v.SetDefault("storage.plan_cache_path", "cache/plans.jsonl")
	v.SetDefault("storage.intent_cache_path", "cache/intents.jsonl")
	v.SetDefault("storage.place_alias_cache_path", "cache/alias_decisions_place.jsonl")
	v.SetDefault("storage.publisher_alias_cache_path", "cache/alias_decisions_publisher.jsonl")
	v.SetDefault("storage.agent_alias_cache_path", "cache/alias_decisions_agent.jsonl")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("log_level", "info")
}
