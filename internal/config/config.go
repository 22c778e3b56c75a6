// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CHANRELAY_TELEGRAM_APP_ID.
const EnvPrefix = "CHANRELAY"

// Config is the top-level chanrelay configuration.
type Config struct {
	DataDir    string           `mapstructure:"data_dir"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Bot        BotConfig        `mapstructure:"bot"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Networking NetworkingConfig `mapstructure:"networking"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// TelegramConfig holds the MTProto application and bot credentials.
// AppHash and BotToken may be keyring:// references.
type TelegramConfig struct {
	AppID       int    `mapstructure:"app_id"`
	AppHash     string `mapstructure:"app_hash"`
	BotToken    string `mapstructure:"bot_token"`
	SessionFile string `mapstructure:"session_file"`
}

// RelayConfig tunes copying.
type RelayConfig struct {
	MaxBatchSize    int             `mapstructure:"max_batch_size"`
	FloodWait       FloodWaitConfig `mapstructure:"flood_wait"`
	ProbeText       string          `mapstructure:"probe_text"`
	ForbidSelfRelay bool            `mapstructure:"forbid_self_relay"`
	QueueSize       int             `mapstructure:"queue_size"`
}

// FloodWaitConfig bounds how long a single copy may wait out rate limits.
type FloodWaitConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	MaxTotalWait time.Duration `mapstructure:"max_total_wait"`
}

// BotConfig controls the operator chat.
type BotConfig struct {
	Admins    []int64 `mapstructure:"admins"`
	OwnerName string  `mapstructure:"owner_name"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// NetworkingConfig controls the status API listener. An empty Listen
// disables it.
type NetworkingConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("telegram.app_id", 0)
	v.SetDefault("telegram.app_hash", "")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.session_file", "")
	v.SetDefault("relay.max_batch_size", 100)
	v.SetDefault("relay.flood_wait.max_attempts", 5)
	v.SetDefault("relay.flood_wait.max_total_wait", "10m")
	v.SetDefault("relay.probe_text", "Testing admin privileges...")
	v.SetDefault("relay.forbid_self_relay", true)
	v.SetDefault("relay.queue_size", 256)
	v.SetDefault("bot.admins", []int64{})
	v.SetDefault("bot.owner_name", "")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds CHANRELAY_* environment variables to config keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix CHANRELAY_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, relayerr.Errorf(relayerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// ResolveDataDir returns the configured data directory or ~/.chanrelay.
func (c *Config) ResolveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chanrelay"
	}
	return filepath.Join(home, ".chanrelay")
}

// SessionPath returns the MTProto session file, relative paths resolved
// against the data directory.
func (c *Config) SessionPath() string {
	p := c.Telegram.SessionFile
	if p == "" {
		p = "session.json"
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ResolveDataDir(), p)
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateRelay()...)
	errs = append(errs, c.validateBot()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

// ValidateCredentials reports the Telegram settings `chanrelay start`
// cannot run without. They are not part of Validate so that read-only
// commands work on an unconfigured install.
func (c *Config) ValidateCredentials() []error {
	var errs []error

	if c.Telegram.AppID <= 0 {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: telegram.app_id must be set (get one at https://my.telegram.org)"))
	}
	if c.Telegram.AppHash == "" {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: telegram.app_hash must be set"))
	}
	if c.Telegram.BotToken == "" {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: telegram.bot_token must be set"))
	}

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		return nil
	}

	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: networking.listen must be a valid host:port address, got %q: %w",
			c.Networking.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "file": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, file], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateRelay() []error {
	var errs []error

	if c.Relay.MaxBatchSize < 1 || c.Relay.MaxBatchSize > 1000 {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: relay.max_batch_size must be between 1 and 1000, got %d",
			c.Relay.MaxBatchSize,
		))
	}

	if c.Relay.FloodWait.MaxAttempts < 1 {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: relay.flood_wait.max_attempts must be at least 1, got %d",
			c.Relay.FloodWait.MaxAttempts,
		))
	}

	if c.Relay.FloodWait.MaxTotalWait <= 0 {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: relay.flood_wait.max_total_wait must be greater than 0, got %s",
			c.Relay.FloodWait.MaxTotalWait,
		))
	}

	if strings.TrimSpace(c.Relay.ProbeText) == "" {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: relay.probe_text must not be empty"))
	}

	if c.Relay.QueueSize < 1 {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: relay.queue_size must be at least 1, got %d",
			c.Relay.QueueSize,
		))
	}

	return errs
}

func (c *Config) validateBot() []error {
	var errs []error

	for i, id := range c.Bot.Admins {
		if id <= 0 {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"config: bot.admins[%d] must be a user id, got %d",
				i, id,
			))
		}
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: logging.level must be one of [debug, info, warn, error], got %q",
			c.Logging.Level,
		))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: logging.format must be one of [text, json], got %q",
			c.Logging.Format,
		))
	}

	return errs
}
