// Package config defines the top-level configuration for the betledger
// service and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BETLEDGER_* environment
// variables.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// LedgerConfig holds the ledger identities and token parameters.
type LedgerConfig struct {
	// OperatorAddress is the notary: the only identity allowed to create
	// projects, finish them, and mint credit tokens.
	OperatorAddress string `toml:"operator_address"`

	// CustodyAddress is the ledger's own escrow account. Stakes and prize
	// pools are held here, and the registry lists it as the global minter.
	CustodyAddress string `toml:"custody_address"`

	// ClaimGrantTokens is the one-time faucet grant in whole tokens.
	ClaimGrantTokens int64 `toml:"claim_grant_tokens"`

	// InitialSupplyTokens is minted to the operator at startup, in whole
	// tokens, so the notary can fund prize pools immediately.
	InitialSupplyTokens int64 `toml:"initial_supply_tokens"`
}

// tokenUnit is 10^18: one whole token in smallest units.
var tokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Operator returns the parsed operator address.
func (c LedgerConfig) Operator() common.Address {
	return common.HexToAddress(c.OperatorAddress)
}

// Custody returns the parsed custody address.
func (c LedgerConfig) Custody() common.Address {
	return common.HexToAddress(c.CustodyAddress)
}

// ClaimGrant returns the faucet grant in smallest units.
func (c LedgerConfig) ClaimGrant() *big.Int {
	return new(big.Int).Mul(big.NewInt(c.ClaimGrantTokens), tokenUnit)
}

// InitialSupply returns the startup operator mint in smallest units.
func (c LedgerConfig) InitialSupply() *big.Int {
	return new(big.Int).Mul(big.NewInt(c.InitialSupplyTokens), tokenUnit)
}

// PostgresConfig holds PostgreSQL connection parameters for the audit and
// settlement journals.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`

	// WriterLockTTL bounds how long the ledger writer lock survives a
	// crashed instance before another may take over.
	WriterLockTTL duration `toml:"writer_lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters for settlement
// archive exports.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds the settlement-history export parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`

	// RateLimit is the per-client request budget per RateWindow; zero
	// disables rate limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. The
// token amounts match the original deployment: a 1,000-token faucet grant
// and a 1,000,000-token operator supply.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			CustodyAddress:      "0x0000000000000000000000000000000000000b3d",
			ClaimGrantTokens:    1_000,
			InitialSupplyTokens: 1_000_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "betledger",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			DB:            0,
			PoolSize:      20,
			MaxRetries:    3,
			TLSEnabled:    false,
			WriterLockTTL: duration{30 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "betledger-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"project_finished", "payout"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Ledger identities
	if !common.IsHexAddress(c.Ledger.OperatorAddress) {
		errs = append(errs, fmt.Sprintf("ledger: operator_address %q is not a valid hex address", c.Ledger.OperatorAddress))
	}
	if !common.IsHexAddress(c.Ledger.CustodyAddress) {
		errs = append(errs, fmt.Sprintf("ledger: custody_address %q is not a valid hex address", c.Ledger.CustodyAddress))
	}
	if common.IsHexAddress(c.Ledger.OperatorAddress) && common.IsHexAddress(c.Ledger.CustodyAddress) &&
		c.Ledger.Operator() == c.Ledger.Custody() {
		errs = append(errs, "ledger: operator_address and custody_address must differ")
	}
	if c.Ledger.ClaimGrantTokens <= 0 {
		errs = append(errs, "ledger: claim_grant_tokens must be positive")
	}
	if c.Ledger.InitialSupplyTokens < 0 {
		errs = append(errs, "ledger: initial_supply_tokens must not be negative")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.WriterLockTTL.Duration < 5*time.Second {
		errs = append(errs, "redis: writer_lock_ttl must be at least 5s")
	}

	// S3 settings are only needed when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration < time.Minute {
			errs = append(errs, "archive: interval must be at least 1m")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be positive when rate_limit is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
