package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Ledger.OperatorAddress = "0x0000000000000000000000000000000000000001"
	return cfg
}

func TestDefaultsWithOperatorValidates(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDefaultsAloneMissingOperator(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted empty operator address")
	}
	if !strings.Contains(err.Error(), "operator_address") {
		t.Fatalf("error %q does not mention operator_address", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "daemon" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"operator equals custody", func(c *Config) {
			c.Ledger.CustodyAddress = c.Ledger.OperatorAddress
		}, "must differ"},
		{"zero claim grant", func(c *Config) { c.Ledger.ClaimGrantTokens = 0 }, "claim_grant_tokens"},
		{"negative supply", func(c *Config) { c.Ledger.InitialSupplyTokens = -1 }, "initial_supply_tokens"},
		{"empty postgres host", func(c *Config) { c.Postgres.Host = "" }, "postgres: host"},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"short writer lock ttl", func(c *Config) {
			c.Redis.WriterLockTTL = duration{time.Second}
		}, "writer_lock_ttl"},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, "server: port"},
		{"archive without bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.S3.Bucket = ""
		}, "s3: bucket"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = "postgres://user:pass@db:5432/betledger"
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.Database = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestTokenAmountsScaledToWei(t *testing.T) {
	cfg := validConfig()

	wantGrant, _ := new(big.Int).SetString("1000000000000000000000", 10)
	if got := cfg.Ledger.ClaimGrant(); got.Cmp(wantGrant) != 0 {
		t.Fatalf("ClaimGrant=%v want=%v", got, wantGrant)
	}
	wantSupply, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	if got := cfg.Ledger.InitialSupply(); got.Cmp(wantSupply) != 0 {
		t.Fatalf("InitialSupply=%v want=%v", got, wantSupply)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "archive"

[ledger]
operator_address = "0x0000000000000000000000000000000000000001"
claim_grant_tokens = 250

[server]
port = 9090

[redis]
writer_lock_ttl = "45s"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BETLEDGER_SERVER_PORT", "9191")
	t.Setenv("BETLEDGER_SERVER_API_KEY", "sekret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "archive" {
		t.Fatalf("mode=%q want=archive", cfg.Mode)
	}
	if cfg.Ledger.ClaimGrantTokens != 250 {
		t.Fatalf("claim_grant_tokens=%d want=250", cfg.Ledger.ClaimGrantTokens)
	}
	// Defaults survive for fields the file omits.
	if cfg.Postgres.Database != "betledger" {
		t.Fatalf("postgres database=%q want=betledger", cfg.Postgres.Database)
	}
	if cfg.Redis.WriterLockTTL.Duration != 45*time.Second {
		t.Fatalf("writer_lock_ttl=%v want=45s", cfg.Redis.WriterLockTTL.Duration)
	}
	// Env wins over both file and defaults.
	if cfg.Server.Port != 9191 {
		t.Fatalf("port=%d want=9191", cfg.Server.Port)
	}
	if cfg.Server.APIKey != "sekret" {
		t.Fatalf("api_key=%q want=sekret", cfg.Server.APIKey)
	}
}
