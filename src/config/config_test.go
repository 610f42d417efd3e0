package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"LEDGER_RUNTIME", "DATABASE_PATH", "TRANSACTION_PAGE_SIZE", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := LoadConfig()

	assert.Equal(t, "native", cfg.Runtime)
	assert.Equal(t, "./easyledger.db", cfg.DatabasePath)
	assert.Equal(t, 50, cfg.TransactionPageSize)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Same(t, Cfg, cfg)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_RUNTIME", "Browser")
	t.Setenv("DATABASE_PATH", "/tmp/ledger.db")
	t.Setenv("TRANSACTION_PAGE_SIZE", "20")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg := LoadConfig()

	assert.Equal(t, "browser", cfg.Runtime)
	assert.Equal(t, "/tmp/ledger.db", cfg.DatabasePath)
	assert.Equal(t, 20, cfg.TransactionPageSize)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoadConfigRejectsBadPageSize(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRANSACTION_PAGE_SIZE", "-3")
	assert.Equal(t, 50, LoadConfig().TransactionPageSize)

	t.Setenv("TRANSACTION_PAGE_SIZE", "abc")
	assert.Equal(t, 50, LoadConfig().TransactionPageSize)
}
