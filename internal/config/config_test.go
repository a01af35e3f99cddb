package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ALIEXPRESS_EMAIL", "user@example.com")
	t.Setenv("ALIEXPRESS_PASSWORD", "secret")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Cycle.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Cycle.ElementTimeout)
	assert.Equal(t, []string{"Korea", "대한민국"}, cfg.Site.SearchTerms)
	assert.False(t, cfg.Browser.Headless)
	assert.False(t, cfg.Cycle.Manual)
	assert.Equal(t, "stream:coin_collection", cfg.Redis.Stream)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ALIEXPRESS_EMAIL", "user@example.com")
	t.Setenv("ALIEXPRESS_PASSWORD", "secret")
	t.Setenv("COLLECT_MAX_ATTEMPTS", "5")
	t.Setenv("COLLECT_ELEMENT_TIMEOUT", "10s")
	t.Setenv("COUNTRY_SEARCH_TERMS", "Korea, 대한민국 ,South Korea")
	t.Setenv("BROWSER_HEADLESS", "true")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Cycle.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Cycle.ElementTimeout)
	assert.Equal(t, []string{"Korea", "대한민국", "South Korea"}, cfg.Site.SearchTerms)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoad_EnvFile(t *testing.T) {
	os.Unsetenv("ALIEXPRESS_EMAIL")
	os.Unsetenv("ALIEXPRESS_PASSWORD")
	t.Cleanup(func() {
		os.Unsetenv("ALIEXPRESS_EMAIL")
		os.Unsetenv("ALIEXPRESS_PASSWORD")
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ALIEXPRESS_EMAIL=file@example.com\nALIEXPRESS_PASSWORD=from-file\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "file@example.com", cfg.Account.Email)
	assert.Equal(t, "from-file", cfg.Account.Password)
}

func TestValidate_MissingCredentials(t *testing.T) {
	t.Setenv("ALIEXPRESS_EMAIL", "")
	t.Setenv("ALIEXPRESS_PASSWORD", "")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnvironmentMisconfigured)

	var mis *MisconfiguredError
	require.ErrorAs(t, err, &mis)
	assert.Len(t, mis.Problems, 2)
	assert.Contains(t, err.Error(), "ALIEXPRESS_EMAIL")
	assert.Contains(t, err.Error(), "ALIEXPRESS_PASSWORD")
}

func TestValidate_Ranges(t *testing.T) {
	cfg := &Config{
		Account: AccountConfig{Email: "a", Password: "b"},
		Site:    SiteConfig{CoinPageURL: "https://example.com", SearchTerms: []string{"Korea"}},
		Cycle:   CycleConfig{MaxAttempts: 0, ElementTimeout: time.Second},
		Pacing:  PacingConfig{SettleMin: 2 * time.Second, SettleMax: time.Second, TypingTypos: 2},
	}

	var mis *MisconfiguredError
	require.ErrorAs(t, cfg.Validate(), &mis)
	assert.Len(t, mis.Problems, 3)
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{
		Account: AccountConfig{Email: "a", Password: "b"},
		Site:    SiteConfig{CoinPageURL: "https://example.com", SearchTerms: []string{"Korea"}},
		Cycle:   CycleConfig{MaxAttempts: 1, ElementTimeout: time.Second},
		Server:  ServerConfig{Port: 0},
	}
	assert.ErrorIs(t, cfg.ValidateServer(), ErrEnvironmentMisconfigured)

	cfg.Server.Port = 8085
	assert.NoError(t, cfg.ValidateServer())
}
