package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/config"
)

type siteConfig struct {
	Terminal string        `env:"TEST_SITE_TERMINAL" envDefault:"lobby"`
	MaxGap   time.Duration `env:"TEST_SITE_MAX_GAP" envDefault:"150ms"`
	Brokers  []string      `env:"TEST_SITE_BROKERS" envSeparator:","`
}

type requiredConfig struct {
	Secret string `env:"TEST_SITE_SECRET,required"`
}

// Tests here touch process environment and the shared cache; they do not run in parallel.

func TestLoad(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_SITE_TERMINAL", "gym-floor")
	t.Setenv("TEST_SITE_BROKERS", "k1:9092,k2:9092")

	var cfg siteConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "gym-floor", cfg.Terminal)
	assert.Equal(t, 150*time.Millisecond, cfg.MaxGap)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)

	t.Run("cached per type", func(t *testing.T) {
		t.Setenv("TEST_SITE_TERMINAL", "changed")

		var again siteConfig
		require.NoError(t, config.Load(&again))
		assert.Equal(t, "gym-floor", again.Terminal)

		config.ResetCache()
		require.NoError(t, config.Load(&again))
		assert.Equal(t, "changed", again.Terminal)
	})
}

func TestLoad_Errors(t *testing.T) {
	config.ResetCache()

	assert.ErrorIs(t, config.Load[siteConfig](nil), config.ErrNilPointer)

	var req requiredConfig
	assert.ErrorIs(t, config.Load(&req), config.ErrParsingConfig)
	assert.Panics(t, func() { config.MustLoad(&req) })
}

func TestLoadEnv(t *testing.T) {
	config.ResetCache()

	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	site := filepath.Join(dir, ".env.site")
	require.NoError(t, os.WriteFile(base, []byte("TEST_SITE_TERMINAL=base\nTEST_SITE_MAX_GAP=200ms\n"), 0o600))
	require.NoError(t, os.WriteFile(site, []byte("TEST_SITE_TERMINAL=\"front desk\"\n"), 0o600))

	t.Setenv("TEST_SITE_TERMINAL", "from-env")
	t.Setenv("TEST_SITE_MAX_GAP", "")

	require.NoError(t, config.LoadEnv(base, site))

	var cfg siteConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "front desk", cfg.Terminal)
	assert.Equal(t, 200*time.Millisecond, cfg.MaxGap)

	assert.ErrorIs(t, config.LoadEnv(filepath.Join(dir, "missing.env")), config.ErrLoadingEnvFile)
}
