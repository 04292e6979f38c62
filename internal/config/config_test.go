package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testtracker/internal/config"
)

func TestGeneratedDefaultParses(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault("https://tracker.example/index.php?/api/v2")))
	require.NoError(t, err)

	assert.Equal(t, "https://tracker.example/index.php?/api/v2", cfg.Service.BaseURL)
	assert.Equal(t, 5, cfg.Service.RetryCount)
	assert.Equal(t, 10*time.Second, cfg.Service.RetryInterval)
	assert.Equal(t, 30*time.Second, cfg.Service.SocketTimeout)
	assert.True(t, cfg.Run.Publish)
	assert.Equal(t, "testtracker-results.json", cfg.Collector.ArtifactPath)

	// the template leaves the secret out
	assert.Error(t, cfg.Validate())
	cfg.Service.APIKey = "k"
	assert.NoError(t, cfg.Validate())
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
service:
  base_url: http://localhost:8089/api/v2
  user: qa@example.com
  api_key: s3cret
run:
  project: Shop
  run: Nightly
  create_run: true
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Shop", cfg.Run.Project)
	assert.Equal(t, "Nightly", cfg.Run.Run)
	assert.True(t, cfg.Run.CreateRun)
	assert.True(t, cfg.Run.Publish)
	assert.Equal(t, 5, cfg.Service.RetryCount)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		cfg := config.Default()
		cfg.Service.BaseURL = "http://localhost/api/v2"
		cfg.Service.User = "u"
		cfg.Service.APIKey = "k"
		return cfg
	}
	cases := map[string]func(*config.Config){
		"missing base url":  func(c *config.Config) { c.Service.BaseURL = "" },
		"relative base url": func(c *config.Config) { c.Service.BaseURL = "/api/v2" },
		"missing user":      func(c *config.Config) { c.Service.User = "" },
		"negative retries":  func(c *config.Config) { c.Service.RetryCount = -1 },
		"negative timeout":  func(c *config.Config) { c.Service.SocketTimeout = -time.Second },
		"bad log level":     func(c *config.Config) { c.Log.Level = "loud" },
		"bad log format":    func(c *config.Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, base().Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := config.Path(dir)

	_, err := config.Load(path)
	assert.ErrorContains(t, err, "tt config init")

	cfg, err := config.LoadOptional(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	require.NoError(t, os.WriteFile(path, []byte("service: [broken"), 0o644))
	_, err = config.LoadOptional(path)
	assert.ErrorContains(t, err, "invalid config yaml")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("TESTTRACKER_CONFIG_TEST_KEY=from-dotenv\n"), 0o644))
	t.Setenv("TESTTRACKER_CONFIG_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("TESTTRACKER_CONFIG_TEST_KEY"))

	require.NoError(t, config.LoadEnv(filepath.Join(dir, "missing.env"), env))
	assert.Equal(t, "from-dotenv", os.Getenv("TESTTRACKER_CONFIG_TEST_KEY"))
}
