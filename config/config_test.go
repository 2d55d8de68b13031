package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
listen: ":8080"
database: /var/lib/caravel/caravel.db
aws:
  region: eu-west-1
rollout:
  poll_interval: 15s
  timeout: 20m
probe:
  attempts: 12
  interval: 5s
  request_timeout: 2s
approval:
  timeout: 30m
environments:
  - name: staging
    check_url: http://staging.example.com/health
    fleet: app-staging
    image_repo: registry.example.com/app
  - name: production
    check_url: http://example.com/health
    fleet: app-production
    image_repo: registry.example.com/app
    require_approval: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caravel.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "/var/lib/caravel/caravel.db", cfg.Database)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, 15*time.Second, time.Duration(cfg.Rollout.PollInterval))
	assert.Equal(t, 20*time.Minute, time.Duration(cfg.Rollout.Timeout))
	assert.Equal(t, 12, cfg.Probe.Attempts)
	assert.Equal(t, 30*time.Minute, time.Duration(cfg.Approval.Timeout))

	require.Len(t, cfg.Environments, 2)
	assert.False(t, cfg.Environments[0].RequireApproval)
	assert.True(t, cfg.Environments[1].RequireApproval)

	env, ok := cfg.Environment("production")
	require.True(t, ok)
	assert.Equal(t, "app-production", env.Fleet)

	_, ok = cfg.Environment("nope")
	assert.False(t, ok)
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
environments:
  - name: staging
    check_url: http://staging.example.com/health
    fleet: app-staging
    image_repo: registry.example.com/app
`))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Listen, cfg.Listen)
	assert.Equal(t, def.Probe, cfg.Probe)
	assert.Equal(t, def.Rollout, cfg.Rollout)
	assert.Equal(t, def.AWS.Region, cfg.AWS.Region)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Environments = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Environments[1].Name = "staging"
	assert.EqualError(t, cfg.Validate(), `environment "staging" configured twice`)

	cfg = base()
	cfg.Environments[0].CheckURL = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Environments[0].Fleet = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Probe.Attempts = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Rollout.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	out, err := Duration(90 * time.Second).MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
