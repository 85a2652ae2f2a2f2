package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("CHATMUX_SERVER_ADDR", "127.0.0.1:9090")
	t.Setenv("CHATMUX_DB_PATH", "/tmp/chatmux-db")
	t.Setenv("CHATMUX_API_BACKEND_KEYS", "bk1, bk2")
	t.Setenv("CHATMUX_API_ADMIN_KEYS", "ak1")
	t.Setenv("CHATMUX_BOT_ID", "28:botid")
	t.Setenv("CHATMUX_PLATFORM_BASE_URL", "https://platform.example")
	t.Setenv("CHATMUX_EMIT_URL", "https://sink.example/events")
	t.Setenv("CHATMUX_RATE_RPS", "2.5")
	t.Setenv("CHATMUX_RATE_BURST", "20")

	cfg, res := ParseConfigEnvs()
	require.True(t, res.EnvUsed)
	require.Equal(t, "127.0.0.1", cfg.Server.Address)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/tmp/chatmux-db", cfg.Server.DBPath)
	require.Equal(t, "28:botid", cfg.Bot.ID)
	require.Equal(t, "https://platform.example", cfg.Platform.BaseURL)
	require.Equal(t, "https://sink.example/events", cfg.Emit.URL)
	require.Equal(t, 2.5, cfg.Security.RateLimit.RPS)
	require.Equal(t, 20, cfg.Security.RateLimit.Burst)
	require.Contains(t, res.BackendKeys, "bk1")
	require.Contains(t, res.BackendKeys, "bk2")
	require.Contains(t, res.AdminKeys, "ak1")
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "chatmux.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeConfigFile(t, `
server:
  address: "0.0.0.0"
  port: 8443
  db_path: "/var/lib/chatmux"
bot:
  id: "28:botid"
platform:
  base_url: "https://platform.example"
  timeout: 5s
emit:
  url: "https://sink.example"
  timeout: 2
janitor:
  enabled: true
  cron: "0 3 * * *"
ingest:
  workers: 8
  queue:
    capacity: 2048
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8443", cfg.Addr())
	require.Equal(t, "/var/lib/chatmux", cfg.Server.DBPath)
	require.Equal(t, 5*time.Second, cfg.Platform.Timeout.Duration())
	require.Equal(t, 2*time.Second, cfg.Emit.Timeout.Duration())
	require.True(t, cfg.Janitor.Enabled)
	require.Equal(t, 8, cfg.Ingest.Workers)
	require.Equal(t, 2048, cfg.Ingest.Queue.Capacity)
}

func TestDurationUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{`"100ms"`, 100 * time.Millisecond},
		{`"1m30s"`, 90 * time.Second},
		{`30`, 30 * time.Second},
		{`0.5`, 500 * time.Millisecond},
		{`""`, 0},
	}
	for _, c := range cases {
		var d Duration
		require.NoError(t, yaml.Unmarshal([]byte(c.in), &d), "input %s", c.in)
		require.Equal(t, c.want, d.Duration(), "input %s", c.in)
	}
	var d Duration
	require.Error(t, yaml.Unmarshal([]byte(`"soon"`), &d))
}

func TestEffectiveConfigExplicitFileWins(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "10.0.0.1"
	fileCfg.Server.Port = 8081
	fileCfg.Server.DBPath = "/data/file"

	flags := Flags{Config: "chatmux.yaml", Set: map[string]bool{"config": true}}
	res, err := LoadEffectiveConfig(flags, fileCfg, true, &Config{}, EnvResult{})
	require.NoError(t, err)
	require.Equal(t, "config", res.Source)
	require.Equal(t, "10.0.0.1:8081", res.Addr)
	require.Equal(t, "/data/file", res.DBPath)
}

func TestEffectiveConfigExplicitFileMissing(t *testing.T) {
	flags := Flags{Config: "nope.yaml", Set: map[string]bool{"config": true}}
	_, err := LoadEffectiveConfig(flags, &Config{}, false, &Config{}, EnvResult{})
	require.Error(t, err)
}

func TestEffectiveConfigFlagsKeepFileSections(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "10.0.0.1"
	fileCfg.Server.Port = 8081
	fileCfg.Server.DBPath = "/data/file"
	fileCfg.Bot.ID = "28:botid"
	fileCfg.Platform.BaseURL = "https://platform.example"

	flags := Flags{Addr: ":9000", Set: map[string]bool{"addr": true}}
	res, err := LoadEffectiveConfig(flags, fileCfg, true, &Config{}, EnvResult{})
	require.NoError(t, err)
	require.Equal(t, "flags", res.Source)
	require.Equal(t, ":9000", res.Addr)
	// db comes from the file since --db was not set
	require.Equal(t, "/data/file", res.DBPath)
	// richer sections survive a flags-driven run
	require.Equal(t, "28:botid", res.Config.Bot.ID)
	require.Equal(t, "https://platform.example", res.Config.Platform.BaseURL)
}

func TestEffectiveConfigEnvFallback(t *testing.T) {
	envCfg := &Config{}
	envCfg.Server.Address = "127.0.0.1"
	envCfg.Server.Port = 7070
	envCfg.Server.DBPath = "/data/env"

	res, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envCfg, EnvResult{EnvUsed: true})
	require.NoError(t, err)
	require.Equal(t, "env", res.Source)
	require.Equal(t, "127.0.0.1:7070", res.Addr)
	require.Equal(t, "/data/env", res.DBPath)
}

func TestRuntimeRoundTrip(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		BackendKeys: map[string]struct{}{"bk": {}},
		AdminKeys:   map[string]struct{}{"ak": {}},
	})
	rc := Runtime()
	require.Contains(t, rc.BackendKeys, "bk")
	require.Contains(t, rc.AdminKeys, "ak")
}
