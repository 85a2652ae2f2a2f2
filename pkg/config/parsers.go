package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command line flags and which of them were set
// explicitly by the user.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EnvResult describes what env parsing found.
type EnvResult struct {
	BackendKeys map[string]struct{}
	AdminKeys   map[string]struct{}
	EnvUsed     bool
}

// EffectiveConfigResult holds the result of LoadEffectiveConfig.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

// ParseCommandFlags parses the process flags and records which were set.
func ParseCommandFlags() Flags {
	var f Flags
	flag.StringVar(&f.Addr, "addr", ":8080", "listen address (host:port)")
	flag.StringVar(&f.DB, "db", "./data", "path to the pebble database directory")
	flag.StringVar(&f.Config, "config", "", "path to YAML config file")
	flag.Parse()
	f.Set = map[string]bool{}
	flag.Visit(func(fl *flag.Flag) { f.Set[fl.Name] = true })
	return f
}

// ParseConfigEnvs reads environment variables into a fresh Config and
// returns that env-only config plus an EnvResult describing keys present
// and whether envs were used. This function does not mutate any caller
// provided config.
func ParseConfigEnvs() (*Config, EnvResult) {
	envCfg := &Config{}
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	// Server address/port
	if v := os.Getenv("CHATMUX_SERVER_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("CHATMUX_SERVER_ADDRESS"); host != "" {
			envUsed = true
			envCfg.Server.Address = host
		}
		if port := os.Getenv("CHATMUX_SERVER_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				envCfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("CHATMUX_SERVER_DB_PATH"); v != "" {
		envUsed = true
		envCfg.Server.DBPath = v
	} else if v := os.Getenv("CHATMUX_DB_PATH"); v != "" {
		envUsed = true
		envCfg.Server.DBPath = v
	}

	if v := os.Getenv("CHATMUX_CORS_ORIGINS"); v != "" {
		envUsed = true
		envCfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHATMUX_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			envCfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATMUX_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			envCfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHATMUX_IP_WHITELIST"); v != "" {
		envUsed = true
		envCfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("CHATMUX_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		envCfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("CHATMUX_API_ADMIN_KEYS"); v != "" {
		envUsed = true
		envCfg.Security.APIKeys.Admin = parseList(v)
	}

	// Bot identity and platform relay
	if v := os.Getenv("CHATMUX_BOT_ID"); v != "" {
		envUsed = true
		envCfg.Bot.ID = v
	}
	if v := os.Getenv("CHATMUX_PLATFORM_BASE_URL"); v != "" {
		envUsed = true
		envCfg.Platform.BaseURL = v
	}
	if v := os.Getenv("CHATMUX_PLATFORM_TOKEN_URL"); v != "" {
		envUsed = true
		envCfg.Platform.TokenURL = v
	}
	if v := os.Getenv("CHATMUX_PLATFORM_CLIENT_ID"); v != "" {
		envUsed = true
		envCfg.Platform.ClientID = v
	}
	if v := os.Getenv("CHATMUX_PLATFORM_CLIENT_SECRET"); v != "" {
		envUsed = true
		envCfg.Platform.ClientSecret = v
	}

	// Downstream event sink
	if v := os.Getenv("CHATMUX_EMIT_URL"); v != "" {
		envUsed = true
		envCfg.Emit.URL = v
	}
	if v := os.Getenv("CHATMUX_EMIT_TOKEN"); v != "" {
		envUsed = true
		envCfg.Emit.BearerToken = v
	}

	// TLS cert/key
	if c := os.Getenv("CHATMUX_TLS_CERT"); c != "" {
		envUsed = true
		envCfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("CHATMUX_TLS_KEY"); k != "" {
		envUsed = true
		envCfg.Server.TLS.KeyFile = k
	}

	backendKeys := make(map[string]struct{})
	for _, k := range envCfg.Security.APIKeys.Backend {
		backendKeys[k] = struct{}{}
	}
	adminKeys := make(map[string]struct{})
	for _, k := range envCfg.Security.APIKeys.Admin {
		adminKeys[k] = struct{}{}
	}
	return envCfg, EnvResult{BackendKeys: backendKeys, AdminKeys: adminKeys, EnvUsed: envUsed}
}

// LoadEffectiveConfig decides which single source to use (flags, config
// file, or env) and returns the effective config plus resolved addr and
// dbPath. It honors an explicit flags.Config (user provided --config)
// by using the config file only; otherwise it uses flags if any flags
// are set; else if a config file exists it uses that; otherwise env.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	// If user explicitly passed --config, require the file to exist and use it.
	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Server.DBPath
		res.Source = "config"
		return res, nil
	}

	// If user passed any non-config flags (addr/db), use flags for the
	// server block while keeping the richer sections (bot, platform, emit)
	// from file-then-env so a flags run still knows who the bot is.
	if flags.Set["addr"] || flags.Set["db"] {
		base := envCfg
		if fileExists {
			base = fileCfg
		}
		addr := flags.Addr
		if !flags.Set["addr"] {
			addr = base.Addr()
		}
		dbPath := flags.DB
		if !flags.Set["db"] {
			if p := strings.TrimSpace(base.Server.DBPath); p != "" {
				dbPath = p
			}
		}
		out := *base
		out.Server.Address = addr
		out.Server.Port = parsePortFromAddr(addr)
		out.Server.DBPath = dbPath
		res.Config = &out
		res.Addr = addr
		res.DBPath = dbPath
		res.Source = "flags"
		return res, nil
	}

	// No explicit flags: prefer file config if present, otherwise env.
	if fileExists {
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Server.DBPath
		res.Source = "config"
		return res, nil
	}
	// fallback to env
	res.Config = envCfg
	res.Addr = envCfg.Addr()
	res.DBPath = envCfg.Server.DBPath
	res.Source = "env"
	return res, nil
}

// parsePortFromAddr extracts port integer from host:port string.
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
