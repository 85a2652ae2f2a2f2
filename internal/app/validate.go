package app

import (
	"fmt"
	"strings"

	"chatmux/pkg/config"
	"chatmux/pkg/logger"
	"chatmux/pkg/models"
)

// validateConfig checks the effective config for fatal problems before
// any component starts.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.Config == nil {
		return fmt.Errorf("no configuration resolved")
	}
	if strings.TrimSpace(eff.Addr) == "" {
		return fmt.Errorf("listen address not configured (use --addr, CHATMUX_SERVER_ADDR or server.address)")
	}
	if strings.TrimSpace(eff.DBPath) == "" {
		return fmt.Errorf("db path not configured (use --db, CHATMUX_DB_PATH or server.db_path)")
	}
	cfg := eff.Config
	if cfg.Bot.ID != "" && !strings.HasPrefix(cfg.Bot.ID, models.BotIDPrefix) {
		logger.Warn("bot_id_missing_platform_prefix", "id", cfg.Bot.ID, "expected_prefix", models.BotIDPrefix)
	}
	if cfg.Platform.BaseURL != "" {
		if cfg.Platform.TokenURL == "" || cfg.Platform.ClientID == "" || cfg.Platform.ClientSecret == "" {
			return fmt.Errorf("platform relay configured without token_url/client_id/client_secret")
		}
	}
	return nil
}
