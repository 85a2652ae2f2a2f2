package banner

import (
	"fmt"

	"chatmux/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗███╗   ███╗██╗   ██╗██╗  ██╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝████╗ ████║██║   ██║╚██╗██╔╝
██║     ███████║███████║   ██║   ██╔████╔██║██║   ██║ ╚███╔╝
██║     ██╔══██║██╔══██║   ██║   ██║╚██╔╝██║██║   ██║ ██╔██╗
╚██████╗██║  ██║██║  ██║   ██║   ██║ ╚═╝ ██║╚██████╔╝██╔╝ ██╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝     ╚═╝ ╚═════╝ ╚═╝  ╚═╝
`

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, addr, dbpath, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/activities' -d '{\"type\":\"message\",...}'")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/messages' -d '{\"conversation_id\":\"19:abc\",\"text\":\"hello\"}'")

	fmt.Println("\n== Production? =================================================")
	be := 0
	ak := 0
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		ak = len(eff.Config.Security.APIKeys.Admin)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for webhook callers)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for subscriber admin)")
	}

	tlsOK := eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != ""
	if tlsOK {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if eff.Config != nil && eff.Config.Bot.ID != "" {
		fmt.Printf("- Bot identity: %s\n", eff.Config.Bot.ID)
	} else {
		fmt.Println("- Bot identity: not set (mentions and self-filtering disabled)")
	}

	if eff.Config != nil && eff.Config.Platform.BaseURL != "" {
		fmt.Println("- Outbound relay: configured")
	} else {
		fmt.Println("- Outbound relay: not configured (POST /v1/messages will fail)")
	}

	if eff.Config != nil && eff.Config.Janitor.Enabled {
		if eff.Config.Janitor.Cron != "" {
			fmt.Printf("- Janitor: enabled (cron=%s)\n", eff.Config.Janitor.Cron)
		} else {
			fmt.Println("- Janitor: enabled")
		}
	} else {
		fmt.Println("- Janitor: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
