package banner

import (
	"fmt"
	"io"

	"enceladus/pkg/config"
)

const banner = `
 ___ _ __   ___ ___| | __ _  __| |_   _ ___
/ _ \ '_ \ / __/ _ \ |/ _' |/ _' | | | / __|
|  __/ | | | (_|  __/ | (_| | (_| | |_| \__ \
\___|_| |_|\___\___|_|\__,_|\__,_|\__,_|___/
`

// Print writes the startup banner and a production-readiness summary of
// the effective configuration.
func Print(w io.Writer, eff config.EffectiveConfigResult, version string) {
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "REST:     %s\n", eff.Addr)
	fmt.Fprintf(w, "WS:       %s\n", eff.WSAddr)
	fmt.Fprintf(w, "DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	cfg := eff.Config
	if cfg == nil {
		return
	}
	fmt.Fprintln(w, "\n== Production? =================================================")
	if cfg.Security.JWTSecret != "" {
		fmt.Fprintln(w, "- Bearer tokens: OK")
	} else {
		fmt.Fprintln(w, "- Bearer tokens: MISSING (set security.jwt_secret)")
	}
	if cfg.Server.DebugRoutes {
		fmt.Fprintln(w, "- Debug user routes: ENABLED (disable in production)")
	} else {
		fmt.Fprintln(w, "- Debug user routes: disabled")
	}
	if len(cfg.Security.IPWhitelist) > 0 {
		fmt.Fprintf(w, "- IP allow-list: %d entries\n", len(cfg.Security.IPWhitelist))
	} else {
		fmt.Fprintln(w, "- IP allow-list: open")
	}
	fmt.Fprintf(w, "- Caches: threads=%d sections=%d events=%d users=%d\n",
		cfg.Cache.Threads, cfg.Cache.Sections, cfg.Cache.Events, cfg.Cache.Users)
	fmt.Fprintf(w, "- Lock duration: %s\n", cfg.Locks.Duration.Duration())
	fmt.Fprintf(w, "- WS: send buffer %d, max message %s\n", cfg.WS.SendBuffer, cfg.WS.MaxMessageSize)
	if cfg.Telemetry.Enabled {
		fmt.Fprintf(w, "- Telemetry: enabled (cron=%s)\n", cfg.Telemetry.Cron)
	} else {
		fmt.Fprintln(w, "- Telemetry: disabled")
	}
}
