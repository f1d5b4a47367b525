package config

import (
	"fmt"
	"strings"
)

// ValidateConfig applies defaults to the effective config and fails fast on
// settings the server cannot start with.
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}
	if strings.TrimSpace(eff.DBPath) == "" {
		return fmt.Errorf("database path is empty: set --db flag, ENCELADUS_DB_PATH env, or server.db_path in config")
	}
	if strings.TrimSpace(cfg.Security.JWTSecret) == "" && !cfg.Server.DebugRoutes {
		return fmt.Errorf("security.jwt_secret is empty: set ENCELADUS_JWT_SECRET or enable server.debug_routes for local use")
	}
	return cfg.ValidateConfig()
}
