package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

const envPrefix = "ENCELADUS_"

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	WSAddr string
	DB     string
	Config string
	Set    map[string]bool
}

// EnvResult reports whether any ENCELADUS_ variable was present.
type EnvResult struct {
	EnvUsed bool
}

// EffectiveConfigResult is the single source selected by LoadEffectiveConfig.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	WSAddr string
	DBPath string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses the server flags from args.
func ParseConfigFlags(args []string) (Flags, error) {
	fset := flag.NewFlagSet("enceladus", flag.ContinueOnError)
	addrPtr := fset.String("addr", defaultAddr, "REST listen address")
	wsPtr := fset.String("ws-addr", defaultWSAddr, "broadcast (websocket) listen address")
	dbPtr := fset.String("db", "./.database", "Pebble DB path")
	cfgPtr := fset.String("config", "./config.yaml", "Path to config file")
	if err := fset.Parse(args); err != nil {
		return Flags{}, err
	}

	setFlags := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{Addr: *addrPtr, WSAddr: *wsPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}, nil
}

// ParseConfigFile loads the config file. A missing file is not an error
// and reports found=false.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

func parseList(v string) []string {
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

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// ParseConfigEnvs builds a Config from ENCELADUS_ variables. Malformed
// numeric values are reported rather than ignored.
func ParseConfigEnvs() (*Config, EnvResult, error) {
	keys := []string{
		"SERVER_ADDR", "WS_ADDR", "DB_PATH", "CORS_ORIGINS", "RATE_RPS", "RATE_BURST",
		"IP_WHITELIST", "JWT_SECRET", "LOG_LEVEL", "CACHE_THREADS", "CACHE_SECTIONS",
		"CACHE_EVENTS", "CACHE_USERS", "LOCK_DURATION", "TELEMETRY_ENABLED", "TELEMETRY_CRON",
		"DEBUG_ROUTES", "WS_SEND_BUFFER", "WS_MAX_MESSAGE_SIZE",
	}
	envs := make(map[string]string, len(keys))
	envUsed := false
	for _, k := range keys {
		v := os.Getenv(envPrefix + k)
		envs[k] = v
		if v != "" {
			envUsed = true
		}
	}

	envCfg := &Config{}
	var errs []error
	atoi := func(key string, dst *int) {
		v := strings.TrimSpace(envs[key])
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return
		}
		*dst = n
	}

	envCfg.Server.Address = strings.TrimSpace(envs["SERVER_ADDR"])
	envCfg.Server.WSAddress = strings.TrimSpace(envs["WS_ADDR"])
	envCfg.Server.DBPath = strings.TrimSpace(envs["DB_PATH"])
	if v := envs["DEBUG_ROUTES"]; v != "" {
		envCfg.Server.DebugRoutes = parseBool(v)
	}

	envCfg.Security.CORS.AllowedOrigins = parseList(envs["CORS_ORIGINS"])
	envCfg.Security.IPWhitelist = parseList(envs["IP_WHITELIST"])
	envCfg.Security.JWTSecret = envs["JWT_SECRET"]
	if v := strings.TrimSpace(envs["RATE_RPS"]); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_RPS: %w", envPrefix, err))
		} else {
			envCfg.Security.RateLimit.RPS = f
		}
	}
	atoi("RATE_BURST", &envCfg.Security.RateLimit.Burst)

	envCfg.Logging.Level = strings.TrimSpace(envs["LOG_LEVEL"])

	atoi("CACHE_THREADS", &envCfg.Cache.Threads)
	atoi("CACHE_SECTIONS", &envCfg.Cache.Sections)
	atoi("CACHE_EVENTS", &envCfg.Cache.Events)
	atoi("CACHE_USERS", &envCfg.Cache.Users)

	if d, err := parseDuration(envs["LOCK_DURATION"]); err != nil {
		errs = append(errs, fmt.Errorf("%sLOCK_DURATION: %w", envPrefix, err))
	} else {
		envCfg.Locks.Duration = d
	}

	if v := envs["TELEMETRY_ENABLED"]; v != "" {
		envCfg.Telemetry.Enabled = parseBool(v)
	}
	envCfg.Telemetry.Cron = strings.TrimSpace(envs["TELEMETRY_CRON"])

	atoi("WS_SEND_BUFFER", &envCfg.WS.SendBuffer)
	if s, err := parseSize(envs["WS_MAX_MESSAGE_SIZE"]); err != nil {
		errs = append(errs, fmt.Errorf("%sWS_MAX_MESSAGE_SIZE: %w", envPrefix, err))
	} else {
		envCfg.WS.MaxMessageSize = s
	}

	return envCfg, EnvResult{EnvUsed: envUsed}, errors.Join(errs...)
}

// LoadEffectiveConfig decides which single source to use. An explicit
// --config wins; otherwise listener or db flags override whichever of file
// or env would have been used; else the config file if present; else env.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		return resultFor(fileCfg, "config"), nil
	}

	base := envCfg
	if fileExists {
		base = fileCfg
	}

	if flags.Set["addr"] || flags.Set["ws-addr"] || flags.Set["db"] {
		out := *base
		if flags.Set["addr"] {
			out.Server.Address = flags.Addr
		}
		if flags.Set["ws-addr"] {
			out.Server.WSAddress = flags.WSAddr
		}
		if flags.Set["db"] || strings.TrimSpace(out.Server.DBPath) == "" {
			out.Server.DBPath = flags.DB
		}
		return resultFor(&out, "flags"), nil
	}

	if fileExists {
		return resultFor(fileCfg, "config"), nil
	}
	if !envRes.EnvUsed {
		// nothing configured anywhere; run on flag defaults
		out := *envCfg
		out.Server.DBPath = flags.DB
		return resultFor(&out, "flags"), nil
	}
	return resultFor(envCfg, "env"), nil
}

func resultFor(cfg *Config, source string) EffectiveConfigResult {
	return EffectiveConfigResult{
		Config: cfg,
		Addr:   cfg.Addr(),
		WSAddr: cfg.WSAddr(),
		DBPath: cfg.Server.DBPath,
		Source: source,
	}
}
