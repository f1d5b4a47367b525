package app

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"enceladus/pkg/api/auth"
	"enceladus/pkg/api/ws"
	"enceladus/pkg/cache"
	"enceladus/pkg/config"
	"enceladus/pkg/controller"
	"enceladus/pkg/progressor"
	"enceladus/pkg/rooms"
	"enceladus/pkg/state"
	"enceladus/pkg/state/logger"
	"enceladus/pkg/store"
	"enceladus/pkg/telemetry"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

// App groups server state and components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	store    *store.Store
	caches   *cache.Caches
	registry *rooms.Registry
	ctl      *controller.Controller
	gateway  *auth.Gateway
	reporter *telemetry.ClientReporter

	srvFast  *fasthttp.Server
	srvWS    *http.Server
	wsSrv    *ws.Server
	restAddr net.Addr
	wsAddr   net.Addr

	ready atomic.Bool
	state atomic.Value
}

// New sets up everything that does not need a running context: the store,
// caches, the room registry and the controller. Listeners start in Run.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if err := config.ValidateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	// open store (caller ensures directories exist)
	if state.PathsVar.Store == "" {
		return nil, errors.New("state paths not initialized")
	}
	st, err := store.Open(state.PathsVar.Store)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pebble at %s", state.PathsVar.Store)
	}
	if migrated, err := progressor.Run(context.Background(), st.Backend()); err != nil {
		_ = st.Close()
		return nil, errors.Wrap(err, "data format upgrade")
	} else if migrated {
		logger.Info("data_format_upgraded", "version", progressor.CurrentVersion)
	}

	caches := cache.NewCaches(cache.Sizes{
		Threads:  cfg.Cache.Threads,
		Sections: cfg.Cache.Sections,
		Events:   cfg.Cache.Events,
		Users:    cfg.Cache.Users,
	})
	reg := rooms.NewRegistry()
	ctl := controller.New(controller.Options{
		Store:        st,
		Caches:       caches,
		Publisher:    reg,
		LockDuration: cfg.Locks.Duration.Duration(),
	})

	gw := auth.NewGateway(auth.SecConfig{
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
		IPWhitelist:    append([]string{}, cfg.Security.IPWhitelist...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		JWTSecret:      []byte(cfg.Security.JWTSecret),
	})

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		store:     st,
		caches:    caches,
		registry:  reg,
		ctl:       ctl,
		gateway:   gw,
	}
	a.state.Store("initialized")

	if cfg.Telemetry.Enabled {
		if err := a.setupTelemetry(); err != nil {
			_ = a.closeResources()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) setupTelemetry() error {
	t := a.eff.Config.Telemetry
	telemetry.Init(state.PathsVar.Tel, int(t.BufferSize), t.QueueCapacity, t.FlushInterval.Duration(), int64(t.FileMaxSize))
	reporter, err := telemetry.NewClientReporter(t.Cron, a.registry.Connected)
	if err != nil {
		return errors.Wrap(err, "telemetry cron")
	}
	a.reporter = reporter
	logger.Info("telemetry_enabled",
		"dir", state.PathsVar.Tel,
		"buffer", humanize.IBytes(uint64(t.BufferSize)),
		"file_max", humanize.IBytes(uint64(t.FileMaxSize)),
		"cron", t.Cron)
	return nil
}

// Version returns the version string reported by /meta and the banner.
func (a *App) Version() string {
	v := a.version
	if v == "" {
		return "dev"
	}
	return v
}

// BuildInfo returns version, commit and build date joined for display.
func (a *App) BuildInfo() string {
	s := a.Version()
	if a.commit != "" && a.commit != "none" {
		s += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		s += " @ " + a.buildDate
	}
	return s
}

// Ready reports whether both listeners are accepting connections.
func (a *App) Ready() bool {
	return a.ready.Load()
}

// Addrs returns the bound REST and websocket addresses once Ready.
func (a *App) Addrs() (rest, ws net.Addr) {
	return a.restAddr, a.wsAddr
}

// State returns the lifecycle phase: initialized, running, shutting_down
// or stopped.
func (a *App) State() string {
	s, _ := a.state.Load().(string)
	return s
}

// Run starts the REST and broadcast listeners and the client reporter, and
// blocks until ctx is cancelled or a listener fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	restLn, err := a.listenREST()
	if err != nil {
		return err
	}
	wsLn, err := a.listenWS()
	if err != nil {
		_ = restLn.Close()
		return err
	}

	a.restAddr, a.wsAddr = restLn.Addr(), wsLn.Addr()

	g.Go(func() error {
		if err := a.srvFast.Serve(restLn); err != nil {
			return errors.Wrap(err, "rest listener")
		}
		return nil
	})
	g.Go(func() error {
		if err := a.srvWS.Serve(wsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "ws listener")
		}
		return nil
	})
	if a.reporter != nil {
		g.Go(func() error {
			a.reporter.Run(gctx)
			return nil
		})
	}

	a.ready.Store(true)
	a.state.Store("running")
	logger.Info("server_started", "addr", a.eff.Addr, "ws_addr", a.eff.WSAddr, "version", a.BuildInfo())

	// once the context ends, stop the listeners so Serve returns
	g.Go(func() error {
		<-gctx.Done()
		a.ready.Store(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.stopListeners(shutdownCtx)
	})

	return g.Wait()
}
