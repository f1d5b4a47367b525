package app

import (
	"context"

	"enceladus/pkg/state/shutdown"
	"enceladus/pkg/telemetry"
)

// stopListeners closes both servers, then sends every open websocket a
// going-away frame and waits for its handler to return.
func (a *App) stopListeners(ctx context.Context) error {
	return shutdown.Run(ctx,
		shutdown.Step{Name: "rest", Fn: func(context.Context) error {
			if a.srvFast == nil {
				return nil
			}
			return a.srvFast.Shutdown()
		}},
		shutdown.Step{Name: "ws", Fn: func(ctx context.Context) error {
			if a.srvWS == nil {
				return nil
			}
			return a.srvWS.Shutdown(ctx)
		}},
		shutdown.Step{Name: "ws_clients", Fn: func(ctx context.Context) error {
			if a.wsSrv == nil {
				return nil
			}
			return a.wsSrv.Close(ctx)
		}},
	)
}

// Shutdown releases everything New acquired. Call it after Run returns.
func (a *App) Shutdown(ctx context.Context) error {
	a.state.Store("shutting_down")
	err := shutdown.Run(ctx,
		shutdown.Step{Name: "gateway", Fn: func(context.Context) error {
			a.gateway.Close()
			return nil
		}},
		shutdown.Step{Name: "telemetry", Fn: func(context.Context) error {
			telemetry.Close()
			return nil
		}},
		shutdown.Step{Name: "resources", Fn: func(context.Context) error {
			return a.closeResources()
		}},
	)
	if err == nil {
		a.state.Store("stopped")
	}
	return err
}

func (a *App) closeResources() error {
	a.caches.Close()
	return a.store.Close()
}
