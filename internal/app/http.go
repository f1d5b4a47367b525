package app

import (
	"net"
	"net/http"
	"time"

	"enceladus/pkg/api"
	"enceladus/pkg/api/ws"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
)

// listenREST builds the fasthttp server and binds its listener.
func (a *App) listenREST() (net.Listener, error) {
	cfg := a.eff.Config
	handler := api.Handler(api.Options{
		Controller:  a.ctl,
		Gateway:     a.gateway,
		DebugRoutes: cfg.Server.DebugRoutes,
		Version:     a.Version(),
		Ready:       a.Ready,
	})

	const (
		readBufferSize       = 64 * 1024        // 64 KiB read buffer per connection
		maxRequestBodySize   = 5 * 1024 * 1024  // 5 MiB max request body
		readTimeout          = 10 * time.Second // timeout for reading request
		writeTimeout         = 10 * time.Second // timeout for writing response
		idleTimeout          = 30 * time.Second // max keep-alive idle duration per connection
		maxKeepaliveDuration = 2 * time.Minute  // max duration for keep-alive connection
	)
	a.srvFast = &fasthttp.Server{
		Name:                 "enceladus",
		Handler:              handler,
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   maxRequestBodySize,
		ReduceMemoryUsage:    true,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}

	ln, err := net.Listen("tcp4", a.eff.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", a.eff.Addr)
	}
	return ln, nil
}

// listenWS builds the websocket server. It runs on net/http because the
// upgrade needs a hijackable http.ResponseWriter.
func (a *App) listenWS() (net.Listener, error) {
	cfg := a.eff.Config
	a.wsSrv = ws.NewServer(ws.Options{
		Registry:       a.registry,
		SendBuffer:     cfg.WS.SendBuffer,
		MaxMessageSize: int64(cfg.WS.MaxMessageSize),
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
	})
	a.srvWS = &http.Server{
		Addr:              a.eff.WSAddr,
		Handler:           a.wsSrv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", a.eff.WSAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", a.eff.WSAddr)
	}
	return ln, nil
}
