// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"
	"sync/atomic"

	"github.com/ardanlabs/blockminer/app/services/miner/handlers/debug/checkgrp"
	v1 "github.com/ardanlabs/blockminer/app/services/miner/handlers/v1"
	"github.com/ardanlabs/blockminer/business/web/mid"
	"github.com/ardanlabs/blockminer/foundation/blockchain/state"
	"github.com/ardanlabs/blockminer/foundation/events"
	"github.com/ardanlabs/blockminer/foundation/web"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	State    *state.State
	Evts     *events.Events
	Origins  []string
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors(cfg.Origins...),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h)

	// Load the v1 routes.
	v1.PublicRoutes(app, v1.Config{
		Log:     cfg.Log,
		State:   cfg.State,
		Evts:    cfg.Evts,
		Origins: cfg.Origins,
	})

	return app
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// published holds the events value reported under the "events" expvar.
var published atomic.Pointer[events.Events]

func init() {
	expvar.Publish("events", expvar.Func(func() any {
		evts := published.Load()
		if evts == nil {
			return nil
		}

		return map[string]any{
			"receivers": evts.Count(),
			"dropped":   evts.Dropped(),
		}
	}))
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service. The event fan-out counters are
// exposed through expvar.
func DebugMux(build string, log *zap.SugaredLogger, evts *events.Events) http.Handler {
	published.Store(evts)

	mux := DebugStandardLibraryMux()

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}
