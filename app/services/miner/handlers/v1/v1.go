// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/blockminer/app/services/miner/handlers/v1/public"
	"github.com/ardanlabs/blockminer/foundation/blockchain/state"
	"github.com/ardanlabs/blockminer/foundation/events"
	"github.com/ardanlabs/blockminer/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	State   *state.State
	Evts    *events.Events
	Origins []string
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:     cfg.Log,
		State:   cfg.State,
		Evts:    cfg.Evts,
		Origins: cfg.Origins,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/block/latest", pbl.LatestBlock)
	app.Handle(http.MethodGet, version, "/block/latest/report", pbl.LatestReport)
	app.Handle(http.MethodGet, version, "/mempool/count", pbl.MempoolCount)
	app.Handle(http.MethodPost, version, "/mine", pbl.Mine)
	app.Handle(http.MethodPost, version, "/tx", pbl.SubmitTx)
}
