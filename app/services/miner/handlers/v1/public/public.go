// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/ardanlabs/blockminer/business/web/errs"
	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/mempool"
	"github.com/ardanlabs/blockminer/foundation/blockchain/pow"
	"github.com/ardanlabs/blockminer/foundation/blockchain/state"
	"github.com/ardanlabs/blockminer/foundation/events"
	"github.com/ardanlabs/blockminer/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of miner endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS      websocket.Upgrader
	Evts    *events.Events
	Origins []string
}

// allowedOrigin accepts requests without an Origin header, any origin when
// "*" is configured, and otherwise only the listed origins.
func (h Handlers) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(h.Origins, "*") || slices.Contains(h.Origins, origin)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Apply the same origin allow-list as the CORS middleware.
	h.WS.CheckOrigin = h.allowedOrigin

	// This upgrades the HTTP connection to a websocket connection. A failed
	// upgrade has already been answered by the upgrader.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Infow("events", "traceid", v.TraceID, "status", "upgrade refused", "origin", r.Header.Get("Origin"), "ERROR", err)
		return nil
	}
	defer c.Close()

	// This provides a channel for receiving events from the miner.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting to receive events and send them to the client.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// LatestBlock returns the most recently mined block.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	res, err := h.State.RetrieveLatest()
	if err != nil {
		if errors.Is(err, state.ErrNoBlock) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, toBlock(res), http.StatusOK)
}

// LatestReport returns the report for the most recently mined block.
func (h Handlers) LatestReport(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	res, err := h.State.RetrieveLatest()
	if err != nil {
		if errors.Is(err, state.ErrNoBlock) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.RespondText(ctx, w, res.Report, http.StatusOK)
}

// MempoolCount returns the number of pending transactions.
func (h Handlers) MempoolCount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := h.State.QueryMempoolLength(ctx)
	if err != nil {
		return fmt.Errorf("query mempool: %w", err)
	}

	resp := struct {
		Pending int `json:"pending"`
	}{
		Pending: n,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mine runs a mining operation. With async=true the background worker is
// signaled instead and the call returns right away.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if r.URL.Query().Get("async") == "true" {
		if h.State.Worker == nil {
			return errs.NewTrusted(errors.New("no background worker is running"), http.StatusConflict)
		}

		h.State.Worker.SignalStartMining()

		resp := struct {
			Status string `json:"status"`
		}{
			Status: "mining signaled",
		}

		return web.Respond(ctx, w, resp, http.StatusAccepted)
	}

	res, err := h.State.MineBlock(ctx)
	if err != nil {
		if errors.Is(err, pow.ErrSearchExhausted) {
			return errs.NewTrusted(err, http.StatusUnprocessableEntity)
		}
		return fmt.Errorf("mine block: %w", err)
	}

	return web.Respond(ctx, w, toBlock(res), http.StatusOK)
}

// SubmitTx adds a new transaction to the mempool.
func (h Handlers) SubmitTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "tx", tx)

	n, err := h.State.SubmitTx(tx)
	if err != nil {
		switch {
		case errors.Is(err, state.ErrReadOnly):
			return errs.NewTrusted(err, http.StatusConflict)
		case errors.Is(err, mempool.ErrInvalidHandle):
			return errs.NewFieldsError("txid", err, http.StatusBadRequest)
		case database.IsEncodingError(err):
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	resp := struct {
		Status  string `json:"status"`
		Pending int    `json:"pending"`
	}{
		Status:  "transaction added to mempool",
		Pending: n,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
