package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/blockminer/app/services/miner/handlers"
	"github.com/ardanlabs/blockminer/business/core/miner"
	"github.com/ardanlabs/blockminer/foundation/blockchain/worker"
	"github.com/ardanlabs/blockminer/foundation/events"
	"github.com/ardanlabs/blockminer/foundation/logger"
	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

// Modes the miner can run in.
const (
	modeOneShot = "oneshot"
	modeService = "service"
)

func main() {

	// Construct the application logger.
	log, err := logger.New("MINER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// A .env file in the working directory can provide any of the MINER_
	// environment variables. Values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg := struct {
		conf.Version
		Web   webConfig
		Miner struct {
			Mode             string        `conf:"default:oneshot,help:oneshot mines one block and exits; service runs the api"`
			MempoolDir       string        `conf:"default:mempool,help:folder of pending transactions; empty for an in memory pool"`
			ReportPath       string        `conf:"default:output.txt"`
			RewardAddress    string        `conf:"default:bc1qec944gx6cu3e0292t2zajz3vldr0pa3sh356d9"`
			RewardAmount     int64         `conf:"default:50"`
			DifficultyTarget string        `conf:"default:0000ffff00000000000000000000000000000000000000000000000000000000"`
			PrevBlockHash    string        `conf:"default:0000000000000000000000000000000000000000000000000000000000000000"`
			Version          int32         `conf:"default:1"`
			NonceCap         uint64        `conf:"default:0,help:maximum nonces to try; 0 means no limit"`
			AddressFamily    string        `conf:"default:legacy,help:legacy base58check bech32"`
			Workers          int           `conf:"default:0,help:0 uses every available cpu"`
			Interval         time.Duration `conf:"default:0s,help:service mode mining interval; 0 mines only on demand"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "mempool block miner",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "MINER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Miner.Mode != modeOneShot && cfg.Miner.Mode != modeService {
		return fmt.Errorf("unknown mode %q", cfg.Miner.Mode)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting miner", "version", build, "mode", cfg.Miner.Mode)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Miner Support

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := logger.EvHandler(log, evts.Send)

	service := cfg.Miner.Mode == modeService

	m, err := miner.New(miner.Config{
		MempoolDir:       cfg.Miner.MempoolDir,
		ReportPath:       cfg.Miner.ReportPath,
		RewardAddress:    cfg.Miner.RewardAddress,
		RewardAmount:     cfg.Miner.RewardAmount,
		DifficultyTarget: cfg.Miner.DifficultyTarget,
		PrevBlockHash:    cfg.Miner.PrevBlockHash,
		Version:          cfg.Miner.Version,
		NonceCap:         cfg.Miner.NonceCap,
		AddressFamily:    cfg.Miner.AddressFamily,
		Workers:          cfg.Miner.Workers,
		Prune:            service,
		Chain:            service,
		EvHandler:        ev,
	})
	if err != nil {
		return err
	}

	if !service {
		return mineOnce(log, m)
	}

	return serve(log, cfg.Web, cfg.Miner.Interval, m, evts, ev)
}

// mineOnce mines a single block and stops. An interrupt cancels the search.
func mineOnce(log *zap.SugaredLogger, m *miner.Miner) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := m.State.MineBlock(ctx)
	if err != nil {
		return fmt.Errorf("mining block: %w", err)
	}

	log.Infow("mined", "hash", res.Digest, "nonce", res.Block.Header.Nonce, "attempts", res.Attempts,
		"total", res.Outcome.Total, "accepted", len(res.Outcome.Accepted), "rejected", len(res.Outcome.Rejected),
		"unparsable", len(res.Outcome.ParseFailures))

	return nil
}

// webConfig holds the settings for the service mode servers.
type webConfig struct {
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:60s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
	DebugHost       string        `conf:"default:0.0.0.0:7080"`
	PublicHost      string        `conf:"default:0.0.0.0:8080"`
	CORSOrigins     []string      `conf:"default:*,help:origins allowed to call the public api"`
}

// serve runs the background worker and the public and debug APIs until the
// process is told to stop.
func serve(log *zap.SugaredLogger, web webConfig, interval time.Duration, m *miner.Miner, evts *events.Events, ev func(v string, args ...any)) error {

	// The worker package runs the mining operations in the background. The
	// worker will register itself with the state.
	worker.Run(m.State, interval, ev)
	defer m.State.Shutdown()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, evts)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    m.State,
		Evts:     evts,
		Origins:  web.CORSOrigins,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  web.ReadTimeout,
		WriteTimeout: web.WriteTimeout,
		IdleTimeout:  web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
