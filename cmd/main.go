package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensor_overlay/internal/config"
	"sensor_overlay/internal/handlers"
	"sensor_overlay/internal/logger"
	"sensor_overlay/internal/metrics"
	"sensor_overlay/internal/render"
	"sensor_overlay/internal/repository"
	"sensor_overlay/internal/server"
	"sensor_overlay/internal/service"
	"sensor_overlay/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: configs/config.yml)")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for an operator password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := service.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)

	db, err := repository.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer closeDB(db, log)

	// context for background goroutines and open pages
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(db)
	m := metrics.New()

	fetcher := service.NewHTTPFetcher(service.FetcherOptions{
		URL:             cfg.Sensor.APIURL,
		Timeout:         cfg.Sensor.Timeout,
		BreakerFailures: cfg.Sensor.BreakerFailures,
		BreakerOpen:     cfg.Sensor.BreakerOpen,
	}, m, log.Named("fetcher"))

	ctrl := service.NewRefreshController(fetcher, service.RefreshOptions{
		Interval: cfg.Sensor.RefreshInterval,
		States:   repos.StateRepo,
		Events:   repos.EventRepo,
		Metrics:  m,
		Log:      log.Named("refresh"),
		Context:  ctx,
	})

	renderer, err := render.NewRenderer(cfg.Display.Language, cfg.Display.Location)
	if err != nil {
		log.Fatalw("failed to load templates", "err", err)
	}

	hub := session.NewHub(session.Options{
		Renderer:   renderer,
		Fetcher:    fetcher,
		Controller: ctrl,
		Viewer:     cfg.Viewer,
		Display:    cfg.Display,
		Metrics:    m,
		Log:        log.Named("ws"),
		Context:    ctx,
	})
	ctrl.SetPublisher(hub)

	auth := service.NewAuthService(cfg.Auth.OperatorPasswordHash, cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if cfg.Auth.OperatorPasswordHash == "" {
		log.Warnw("operator login disabled", "hint", "set auth.operator_password_hash (see -hash-password)")
	}

	services := service.NewService(repos, ctrl, auth)
	apiHandler := handlers.NewHandler(services, handlers.Deps{
		Renderer: renderer,
		Sockets:  hub,
		Metrics:  m.Handler(),
		Viewer:   cfg.Viewer,
	}, log.Named("http"))

	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	waitForShutdown(cancel, ctrl, srv, log)
}

func closeDB(db *sql.DB, log *logger.Logger) {
	if err := db.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, ctrl *service.RefreshController, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// stop the timer while the event log is still writable
	ctrl.Stop(ctx)

	// close open pages and background fetches
	cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
