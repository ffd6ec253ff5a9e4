package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gallery/internal/api"
	"gallery/internal/auth"
	"gallery/internal/blob"
	"gallery/internal/config"
	"gallery/internal/gallery"
	"gallery/internal/logging"
	"gallery/internal/mcp"
	"gallery/internal/store"
	"gallery/internal/store/jsonstore"
	"gallery/internal/store/sqlstore"
	"gallery/internal/web"
)

var version = strconv.FormatInt(time.Now().Unix(), 10)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	st, err := openStore(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize store")
	}
	defer st.Close()

	blobs, err := blob.NewLocalStorage(cfg.Storage.UploadsDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize uploads directory")
	}

	svc := gallery.New(st, blobs, gallery.Options{
		MaxFileSize:    cfg.Upload.MaxFileSize,
		MaxRequestSize: cfg.Upload.MaxRequestSize,
		AllowedTypes:   cfg.Upload.AllowedTypes,
	})
	if err := svc.SeedAdmin(context.Background(), cfg.Security.AdminUsername, cfg.Security.AdminPassword); err != nil {
		logging.Fatal().Err(err).Msg("failed to seed admin user")
	}

	sessions, err := auth.NewSessions(auth.SessionOptions{
		Dir:        cfg.Session.Dir,
		Secret:     cfg.Session.Secret,
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.MaxAge,
		Secure:     cfg.Session.Secure,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize sessions")
	}

	routerCfg := api.RouterConfig{
		CORSOrigins:     cfg.Security.CORSOrigins,
		LoginRateLimit:  cfg.Security.LoginRateLimit,
		LoginRateWindow: cfg.Security.LoginRateWindow,
		Metrics:         cfg.Metrics.Enabled,
		Web:             web.Handler(version),
	}
	if cfg.MCP.Enabled {
		routerCfg.MCP = mcp.NewMCPServer(svc).Handler(version)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(api.NewHandlers(svc, sessions), sessions, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Driver).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	logging.Info().Msg("server stopped")
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	if cfg.Driver == "json" {
		s, err := jsonstore.New(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := sqlstore.New(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return s, nil
}
