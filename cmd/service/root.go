package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gallery-service/internal/blob"
	"gallery-service/internal/config"
	"gallery-service/internal/gallery"
	"gallery-service/internal/logging"
	"gallery-service/internal/realtime"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gallery",
		Short:         "Personal media gallery with a playlist player",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("GALLERY_CONFIG"), "path to a TOML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	})
	return root
}

func setup(path string) (config.Config, *log.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(os.Stderr, cfg.LogLevel), nil
}

func openDB(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to DB: %w", err)
	}
	if err := gallery.AutoMigrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pool, nil
}

func runMigrate(ctx context.Context, path string) error {
	cfg, logger, err := setup(path)
	if err != nil {
		return err
	}
	pool, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	pool.Close()
	logger.Info("migrations applied")
	return nil
}

// blobStore picks the storage backend. The local store is also returned so
// the router can serve its files.
func blobStore(cfg config.Config) (blob.Store, *blob.FSStore, error) {
	switch cfg.Blob.Backend {
	case config.BackendAzure:
		s, err := blob.NewAzureStore(cfg.Blob.AzureAccount, cfg.Blob.AzureKey, cfg.Blob.AzureServiceURL)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		fs := blob.NewFSStore(cfg.Blob.Dir, cfg.Blob.PublicBaseURL)
		return fs, fs, nil
	}
}

func runServe(ctx context.Context, path string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup(path)
	if err != nil {
		return err
	}

	pool, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	blobs, media, err := blobStore(cfg)
	if err != nil {
		return err
	}

	store := gallery.NewPostgresStore(pool)

	// The hub needs the library for track reloads and the library needs a
	// publisher, so the hub gets a source that is filled in afterwards.
	src := &lateSource{}
	hub := realtime.NewHub(src, logging.With(logger, "hub"))

	var pub gallery.Publisher = hub
	if rdb != nil {
		pub = gallery.NewRedisPublisher(rdb, logging.With(logger, "events"))
	}
	lib := gallery.NewLibrary(store, blobs, pub, logging.With(logger, "library"))
	src.lib = lib

	ws := realtime.NewServer(hub, rdb, cfg.WSAllowedOrigin, logging.With(logger, "ws"))
	go hub.Run(ctx)
	go ws.RunRedisSubscriber(ctx)

	srv := gallery.NewServer(lib, gallery.Options{
		MaxUploadBytes:   cfg.Upload.MaxBytes(),
		UploadRatePerMin: cfg.Upload.RatePerMin,
		UploadBurst:      cfg.Upload.Burst,
		Media:            media,
		WS:               ws.Handler(),
	}, logging.With(logger, "http"))

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port, "blob", cfg.Blob.Backend, "redis", rdb != nil)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
