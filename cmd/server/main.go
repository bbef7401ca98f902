package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"acorn/internal/api"
	"acorn/internal/auth"
	"acorn/internal/blob"
	"acorn/internal/config"
	"acorn/internal/db"
	"acorn/internal/db/postgres"
	"acorn/internal/discord"
)

const shutdownTimeout = 10 * time.Second

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "", "path to YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before env overrides")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	files, err := openBlobStore(cfg)
	if err != nil {
		return err
	}

	identity := discord.NewClient(discord.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURI:  cfg.Discord.RedirectURI,
		APIBaseURL:   cfg.Discord.APIBaseURL,
	})

	server, err := api.NewServer(cfg, store, files, identity)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	cleanup := db.NewCleanupService(auth.NewTempLoginBroker(store), cfg.Auth.SweepInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cleanup.Start(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("server listening", "addr", httpServer.Addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	opts := db.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		QueryTimeout: cfg.Database.QueryTimeout,
	}

	switch cfg.Database.Driver {
	case "postgres":
		store, err := postgres.Open(ctx, cfg.Database.URL, opts)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		slog.Info("database opened", "driver", "postgres")
		return store, nil
	default:
		store, err := db.Open(cfg.Database.Path, opts)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		slog.Info("database opened", "driver", "sqlite", "path", cfg.Database.Path)
		return store, nil
	}
}

func openBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.Storage.Driver {
	case "s3":
		s3 := cfg.Storage.S3
		files, err := blob.NewS3(blob.S3Config{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			UseSSL:    s3.UseSSL,
			SpoolDir:  cfg.Storage.Root,
		}, cfg.Storage.UploadMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("initializing s3 storage: %w", err)
		}
		slog.Info("mod storage initialized", "driver", "s3", "endpoint", s3.Endpoint, "bucket", s3.Bucket)
		return files, nil
	default:
		files, err := blob.NewLocal(cfg.Storage.Root, cfg.Storage.UploadMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("initializing local storage: %w", err)
		}
		slog.Info("mod storage initialized", "driver", "local", "root", cfg.Storage.Root, "upload_max_bytes", cfg.Storage.UploadMaxBytes)
		return files, nil
	}
}
