package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-redis/redis/v8"

	"github.com/dukerupert/hearth/internal/backup"
	"github.com/dukerupert/hearth/internal/config"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/logging"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/push"
	"github.com/dukerupert/hearth/internal/ratelimit"
	"github.com/dukerupert/hearth/internal/server"
	"github.com/dukerupert/hearth/internal/session"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/vault"
	"github.com/dukerupert/hearth/internal/weather"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEARTH_CONFIG"), "path to YAML config file")
	vapidKeygen := flag.Bool("vapid-keygen", false, "print a new VAPID key pair and exit")
	decryptBackup := flag.String("decrypt-backup", "", "decrypt a database snapshot and exit")
	out := flag.String("out", "hearth-restored.db", "output path for -decrypt-backup")
	flag.Parse()

	if *vapidKeygen {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("HEARTH_PUSH_VAPID_PUBLIC_KEY=%s\nHEARTH_PUSH_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *decryptBackup != "" {
		if cfg.Backup.Passphrase == "" {
			logger.Error("backup passphrase not configured")
			os.Exit(1)
		}
		if err := backup.DecryptFile(*decryptBackup, *out, cfg.Backup.Passphrase); err != nil {
			logger.Error("decrypt backup", "error", err)
			os.Exit(1)
		}
		logger.Info("backup decrypted", "path", *out)
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var memoryStore *ratelimit.MemoryStore
	var limitStore ratelimit.Store
	switch cfg.RateLimit.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		rs := ratelimit.NewRedisStore(client, "hearth:ratelimit:")
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		limitStore = rs
	default:
		memoryStore = ratelimit.NewMemoryStore()
		limitStore = memoryStore
	}
	limiter := ratelimit.NewLimiter(limitStore, cfg.RateLimit.Requests, cfg.RateLimitWindow(), logger)

	var provider session.IdentityProvider
	if cfg.OIDC.IssuerURL != "" {
		p, err := session.NewOIDCProvider(ctx, cfg.OIDC)
		if err != nil {
			return fmt.Errorf("oidc discovery: %w", err)
		}
		provider = p
	} else {
		logger.Warn("oidc not configured, sign-in disabled")
	}

	cipher, err := vault.NewCipher(cfg.Vault.EncryptionKey)
	if err != nil {
		return err
	}
	if !cipher.Enabled() {
		logger.Warn("vault encryption key not set, vault content stored in plaintext")
	}
	blobs, err := vault.NewBlobStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("document storage: %w", err)
	}

	var pushSvc *push.Service
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subject)
	}

	weatherSvc := weather.NewService(weather.Config{
		APIKey:   cfg.Weather.APIKey,
		Units:    cfg.Weather.Units,
		CacheTTL: cfg.WeatherCacheTTL(),
	}, m, logger)

	srv := server.New(server.Deps{
		DB:       db,
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Limiter:  limiter,
		Provider: provider,
		Weather:  weatherSvc,
		Mailer:   email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From, cfg.Server.BaseURL),
		Push:     pushSvc,
		Cipher:   cipher,
		Blobs:    blobs,
	})

	var backups *backup.Manager
	if cfg.Backup.Enabled {
		backups = backup.NewManager(db, store.NewBackupStore(db), blobs, cfg.Backup.Passphrase, cfg.Backup.Retain, logger)
	}

	jobs, err := scheduleJobs(srv, memoryStore, backups, cfg.Backup.Schedule, logger)
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hearth listening", "addr", httpServer.Addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
