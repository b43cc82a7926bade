package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentimentai/internal/util"
	"sentimentai/pkg/classifier"
	"sentimentai/services/sentiment/internal/app"
	"sentimentai/services/sentiment/internal/config"
	"sentimentai/services/sentiment/internal/server"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	jwtLeeway, err := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	debounce, err := config.ParseDuration("modelDebounce", cfg.ModelDebounce)
	if err != nil {
		log.Fatalf("failed to parse model debounce: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := config.ModelSource(cfg)
	if err != nil {
		log.Fatalf("failed to init model source: %v", err)
	}
	loadCtx, cancelLoad := context.WithTimeout(ctx, 30*time.Second)
	model, err := classifier.Load(loadCtx, src)
	cancelLoad()
	if err != nil {
		log.Fatalf("failed to load model: %v", err)
	}
	holder := classifier.NewHolder(model)
	logger.Info("model loaded", "source", src.String(), "vocab_size", model.VocabularySize(), "labels", model.Labels())

	if cfg.ModelWatch {
		dir, ok := src.(classifier.DirSource)
		if !ok {
			log.Fatalf("model watch requires a local model directory")
		}
		watcher, err := classifier.NewWatcher(dir, holder, debounce)
		if err != nil {
			log.Fatalf("failed to watch model dir: %v", err)
		}
		go watcher.Run(ctx)
		logger.Info("watching model artifacts", "dir", dir.Dir)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:       cfg.DatabaseURL,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		SessionTTL:        sessionTTL,
		JWTSecret:         cfg.JWTSecret,
		JWTPrivateKeyPath: cfg.JWTPrivateKeyPath,
		JWTPublicKeyPath:  cfg.JWTPublicKeyPath,
		JWTKeyID:          cfg.JWTKeyID,
		JWTIssuer:         cfg.JWTIssuer,
		JWTAudience:       cfg.JWTAudience,
		JWTLeeway:         jwtLeeway,
		Models:            holder,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		PredictRateLimitPerMinute:  cfg.PredictRateLimitPerMinute,
		CORSAllowedOrigins:         cfg.CORSAllowedOrigins,
		TrustedProxies:             trusted,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer httpServer.Close()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
