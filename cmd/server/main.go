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

	"github.com/Skotchmaster/jyra/internal/config"
	"github.com/Skotchmaster/jyra/internal/db"
	"github.com/Skotchmaster/jyra/internal/events"
	"github.com/Skotchmaster/jyra/internal/hash"
	"github.com/Skotchmaster/jyra/internal/httpserver"
	jwthelp "github.com/Skotchmaster/jyra/internal/jwt"
	"github.com/Skotchmaster/jyra/internal/logging"
	"github.com/Skotchmaster/jyra/internal/repo"
	"github.com/Skotchmaster/jyra/internal/service"
	"github.com/Skotchmaster/jyra/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL, cfg.DatabasePath)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	prod := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	issuer := tokens.NewIssuer([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	authHTTP := &httpserver.AuthHTTP{
		Svc: &service.AuthService{
			Store:       &repo.GormRepo{DB: gdb},
			Hasher:      hash.Bcrypt{},
			Tokens:      issuer,
			Events:      prod,
			AdminSecret: cfg.AdminSecret,
		},
		Cookies: jwthelp.Cookies{Secure: cfg.CookieSecure},
	}

	e := httpserver.NewEcho(logger, cfg.CORSOrigins)
	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: authHTTP,
		Tokens:      issuer,
		Ready:       func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db close error", "error", err)
	}

	logger.Info("shutdown complete")
}
