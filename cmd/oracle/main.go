package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/auth"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/hub"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/oracle"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/pegger"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/repository"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/server"
	"github.com/Zera-Labs/simple-oracle/pkg/config"
	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.App.Env == "local" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	store, err := repository.NewSQLiteStore(cfg.DB.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	seedFixtures(store, cfg, logger)

	eventHub := hub.NewHub(cfg.Hub.QueueSize, logger)
	limiter := auth.NewLimiter(cfg.Auth.WriteLimitPerMin)
	authn := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AdminSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	svc := oracle.NewService(store, eventHub, limiter, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources, err := pegger.ParseSources(cfg.Peg.Sources)
	if err != nil {
		logger.Fatal("Invalid peg sources", zap.Error(err))
	}
	go pegger.New(sources, svc, time.Duration(cfg.Peg.IntervalSeconds)*time.Second, logger).Run(ctx)

	heartbeat := time.Duration(cfg.Hub.HeartbeatSeconds) * time.Second
	srv := server.NewServer(cfg.App.Port, store, svc, authn, eventHub, heartbeat, logger)

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.Start(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	logger.Info("Shutdown Complete")
}

// seedFixtures writes the optionally configured starter prices through the
// normal store path, so they show up in the audit ledger under "seed".
func seedFixtures(store repository.Store, cfg *config.Config, logger *zap.Logger) {
	raw := strings.TrimSpace(cfg.Seed.Tokens)
	if raw == "" {
		return
	}
	ctx := context.Background()
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 5 {
			logger.Warn("Skipping malformed seed entry", zap.String("entry", entry))
			continue
		}
		scale, err := strconv.ParseUint(parts[3], 10, 32)
		if err != nil {
			logger.Warn("Skipping seed entry with bad scale", zap.String("entry", entry))
			continue
		}
		rec := models.PriceRecord{
			Token:    parts[0],
			Symbol:   parts[1],
			Mantissa: parts[2],
			Scale:    uint32(scale),
		}
		if parts[4] != "" {
			if d, err := strconv.ParseInt(parts[4], 10, 64); err == nil {
				rec.Decimals = &d
			}
		}
		if _, _, err := store.UpsertPrice(ctx, rec, models.ActorSeed); err != nil {
			logger.Warn("Failed to seed price", zap.String("token", rec.Token), zap.Error(err))
		}
	}
}
