package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/whisperwalls/censor/config"
	"github.com/whisperwalls/censor/core"
	"github.com/whisperwalls/censor/engine"
	"github.com/whisperwalls/censor/internal/api"
	"github.com/whisperwalls/censor/internal/logger"
	"github.com/whisperwalls/censor/models"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	writeConfig := flag.String("write-config", "", "write default config to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.SaveConfig(config.DefaultConfig(), *writeConfig); err != nil {
			log.Fatal("failed to write config", "error", err)
		}
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	level, _ := log.ParseLevel(cfg.Log.Level)
	l := logger.NewWithConfig(os.Stdout, "censord", level, cfg.Log.Caller, cfg.Log.Timestamp, logger.ParseFormatter(cfg.Log.Format))
	log.SetDefault(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		l.Fatal("failed to open preference store", "kind", cfg.Store.Kind, "error", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			l.Warn("closing preference store", "error", err)
		}
	}()

	eng := engine.New()
	if len(cfg.Filter.Lexicon) > 0 {
		eng, err = engine.NewWithLexicon(cfg.Filter.Lexicon)
		if err != nil {
			l.Fatal("invalid lexicon", "error", err)
		}
	}

	filter := core.New(core.Options{
		Store:                store,
		Engine:               eng,
		Logger:               logger.NewAdapter(l.WithPrefix("core")),
		TriggerThreshold:     cfg.Filter.TriggerThreshold,
		ProfanityThreshold:   cfg.Filter.ProfanityThreshold,
		MaxMessageSize:       cfg.Filter.MaxMessageSize,
		MaxTriggerWordLength: cfg.Filter.MaxTriggerWordLength,
		MaxTriggerWords:      cfg.Filter.MaxTriggerWords,
		CacheTTL:             cfg.Cache.TTL.Duration,
		CacheMaxBytes:        cfg.Cache.MaxBytes,
		DisableCache:         cfg.Cache.Disabled,
		SweepInterval:        cfg.Cache.SweepInterval.Duration,
	})
	_ = filter.OnBlock(func(_ context.Context, e core.DecisionEvent) error {
		l.Debug("blocked message", "viewer", e.ViewerID, "message", e.MessageID, "confidence", e.Confidence)
		return nil
	})

	runErr := make(chan error, 1)
	go func() { runErr <- filter.Run(ctx) }()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(filter, store, cfg, l).Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	go func() {
		l.Info("starting API server", "addr", cfg.Server.Addr, "store", cfg.Store.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", "error", err)
			stop()
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("filter stopped", "error", err)
		}
	}

	l.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("server forced shutdown", "error", err)
	}
	m := filter.Metrics()
	l.Info("server stopped", "shown", m[models.ActionShow], "censored", m[models.ActionCensor], "blocked", m[models.ActionBlock])
}
