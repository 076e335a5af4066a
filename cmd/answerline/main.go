package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/answerline/answerline/internal/answer"
	"github.com/answerline/answerline/internal/config"
	"github.com/answerline/answerline/internal/dispatch"
	"github.com/answerline/answerline/internal/line"
	"github.com/answerline/answerline/internal/log"
	"github.com/answerline/answerline/internal/storage"
	"github.com/answerline/answerline/internal/webhook"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	checkConfig := flag.Bool("check-config", false, "validate config and integrity checksums, then exit")
	lockConfig := flag.Bool("lock-config", false, "authorize current config state (update integrity hashes), then exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("answerline version %s\n", version)
		os.Exit(0)
	}

	if *lockConfig {
		if err := config.LockConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "lock failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("config checksums updated")
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if *checkConfig {
		fmt.Println("config OK")
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	log.Setup(cfg.Server.LogLevel)
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store dispatch.EventStore
	if cfg.State.Path != "" {
		st, err := storage.Open(ctx, cfg.State.Path)
		if err != nil {
			logger.Error("failed to open event store", "error", err)
			return 1
		}
		defer st.Close()

		if pruned, err := st.Prune(ctx, cfg.State.DedupeTTL.Std()); err != nil {
			logger.Warn("failed to prune event store", "error", err)
		} else if pruned > 0 {
			logger.Info("pruned processed events", "count", pruned)
		}
		store = st
	}

	dispatcher := dispatch.New(cfg,
		answer.NewClient(cfg.Answer),
		line.NewClient(cfg.Line),
		store,
	)

	server := webhook.New(cfg.Server, cfg.Line.ChannelSecret, dispatcher, log.WithComponent("webhook"))

	logger.Info("answerline starting",
		"version", version,
		"listen", cfg.Server.Listen,
		"direct_chat", cfg.Line.DirectChatAllowed(),
		"knowledge_base", cfg.Answer.VectorStoreID != "",
	)

	err := server.Start(ctx)
	if err != nil && err != context.Canceled {
		logger.Error("server error", "error", err)
		return 1
	}

	// Drain in-flight event processing before exiting.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		logger.Warn("shutdown drain incomplete", "error", err)
		return 1
	}

	logger.Info("answerline stopped")
	return 0
}
