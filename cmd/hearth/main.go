// Package main is the entry point for the Hearth router and intent
// service.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hearth-iot/hearth/internal/broker"
	"github.com/hearth-iot/hearth/internal/buildinfo"
	"github.com/hearth-iot/hearth/internal/config"
	"github.com/hearth-iot/hearth/internal/dispatch"
	"github.com/hearth-iot/hearth/internal/handlers"
	"github.com/hearth-iot/hearth/internal/intent"
	"github.com/hearth-iot/hearth/internal/snapshot"
	"github.com/hearth-iot/hearth/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() == 0 {
		printUsage()
		return
	}

	switch flag.Arg(0) {
	case "route":
		runRoute(logger, *configPath)
	case "intent":
		runIntent(logger, *configPath)
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Hearth - voice-driven smart-home control plane")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  route    Run the MQTT router (Topic Parser & Dispatcher + Handlers)")
	fmt.Println("  intent   Run the voice intent service (Snapshot Store + Intent Pipeline)")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func loadConfig(logger *slog.Logger, configPath string) *config.Config {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			logger.Error("failed to load config", "path", configPath, "error", err)
			os.Exit(1)
		}
		return cfg
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("failed to load config from environment", "error", err)
		os.Exit(1)
	}
	return cfg
}

func reconfigureLogger(logger *slog.Logger, cfg *config.Config) *slog.Logger {
	if cfg.LogLevel == "" {
		return logger
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid log_level in config", "error", err)
		os.Exit(1)
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// runRoute wires the Persistence Store, the broker, and the handlers
// behind the dispatch.Router, then blocks until a shutdown signal
// arrives (spec.md §2 items 1-3, SPEC_FULL.md §13).
func runRoute(logger *slog.Logger, configPath string) {
	cfg := loadConfig(logger, configPath)
	logger = reconfigureLogger(logger, cfg)
	logger.Info("starting hearth route", "version", buildinfo.Version, "service", cfg.ServiceName)

	s, err := store.Open(cfg.DB.Name)
	if err != nil {
		logger.Error("failed to open persistence store", "path", cfg.DB.Name, "error", err)
		os.Exit(1)
	}
	defer s.Close()
	logger.Info("persistence store opened", "path", cfg.DB.Name)

	b := broker.New(cfg.MQTT, "", broker.TPDSubscriptions, logger)
	h := handlers.New(s, b, logger)
	router := dispatch.New(h, logger)
	b.SetHandler(func(mqttTopic string, raw []byte) {
		router.HandleMessage(context.Background(), mqttTopic, raw)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := b.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("broker failed", "error", err)
		os.Exit(1)
	}

	_ = b.Stop(context.Background())
	logger.Info("hearth route stopped")
}

// runIntent wires a Snapshot Store fed by system/notify and
// system/response traffic behind the Intent Pipeline, and exposes the
// pipeline over a stdin-line interface for ad hoc utterance testing
// (SPEC_FULL.md §13 — there is no STT engine in scope, so this command
// is the pipeline's entry point for whatever upstream service calls
// it).
func runIntent(logger *slog.Logger, configPath string) {
	cfg := loadConfig(logger, configPath)
	logger = reconfigureLogger(logger, cfg)
	logger.Info("starting hearth intent", "version", buildinfo.Version, "service", cfg.ServiceName)

	snap := snapshot.New()

	b := broker.New(cfg.MQTT, "", snapshotSubscriptions(), logger)
	b.SetHandler(snapshotFeeder(snap, logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	go func() {
		if err := b.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("broker failed", "error", err)
		}
	}()

	if err := b.AwaitConnection(ctx); err != nil {
		logger.Warn("broker not connected yet, continuing anyway", "error", err)
	}

	requestSelectAll(ctx, b, cfg.ServiceName, logger)

	if cfg.RequireSnapshot {
		logger.Info("waiting for snapshot to become ready before accepting utterances")
		for !snap.IsReady() {
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}

	runUtteranceLoop(ctx, snap, b, cfg.ServiceName, logger)

	_ = b.Stop(context.Background())
	logger.Info("hearth intent stopped")
}

func runUtteranceLoop(ctx context.Context, snap *snapshot.Store, b *broker.Broker, service string, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("hearth intent: type an utterance and press enter (Ctrl-D to quit)")
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		text := scanner.Text()
		in := intent.ParseIntent(text)
		res := intent.Resolve(text, in, snap)
		if res.Target == nil {
			fmt.Printf("no target resolved (intent=%s, rule=%s)\n", res.Intent, res.RuleMatched)
			continue
		}

		cmd := intent.Build(in, res.Target)
		if cmd == nil {
			fmt.Printf("intent %s does not apply to %s\n", res.Intent, res.Target.Type)
			continue
		}

		topicStr := fmt.Sprintf("system/set/%s", service)
		payload, err := buildSetPayload(cmd, service)
		if err != nil {
			logger.Error("failed to encode command", "error", err)
			continue
		}

		if err := b.Publish(ctx, topicStr, payload, 1, false); err != nil {
			logger.Error("failed to publish command", "topic", topicStr, "error", err)
			continue
		}
		fmt.Printf("published %s -> %s/%s/%d\n", topicStr, cmd.Type, cmd.Device, cmd.ID)
	}
}
