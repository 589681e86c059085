package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"filecourier/internal/agent"
	"filecourier/internal/bus"
	"filecourier/internal/channel"
	"filecourier/internal/config"
	"filecourier/internal/domain"
	"filecourier/internal/history"
	"filecourier/internal/tool"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	agent.Version = version

	root := &cobra.Command{
		Use:   "filecourier",
		Short: "filecourier: send local files to chat channels",
		Long:  "filecourier is a small bot that delivers local files to users over messaging channels, driven by chat commands or one-off CLI invocations.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.filecourier/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		return config.Defaults()
	}
	return cfg
}

// newLogger rebuilds the process logger with the configured level and sink.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.General.LogFile != "" {
		if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		} else {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.General.LogFile, "err", err)
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and outbox directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Files.AllowedDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "outbox", cfg.Files.AllowedDir)
			return nil
		},
	}
}

// openLedger opens the delivery ledger if history is enabled. May return nil.
func openLedger(cfg *config.Config) (*history.SQLiteStore, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.NewSQLiteStore(cfg.History.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("delivery ledger: %w", err)
	}
	if pruned, err := store.Prune(context.Background(), cfg.History.RetentionDays); err != nil {
		logger.Warn("ledger prune failed", "err", err)
	} else if pruned > 0 {
		logger.Info("pruned old ledger entries", "count", pruned)
	}
	return store, nil
}

// recordDeliveries subscribes a ledger recorder to delivery events.
func recordDeliveries(events *bus.EventBus, ledger domain.DeliveryLog) {
	if ledger == nil {
		return
	}
	handler := func(e bus.Event) {
		files, _ := e.Payload["files"].([]string)
		status := domain.DeliveryStatusSent
		errText := ""
		if e.Type == bus.EventFileFailed {
			status = domain.DeliveryStatusFailed
			errText, _ = e.Payload["error"].(string)
		}
		rec := domain.DeliveryRecord{
			Channel:   str(e.Payload["channel"]),
			ChatID:    str(e.Payload["chat_id"]),
			Caption:   str(e.Payload["caption"]),
			Files:     files,
			Status:    status,
			Error:     errText,
			CreatedAt: e.Timestamp,
		}
		if err := ledger.Record(context.Background(), rec); err != nil {
			logger.Warn("cannot record delivery", "err", err)
		}
	}
	events.On(bus.EventFileSent, handler)
	events.On(bus.EventFileFailed, handler)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// deliverVia wraps a transport into the send tool's delivery function,
// emitting ledger events for every attempt.
func deliverVia(transport func(domain.OutboundMessage) error, events *bus.EventBus) domain.SendFunc {
	return func(ctx context.Context, msg domain.OutboundMessage) error {
		err := transport(msg)
		payload := map[string]any{
			"channel": msg.Channel,
			"chat_id": msg.ChatID,
			"caption": msg.Content,
			"files":   msg.Files,
		}
		evtType := bus.EventFileSent
		if err != nil {
			evtType = bus.EventFileFailed
			payload["error"] = err.Error()
		}
		events.Emit(bus.Event{Type: evtType, Source: "delivery", Payload: payload})
		return err
	}
}

// buildToolset registers all tools against the given delivery function.
func buildToolset(cfg *config.Config, send domain.SendFunc, ledger domain.DeliveryLog) (*tool.Registry, *tool.SendFileTool) {
	reg := tool.NewRegistry(logger)

	sendTool := tool.NewSendFileTool(tool.SendFileConfig{
		Send:       send,
		AllowedDir: cfg.Files.AllowedDir,
		Logger:     logger,
	})
	reg.Register(sendTool)
	reg.Register(tool.NewSendHistoryTool(ledger))
	reg.Register(tool.NewWebShotTool(tool.WebShotConfig{
		Enabled:   cfg.Tools.Capture.Enabled,
		OutputDir: cfg.Files.AllowedDir,
		Logger:    logger,
	}))

	return reg, sendTool
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the gateway (Telegram + dispatch loop)",
		Long:  "Starts all enabled channels and the dispatch loop. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg)

	if cfg.Files.AllowedDir != "" {
		if err := os.MkdirAll(cfg.Files.AllowedDir, 0o755); err != nil {
			return fmt.Errorf("create outbox: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	events := bus.NewEventBus(logger)

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	var ledgerIface domain.DeliveryLog
	if ledger != nil {
		defer ledger.Close()
		ledgerIface = ledger
	}
	recordDeliveries(events, ledgerIface)

	reg, sendTool := buildToolset(cfg, deliverVia(messageBus.SendOutbound, events), ledgerIface)

	loop := agent.NewLoop(agent.LoopConfig{
		Tools:    reg,
		SendTool: sendTool,
		Bus:      messageBus,
		Events:   events,
		Logger:   logger,
	})
	go loop.Run(ctx)

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, messageBus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Warn("telegram channel disabled; only the dispatch loop is running")
	}

	logger.Info("gateway started. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("shutting down gateway...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			telegramCh.Stop()
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive terminal session",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger = newLogger(cfg)

	if cfg.Files.AllowedDir != "" {
		if err := os.MkdirAll(cfg.Files.AllowedDir, 0o755); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	defer messageBus.Close()
	events := bus.NewEventBus(logger)

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	var ledgerIface domain.DeliveryLog
	if ledger != nil {
		defer ledger.Close()
		ledgerIface = ledger
	}
	recordDeliveries(events, ledgerIface)

	reg, sendTool := buildToolset(cfg, deliverVia(messageBus.SendOutbound, events), ledgerIface)

	loop := agent.NewLoop(agent.LoopConfig{
		Tools:    reg,
		SendTool: sendTool,
		Bus:      messageBus,
		Events:   events,
		Logger:   logger,
	})
	go loop.Run(ctx)

	cliCh := channel.NewCLI(channel.CLIConfig{Logger: logger})
	return cliCh.Start(ctx, messageBus)
}

func sendCmd() *cobra.Command {
	var (
		channelName string
		chatID      string
		caption     string
	)
	cmd := &cobra.Command{
		Use:   "send [files...]",
		Short: "Send files once, without starting the gateway",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger = newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if channelName != "telegram" {
				return fmt.Errorf("unsupported channel %q (one-off sending supports: telegram)", channelName)
			}
			if cfg.Channels.Telegram.Token == "" {
				return fmt.Errorf("channels.telegram.token is not configured")
			}

			tg := channel.NewTelegram(channel.TelegramConfig{
				Token:     cfg.Channels.Telegram.Token,
				ParseMode: cfg.Channels.Telegram.ParseMode,
				Logger:    logger,
			})
			if err := tg.Connect(ctx); err != nil {
				return err
			}

			events := bus.NewEventBus(logger)
			ledger, err := openLedger(cfg)
			if err != nil {
				return err
			}
			var ledgerIface domain.DeliveryLog
			if ledger != nil {
				defer ledger.Close()
				ledgerIface = ledger
			}
			recordDeliveries(events, ledgerIface)

			sendTool := tool.NewSendFileTool(tool.SendFileConfig{
				Send:       deliverVia(tg.Deliver, events),
				Channel:    "telegram",
				ChatID:     chatID,
				AllowedDir: cfg.Files.AllowedDir,
				Logger:     logger,
			})

			toolArgs := map[string]any{"file_paths": args}
			if caption != "" {
				toolArgs["caption"] = caption
			}
			result, err := sendTool.Execute(ctx, toolArgs)
			if err != nil {
				return err
			}
			fmt.Println(result)
			if strings.HasPrefix(result, "Error") {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channelName, "channel", "telegram", "delivery channel")
	cmd.Flags().StringVar(&chatID, "chat", "", "target chat/user ID")
	cmd.Flags().StringVar(&caption, "caption", "", "caption for the file(s)")
	cmd.MarkFlagRequired("chat")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent file deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in config")
			}
			store, err := history.NewSQLiteStore(cfg.History.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No deliveries recorded.")
				return nil
			}
			for _, rec := range recs {
				fmt.Printf("%s  %s:%s  %s  %s\n",
					rec.CreatedAt.Format(time.RFC3339),
					rec.Channel, rec.ChatID, rec.Status,
					strings.Join(rec.Files, ", "))
				if rec.Error != "" {
					fmt.Printf("    error: %s\n", rec.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (defaults merged in)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cfg.Channels.Telegram.Token != "" {
				cfg.Channels.Telegram.Token = "***"
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})

	return cmd
}
