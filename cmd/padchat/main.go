package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/padsync/padchat/internal/config"
	"github.com/padsync/padchat/internal/gateway"
	"github.com/padsync/padchat/internal/logging"
	"github.com/padsync/padchat/internal/manager"
	"github.com/padsync/padchat/internal/memory"
	"github.com/padsync/padchat/internal/wire"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("padchat starting",
		slog.String("version", Version),
		slog.String("endpoint", cfg.Endpoint),
		slog.String("cache_dir", cfg.CacheDir),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slots, err := memory.OpenBolt(cfg.CacheDir, cfg.Token)
	if err != nil {
		return fmt.Errorf("opening memory slot: %w", err)
	}
	defer slots.Close()

	// The bridge and the manager reference each other through
	// callbacks; the bridge is built first around a late-bound manager.
	var mgr *manager.Manager

	bridge := gateway.New(gateway.Config{
		Endpoint: cfg.Endpoint,
		Token:    cfg.Token,
		OnMessage: func(msg wire.MessagePayload) {
			mgr.HandleMessage(msg)
		},
		OnHeartbeat: func(kind string) {
			mgr.HandleHeartbeat(kind)
		},
		OnReset: func() {
			mgr.HandleReset()
		},
		OnReconnected: func() {
			mgr.HandleReconnected()
		},
	}, logger)

	mgr = manager.New(bridge, manager.Config{
		GatewayToken: cfg.Token,
		CacheRoot:    cfg.CacheDir,
		Slots:        slots,
		Events:       consoleEvents(logger),
	}, logger)

	return mgr.Start(ctx)
}

// consoleEvents logs every session event; this binary is a daemon, not
// a library consumer, so the log is the interface.
func consoleEvents(logger *slog.Logger) manager.Events {
	return manager.Events{
		OnScan: func(qrcodeBase64 string, status int) {
			logger.Info("scan the QR code with the WeChat app",
				slog.Int("status", status),
				slog.String("qrcode_base64", qrcodeBase64),
			)
		},
		OnLogin: func(userID string) {
			logger.Info("login", slog.String("user", userID))
		},
		OnLogout: func(userID string) {
			logger.Info("logout", slog.String("user", userID))
		},
		OnMessage: func(msg wire.MessagePayload) {
			logger.Info("message",
				slog.String("msg_id", msg.MsgID),
				slog.Int("msg_type", msg.MsgType),
				slog.String("from", msg.FromUser),
				slog.String("to", msg.ToUser),
				slog.String("content", msg.Content),
			)
		},
		OnReset: func(reason string) {
			logger.Warn("session reset", slog.String("reason", reason))
		},
		OnReconnect: func() {
			logger.Info("session resumed after reconnect")
		},
		OnReady: func() {
			logger.Info("ready, contact list synced")
		},
		OnDong: func(data string) {
			logger.Debug("dong", slog.String("data", data))
		},
		OnError: func(err error) {
			logger.Error("session error", slog.String("error", err.Error()))
		},
	}
}
