// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/internal/bus"
	"github.com/pdiddy/proposal-engine/internal/server"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the proposal HTTP and WebSocket API",
	Long: `Serve starts an HTTP server for proposal sessions.

  POST /api/proposals                    start a session: {"topic", "clarification"}
  GET  /api/proposals/:id                session status
  POST /api/proposals/:id/clarification  answer clarification questions: {"answer"}
  GET  /ws/proposals/:id                 stream session messages over WebSocket

Each WebSocket message is {"sessionId", "step", "stage", "title", "content",
"isFinal"}. step numbers the output blocks from 1; chunks of one drafted
section share a step.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	messages := bus.New(cfg.Server.Backlog, bus.WithLinger(cfg.Server.SessionTTL))
	sessions := server.NewSessions(cfg.Server.SessionTTL)
	eng, err := rt.newEngine(sessions.Track(messages), sessions)
	if err != nil {
		return err
	}
	srv := server.New(cfg.Server, eng, messages, sessions, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}
