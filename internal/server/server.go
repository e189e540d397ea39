// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes proposal sessions over HTTP and streams their
// progress over WebSocket.
package server

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/internal/engine"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Runner starts proposal sessions. *engine.Engine satisfies it.
type Runner interface {
	NewSession(topic string, opts ...engine.SessionOption) *types.Session
	Run(ctx context.Context, s *types.Session) (*types.Session, error)
}

// Stream is the consumer side of the message bus. *bus.Registry satisfies it.
type Stream interface {
	Next(ctx context.Context, id string) (types.StreamMessage, error)
	Close(id string)
}

// Server serves the proposal API.
type Server struct {
	app      *fiber.App
	cfg      types.ServerConfig
	runner   Runner
	stream   Stream
	sessions *Sessions
	log      *zap.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the fiber app and registers routes. sessions must be the
// registry the runner's engine uses as its Clarifier and Sink tracker.
func New(cfg types.ServerConfig, runner Runner, stream Stream, sessions *Sessions, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "proposal-engine",
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:      app,
		cfg:      cfg,
		runner:   runner,
		stream:   stream,
		sessions: sessions,
		log:      log.Named("server"),
		base:     base,
		cancel:   cancel,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": s.sessions.Count()})
	})
	api.Post("/proposals", s.create)
	api.Get("/proposals/:id", s.status)
	api.Post("/proposals/:id/clarification", s.clarify)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/proposals/:id", s.known, websocket.New(s.streamSession))
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on the configured address until the listener fails or
// Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("server listening", zap.String("addr", s.cfg.Addr))
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops accepting requests, cancels running sessions, and waits
// for them to return.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// Wait blocks until every started session has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

type createRequest struct {
	Topic         string `json:"topic"`
	Clarification string `json:"clarification"`
}

func (s *Server) create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return fiber.NewError(fiber.StatusBadRequest, "topic is required")
	}

	var opts []engine.SessionOption
	if a := strings.TrimSpace(req.Clarification); a != "" {
		opts = append(opts, engine.WithClarification(a))
	}
	sess := s.runner.NewSession(topic, opts...)
	s.sessions.Start(sess.ID, topic)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log := s.log.With(zap.String("session_id", sess.ID))
		if _, err := s.runner.Run(s.base, sess); err != nil {
			log.Error("session failed", zap.Error(err))
		}
		s.sessions.Finish(sess)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sessionId": sess.ID})
}

func (s *Server) status(c *fiber.Ctx) error {
	st, err := s.sessions.Get(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.JSON(st)
}

type clarifyRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) clarify(c *fiber.Ctx) error {
	var req clarifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	answer := strings.TrimSpace(req.Answer)
	if answer == "" {
		return fiber.NewError(fiber.StatusBadRequest, "answer is required")
	}
	err := s.sessions.Answer(c.Params("id"), answer)
	switch {
	case errors.Is(err, ErrUnknownSession):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrClarificationClosed):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) known(c *fiber.Ctx) error {
	if _, err := s.sessions.Get(c.Params("id")); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.Next()
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
