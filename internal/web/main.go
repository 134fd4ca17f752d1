// Package web serves the settings REST api.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quillblog/quill/internal/config"
	accesslog "github.com/quillblog/quill/internal/logger/adapter/fiber"
	"github.com/quillblog/quill/internal/web/handler"
	settingshandler "github.com/quillblog/quill/internal/web/handler/settings"
	"github.com/quillblog/quill/internal/web/middleware/actor"
)

// MetricsPath serves the prometheus metrics.
const MetricsPath = "/metrics"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address and blocks until it stops.
func (s *Service) Start(addr string) error {
	s.alive.Store(true)

	err := s.App.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// WaitShutdown waits for SIGINT or SIGTERM and shuts the web service down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown stops the web service. Unless fast shutdown is set, checkalive
// returns 503 for the configured shutdown time first, so load balancers can
// remove this instance.
func (s *Service) Shutdown() {
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// SetFastShutdown skips the 503 window on shutdown.
func (s *Service) SetFastShutdown(fast bool) {
	s.fastShutDown = fast
}

// Alive reports whether checkalive answers 200.
func (s *Service) Alive() bool {
	return s.alive.Load()
}

func (s *Service) checkAlive(c fiber.Ctx) error {
	if !s.alive.Load() {
		return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
	}

	return c.SendString("OK")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, deps handler.Deps) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if deps.Settings == nil {
		panic("settings service cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Immutable:      true,
			BodyLimit:      cfg.Webserver.BodyLimit,
			ErrorHandler:   handler.ErrorHandler,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recoverer.New())
	}

	app.Use(requestid.New())
	app.Use(accesslog.New(accesslog.Config{
		Config:        cfg.Log,
		CheckAliveURI: cfg.Webserver.CheckAliveURI,
	}))

	if len(cfg.Webserver.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.Webserver.AllowOrigins,
			AllowHeaders: []string{
				fiber.HeaderContentType,
				fiber.HeaderAccept,
				actor.HeaderID,
				actor.HeaderName,
				actor.HeaderEmail,
			},
		}))
	}

	app.Use(actor.Middleware)

	service := &Service{
		cfg: cfg,
		App: app,
	}
	service.alive.Store(true)

	app.Get(cfg.Webserver.CheckAliveURI, service.checkAlive)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	if err := new(settingshandler.Service).Init(app, cfg, deps); err != nil {
		log.Fatal().Err(err).Msg(handler.ErrNilACSFatalLogMsg)
	}

	return service
}
