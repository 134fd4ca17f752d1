package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/settings"
	"github.com/quillblog/quill/pkg/cache"
)

// Deps are the services handlers work with.
type Deps struct {
	Settings *settings.Service
	// Snapshots caches the full grouped settings object. Optional.
	Snapshots *cache.Cache
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, deps Deps) error
}
