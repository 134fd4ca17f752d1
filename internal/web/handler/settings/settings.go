// Package settings implements the REST handlers of the settings api.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/quillblog/quill/internal/apperr"
	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/internal/config"
	service "github.com/quillblog/quill/internal/settings"
	"github.com/quillblog/quill/internal/web/handler"
	"github.com/quillblog/quill/internal/web/middleware/actor"
	"github.com/quillblog/quill/pkg/cache"
)

const (
	// Path is the root of the settings api.
	Path = "/settings"

	formatFlat = "flat"
)

// Service is the settings api handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	settings  *service.Service
	snapshots *cache.Cache
}

type writeRequest struct {
	Value       json.RawMessage `json:"value"`
	Group       string          `json:"group"`
	Description string          `json:"description"`
}

type batchEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Group string          `json:"group"`
}

type rollbackRequest struct {
	Description string `json:"description"`
}

type batchResponse struct {
	Success bool `json:"success"`
	*service.BatchResult
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Init registers the settings routes. Fixed paths are registered before the
// /:key routes so they are never taken for keys.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps handler.Deps) error {
	if app == nil || cfg == nil || deps.Settings == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.settings = deps.Settings
	s.snapshots = deps.Snapshots

	router := app.Group(Path)
	router.Get(handler.RootPath, s.List)
	router.Get("/history/all", s.HistoryAll)
	router.Get("/history/:key", s.HistoryKey)
	router.Post("/batch", s.Batch)
	router.Get("/export", s.Export)
	router.Post("/import", s.Import)
	router.Post("/rollback/:historyId", s.Rollback)
	router.Get("/:key", s.Get)
	router.Put("/:key", s.Put)
	router.Post("/:key", s.Put)
	router.Delete("/:key", s.Delete)

	return nil
}

func meta(c fiber.Ctx, description string) service.Meta {
	return service.Meta{Actor: actor.FromCtx(c), Description: strings.TrimSpace(description)}
}

func bindJSON(c fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return apperr.Validation("request body is empty")
	}

	if err := c.Bind().JSON(out); err != nil {
		return apperr.Validation("invalid json body: %v", err)
	}

	return nil
}

// value keeps an absent value apart from an explicit null.
func value(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, apperr.Validation("value is required")
	}

	return raw, nil
}

// List returns all settings nested per group, the settings of one group with
// ?group=, or a flat list with ?format=flat.
func (s *Service) List(c fiber.Ctx) error {
	var (
		group  = strings.TrimSpace(c.Query("group"))
		format = c.Query("format")
		ctx    = c.Context()
	)

	if format == formatFlat {
		list, err := s.settings.List(ctx, group)
		if err != nil {
			return err
		}

		out := make([]service.View, len(list))
		for i := range list {
			out[i] = service.ViewOf(&list[i])
		}

		return c.JSON(out)
	}

	if group == "" && s.snapshots != nil {
		data, err := s.snapshots.Get(ctx)
		if err != nil {
			return err
		}

		return c.JSON(data)
	}

	data, err := s.settings.Snapshot(ctx, group)
	if err != nil {
		return err
	}

	if _, ok := data[group]; group != "" && !ok {
		data[group] = map[string]any{}
	}

	return c.JSON(data)
}

// Get returns one setting.
func (s *Service) Get(c fiber.Ctx) error {
	st, err := s.settings.Get(c.Context(), c.Params("key"))
	if err != nil {
		return err
	}

	return c.JSON(service.ViewOf(st))
}

// Put creates or overwrites one setting.
func (s *Service) Put(c fiber.Ctx) error {
	var req writeRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	v, err := value(req.Value)
	if err != nil {
		return err
	}

	st, err := s.settings.Upsert(c.Context(),
		service.Input{Key: c.Params("key"), Value: v, Group: strings.TrimSpace(req.Group)},
		meta(c, req.Description))
	if err != nil {
		return err
	}

	return c.JSON(service.ViewOf(st))
}

// Delete removes one setting.
func (s *Service) Delete(c fiber.Ctx) error {
	key := c.Params("key")

	if err := s.settings.Delete(c.Context(), key, meta(c, "")); err != nil {
		return err
	}

	return c.JSON(messageResponse{Success: true, Message: fmt.Sprintf("Setting %s deleted", key)})
}

// Batch applies a list of writes atomically.
func (s *Service) Batch(c fiber.Ctx) error {
	var entries []batchEntry
	if err := bindJSON(c, &entries); err != nil {
		return err
	}

	inputs := make([]service.Input, len(entries))
	for i, e := range entries {
		// absent values are rejected per entry by the service
		inputs[i] = service.Input{Key: e.Key, Value: e.Value, Group: strings.TrimSpace(e.Group)}
	}

	result, err := s.settings.Batch(c.Context(), inputs, meta(c, ""))
	if err != nil {
		return err
	}

	return c.JSON(batchResponse{Success: true, BatchResult: result})
}

// HistoryAll returns one page of the history of all keys.
func (s *Service) HistoryAll(c fiber.Ctx) error {
	return s.history(c, "")
}

// HistoryKey returns one page of the history of one key.
func (s *Service) HistoryKey(c fiber.Ctx) error {
	return s.history(c, c.Params("key"))
}

func (s *Service) history(c fiber.Ctx, key string) error {
	page := fiber.Query[int](c, "page", 1)
	limit := fiber.Query[int](c, "limit", 0)

	out, err := s.settings.History(c.Context(), key, page, limit)
	if err != nil {
		return err
	}

	return c.JSON(out)
}

// Rollback restores the value recorded by a history entry.
func (s *Service) Rollback(c fiber.Ctx) error {
	var req rollbackRequest

	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return err
		}
	}

	st, err := s.settings.Rollback(c.Context(), c.Params("historyId"), meta(c, req.Description))
	if err != nil {
		return err
	}

	return c.JSON(service.ViewOf(st))
}

// Export returns all settings as an export document, YAML with ?format=yaml.
func (s *Service) Export(c fiber.Ctx) error {
	doc, err := s.settings.Export(c.Context())
	if err != nil {
		return err
	}

	format := codec.FormatJSON
	if strings.EqualFold(c.Query("format"), string(codec.FormatYAML)) {
		format = codec.FormatYAML
	}

	var buf bytes.Buffer
	if err = codec.EncodeDocument(&buf, doc, format); err != nil {
		return apperr.Storage(err)
	}

	contentType := fiber.MIMEApplicationJSONCharsetUTF8
	if format == codec.FormatYAML {
		contentType = "application/yaml"
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="settings-%s.%s"`,
		time.Now().UTC().Format("20060102-150405"), format))

	log.Info().Int("settings", len(doc.Settings)).Str("actor", actor.FromCtx(c).Name).Msg("settings exported")

	return c.Send(buf.Bytes())
}

// Import applies an export document atomically. YAML bodies are accepted
// with a yaml content type.
func (s *Service) Import(c fiber.Ctx) error {
	format := codec.FormatJSON
	if strings.Contains(strings.ToLower(c.Get(fiber.HeaderContentType)), "yaml") {
		format = codec.FormatYAML
	}

	doc, err := codec.DecodeDocument(bytes.NewReader(c.Body()), format)
	if err != nil {
		return err
	}

	result, err := s.settings.Import(c.Context(), doc, meta(c, ""))
	if err != nil {
		return err
	}

	return c.JSON(batchResponse{Success: true, BatchResult: result})
}
