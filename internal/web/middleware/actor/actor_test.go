package actor_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/internal/db/models"
	"github.com/quillblog/quill/internal/web/middleware/actor"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    models.Actor
	}{
		{
			name: "anonymous",
		},
		{
			name: "all headers",
			headers: map[string]string{
				actor.HeaderID:    "42",
				actor.HeaderName:  " Jane Editor ",
				actor.HeaderEmail: "jane@example.com",
			},
			want: models.Actor{ID: "42", Name: "Jane Editor", Email: "jane@example.com"},
		},
		{
			name:    "name only",
			headers: map[string]string{actor.HeaderName: "cron"},
			want:    models.Actor{Name: "cron"},
		},
		{
			name:    "overlong header is cut",
			headers: map[string]string{actor.HeaderID: strings.Repeat("x", 300)},
			want:    models.Actor{ID: strings.Repeat("x", 64)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.Actor

			app := fiber.New()
			app.Use(actor.Middleware)
			app.Get("/", func(c fiber.Ctx) error {
				got = actor.FromCtx(c)

				return c.SendStatus(fiber.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)

			defer func() {
				_ = resp.Body.Close()
			}()

			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
			assert.Equal(t, tt.want, got)
		})
	}
}
