package settings_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/db/dbtest"
	service "github.com/quillblog/quill/internal/settings"
	"github.com/quillblog/quill/internal/web/handler"
	settingshandler "github.com/quillblog/quill/internal/web/handler/settings"
	"github.com/quillblog/quill/internal/web/middleware/actor"
)

func setupApp(t *testing.T) (*fiber.App, *service.Service) {
	t.Helper()

	svc := service.New(dbtest.New(t))

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler})
	app.Use(actor.Middleware)

	require.NoError(t, new(settingshandler.Service).Init(app, &config.Config{}, handler.Deps{Settings: svc}))

	return app, svc
}

type response struct {
	status int
	body   []byte
	header http.Header
}

func (r response) decode(t *testing.T, out any) {
	t.Helper()

	require.NoError(t, json.Unmarshal(r.body, out), "body: %s", r.body)
}

func call(t *testing.T, app *fiber.App, method, target, body string, headers ...string) response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return response{status: resp.StatusCode, body: raw, header: resp.Header}
}

func TestWriteAndRead(t *testing.T) {
	app, _ := setupApp(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantValue  any
	}{
		{
			name:       "put creates",
			method:     http.MethodPut,
			target:     "/settings/general.siteName",
			body:       `{"value":"My Blog","group":"general"}`,
			wantStatus: fiber.StatusOK,
			wantValue:  "My Blog",
		},
		{
			name:       "post updates",
			method:     http.MethodPost,
			target:     "/settings/general.siteName",
			body:       `{"value":"My Better Blog","description":"rename"}`,
			wantStatus: fiber.StatusOK,
			wantValue:  "My Better Blog",
		},
		{
			name:       "numbers stay numbers",
			method:     http.MethodPut,
			target:     "/settings/posts.perPage",
			body:       `{"value":10}`,
			wantStatus: fiber.StatusOK,
			wantValue:  float64(10),
		},
		{
			name:       "explicit null",
			method:     http.MethodPut,
			target:     "/settings/general.tagline",
			body:       `{"value":null}`,
			wantStatus: fiber.StatusOK,
			wantValue:  nil,
		},
		{
			name:       "missing value",
			method:     http.MethodPut,
			target:     "/settings/general.siteName",
			body:       `{"group":"general"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "invalid key",
			method:     http.MethodPut,
			target:     "/settings/general..siteName",
			body:       `{"value":"x"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "invalid group",
			method:     http.MethodPut,
			target:     "/settings/general.siteName",
			body:       `{"value":"x","group":"Not A Group"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "reserved key",
			method:     http.MethodPut,
			target:     "/settings/export",
			body:       `{"value":"x","group":"general"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "key too long",
			method:     http.MethodPut,
			target:     "/settings/general." + strings.Repeat("x", 200),
			body:       `{"value":"x"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "snapshot path taken",
			method:     http.MethodPut,
			target:     "/settings/siteName",
			body:       `{"value":"x","group":"general"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "malformed body",
			method:     http.MethodPut,
			target:     "/settings/general.siteName",
			body:       `{"value":`,
			wantStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, app, tt.method, tt.target, tt.body)
			require.Equal(t, tt.wantStatus, resp.status, "body: %s", resp.body)

			if tt.wantStatus != fiber.StatusOK {
				var errResp handler.ErrorResponse
				resp.decode(t, &errResp)
				assert.False(t, errResp.Success)
				assert.NotEmpty(t, errResp.Message)

				return
			}

			var view service.View
			resp.decode(t, &view)
			assert.Equal(t, tt.wantValue, view.Value)
		})
	}

	resp := call(t, app, http.MethodGet, "/settings/general.siteName", "")
	require.Equal(t, fiber.StatusOK, resp.status)

	var view service.View
	resp.decode(t, &view)
	assert.Equal(t, "My Better Blog", view.Value)
	assert.Equal(t, "general", view.Group)
	assert.Equal(t, "string", view.Kind)
}

func TestGetMissing(t *testing.T) {
	app, _ := setupApp(t)

	resp := call(t, app, http.MethodGet, "/settings/general.nothing", "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	var errResp handler.ErrorResponse
	resp.decode(t, &errResp)
	assert.False(t, errResp.Success)
}

func TestListFormats(t *testing.T) {
	app, _ := setupApp(t)

	resp := call(t, app, http.MethodPost, "/settings/batch", `[
		{"key":"general.siteName","value":"My Blog","group":"general"},
		{"key":"appearance.theme","value":"dark","group":"appearance"},
		{"key":"posts.perPage","value":10,"group":"content"}
	]`)
	require.Equal(t, fiber.StatusOK, resp.status, "body: %s", resp.body)

	tests := []struct {
		name   string
		target string
		want   any
	}{
		{
			name:   "grouped",
			target: "/settings",
			want: map[string]any{
				"general":    map[string]any{"siteName": "My Blog"},
				"appearance": map[string]any{"theme": "dark"},
				"content":    map[string]any{"posts": map[string]any{"perPage": float64(10)}},
			},
		},
		{
			name:   "one group",
			target: "/settings?group=appearance",
			want:   map[string]any{"appearance": map[string]any{"theme": "dark"}},
		},
		{
			name:   "empty group",
			target: "/settings?group=seo",
			want:   map[string]any{"seo": map[string]any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, app, http.MethodGet, tt.target, "")
			require.Equal(t, fiber.StatusOK, resp.status)

			var got map[string]any
			resp.decode(t, &got)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("flat", func(t *testing.T) {
		resp := call(t, app, http.MethodGet, "/settings?format=flat&group=general", "")
		require.Equal(t, fiber.StatusOK, resp.status)

		var got []service.View
		resp.decode(t, &got)
		require.Len(t, got, 1)
		assert.Equal(t, "general.siteName", got[0].Key)
		assert.Equal(t, "My Blog", got[0].Value)
	})
}

func TestDeleteTwice(t *testing.T) {
	app, _ := setupApp(t)

	resp := call(t, app, http.MethodPut, "/settings/general.siteName", `{"value":"My Blog"}`)
	require.Equal(t, fiber.StatusOK, resp.status)

	resp = call(t, app, http.MethodDelete, "/settings/general.siteName", "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.JSONEq(t, `{"success":true,"message":"Setting general.siteName deleted"}`, string(resp.body))

	resp = call(t, app, http.MethodDelete, "/settings/general.siteName", "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	resp = call(t, app, http.MethodGet, "/settings/general.siteName", "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func TestBatchRejected(t *testing.T) {
	app, _ := setupApp(t)

	resp := call(t, app, http.MethodPost, "/settings/batch", `[
		{"key":"general.siteName","value":"My Blog","group":"general"},
		{"key":"general.tagline","value":"Notes","group":"general"},
		{"key":"bad key","value":"x","group":"general"},
		{"key":"appearance.theme","value":"dark","group":"appearance"},
		{"key":"posts.perPage","group":"content"}
	]`)
	require.Equal(t, fiber.StatusBadRequest, resp.status, "body: %s", resp.body)

	var errResp handler.ErrorResponse
	resp.decode(t, &errResp)
	require.Len(t, errResp.Failures, 2)
	assert.Equal(t, "bad key", errResp.Failures[0].Key)
	assert.Equal(t, 2, errResp.Failures[0].Index)
	assert.Equal(t, "posts.perPage", errResp.Failures[1].Key)
	assert.Contains(t, errResp.Message, "nothing applied")

	resp = call(t, app, http.MethodGet, "/settings", "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.JSONEq(t, `{}`, string(resp.body))

	resp = call(t, app, http.MethodPost, "/settings/batch", `[]`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
}

func TestHistoryAndRollback(t *testing.T) {
	app, _ := setupApp(t)

	for _, theme := range []string{"light", "dark", "solarized"} {
		resp := call(t, app, http.MethodPut, "/settings/appearance.theme", `{"value":"`+theme+`"}`,
			actor.HeaderID, "7", actor.HeaderName, "Jane")
		require.Equal(t, fiber.StatusOK, resp.status)
	}

	resp := call(t, app, http.MethodGet, "/settings/history/appearance.theme?limit=2", "")
	require.Equal(t, fiber.StatusOK, resp.status)

	var page service.HistoryPage
	resp.decode(t, &page)
	require.Len(t, page.History, 2)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, int64(2), page.Pagination.Pages)
	assert.Equal(t, "solarized", page.History[0].NewValue)
	require.NotNil(t, page.History[0].ChangedBy)
	assert.Equal(t, "Jane", page.History[0].ChangedBy.Name)

	resp = call(t, app, http.MethodGet, "/settings/history/appearance.theme?page=2&limit=2", "")
	require.Equal(t, fiber.StatusOK, resp.status)
	resp.decode(t, &page)
	require.Len(t, page.History, 1)

	first := page.History[0]
	assert.Equal(t, "light", first.NewValue)

	resp = call(t, app, http.MethodPost, "/settings/rollback/"+first.ID, `{"description":"back to basics"}`)
	require.Equal(t, fiber.StatusOK, resp.status, "body: %s", resp.body)

	var view service.View
	resp.decode(t, &view)
	assert.Equal(t, "light", view.Value)

	resp = call(t, app, http.MethodGet, "/settings/history/all", "")
	require.Equal(t, fiber.StatusOK, resp.status)
	resp.decode(t, &page)
	require.Len(t, page.History, 4)

	latest := page.History[0]
	assert.Equal(t, "rollback", string(latest.Action))
	require.NotNil(t, latest.RestoredFrom)
	assert.Equal(t, first.ID, *latest.RestoredFrom)
	assert.Equal(t, "Rolled back to entry "+first.ID+": back to basics", latest.Description)

	resp = call(t, app, http.MethodPost, "/settings/rollback/01ARZ3NDEKTSV4RRFFQ69G5FAV", "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func TestExportImport(t *testing.T) {
	source, _ := setupApp(t)

	resp := call(t, source, http.MethodPost, "/settings/batch", `[
		{"key":"general.siteName","value":"My Blog","group":"general"},
		{"key":"posts.perPage","value":10,"group":"content"}
	]`)
	require.Equal(t, fiber.StatusOK, resp.status)

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			exported := call(t, source, http.MethodGet, "/settings/export?format="+format, "")
			require.Equal(t, fiber.StatusOK, exported.status)
			assert.Contains(t, exported.header.Get(fiber.HeaderContentDisposition), "."+format)

			target, svc := setupApp(t)

			req := httptest.NewRequest(http.MethodPost, "/settings/import", strings.NewReader(string(exported.body)))
			req.Header.Set(fiber.HeaderContentType, exported.header.Get(fiber.HeaderContentType))

			imported, err := target.Test(req)
			require.NoError(t, err)

			defer func() {
				_ = imported.Body.Close()
			}()

			require.Equal(t, fiber.StatusOK, imported.StatusCode)

			snapshot, err := svc.Snapshot(t.Context(), "")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{
				"general": map[string]any{"siteName": "My Blog"},
				"content": map[string]any{"posts": map[string]any{"perPage": float64(10)}},
			}, snapshot)
		})
	}

	resp = call(t, source, http.MethodPost, "/settings/import", `{"version":99,"settings":[]}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
}
