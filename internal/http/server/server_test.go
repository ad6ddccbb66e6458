package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docconv/internal/artifacts"
	"docconv/internal/config"
	"docconv/internal/convert"
	"docconv/internal/domain"
	"docconv/internal/tokens"
)

type failingConverter struct{}

func (failingConverter) Convert(context.Context, string, string) domain.ConversionResult {
	return domain.Failed("all engines down")
}

func newTestApp(t *testing.T, store *tokens.Cache) *fiber.App {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.BaseDir = t.TempDir()
	st := artifacts.New(cfg.Storage)
	require.NoError(t, st.EnsureDirs())
	t.Cleanup(st.Close)

	return New(Deps{
		Config: cfg,
		Store:  st,
		Runner: convert.NewService(st, failingConverter{}, nil),
		Tokens: store,
	})
}

func jsonBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestNew_RoutesAndJSON404(t *testing.T) {
	app := newTestApp(t, nil)

	for _, path := range []string{"/health", "/chrome/stats", "/livez"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	body := jsonBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Endpoint not found", body["error"])
}

func TestNew_ConversionFailureIsJSON500(t *testing.T) {
	app := newTestApp(t, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="a.txt"`}
	h["Content-Type"] = []string{"text/plain"}
	pw, err := w.CreatePart(h)
	require.NoError(t, err)
	_, _ = pw.Write([]byte("hello"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/convert-docx-to-pdf", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := jsonBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "all engines down", body["error"])
}

func TestNew_NoFileIs400(t *testing.T) {
	app := newTestApp(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/convert-docx-to-pdf", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file uploaded", jsonBody(t, resp)["error"])
}

func TestNew_ScopedKeyForbidden(t *testing.T) {
	store := tokens.NewCache()
	store.Replace(map[string]tokens.Entry{"dl": {Scope: tokens.Scope{"download": true}}})
	app := newTestApp(t, store)

	req := httptest.NewRequest(http.MethodPost, "/convert-batch", nil)
	req.Header.Set("X-API-Key", "dl")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("disk on fire") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/fiber", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "short and stout", jsonBody(t, resp)["error"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/plain", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := jsonBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "disk on fire", body["error"])
}
