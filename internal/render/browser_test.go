package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docconv/internal/config"
	"docconv/internal/domain"
	"docconv/internal/infra/chrome"
)

func chromeConfig(t *testing.T) config.PipelineConfig {
	t.Helper()
	path := os.Getenv("CHROME_BIN")
	if path == "" {
		var ok bool
		if path, ok = launcher.LookPath(); !ok {
			t.Skip("no Chrome/Chromium available")
		}
	}
	return config.PipelineConfig{
		ChromePath:      path,
		ChromeNoSandbox: true,
		UserDataDir:     t.TempDir(),
		StageTimeout:    30 * time.Second,
	}
}

func TestBrowserAdapter_UnsupportedMarkupSkipsBrowser(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()
	in := writeFile(t, dir, "sheet.xlsx", "PK")

	a := &BrowserAdapter{Scratch: dirScratch(scratch)}
	err := a.Render(context.Background(), in, filepath.Join(dir, "out.pdf"))
	assert.True(t, errors.Is(err, domain.ErrUnsupportedMarkup), "got %v", err)
	assert.Equal(t, 0, countEntries(t, scratch))
}

func TestBrowserAdapter_FailedBrowserRemovesMarkupFile(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()
	in := writeFile(t, dir, "a.txt", "hello")

	a := &BrowserAdapter{
		Cfg:      config.PipelineConfig{UserDataDir: t.TempDir()},
		ExecPath: "/bin/false",
		Scratch:  dirScratch(scratch),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.Render(ctx, in, filepath.Join(dir, "out.pdf"))
	require.Error(t, err)
	assert.Equal(t, 0, countEntries(t, scratch), "temp markup must be removed on failure")
	_, statErr := os.Stat(filepath.Join(dir, "out.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBrowserAdapter_RendersWithStandaloneBrowser(t *testing.T) {
	cfg := chromeConfig(t)
	dir := t.TempDir()
	scratch := t.TempDir()
	in := writeDOCX(t, dir, "doc.docx", `<w:p><w:r><w:t>Rendered by Chrome</w:t></w:r></w:p>`)
	out := filepath.Join(dir, "out.pdf")

	a := NewBrowserAdapter(cfg, nil, dirScratch(scratch))
	ctx, cancel := context.WithTimeout(context.Background(), cfg.StageTimeout)
	defer cancel()
	require.NoError(t, a.Render(ctx, in, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, 0, countEntries(t, scratch))
}

func TestBrowserAdapter_RendersWithPool(t *testing.T) {
	cfg := chromeConfig(t)
	cfg.ChromePoolSize = 1
	pool, err := chrome.NewPool(cfg)
	require.NoError(t, err)
	defer pool.Close()

	dir := t.TempDir()
	a := NewBrowserAdapter(cfg, pool, dirScratch(t.TempDir()))
	for i, name := range []string{"one.txt", "two.txt"} {
		in := writeFile(t, dir, name, "page "+name)
		out := filepath.Join(dir, name+".pdf")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StageTimeout)
		require.NoError(t, a.Render(ctx, in, out), "render %d", i)
		cancel()
	}
	assert.Equal(t, 1, pool.Stats().Idle, "tab slot must be returned")
}

func TestBrowserAdapter_Name(t *testing.T) {
	assert.Equal(t, domain.StrategyBrowser, (&BrowserAdapter{}).Name())
}
