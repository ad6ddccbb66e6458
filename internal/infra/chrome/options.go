package chrome

import (
	"context"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"

	"docconv/internal/config"
	"docconv/internal/infra/logging"
)

// ResolveExecPath picks the browser binary: the configured path, then a browser found
// on the system, then (when enabled) a downloaded one. An empty result lets chromedp
// search on its own.
func ResolveExecPath(cfg config.PipelineConfig) string {
	if cfg.ChromePath != "" {
		return cfg.ChromePath
	}
	if p, ok := launcher.LookPath(); ok {
		return p
	}
	if !cfg.BrowserAutoDownload {
		return ""
	}
	p, err := launcher.NewBrowser().Get()
	if err != nil {
		logging.Warn("Browser download failed", "error", err)
		return ""
	}
	logging.Info("Using downloaded browser", "path", p)
	return p
}

// AllocatorOptions returns the exec allocator flags for a headless browser using
// profileDir as its user data directory.
func AllocatorOptions(cfg config.PipelineConfig, execPath, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Software rendering only; minimal containers have no GPU stack.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
		// Markup is loaded from file:// URLs.
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if cfg.ChromeNoSandbox || os.Geteuid() == 0 {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// createProfileDir makes a fresh user data directory under cfg.UserDataDir, or under
// the system temp directory when unset.
func createProfileDir(cfg config.PipelineConfig) (string, error) {
	if cfg.UserDataDir != "" {
		if err := os.MkdirAll(cfg.UserDataDir, 0o755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(cfg.UserDataDir, "chromedata-*")
}

// NewSession starts a standalone browser for a single render. The returned cancel
// stops the browser and removes its profile directory.
func NewSession(ctx context.Context, cfg config.PipelineConfig, execPath string) (context.Context, context.CancelFunc, error) {
	dir, err := createProfileDir(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create chrome profile dir: %w", err)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg, execPath, dir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		browserCancel()
		allocCancel()
		_ = os.RemoveAll(dir)
	}, nil
}
