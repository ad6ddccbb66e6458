package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"docconv/internal/config"
	"docconv/internal/domain"
	"docconv/internal/infra/chrome"
)

// A4 paper with 20mm margins, in inches.
const (
	a4WidthIn  = 8.27
	a4HeightIn = 11.69
	marginIn   = 20 / 25.4
)

// BrowserAdapter renders the document's markup with headless Chrome.
type BrowserAdapter struct {
	// Pool supplies tabs of a shared browser. When nil every render starts its own.
	Pool     *chrome.Pool
	Cfg      config.PipelineConfig
	ExecPath string
	Scratch  Scratch
}

func NewBrowserAdapter(cfg config.PipelineConfig, pool *chrome.Pool, scratch Scratch) *BrowserAdapter {
	a := &BrowserAdapter{Pool: pool, Cfg: cfg, Scratch: scratch}
	if pool == nil {
		a.ExecPath = chrome.ResolveExecPath(cfg)
	}
	return a
}

func (a *BrowserAdapter) Name() domain.StrategyName { return domain.StrategyBrowser }

// Render writes the styled markup to a temp file, prints it from a file:// URL once the
// page's network is idle, and writes the PDF to outputPath. The temp file is always
// removed.
func (a *BrowserAdapter) Render(ctx context.Context, inputPath, outputPath string) error {
	markup, err := Markup(inputPath)
	if err != nil {
		return err
	}

	htmlPath := a.Scratch.TempPath(".html")
	if err := os.WriteFile(htmlPath, []byte(markup), 0o644); err != nil {
		return fmt.Errorf("write markup: %w", err)
	}
	defer os.Remove(htmlPath)

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return err
	}
	buf, err := a.print(ctx, "file://"+filepath.ToSlash(abs))
	if err != nil {
		return fmt.Errorf("chrome: %w", err)
	}
	return os.WriteFile(outputPath, buf, 0o644)
}

func (a *BrowserAdapter) print(ctx context.Context, url string) ([]byte, error) {
	if a.Pool == nil {
		browserCtx, cancel, err := chrome.NewSession(ctx, a.Cfg, a.ExecPath)
		if err != nil {
			return nil, err
		}
		defer cancel()
		return printToPDF(browserCtx, url)
	}

	tab, err := a.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(tab.Ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	buf, err := printToPDF(runCtx, url)
	a.Pool.Release(tab, err)
	return buf, err
}

// printToPDF loads url in the tab bound to ctx, waits for the networkIdle lifecycle
// event and prints the page.
func printToPDF(ctx context.Context, url string) ([]byte, error) {
	var (
		navigating atomic.Bool
		once       sync.Once
		idle       = make(chan struct{})
	)
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*cdppage.EventLifecycleEvent); ok && e.Name == "networkIdle" && navigating.Load() {
			once.Do(func() { close(idle) })
		}
	})

	var buf []byte
	err := chromedp.Run(ctx,
		cdppage.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(context.Context) error {
			navigating.Store(true)
			return nil
		}),
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			select {
			case <-idle:
				return nil
			case <-ctx.Done():
				return fmt.Errorf("waiting for network idle: %w", ctx.Err())
			}
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = cdppage.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				WithMarginTop(marginIn).
				WithMarginBottom(marginIn).
				WithMarginLeft(marginIn).
				WithMarginRight(marginIn).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
