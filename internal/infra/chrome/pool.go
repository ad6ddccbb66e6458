package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"docconv/internal/config"
	"docconv/internal/infra/logging"
)

var errPoolClosed = errors.New("chrome pool closed")

// Tab is one browser tab handed out by the pool.
type Tab struct {
	Ctx    context.Context
	cancel context.CancelFunc
}

// Pool shares one headless browser between renders and bounds the number of open tabs.
type Pool struct {
	mu sync.Mutex

	cfg        config.PipelineConfig
	execPath   string
	sem        chan struct{}
	profileDir string

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
	closed        bool

	restarts    int
	lastRestart time.Time
}

// Stats is the pool snapshot served on the stats endpoint.
type Stats struct {
	Enabled      bool      `json:"enabled"`
	Capacity     int       `json:"capacity"`
	Idle         int       `json:"idle"`
	InUse        int       `json:"in_use"`
	PoolSizeConf int       `json:"pool_size_conf"`
	ProfileDir   string    `json:"profile_dir"`
	TimeoutSecs  int       `json:"timeout_secs"`
	Restarts     int       `json:"restarts"`
	LastRestart  time.Time `json:"last_restart"`
}

// NewPool prepares a pool of cfg.ChromePoolSize tabs. The browser itself is started
// on first Acquire.
func NewPool(cfg config.PipelineConfig) (*Pool, error) {
	if cfg.ChromePoolSize <= 0 {
		return nil, errors.New("chrome pool disabled (chrome_pool_size <= 0)")
	}

	p := &Pool{
		cfg:      cfg,
		execPath: ResolveExecPath(cfg),
		sem:      make(chan struct{}, cfg.ChromePoolSize),
	}
	for i := 0; i < cfg.ChromePoolSize; i++ {
		p.sem <- struct{}{}
	}
	if err := p.newBrowser(); err != nil {
		return nil, err
	}
	logging.Info("Chrome pool ready", "size", cfg.ChromePoolSize, "profile_dir", p.profileDir)
	return p, nil
}

// newBrowser replaces the browser context. Callers hold p.mu or own p exclusively.
func (p *Pool) newBrowser() error {
	dir, err := createProfileDir(p.cfg)
	if err != nil {
		return fmt.Errorf("cannot create chrome profile dir: %w", err)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(p.cfg, p.execPath, dir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	p.profileDir = dir
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	p.started = false
	return nil
}

func (p *Pool) stopBrowser() {
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	if p.profileDir != "" {
		_ = os.RemoveAll(p.profileDir)
	}
	p.browserCancel, p.allocCancel, p.browserCtx = nil, nil, nil
}

// ensureStarted launches the browser once so that tabs open inside it.
func (p *Pool) ensureStarted() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPoolClosed
	}
	if p.started {
		return nil
	}
	if err := chromedp.Run(p.browserCtx); err != nil {
		return fmt.Errorf("start chrome: %w", err)
	}
	p.started = true
	return nil
}

// Acquire waits for a free slot and opens a tab. Release must be called with the tab.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, errPoolClosed
	}

	select {
	case <-p.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := p.ensureStarted(); err != nil {
		p.sem <- struct{}{}
		return nil, err
	}

	p.mu.Lock()
	tabCtx, cancel := chromedp.NewContext(p.browserCtx)
	p.mu.Unlock()
	return &Tab{Ctx: tabCtx, cancel: cancel}, nil
}

// Release closes the tab and frees its slot. A render error that left the browser
// dead triggers a restart.
func (p *Pool) Release(tab *Tab, renderErr error) {
	if tab != nil && tab.cancel != nil {
		tab.cancel()
	}

	if renderErr != nil && IsSessionInterrupted(renderErr) && p.browserDead() {
		logging.Warn("Chrome session lost, restarting browser", "error", renderErr)
		if err := p.Restart(); err != nil {
			logging.Error("Chrome restart failed", "error", err)
		}
	}

	select {
	case p.sem <- struct{}{}:
	default:
	}
}

func (p *Pool) browserDead() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.browserCtx == nil || p.browserCtx.Err() != nil
}

// Restart replaces the browser and its profile directory.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPoolClosed
	}
	p.stopBrowser()
	if err := p.newBrowser(); err != nil {
		return err
	}
	p.restarts++
	p.lastRestart = time.Now()
	return nil
}

// Close stops the browser and removes its profile. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopBrowser()
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{
		PoolSizeConf: p.cfg.ChromePoolSize,
		TimeoutSecs:  int(p.cfg.StageTimeout / time.Second),
		Restarts:     p.restarts,
		LastRestart:  p.lastRestart,
	}
	if p.closed {
		return st
	}
	st.Enabled = true
	st.Capacity = cap(p.sem)
	st.Idle = len(p.sem)
	st.InUse = st.Capacity - st.Idle
	st.ProfileDir = p.profileDir
	return st
}

// IsSessionInterrupted reports errors that mean the tab or browser went away mid-render.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "websocket", "connection reset", "broken pipe", "session closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
