// Package browser owns the single headless Chrome instance shared by the
// sources that only render listings client side.
//
// The browser is launched on the first Do and reused afterwards. Every Do
// runs on one worker goroutine in its own tab, so chromedp never sees two
// operations at once. Close releases the browser; a later Do relaunches it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/rsilvagit/deptos/internal/httpclient"
)

// ErrTimeout is returned when an operation outlives Options.OpTimeout.
var ErrTimeout = errors.New("browser: operation timed out")

const (
	viewportWidth  = 1920
	viewportHeight = 1080
)

// Options configures the shared browser.
type Options struct {
	Headless     bool
	ExecPath     string
	OpTimeout    time.Duration
	CloseTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.OpTimeout == 0 {
		o.OpTimeout = 5 * time.Minute
	}
	if o.CloseTimeout == 0 {
		o.CloseTimeout = 10 * time.Second
	}
	return o
}

type (
	launchFunc  func(opts Options) (context.Context, context.CancelFunc, error)
	openTabFunc func(browserCtx context.Context) (context.Context, context.CancelFunc, error)
)

type job struct {
	ctx     context.Context
	fn      func(tabCtx context.Context) error
	closing bool
	result  chan error
}

// Manager serializes browser work onto a single goroutine.
type Manager struct {
	opts    Options
	launch  launchFunc
	openTab openTabFunc

	jobs       chan job
	workerOnce sync.Once

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	launches      int
}

// New returns a Manager. Nothing is started until the first Do.
func New(opts Options) *Manager {
	return &Manager{
		opts:    opts.withDefaults(),
		launch:  launchChrome,
		openTab: openChromeTab,
		jobs:    make(chan job),
	}
}

// Do runs fn in a fresh tab of the shared browser and waits for it.
// The tab is closed when fn returns, fails or times out.
func (m *Manager) Do(ctx context.Context, fn func(tabCtx context.Context) error) error {
	m.workerOnce.Do(func() { go m.work() })

	opCtx, cancel := context.WithTimeout(ctx, m.opts.OpTimeout)
	defer cancel()

	j := job{ctx: opCtx, fn: fn, result: make(chan error, 1)}
	select {
	case m.jobs <- j:
	case <-opCtx.Done():
		return m.abandoned(ctx)
	}

	select {
	case err := <-j.result:
		if err != nil && ctx.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return m.abandoned(ctx)
		}
		return err
	case <-opCtx.Done():
		return m.abandoned(ctx)
	}
}

func (m *Manager) abandoned(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w after %s", ErrTimeout, m.opts.OpTimeout)
}

// Close shuts the browser down. It is a no-op when the browser is not
// running. If the worker is stuck the browser is killed after CloseTimeout.
func (m *Manager) Close() error {
	if !m.Running() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.CloseTimeout)
	defer cancel()

	j := job{ctx: ctx, closing: true, result: make(chan error, 1)}
	select {
	case m.jobs <- j:
		select {
		case err := <-j.result:
			return err
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}

	slog.Warn("browser did not close in time, killing it", "timeout", m.opts.CloseTimeout)
	m.shutdown()
	return fmt.Errorf("%w: close after %s", ErrTimeout, m.opts.CloseTimeout)
}

// Running reports whether a browser process is up.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browserCtx != nil && m.browserCtx.Err() == nil
}

// Launches returns how many times the browser has been started.
func (m *Manager) Launches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.launches
}

func (m *Manager) work() {
	for j := range m.jobs {
		j.result <- m.handle(j)
	}
}

func (m *Manager) handle(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("browser: operation panicked: %v", r)
		}
	}()

	if j.closing {
		m.shutdown()
		return nil
	}
	if err := j.ctx.Err(); err != nil {
		return err
	}

	browserCtx, err := m.ensureBrowser()
	if err != nil {
		return err
	}

	tabCtx, cancelTab, err := m.openTab(browserCtx)
	if err != nil {
		return fmt.Errorf("browser: opening tab: %w", err)
	}
	defer cancelTab()

	stop := context.AfterFunc(j.ctx, cancelTab)
	defer stop()

	return j.fn(tabCtx)
}

func (m *Manager) ensureBrowser() (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browserCtx != nil && m.browserCtx.Err() == nil {
		return m.browserCtx, nil
	}
	if m.cancelBrowser != nil {
		m.cancelBrowser()
	}

	browserCtx, cancel, err := m.launch(m.opts)
	if err != nil {
		m.browserCtx, m.cancelBrowser = nil, nil
		return nil, err
	}
	m.browserCtx, m.cancelBrowser = browserCtx, cancel
	m.launches++
	slog.Info("browser launched", "headless", m.opts.Headless, "launches", m.launches)
	return browserCtx, nil
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelBrowser != nil {
		m.cancelBrowser()
		slog.Info("browser closed")
	}
	m.browserCtx, m.cancelBrowser = nil, nil
}

func launchChrome(opts Options) (context.Context, context.CancelFunc, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(httpclient.UserAgent()),
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// An empty Run starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, nil, fmt.Errorf("browser: launching chrome: %w", err)
	}

	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}, nil
}

func openChromeTab(browserCtx context.Context) (context.Context, context.CancelFunc, error) {
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	err := chromedp.Run(tabCtx,
		network.ClearBrowserCookies(),
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
	)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return tabCtx, cancel, nil
}
