// Package browser drives Chrome through chromedp to back capture sessions.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/pkg/capture"
)

// Options configures the Chrome instances started by a Launcher.
type Options struct {
	Headless      bool
	ChromePath    string        // Empty searches common locations
	Timeout       time.Duration // Cap for single browser actions
	ScreenshotDir string        // Debug screenshots on navigation failure; empty disables
}

// DefaultOptions returns headless options with a 20s action timeout.
func DefaultOptions() Options {
	return Options{
		Headless: true,
		Timeout:  20 * time.Second,
	}
}

// Launcher starts one Chrome process per capture session.
type Launcher struct {
	opts Options
}

var _ capture.Launcher = (*Launcher)(nil)

// NewLauncher creates a Launcher.
func NewLauncher(opts Options) *Launcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Launcher{opts: opts}
}

// Launch starts Chrome, applies the fingerprint and returns a ready session.
func (l *Launcher) Launch(ctx context.Context, cfg capture.Config, fp capture.Fingerprint) (capture.Session, error) {
	cfg = cfg.Normalize()
	fp = fp.Merge(capture.DefaultFingerprint())
	log := logger.Component("browser")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(l.opts, fp)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	s := &session{
		cfg:           cfg,
		opts:          l.opts,
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}

	// The first Run starts the browser and ties its lifetime to browserCtx,
	// so it cannot run under the caller's deadline directly.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	launchCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	select {
	case err := <-started:
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-launchCtx.Done():
		_ = s.Close()
		return nil, fmt.Errorf("start chrome: %w", launchCtx.Err())
	}

	override := emulation.SetUserAgentOverride(fp.UserAgent).
		WithPlatform(fp.Platform).
		WithAcceptLanguage(fp.AcceptLanguage())
	err := s.run(launchCtx,
		override,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(StealthScript(fp)).Do(ctx)
			return err
		}),
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("apply fingerprint: %w", err)
	}

	log.Debug("browser session started",
		"headless", l.opts.Headless,
		"platform", fp.Platform,
		"languages", fp.Languages)
	return s, nil
}
