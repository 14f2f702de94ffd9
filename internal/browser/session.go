package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/pkg/capture"
)

type session struct {
	cfg  capture.Config
	opts Options

	ctx           context.Context // chromedp tab context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closeOnce     sync.Once
	closeErr      error
}

var _ capture.Session = (*session)(nil)

// run executes actions on the tab, bounded by ctx as well as the action
// timeout. Canceling a context derived from the tab leaves the tab open.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *session) eval(ctx context.Context, script string, out any) error {
	return s.run(ctx, chromedp.Evaluate(script, out))
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return err
	}
	s.dismissConsent(ctx)
	return nil
}

// WaitFeed polls for the results feed, clicking through consent walls and
// giving up early when a challenge page is showing.
func (s *session) WaitFeed(ctx context.Context) error {
	log := logger.Component("browser")
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var present bool
		if err := s.eval(ctx, feedPresentScript(s.cfg), &present); err == nil && present {
			return nil
		}

		if kind := s.challenge(ctx); kind != "" {
			log.Warn("challenge page detected", "type", kind)
			s.saveScreenshot("blocked")
			return fmt.Errorf("%w: %s", capture.ErrBlocked, kind)
		}
		s.dismissConsent(ctx)

		select {
		case <-ctx.Done():
			log.Warn("results feed not found", "selector", s.cfg.FeedSelector)
			s.saveScreenshot("feed-timeout")
			return fmt.Errorf("wait for %s: %w", s.cfg.FeedSelector, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *session) ScrollFeed(ctx context.Context) error {
	var scrolled bool
	if err := s.eval(ctx, scrollScript(s.cfg), &scrolled); err != nil {
		return err
	}
	if !scrolled {
		return errors.New("results feed not present")
	}
	return nil
}

func (s *session) EntryCount(ctx context.Context) (int, error) {
	var n int
	if err := s.eval(ctx, entryCountScript(s.cfg), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *session) EntryName(ctx context.Context, index int) (string, error) {
	var name string
	err := s.eval(ctx, entryNameScript(s.cfg, index), &name)
	return name, err
}

func (s *session) EntryRating(ctx context.Context, index int) (string, error) {
	var rating string
	err := s.eval(ctx, entryRatingScript(s.cfg, index), &rating)
	return rating, err
}

func (s *session) OpenEntry(ctx context.Context, index int) error {
	var clicked bool
	return s.eval(ctx, openEntryScript(s.cfg, index), &clicked)
}

// DetailWebsite waits up to DetailDelay for the detail view of name. A
// view left over from an earlier entry never counts.
func (s *session) DetailWebsite(ctx context.Context, name string) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, max(s.cfg.DetailDelay, s.cfg.PollInterval))
	defer cancel()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var panes []detailPane
		if err := s.eval(waitCtx, detailPanesScript(s.cfg), &panes); err == nil {
			if html, ok := matchDetailPane(panes, name); ok {
				return websiteFromHTML(html, s.cfg.WebsiteSelectors)
			}
		} else if ctx.Err() != nil {
			return "", ctx.Err()
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-waitCtx.Done():
			return "", fmt.Errorf("%w: no %s titled %q", capture.ErrStaleDetail, s.cfg.DetailSelector, name)
		case <-ticker.C:
		}
	}
}

// Close shuts the tab down gracefully, then the browser process.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancelBrowser()
		s.cancelAlloc()
		if errors.Is(s.closeErr, context.Canceled) {
			s.closeErr = nil
		}
	})
	return s.closeErr
}

func (s *session) dismissConsent(ctx context.Context) {
	if len(s.cfg.ConsentSelectors) == 0 {
		return
	}
	var clicked bool
	if err := s.eval(ctx, consentScript(s.cfg), &clicked); err == nil && clicked {
		logger.Debug("consent wall dismissed")
	}
}

func (s *session) challenge(ctx context.Context) string {
	var title, html string
	err := s.run(ctx,
		chromedp.Title(&title),
		chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ''`, &html),
	)
	if err != nil {
		return ""
	}
	return detectChallengePage(title, html)
}

// saveScreenshot writes a debug capture of the tab into ScreenshotDir.
func (s *session) saveScreenshot(label string) {
	if s.opts.ScreenshotDir == "" {
		return
	}
	shot := captureScreenshot(s.ctx)
	if shot == nil {
		return
	}
	if path, err := writeScreenshot(s.opts.ScreenshotDir, label, shot); err == nil {
		logger.Debug("debug screenshot saved", "path", path)
	} else {
		logger.Debug("debug screenshot not saved", "error", err)
	}
}

// captureScreenshot returns nil when the browser is in no state to render.
func captureScreenshot(ctx context.Context) []byte {
	var shot []byte
	captureCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := chromedp.Run(captureCtx, chromedp.CaptureScreenshot(&shot)); err != nil {
		return nil
	}
	return shot
}

func writeScreenshot(dir, label string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("leadhunter-%s-%d.png", label, time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
