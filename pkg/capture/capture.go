// Package capture reads business listings from a map search results feed.
//
// A capture drives one browser session: it searches, scrolls the results
// feed to load more entries, then reads each entry's name and rating and
// opens its detail view to pick up the outbound website link. Individual
// entries that fail are kept with their optional fields empty; only a
// session that cannot start or reach the feed fails the capture.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/pkg/lead"
)

// ErrInvalidLimit is returned for a non-positive limit.
var ErrInvalidLimit = errors.New("limit must be positive")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Capturer.
type Option func(*Capturer)

// WithConfig sets the page configuration.
func WithConfig(cfg Config) Option {
	return func(c *Capturer) {
		c.config = cfg.withDefaults()
	}
}

// WithFingerprint sets the identity injected into sessions.
func WithFingerprint(fp Fingerprint) Option {
	return func(c *Capturer) {
		c.fingerprint = fp.Merge(DefaultFingerprint())
	}
}

// WithSleep replaces the wait used for settle, scroll and detail delays.
func WithSleep(fn SleepFunc) Option {
	return func(c *Capturer) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// Capturer captures listings. It keeps no state between captures.
type Capturer struct {
	launcher    Launcher
	config      Config
	fingerprint Fingerprint
	sleep       SleepFunc
}

// New creates a Capturer that opens sessions with launcher.
func New(launcher Launcher, opts ...Option) *Capturer {
	c := &Capturer{
		launcher:    launcher,
		config:      DefaultConfig(),
		fingerprint: DefaultFingerprint(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the page configuration in use.
func (c *Capturer) Config() Config {
	return c.config
}

// Capture returns up to limit listings for niche in location, in feed order.
//
// A session launch failure returns an error wrapping ErrSessionLaunch and a
// feed that cannot be reached one wrapping ErrNavigation; both come with no
// listings. A feed that runs out before limit is not an error. When ctx is
// canceled between entries, the listings read so far are returned together
// with ctx.Err().
func (c *Capturer) Capture(ctx context.Context, niche, location string, limit int) (leads []lead.PartialLead, err error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	log := logger.Component("capture").With("niche", niche, "location", location, "limit", limit)
	start := time.Now()

	sess, err := c.launcher.Launch(ctx, c.config, c.fingerprint)
	if err != nil {
		log.Error("session launch failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSessionLaunch, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Debug("session close failed", "error", cerr)
		}
	}()

	searchURL := BuildSearchURL(c.config.SearchURLTemplate, niche, location)
	if err := c.reachFeed(ctx, sess, searchURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error("navigation failed", "url", searchURL, "error", err)
		if errors.Is(err, ErrNavigation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNavigation, err)
	}
	log.Debug("feed reached", "url", searchURL)

	if err := c.expandFeed(ctx, sess, limit); err != nil {
		return nil, err
	}

	leads = make([]lead.PartialLead, 0, limit)
	for index := 0; len(leads) < limit; index++ {
		if err := ctx.Err(); err != nil {
			log.Info("capture canceled", "captured", len(leads))
			return leads, err
		}

		// Re-read the count on every index: opening an entry can re-render
		// the feed.
		count, err := sess.EntryCount(ctx)
		if err != nil {
			log.Warn("entry count failed, stopping early", "index", index, "error", err)
			break
		}
		if index >= count {
			log.Debug("feed exhausted", "index", index, "count", count)
			break
		}

		p, ok := c.captureEntry(ctx, sess, index)
		if !ok {
			continue
		}
		leads = append(leads, p)
	}

	log.Info("capture complete", "captured", len(leads), "duration", time.Since(start).Round(time.Millisecond))
	return leads, nil
}

// reachFeed navigates to the search page and waits for the results feed,
// bounded by NavigationTimeout.
func (c *Capturer) reachFeed(ctx context.Context, sess Session, searchURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, c.config.NavigationTimeout)
	defer cancel()

	if err := sess.Navigate(navCtx, searchURL); err != nil {
		return err
	}
	if err := c.sleep(navCtx, c.config.SettleDelay); err != nil {
		return err
	}
	return sess.WaitFeed(navCtx)
}

// expandFeed scrolls the feed to trigger lazy loading. It stops early once
// enough entries are rendered. Scroll failures end the expansion but not the
// capture: whatever is loaded is read.
func (c *Capturer) expandFeed(ctx context.Context, sess Session, limit int) error {
	scrolls := c.config.ScrollCount(limit)
	for i := 0; i < scrolls; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if count, err := sess.EntryCount(ctx); err == nil && count >= limit {
			logger.Debug("feed has enough entries", "count", count, "scrolls", i)
			return nil
		}
		if err := sess.ScrollFeed(ctx); err != nil {
			logger.Warn("feed scroll failed", "iteration", i, "error", err)
			return nil
		}
		if err := c.sleep(ctx, c.config.ScrollDelay); err != nil {
			return err
		}
	}
	return nil
}

// captureEntry reads one entry. It returns false when the entry has no
// readable name; any later failure only degrades the entry.
func (c *Capturer) captureEntry(ctx context.Context, sess Session, index int) (lead.PartialLead, bool) {
	name, err := sess.EntryName(ctx, index)
	name = strings.TrimSpace(name)
	if err != nil || name == "" {
		logger.Debug("entry skipped, no readable name", "index", index, "error", err)
		return lead.PartialLead{}, false
	}

	p := lead.PartialLead{Name: name}

	if rating, err := sess.EntryRating(ctx, index); err == nil {
		p.Rating = strings.TrimSpace(rating)
	} else {
		logger.Debug("entry rating unreadable", "index", index, "error", err)
	}

	if err := sess.OpenEntry(ctx, index); err != nil {
		return degrade(p, index, "open entry", err), true
	}
	if err := c.sleep(ctx, c.config.DetailDelay); err != nil {
		return degrade(p, index, "detail wait", err), true
	}

	website, err := sess.DetailWebsite(ctx, name)
	if err != nil {
		return degrade(p, index, "read website", err), true
	}
	p.Website = strings.TrimSpace(website)

	logger.Debug("entry captured", "index", index, "name", p.Name, "website", p.Website)
	return p, true
}

func degrade(p lead.PartialLead, index int, step string, err error) lead.PartialLead {
	p.Website = ""
	p.Degraded = true
	p.DegradeReason = fmt.Sprintf("%s: %v", step, err)
	logger.Warn("entry degraded", "index", index, "name", p.Name, "step", step, "error", err)
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
