// Package contact discovers a contact address on a business website.
//
// The extractor scans the raw markup of the homepage for address-shaped
// substrings instead of parsing its structure: addresses show up in mailto
// links, footers and inline scripts alike.
package contact

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/pkg/lead"
)

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var addressRegex = regexp.MustCompile(addressPattern)

// ErrFetch wraps every failure that makes a website unreachable.
var ErrFetch = errors.New("website fetch failed")

// Config holds configuration for the extractor.
type Config struct {
	UserAgent   string
	Timeout     time.Duration // Hard per-request timeout
	MaxBodySize int           // Bytes read from the response, 0 for the default
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   defaultUserAgent,
		Timeout:     8 * time.Second,
		MaxBodySize: 2 * 1024 * 1024,
	}
}

// Extractor fetches a homepage and pattern-matches a contact address.
// It holds no state between calls and is safe for concurrent use.
type Extractor struct {
	config Config
}

// New creates a new extractor.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}
	return &Extractor{config: cfg}
}

// Extract returns the contact outcome for website. An empty website yields
// lead.ContactNoWebsite without any network activity. Extract never panics
// and never returns an error: fetch failures are reported as
// lead.ContactUnreachable.
func (e *Extractor) Extract(ctx context.Context, website string) (result lead.ContactResult) {
	log := logger.Component("contact")

	if strings.TrimSpace(website) == "" {
		return lead.NoWebsite()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn("recovered from fetch panic", "url", website, "panic", r)
			result = lead.Unreachable(fmt.Errorf("%w: %v", ErrFetch, r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return lead.Unreachable(fmt.Errorf("%w: %w", ErrFetch, err))
	}

	target, err := NormalizeURL(website)
	if err != nil {
		log.Debug("website rejected", "url", website, "error", err)
		return lead.Unreachable(fmt.Errorf("%w: %w", ErrFetch, err))
	}

	body, err := e.fetch(ctx, target)
	if err != nil {
		log.Debug("website unreachable", "url", target, "error", err)
		return lead.Unreachable(err)
	}

	addr := FirstAddress(body)
	if addr == "" {
		log.Debug("no address on page", "url", target, "body_size", len(body))
		return lead.NotFound()
	}

	log.Debug("address found", "url", target, "address", addr)
	return lead.Found(addr)
}

// fetch retrieves the page body with a fresh collector. Error status pages
// are returned like any other page: their markup may still carry an address.
func (e *Extractor) fetch(ctx context.Context, target string) ([]byte, error) {
	c := colly.NewCollector(
		colly.UserAgent(e.config.UserAgent),
		colly.MaxBodySize(e.config.MaxBodySize),
		colly.ParseHTTPErrorResponse(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(e.config.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var body []byte
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		logger.Debug("contact fetch response received",
			"url", target,
			"status", r.StatusCode,
			"body_size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, fetchErr)
	}
	return body, nil
}
