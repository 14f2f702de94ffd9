package capture

import (
	"net/url"
	"strings"
	"time"
)

// Config gathers every assumption about the results page: URL template,
// selectors and timing. The upstream layout changes without notice; when it
// does, this is the only place that needs editing.
type Config struct {
	// SearchURLTemplate is the search URL with a {query} placeholder.
	SearchURLTemplate string `mapstructure:"search_url_template" yaml:"search_url_template"`

	FeedSelector      string   `mapstructure:"feed_selector" yaml:"feed_selector"`             // Scrollable results container
	EntrySelector     string   `mapstructure:"entry_selector" yaml:"entry_selector"`           // One result card
	EntryLinkSelector string   `mapstructure:"entry_link_selector" yaml:"entry_link_selector"` // Clickable anchor inside a card
	NameSelector      string   `mapstructure:"name_selector" yaml:"name_selector"`             // Display name inside a card
	RatingSelector    string   `mapstructure:"rating_selector" yaml:"rating_selector"`         // Star rating inside a card
	DetailSelector    string   `mapstructure:"detail_selector" yaml:"detail_selector"`         // Detail pane opened by a click
	WebsiteSelectors  []string `mapstructure:"website_selectors" yaml:"website_selectors"`     // Outbound website link, tried in order
	ConsentSelectors  []string `mapstructure:"consent_selectors" yaml:"consent_selectors"`     // Cookie wall buttons

	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`             // Wait after navigation
	ScrollDelay       time.Duration `mapstructure:"scroll_delay" yaml:"scroll_delay"`             // Wait after each scroll
	DetailDelay       time.Duration `mapstructure:"detail_delay" yaml:"detail_delay"`             // Wait after opening an entry; also caps the wait for its detail view
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"` // Cap for reaching the feed
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`           // Feed and detail view polling interval

	MinScrolls       int `mapstructure:"min_scrolls" yaml:"min_scrolls"`
	MaxScrolls       int `mapstructure:"max_scrolls" yaml:"max_scrolls"`
	EntriesPerScroll int `mapstructure:"entries_per_scroll" yaml:"entries_per_scroll"` // Entries one scroll is expected to load
}

// DefaultConfig returns the selectors and timings for the map search feed.
func DefaultConfig() Config {
	return Config{
		SearchURLTemplate: "https://www.google.com/maps/search/{query}",
		FeedSelector:      `div[role="feed"]`,
		EntrySelector:     `div[role="feed"] div[role="article"]`,
		EntryLinkSelector: `a.hfpxzc`,
		NameSelector:      `.qBF1Pd`,
		RatingSelector:    `.MW4etd`,
		DetailSelector:    `div[role="main"]`,
		WebsiteSelectors: []string{
			`a[data-item-id="authority"]`,
			`a[data-item-id="website"]`,
			`a[aria-label^="Website"]`,
			`a[href^="https://www.google.com/url?"][aria-label*="Website"]`,
		},
		ConsentSelectors: []string{
			`button[aria-label="Accept all"]`,
			`button[aria-label="I agree"]`,
			`form[action*="consent"] button`,
		},
		SettleDelay:       5 * time.Second,
		ScrollDelay:       2 * time.Second,
		DetailDelay:       2 * time.Second,
		NavigationTimeout: 45 * time.Second,
		PollInterval:      500 * time.Millisecond,
		MinScrolls:        2,
		MaxScrolls:        15,
		EntriesPerScroll:  5,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SearchURLTemplate == "" {
		c.SearchURLTemplate = def.SearchURLTemplate
	}
	if c.FeedSelector == "" {
		c.FeedSelector = def.FeedSelector
	}
	if c.EntrySelector == "" {
		c.EntrySelector = def.EntrySelector
	}
	if c.EntryLinkSelector == "" {
		c.EntryLinkSelector = def.EntryLinkSelector
	}
	if c.NameSelector == "" {
		c.NameSelector = def.NameSelector
	}
	if c.RatingSelector == "" {
		c.RatingSelector = def.RatingSelector
	}
	if c.DetailSelector == "" {
		c.DetailSelector = def.DetailSelector
	}
	if len(c.WebsiteSelectors) == 0 {
		c.WebsiteSelectors = def.WebsiteSelectors
	}
	if len(c.ConsentSelectors) == 0 {
		c.ConsentSelectors = def.ConsentSelectors
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = def.NavigationTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.MinScrolls <= 0 {
		c.MinScrolls = def.MinScrolls
	}
	if c.MaxScrolls <= 0 {
		c.MaxScrolls = def.MaxScrolls
	}
	if c.MaxScrolls < c.MinScrolls {
		c.MaxScrolls = c.MinScrolls
	}
	if c.EntriesPerScroll <= 0 {
		c.EntriesPerScroll = def.EntriesPerScroll
	}
	return c
}

// Normalize returns c with zero fields filled from DefaultConfig.
func (c Config) Normalize() Config {
	return c.withDefaults()
}

// ScrollCount returns how many scroll actions to issue for limit requested
// entries. It grows with limit and stays within [MinScrolls, MaxScrolls].
func (c Config) ScrollCount(limit int) int {
	c = c.withDefaults()
	n := (limit+c.EntriesPerScroll-1)/c.EntriesPerScroll + 1
	if n < c.MinScrolls {
		n = c.MinScrolls
	}
	if n > c.MaxScrolls {
		n = c.MaxScrolls
	}
	return n
}

// BuildSearchURL substitutes "niche in location" into the template.
func BuildSearchURL(template, niche, location string) string {
	query := strings.TrimSpace(niche) + " in " + strings.TrimSpace(location)
	return strings.ReplaceAll(template, "{query}", url.QueryEscape(query))
}
