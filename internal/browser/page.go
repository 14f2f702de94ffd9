package browser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/leadhunter/pkg/capture"
	"github.com/jmylchreest/leadhunter/pkg/contact"
)

// mapsOrigin resolves relative detail-pane links.
var mapsOrigin = &url.URL{Scheme: "https", Host: "www.google.com"}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

// Every entry script re-queries the entry list; element handles never
// outlive a single evaluation.

func feedPresentScript(cfg capture.Config) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(cfg.FeedSelector))
}

func scrollScript(cfg capture.Config) string {
	return fmt.Sprintf(`(function () {
  const feed = document.querySelector(%s);
  if (!feed) {
    return false;
  }
  feed.scrollBy(0, feed.scrollHeight);
  return true;
})()`, jsString(cfg.FeedSelector))
}

func consentScript(cfg capture.Config) string {
	return fmt.Sprintf(`(function () {
  for (const sel of %s) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})()`, jsStrings(cfg.ConsentSelectors))
}

func entryCountScript(cfg capture.Config) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(cfg.EntrySelector))
}

// entryScript evaluates body with `entry` bound to entry index, throwing
// when the index is out of range.
func entryScript(cfg capture.Config, index int, body string) string {
	return fmt.Sprintf(`(function () {
  const entry = document.querySelectorAll(%s)[%d];
  if (!entry) {
    throw new Error('entry %d not rendered');
  }
%s
})()`, jsString(cfg.EntrySelector), index, index, body)
}

func entryNameScript(cfg capture.Config, index int) string {
	return entryScript(cfg, index, fmt.Sprintf(`  const node = entry.querySelector(%s);
  if (node && node.textContent.trim()) {
    return node.textContent.trim();
  }
  const link = entry.querySelector(%s);
  return link ? (link.getAttribute('aria-label') || '').trim() : '';`,
		jsString(cfg.NameSelector), jsString(cfg.EntryLinkSelector)))
}

func entryRatingScript(cfg capture.Config, index int) string {
	return entryScript(cfg, index, fmt.Sprintf(`  const node = entry.querySelector(%s);
  return node ? node.textContent.trim() : '';`, jsString(cfg.RatingSelector)))
}

// openEntryScript clicks from JavaScript so overlays cannot intercept it.
func openEntryScript(cfg capture.Config, index int) string {
	return entryScript(cfg, index, fmt.Sprintf(`  entry.scrollIntoView({block: 'center'});
  const target = entry.querySelector(%s) || entry;
  target.click();
  return true;`, jsString(cfg.EntryLinkSelector)))
}

// detailPane is one rendered detail view with the titles it can be
// identified by.
type detailPane struct {
	Label   string `json:"label"`
	Heading string `json:"heading"`
	HTML    string `json:"html"`
}

// detailPanesScript lists the rendered detail views, oldest first.
func detailPanesScript(cfg capture.Config) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(function (pane) {
  const h1 = pane.querySelector('h1');
  return {
    label: pane.getAttribute('aria-label') || '',
    heading: h1 ? h1.textContent.trim() : '',
    html: pane.outerHTML
  };
})`, jsString(cfg.DetailSelector))
}

// matchDetailPane returns the markup of the newest pane titled name.
func matchDetailPane(panes []detailPane, name string) (string, bool) {
	for i := len(panes) - 1; i >= 0; i-- {
		p := panes[i]
		if sameTitle(p.Label, name) || sameTitle(p.Heading, name) {
			return p.HTML, true
		}
	}
	return "", false
}

// sameTitle compares display names ignoring case and whitespace runs.
func sameTitle(a, b string) bool {
	a = strings.Join(strings.Fields(a), " ")
	b = strings.Join(strings.Fields(b), " ")
	return a != "" && strings.EqualFold(a, b)
}

// websiteFromHTML returns the outbound website in a detail pane, trying
// selectors in order. Redirect links are unwrapped. "" means the listing
// links no website.
func websiteFromHTML(html string, selectors []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse detail pane: %w", err)
	}

	for _, sel := range selectors {
		href, ok := doc.Find(sel).First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			continue
		}
		if ref, err := url.Parse(href); err == nil && !ref.IsAbs() && strings.HasPrefix(href, "/") {
			href = mapsOrigin.ResolveReference(ref).String()
		}
		if normalized, err := contact.NormalizeURL(href); err == nil {
			return normalized, nil
		}
		return href, nil
	}
	return "", nil
}

// detectChallengePage names the kind of interstitial that replaced the
// requested page, or returns "".
func detectChallengePage(title, html string) string {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	switch {
	case strings.Contains(htmlLower, "our systems have detected unusual traffic"),
		strings.Contains(htmlLower, "/sorry/index"):
		return "unusual-traffic"
	case strings.Contains(titleLower, "just a moment"),
		strings.Contains(titleLower, "attention required"),
		strings.Contains(htmlLower, "cf-challenge"),
		strings.Contains(htmlLower, "cf_chl_opt"):
		return "cloudflare"
	case strings.Contains(htmlLower, "challenges.cloudflare.com/turnstile"),
		strings.Contains(htmlLower, "cf-turnstile"):
		return "cloudflare-turnstile"
	case strings.Contains(htmlLower, "hcaptcha.com"),
		strings.Contains(htmlLower, "h-captcha"):
		return "hcaptcha"
	case strings.Contains(htmlLower, "google.com/recaptcha"),
		strings.Contains(htmlLower, "g-recaptcha"):
		return "recaptcha"
	case strings.Contains(titleLower, "access denied"),
		strings.Contains(titleLower, "bot detection"),
		strings.Contains(htmlLower, "robot or human"):
		return "anti-bot"
	}
	return ""
}
