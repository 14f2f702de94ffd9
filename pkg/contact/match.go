package contact

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// addressPattern matches local-part@domain.tld: ASCII letters, digits and
// ._%+- in the local part, dot separated domain labels and a final label of
// at least two letters.
const addressPattern = `[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`

// Asset names such as "logo@2x.png" have the address shape.
var assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif", ".ico", ".css", ".js"}

// FindAddresses returns the distinct addresses in body, in document order.
// Candidates are compared as exact strings, so addresses differing only by
// case are kept apart. Percent-encoded mailto: links that the plain scan
// misses are appended after the in-text matches.
func FindAddresses(body []byte) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(candidate string) {
		if candidate == "" || seen[candidate] || isAsset(candidate) {
			return
		}
		seen[candidate] = true
		out = append(out, candidate)
	}

	for _, m := range addressRegex.FindAll(body, -1) {
		add(string(m))
	}

	for _, m := range mailtoAddresses(body) {
		add(m)
	}

	return out
}

// FirstAddress returns the first address in body, or "" when there is none.
func FirstAddress(body []byte) string {
	addrs := FindAddresses(body)
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}

func isAsset(addr string) bool {
	lower := strings.ToLower(addr)
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// mailtoAddresses decodes mailto: hrefs and returns those that still match
// the address pattern once decoded.
func mailtoAddresses(body []byte) []string {
	if !bytes.Contains(bytes.ToLower(body), []byte("mailto:")) {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find(`a[href]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
			return
		}
		addr := href[len("mailto:"):]
		if idx := strings.IndexByte(addr, '?'); idx != -1 {
			addr = addr[:idx]
		}
		if decoded, err := url.PathUnescape(addr); err == nil {
			addr = decoded
		}
		addr = strings.TrimSpace(addr)
		if m := addressRegex.FindString(addr); m != "" && m == addr {
			out = append(out, m)
		}
	})
	return out
}
