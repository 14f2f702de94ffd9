package browser

import (
	"encoding/json"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/leadhunter/pkg/capture"
)

// stealthScript hides the usual headless giveaways. The __fp object is
// prepended by StealthScript with the session's fingerprint.
const stealthScript = `
(function(fp) {
    'use strict';

    Object.defineProperty(navigator, 'webdriver', {
        get: () => undefined,
        configurable: true
    });
    delete Object.getPrototypeOf(navigator).webdriver;

    Object.defineProperty(navigator, 'languages', {
        get: () => Object.freeze(fp.languages.slice()),
        configurable: true
    });
    if (fp.languages.length > 0) {
        Object.defineProperty(navigator, 'language', {
            get: () => fp.languages[0],
            configurable: true
        });
    }
    Object.defineProperty(navigator, 'platform', {
        get: () => fp.platform,
        configurable: true
    });
    Object.defineProperty(navigator, 'vendor', {
        get: () => fp.vendor,
        configurable: true
    });

    // Headless Chrome ships an empty plugin list.
    const mockPlugins = [
        { name: 'Chrome PDF Plugin', description: 'Portable Document Format', filename: 'internal-pdf-viewer' },
        { name: 'Chrome PDF Viewer', description: '', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
        { name: 'Native Client', description: '', filename: 'internal-nacl-plugin' }
    ];
    const pluginArray = Object.create(PluginArray.prototype);
    mockPlugins.forEach((p, i) => {
        const plugin = Object.create(Plugin.prototype);
        Object.defineProperties(plugin, {
            name: { value: p.name, enumerable: true },
            description: { value: p.description, enumerable: true },
            filename: { value: p.filename, enumerable: true },
            length: { value: 1, enumerable: true }
        });
        pluginArray[i] = plugin;
        pluginArray[p.name] = plugin;
    });
    Object.defineProperty(pluginArray, 'length', { value: mockPlugins.length });
    Object.defineProperty(pluginArray, 'item', { value: (i) => pluginArray[i] || null });
    Object.defineProperty(pluginArray, 'namedItem', { value: (n) => pluginArray[n] || null });
    Object.defineProperty(navigator, 'plugins', {
        get: () => pluginArray,
        configurable: true
    });

    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', {
            value: {},
            writable: true,
            enumerable: true,
            configurable: false
        });
    }
    if (!window.chrome.runtime) {
        window.chrome.runtime = {
            get id() { return undefined; },
            connect: function() {},
            sendMessage: function() {}
        };
    }

    const originalQuery = Permissions.prototype.query;
    Permissions.prototype.query = function(parameters) {
        if (parameters.name === 'notifications') {
            return Promise.resolve({ state: Notification.permission });
        }
        return originalQuery.call(this, parameters);
    };

    if (navigator.hardwareConcurrency === 0) {
        Object.defineProperty(navigator, 'hardwareConcurrency', {
            get: () => 4,
            configurable: true
        });
    }
})(__fp);
`

// StealthScript returns the evasion script bound to fp.
func StealthScript(fp capture.Fingerprint) string {
	langs := fp.Languages
	if langs == nil {
		langs = []string{}
	}
	prelude, _ := json.Marshal(struct {
		Languages []string `json:"languages"`
		Platform  string   `json:"platform"`
		Vendor    string   `json:"vendor"`
	}{langs, fp.Platform, fp.Vendor})

	var b strings.Builder
	b.WriteString("var __fp = ")
	b.Write(prelude)
	b.WriteString(";\n")
	b.WriteString(stealthScript)
	return b.String()
}

// allocatorOptions returns the Chrome flags for a capture session.
func allocatorOptions(opts Options, fp capture.Fingerprint) []chromedp.ExecAllocatorOption {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),

		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-default-apps", true),

		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),

		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(fp.UserAgent),
	)
	if len(fp.Languages) > 0 {
		flags = append(flags,
			chromedp.Flag("lang", strings.Join(fp.Languages, ",")),
			chromedp.Flag("accept-lang", fp.AcceptLanguage()),
		)
	}

	chromePath := opts.ChromePath
	if chromePath == "" {
		chromePath = FindChromePath()
	}
	if chromePath != "" {
		flags = append(flags, chromedp.ExecPath(chromePath))
	}
	return flags
}
