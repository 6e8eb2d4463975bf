// Package challenge recognizes CAPTCHA interstitials and bot-protection walls
// that search engines and CDNs serve instead of real content.
package challenge

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
)

// Page is the slice of a fetched response that detectors look at.
type Page struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether p is a challenge and, if so, who served it.
type Detector func(p *Page) (source string, detected bool)

// DefaultDetectors returns the search-engine and CDN detectors, engines first.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogle,
		detectYandex,
		detectDuckDuckGo,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Detect runs p through detectors and returns the first match.
func Detect(p *Page, detectors []Detector) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, d := range detectors {
		if src, ok := d(p); ok {
			return src, true
		}
	}
	return "", false
}

func blocked(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

func containsAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

// Interstitial reports whether rawURL is a page an engine redirects to
// instead of answering: Google's /sorry/ and Yandex's captcha pages.
func Interstitial(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if isGoogleHost(u.Hostname()) && strings.HasPrefix(u.Path, "/sorry/") {
		return true
	}
	return strings.HasPrefix(u.Path, "/showcaptcha") || strings.HasPrefix(u.Path, "/checkcaptcha")
}

func isGoogleHost(host string) bool {
	host = strings.ToLower(host)
	return host == "google.com" || strings.HasSuffix(host, ".google.com") ||
		strings.HasPrefix(host, "google.") || strings.Contains(host, ".google.")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Body markers only count on a blocking status. Result pages echo the query
// back, so a 200 that mentions a captcha is an answer, not a wall.

func detectGoogle(p *Page) (string, bool) {
	if isGoogleHost(hostOf(p.URL)) && Interstitial(p.URL) {
		return "Google", true
	}
	if !blocked(p.StatusCode) {
		return "", false
	}
	if bytes.Contains(p.Body, []byte("Our systems have detected unusual traffic")) {
		return "Google", true
	}
	if isGoogleHost(hostOf(p.URL)) && bytes.Contains(p.Body, []byte("/recaptcha/")) {
		return "Google", true
	}
	return "", false
}

func detectYandex(p *Page) (string, bool) {
	if Interstitial(p.URL) && !isGoogleHost(hostOf(p.URL)) {
		return "Yandex", true
	}
	if blocked(p.StatusCode) && containsAny(p.Body, `class="CheckboxCaptcha`, "smart-captcha") {
		return "Yandex", true
	}
	return "", false
}

// detectDuckDuckGo catches the anomaly modal, which DuckDuckGo serves with 202.
func detectDuckDuckGo(p *Page) (string, bool) {
	if !blocked(p.StatusCode) && p.StatusCode != http.StatusAccepted {
		return "", false
	}
	if containsAny(p.Body, "anomaly-modal", `id="challenge-form"`) {
		return "DuckDuckGo", true
	}
	return "", false
}

func detectCloudflare(p *Page) (string, bool) {
	if !blocked(p.StatusCode) {
		return "", false
	}
	if strings.Contains(strings.ToLower(p.Header.Get("Server")), "cloudflare") {
		return "Cloudflare", true
	}
	if containsAny(p.Body, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return "Cloudflare", true
	}
	return "", false
}

func detectAkamai(p *Page) (string, bool) {
	if p.StatusCode != http.StatusForbidden {
		return "", false
	}
	if strings.Contains(strings.ToLower(p.Header.Get("Server")), "akamai") {
		return "Akamai", true
	}
	if bytes.Contains(p.Body, []byte("Reference #")) && bytes.Contains(p.Body, []byte("Access Denied")) {
		return "Akamai", true
	}
	return "", false
}

func detectDataDome(p *Page) (string, bool) {
	if p.StatusCode != http.StatusForbidden {
		return "", false
	}
	if strings.Contains(strings.ToLower(p.Header.Get("Server")), "datadome") ||
		p.Header.Get("X-DataDome") != "" || p.Header.Get("X-DataDome-Response") != "" {
		return "DataDome", true
	}
	if containsAny(p.Body, "geo.captcha-delivery.com", "datadome") {
		return "DataDome", true
	}
	return "", false
}

func detectPerimeterX(p *Page) (string, bool) {
	if p.StatusCode != http.StatusForbidden {
		return "", false
	}
	if p.Header.Get("X-Px-Captcha") != "" {
		return "PerimeterX", true
	}
	if containsAny(p.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return "PerimeterX", true
	}
	return "", false
}
