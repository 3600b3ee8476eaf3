// Package headers synthesizes realistic per-request browser headers (§4.3).
package headers

import (
	"math/rand/v2"
	"net/http"
	"sync"
)

// Family identifies a browser engine, since sec-ch-ua headers only apply
// to chromium-derived browsers.
type Family string

const (
	Chromium Family = "chromium"
	Gecko    Family = "gecko"
	Webkit   Family = "webkit"
)

// Identity is one browser identity class: user-agent, matching client
// hints, platform, and engine family.
type Identity struct {
	UserAgent    string
	ClientHints  string // sec-ch-ua value, empty outside chromium
	Platform     string
	Family       Family
}

var catalog = []Identity{
	{
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ClientHints: `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
		Platform:    "Windows",
		Family:      Chromium,
	},
	{
		UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		Platform:    "macOS",
		Family:      Webkit,
	},
	{
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		Platform:    "Linux",
		Family:      Gecko,
	},
	{
		UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ClientHints: `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
		Platform:    "macOS",
		Family:      Chromium,
	},
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.8",
	"en-US,en;q=0.9,de;q=0.7",
}

// Generator samples an Identity per request, optionally sticky per host.
type Generator struct {
	sticky bool

	mutex  sync.Mutex
	byHost map[string]Identity
}

func New(sticky bool) *Generator {
	return &Generator{
		sticky: sticky,
		byHost: make(map[string]Identity),
	}
}

// Build assembles the full request header set for host.
func (g *Generator) Build(host string) http.Header {
	identity := g.identityFor(host)

	h := http.Header{}
	h.Set("User-Agent", identity.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", acceptLanguages[rand.IntN(len(acceptLanguages))])
	h.Set("Accept-Encoding", "gzip, deflate, br")

	if identity.Family == Chromium && identity.ClientHints != "" {
		h.Set("Sec-Ch-Ua", identity.ClientHints)
		h.Set("Sec-Ch-Ua-Platform", `"`+identity.Platform+`"`)
		h.Set("Sec-Ch-Ua-Mobile", "?0")
	}

	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")

	return h
}

func (g *Generator) identityFor(host string) Identity {
	if !g.sticky {
		return catalog[rand.IntN(len(catalog))]
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if identity, ok := g.byHost[host]; ok {
		return identity
	}

	identity := catalog[rand.IntN(len(catalog))]
	g.byHost[host] = identity
	return identity
}
