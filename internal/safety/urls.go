// Package safety enforces the trust boundaries around upstream data:
// which URLs may be fetched, how much a compressed artifact may expand,
// and where cache files may land on disk.
//
// DESIGN: Every artifact crosses three checkpoints:
//   - Hosts.CheckURL: scheme and host vetting before a request leaves
//   - Guard:          expansion caps applied while bytes stream in
//   - ResolveUnder:   cache paths confined to the cache root
package safety

import (
	"fmt"
	"net/url"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
)

// Upstream hosts trusted out of the box.
var defaultHosts = []string{
	"data.gdeltproject.org",
	"api.gdeltproject.org",
}

// Hosts is the allow-set of fetchable hosts. Hosts registered from an
// http:// base keep plain http (local mirrors, test servers);
// everything else is upgraded to https.
type Hosts struct {
	allowed   mapset.Set[string]
	plaintext mapset.Set[string]
}

// NewHosts builds the allow-set from the canonical hosts plus the hosts
// of the given base URLs.
func NewHosts(baseURLs ...string) (*Hosts, error) {
	h := &Hosts{
		allowed:   mapset.NewSet[string](),
		plaintext: mapset.NewSet[string](),
	}
	for _, host := range defaultHosts {
		h.allowed.Add(host)
	}
	for _, raw := range baseURLs {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("base url %q: %w", raw, err)
		}
		host := strings.ToLower(u.Hostname())
		if host == "" {
			return nil, fmt.Errorf("base url %q: missing host", raw)
		}
		h.allowed.Add(host)
		if u.Scheme == "http" {
			h.plaintext.Add(host)
		}
	}
	return h, nil
}

// CheckURL vets a URL before any request is issued and returns the
// canonical form to fetch. Plain http is upgraded to https unless the
// host was registered from an http base. URLs from untrusted hosts,
// with userinfo, or with exotic schemes are rejected.
func (h *Hosts) CheckURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", gdelterr.ErrUnsafeURL, raw, err)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: %q: userinfo not allowed", gdelterr.ErrUnsafeURL, raw)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q: missing host", gdelterr.ErrUnsafeURL, raw)
	}
	if !h.allowed.Contains(host) {
		return "", fmt.Errorf("%w: host %q not allowed", gdelterr.ErrUnsafeURL, host)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !h.plaintext.Contains(host) {
			u.Scheme = "https"
		}
	default:
		return "", fmt.Errorf("%w: %q: scheme %q not allowed", gdelterr.ErrUnsafeURL, raw, u.Scheme)
	}
	return u.String(), nil
}
