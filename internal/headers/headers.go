// Package headers decides which request headers a media URL needs to play
package headers

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/vidresolve/internal/models"
)

// DefaultUserAgent is sent unless a policy overrides it
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Referer modes
const (
	RefererPage   = "page"
	RefererOrigin = "origin"
	RefererNone   = "none"
)

// Origin modes
const (
	OriginMedia = "media"
	OriginPage  = "page"
	OriginNone  = "none"
)

// Policy describes the headers a host's CDN expects. The zero value sends
// the page URL as Referer and the media origin as Origin.
type Policy struct {
	// Referer is "page" (default), "origin", "none" or an absolute URL sent as is
	Referer string `yaml:"referer,omitempty"`
	// Origin is "media" (default), "page" or "none"
	Origin string `yaml:"origin,omitempty"`
	// Hosts pins a Host header by media host suffix
	Hosts map[string]string `yaml:"hosts,omitempty"`
	// UserAgent overrides DefaultUserAgent; "none" omits the header
	UserAgent string         `yaml:"user_agent,omitempty"`
	Extra     models.Headers `yaml:"extra,omitempty"`
}

// Validate checks the modes
func (p Policy) Validate() error {
	switch p.Referer {
	case "", RefererPage, RefererOrigin, RefererNone:
	default:
		if !models.IsAbsoluteURL(p.Referer) {
			return errors.Errorf("referer must be page, origin, none or an absolute URL, got %q", p.Referer)
		}
	}
	switch p.Origin {
	case "", OriginMedia, OriginPage, OriginNone:
	default:
		return errors.Errorf("origin must be media, page or none, got %q", p.Origin)
	}
	return nil
}

// Compute returns the headers for fetching mediaURL found on pageURL.
// The order is User-Agent, Referer, Origin, Host, then the extra headers.
func (p Policy) Compute(pageURL, mediaURL string) models.Headers {
	var h models.Headers

	switch p.UserAgent {
	case "":
		h = h.Set("User-Agent", DefaultUserAgent)
	case "none":
	default:
		h = h.Set("User-Agent", p.UserAgent)
	}

	switch p.Referer {
	case "", RefererPage:
		h = h.Set("Referer", pageURL)
	case RefererOrigin:
		if o := Origin(pageURL); o != "" {
			h = h.Set("Referer", o+"/")
		}
	case RefererNone:
	default:
		h = h.Set("Referer", p.Referer)
	}

	switch p.Origin {
	case "", OriginMedia:
		h = h.Set("Origin", Origin(mediaURL))
	case OriginPage:
		h = h.Set("Origin", Origin(pageURL))
	}

	if host := p.pinnedHost(mediaURL); host != "" {
		h = h.Set("Host", host)
	}

	for _, kv := range p.Extra {
		h = h.Set(kv.Key, kv.Value)
	}
	return h
}

// pinnedHost returns the Host value for the longest suffix matching the media host
func (p Policy) pinnedHost(mediaURL string) string {
	if len(p.Hosts) == 0 {
		return ""
	}
	u, err := url.Parse(mediaURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	best, value := -1, ""
	for suffix, v := range p.Hosts {
		s := strings.ToLower(strings.TrimPrefix(suffix, "."))
		if host != s && !strings.HasSuffix(host, "."+s) {
			continue
		}
		if len(s) > best {
			best, value = len(s), v
		}
	}
	return value
}

// Origin returns scheme://host for an absolute URL, or "" otherwise
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
