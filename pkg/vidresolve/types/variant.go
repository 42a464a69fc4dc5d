// Package types provides the public type definitions for the vidresolve library
package types

import (
	"context"
	"time"

	"github.com/alvarorichard/vidresolve/internal/models"
)

// Header is a single HTTP header. Header lists keep their order.
type Header struct {
	Key   string
	Value string
}

// Subtitle is an external subtitle track
type Subtitle struct {
	// URL is absolute
	URL string
	// Name is the human readable label, e.g. "English"
	Name string
	// Language is the language tag when the source provided one
	Language string
}

// Variant is one playable rendition
type Variant struct {
	// URL is the absolute media or playlist URL
	URL string
	// Label is "1080p", "2.5 Mbps", "Auto", "Default"...
	Label string
	// Headers must be sent when fetching URL
	Headers []Header
	// Subtitles attached to this rendition
	Subtitles []Subtitle
	// Height is the vertical resolution, zero when unknown
	Height int
	// Bandwidth is the advertised bitrate in bits/s, zero when unknown
	Bandwidth int
}

// HeaderMap returns the headers as a plain map
func (v *Variant) HeaderMap() map[string]string {
	m := make(map[string]string, len(v.Headers))
	for _, h := range v.Headers {
		m[h.Key] = h.Value
	}
	return m
}

// Request is a fetch the library asks the host application to perform
type Request struct {
	Method  string
	URL     string
	Headers []Header
	Body    string
}

// Fetcher performs HTTP requests for the library. Implementations must be
// safe for concurrent use and honour ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (string, error)
}

// Job is one embed page of a batch
type Job struct {
	// Locator names the locator to use; looked up by PageURL host when empty
	Locator string
	// PageURL is the embed page URL
	PageURL string
	// PageText is the page body; fetched through the Fetcher when empty
	PageText string
	// Referer is sent when the page has to be fetched
	Referer string
	// Timeout overrides the client timeout for this job
	Timeout time.Duration
}

// FromInternalVariant converts an internal variant to the public type
func FromInternalVariant(internal models.VideoVariant) *Variant {
	v := &Variant{
		URL:       internal.URL,
		Label:     internal.Label,
		Height:    internal.Height,
		Bandwidth: internal.Bandwidth,
	}
	for _, h := range internal.Headers {
		v.Headers = append(v.Headers, Header{Key: h.Key, Value: h.Value})
	}
	for _, s := range internal.Subtitles {
		v.Subtitles = append(v.Subtitles, Subtitle{URL: s.URL, Name: s.Name, Language: s.Language})
	}
	return v
}

// FromInternalVariantList converts a list of internal variants
func FromInternalVariantList(internal []models.VideoVariant) []*Variant {
	result := make([]*Variant, 0, len(internal))
	for _, v := range internal {
		result = append(result, FromInternalVariant(v))
	}
	return result
}

// FromInternalRequest converts a request the library hands to a host Fetcher
func FromInternalRequest(internal models.Request) Request {
	req := Request{Method: internal.Method, URL: internal.URL, Body: internal.Body}
	for _, h := range internal.Headers {
		req.Headers = append(req.Headers, Header{Key: h.Key, Value: h.Value})
	}
	return req
}
