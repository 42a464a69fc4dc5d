// Package models contains the data structures shared by every resolution stage
package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

// SubtitleTrack references an external subtitle rendition
type SubtitleTrack struct {
	URL      string
	Name     string
	Language string
}

// VideoVariant is one playable rendition handed back to a site module.
// URL is always absolute.
type VideoVariant struct {
	URL       string
	Label     string
	Headers   Headers
	Subtitles []SubtitleTrack

	// Height and Bandwidth are zero when the source did not advertise them.
	Height    int
	Bandwidth int
}

// String returns a short human readable description
func (v VideoVariant) String() string {
	return fmt.Sprintf("%s %s", v.Label, v.URL)
}

// IsAbsoluteURL reports whether raw parses as an absolute http(s) URL with a host
func IsAbsoluteURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var heightHint = regexp.MustCompile(`(?i)(?:^|[^0-9])(2160|1440|1080|720|576|480|360|240|144)p?(?:[^0-9]|$)`)

// HeightFromURL guesses a vertical resolution from a URL like ".../720p/index.mp4"
func HeightFromURL(raw string) int {
	m := heightHint.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	return h
}

// Best picks the variant with the greatest height, breaking ties on bandwidth.
// The zero value is returned for an empty list.
func Best(variants []VideoVariant) VideoVariant {
	if len(variants) == 0 {
		return VideoVariant{}
	}

	best := variants[0]
	for _, v := range variants[1:] {
		if v.Height > best.Height || (v.Height == best.Height && v.Bandwidth > best.Bandwidth) {
			best = v
		}
	}
	return best
}
