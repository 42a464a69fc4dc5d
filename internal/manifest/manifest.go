// Package manifest turns an HLS multivariant playlist into ordered quality variants
package manifest

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/alvarorichard/vidresolve/internal/models"
	"github.com/alvarorichard/vidresolve/internal/util"
)

// LabelUnknown is used when a variant advertises neither resolution nor bandwidth
const LabelUnknown = "Unknown"

// Variant is one #EXT-X-STREAM-INF entry
type Variant struct {
	Label string
	URI   string
	// Index is the position of the entry among the stream-info tags of the playlist
	Index     int
	Bandwidth int
	Height    int
	Name      string
}

// Result is what Parse found. An empty Variants slice is a normal outcome.
type Result struct {
	Variants  []Variant
	Subtitles []models.SubtitleTrack
	// IsMedia is set when the text is a media playlist rather than a master one
	IsMedia bool
}

// Empty reports whether no variant was found
func (r Result) Empty() bool {
	return len(r.Variants) == 0
}

// Parse decodes playlist and resolves every URI against base. Variants keep
// their source order; entries whose URI cannot be made absolute are dropped.
// Parse does not fetch anything, including nested playlists.
func Parse(playlist string, base *url.URL) Result {
	if base == nil {
		panic("manifest: Parse called with a nil base URL")
	}

	text := normalize(playlist)
	if text == "" {
		return Result{}
	}

	p, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil {
		util.Debug("manifest: decode failed", "error", err)
		return Result{IsMedia: strings.Contains(text, "#EXTINF")}
	}

	switch listType {
	case m3u8.MEDIA:
		return Result{IsMedia: true}
	case m3u8.MASTER:
		master, ok := p.(*m3u8.MasterPlaylist)
		if !ok {
			return Result{}
		}
		return parseMaster(master, text, base)
	}
	return Result{}
}

func parseMaster(master *m3u8.MasterPlaylist, text string, base *url.URL) Result {
	res := Result{Subtitles: subtitleTracks(text, base)}

	index := 0
	for _, v := range master.Variants {
		if v == nil || v.Iframe {
			continue
		}
		pos := index
		index++

		uri, ok := Resolve(base, v.URI)
		if !ok {
			util.Debug("manifest: dropping variant with unresolvable URI", "uri", v.URI)
			continue
		}

		height := heightOf(v.Resolution)
		res.Variants = append(res.Variants, Variant{
			Label:     Label(height, int(v.Bandwidth)),
			URI:       uri,
			Index:     pos,
			Bandwidth: int(v.Bandwidth),
			Height:    height,
			Name:      v.Name,
		})
	}
	return res
}

// normalize unifies line endings and drops blank lines
func normalize(playlist string) string {
	text := strings.ReplaceAll(playlist, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

var attributeRe = regexp.MustCompile(`([A-Za-z0-9-]+)=("[^"]*"|[^,]*)`)

// attributes splits a tag's attribute list, unquoting quoted values
func attributes(list string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attributeRe.FindAllStringSubmatch(list, -1) {
		attrs[strings.ToUpper(m[1])] = strings.Trim(strings.TrimSpace(m[2]), `"`)
	}
	return attrs
}

// subtitleTracks collects every #EXT-X-MEDIA subtitle rendition in source
// order. The decoder only keeps renditions whose group a variant references,
// so the tags are read from the text directly.
func subtitleTracks(text string, base *url.URL) []models.SubtitleTrack {
	var tracks []models.SubtitleTrack
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		list, ok := strings.CutPrefix(line, "#EXT-X-MEDIA:")
		if !ok {
			continue
		}
		attrs := attributes(list)
		if !strings.EqualFold(attrs["TYPE"], "SUBTITLES") || attrs["URI"] == "" {
			continue
		}
		uri, ok := Resolve(base, attrs["URI"])
		if !ok || seen[uri] {
			continue
		}
		seen[uri] = true

		name := attrs["NAME"]
		if name == "" {
			name = attrs["LANGUAGE"]
		}
		tracks = append(tracks, models.SubtitleTrack{URL: uri, Name: name, Language: attrs["LANGUAGE"]})
	}
	return tracks
}

// Resolve resolves ref against base and reports whether the result is an
// absolute http(s) URL
func Resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(u).String()
	if !models.IsAbsoluteURL(resolved) {
		return "", false
	}
	return resolved, true
}

func heightOf(resolution string) int {
	_, h, ok := strings.Cut(strings.ToLower(resolution), "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// Label formats the quality label: "720p" from the height, otherwise the
// bandwidth ("2.5 Mbps", "800 Kbps"), otherwise "Unknown"
func Label(height, bandwidth int) string {
	switch {
	case height > 0:
		return fmt.Sprintf("%dp", height)
	case bandwidth >= 1_000_000:
		return fmt.Sprintf("%.1f Mbps", float64(bandwidth)/1_000_000)
	case bandwidth > 0:
		return fmt.Sprintf("%.0f Kbps", float64(bandwidth)/1_000)
	default:
		return LabelUnknown
	}
}
