package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/alvarorichard/vidresolve/internal/locator"
	"github.com/alvarorichard/vidresolve/internal/manifest"
	"github.com/alvarorichard/vidresolve/internal/models"
	"github.com/alvarorichard/vidresolve/internal/util"
)

// locatePayload narrows the page down to the candidate payload: selector
// first, then marker/terminator, then the capture pattern. With none of them
// configured the whole page is the payload.
func locatePayload(page string, spec *locator.Spec, c *locator.Compiled) (string, bool) {
	text := page
	p := spec.Payload

	if p.Selector != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err != nil {
			util.Debug("resolver: page is not parseable HTML", "error", err)
			return "", false
		}
		var parts []string
		doc.Find(p.Selector).Each(func(_ int, s *goquery.Selection) {
			if t := s.Text(); strings.TrimSpace(t) != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) == 0 {
			return "", false
		}
		text = strings.Join(parts, "\n")
	}

	if p.Marker != "" {
		idx := strings.Index(text, p.Marker)
		if idx < 0 {
			return "", false
		}
		text = text[idx+len(p.Marker):]
		if p.Terminator != "" {
			end := strings.Index(text, p.Terminator)
			if end < 0 {
				return "", false
			}
			text = text[:end]
		}
	}

	if c.PayloadPattern != nil {
		v, ok := capture(c.PayloadPattern, text)
		if !ok {
			return "", false
		}
		text = v
	}

	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// capture returns group 1 of the first match, or the whole match when the
// expression has no groups
func capture(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

// extract pulls a value out of text with a gjson path or a regular expression.
// The whole trimmed text is used when neither is configured.
func extract(text, jsonPath string, re *regexp.Regexp) (string, bool) {
	switch {
	case jsonPath != "":
		if !gjson.Valid(text) {
			return "", false
		}
		res := gjson.Get(text, jsonPath)
		if !res.Exists() || res.String() == "" {
			return "", false
		}
		return res.String(), true
	case re != nil:
		return capture(re, text)
	default:
		text = strings.TrimSpace(text)
		return text, text != ""
	}
}

// cleanURL undoes the escaping commonly left on URLs pulled out of JS source
func cleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"'`)
	raw = strings.ReplaceAll(raw, `\/`, "/")
	raw = strings.ReplaceAll(raw, `\u0026`, "&")
	raw = strings.ReplaceAll(raw, "&amp;", "&")
	return raw
}

// resolveURL resolves ref against the page URL, accepting only absolute http(s) results
func resolveURL(pageURL, ref string) (string, bool) {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}
	return manifest.Resolve(base, cleanURL(ref))
}

func isManifestURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}

var skippedTrackKinds = map[string]bool{
	"thumbnails": true,
	"chapters":   true,
	"metadata":   true,
}

// locateSubtitles collects tracks described by spec from text. Relative
// track URLs resolve against the page.
func locateSubtitles(text, pageURL string, s *locator.Subtitles, c *locator.Compiled) []models.SubtitleTrack {
	if s == nil {
		return nil
	}

	var tracks []models.SubtitleTrack
	seen := make(map[string]bool)
	add := func(rawURL, name, lang string) {
		u, ok := resolveURL(pageURL, rawURL)
		if !ok || seen[u] {
			return
		}
		seen[u] = true
		tracks = append(tracks, models.SubtitleTrack{URL: u, Name: name, Language: lang})
	}

	if s.JSONPath != "" && gjson.Valid(text) {
		urlField := orDefault(s.URLField, "file")
		labelField := orDefault(s.LabelField, "label")
		langField := orDefault(s.LanguageField, "language")

		gjson.Get(text, s.JSONPath).ForEach(func(_, item gjson.Result) bool {
			if item.Type == gjson.String {
				add(item.String(), "", "")
				return true
			}
			if skippedTrackKinds[strings.ToLower(item.Get("kind").String())] {
				return true
			}
			add(item.Get(urlField).String(), item.Get(labelField).String(), item.Get(langField).String())
			return true
		})
	}

	if c.SubtitlePattern != nil {
		for _, m := range c.SubtitlePattern.FindAllStringSubmatch(text, -1) {
			switch {
			case len(m) > 2:
				add(m[1], m[2], "")
			case len(m) > 1:
				add(m[1], "", "")
			default:
				add(m[0], "", "")
			}
		}
	}
	return tracks
}

// mergeSubtitles appends extra to base, skipping URLs already present
func mergeSubtitles(base, extra []models.SubtitleTrack) []models.SubtitleTrack {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]models.SubtitleTrack, 0, len(base)+len(extra))
	for _, list := range [][]models.SubtitleTrack{base, extra} {
		for _, t := range list {
			if seen[t.URL] {
				continue
			}
			seen[t.URL] = true
			out = append(out, t)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
