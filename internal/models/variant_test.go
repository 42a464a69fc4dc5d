package models

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAbsoluteURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{"https://cdn.example.com/a.m3u8", true},
		{"http://cdn.example.com", true},
		{"//cdn.example.com/a.m3u8", false},
		{"/hls/a.m3u8", false},
		{"a.m3u8", false},
		{"", false},
		{"ftp://cdn.example.com/a", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsAbsoluteURL(tt.raw), tt.raw)
	}
}

func TestHeightFromURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 720, HeightFromURL("https://cdn.example.com/720p/index.mp4"))
	assert.Equal(t, 1080, HeightFromURL("https://cdn.example.com/video_1080.mp4"))
	assert.Equal(t, 0, HeightFromURL("https://cdn.example.com/video.mp4"))
	assert.Equal(t, 0, HeightFromURL("https://cdn.example.com/id/17201/v.mp4"))
}

func TestBest(t *testing.T) {
	t.Parallel()

	assert.Equal(t, VideoVariant{}, Best(nil))

	variants := []VideoVariant{
		{URL: "https://a/480", Height: 480, Bandwidth: 900},
		{URL: "https://a/1080-low", Height: 1080, Bandwidth: 4000},
		{URL: "https://a/1080-high", Height: 1080, Bandwidth: 6000},
		{URL: "https://a/720", Height: 720, Bandwidth: 9000},
	}
	assert.Equal(t, "https://a/1080-high", Best(variants).URL)
}

func TestHeaders(t *testing.T) {
	t.Parallel()

	var h Headers
	h = h.Set("Referer", "https://page.example/")
	h = h.Set("Origin", "https://cdn.example")
	h = h.Set("referer", "https://other.example/")
	h = h.Set("X-Empty", "")

	require.Len(t, h, 2)
	assert.Equal(t, "Referer", h[0].Key)
	assert.Equal(t, "https://other.example/", h.Get("REFERER"))
	assert.Equal(t, map[string]string{
		"Referer": "https://other.example/",
		"Origin":  "https://cdn.example",
	}, h.Map())

	h = h.Set("Host", "pinned.example")
	req, err := http.NewRequest(http.MethodGet, "https://cdn.example/a.m3u8", nil)
	require.NoError(t, err)
	h.Apply(req)
	assert.Equal(t, "pinned.example", req.Host)
	assert.Equal(t, "https://cdn.example", req.Header.Get("Origin"))
	assert.Empty(t, req.Header.Get("Host"))
}

func TestHeadersSetDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := Headers{{Key: "Referer", Value: "a"}}
	changed := base.Set("Referer", "b")
	assert.Equal(t, "a", base.Get("Referer"))
	assert.Equal(t, "b", changed.Get("Referer"))
}
