package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/alvarorichard/vidresolve/internal/models"
)

const (
	page  = "https://embed.example.com/e/abc123?autoplay=1"
	media = "https://edge-7.cdn.example.net/hls/abc/master.m3u8"
)

func TestCompute_Defaults(t *testing.T) {
	t.Parallel()

	h := Policy{}.Compute(page, media)

	assert.Equal(t, models.Headers{
		{Key: "User-Agent", Value: DefaultUserAgent},
		{Key: "Referer", Value: page},
		{Key: "Origin", Value: "https://edge-7.cdn.example.net"},
	}, h)
}

func TestCompute_Modes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		policy      Policy
		wantReferer string
		wantOrigin  string
	}{
		{"origin referer", Policy{Referer: RefererOrigin}, "https://embed.example.com/", "https://edge-7.cdn.example.net"},
		{"no referer", Policy{Referer: RefererNone}, "", "https://edge-7.cdn.example.net"},
		{"fixed referer", Policy{Referer: "https://site.example.org/watch"}, "https://site.example.org/watch", "https://edge-7.cdn.example.net"},
		{"page origin", Policy{Origin: OriginPage}, page, "https://embed.example.com"},
		{"no origin", Policy{Origin: OriginNone}, page, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := tt.policy.Compute(page, media)
			assert.Equal(t, tt.wantReferer, h.Get("Referer"))
			assert.Equal(t, tt.wantOrigin, h.Get("Origin"))
		})
	}
}

func TestCompute_PinnedHost(t *testing.T) {
	t.Parallel()

	p := Policy{Hosts: map[string]string{
		"example.net":      "generic.example.net",
		".cdn.example.net": "pinned.cdn.example.net",
		"other.org":        "nope",
	}}

	assert.Equal(t, "pinned.cdn.example.net", p.Compute(page, media).Get("Host"))
	assert.Equal(t, "generic.example.net", p.Compute(page, "https://example.net/a.mp4").Get("Host"))
	assert.Empty(t, p.Compute(page, "https://notexample.net/a.mp4").Get("Host"))
}

func TestCompute_UserAgentAndExtras(t *testing.T) {
	t.Parallel()

	p := Policy{
		UserAgent: "none",
		Extra: models.Headers{
			{Key: "X-Requested-With", Value: "XMLHttpRequest"},
			{Key: "referer", Value: "https://override.example.com/"},
		},
	}
	h := p.Compute(page, media)

	assert.Empty(t, h.Get("User-Agent"))
	assert.Equal(t, "https://override.example.com/", h.Get("Referer"))
	assert.Equal(t, "Referer", h[0].Key)
	assert.Equal(t, "X-Requested-With", h[len(h)-1].Key)

	custom := Policy{UserAgent: "vidresolve-test"}.Compute(page, media)
	assert.Equal(t, "vidresolve-test", custom.Get("User-Agent"))
}

func TestCompute_RelativeMediaHasNoOrigin(t *testing.T) {
	t.Parallel()

	h := Policy{}.Compute(page, "/relative/path.mp4")
	assert.Empty(t, h.Get("Origin"))
	assert.Equal(t, page, h.Get("Referer"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Policy{}.Validate())
	assert.NoError(t, Policy{Referer: "https://x.example.com/", Origin: OriginPage}.Validate())
	assert.Error(t, Policy{Referer: "sometimes"}.Validate())
	assert.Error(t, Policy{Origin: "cdn"}.Validate())
}

func TestPolicyFromYAML(t *testing.T) {
	t.Parallel()

	doc := `
referer: origin
origin: none
hosts:
  cdn.example.net: edge.example.net
user_agent: custom-agent
extra:
  - key: Accept
    value: "*/*"
`
	var p Policy
	require.NoError(t, yaml.Unmarshal([]byte(doc), &p))
	require.NoError(t, p.Validate())

	h := p.Compute(page, media)
	assert.Equal(t, models.Headers{
		{Key: "User-Agent", Value: "custom-agent"},
		{Key: "Referer", Value: "https://embed.example.com/"},
		{Key: "Host", Value: "edge.example.net"},
		{Key: "Accept", Value: "*/*"},
	}, h)
}
