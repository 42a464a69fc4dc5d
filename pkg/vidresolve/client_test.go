package vidresolve_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/vidresolve/pkg/vidresolve"
	"github.com/alvarorichard/vidresolve/pkg/vidresolve/types"
)

const catalog = `
locators:
  - name: aeshost
    hosts: [aes.example.com]
    payload:
      marker: 'var enc = "'
      terminator: '"'
    encryption:
      password:
        kind: literal
        value: hunter2
    media:
      include_master: true
  - name: plainhost
    hosts: [plain.example.org]
    media:
      pattern: 'src="([^"]+)"'
    headers:
      referer: none
      extra:
        - {key: X-Requested-With, value: XMLHttpRequest}
`

// "https://cdn.example.com/hls/abc/master.m3u8" under password "hunter2"
const opensslEmbedded = "U2FsdGVkX1+h38AxdtCDYTWjWsYDh8cpn9BR5TxNsdp7HtkBJPf9XzvJcgCfiCl27tlMO59DV3aHHvZCFdiSZA=="

const master = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
360.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720
720.m3u8
`

type mockFetcher struct {
	mu       sync.Mutex
	requests []types.Request
	bodies   map[string]string
}

func (m *mockFetcher) Fetch(_ context.Context, req types.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if body, ok := m.bodies[req.URL]; ok {
		return body, nil
	}
	return "", errors.New("not found")
}

func newClient(t *testing.T, f types.Fetcher) *vidresolve.Client {
	t.Helper()
	client := vidresolve.NewClient(vidresolve.WithFetcher(f), vidresolve.WithMaxWorkers(2))
	require.NoError(t, client.LoadCatalog([]byte(catalog)))
	return client
}

func TestClient_Resolve(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{bodies: map[string]string{
		"https://cdn.example.com/hls/abc/master.m3u8": master,
	}}
	client := newClient(t, fetcher)

	variants, err := client.Resolve(context.Background(), "https://aes.example.com/e/1", `<script>var enc = "`+opensslEmbedded+`";</script>`)
	require.NoError(t, err)
	require.Len(t, variants, 3)
	assert.Equal(t, "Auto", variants[0].Label)
	assert.Equal(t, "https://cdn.example.com/hls/abc/720.m3u8", variants[2].URL)
	assert.Equal(t, "https://aes.example.com/e/1", variants[2].HeaderMap()["Referer"])

	require.Len(t, fetcher.requests, 1)
	assert.Equal(t, "GET", fetcher.requests[0].Method)

	best := vidresolve.Best(variants)
	require.NotNil(t, best)
	assert.Equal(t, "720p", best.Label)
}

func TestClient_ResolveWithNamedLocator(t *testing.T) {
	t.Parallel()

	client := newClient(t, nil)

	variants, err := client.ResolveWith(context.Background(), "plainhost", "https://mirror.example.net/e/2", `<video src="https://cdn.example.org/v/a_480p.mp4">`)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "480p", variants[0].Label)
	h := variants[0].HeaderMap()
	assert.NotContains(t, h, "Referer")
	assert.Equal(t, "XMLHttpRequest", h["X-Requested-With"])

	_, err = client.ResolveWith(context.Background(), "missing", "https://plain.example.org/e/2", "")
	assert.ErrorIs(t, err, vidresolve.ErrNoLocator)
}

func TestClient_NoLocator(t *testing.T) {
	t.Parallel()

	client := newClient(t, nil)
	_, err := client.Resolve(context.Background(), "https://unknown.example.com/e/1", "<html></html>")
	assert.ErrorIs(t, err, vidresolve.ErrNoLocator)

	name, ok := client.LocatorFor("https://www.plain.example.org/e/1")
	assert.True(t, ok)
	assert.Equal(t, "plainhost", name)
	assert.ElementsMatch(t, []string{"aeshost", "plainhost"}, client.Locators())
}

func TestClient_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	client := newClient(t, nil)
	variants, err := client.Resolve(context.Background(), "https://plain.example.org/e/1", "<html>removed</html>")
	require.NoError(t, err)
	assert.Empty(t, variants)
}

func TestClient_ResolveAll(t *testing.T) {
	t.Parallel()

	client := newClient(t, nil)
	jobs := []types.Job{
		{PageURL: "https://plain.example.org/e/1", PageText: `<video src="https://cdn.example.org/v/one.mp4">`},
		{PageURL: "https://unknown.example.com/e/1", PageText: `<video src="https://cdn.example.org/v/x.mp4">`},
		{PageURL: "https://aes.example.com/e/3", PageText: `var enc = "` + opensslEmbedded + `";`},
		{Locator: "plainhost", PageURL: "https://elsewhere.example.net/e/4", PageText: `<video src="https://cdn.example.org/v/four.mp4">`},
	}

	variants := client.ResolveAll(context.Background(), jobs)
	require.Len(t, variants, 3)
	assert.Equal(t, "https://cdn.example.org/v/one.mp4", variants[0].URL)
	assert.Equal(t, "https://cdn.example.com/hls/abc/master.m3u8", variants[1].URL)
	assert.Equal(t, "Auto", variants[1].Label)
	assert.Equal(t, "https://cdn.example.org/v/four.mp4", variants[2].URL)
}

func TestClient_LoadCatalogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "locators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))

	client := vidresolve.NewClient()
	require.NoError(t, client.LoadCatalogFile(path))
	assert.Len(t, client.Locators(), 2)

	// the same names cannot be loaded twice
	assert.Error(t, client.LoadCatalogFile(path))
	assert.Error(t, client.LoadCatalog([]byte("locators: [")))
}

func TestBest_Empty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, vidresolve.Best(nil))
}
