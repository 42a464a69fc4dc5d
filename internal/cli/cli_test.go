package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// "https://cdn.example.com/hls/abc/master.m3u8" under password "hunter2"
const opensslEmbedded = "U2FsdGVkX1+h38AxdtCDYTWjWsYDh8cpn9BR5TxNsdp7HtkBJPf9XzvJcgCfiCl27tlMO59DV3aHHvZCFdiSZA=="

const testCatalog = `
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
  - name: direct
    hosts: [direct.example.org]
    media:
      pattern: 'src="([^"]+)"'
`

func run(t *testing.T, stdin string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, _, code := run(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "vidresolve v")

	out, _, code = run(t, "", "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "vidresolve v")
}

func TestDecrypt(t *testing.T) {
	out, _, code := run(t, opensslEmbedded+"\n", "decrypt", "--password", "hunter2")
	require.Equal(t, 0, code)
	assert.Equal(t, "https://cdn.example.com/hls/abc/master.m3u8\n", out)

	_, errOut, code := run(t, opensslEmbedded, "decrypt", "--password", "wrong")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "padding")

	_, _, code = run(t, opensslEmbedded, "decrypt")
	assert.Equal(t, 1, code)
}

func TestEncryptDecryptDetached(t *testing.T) {
	dir := t.TempDir()

	out, _, code := run(t, "hello world\n", "encrypt", "-p", "secret", "--salt", "3132333435363738", "--detached")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "salt: 3132333435363738", lines[0])

	path := writeFile(t, dir, "ct.txt", lines[1])
	out, _, code = run(t, "", "decrypt", path, "-p", "secret", "--salt", "3132333435363738")
	require.Equal(t, 0, code)
	assert.Equal(t, "hello world\n", out)

	out, _, code = run(t, "short key", "encrypt", "-p", "k", "--key-size", "16")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "U2FsdGVkX1"))

	_, _, code = run(t, "x", "encrypt", "-p", "k", "--salt", "zz")
	assert.Equal(t, 1, code)
}

func TestPackUnpack(t *testing.T) {
	source := `var player=jwplayer("v");player.setup({file:"https://cdn.example.com/v.m3u8"});`

	packed, _, code := run(t, source+"\n", "pack", "--radix", "36")
	require.Equal(t, 0, code)
	assert.Contains(t, packed, "eval(function(p,a,c,k,e,d)")

	out, _, code := run(t, packed, "unpack")
	require.Equal(t, 0, code)
	assert.Equal(t, source+"\n", out)

	_, errOut, code := run(t, "console.log(1)", "unpack")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "signature not found")

	_, _, code = run(t, source, "pack", "--radix", "99")
	assert.Equal(t, 1, code)
}

func TestManifest(t *testing.T) {
	playlist := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\n360.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1500000\nhd.m3u8\n"

	out, _, code := run(t, playlist, "manifest", "--base", "https://cdn.example.com/hls/master.m3u8")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "360p")
	assert.Contains(t, out, "https://cdn.example.com/hls/360.m3u8")
	assert.Contains(t, out, "1.5 Mbps")

	_, _, code = run(t, playlist, "manifest", "--base", "relative/path")
	assert.Equal(t, 1, code)

	_, _, code = run(t, "<html></html>", "manifest", "--base", "https://cdn.example.com/")
	assert.Equal(t, 1, code)
}

func TestResolveOffline(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "locators.yaml", testCatalog)
	page := writeFile(t, dir, "page.html", `<script>var enc = "`+opensslEmbedded+`";</script>`)

	out, errOut, code := run(t, "", "--catalog", catalog, "resolve", "https://aes.example.com/e/1", "--file", page, "--offline", "--headers", "--trace")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Auto")
	assert.Contains(t, out, "https://cdn.example.com/hls/abc/master.m3u8")
	assert.Contains(t, out, "Referer: https://aes.example.com/e/1")
	assert.Contains(t, errOut, "aeshost: RAW -> UNPACKED -> DECODED -> DECRYPTED -> MANIFEST_LOCATED -> VARIANTS_RESOLVED")

	out, _, code = run(t, `<video src="https://cdn.example.org/v/a_720p.mp4"></video>`,
		"-c", catalog, "resolve", "https://direct.example.org/e/2", "-f", "-", "--offline", "--json")
	require.Equal(t, 0, code)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "720p", decoded[0]["label"])
	assert.Equal(t, "https://cdn.example.org/v/a_720p.mp4", decoded[0]["url"])
}

func TestResolveErrors(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "locators.yaml", testCatalog)
	page := writeFile(t, dir, "page.html", "<html>gone</html>")

	_, errOut, code := run(t, "", "--catalog", "", "resolve", "https://aes.example.com/e/1", "--offline", "-f", page)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no locator catalog")

	_, errOut, code = run(t, "", "-c", catalog, "resolve", "https://unknown.example.com/e/1", "--offline", "-f", page)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no locator for")

	_, errOut, code = run(t, "", "-c", catalog, "resolve", "https://aes.example.com/e/1", "--offline", "-f", page)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no variants found")

	_, errOut, code = run(t, "", "-c", catalog, "resolve", "https://aes.example.com/e/1", "--offline")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "--offline needs --file")
}

func TestLocators(t *testing.T) {
	catalog := writeFile(t, t.TempDir(), "locators.yaml", testCatalog)

	out, _, code := run(t, "", "-c", catalog, "locators")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "aeshost")
	assert.Contains(t, out, "aes/literal")
	assert.Contains(t, out, "direct.example.org")
}

func TestPerfReport(t *testing.T) {
	dir := t.TempDir()
	catalog := writeFile(t, dir, "locators.yaml", testCatalog)

	_, errOut, code := run(t, `<video src="https://cdn.example.org/v/a.mp4">`,
		"--perf", "-c", catalog, "resolve", "https://direct.example.org/e/2", "-f", "-", "--offline")
	require.Equal(t, 0, code)
	assert.Contains(t, errOut, "resolve direct")
}
