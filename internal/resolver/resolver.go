// Package resolver turns an embed page into playable variants: it locates the
// payload, unpacks and decodes it, decrypts it when needed, finds the media
// URL and expands HLS masters into one variant per quality.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/vidresolve/internal/decrypt"
	"github.com/alvarorichard/vidresolve/internal/headers"
	"github.com/alvarorichard/vidresolve/internal/keycache"
	"github.com/alvarorichard/vidresolve/internal/locator"
	"github.com/alvarorichard/vidresolve/internal/manifest"
	"github.com/alvarorichard/vidresolve/internal/models"
	"github.com/alvarorichard/vidresolve/internal/packer"
	"github.com/alvarorichard/vidresolve/internal/password"
	"github.com/alvarorichard/vidresolve/internal/util"
)

// Variant labels the resolver assigns itself
const (
	LabelAuto    = "Auto"
	LabelDefault = "Default"
)

// Page is an embed page as handed in by a site module
type Page struct {
	URL  string
	Text string
	// Referer is sent when the resolver has to fetch the page itself
	Referer string
}

// Resolver resolves pages with a host supplied fetcher. A nil fetcher is
// allowed; manifests are then returned unexpanded.
type Resolver struct {
	fetcher models.Fetcher
	opts    Options
}

// New creates a Resolver
func New(fetcher models.Fetcher, opts Options) *Resolver {
	return &Resolver{fetcher: fetcher, opts: opts.withDefaults()}
}

// Options returns the effective options
func (r *Resolver) Options() Options {
	return r.opts
}

// Batch groups resolutions that share one key cache
type Batch struct {
	r    *Resolver
	keys *keycache.Cache
}

// NewBatch starts a batch with a fresh key cache
func (r *Resolver) NewBatch() *Batch {
	var opts []keycache.Option
	if r.opts.Clock != nil {
		opts = append(opts, keycache.WithClock(r.opts.Clock))
	}
	return &Batch{r: r, keys: keycache.New(r.opts.KeyTTL, opts...)}
}

// Keys exposes the batch key cache
func (b *Batch) Keys() *keycache.Cache {
	return b.keys
}

// Resolve resolves a single page in its own batch
func (r *Resolver) Resolve(ctx context.Context, page Page, spec *locator.Spec) []models.VideoVariant {
	return r.NewBatch().Resolve(ctx, page, spec)
}

// Resolve returns the variants found on page. It never fails: a stage that
// misses its marker ends the resolution with whatever was found so far.
func (b *Batch) Resolve(ctx context.Context, page Page, spec *locator.Spec) []models.VideoVariant {
	variants, _ := b.ResolveTrace(ctx, page, spec)
	return variants
}

// ResolveTrace is Resolve plus the trace of visited stages
func (b *Batch) ResolveTrace(ctx context.Context, page Page, spec *locator.Spec) ([]models.VideoVariant, Trace) {
	var trace Trace
	if spec == nil {
		trace.Err = errors.New("no locator spec")
		return nil, trace
	}
	trace.Locator = spec.Name

	timer := util.StartTimer("resolve " + spec.Name)
	defer timer.StopAndLog()

	variants, err := b.run(ctx, page, spec, &trace)
	if err != nil {
		trace.Err = err
		util.Debug("resolver: stopped", "locator", spec.Name, "stage", trace.Last(), "error", err)
	}
	return variants, trace
}

func (b *Batch) run(ctx context.Context, page Page, spec *locator.Spec, trace *Trace) ([]models.VideoVariant, error) {
	c, err := spec.Compiled()
	if err != nil {
		return nil, err
	}

	if page.Text == "" {
		if page.Text, err = b.fetchPage(ctx, page, spec); err != nil {
			return nil, err
		}
	}
	trace.enter(StageRaw)

	payload, ok := locatePayload(page.Text, spec, c)
	if !ok {
		return nil, errors.New("payload not found")
	}
	if packer.IsPacked(payload) {
		payload = packer.Unpack(payload)
	}
	trace.enter(StageUnpacked)
	b.stage(spec, StageUnpacked, payload)

	text, err := c.PayloadTransforms.Apply(payload)
	if err != nil {
		return nil, err
	}
	trace.enter(StageDecoded)
	b.stage(spec, StageDecoded, text)

	if spec.Encryption != nil {
		if text, err = b.decrypt(ctx, page, spec, c, text); err != nil {
			return nil, err
		}
	}
	trace.Text = text
	trace.enter(StageDecrypted)
	b.stage(spec, StageDecrypted, text)

	raw, ok := extract(text, spec.Media.JSONPath, c.MediaPattern)
	if !ok {
		return nil, errors.New("media url not found")
	}
	raw, err = c.MediaTransforms.Apply(cleanURL(raw))
	if err != nil {
		return nil, err
	}
	mediaURL, ok := resolveURL(page.URL, raw)
	if !ok {
		return nil, errors.Errorf("media url %q is not absolute", raw)
	}
	trace.MediaURL = mediaURL
	trace.enter(StageManifestLocated)
	b.stage(spec, StageManifestLocated, mediaURL)

	subs := locateSubtitles(text, page.URL, spec.Subtitles, c)

	var variants []models.VideoVariant
	if isHLS(spec, mediaURL) {
		variants, err = b.expandManifest(ctx, page, spec, mediaURL, subs)
		if err != nil {
			return nil, err
		}
	} else {
		variants = []models.VideoVariant{directVariant(spec, mediaURL, subs)}
	}

	for i := range variants {
		variants[i].Headers = spec.Headers.Compute(page.URL, variants[i].URL)
	}
	if len(variants) > 0 {
		trace.enter(StageVariantsResolved)
	}
	util.Debug("resolver: resolved", "locator", spec.Name, "variants", len(variants))
	return variants, nil
}

func (b *Batch) stage(spec *locator.Spec, s Stage, text string) {
	if !util.IsDebug {
		return
	}
	preview := text
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	util.Debug("resolver: stage", "locator", spec.Name, "stage", s, "text", preview)
}

func (b *Batch) fetchPage(ctx context.Context, page Page, spec *locator.Spec) (string, error) {
	if b.r.fetcher == nil {
		return "", errors.New("empty page and no fetcher")
	}
	if !models.IsAbsoluteURL(page.URL) {
		return "", errors.Errorf("cannot fetch page %q", page.URL)
	}

	policy := headers.Policy{Referer: headers.RefererNone, Origin: headers.OriginNone, UserAgent: spec.Headers.UserAgent}
	if page.Referer != "" {
		policy.Referer = page.Referer
	}
	body, err := b.r.fetcher.Fetch(ctx, models.Request{
		Method:  "GET",
		URL:     page.URL,
		Headers: policy.Compute(page.URL, page.URL),
	})
	if err != nil {
		util.Warn("resolver: page fetch failed", "url", page.URL, "error", err)
		return "", errors.Wrap(err, "fetching page")
	}
	return body, nil
}

func (b *Batch) decrypt(ctx context.Context, page Page, spec *locator.Spec, c *locator.Compiled, text string) (string, error) {
	e := spec.Encryption

	ciphertext, ok := extract(text, e.CiphertextPath, c.Ciphertext)
	if !ok {
		return "", errors.New("ciphertext not found")
	}

	var salt []byte
	if e.SaltPath != "" || c.Salt != nil {
		raw, ok := extract(text, e.SaltPath, c.Salt)
		if !ok && c.Salt != nil {
			raw, ok = capture(c.Salt, page.Text)
		}
		if !ok {
			return "", errors.New("salt not found")
		}
		s, err := locator.DecodeSalt(raw, e.SaltEncoding)
		if err != nil {
			return "", errors.Wrap(err, "decoding salt")
		}
		salt = s
	}

	ciphertext, err := c.CipherTransforms.Apply(ciphertext)
	if err != nil {
		return "", err
	}

	pw, err := c.Password.Locate(ctx, password.Source{
		PageURL: page.URL,
		Page:    page.Text,
		Payload: text,
		Fetch:   b.r.fetcher,
		Keys:    b.keys,
	})
	if err != nil {
		return "", errors.Wrap(err, "locating password")
	}

	plain, err := decrypt.DecryptWithOptions(decrypt.Payload{Ciphertext: ciphertext, Salt: salt}, pw, c.DecryptOptions)
	if err != nil {
		return "", err
	}
	if packer.IsPacked(plain) {
		plain = packer.Unpack(plain)
	}
	return plain, nil
}

func isHLS(spec *locator.Spec, mediaURL string) bool {
	switch spec.MediaKind() {
	case locator.MediaHLS:
		return true
	case locator.MediaDirect:
		return false
	default:
		return isManifestURL(mediaURL)
	}
}

func (b *Batch) expandManifest(ctx context.Context, page Page, spec *locator.Spec, masterURL string, subs []models.SubtitleTrack) ([]models.VideoVariant, error) {
	master := models.VideoVariant{URL: masterURL, Label: LabelAuto, Subtitles: subs}
	if b.r.fetcher == nil {
		return []models.VideoVariant{master}, nil
	}

	timer := util.StartTimer("manifest " + spec.Name)
	body, err := b.r.fetcher.Fetch(ctx, models.Request{
		Method:  "GET",
		URL:     masterURL,
		Headers: spec.Headers.Compute(page.URL, masterURL),
	})
	timer.Stop()
	if err != nil {
		util.Warn("resolver: manifest fetch failed", "locator", spec.Name, "url", masterURL, "error", err)
		return nil, errors.Wrap(err, "fetching manifest")
	}

	base, err := url.Parse(masterURL)
	if err != nil {
		return nil, errors.Wrap(err, "manifest url")
	}
	res := manifest.Parse(body, base)
	if res.IsMedia {
		return []models.VideoVariant{master}, nil
	}
	if res.Empty() {
		return nil, errors.New("manifest has no variants")
	}

	subs = mergeSubtitles(res.Subtitles, subs)
	master.Subtitles = subs

	variants := make([]models.VideoVariant, 0, len(res.Variants)+1)
	if spec.Media.IncludeMaster {
		variants = append(variants, master)
	}
	for _, v := range res.Variants {
		variants = append(variants, models.VideoVariant{
			URL:       v.URI,
			Label:     v.Label,
			Subtitles: subs,
			Height:    v.Height,
			Bandwidth: v.Bandwidth,
		})
	}
	return variants, nil
}

func directVariant(spec *locator.Spec, mediaURL string, subs []models.SubtitleTrack) models.VideoVariant {
	height := models.HeightFromURL(mediaURL)
	label := spec.Media.Label
	switch {
	case label != "":
	case height > 0:
		label = fmt.Sprintf("%dp", height)
	default:
		label = LabelDefault
	}
	if height == 0 {
		height = heightFromLabel(label)
	}
	return models.VideoVariant{URL: mediaURL, Label: label, Subtitles: subs, Height: height}
}

func heightFromLabel(label string) int {
	var h int
	if _, err := fmt.Sscanf(strings.ToLower(label), "%dp", &h); err != nil {
		return 0
	}
	return h
}
