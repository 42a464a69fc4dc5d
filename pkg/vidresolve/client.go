// Package vidresolve provides the public API for resolving embed pages into
// playable video variants. Site modules hand in the page they scraped; the
// client picks the locator for the page host and returns ordered variants
// with the headers playback needs.
package vidresolve

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/alvarorichard/vidresolve/internal/locator"
	"github.com/alvarorichard/vidresolve/internal/models"
	"github.com/alvarorichard/vidresolve/internal/resolver"
	"github.com/alvarorichard/vidresolve/internal/util"
	"github.com/alvarorichard/vidresolve/pkg/vidresolve/types"
)

// ErrNoLocator is returned when no locator matches a page
var ErrNoLocator = errors.New("no locator for page")

// Client resolves embed pages against a locator catalog
type Client struct {
	catalog *locator.Catalog
	fetcher models.Fetcher
	opts    resolver.Options

	resolver *resolver.Resolver
}

// Option configures a Client
type Option func(*Client)

// WithFetcher routes every request the library needs through f
func WithFetcher(f types.Fetcher) Option {
	return func(c *Client) {
		if f == nil {
			c.fetcher = nil
			return
		}
		c.fetcher = fetcherAdapter{f}
	}
}

// WithHTTPClient uses the built-in net/http fetcher. A nil client selects the
// shared pooled client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		f := util.NewHTTPFetcher()
		if hc != nil {
			f.Client = hc
		}
		c.fetcher = f
	}
}

// WithTimeout bounds each job of ResolveAll
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.opts.Timeout = d }
}

// WithMaxWorkers bounds how many pages ResolveAll resolves at once
func WithMaxWorkers(n int) Option {
	return func(c *Client) { c.opts.MaxWorkers = n }
}

// WithKeyTTL sets how long fetched decryption keys are reused within a batch
func WithKeyTTL(d time.Duration) Option {
	return func(c *Client) { c.opts.KeyTTL = d }
}

// NewClient creates a client with an empty catalog and no fetcher. Without a
// fetcher HLS masters are returned as a single "Auto" variant.
func NewClient(opts ...Option) *Client {
	c := &Client{catalog: &locator.Catalog{}}
	for _, opt := range opts {
		opt(c)
	}
	c.resolver = resolver.New(c.fetcher, c.opts)
	return c
}

// LoadCatalog parses a YAML locator catalog and adds its locators
func (c *Client) LoadCatalog(data []byte) error {
	cat, err := locator.Parse(data)
	if err != nil {
		return err
	}
	return c.merge(cat)
}

// LoadCatalogFile reads a YAML locator catalog from disk
func (c *Client) LoadCatalogFile(path string) error {
	cat, err := locator.LoadFile(path)
	if err != nil {
		return err
	}
	return c.merge(cat)
}

func (c *Client) merge(cat *locator.Catalog) error {
	for _, spec := range cat.Locators {
		if _, ok := c.catalog.Get(spec.Name); ok {
			return errors.Errorf("duplicate locator %q", spec.Name)
		}
	}
	c.catalog.Locators = append(c.catalog.Locators, cat.Locators...)
	return nil
}

// Locators returns the names of the loaded locators
func (c *Client) Locators() []string {
	names := make([]string, 0, len(c.catalog.Locators))
	for _, s := range c.catalog.Locators {
		names = append(names, s.Name)
	}
	return names
}

// LocatorFor returns the locator name that would handle pageURL
func (c *Client) LocatorFor(pageURL string) (string, bool) {
	spec, ok := c.catalog.Lookup(pageURL)
	if !ok {
		return "", false
	}
	return spec.Name, true
}

// Resolve resolves one embed page. An error means no locator matched; a page
// that yields nothing returns an empty list.
func (c *Client) Resolve(ctx context.Context, pageURL, pageText string) ([]*types.Variant, error) {
	return c.ResolveWith(ctx, "", pageURL, pageText)
}

// ResolveWith resolves a page with a named locator, or the host's locator
// when name is empty
func (c *Client) ResolveWith(ctx context.Context, name, pageURL, pageText string) ([]*types.Variant, error) {
	spec, err := c.spec(name, pageURL)
	if err != nil {
		return nil, err
	}
	variants := c.resolver.Resolve(ctx, resolver.Page{URL: pageURL, Text: pageText}, spec)
	return types.FromInternalVariantList(variants), nil
}

// ResolveAll resolves jobs concurrently. Variants come back in job order;
// jobs without a matching locator, failing jobs and timed out jobs
// contribute nothing.
func (c *Client) ResolveAll(ctx context.Context, jobs []types.Job) []*types.Variant {
	internal := make([]resolver.Job, 0, len(jobs))
	for _, j := range jobs {
		spec, err := c.spec(j.Locator, j.PageURL)
		if err != nil {
			util.Debug("vidresolve: skipping job", "page", j.PageURL, "error", err)
			continue
		}
		internal = append(internal, resolver.Job{
			Name:    spec.Name,
			Page:    resolver.Page{URL: j.PageURL, Text: j.PageText, Referer: j.Referer},
			Spec:    spec,
			Timeout: j.Timeout,
		})
	}
	return types.FromInternalVariantList(c.resolver.ResolveAll(ctx, internal))
}

func (c *Client) spec(name, pageURL string) (*locator.Spec, error) {
	if name != "" {
		spec, ok := c.catalog.Get(name)
		if !ok {
			return nil, errors.Wrapf(ErrNoLocator, "unknown locator %q", name)
		}
		return spec, nil
	}
	spec, ok := c.catalog.Lookup(pageURL)
	if !ok {
		host := pageURL
		if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
			host = u.Host
		}
		return nil, errors.Wrapf(ErrNoLocator, "host %s", host)
	}
	return spec, nil
}

// Best picks the highest quality variant, or nil for an empty list
func Best(variants []*types.Variant) *types.Variant {
	if len(variants) == 0 {
		return nil
	}
	internal := make([]models.VideoVariant, len(variants))
	for i, v := range variants {
		internal[i] = models.VideoVariant{Height: v.Height, Bandwidth: v.Bandwidth, URL: v.URL}
	}
	best := models.Best(internal)
	for _, v := range variants {
		if v.URL == best.URL && v.Height == best.Height && v.Bandwidth == best.Bandwidth {
			return v
		}
	}
	return variants[0]
}

type fetcherAdapter struct {
	f types.Fetcher
}

func (a fetcherAdapter) Fetch(ctx context.Context, req models.Request) (string, error) {
	return a.f.Fetch(ctx, types.FromInternalRequest(req))
}
