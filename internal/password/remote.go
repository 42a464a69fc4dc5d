package password

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/alvarorichard/vidresolve/internal/headers"
	"github.com/alvarorichard/vidresolve/internal/models"
	"github.com/alvarorichard/vidresolve/internal/util"
)

// Remote fetches a key file through the host and memoises it in the batch
// key cache. The URL is either fixed or captured from the page with Re.
type Remote struct {
	URL      string
	Re       *regexp.Regexp
	From     string
	JSONPath string
}

func (Remote) Kind() string { return KindRemote }

func (r Remote) Locate(ctx context.Context, src Source) (string, error) {
	if src.Fetch == nil {
		return "", errors.New("password: remote key needs a fetcher")
	}

	raw := r.URL
	if raw == "" {
		v, ok := capture(r.Re, src.text(r.From))
		if !ok {
			return "", ErrNotFound
		}
		raw = v
	}
	keyURL, err := resolveAgainst(src.PageURL, raw)
	if err != nil {
		return "", err
	}

	cacheKey := keyURL + "#" + r.JSONPath
	return src.Keys.GetOrLoad(ctx, cacheKey, func(ctx context.Context) (string, error) {
		util.Debug("password: fetching remote key", "url", keyURL)
		body, err := src.Fetch.Fetch(ctx, models.Request{
			Method:  "GET",
			URL:     keyURL,
			Headers: headers.Policy{Origin: headers.OriginPage}.Compute(src.PageURL, keyURL),
		})
		if err != nil {
			return "", errors.Wrap(err, "password: fetching remote key")
		}
		if r.JSONPath == "" {
			return nonEmpty(body)
		}
		res := gjson.Get(body, r.JSONPath)
		if !res.Exists() {
			return "", ErrNotFound
		}
		return nonEmpty(res.String())
	})
}

func resolveAgainst(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrap(err, "password: bad key url")
	}
	if !u.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return "", errors.Errorf("password: cannot resolve relative key url %q", ref)
		}
		u = b.ResolveReference(u)
	}
	if !models.IsAbsoluteURL(u.String()) {
		return "", errors.Errorf("password: key url %q is not http(s)", u.String())
	}
	return u.String(), nil
}
