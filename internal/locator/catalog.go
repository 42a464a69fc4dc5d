package locator

import (
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Catalog is a set of specs keyed by embed host
type Catalog struct {
	Locators []*Spec `yaml:"locators"`
}

// Parse decodes a YAML catalog and compiles every spec in it
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, errors.Wrap(err, "failed to decode locator catalog")
	}

	seen := make(map[string]bool, len(cat.Locators))
	for i, spec := range cat.Locators {
		if spec == nil {
			return nil, errors.Errorf("locator %d is empty", i)
		}
		if spec.Name == "" {
			return nil, errors.Errorf("locator %d has no name", i)
		}
		if seen[spec.Name] {
			return nil, errors.Errorf("duplicate locator %q", spec.Name)
		}
		seen[spec.Name] = true
		if err := spec.Compile(); err != nil {
			return nil, err
		}
	}
	return &cat, nil
}

// LoadFile reads and parses a catalog file
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read locator catalog %s", path)
	}
	return Parse(data)
}

// Get returns the spec with the given name
func (c *Catalog) Get(name string) (*Spec, bool) {
	for _, s := range c.Locators {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}

// Lookup picks the spec for an embed URL (or bare host). When several specs
// match, the one with the most specific host suffix wins.
func (c *Catalog) Lookup(embed string) (*Spec, bool) {
	host := embed
	if strings.Contains(embed, "://") {
		u, err := url.Parse(embed)
		if err != nil {
			return nil, false
		}
		host = u.Hostname()
	}

	var best *Spec
	bestLen := 0
	for _, s := range c.Locators {
		if n := s.matchLen(host); n > bestLen {
			best, bestLen = s, n
		}
	}
	return best, best != nil
}
