// Package password finds the passphrase a host used to encrypt its payload.
// Each strategy is a small value selected by the locator's "kind".
package password

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/alvarorichard/vidresolve/internal/keycache"
	"github.com/alvarorichard/vidresolve/internal/models"
)

// Strategy kinds
const (
	KindLiteral  = "literal"
	KindPattern  = "pattern"
	KindCharCode = "charcode"
	KindUnpack   = "unpack"
	KindScript   = "script"
	KindRemote   = "remote"
)

// Where a strategy searches
const (
	FromPage    = "page"
	FromPayload = "payload"
)

// ErrNotFound means the strategy ran but the page did not contain a password
var ErrNotFound = errors.New("password not found")

// Source is everything a strategy may look at
type Source struct {
	PageURL string
	Page    string
	// Payload is the located payload after unpacking and transforms
	Payload string

	Fetch models.Fetcher
	Keys  *keycache.Cache
}

func (s Source) text(from string) string {
	if from == FromPayload {
		return s.Payload
	}
	return s.Page
}

// Locator resolves a password
type Locator interface {
	Kind() string
	Locate(ctx context.Context, src Source) (string, error)
}

// Config is the catalog form of a password strategy
type Config struct {
	Kind string `yaml:"kind"`
	// Value is the literal password
	Value string `yaml:"value,omitempty"`
	// Pattern captures the password (or its raw material) with group 1
	Pattern string `yaml:"pattern,omitempty"`
	// From is "page" (default) or "payload"
	From string `yaml:"from,omitempty"`
	// Block locates the packed script for the unpack strategy; the whole text when empty
	Block string `yaml:"block,omitempty"`
	// Operation is add, sub or xor for the charcode strategy
	Operation string `yaml:"operation,omitempty"`
	Operand   int    `yaml:"operand,omitempty"`
	// Separator splits the capture into decimal char codes; empty means use the captured characters
	Separator string `yaml:"separator,omitempty"`
	// Expression is evaluated by the script strategy with the capture bound to `input`
	Expression string        `yaml:"expression,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	// URL of a remote key file, resolved against the page URL
	URL      string `yaml:"url,omitempty"`
	JSONPath string `yaml:"json_path,omitempty"`
}

// New compiles a Config into its strategy
func New(cfg Config) (Locator, error) {
	switch cfg.From {
	case "", FromPage, FromPayload:
	default:
		return nil, errors.Errorf("password: from must be page or payload, got %q", cfg.From)
	}

	pattern, err := compileOptional(cfg.Pattern)
	if err != nil {
		return nil, errors.Wrap(err, "password: bad pattern")
	}

	switch cfg.Kind {
	case KindLiteral:
		if cfg.Value == "" {
			return nil, errors.New("password: literal needs a value")
		}
		return Literal{Token: cfg.Value}, nil

	case KindPattern:
		if pattern == nil {
			return nil, errors.New("password: pattern strategy needs a pattern")
		}
		return Pattern{Re: pattern, From: cfg.From}, nil

	case KindCharCode:
		if pattern == nil {
			return nil, errors.New("password: charcode strategy needs a pattern")
		}
		op, err := parseOperation(cfg.Operation)
		if err != nil {
			return nil, err
		}
		return CharCode{Re: pattern, From: cfg.From, Op: op, Operand: cfg.Operand, Separator: cfg.Separator}, nil

	case KindUnpack:
		if pattern == nil {
			return nil, errors.New("password: unpack strategy needs a pattern")
		}
		block, err := compileOptional(cfg.Block)
		if err != nil {
			return nil, errors.Wrap(err, "password: bad block pattern")
		}
		return SecondaryUnpack{Block: block, Re: pattern, From: cfg.From}, nil

	case KindScript:
		if pattern == nil && cfg.Expression == "" {
			return nil, errors.New("password: script strategy needs a pattern or an expression")
		}
		return Script{Re: pattern, From: cfg.From, Expression: cfg.Expression, Timeout: cfg.Timeout}, nil

	case KindRemote:
		if cfg.URL == "" && pattern == nil {
			return nil, errors.New("password: remote strategy needs a url or a pattern")
		}
		return Remote{URL: cfg.URL, Re: pattern, From: cfg.From, JSONPath: cfg.JSONPath}, nil

	default:
		return nil, errors.Errorf("password: unknown kind %q", cfg.Kind)
	}
}

func compileOptional(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
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

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrNotFound
	}
	return s, nil
}
