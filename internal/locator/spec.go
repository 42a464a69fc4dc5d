// Package locator holds the per-site data that drives a resolution: where the
// payload sits in the page, how it is encrypted, where the media URL is and
// which headers playback needs.
package locator

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/vidresolve/internal/decrypt"
	"github.com/alvarorichard/vidresolve/internal/headers"
	"github.com/alvarorichard/vidresolve/internal/password"
	"github.com/alvarorichard/vidresolve/internal/transform"
)

// Media kinds
const (
	MediaAuto   = "auto"
	MediaHLS    = "hls"
	MediaDirect = "direct"
)

// Salt encodings
const (
	SaltHex    = "hex"
	SaltBase64 = "base64"
	SaltRaw    = "raw"
)

// Spec describes one embed host. It is owned by the caller and read-only
// once compiled.
type Spec struct {
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts"`

	Payload    Payload        `yaml:"payload"`
	Encryption *Encryption    `yaml:"encryption,omitempty"`
	Media      Media          `yaml:"media"`
	Subtitles  *Subtitles     `yaml:"subtitles,omitempty"`
	Headers    headers.Policy `yaml:"headers"`

	compiled *Compiled
}

// Payload locates the candidate text inside the page
type Payload struct {
	// Selector narrows the page to the text of matching elements (CSS, via goquery)
	Selector string `yaml:"selector,omitempty"`
	// Marker starts the payload right after a literal string; Terminator ends it
	Marker     string `yaml:"marker,omitempty"`
	Terminator string `yaml:"terminator,omitempty"`
	// Pattern is a regular expression whose first group is the payload
	Pattern    string           `yaml:"pattern,omitempty"`
	Transforms []transform.Step `yaml:"transforms,omitempty"`
}

// Encryption describes a salted AES step
type Encryption struct {
	// Ciphertext captures the base64 ciphertext from the payload; the whole payload when empty
	Ciphertext string `yaml:"ciphertext,omitempty"`
	// CiphertextPath is a gjson path used instead when the payload is JSON
	CiphertextPath string `yaml:"ciphertext_path,omitempty"`
	// Salt captures an out-of-band salt; the ciphertext carries "Salted__" when empty
	Salt         string `yaml:"salt,omitempty"`
	SaltPath     string `yaml:"salt_path,omitempty"`
	SaltEncoding string `yaml:"salt_encoding,omitempty"`
	KeySize      int    `yaml:"key_size,omitempty"`
	// Transforms run on the ciphertext before decryption
	Transforms []transform.Step `yaml:"transforms,omitempty"`
	Password   password.Config  `yaml:"password"`
}

// Media locates the final media or manifest URL
type Media struct {
	Pattern  string `yaml:"pattern,omitempty"`
	JSONPath string `yaml:"json_path,omitempty"`
	// Kind is auto (default), hls or direct
	Kind string `yaml:"kind,omitempty"`
	// Label names a direct variant; derived from the URL when empty
	Label string `yaml:"label,omitempty"`
	// IncludeMaster prepends the master playlist itself as an "Auto" variant
	IncludeMaster bool             `yaml:"include_master,omitempty"`
	Transforms    []transform.Step `yaml:"transforms,omitempty"`
}

// Subtitles locates subtitle tracks in the final text
type Subtitles struct {
	// Pattern captures the track URL in group 1 and an optional label in group 2
	Pattern string `yaml:"pattern,omitempty"`
	// JSONPath selects an array of track objects (or plain URL strings)
	JSONPath      string `yaml:"json_path,omitempty"`
	URLField      string `yaml:"url_field,omitempty"`
	LabelField    string `yaml:"label_field,omitempty"`
	LanguageField string `yaml:"language_field,omitempty"`
}

// Compiled holds the parsed regular expressions, transform chains and the
// password strategy of a Spec
type Compiled struct {
	PayloadPattern    *regexp.Regexp
	PayloadTransforms transform.Chain

	Ciphertext       *regexp.Regexp
	Salt             *regexp.Regexp
	CipherTransforms transform.Chain
	Password         password.Locator
	DecryptOptions   decrypt.Options

	MediaPattern    *regexp.Regexp
	MediaTransforms transform.Chain

	SubtitlePattern *regexp.Regexp
}

// Compile validates the spec and caches its compiled form
func (s *Spec) Compile() error {
	c, err := compile(s)
	if err != nil {
		return err
	}
	s.compiled = c
	return nil
}

// Compiled returns the compiled form, compiling a private copy when Compile
// was never called. The spec itself is not modified.
func (s *Spec) Compiled() (*Compiled, error) {
	if s.compiled != nil {
		return s.compiled, nil
	}
	return compile(s)
}

// MediaKind returns the media kind with its default applied
func (s *Spec) MediaKind() string {
	if s.Media.Kind == "" {
		return MediaAuto
	}
	return s.Media.Kind
}

func compile(s *Spec) (*Compiled, error) {
	name := s.Name
	if name == "" {
		name = "unnamed"
	}
	wrap := func(err error, field string) error {
		return errors.Wrapf(err, "locator %s: %s", name, field)
	}

	var c Compiled
	var err error

	if c.PayloadPattern, err = compileOptional(s.Payload.Pattern); err != nil {
		return nil, wrap(err, "payload.pattern")
	}
	if s.Payload.Terminator != "" && s.Payload.Marker == "" {
		return nil, wrap(errors.New("terminator without marker"), "payload")
	}
	if c.PayloadTransforms, err = transform.Build(s.Payload.Transforms); err != nil {
		return nil, wrap(err, "payload.transforms")
	}

	if e := s.Encryption; e != nil {
		if c.Ciphertext, err = compileOptional(e.Ciphertext); err != nil {
			return nil, wrap(err, "encryption.ciphertext")
		}
		if c.Salt, err = compileOptional(e.Salt); err != nil {
			return nil, wrap(err, "encryption.salt")
		}
		switch e.SaltEncoding {
		case "", SaltHex, SaltBase64, SaltRaw:
		default:
			return nil, wrap(errors.Errorf("unknown encoding %q", e.SaltEncoding), "encryption.salt_encoding")
		}
		switch e.KeySize {
		case 0, 16, 24, 32:
		default:
			return nil, wrap(errors.Errorf("unsupported key size %d", e.KeySize), "encryption.key_size")
		}
		c.DecryptOptions = decrypt.Options{KeySize: e.KeySize}
		if c.CipherTransforms, err = transform.Build(e.Transforms); err != nil {
			return nil, wrap(err, "encryption.transforms")
		}
		if c.Password, err = password.New(e.Password); err != nil {
			return nil, wrap(err, "encryption.password")
		}
	}

	if c.MediaPattern, err = compileOptional(s.Media.Pattern); err != nil {
		return nil, wrap(err, "media.pattern")
	}
	switch s.Media.Kind {
	case "", MediaAuto, MediaHLS, MediaDirect:
	default:
		return nil, wrap(errors.Errorf("unknown kind %q", s.Media.Kind), "media.kind")
	}
	if c.MediaTransforms, err = transform.Build(s.Media.Transforms); err != nil {
		return nil, wrap(err, "media.transforms")
	}

	if s.Subtitles != nil {
		if c.SubtitlePattern, err = compileOptional(s.Subtitles.Pattern); err != nil {
			return nil, wrap(err, "subtitles.pattern")
		}
	}

	if err := s.Headers.Validate(); err != nil {
		return nil, wrap(err, "headers")
	}
	return &c, nil
}

func compileOptional(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
}

// DecodeSalt turns a captured salt into bytes according to the encoding
func DecodeSalt(raw, encoding string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	switch encoding {
	case "", SaltHex:
		return hex.DecodeString(raw)
	case SaltBase64:
		return decrypt.DecodeBase64(raw)
	case SaltRaw:
		return []byte(raw), nil
	default:
		return nil, errors.Errorf("unknown salt encoding %q", encoding)
	}
}

// Matches reports whether host belongs to the spec, by exact name or domain suffix
func (s *Spec) Matches(host string) bool {
	return s.matchLen(host) > 0
}

func (s *Spec) matchLen(host string) int {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	best := 0
	for _, h := range s.Hosts {
		h = strings.ToLower(strings.TrimPrefix(h, "."))
		if h == "" {
			continue
		}
		if (host == h || strings.HasSuffix(host, "."+h)) && len(h) > best {
			best = len(h)
		}
	}
	return best
}
