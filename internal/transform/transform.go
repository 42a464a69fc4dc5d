// Package transform holds the small string rewrites some embed hosts apply to
// their payloads before or after encryption. Each one is named so that a
// locator can list them in order.
package transform

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/vidresolve/internal/decrypt"
)

// Names of the built-in transforms
const (
	NameReverse    = "reverse"
	NameROT13      = "rot13"
	NameBase64     = "base64"
	NameStrip      = "strip"
	NameShift      = "shift"
	NameHexPairs   = "hexpairs"
	NameSubstitute = "substitute"
	NameURLDecode  = "urldecode"
)

// Func rewrites one string
type Func func(string) (string, error)

// Transform is a named Func
type Transform struct {
	Name string
	fn   Func
}

// Apply runs the transform
func (t Transform) Apply(s string) (string, error) {
	out, err := t.fn(s)
	if err != nil {
		return "", errors.Wrapf(err, "transform %s", t.Name)
	}
	return out, nil
}

// Chain applies transforms left to right
type Chain []Transform

// Apply stops at the first failing step
func (c Chain) Apply(s string) (string, error) {
	var err error
	for _, t := range c {
		if s, err = t.Apply(s); err != nil {
			return "", err
		}
	}
	return s, nil
}

// Names lists the step names of the chain
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}

// Reverse reverses s rune by rune
func Reverse() Transform {
	return Transform{Name: NameReverse, fn: func(s string) (string, error) {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	}}
}

// ROT13 rotates ASCII letters by 13 places
func ROT13() Transform {
	return Transform{Name: NameROT13, fn: func(s string) (string, error) {
		b := []byte(s)
		for i, c := range b {
			switch {
			case c >= 'A' && c <= 'Z':
				b[i] = (c-'A'+13)%26 + 'A'
			case c >= 'a' && c <= 'z':
				b[i] = (c-'a'+13)%26 + 'a'
			}
		}
		return string(b), nil
	}}
}

// Base64 decodes standard or URL-safe base64, padded or not
func Base64() Transform {
	return Transform{Name: NameBase64, fn: func(s string) (string, error) {
		b, err := decrypt.DecodeBase64(s)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}}
}

// DefaultJunk is the token set VOE-style pages splice into their base64
var DefaultJunk = []string{"@$", "^^", "~@", "%?", "*~", "!!", "#&"}

// Strip removes every occurrence of the given tokens; DefaultJunk when none are given
func Strip(tokens ...string) Transform {
	if len(tokens) == 0 {
		tokens = DefaultJunk
	}
	pairs := make([]string, 0, len(tokens)*2)
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		pairs = append(pairs, tok, "")
	}
	r := strings.NewReplacer(pairs...)
	return Transform{Name: NameStrip, fn: func(s string) (string, error) {
		return r.Replace(s), nil
	}}
}

// Shift adds offset to every character code
func Shift(offset int) Transform {
	return Transform{Name: NameShift, fn: func(s string) (string, error) {
		var b strings.Builder
		b.Grow(len(s))
		for i, r := range s {
			shifted := int(r) + offset
			if shifted < 0 || shifted > 0x10FFFF {
				return "", errors.Errorf("character %q at %d shifts out of range", r, i)
			}
			b.WriteRune(rune(shifted))
		}
		return b.String(), nil
	}}
}

// AllAnimeTable maps the two-hex-digit groups used by AllAnime "--" source ids
var AllAnimeTable = map[string]string{
	"01": "9", "08": "0", "05": "=", "0a": "2", "0b": "3", "0c": "4", "07": "?",
	"00": "8", "5c": "d", "0f": "7", "5e": "f", "17": "/", "54": "l", "09": "1",
	"48": "p", "4f": "w", "0e": "6", "5b": "c", "5d": "e", "0d": "5", "53": "k",
	"1e": "&", "5a": "b", "59": "a", "4a": "r", "4c": "t", "4e": "v", "57": "o",
	"51": "i",
}

var pairRe = regexp.MustCompile("..")

// HexPairs splits s into two-character groups and maps each through table
// (AllAnimeTable when nil). A leading "--" is dropped, and a ":port" suffix is
// carried over untouched. Unknown groups are kept as they are.
func HexPairs(table map[string]string) Transform {
	if table == nil {
		table = AllAnimeTable
	}
	return Transform{Name: NameHexPairs, fn: func(s string) (string, error) {
		s = strings.TrimPrefix(s, "--")
		main, port, found := strings.Cut(s, ":")
		pairs := pairRe.FindAllString(main, -1)
		consumed := 0
		for i, p := range pairs {
			consumed += len(p)
			if v, ok := table[strings.ToLower(p)]; ok {
				pairs[i] = v
			}
		}
		out := strings.Join(pairs, "") + main[consumed:]
		if found {
			out += ":" + port
		}
		return out, nil
	}}
}

// Substitute replaces every key of table with its value. Longer keys win over
// their prefixes.
func Substitute(table map[string]string) Transform {
	keys := make([]string, 0, len(table))
	for k := range table {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, table[k])
	}
	r := strings.NewReplacer(pairs...)
	return Transform{Name: NameSubstitute, fn: func(s string) (string, error) {
		return r.Replace(s), nil
	}}
}

// URLDecode undoes percent-encoding
func URLDecode() Transform {
	return Transform{Name: NameURLDecode, fn: func(s string) (string, error) {
		return url.QueryUnescape(s)
	}}
}
