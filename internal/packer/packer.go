// Package packer reverses the eval(function(p,a,c,k,e,d){...}) JavaScript packer
package packer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/vidresolve/internal/util"
)

// MaxDepth bounds how many nested packer layers Unpack peels off
const MaxDepth = 5

var (
	// ErrNotPacked is returned by Parse when the text carries no packer call
	ErrNotPacked = errors.New("packer: signature not found")
	// ErrMalformed is returned when the signature is present but its arguments are not
	ErrMalformed = errors.New("packer: malformed arguments")
)

const alphabet62 = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	signatureRe = regexp.MustCompile(`eval\s*\(\s*function\s*\(\s*p\s*,\s*a\s*,\s*c\s*,\s*k\s*,\s*e\s*,\s*[dr]\s*\)`)

	// the body and keyword literals are matched separately for each quote style
	// because RE2 has no backreferences
	argsSingleRe = regexp.MustCompile(`(?s)\}\s*\(\s*'((?:\\.|[^'\\])*)'\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*'((?:\\.|[^'\\])*)'\s*\.split\(\s*['"]\|['"]\s*\)`)
	argsDoubleRe = regexp.MustCompile(`(?s)\}\s*\(\s*"((?:\\.|[^"\\])*)"\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*"((?:\\.|[^"\\])*)"\s*\.split\(\s*['"]\|['"]\s*\)`)

	// remainder of the call after .split('|'): optional e/d arguments, then both closing parens
	tailRe = regexp.MustCompile(`^\s*(?:,\s*\d+\s*)?(?:,\s*\{\s*\}\s*)?\)\s*\)\s*;?`)

	wordRe = regexp.MustCompile(`\b\w+\b`)

	unescaper = strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\"`, `"`)
)

// Script is the parsed form of one packer invocation
type Script struct {
	Body     string
	Radix    int
	Count    int
	Keywords []string

	// start and end delimit the whole eval(...) call inside the source text
	start, end int
}

// IsPacked reports whether text contains the packer signature
func IsPacked(text string) bool {
	return signatureRe.MatchString(text)
}

// Parse extracts the first packer invocation from text
func Parse(text string) (*Script, error) {
	loc := signatureRe.FindStringIndex(text)
	if loc == nil {
		return nil, ErrNotPacked
	}

	rest := text[loc[1]:]
	m := argsSingleRe.FindStringSubmatchIndex(rest)
	if m == nil {
		m = argsDoubleRe.FindStringSubmatchIndex(rest)
	}
	if m == nil {
		return nil, errors.Wrap(ErrMalformed, "argument list not found")
	}

	radix, err := strconv.Atoi(rest[m[4]:m[5]])
	if err != nil || radix < 2 || radix > 62 {
		return nil, errors.Wrapf(ErrMalformed, "unsupported radix %q", rest[m[4]:m[5]])
	}
	count, err := strconv.Atoi(rest[m[6]:m[7]])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "bad token count %q", rest[m[6]:m[7]])
	}

	end := loc[1] + m[1]
	if tail := tailRe.FindStringIndex(text[end:]); tail != nil {
		end += tail[1]
	}

	keywords := strings.Split(unescaper.Replace(rest[m[8]:m[9]]), "|")
	if count > len(keywords) {
		util.Debug("packer: token count exceeds dictionary", "count", count, "keywords", len(keywords))
	}

	return &Script{
		Body:     unescaper.Replace(rest[m[2]:m[3]]),
		Radix:    radix,
		Count:    count,
		Keywords: keywords,
		start:    loc[0],
		end:      end,
	}, nil
}

// Decode substitutes every token of the body with its dictionary word.
// Each whole word is looked up on its own, so "1" can never clobber part of "10".
func (s *Script) Decode() string {
	return wordRe.ReplaceAllStringFunc(s.Body, func(word string) string {
		idx, ok := Unbase(word, s.Radix)
		if !ok || idx >= len(s.Keywords) || s.Keywords[idx] == "" {
			return word
		}
		return s.Keywords[idx]
	})
}

// Unpack peels packer layers off text until nothing changes or MaxDepth is
// reached. Text without the signature is returned unchanged, and malformed
// input yields the best attempt so far rather than an error.
func Unpack(text string) string {
	current := text
	for depth := 0; depth < MaxDepth; depth++ {
		next, err := unpackOnce(current)
		if err != nil {
			if !errors.Is(err, ErrNotPacked) {
				util.Debug("packer: giving up", "depth", depth, "error", err)
			}
			break
		}
		if next == current {
			break
		}
		current = next
	}
	return current
}

func unpackOnce(text string) (string, error) {
	script, err := Parse(text)
	if err != nil {
		return text, err
	}
	return text[:script.start] + script.Decode() + text[script.end:], nil
}

// Unbase converts a packer token back to its dictionary index. Digits come
// from alphabet62 for every radix, so up to radix 36 only lowercase letters
// are tokens, matching what the packer's encoder emits.
func Unbase(token string, radix int) (int, bool) {
	if token == "" || radix < 2 || radix > len(alphabet62) {
		return 0, false
	}

	digits := alphabet62[:radix]
	n := 0
	for i := 0; i < len(token); i++ {
		d := strings.IndexByte(digits, token[i])
		if d < 0 {
			return 0, false
		}
		n = n*radix + d
		if n > math.MaxInt32 {
			return 0, false
		}
	}
	return n, true
}

// Encode converts a dictionary index to its packer token, mirroring the
// packer's own e() helper
func Encode(n, radix int) string {
	if radix <= 36 {
		return strconv.FormatInt(int64(n), radix)
	}
	if n < radix {
		return string(alphabet62[n])
	}
	return Encode(n/radix, radix) + string(alphabet62[n%radix])
}

const unpackerTemplate = `eval(function(p,a,c,k,e,d){e=function(c){return(c<a?'':e(parseInt(c/a)))+((c=c%%a)>35?String.fromCharCode(c+29):c.toString(36))};if(!''.replace(/^/,String)){while(c--){d[e(c)]=k[c]||e(c)}k=[function(e){return d[e]}];e=function(){return'\\w+'};c=1};while(c--){if(k[c]){p=p.replace(new RegExp('\\b'+e(c)+'\\b','g'),k[c])}}return p}('%s',%d,%d,'%s'.split('|'),0,{}))`

var escaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Pack produces a packer invocation for source. It is used to build fixtures
// and by the debug tool; it does not try to compress.
func Pack(source string, radix int) (string, error) {
	if radix < 2 || radix > 62 {
		return "", errors.Errorf("unsupported radix %d", radix)
	}

	index := make(map[string]int)
	var keywords []string
	body := wordRe.ReplaceAllStringFunc(source, func(word string) string {
		idx, ok := index[word]
		if !ok {
			idx = len(keywords)
			index[word] = idx
			keywords = append(keywords, word)
		}
		return Encode(idx, radix)
	})

	return fmt.Sprintf(unpackerTemplate, escaper.Replace(body), radix, len(keywords), strings.Join(keywords, "|")), nil
}
