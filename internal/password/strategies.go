package password

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/vidresolve/internal/packer"
	"github.com/alvarorichard/vidresolve/internal/util"
)

// Literal is a fixed password shipped with the locator
type Literal struct {
	Token string
}

func (Literal) Kind() string { return KindLiteral }

func (l Literal) Locate(context.Context, Source) (string, error) {
	if l.Token == "" {
		return "", ErrNotFound
	}
	return l.Token, nil
}

// Pattern captures the password straight out of the page
type Pattern struct {
	Re   *regexp.Regexp
	From string
}

func (Pattern) Kind() string { return KindPattern }

func (p Pattern) Locate(_ context.Context, src Source) (string, error) {
	v, ok := capture(p.Re, src.text(p.From))
	if !ok {
		return "", ErrNotFound
	}
	return nonEmpty(v)
}

// Operation is the arithmetic CharCode applies to each character code
type Operation int

const (
	OpAdd Operation = iota
	OpSub
	OpXor
)

func parseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "", "add":
		return OpAdd, nil
	case "sub":
		return OpSub, nil
	case "xor":
		return OpXor, nil
	default:
		return 0, errors.Errorf("password: unknown charcode operation %q", s)
	}
}

func (o Operation) apply(code, operand int) int {
	switch o {
	case OpSub:
		return code - operand
	case OpXor:
		return code ^ operand
	default:
		return code + operand
	}
}

// CharCode rebuilds a password from an embedded string or a list of char
// codes, mapping each code through Op with Operand
type CharCode struct {
	Re        *regexp.Regexp
	From      string
	Op        Operation
	Operand   int
	Separator string
}

func (CharCode) Kind() string { return KindCharCode }

func (c CharCode) Locate(_ context.Context, src Source) (string, error) {
	raw, ok := capture(c.Re, src.text(c.From))
	if !ok {
		return "", ErrNotFound
	}

	var codes []int
	if c.Separator != "" {
		for _, part := range strings.Split(raw, c.Separator) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return "", errors.Wrapf(err, "password: char code %q", part)
			}
			codes = append(codes, n)
		}
	} else {
		for _, r := range raw {
			codes = append(codes, int(r))
		}
	}

	var b strings.Builder
	for _, code := range codes {
		v := c.Op.apply(code, c.Operand)
		if v < 0 || v > 0x10FFFF {
			return "", errors.Errorf("password: char code %d out of range", v)
		}
		b.WriteRune(rune(v))
	}
	return nonEmpty(b.String())
}

// SecondaryUnpack runs the packer reversal over a block of the page before
// capturing the password from the unpacked script
type SecondaryUnpack struct {
	Block *regexp.Regexp
	Re    *regexp.Regexp
	From  string
}

func (SecondaryUnpack) Kind() string { return KindUnpack }

func (s SecondaryUnpack) Locate(_ context.Context, src Source) (string, error) {
	text := src.text(s.From)
	if s.Block != nil {
		block, ok := capture(s.Block, text)
		if !ok {
			return "", ErrNotFound
		}
		text = block
	}

	unpacked := packer.Unpack(text)
	if unpacked == text {
		util.Debug("password: secondary block was not packed")
	}

	v, ok := capture(s.Re, unpacked)
	if !ok {
		return "", ErrNotFound
	}
	return nonEmpty(v)
}
