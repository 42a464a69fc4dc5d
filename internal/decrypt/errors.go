package decrypt

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why a payload could not be decrypted
type Kind string

const (
	KindBadEncoding      Kind = "BAD_ENCODING"
	KindMissingSaltMagic Kind = "MISSING_SALT_MAGIC"
	KindBadLength        Kind = "BAD_LENGTH"
	KindBadPadding       Kind = "BAD_PADDING"
	KindTextDecode       Kind = "TEXT_DECODE_FAILED"
)

// ErrEmptyPassword is returned when Decrypt or Encrypt is called without a password.
// Callers are expected to resolve a password before getting here.
var ErrEmptyPassword = errors.New("decrypt: empty password")

// Error is the failure value for a payload that cannot be turned into text
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("decrypt: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err carries a decrypt failure of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
