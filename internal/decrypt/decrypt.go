// Package decrypt handles OpenSSL-compatible salted AES-CBC payloads
// ("Salted__" + salt + ciphertext, key and IV derived with EVP_BytesToKey/MD5).
package decrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	saltMagic = "Salted__"
	saltLen   = 8

	// DefaultKeySize selects AES-256, which is what openssl enc uses unless told otherwise
	DefaultKeySize = 32
)

// Payload is a base64 ciphertext. When Salt is nil the salt is read from the
// "Salted__" header inside the ciphertext; otherwise Salt is used and the
// ciphertext carries no header.
type Payload struct {
	Ciphertext string
	Salt       []byte
}

// Options tunes key derivation for sites that do not use AES-256
type Options struct {
	// KeySize is the AES key length in bytes: 16, 24 or 32. Zero means DefaultKeySize.
	KeySize int
}

func (o Options) keySize() (int, error) {
	switch o.KeySize {
	case 0:
		return DefaultKeySize, nil
	case 16, 24, 32:
		return o.KeySize, nil
	default:
		return 0, errors.Errorf("decrypt: unsupported key size %d", o.KeySize)
	}
}

// DeriveKey implements OpenSSL's EVP_BytesToKey with MD5 and a single round:
// D0 = MD5(password || salt), Dn = MD5(Dn-1 || password || salt).
func DeriveKey(password, salt []byte, keyLen, ivLen int) (key, iv []byte) {
	total := keyLen + ivLen
	derived := make([]byte, 0, total+md5.Size)
	var prev []byte
	for len(derived) < total {
		h := md5.New()
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen:total]
}

// Decrypt decrypts p with AES-256-CBC
func Decrypt(p Payload, password string) (string, error) {
	return DecryptWithOptions(p, password, Options{})
}

// DecryptWithOptions decrypts p and returns the plaintext as UTF-8 text
func DecryptWithOptions(p Payload, password string, opts Options) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	keyLen, err := opts.keySize()
	if err != nil {
		return "", err
	}

	raw, err := DecodeBase64(p.Ciphertext)
	if err != nil {
		return "", newError(KindBadEncoding, "ciphertext is not base64", err)
	}

	salt := p.Salt
	data := raw
	if salt == nil {
		if len(raw) < len(saltMagic)+saltLen || string(raw[:len(saltMagic)]) != saltMagic {
			return "", newError(KindMissingSaltMagic, "ciphertext does not start with "+saltMagic, nil)
		}
		salt = raw[len(saltMagic) : len(saltMagic)+saltLen]
		data = raw[len(saltMagic)+saltLen:]
	} else if len(salt) != saltLen {
		return "", newError(KindBadLength, "salt must be 8 bytes", nil)
	}

	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", newError(KindBadLength, "ciphertext is not a multiple of the block size", nil)
	}

	key, iv := DeriveKey([]byte(password), salt, keyLen, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "decrypt: failed to create cipher")
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	plain, err = unpad(plain)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", newError(KindTextDecode, "plaintext is not valid UTF-8", nil)
	}
	return string(plain), nil
}

// Encrypt produces a payload that Decrypt accepts. With embedSalt the salt is
// written into the ciphertext after the "Salted__" marker; otherwise it is
// returned separately in Payload.Salt. A nil salt is replaced with a random one.
func Encrypt(plaintext, password string, salt []byte, embedSalt bool, opts Options) (Payload, error) {
	if password == "" {
		return Payload{}, ErrEmptyPassword
	}
	keyLen, err := opts.keySize()
	if err != nil {
		return Payload{}, err
	}
	if salt == nil {
		salt = make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return Payload{}, errors.Wrap(err, "decrypt: failed to generate salt")
		}
	}
	if len(salt) != saltLen {
		return Payload{}, errors.Errorf("decrypt: salt must be %d bytes, got %d", saltLen, len(salt))
	}

	key, iv := DeriveKey([]byte(password), salt, keyLen, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return Payload{}, errors.Wrap(err, "decrypt: failed to create cipher")
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	if !embedSalt {
		return Payload{
			Ciphertext: base64.StdEncoding.EncodeToString(out),
			Salt:       append([]byte(nil), salt...),
		}, nil
	}

	var buf bytes.Buffer
	buf.WriteString(saltMagic)
	buf.Write(salt)
	buf.Write(out)
	return Payload{Ciphertext: base64.StdEncoding.EncodeToString(buf.Bytes())}, nil
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding and rejects anything inconsistent
func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, newError(KindBadPadding, "no data", nil)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, newError(KindBadPadding, "invalid padding length", nil)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, newError(KindBadPadding, "inconsistent padding bytes", nil)
		}
	}
	return data[:len(data)-n], nil
}

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBase64 accepts standard and URL alphabets, padded or not, and
// ignores embedded whitespace
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, errors.New("empty input")
	}
	var err error
	for _, enc := range encodings {
		var out []byte
		if out, err = enc.DecodeString(s); err == nil {
			return out, nil
		}
	}
	return nil, err
}
