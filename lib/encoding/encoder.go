// Package encoding seals small values (field references, cache keys) into
// URL-safe strings. Values are serialized with msgpack and then either signed
// or encrypted with a key shared by the host.
package encoding

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Errors returned by Decode.
var (
	ErrInvalidFormat    = errors.New("encoding: invalid format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: decryption failed")
)

// Encoder seals values with one key, either signed (HMAC-SHA256, readable)
// or encrypted (AES-256-GCM, opaque).
type Encoder struct {
	key []byte
	gcm cipher.AEAD
}

// NewEncoder creates a new encoder with the given key.
// Keys shorter than 32 bytes are stretched with SHA-256.
func NewEncoder(key []byte) (*Encoder, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encoder{key: key, gcm: gcm}, nil
}

// Marshal serializes v with msgpack using sorted map keys, so equal values
// always produce equal bytes.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Fingerprint returns a short stable hex digest of v.
func Fingerprint(v any) (string, error) {
	packed, err := Marshal(v)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(packed)
	return hex.EncodeToString(h[:12]), nil
}

// Encode seals v. Sensitive values are encrypted; all others are signed,
// which keeps them readable but tamper-proof.
func (e *Encoder) Encode(v any, sensitive bool) (string, error) {
	packed, err := Marshal(v)
	if err != nil {
		return "", err
	}
	if sensitive {
		return e.encrypt(packed)
	}
	return e.sign(packed), nil
}

// Decode opens a string produced by Encode with the same sensitive flag and
// unpacks it into v, which must be a pointer.
func (e *Encoder) Decode(encoded string, sensitive bool, v any) error {
	open := e.verify
	if sensitive {
		open = e.decrypt
	}
	packed, err := open(encoded)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(packed, v); err != nil {
		return ErrInvalidFormat
	}
	return nil
}

// sigLen is the truncated HMAC-SHA256 length (128 bits).
const sigLen = 16

var b64 = base64.RawURLEncoding

func (e *Encoder) mac(data []byte) []byte {
	m := hmac.New(sha256.New, e.key)
	m.Write(data)
	return m.Sum(nil)[:sigLen]
}

// sign produces "<payload>.<signature>".
func (e *Encoder) sign(data []byte) string {
	return b64.EncodeToString(data) + "." + b64.EncodeToString(e.mac(data))
}

func (e *Encoder) verify(encoded string) ([]byte, error) {
	payload, sig, ok := strings.Cut(encoded, ".")
	if !ok {
		return nil, ErrInvalidFormat
	}
	data, err := b64.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	got, err := b64.DecodeString(sig)
	if err != nil || !hmac.Equal(got, e.mac(data)) {
		return nil, ErrSignatureInvalid
	}
	return data, nil
}

// encrypt produces the base64 of nonce followed by the AES-GCM ciphertext.
func (e *Encoder) encrypt(data []byte) (string, error) {
	n := e.gcm.NonceSize()
	nonce := make([]byte, n, n+len(data)+e.gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return b64.EncodeToString(e.gcm.Seal(nonce, nonce, data, nil)), nil
}

func (e *Encoder) decrypt(encoded string) ([]byte, error) {
	raw, err := b64.DecodeString(encoded)
	n := e.gcm.NonceSize()
	if err != nil || len(raw) < n {
		return nil, ErrInvalidFormat
	}
	plain, err := e.gcm.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
