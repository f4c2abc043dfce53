package tokencrypt

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"socialplane/pkg/config"

	"go.uber.org/fx"
	"golang.org/x/crypto/nacl/secretbox"
)

// Sealer seals and opens platform access tokens stored at rest. Social
// account rows never hold a plaintext token.
type Sealer struct {
	key [32]byte
}

var Module = fx.Module("tokencrypt",
	fx.Provide(NewSealer),
)

var (
	ErrBadKey        = errors.New("tokencrypt: key must be 32 bytes of hex")
	ErrBadCiphertext = errors.New("tokencrypt: malformed or tampered ciphertext")
)

func NewSealer(cfg *config.Config) (*Sealer, error) {
	raw, err := hex.DecodeString(cfg.SecretKey)
	if err != nil || len(raw) != 32 {
		return nil, ErrBadKey
	}

	var s Sealer
	copy(s.key[:], raw)
	return &s, nil
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < 24 {
		return "", ErrBadCiphertext
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return "", ErrBadCiphertext
	}
	return string(plain), nil
}
