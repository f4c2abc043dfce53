package tokencrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"socialplane/pkg/config"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()

	cfg := &config.Config{SecretKey: strings.Repeat("ab", 32)}
	s, err := NewSealer(cfg)
	require.NoError(t, err)
	return s
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := newTestSealer(t)

	sealed, err := s.Seal("EAAG-long-lived-token")
	require.NoError(t, err)
	require.NotContains(t, sealed, "EAAG")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "EAAG-long-lived-token", plain)
}

func TestOpenRejectsGarbage(t *testing.T) {
	s := newTestSealer(t)

	_, err := s.Open("not-base64!!")
	require.ErrorIs(t, err, ErrBadCiphertext)

	sealed, err := s.Seal("token")
	require.NoError(t, err)

	tampered := "AAAA" + sealed[4:]
	_, err = s.Open(tampered)
	require.ErrorIs(t, err, ErrBadCiphertext)
}

func TestNewSealerRejectsShortKey(t *testing.T) {
	_, err := NewSealer(&config.Config{SecretKey: "abcd"})
	require.ErrorIs(t, err, ErrBadKey)
}
