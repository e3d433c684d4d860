package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignQuery_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	s := NewSigner("Jefe")

	sig, err := s.SignQuery("what do ya want for nothing?")
	require.NoError(t, err)
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", sig)
}

func TestSignQuery_Deterministic(t *testing.T) {
	s := NewSigner("secret")

	first, err := s.SignQuery("symbol=BTCUSDT&side=BUY&timestamp=1700000000000")
	require.NoError(t, err)
	second, err := s.SignQuery("symbol=BTCUSDT&side=BUY&timestamp=1700000000000")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestSignQuery_EmptySecret(t *testing.T) {
	s := NewSigner("")

	_, err := s.SignQuery("symbol=BTCUSDT")
	assert.ErrorIs(t, err, ErrEmptySecret)
	assert.False(t, s.Configured())
}

func TestSigner_StringRedacts(t *testing.T) {
	s := NewSigner("supersecretvalue")

	out := s.String()
	assert.NotContains(t, out, "supersecretvalue")
	assert.Contains(t, out, "supe")
}

func TestEncryptDecryptSecret_RoundTrip(t *testing.T) {
	blob, err := EncryptSecret("binance-api-secret", "hunter2")
	require.NoError(t, err)

	got, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "binance-api-secret", got)

	_, err = DecryptSecret(blob, "wrong-password")
	assert.Error(t, err)
}
