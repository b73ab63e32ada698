package urlsign

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	signer := New("test-secret")
	now := time.Unix(1700000000, 0)

	signed := signer.Sign("http://localhost:8080/api/v1/projects/p/assets/a/download", now, 0)

	assert.Contains(t, signed, "?expiry=")
	assert.Contains(t, signed, "&signature=")
	assert.True(t, signer.Verify(signed, now))
	assert.True(t, signer.Verify(signed, now.Add(DefaultLease-time.Second)))
}

func TestVerifyExpiry(t *testing.T) {
	signer := New("test-secret")
	now := time.Unix(1700000000, 0)

	signed := signer.Sign("http://localhost:8080/download", now, 600*time.Second)

	// valid strictly before expiry, invalid at and after it
	assert.True(t, signer.Verify(signed, now.Add(599*time.Second)))
	assert.False(t, signer.Verify(signed, now.Add(600*time.Second)))
	assert.False(t, signer.Verify(signed, now.Add(601*time.Second)))
}

func TestVerifyRejectsMutations(t *testing.T) {
	signer := New("test-secret")
	now := time.Unix(1700000000, 0)

	signed := signer.Sign("http://localhost:8080/download/abc", now, 0)
	require.True(t, signer.Verify(signed, now))

	// every single-character mutation must fail verification
	for i := 0; i < len(signed); i++ {
		mutated := []byte(signed)
		if mutated[i] == 'x' {
			mutated[i] = 'y'
		} else {
			mutated[i] = 'x'
		}
		assert.False(t, signer.Verify(string(mutated), now), "mutation at index %d verified", i)
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	signer := New("test-secret")
	now := time.Unix(1700000000, 0)

	assert.False(t, signer.Verify("", now))
	assert.False(t, signer.Verify("http://localhost/download", now))
	assert.False(t, signer.Verify("http://localhost/download&signature=abc", now))

	// valid signature over a URL without an expiry parameter still fails
	unsigned := "http://localhost/download?foo=bar"
	forged := unsigned + "&signature=" + signer.token(unsigned)
	assert.False(t, signer.Verify(forged, now))
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	signed := New("secret-a").Sign("http://localhost/download", now, 0)
	assert.False(t, New("secret-b").Verify(signed, now))
}

func TestBase62RoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, 61, 62, 12345, 1700000600} {
		decoded, err := decodeBase62(encodeBase62(n))
		require.NoError(t, err)
		assert.Equal(t, n, decoded)
	}

	_, err := decodeBase62("not*valid")
	assert.Error(t, err)
	_, err = decodeBase62("")
	assert.Error(t, err)
}

func TestSignURLWithQuery(t *testing.T) {
	signer := New("test-secret")
	now := time.Unix(1700000000, 0)

	signed := signer.Sign("http://localhost/download?kind=image", now, 0)
	assert.True(t, strings.Contains(signed, "?kind=image&expiry="))
	assert.True(t, signer.Verify(signed, now))
}
