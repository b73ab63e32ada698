package urlsign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Signer issues and verifies time-limited download URLs. The signature covers
// the full URL including the expiry parameter, so any mutation of path or
// expiry invalidates it. The secret lives in the process and never appears in
// the URL.
type Signer struct {
	secret []byte
}

const (
	// separator between the signed portion of the URL and the signature token
	separator = "&signature="

	expiryParam = "expiry="

	// DefaultLease is how long an issued URL stays valid.
	DefaultLease = 600 * time.Second
)

func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign appends an expiry parameter and a signature token to rawURL.
// A lease <= 0 falls back to DefaultLease.
func (s *Signer) Sign(rawURL string, now time.Time, lease time.Duration) string {
	if lease <= 0 {
		lease = DefaultLease
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	unsigned := fmt.Sprintf("%s%s%s%s", rawURL, sep, expiryParam, encodeBase62(now.Add(lease).Unix()))
	return unsigned + separator + s.token(unsigned)
}

// Verify reports whether signedURL carries a valid signature and has not
// expired at now. It fails closed: a missing or garbled signature, a missing
// or undecodable expiry, and an expiry at or before now all return false.
func (s *Signer) Verify(signedURL string, now time.Time) bool {
	i := strings.LastIndex(signedURL, separator)
	if i < 0 {
		return false
	}
	unsigned := signedURL[:i]
	token := signedURL[i+len(separator):]

	expected := s.token(unsigned)
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return false
	}

	j := strings.LastIndex(unsigned, expiryParam)
	if j < 0 {
		return false
	}
	expiry, err := decodeBase62(unsigned[j+len(expiryParam):])
	if err != nil {
		return false
	}
	return now.Unix() < expiry
}

func (s *Signer) token(unsigned string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(unsigned))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func encodeBase62(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [11]byte // enough for any positive int64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base62Alphabet[n%62]
		n /= 62
	}
	return string(buf[i:])
}

func decodeBase62(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty base62 value")
	}
	var n int64
	for _, c := range []byte(s) {
		d := strings.IndexByte(base62Alphabet, c)
		if d < 0 {
			return 0, fmt.Errorf("invalid base62 character %q", c)
		}
		n = n*62 + int64(d)
	}
	return n, nil
}
