package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jensholdgaard/player-auction/internal/clock"
)

var (
	errMalformedSession = errors.New("malformed session token")
	errBadSignature     = errors.New("session signature mismatch")
	errWrongTournament  = errors.New("session issued for another tournament")
	errExpiredSession   = errors.New("session expired")
)

// Sessions issues and verifies short-lived session tokens. A token is
// "<payload>.<mac>" where payload is the base64url of "slug|unix-expiry"
// and mac is its HMAC-SHA256 under the server secret.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewSessions returns a Sessions signing with secret.
func NewSessions(secret []byte, ttl time.Duration, clk clock.Clock) *Sessions {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Sessions{secret: secret, ttl: ttl, clock: clk}
}

// Issue returns a token for slug and its expiry.
func (s *Sessions) Issue(slug string) (string, time.Time) {
	exp := s.clock.Now().Add(s.ttl).Truncate(time.Second)
	payload := base64.RawURLEncoding.EncodeToString([]byte(slug + "|" + strconv.FormatInt(exp.Unix(), 10)))
	return payload + "." + s.sign(payload), exp
}

// Verify checks that token is authentic, unexpired and issued for slug.
func (s *Sessions) Verify(token, slug string) error {
	payload, mac, ok := strings.Cut(token, ".")
	if !ok || payload == "" || mac == "" {
		return errMalformedSession
	}
	if !hmac.Equal([]byte(mac), []byte(s.sign(payload))) {
		return errBadSignature
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return errMalformedSession
	}
	gotSlug, expStr, ok := strings.Cut(string(raw), "|")
	if !ok {
		return errMalformedSession
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return errMalformedSession
	}
	if gotSlug != slug {
		return errWrongTournament
	}
	if !s.clock.Now().Before(time.Unix(exp, 0)) {
		return errExpiredSession
	}
	return nil
}

func (s *Sessions) sign(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
