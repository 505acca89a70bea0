// Package auth decides whether a request may act as a tournament's
// administrator. Three credentials are accepted: a session token issued by
// this service, the tournament's master-recovery token, or its PIN. Only
// hashes of the recovery token and PIN are ever stored.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/ratelimit"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// Method names the credential that authorized a request.
type Method string

const (
	MethodSession  Method = "session"
	MethodRecovery Method = "recovery"
	MethodPIN      Method = "pin"
)

var (
	ErrCredentialsRequired = apperr.Unauthorized("AUTH_REQUIRED", "credentials required")
	ErrInvalidCredentials  = apperr.Unauthorized("INVALID_CREDENTIALS", "invalid credentials")
	ErrSessionExpired      = apperr.Unauthorized("SESSION_EXPIRED", "session expired")
	ErrTooManyAttempts     = apperr.RateLimited("TOO_MANY_AUTH_ATTEMPTS", "too many authentication attempts, try again later")
)

// Credentials are the secrets presented with a request.
type Credentials struct {
	Bearer        string
	RecoveryToken string
	PIN           string
	// ClientIP keys the attempt limiter.
	ClientIP string
}

// Empty reports whether no credential was presented.
func (c Credentials) Empty() bool {
	return c.Bearer == "" && c.RecoveryToken == "" && c.PIN == ""
}

// Authorizer checks Credentials against a tournament.
type Authorizer struct {
	sessions *Sessions
	attempts ratelimit.Limiter
	logger   *slog.Logger
}

// NewAuthorizer returns an Authorizer. attempts bounds PIN and recovery
// token guesses per tournament and client; nil disables the bound.
func NewAuthorizer(sessions *Sessions, attempts ratelimit.Limiter, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{sessions: sessions, attempts: attempts, logger: logger}
}

// Sessions returns the session issuer.
func (a *Authorizer) Sessions() *Sessions { return a.sessions }

// Authorize returns the method that authorized c for t, or an
// Unauthorized or RateLimited error.
func (a *Authorizer) Authorize(ctx context.Context, t *tournament.Tournament, c Credentials) (Method, error) {
	if c.Empty() {
		return "", ErrCredentialsRequired
	}

	var sessionErr error
	if c.Bearer != "" {
		sessionErr = a.sessions.Verify(c.Bearer, t.Slug)
		if sessionErr == nil {
			return MethodSession, nil
		}
	}

	if c.RecoveryToken == "" && c.PIN == "" {
		if errors.Is(sessionErr, errExpiredSession) {
			return "", ErrSessionExpired
		}
		return "", ErrInvalidCredentials
	}

	if a.attempts != nil {
		ok, err := a.attempts.Allow(ctx, t.Slug+"|"+c.ClientIP)
		if err != nil {
			return "", fmt.Errorf("checking auth attempt budget: %w", err)
		}
		if !ok {
			a.logger.WarnContext(ctx, "auth attempts exhausted",
				slog.String("tournament", t.Slug),
				slog.String("client_ip", c.ClientIP),
			)
			return "", ErrTooManyAttempts
		}
	}

	if c.RecoveryToken != "" && VerifyRecoveryToken(c.RecoveryToken, t.RecoveryTokenHash) {
		return MethodRecovery, nil
	}
	if c.PIN != "" && t.PINHash != "" && VerifyPIN(c.PIN, t.PINHash) {
		return MethodPIN, nil
	}

	a.logger.InfoContext(ctx, "rejected credentials",
		slog.String("tournament", t.Slug),
		slog.String("client_ip", c.ClientIP),
	)
	return "", ErrInvalidCredentials
}
