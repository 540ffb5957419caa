package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/pkg/logger"
)

// StreamScope is the scope required to open a media stream socket.
const StreamScope = "ws"

// claims are the payload of a stream access token.
type claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the short-lived HS256 tokens that gate the
// stream endpoint. Verification is side-effect free; there is no revocation
// list, tokens are simply short-lived.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
	logger     *logger.Logger
}

// NewTokenIssuer creates a new token issuer from the auth configuration
func NewTokenIssuer(cfg *config.AuthConfig, log *logger.Logger) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		defaultTTL: cfg.TokenTTLDuration(),
		logger:     log.Named("token-issuer"),
	}
}

// Issue produces a signed token expiring after ttl. A non-positive ttl uses
// the configured default.
func (t *TokenIssuer) Issue(ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Scopes: []string{StreamScope},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify reports whether the token is well-formed, signed with our secret,
// unexpired, and carries the stream scope. It never returns an error:
// malformed, tampered and expired tokens all read as invalid.
func (t *TokenIssuer) Verify(tokenString string) bool {
	if tokenString == "" {
		return false
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		t.logger.Debug("Token verification failed", logger.Error(err))
		return false
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return false
	}

	for _, s := range c.Scopes {
		if s == StreamScope {
			return true
		}
	}

	t.logger.Debug("Token missing stream scope")
	return false
}
