package auth

import (
	"errors"
	"fmt"
	"time"

	"pasar/internal/apperrors"

	"github.com/dgrijalva/jwt-go"
)

// DefaultTokenTTL is how long an issued credential stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Claims is the payload embedded in every issued token.
type Claims struct {
	jwt.StandardClaims
	UserID     string `json:"user_id"`
	ClientType string `json:"client_type"`
}

// Authority mints and verifies bearer credentials. It holds one signing secret
// per client type, so a mobile-issued token can never verify against the web
// secret and vice versa.
type Authority struct {
	secrets map[ClientType][]byte
	ttl     time.Duration
}

// NewAuthority creates an Authority from the two per-channel secrets. Both
// secrets must be configured; a missing one is a startup configuration error.
// A zero ttl falls back to DefaultTokenTTL; a negative ttl is honored as-is
// and mints already-expired tokens.
func NewAuthority(webSecret, mobileSecret string, ttl time.Duration) (*Authority, error) {
	if webSecret == "" {
		return nil, fmt.Errorf("web token secret is not configured")
	}
	if mobileSecret == "" {
		return nil, fmt.Errorf("mobile token secret is not configured")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &Authority{
		secrets: map[ClientType][]byte{
			ClientWeb:    []byte(webSecret),
			ClientMobile: []byte(mobileSecret),
		},
		ttl: ttl,
	}, nil
}

// Issue signs a credential for the given user, scoped to the given client
// type. The caller is responsible for having authenticated the user first.
func (a *Authority) Issue(userID string, ct ClientType) (string, error) {
	secret, ok := a.secrets[ct]
	if !ok {
		return "", fmt.Errorf("no signing secret for client type %q", ct)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.ttl).Unix(),
		},
		UserID:     userID,
		ClientType: string(ct),
	})

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify checks a token against the secret for the declared client type and
// rejects it if the embedded client type disagrees with the declared one.
// Key separation already makes cross-channel replay fail the signature check;
// the embedded-claim comparison stays as a second line of defense.
func (a *Authority) Verify(tokenString string, declared ClientType) (*Claims, error) {
	secret, ok := a.secrets[declared]
	if !ok {
		return nil, apperrors.Authentication("unknown client type %q", declared)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, apperrors.Wrap(apperrors.KindAuthentication, err, "token has expired")
		}
		return nil, apperrors.Wrap(apperrors.KindAuthentication, err, "invalid token")
	}
	if !token.Valid {
		return nil, apperrors.Authentication("invalid token")
	}

	if ClientType(claims.ClientType) != declared {
		return nil, apperrors.Authentication("token was issued for a different client type")
	}

	return claims, nil
}
