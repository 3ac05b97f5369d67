package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/config"
)

// Identity token errors returned by Verify.
var (
	ErrInvalidToken = errors.New("invalid identity token")
	ErrExpiredToken = errors.New("identity token expired")
)

// identityClaims is the claim set carried by dispatch identity tokens.
type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IdentitySigner mints and verifies the OIDC-style identity tokens
// attached to queue dispatches, using HMAC-SHA signing. The callback
// surface verifies the same tokens to authenticate the queue's calls.
type IdentitySigner struct {
	signingKey     []byte
	serviceAccount string
	tokenLifetime  time.Duration
	clockSkew      time.Duration
	timeFunc       func() time.Time // Injectable for testing
}

// NewIdentitySigner creates an identity token signer for the configured
// service account.
func NewIdentitySigner(cfg config.QueueConfig) (*IdentitySigner, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, fmt.Errorf("queue signing key must be at least 32 characters")
	}

	return &IdentitySigner{
		signingKey:     []byte(cfg.SigningKey),
		serviceAccount: cfg.ServiceAccount,
		tokenLifetime:  15 * time.Minute,
		clockSkew:      2 * time.Minute,
		timeFunc:       time.Now,
	}, nil
}

// ServiceAccount returns the identity this signer mints tokens for.
func (s *IdentitySigner) ServiceAccount() string {
	return s.serviceAccount
}

// Sign mints an identity token for a call to the given audience URL.
func (s *IdentitySigner) Sign(audience string) (string, error) {
	now := s.timeFunc()

	claims := identityClaims{
		Email: s.serviceAccount,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.serviceAccount,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenLifetime)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign identity token: %w", err)
	}

	return signedToken, nil
}

// Verify validates an identity token for the given audience and returns
// the service account it was minted for.
func (s *IdentitySigner) Verify(tokenString, audience string) (string, error) {
	now := s.timeFunc()

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(audience),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&identityClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Email == "" {
		return "", fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}

	return claims.Email, nil
}
