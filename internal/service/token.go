package service

import (
	"errors"
	"fmt"
	"time"

	"agroai/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errMissingClaims = errors.New("token is missing subject or id")

// TokenManager issues and verifies HS256 identity tokens. Verification is a pure
// function of the token, the clock and the signing key.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret []byte, ttl time.Duration, issuer string) *TokenManager {
	return &TokenManager{secret: secret, ttl: ttl, issuer: issuer, now: time.Now}
}

// Issue returns a signed token whose subject is email.
func (m *TokenManager) Issue(email string) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)

	claims := &models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    m.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, algorithm, issuer and expiry and returns the claims.
func (m *TokenManager) Parse(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errMissingClaims
	}
	return claims, nil
}
