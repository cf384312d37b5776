// ABOUTME: JWT bearer tokens for authenticating API requests
// ABOUTME: Uses HS256 signing; each token is bound to a server-side session

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrShortSecret  = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

// Claims are the identity fields carried by a token.
type Claims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrShortSecret
	}
	return &JWTVerifier{secret: secret}, nil
}

// Verify validates the token and extracts the user and session from the "sub" and "sid" claims
func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return nil, fmt.Errorf("%w: sid", ErrMissingClaim)
	}

	out := &Claims{UserID: sub, SessionID: sid}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// Generate creates a new JWT for the given user and session with expiration
func (v *JWTVerifier) Generate(userID, sessionID string, expiresIn time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		"sub": userID,
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, time.Unix(expiresAt.Unix(), 0), nil
}
