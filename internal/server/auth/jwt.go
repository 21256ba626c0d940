// Package auth mints and verifies the signed access/refresh token pair and
// moves it between HTTP requests/responses as httpOnly cookies.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/cookieauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens. A token of one
// kind is never accepted where the other is required.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims are the registered claims plus the token kind. Subject carries the
// decimal user id.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenKind `json:"type"`
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer signs tokens with HS256 using a single server secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer with the given secret and lifetimes.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (i *Issuer) IssueAccessToken(userID int64) (string, error) {
	return i.issue(userID, KindAccess, i.accessTTL)
}

func (i *Issuer) IssueRefreshToken(userID int64) (string, error) {
	return i.issue(userID, KindRefresh, i.refreshTTL)
}

// IssuePair mints both tokens for userID.
func (i *Issuer) IssuePair(userID int64) (*TokenPair, error) {
	access, err := i.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := i.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyToken checks signature, algorithm, expiry and kind, and returns the
// user id the token was issued for. Expired tokens yield common.ErrTokenExpired;
// every other failure yields common.ErrInvalidToken.
func (i *Issuer) VerifyToken(tokenString string, kind TokenKind) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, common.ErrInvalidToken
	}

	if !token.Valid || claims.Type != kind {
		return 0, common.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrInvalidToken
	}

	return userID, nil
}

func (i *Issuer) issue(userID int64, kind TokenKind, ttl time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: kind,
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
