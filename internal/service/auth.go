package service

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	tokenTTL = 24 * time.Hour

	// AuthCookieName is the cookie that carries the auth token for browser clients.
	AuthCookieName = "auth_token"
)

type AuthService interface {
	GenerateToken(userID int64) (string, error)
	ParseToken(token string) (int64, error)
}

type authServiceImpl struct {
	secretKey []byte
	now       func() time.Time
}

func NewAuthService(secretKey string) AuthService {
	return &authServiceImpl{
		secretKey: []byte(secretKey),
		now:       time.Now,
	}
}

func (that *authServiceImpl) GenerateToken(userID int64) (string, error) {
	now := that.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(that.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ParseToken - validates an HS256 token and returns the user id in its subject.
func (that *authServiceImpl) ParseToken(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return that.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(that.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}

	return userID, nil
}

// TokenFromRequest - returns the auth token from the cookie, the Authorization header or the token query parameter.
func TokenFromRequest(req *http.Request) string {
	if cookie, err := req.Cookie(AuthCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if header := req.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return req.URL.Query().Get("token")
}
