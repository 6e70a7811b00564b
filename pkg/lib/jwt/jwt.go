package jwt

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrNoAccessToken = errors.New("no access token")
	ErrWrongKind     = errors.New("token of the wrong kind")
	ErrNoSecret      = errors.New("jwt secret is empty")
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// CustomClaims carries the opaque user id and whether the token is an access or a refresh token.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// Manager signs and validates HS256 tokens with one secret.
type Manager struct {
	secret        []byte
	accessExpire  time.Duration
	refreshExpire time.Duration
	now           func() time.Time
}

func NewManager(secret string, accessExpire, refreshExpire time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Manager{
		secret:        []byte(secret),
		accessExpire:  accessExpire,
		refreshExpire: refreshExpire,
		now:           time.Now,
	}, nil
}

// WithClock replaces the time source, tests only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) GenerateAccessToken(userID string) (string, error) {
	return m.generate(userID, KindAccess, m.accessExpire)
}

func (m *Manager) GenerateRefreshToken(userID string) (string, error) {
	return m.generate(userID, KindRefresh, m.refreshExpire)
}

func (m *Manager) generate(userID, kind string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &CustomClaims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) ValidateAccessToken(tokenStr string) (*CustomClaims, error) {
	return m.validate(tokenStr, KindAccess)
}

func (m *Manager) ValidateRefreshToken(tokenStr string) (*CustomClaims, error) {
	return m.validate(tokenStr, KindRefresh)
}

func (m *Manager) validate(tokenStr, kind string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// ExtractJWTFromHeader reads "Authorization: Bearer <token>".
func ExtractJWTFromHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")

	if authHeader == "" {
		return "", ErrNoAccessToken
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrInvalidToken
	}

	return authHeader[7:], nil
}

// ExtractJWT falls back to the "token" query parameter, which browsers need for websockets.
func ExtractJWT(r *http.Request) (string, error) {
	tokenStr, err := ExtractJWTFromHeader(r)
	if errors.Is(err, ErrNoAccessToken) {
		if q := r.URL.Query().Get("token"); q != "" {
			return q, nil
		}
	}
	return tokenStr, err
}
