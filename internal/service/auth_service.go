package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = time.Hour
	operatorSubject = "operator"
)

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrAuthDisabled    = errors.New("operator auth is not configured")
	ErrInvalidToken    = errors.New("invalid token")
)

// AuthService issues and checks operator tokens. There is a single operator
// identity whose bcrypt password hash comes from configuration.
type AuthService struct {
	passwordHash string
	signingKey   []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthService(passwordHash, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{
		passwordHash: strings.TrimSpace(passwordHash),
		signingKey:   []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GenerateToken validates the operator password and returns a JWT.
func (s *AuthService) GenerateToken(password string) (string, error) {
	if s.passwordHash == "" || len(s.signingKey) == 0 {
		return "", ErrAuthDisabled
	}
	if err := verifyPassword(s.passwordHash, password); err != nil {
		return "", ErrInvalidPassword
	}
	return s.issueToken()
}

// ParseToken validates the JWT and returns its subject.
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	if len(s.signingKey) == 0 {
		return "", ErrAuthDisabled
	}
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject != operatorSubject {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// HashPassword produces the bcrypt hash expected in auth.operator_password_hash.
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) issueToken() (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: operatorSubject,
	})
	return token.SignedString(s.signingKey)
}
