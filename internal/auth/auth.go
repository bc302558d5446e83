// Package auth хэширует пароли клиентов и выпускает bearer-токены.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// DefaultTokenTTL - время жизни токена по умолчанию.
const DefaultTokenTTL = 30 * time.Minute

var (
	// ErrNegativeTTL - запрошено отрицательное время жизни токена.
	ErrNegativeTTL = errors.New("expires delta is less than zero")
	// ErrInvalidToken - токен не прошёл проверку подписи или истёк.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSubject - в токене нет имени клиента.
	ErrNoSubject = errors.New("no username in token")
)

// BcryptHasher реализует domain.PasswordHasher на bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher возвращает хэшер; cost вне допустимого диапазона заменяется на bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var _ domain.PasswordHasher = (*BcryptHasher)(nil)

// TokenIssuer выпускает и проверяет HS256-токены с именем клиента в sub.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт издателя токенов.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl < 0 {
		return nil, ErrNegativeTTL
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue выпускает токен для клиента name.
func (i *TokenIssuer) Issue(name string) (string, error) {
	return i.IssueWithTTL(name, i.ttl)
}

// IssueWithTTL выпускает токен с явным временем жизни.
func (i *TokenIssuer) IssueWithTTL(name string, ttl time.Duration) (string, error) {
	if ttl < 0 {
		return "", ErrNegativeTTL
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   name,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse проверяет токен и возвращает имя клиента.
func (i *TokenIssuer) Parse(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}
