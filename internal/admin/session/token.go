package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"github.com/smallbiznis/grievance-portal/internal/clock"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"go.uber.org/zap"
)

const (
	DefaultTTL = 24 * time.Hour
	issuer     = "grievance-portal"
)

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and parses HS256 admin session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokens(secret []byte, ttl time.Duration, clk clock.Clock) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, domain.ErrSessionSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Tokens{secret: secret, ttl: ttl, clock: clk}, nil
}

// ProvideTokens builds Tokens from SESSION_SECRET. Outside production a
// missing secret is replaced by a random one, which invalidates sessions on
// every restart.
func ProvideTokens(cfg config.Config, clk clock.Clock, log *zap.Logger) (*Tokens, error) {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		if cfg.IsProduction() {
			return nil, domain.ErrSessionSecret
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		log.Warn("SESSION_SECRET not set, using an ephemeral secret")
	}
	return NewTokens(secret, DefaultTTL, clk)
}

func (t *Tokens) Issue(admin *domain.AdminUser) (string, time.Time, error) {
	now := t.clock.Now()
	expiresAt := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: admin.Email,
		Role:  admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   admin.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (t *Tokens) Parse(raw string) (*domain.Principal, error) {
	if raw == "" {
		return nil, domain.ErrUnauthenticated
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, domain.ErrInvalidSession
	}
	return &domain.Principal{
		AdminID:   snowflake.ID(id),
		Email:     c.Email,
		Role:      c.Role,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
