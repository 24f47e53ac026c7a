package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RolePegger Role = "pegger"
)

// Principal is an authenticated writer identity.
type Principal struct {
	Subject string
	Role    Role
}

// QuotaExempt reports whether the principal bypasses the per-admin write
// quota. The pegger is exempt but still goes through the same serialized
// write path, so ordering and audit stay consistent.
func (p Principal) QuotaExempt() bool {
	return p.Role == RolePegger
}

// PeggerPrincipal is the synthetic identity used by automated ingestion.
var PeggerPrincipal = Principal{Subject: models.ActorPegger, Role: RolePegger}

// Claims is the JWT payload minted at login.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator mints and verifies admin tokens.
type Authenticator struct {
	jwtSecret   []byte
	adminSecret []byte
	tokenTTL    time.Duration
}

func NewAuthenticator(jwtSecret, adminSecret string, tokenTTL time.Duration) *Authenticator {
	return &Authenticator{
		jwtSecret:   []byte(jwtSecret),
		adminSecret: []byte(adminSecret),
		tokenTTL:    tokenTTL,
	}
}

// Login checks the shared admin secret and mints a bounded-expiry token.
// Every failure maps to the same ErrUnauthenticated so the response does
// not reveal which check rejected the caller.
func (a *Authenticator) Login(user, password string) (string, error) {
	if password == "" || subtle.ConstantTimeCompare([]byte(password), a.adminSecret) != 1 {
		return "", models.ErrUnauthenticated
	}
	if user == "" {
		user = "ops"
	}

	now := time.Now()
	claims := Claims{
		Role: string(RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Authenticate verifies a "Bearer <token>" Authorization header and returns
// the admin principal. Missing, malformed, expired and badly signed tokens
// all yield ErrUnauthenticated.
func (a *Authenticator) Authenticate(authHeader string) (Principal, error) {
	raw, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || raw == "" {
		return Principal{}, models.ErrUnauthenticated
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Principal{}, models.ErrUnauthenticated
	}
	if claims.Role != string(RoleAdmin) {
		return Principal{}, models.ErrUnauthenticated
	}
	return Principal{Subject: claims.Subject, Role: RoleAdmin}, nil
}
