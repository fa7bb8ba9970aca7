package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
)

var signingMethod = jwt.SigningMethodHS256

// ErrInvalidToken is returned for any token that does not verify.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the access token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens issued by the account service.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier for the shared secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Parse validates the token and returns the actor it names.
func (v *Verifier) Parse(token string) (domain.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.Actor{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return domain.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return domain.Actor{ID: id, Role: role}, nil
}

// Mint signs a token for the actor. Tokens are issued by the account service;
// this is used by tests and local tooling.
func Mint(secret string, actor domain.Actor, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

type ctxKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom returns the authenticated actor.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(domain.Actor)
	return a, ok
}

// Middleware rejects requests without a valid bearer token.
func Middleware(v *Verifier, logger logx.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logx.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				unauthorized(w, logger, r, "missing bearer token")
				return
			}
			actor, err := v.Parse(strings.TrimSpace(token))
			if err != nil {
				logger.Debug("token rejected", logx.String("path", r.URL.Path), logx.Err(err))
				unauthorized(w, logger, r, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter, logger logx.Logger, r *http.Request, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="palmshell"`)
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := io.WriteString(w, `{"error":"`+msg+`","kind":"unauthenticated"}`); err != nil {
		logger.Debug("auth response write failed", logx.String("path", r.URL.Path), logx.Err(err))
	}
}
