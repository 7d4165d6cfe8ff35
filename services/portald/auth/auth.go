package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const contextKeyCaller contextKey = "portal_caller"

var (
	// ErrMissingToken is returned when the request carries no bearer token.
	ErrMissingToken = errors.New("auth: bearer token required")
	// ErrInvalidSubject is returned when the sub claim is not an address.
	ErrInvalidSubject = errors.New("auth: token subject is not an address")
)

// Options controls token signing and verification.
type Options struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Verifier validates HS256 bearer tokens whose subject is the caller's
// address.
type Verifier struct {
	opts Options
	now  func() time.Time
}

// NewVerifier constructs a verifier. The secret must be at least 32 bytes.
func NewVerifier(opts Options) (*Verifier, error) {
	if len(opts.Secret) < 32 {
		return nil, fmt.Errorf("auth: signing secret must be at least 32 bytes")
	}
	if strings.TrimSpace(opts.Issuer) == "" {
		return nil, fmt.Errorf("auth: issuer required")
	}
	return &Verifier{opts: opts, now: time.Now}, nil
}

// SetNowFunc overrides the clock used to validate expiry.
func (v *Verifier) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	v.now = now
}

// Verify parses token and returns the caller address it was issued for.
func (v *Verifier) Verify(token string) (ethcommon.Address, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.opts.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	}
	if v.opts.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.opts.Audience))
	}
	if v.opts.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(v.opts.Leeway))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.opts.Secret, nil
	}, opts...)
	if err != nil {
		return ethcommon.Address{}, err
	}
	if !parsed.Valid {
		return ethcommon.Address{}, errors.New("auth: token validation failed")
	}
	subject := strings.TrimSpace(claims.Subject)
	if !ethcommon.IsHexAddress(subject) {
		return ethcommon.Address{}, ErrInvalidSubject
	}
	return ethcommon.HexToAddress(subject), nil
}

// Sign issues a token for caller valid for ttl.
func Sign(opts Options, caller ethcommon.Address, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    opts.Issuer,
		Subject:   caller.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{opts.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(opts.Secret)
}

// Middleware rejects requests without a valid bearer token and stores the
// caller address in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := parseBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeUnauthorized(w, ErrMissingToken)
			return
		}
		caller, err := v.Verify(token)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller ethcommon.Address) context.Context {
	return context.WithValue(ctx, contextKeyCaller, caller)
}

// CallerFromContext returns the authenticated caller.
func CallerFromContext(ctx context.Context) (ethcommon.Address, bool) {
	if ctx == nil {
		return ethcommon.Address{}, false
	}
	caller, ok := ctx.Value(contextKeyCaller).(ethcommon.Address)
	return caller, ok
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "{\"error\":%q,\"kind\":\"Unauthorized\"}\n", err.Error())
}

func parseBearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(strings.TrimSpace(scheme), "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
