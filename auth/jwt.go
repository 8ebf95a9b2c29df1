package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrJWTMissingSigningKey = errors.New("auth: missing signing key")
	ErrJWTWeakSigningKey    = errors.New("auth: signing key too short")
	ErrJWTUnsupportedAlgo   = errors.New("auth: unsupported jwt algorithm")
	ErrJWTInvalid           = errors.New("auth: invalid jwt")
	ErrJWTMissingSubject    = errors.New("auth: jwt has no subject")
)

// MinSecretLength is the minimum secret length for HMAC-SHA256
const MinSecretLength = 32

// JWTConfig describes how bearer tokens are verified.
type JWTConfig struct {
	Secret     []byte
	Algorithms []string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	Extractor  TokenExtractor
	Now        func() time.Time
}

// Claims is the token payload: registered claims plus profile and roles.
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HMAC-signed JWTs.
type JWTAuthenticator struct {
	secret    []byte
	algs      []string
	issuer    string
	audience  string
	leeway    time.Duration
	extractor TokenExtractor
	now       func() time.Time
}

func NewJWTAuthenticator(cfg JWTConfig) (*JWTAuthenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrJWTMissingSigningKey
	}
	algs := cfg.Algorithms
	if len(algs) == 0 {
		algs = []string{"HS256"}
	}
	minLen := MinSecretLength
	for _, alg := range algs {
		switch alg {
		case "HS256":
		case "HS384":
			minLen = max(minLen, 48)
		case "HS512":
			minLen = max(minLen, 64)
		default:
			return nil, fmt.Errorf("%w: %s", ErrJWTUnsupportedAlgo, alg)
		}
	}
	if len(cfg.Secret) < minLen {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrJWTWeakSigningKey, minLen)
	}

	a := &JWTAuthenticator{
		secret:    append([]byte(nil), cfg.Secret...),
		algs:      append([]string(nil), algs...),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		leeway:    cfg.Leeway,
		extractor: cfg.Extractor,
		now:       cfg.Now,
	}
	if a.leeway <= 0 {
		a.leeway = 30 * time.Second
	}
	if a.extractor == nil {
		a.extractor = BearerTokenExtractor()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	raw, err := a.extractor(r)
	if err != nil {
		return Identity{}, err
	}
	return a.Parse(raw)
}

// Parse verifies raw and maps its claims to an Identity.
func (a *JWTAuthenticator) Parse(raw string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(a.algs),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrJWTInvalid, err)
	}
	if claims.Subject == "" {
		return Identity{}, ErrJWTMissingSubject
	}
	return Identity{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Roles: claims.Roles,
	}, nil
}

// Issue signs a token for id, valid for ttl, with the first configured algorithm.
func (a *JWTAuthenticator) Issue(id Identity, ttl time.Duration) (string, error) {
	if id.ID == "" {
		return "", ErrJWTMissingSubject
	}
	now := a.now()
	claims := Claims{
		Name:  id.Name,
		Email: id.Email,
		Roles: id.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	method := jwt.GetSigningMethod(a.algs[0])
	return jwt.NewWithClaims(method, claims).SignedString(a.secret)
}
