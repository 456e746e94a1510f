package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is a verified user, as produced by the credential verifier.
type Identity struct {
	Subject     string
	Role        Role
	AdmissionNo string
	Name        string
}

// Claims represents the JWT payload.
type Claims struct {
	Role        Role   `json:"user_type"`
	AdmissionNo string `json:"admission_no,omitempty"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claims checks inside the parser.
func (c *Claims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("missing subject")
	}
	if !c.Role.Valid() {
		return ErrUnknownRole
	}
	if c.Role == RoleStudent && c.AdmissionNo == "" {
		return errors.New("student token without admission number")
	}
	return nil
}

// Identity rebuilds the identity carried by the claims.
func (c Claims) Identity() Identity {
	return Identity{Subject: c.Subject, Role: c.Role, AdmissionNo: c.AdmissionNo}
}

// Token is an issued bearer credential.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	SigningKey   string
	PreviousKeys []string
	Issuer       string
	TTL          time.Duration
	Now          func() time.Time
}

// TokenService issues and validates HS256 access tokens. It holds no per-token state.
type TokenService struct {
	key    []byte
	keys   [][]byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService builds a service from cfg. The signing key is loaded once and never changes.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return nil, ErrMissingSigningKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	keys := [][]byte{[]byte(cfg.SigningKey)}
	for _, k := range cfg.PreviousKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenService{
		key:    []byte(cfg.SigningKey),
		keys:   keys,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		parser: jwt.NewParser(opts...),
	}, nil
}

// TTL returns the validity window of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for a verified identity.
func (s *TokenService) Issue(id Identity) (Token, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return Token{}, errors.New("issue token: empty subject")
	}
	if !id.Role.Valid() {
		return Token{}, fmt.Errorf("issue token: %w", ErrUnknownRole)
	}

	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   id.Subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if id.Role == RoleStudent {
		claims.AdmissionNo = id.AdmissionNo
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Validate checks signature, algorithm, issuer, expiry and claim shape in one parse.
// Previous keys are only tried when the signature does not match the current key.
// Every failure is reported as ErrUnauthenticated.
func (s *TokenService) Validate(tokenStr string) (Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return Claims{}, ErrUnauthenticated
	}
	for _, key := range s.keys {
		claims := &Claims{}
		parsed, err := s.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err == nil && parsed.Valid {
			return *claims, nil
		}
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	return Claims{}, ErrUnauthenticated
}
