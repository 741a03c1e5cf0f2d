// ABOUTME: Authentication service composing scheme, principal store, and challenges
// ABOUTME: Implements register, challenge, and login; the server never holds secret keys

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/sigil/internal/challenge"
	"github.com/2389/sigil/internal/lattice"
	"github.com/2389/sigil/internal/metrics"
	"github.com/2389/sigil/internal/ratelimit"
	"github.com/2389/sigil/internal/revocation"
	"github.com/2389/sigil/internal/store"
)

const (
	// MaxPrincipalIDLength bounds principal IDs.
	MaxPrincipalIDLength = 128

	// DefaultTokenTTL is the session token lifetime when none is configured.
	DefaultTokenTTL = time.Hour
)

// Config wires a Service. Scheme, Principals, and Challenges are required.
type Config struct {
	Scheme     lattice.Scheme
	Principals store.PrincipalStore
	Challenges *challenge.Manager

	Tokens      *JWTVerifier // optional; nil disables session tokens
	TokenTTL    time.Duration
	Revocations *revocation.List // optional; nil disables Logout

	Limiter *ratelimit.Limiter // optional
	Metrics *metrics.Metrics      // optional
	Logger  *slog.Logger
	Now     func() time.Time
}

// Session describes a successful login.
type Session struct {
	PrincipalID     string
	ChallengeID     string
	AuthenticatedAt time.Time
	Token           string    // empty when tokens are disabled
	ExpiresAt       time.Time // zero when tokens are disabled
}

// Service orchestrates registration, challenge issuance, and login.
type Service struct {
	scheme     lattice.Scheme
	principals store.PrincipalStore
	challenges *challenge.Manager
	tokens     *JWTVerifier
	tokenTTL   time.Duration
	revoked    *revocation.List
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Scheme == nil {
		return nil, errors.New("auth: scheme is required")
	}
	if cfg.Principals == nil {
		return nil, errors.New("auth: principal store is required")
	}
	if cfg.Challenges == nil {
		return nil, errors.New("auth: challenge manager is required")
	}

	s := &Service{
		scheme:     cfg.Scheme,
		principals: cfg.Principals,
		challenges: cfg.Challenges,
		tokens:     cfg.Tokens,
		tokenTTL:   cfg.TokenTTL,
		revoked:    cfg.Revocations,
		limiter:    cfg.Limiter,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = DefaultTokenTTL
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "auth")
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Scheme returns the signature scheme principals enroll with.
func (s *Service) Scheme() lattice.Scheme { return s.scheme }

// ValidatePrincipalID checks that id is 1-128 characters drawn from letters,
// digits, '-', '_', '.', and '@'.
func ValidatePrincipalID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	if len(id) > MaxPrincipalIDLength {
		return fmt.Errorf("%w: principal id longer than %d characters", ErrInvalidInput, MaxPrincipalIDLength)
	}
	for _, char := range id {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') ||
			char == '-' || char == '_' || char == '.' || char == '@' {
			continue
		}
		return fmt.Errorf("%w: invalid character %q in principal id", ErrInvalidInput, char)
	}
	return nil
}

// Register generates a key pair for a new principal, stores only the public
// key, and hands the pair back. The caller owns the secret key from here on.
func (s *Service) Register(ctx context.Context, principalID string) (*lattice.KeyPair, error) {
	if err := ValidatePrincipalID(principalID); err != nil {
		s.metrics.Registration(s.scheme.Name(), metrics.OutcomeInvalidInput)
		return nil, err
	}

	exists, err := s.principals.PrincipalExists(ctx, principalID)
	if err != nil {
		s.metrics.Registration(s.scheme.Name(), metrics.OutcomeError)
		return nil, fmt.Errorf("checking principal: %w", err)
	}
	if exists {
		s.metrics.Registration(s.scheme.Name(), metrics.OutcomeExists)
		return nil, ErrPrincipalAlreadyExists
	}

	kp, err := s.scheme.GenerateKey()
	if err != nil {
		s.metrics.Registration(s.scheme.Name(), metrics.OutcomeError)
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	if _, err := s.enroll(ctx, principalID, kp.PublicKey); err != nil {
		return nil, err
	}
	return kp, nil
}

// Enroll registers a principal whose key pair was generated by the client,
// so the secret key never crosses the wire.
func (s *Service) Enroll(ctx context.Context, principalID string, publicKey []byte) (*store.Principal, error) {
	if err := ValidatePrincipalID(principalID); err != nil {
		s.metrics.Registration(s.scheme.Name(), metrics.OutcomeInvalidInput)
		return nil, err
	}
	if len(publicKey) != s.scheme.PublicKeySize() {
		s.metrics.Registration(s.scheme.Name(), metrics.OutcomeInvalidInput)
		return nil, fmt.Errorf("%w: %s public key must be %d bytes, got %d",
			ErrInvalidInput, s.scheme.Name(), s.scheme.PublicKeySize(), len(publicKey))
	}
	return s.enroll(ctx, principalID, publicKey)
}

func (s *Service) enroll(ctx context.Context, principalID string, publicKey []byte) (*store.Principal, error) {
	p := &store.Principal{
		ID:          principalID,
		Scheme:      s.scheme.Name(),
		PublicKey:   append([]byte(nil), publicKey...),
		Fingerprint: store.Fingerprint(publicKey),
		CreatedAt:   s.now().UTC(),
	}

	if err := s.principals.CreatePrincipal(ctx, p); err != nil {
		if errors.Is(err, store.ErrPrincipalExists) {
			s.metrics.Registration(s.scheme.Name(), metrics.OutcomeExists)
			return nil, ErrPrincipalAlreadyExists
		}
		s.metrics.Registration(s.scheme.Name(), metrics.OutcomeError)
		return nil, fmt.Errorf("storing principal: %w", err)
	}

	s.metrics.Registration(s.scheme.Name(), metrics.OutcomeOK)
	s.logger.Info("principal registered",
		"principal", principalID,
		"scheme", p.Scheme,
		"fingerprint", p.Fingerprint,
	)
	return p, nil
}

// Principal returns the public record for principalID.
func (s *Service) Principal(ctx context.Context, principalID string) (*store.Principal, error) {
	p, err := s.principals.GetPrincipal(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading principal: %w", err)
	}
	return p, nil
}

// Challenge issues a fresh nonce for principalID, invalidating any earlier one.
func (s *Service) Challenge(ctx context.Context, principalID string) (*challenge.Challenge, error) {
	if principalID == "" {
		s.metrics.Challenge(metrics.OutcomeInvalidInput)
		return nil, fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	if !s.limiter.Allow(principalID) {
		s.metrics.Challenge(metrics.OutcomeRateLimited)
		return nil, ErrRateLimited
	}

	c, err := s.challenges.Issue(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			s.metrics.Challenge(metrics.OutcomeNotFound)
			return nil, err
		}
		s.metrics.Challenge(metrics.OutcomeError)
		return nil, fmt.Errorf("issuing challenge: %w", err)
	}

	s.metrics.Challenge(metrics.OutcomeOK)
	s.logger.Debug("challenge issued", "principal", principalID, "challenge_id", c.ID)
	return c, nil
}

// Login consumes the principal's outstanding challenge and verifies signature
// over its nonce. The challenge is gone afterwards whether or not the
// signature verifies.
func (s *Service) Login(ctx context.Context, principalID string, signature []byte) (*Session, error) {
	if principalID == "" {
		s.metrics.Login(metrics.OutcomeInvalidInput)
		return nil, fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	if !s.limiter.Allow(principalID) {
		s.metrics.Login(metrics.OutcomeRateLimited)
		return nil, ErrRateLimited
	}

	c, err := s.challenges.Consume(principalID)
	if err != nil {
		s.metrics.Login(metrics.OutcomeNoChallenge)
		return nil, err
	}

	p, err := s.principals.GetPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.Login(metrics.OutcomeNotFound)
			return nil, ErrPrincipalNotFound
		}
		s.metrics.Login(metrics.OutcomeError)
		return nil, fmt.Errorf("loading principal: %w", err)
	}

	if p.Scheme != s.scheme.Name() {
		s.metrics.Login(metrics.OutcomeInvalidSignature)
		s.logger.Warn("login rejected", "principal", principalID, "challenge_id", c.ID,
			"reason", "scheme mismatch", "principal_scheme", p.Scheme, "active_scheme", s.scheme.Name())
		return nil, ErrInvalidSignature
	}

	if !s.scheme.Verify(c.Nonce, signature, p.PublicKey) {
		s.metrics.Login(metrics.OutcomeInvalidSignature)
		s.logger.Warn("login rejected", "principal", principalID, "challenge_id", c.ID, "reason", "invalid signature")
		return nil, ErrInvalidSignature
	}

	session := &Session{
		PrincipalID:     principalID,
		ChallengeID:     c.ID,
		AuthenticatedAt: s.now().UTC(),
	}
	if s.tokens != nil {
		token, expiresAt, err := s.tokens.Generate(principalID, c.ID, s.tokenTTL)
		if err != nil {
			s.metrics.Login(metrics.OutcomeError)
			return nil, fmt.Errorf("issuing session token: %w", err)
		}
		session.Token = token
		session.ExpiresAt = expiresAt
	}

	s.metrics.Login(metrics.OutcomeOK)
	s.logger.Info("login succeeded", "principal", principalID, "challenge_id", c.ID)
	return session, nil
}

// VerifySession validates a session token issued by Login.
func (s *Service) VerifySession(token string) (*AuthContext, error) {
	if s.tokens == nil {
		return nil, fmt.Errorf("%w: session tokens are disabled", ErrInvalidToken)
	}
	ac, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if s.revoked != nil && ac.SessionID != "" && s.revoked.Revoked(ac.SessionID) {
		return nil, ErrSessionRevoked
	}
	return ac, nil
}

// Logout revokes the session token until it would have expired.
func (s *Service) Logout(token string) error {
	if s.revoked == nil {
		return fmt.Errorf("%w: session revocation is disabled", ErrInvalidInput)
	}
	ac, err := s.VerifySession(token)
	if err != nil {
		return err
	}
	if ac.SessionID == "" {
		return fmt.Errorf("%w: jti", ErrMissingClaim)
	}
	if err := s.revoked.Revoke(ac.SessionID, ac.ExpiresAt); err != nil {
		s.logger.Error("session revocation failed", "principal", ac.PrincipalID, "session_id", ac.SessionID, "error", err)
		return fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}
	s.logger.Info("session revoked", "principal", ac.PrincipalID, "session_id", ac.SessionID)
	return nil
}

// Parse implements TokenVerifier so the service can back SessionMiddleware.
func (s *Service) Parse(token string) (*AuthContext, error) {
	return s.VerifySession(token)
}
