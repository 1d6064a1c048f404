package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/courseloop/authd/pkg/observability"
)

// RegisterRequest carries registration input. Profile fields are optional
// unless the registration policy names them.
type RegisterRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Password string `json:"password"`

	Name      string `json:"name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone_number,omitempty"`
	Title     string `json:"title,omitempty"`
	Biography string `json:"biography,omitempty"`
	Language  string `json:"language,omitempty"`
}

func (r RegisterRequest) field(name string) string {
	switch name {
	case "tenant_id":
		return r.TenantID
	case "user_id":
		return r.UserID
	case "password":
		return r.Password
	case "name":
		return r.Name
	case "last_name":
		return r.LastName
	case "phone_number":
		return r.Phone
	case "title":
		return r.Title
	case "biography":
		return r.Biography
	case "language":
		return r.Language
	default:
		return ""
	}
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token    string `json:"token"`
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// DefaultRequiredFields is the minimal registration policy.
var DefaultRequiredFields = []string{"tenant_id", "user_id", "password"}

// Service implements registration and login. It verifies credentials against
// the directory and mints tokens through the token store; it holds no state
// of its own between invocations.
type Service struct {
	directory *Directory
	tokens    *TokenStore
	hasher    Hasher
	tokenTTL  time.Duration
	logger    *observability.Logger

	// requiredFields returns the current registration policy; hot-reloadable
	// by the configuration layer.
	requiredFields func() []string
}

// NewService wires an authentication service from its collaborators.
func NewService(directory *Directory, tokens *TokenStore, hasher Hasher, tokenTTL time.Duration, requiredFields func() []string, logger *observability.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if requiredFields == nil {
		requiredFields = func() []string { return DefaultRequiredFields }
	}
	return &Service{
		directory:      directory,
		tokens:         tokens,
		hasher:         hasher,
		tokenTTL:       tokenTTL,
		requiredFields: requiredFields,
		logger:         logger,
	}
}

// Register validates required fields, hashes the password and writes the
// record. The policy check happens before any hashing or storage: a rejected
// request leaves no partial writes behind.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	for _, name := range s.requiredFields() {
		if req.field(name) == "" {
			return fmt.Errorf("%w: %s", ErrMissingFields, name)
		}
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	rec := UserRecord{
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		PasswordDigest: digest,
		Name:           req.Name,
		LastName:       req.LastName,
		Phone:          req.Phone,
		Title:          req.Title,
		Biography:      req.Biography,
		Language:       req.Language,
	}
	if err := s.directory.Create(ctx, rec); err != nil {
		return err
	}

	s.logger.WithClaim(req.TenantID, req.UserID).Info("user registered")
	return nil
}

// Login verifies the (tenant, user, password) triple and issues a token on
// success. The two failure kinds stay distinct here for internal logging;
// the transport layer collapses them into one generic rejection so callers
// cannot tell an unknown user from a wrong password.
func (s *Service) Login(ctx context.Context, tenantID, userID, password string) (LoginResult, error) {
	rec, err := s.directory.Find(ctx, tenantID, userID)
	if err != nil {
		if IsAuthFailure(err) {
			s.logger.WithClaim(tenantID, userID).Info("login rejected: unknown user")
		}
		return LoginResult{}, err
	}

	if err := s.hasher.Verify(rec.PasswordDigest, password); err != nil {
		s.logger.WithClaim(tenantID, userID).Info("login rejected: credential mismatch")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, tenantID, userID, s.tokenTTL)
	if err != nil {
		return LoginResult{}, err
	}

	s.logger.WithClaim(tenantID, userID).Info("login succeeded")
	return LoginResult{
		Token:    token.Token,
		TenantID: tenantID,
		UserID:   userID,
	}, nil
}

// Revoke removes the caller's own token.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}
