package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/config"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/domain"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/password"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/tenant"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/token"
)

// AuthError carries an error code, a client-facing message, and the HTTP
// status it maps to.
type AuthError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAuthError(code, message string, status int) *AuthError {
	return &AuthError{Code: code, Message: message, Status: status}
}

// TokenResponse is the success payload for register and login.
type TokenResponse struct {
	Token string `json:"token"`
}

// RegisterRequest carries the fields accepted at registration.
type RegisterRequest struct {
	Name       string
	Email      string
	Password   string
	Role       string
	AdminKey   string
	ExternalID string
}

// Credentials carries a login attempt.
type Credentials struct {
	Email    string
	Password string
}

// StoreResolver yields the isolated store handle for a tenant. The concrete
// registry is owned by the service root and injected here.
type StoreResolver interface {
	Resolve(ctx context.Context, tenantID string) (*tenant.Store, error)
}

// AuthService orchestrates registration, login, and token verification.
type AuthService struct {
	stores StoreResolver
	node   *snowflake.Node
	signer *token.Signer
	cfg    config.Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(stores StoreResolver, node *snowflake.Node, signer *token.Signer, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		stores: stores,
		node:   node,
		signer: signer,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/RSO-2024-25-skupina-03/authentication/internal/service"),
	}
}

// Register creates a user in the tenant store and returns a session token.
func (s *AuthService) Register(ctx context.Context, tenantID string, req RegisterRequest) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	email := normalizeIdentifier(req.Email)
	role := domain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if name == "" || email == "" || req.Password == "" || role == "" {
		return nil, newAuthError("invalid_request", "All fields required.", http.StatusBadRequest)
	}
	if !role.Valid() {
		return nil, newAuthError("invalid_request", "Invalid role.", http.StatusBadRequest)
	}
	if role == domain.RoleAdmin && s.cfg.AdminKey != "" {
		if subtle.ConstantTimeCompare([]byte(req.AdminKey), []byte(s.cfg.AdminKey)) != 1 {
			return nil, newAuthError("invalid_admin_key", "Invalid admin key.", http.StatusBadRequest)
		}
	}

	store, err := s.resolveStore(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Advisory fast path; the store's unique constraint is the real guard.
	if _, err := store.Users.FindByEmail(ctx, email); err == nil {
		return nil, newAuthError("conflict", "Email already registered.", http.StatusBadRequest)
	} else if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return nil, newAuthError("storage_error", err.Error(), http.StatusInternalServerError)
	}

	salt, hash, err := password.Set(req.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := s.node.Generate().Int64()
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		externalID = strconv.FormatInt(id, 10)
	}

	user := domain.User{
		ID:           id,
		ExternalID:   externalID,
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordSalt: salt,
		PasswordHash: hash,
	}

	created, err := store.Users.Create(ctx, user)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, newAuthError("conflict", "Email already registered.", http.StatusBadRequest)
		}
		return nil, newAuthError("storage_error", err.Error(), http.StatusInternalServerError)
	}

	raw, err := s.signer.Issue(created)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.audit("register.success", "tenant", store.Tenant, "user_id", created.ID, "role", created.Role)
	return &TokenResponse{Token: raw}, nil
}

// Login verifies credentials against the tenant store and returns a token.
func (s *AuthService) Login(ctx context.Context, tenantID string, creds Credentials) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	email := normalizeIdentifier(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, newAuthError("invalid_request", "All fields required.", http.StatusBadRequest)
	}

	store, err := s.resolveStore(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	user, err := store.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, newAuthError("invalid_credentials", "Incorrect username.", http.StatusUnauthorized)
		}
		span.RecordError(err)
		return nil, newAuthError("storage_error", err.Error(), http.StatusInternalServerError)
	}

	if !password.Verify(creds.Password, user.PasswordSalt, user.PasswordHash) {
		return nil, newAuthError("invalid_credentials", "Incorrect password.", http.StatusUnauthorized)
	}

	raw, err := s.signer.Issue(user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.audit("login.success", "tenant", store.Tenant, "user_id", user.ID)
	return &TokenResponse{Token: raw}, nil
}

// VerifyToken validates a session token. Expired, malformed, and
// wrongly-signed tokens all report the same failure.
func (s *AuthService) VerifyToken(ctx context.Context, raw string) error {
	_, span := s.startSpan(ctx, "AuthService.VerifyToken")
	defer span.End()

	if strings.TrimSpace(raw) == "" {
		return newAuthError("invalid_request", "Token is required.", http.StatusBadRequest)
	}
	if _, _, err := s.signer.Verify(raw); err != nil {
		span.RecordError(err)
		return newAuthError("invalid_token", "Invalid token.", http.StatusUnauthorized)
	}
	return nil
}

// UserName returns the display name for a user id within a tenant.
func (s *AuthService) UserName(ctx context.Context, tenantID, userID string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UserName")
	defer span.End()

	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", newAuthError("invalid_request", "User ID required.", http.StatusBadRequest)
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return "", newAuthError("invalid_request", "Invalid User ID.", http.StatusBadRequest)
	}

	store, err := s.resolveStore(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	user, err := store.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", newAuthError("not_found", "User not found.", http.StatusNotFound)
		}
		span.RecordError(err)
		return "", newAuthError("storage_error", err.Error(), http.StatusInternalServerError)
	}
	return user.Name, nil
}

func (s *AuthService) resolveStore(ctx context.Context, tenantID string) (*tenant.Store, error) {
	store, err := s.stores.Resolve(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrInvalidID) {
			return nil, newAuthError("invalid_tenant", "Invalid tenant.", http.StatusBadRequest)
		}
		return nil, newAuthError("tenant_unreachable", err.Error(), http.StatusInternalServerError)
	}
	return store, nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
