package service_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/config"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/domain"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/service"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/tenant"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/token"
)

func newTestService(t *testing.T, cfg config.Config) (*service.AuthService, *memoryResolver, *token.Signer) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	signer := token.NewSigner([]byte("test-secret-test-secret-test-sec"), cfg.TokenTTL)
	resolver := newMemoryResolver()
	return service.NewAuthService(resolver, node, signer, cfg, zap.NewNop()), resolver, signer
}

func registerReq() service.RegisterRequest {
	return service.RegisterRequest{
		Name:     "Ana",
		Email:    "ana@x.si",
		Password: "pw",
		Role:     "user",
	}
}

func TestRegisterIssuesVerifiableToken(t *testing.T) {
	svc, _, signer := newTestService(t, config.Config{TokenTTL: time.Hour})

	resp, err := svc.Register(context.Background(), "t1", registerReq())
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	std, custom, err := signer.Verify(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "ana@x.si", custom.Email)
	require.Equal(t, "Ana", custom.Name)
	require.Equal(t, "user", custom.Role)
	// External id defaults to the store-assigned internal id.
	require.Equal(t, std.Subject, custom.ExternalID)
}

func TestRegisterKeepsCallerSuppliedExternalID(t *testing.T) {
	svc, resolver, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	req := registerReq()
	req.ExternalID = "crm-7"
	_, err := svc.Register(context.Background(), "t1", req)
	require.NoError(t, err)

	store := resolver.store("t1")
	user, err := store.Users.FindByExternalID(context.Background(), "crm-7")
	require.NoError(t, err)
	require.Equal(t, "ana@x.si", user.Email)

	ids, err := store.Users.ListExternalIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"crm-7"}, ids)
}

func TestRegisterValidatesRequiredFields(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	for name, mutate := range map[string]func(*service.RegisterRequest){
		"name":     func(r *service.RegisterRequest) { r.Name = "" },
		"email":    func(r *service.RegisterRequest) { r.Email = "" },
		"password": func(r *service.RegisterRequest) { r.Password = "" },
		"role":     func(r *service.RegisterRequest) { r.Role = "" },
	} {
		req := registerReq()
		mutate(&req)
		_, err := svc.Register(context.Background(), "t1", req)
		authErr := requireAuthError(t, err)
		require.Equal(t, 400, authErr.Status, "missing %s", name)
		require.Equal(t, "All fields required.", authErr.Message)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	req := registerReq()
	req.Role = "root"
	_, err := svc.Register(context.Background(), "t1", req)
	authErr := requireAuthError(t, err)
	require.Equal(t, 400, authErr.Status)
}

func TestRegisterAdminRequiresKey(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour, AdminKey: "hunter2"})

	req := registerReq()
	req.Role = "admin"
	req.AdminKey = "wrong"
	_, err := svc.Register(context.Background(), "t1", req)
	authErr := requireAuthError(t, err)
	require.Equal(t, 400, authErr.Status)
	require.Equal(t, "Invalid admin key.", authErr.Message)

	req.AdminKey = "hunter2"
	resp, err := svc.Register(context.Background(), "t1", req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	_, err := svc.Register(context.Background(), "t1", registerReq())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "t1", registerReq())
	authErr := requireAuthError(t, err)
	require.Equal(t, 400, authErr.Status)
	require.Equal(t, "Email already registered.", authErr.Message)
}

func TestRegisterSameEmailAcrossTenants(t *testing.T) {
	svc, resolver, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	_, err := svc.Register(context.Background(), "t1", registerReq())
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "t2", registerReq())
	require.NoError(t, err)

	// Tenant stores never cross-contaminate.
	_, err = resolver.store("t1").Users.FindByEmail(context.Background(), "ana@x.si")
	require.NoError(t, err)
	userB, err := resolver.store("t2").Users.FindByEmail(context.Background(), "ana@x.si")
	require.NoError(t, err)

	userA, err := resolver.store("t1").Users.FindByEmail(context.Background(), "ana@x.si")
	require.NoError(t, err)
	require.NotEqual(t, userA.ID, userB.ID)

	_, err = resolver.store("t2").Users.GetByID(context.Background(), userA.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegisterInvalidTenant(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	_, err := svc.Register(context.Background(), "", registerReq())
	authErr := requireAuthError(t, err)
	require.Equal(t, 400, authErr.Status)
	require.Equal(t, "Invalid tenant.", authErr.Message)
}

func TestLoginHappyPath(t *testing.T) {
	svc, _, signer := newTestService(t, config.Config{TokenTTL: time.Hour})

	first, err := svc.Register(context.Background(), "t1", registerReq())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), "t1", service.Credentials{Email: "ana@x.si", Password: "pw"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEqual(t, first.Token, resp.Token)

	_, custom, err := signer.Verify(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "ana@x.si", custom.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	_, err := svc.Register(context.Background(), "t1", registerReq())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "t1", service.Credentials{Email: "ana@x.si", Password: "nope"})
	authErr := requireAuthError(t, err)
	require.Equal(t, 401, authErr.Status)
	require.Equal(t, "Incorrect password.", authErr.Message)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	_, err := svc.Login(context.Background(), "t1", service.Credentials{Email: "ghost@x.si", Password: "pw"})
	authErr := requireAuthError(t, err)
	require.Equal(t, 401, authErr.Status)
	require.Equal(t, "Incorrect username.", authErr.Message)
}

func TestLoginValidatesFields(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	_, err := svc.Login(context.Background(), "t1", service.Credentials{Email: "", Password: "pw"})
	authErr := requireAuthError(t, err)
	require.Equal(t, 400, authErr.Status)
	require.Equal(t, "All fields required.", authErr.Message)
}

func TestVerifyToken(t *testing.T) {
	svc, _, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	resp, err := svc.Register(context.Background(), "t1", registerReq())
	require.NoError(t, err)

	require.NoError(t, svc.VerifyToken(context.Background(), resp.Token))

	err = svc.VerifyToken(context.Background(), "")
	authErr := requireAuthError(t, err)
	require.Equal(t, 400, authErr.Status)
	require.Equal(t, "Token is required.", authErr.Message)

	err = svc.VerifyToken(context.Background(), "garbage")
	authErr = requireAuthError(t, err)
	require.Equal(t, 401, authErr.Status)
	require.Equal(t, "Invalid token.", authErr.Message)
}

func TestUserName(t *testing.T) {
	svc, resolver, _ := newTestService(t, config.Config{TokenTTL: time.Hour})

	_, err := svc.Register(context.Background(), "t1", registerReq())
	require.NoError(t, err)
	user, err := resolver.store("t1").Users.FindByEmail(context.Background(), "ana@x.si")
	require.NoError(t, err)

	name, err := svc.UserName(context.Background(), "t1", strconv.FormatInt(user.ID, 10))
	require.NoError(t, err)
	require.Equal(t, "Ana", name)

	_, err = svc.UserName(context.Background(), "t1", "not-a-number")
	authErr := requireAuthError(t, err)
	require.Equal(t, 400, authErr.Status)
	require.Equal(t, "Invalid User ID.", authErr.Message)

	_, err = svc.UserName(context.Background(), "t1", "")
	authErr = requireAuthError(t, err)
	require.Equal(t, "User ID required.", authErr.Message)

	_, err = svc.UserName(context.Background(), "t1", "12345")
	authErr = requireAuthError(t, err)
	require.Equal(t, 404, authErr.Status)
	require.Equal(t, "User not found.", authErr.Message)
}

func requireAuthError(t *testing.T, err error) *service.AuthError {
	t.Helper()
	require.Error(t, err)
	authErr, ok := err.(*service.AuthError)
	require.True(t, ok, "expected *service.AuthError, got %T: %v", err, err)
	return authErr
}

// memoryResolver mimics the tenant registry with in-memory stores.
type memoryResolver struct {
	mu     sync.Mutex
	stores map[string]*tenant.Store
}

func newMemoryResolver() *memoryResolver {
	return &memoryResolver{stores: make(map[string]*tenant.Store)}
}

func (r *memoryResolver) Resolve(ctx context.Context, tenantID string) (*tenant.Store, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("resolve tenant: %w", tenant.ErrInvalidID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[tenantID]
	if !ok {
		store = &tenant.Store{Tenant: tenantID, Users: newMemoryUserRepo()}
		r.stores[tenantID] = store
	}
	return store, nil
}

func (r *memoryResolver) store(tenantID string) *tenant.Store {
	store, _ := r.Resolve(context.Background(), tenantID)
	return store
}

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]domain.User)}
}

func (m *memoryUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memoryUserRepo) FindByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ExternalID == externalID {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memoryUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email || existing.ExternalID == user.ExternalID {
			return domain.User{}, domain.ErrDuplicate
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) ListExternalIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.users))
	for _, user := range m.users {
		ids = append(ids, user.ExternalID)
	}
	return ids, nil
}
