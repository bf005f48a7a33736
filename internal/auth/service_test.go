package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/mwangikariuki/shopkit-backend/pkg/auth"
	"github.com/mwangikariuki/shopkit-backend/pkg/auth/session"
	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/googleauth"
	"github.com/mwangikariuki/shopkit-backend/pkg/security"
)

type stubUserRepo struct {
	user         *models.User
	lastLoginIDs []uuid.UUID
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.lastLoginIDs = append(s.lastLoginIDs, id)
	return nil
}

type stubSessionManager struct {
	generated []string
	revoked   []string
	rotateErr error
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	return "new-access-id", "new-refresh-token", nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

type stubVerifier struct {
	profile *googleauth.Profile
	err     error
}

func (s *stubVerifier) Exchange(ctx context.Context, code string) (*googleauth.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

type stubProvisioner struct {
	user    *models.User
	ensured []*googleauth.Profile
}

func (s *stubProvisioner) EnsureGoogleUser(ctx context.Context, profile *googleauth.Profile) (*models.User, error) {
	s.ensured = append(s.ensured, profile)
	return s.user, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret-test-secret-test-secret",
		Issuer:                 "shopkit",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        "jane@example.com",
		PasswordHash: hashFor(t, password),
		FirstName:    "Jane",
		LastName:     "Doe",
		AuthProvider: enums.AuthProviderEmail,
		IsActive:     true,
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubUserRepo{user: activeUser(t, "hunter2hunter2")}
	sessions := &stubSessionManager{}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		Accounts:       &stubProvisioner{},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "jane@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if resp.User == nil || resp.User.Email != "jane@example.com" {
		t.Fatalf("unexpected user payload %+v", resp.User)
	}
	if len(repo.lastLoginIDs) != 1 {
		t.Fatalf("expected last login recorded once got %d", len(repo.lastLoginIDs))
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.UserID != repo.user.ID || claims.Email != "jane@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if len(sessions.generated) != 1 || sessions.generated[0] != claims.ID {
		t.Fatalf("refresh session not keyed on jti: %v vs %s", sessions.generated, claims.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubUserRepo{user: activeUser(t, "hunter2hunter2")}
	svc, _ := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{},
		Accounts:       &stubProvisioner{},
		JWTConfig:      testJWTConfig(),
	})

	_, err := svc.Login(context.Background(), LoginRequest{Email: "jane@example.com", Password: "wrong"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized got %v", err)
	}
}

func TestLoginRejectsGoogleProvisionedAccount(t *testing.T) {
	user := activeUser(t, "hunter2hunter2")
	user.AuthProvider = enums.AuthProviderGoogle
	user.PasswordHash = ""
	repo := &stubUserRepo{user: user}
	svc, _ := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{},
		Accounts:       &stubProvisioner{},
		JWTConfig:      testJWTConfig(),
	})

	_, err := svc.Login(context.Background(), LoginRequest{Email: "jane@example.com", Password: "hunter2hunter2"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized got %v", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "hunter2hunter2")
	user.IsActive = false
	repo := &stubUserRepo{user: user}
	svc, _ := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{},
		Accounts:       &stubProvisioner{},
		JWTConfig:      testJWTConfig(),
	})

	_, err := svc.Login(context.Background(), LoginRequest{Email: "jane@example.com", Password: "hunter2hunter2"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized got %v", err)
	}
}

func TestLoginWithGoogleProvisionsAccount(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "sam@example.com",
		FirstName:    "Sam",
		AuthProvider: enums.AuthProviderGoogle,
		IsActive:     true,
	}
	repo := &stubUserRepo{user: user}
	provisioner := &stubProvisioner{user: user}
	verifier := &stubVerifier{profile: &googleauth.Profile{Email: "sam@example.com", GivenName: "Sam"}}
	svc, _ := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{},
		Google:         verifier,
		Accounts:       provisioner,
		JWTConfig:      testJWTConfig(),
	})

	resp, err := svc.LoginWithGoogle(context.Background(), GoogleLoginRequest{Code: "auth-code"})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(provisioner.ensured) != 1 {
		t.Fatalf("expected provisioner call got %d", len(provisioner.ensured))
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.AuthProvider != enums.AuthProviderGoogle {
		t.Fatalf("unexpected provider claim %s", claims.AuthProvider)
	}
}

func TestLoginWithGoogleNotConfigured(t *testing.T) {
	svc, _ := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{},
		SessionManager: &stubSessionManager{},
		Accounts:       &stubProvisioner{},
		JWTConfig:      testJWTConfig(),
	})

	_, err := svc.LoginWithGoogle(context.Background(), GoogleLoginRequest{Code: "auth-code"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	user := activeUser(t, "hunter2hunter2")
	repo := &stubUserRepo{user: user}
	sessions := &stubSessionManager{}
	cfg := testJWTConfig()
	svc, _ := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		Accounts:       &stubProvisioner{},
		JWTConfig:      cfg,
	})

	accessToken, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:       user.ID,
		Email:        user.Email,
		AuthProvider: user.AuthProvider,
		JTI:          session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	resp, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "old-refresh-token",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if resp.RefreshToken != "new-refresh-token" {
		t.Fatalf("unexpected refresh token %s", resp.RefreshToken)
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.ID != "new-access-id" {
		t.Fatalf("expected rotated jti got %s", claims.ID)
	}
}

func TestRefreshInvalidToken(t *testing.T) {
	user := activeUser(t, "hunter2hunter2")
	sessions := &stubSessionManager{rotateErr: session.ErrInvalidRefreshToken}
	cfg := testJWTConfig()
	svc, _ := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user},
		SessionManager: sessions,
		Accounts:       &stubProvisioner{},
		JWTConfig:      cfg,
	})

	accessToken, _ := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:       user.ID,
		Email:        user.Email,
		AuthProvider: user.AuthProvider,
		JTI:          session.NewAccessID(),
	})

	_, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "stolen",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := &stubSessionManager{}
	svc, _ := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{},
		SessionManager: sessions,
		Accounts:       &stubProvisioner{},
		JWTConfig:      testJWTConfig(),
	})

	if err := svc.Logout(context.Background(), "jti-123"); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "jti-123" {
		t.Fatalf("unexpected revocations %v", sessions.revoked)
	}
}
