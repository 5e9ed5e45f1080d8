package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teacher-eval-api/internal/models"
	appErrors "github.com/noah-isme/teacher-eval-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	findErr          error
	lastLoginErr     error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return m.lastLoginErr
}

func newAuthUser(t *testing.T, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: "u1", Email: "evaluador@colegio.edu.pe", FullName: "Evaluador Uno", Role: models.RoleEvaluator, Active: active, PasswordHash: string(hash)}
}

func TestAuthServiceLoginIssuesValidToken(t *testing.T) {
	repo := &mockAuthRepo{user: newAuthUser(t, "secreto", true), lastLoginErr: assert.AnError}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour, Issuer: "teacher-eval"})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "evaluador@colegio.edu.pe", Password: "secreto"})
	require.NoError(t, err)
	assert.True(t, repo.lastLoginUpdated)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleEvaluator, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.Actor{ID: "u1", Name: "Evaluador Uno"}, claims.Actor())
}

func TestAuthServiceLoginFailures(t *testing.T) {
	cfg := AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour}

	svc := NewAuthService(&mockAuthRepo{}, nil, nil, cfg)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nadie@colegio.edu.pe", Password: "x"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	svc = NewAuthService(&mockAuthRepo{user: newAuthUser(t, "secreto", true)}, nil, nil, cfg)
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "evaluador@colegio.edu.pe", Password: "otro"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	svc = NewAuthService(&mockAuthRepo{user: newAuthUser(t, "secreto", false)}, nil, nil, cfg)
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "evaluador@colegio.edu.pe", Password: "secreto"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "secreto"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	svc = NewAuthService(&mockAuthRepo{findErr: assert.AnError}, nil, nil, cfg)
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "evaluador@colegio.edu.pe", Password: "secreto"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	repo := &mockAuthRepo{user: newAuthUser(t, "secreto", true)}
	issuer := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "one", AccessTokenExpiry: time.Hour})
	resp, err := issuer.Login(context.Background(), models.LoginRequest{Email: "evaluador@colegio.edu.pe", Password: "secreto"})
	require.NoError(t, err)

	verifier := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "two", AccessTokenExpiry: time.Hour})
	_, err = verifier.ValidateToken(resp.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	expired := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "one", AccessTokenExpiry: time.Hour})
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	resp, err = expired.Login(context.Background(), models.LoginRequest{Email: "evaluador@colegio.edu.pe", Password: "secreto"})
	require.NoError(t, err)
	_, err = issuer.ValidateToken(resp.AccessToken)
	assert.Error(t, err)
}
