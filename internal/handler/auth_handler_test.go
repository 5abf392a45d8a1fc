package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomengsanchez/asset-manager-api/internal/middleware"
	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/service"
)

type fakeAuthRepo struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
	audits int
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{users: map[string]*models.User{}, tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeAuthRepo) addUser(id int64, email, password string, role models.UserRole) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	f.users[email] = &models.User{
		ID:           id,
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
}

func (f *fakeAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeAuthRepo) FindByID(_ context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) UpdateLastLogin(context.Context, int64) error { return nil }

func (f *fakeAuthRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	for _, u := range f.users {
		if u.ID == id {
			u.PasswordHash = hash
		}
	}
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID int64) error {
	for _, t := range f.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeAuthRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	for _, t := range f.tokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeAuthRepo) CreateAuditLog(context.Context, *models.AuditLog) error {
	f.audits++
	return nil
}

func newTestAuthService(repo *fakeAuthRepo) *service.AuthService {
	return service.NewAuthService(repo, nil, nil, service.AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "asset-manager-api",
	})
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeAuthRepo()
	repo.addUser(1, "admin@example.com", "secret123", models.RoleAdmin)
	h := NewAuthHandler(newTestAuthService(repo))

	body, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "secret123"})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.NotEmpty(t, envelope.Data.RefreshToken)
	assert.Equal(t, "admin@example.com", envelope.Data.User.Email)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeAuthRepo()
	repo.addUser(1, "admin@example.com", "secret123", models.RoleAdmin)
	h := NewAuthHandler(newTestAuthService(repo))

	body, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "wrong"})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(newTestAuthService(newFakeAuthRepo()))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:      7,
		Email:       "tech@example.com",
		DisplayName: "Mark Cruz",
		Role:        models.RoleTechnician,
	})

	h.Me(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(7), envelope.Data.ID)
	assert.Equal(t, "Mark Cruz", envelope.Data.DisplayName)
}

func TestAuthHandlerMeRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(newTestAuthService(newFakeAuthRepo()))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/auth/me", nil)

	h.Me(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
