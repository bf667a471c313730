package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUserRepo struct{ mock.Mock }

func (m *MockUserRepo) Create(ctx context.Context, name, email, passwordHash, role string) (*User, error) {
	args := m.Called(ctx, name, email, passwordHash, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepo) SetTransferPin(ctx context.Context, userID int, pinHash string) error {
	return m.Called(ctx, userID, pinHash).Error(0)
}

func registerRouter(repo Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := &Handler{repo: repo, jwtSecret: "test-secret"}
	router.POST("/auth/register", h.Register)
	return router
}

func TestRegister(t *testing.T) {
	t.Run("creates account with the default role", func(t *testing.T) {
		repo := new(MockUserRepo)
		repo.On("EmailExists", mock.Anything, "dana@example.com").Return(false, nil)
		repo.On("Create", mock.Anything, "Dana", "dana@example.com", mock.AnythingOfType("string"), "user").
			Return(&User{ID: 1, Name: "Dana", Email: "dana@example.com", Role: "user", Tier: "standard"}, nil)

		req := httptest.NewRequest("POST", "/auth/register",
			strings.NewReader(`{"name":"Dana","email":"dana@example.com","password":"hunter22!"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		registerRouter(repo).ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		// The role in the row, the response, and what DevValidator issues
		// all have to agree for RequireRole checks to behave the same in
		// every auth mode.
		assert.Equal(t, "user", resp.User.Role)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		repo := new(MockUserRepo)
		repo.On("EmailExists", mock.Anything, "dana@example.com").Return(true, nil)

		req := httptest.NewRequest("POST", "/auth/register",
			strings.NewReader(`{"name":"Dana","email":"dana@example.com","password":"hunter22!"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		registerRouter(repo).ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("short password rejected before any lookup", func(t *testing.T) {
		repo := new(MockUserRepo)

		req := httptest.NewRequest("POST", "/auth/register",
			strings.NewReader(`{"name":"Dana","email":"dana@example.com","password":"short"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		registerRouter(repo).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
	})
}
