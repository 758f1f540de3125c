package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/calebforth/bastion/internal/auth"
	"github.com/calebforth/bastion/internal/models"
	pkghttp "github.com/calebforth/bastion/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithUserContext attaches an authenticated user to the request context, as
// the session middleware would
func WithUserContext(req *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, user)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, email, password, ipAddress, userAgent string) (string, error)
	LogoutFunc         func(ctx context.Context, token string) error
	RegisterUserFunc   func(ctx context.Context, firstName, lastName, email, password string) (*models.User, error)
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (string, error) {
	if m.LoginFunc == nil {
		return "", models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, ipAddress, userAgent)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, token)
}

func (m *MockAuthService) RegisterUser(ctx context.Context, firstName, lastName, email, password string) (*models.User, error) {
	if m.RegisterUserFunc == nil {
		return nil, models.ErrRegistrationFailed
	}
	return m.RegisterUserFunc(ctx, firstName, lastName, email, password)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc == nil {
		return models.ErrInvalidCredentials
	}
	return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
}

// MockUserDirectory implements UserDirectory for testing
type MockUserDirectory struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
	ListFunc    func(ctx context.Context, limit, offset int) ([]*models.User, error)
	DeleteFunc  func(ctx context.Context, id string) error
}

func (m *MockUserDirectory) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockUserDirectory) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListFunc(ctx, limit, offset)
}

func (m *MockUserDirectory) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return models.ErrNotFound
	}
	return m.DeleteFunc(ctx, id)
}

// MockSessionRevoker implements SessionRevoker for testing
type MockSessionRevoker struct {
	DeleteByUserIDFunc func(ctx context.Context, userID string) error
}

func (m *MockSessionRevoker) DeleteByUserID(ctx context.Context, userID string) error {
	if m.DeleteByUserIDFunc == nil {
		return nil
	}
	return m.DeleteByUserIDFunc(ctx, userID)
}
