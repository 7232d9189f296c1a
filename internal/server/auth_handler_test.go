package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/portfolio-core/internal/config"
)

// setupTestAuthHandler creates an AuthHandler for admin / testPassword.
func setupTestAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	pw := &config.PasswordConfig{BcryptCost: bcrypt.MinCost}
	hash, err := pw.HashPassword(testPassword)
	require.NoError(t, err)

	auth := &config.AuthConfig{
		Username:     "admin",
		PasswordHash: hash,
		JWT:          &config.JWTConfig{Secret: "test-secret-key-for-jwt-signing", ExpirationHours: 24},
		Password:     pw,
	}
	return NewAuthHandler(auth, NewJWTService(auth.JWT), nil)
}

func postLogin(h *AuthHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Login(w, req)
	return w
}

func TestAuthHandler_Login(t *testing.T) {
	handler := setupTestAuthHandler(t)

	w := postLogin(handler, `{"username": "admin", "password": "`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	claims, err := handler.jwtService.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
}

func TestAuthHandler_Login_Rejected(t *testing.T) {
	handler := setupTestAuthHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid JSON", `invalid json`, http.StatusBadRequest},
		{"missing username", `{"password": "x"}`, http.StatusBadRequest},
		{"missing password", `{"username": "admin"}`, http.StatusBadRequest},
		{"password too long", `{"username": "admin", "password": "` + strings.Repeat("p", 73) + `"}`, http.StatusBadRequest},
		{"wrong password", `{"username": "admin", "password": "nope"}`, http.StatusUnauthorized},
		{"wrong username", `{"username": "root", "password": "` + testPassword + `"}`, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postLogin(handler, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "token")
		})
	}
}
