package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandlerRegister(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)

	rec := postJSON(t, h.Register, "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"`+goodPassword+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.NotEmpty(t, body["user_id"])
}

func TestHandlerRegisterValidation(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"broken json", `{"username":`, http.StatusBadRequest},
		{"unknown field", `{"username":"alice","email":"a@b.c","password":"x","extra":1}`, http.StatusBadRequest},
		{"bad email", `{"username":"alice","email":"not-an-email","password":"` + goodPassword + `"}`, http.StatusBadRequest},
		{"bad username", `{"username":"a b","email":"a@b.c","password":"` + goodPassword + `"}`, http.StatusBadRequest},
		{"weak password", `{"username":"alice","email":"a@b.c","password":"weak"}`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.Register, "/auth/register", tc.body)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestHandlerRegisterWeakPasswordListsReasons(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)

	rec := postJSON(t, h.Register, "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"weak"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "password too weak", body["error"])
	assert.NotEmpty(t, body["reasons"])
}

func TestHandlerRegisterDuplicate(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	f.register(t, "alice")

	rec := postJSON(t, h.Register, "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"`+goodPassword+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerLogin(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	f.register(t, "alice")

	rec := postJSON(t, h.Login, "/auth/login",
		`{"username":"alice","password":"`+goodPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, float64(1800), body["expires_in"])
}

func TestHandlerLoginInvalidCredentials(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	f.register(t, "alice")

	rec := postJSON(t, h.Login, "/auth/login",
		`{"username":"alice","password":"Wr0ng!Passwerd"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid credentials", body["error"])
}

func TestHandlerLoginLockedAccount(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	f.register(t, "alice")

	var rec *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		rec = postJSON(t, h.Login, "/auth/login",
			`{"username":"alice","password":"Wr0ng!Passwerd"}`)
	}
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Correct credentials still bounce off the lock.
	rec = postJSON(t, h.Login, "/auth/login",
		`{"username":"alice","password":"`+goodPassword+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerLoginAttemptsHint(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	f.register(t, "alice")

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		rec = postJSON(t, h.Login, "/auth/login",
			`{"username":"alice","password":"Wr0ng!Passwerd"}`)
	}
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "3 attempt(s) remaining")
}

func TestHandlerRefresh(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	f.register(t, "alice")

	loginRec := postJSON(t, h.Login, "/auth/login",
		`{"username":"alice","password":"`+goodPassword+`"}`)
	refreshToken := decodeBody(t, loginRec)["refresh_token"].(string)

	rec := postJSON(t, h.Refresh, "/auth/refresh", `{"refresh_token":"`+refreshToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEqual(t, refreshToken, body["refresh_token"])

	// The spent token is gone.
	rec = postJSON(t, h.Refresh, "/auth/refresh", `{"refresh_token":"`+refreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerLogout(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	f.register(t, "alice")

	loginRec := postJSON(t, h.Login, "/auth/login",
		`{"username":"alice","password":"`+goodPassword+`"}`)
	body := decodeBody(t, loginRec)
	access := body["access_token"].(string)
	refresh := body["refresh_token"].(string)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout",
		strings.NewReader(`{"refresh_token":"`+refresh+`"}`))
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := f.tokens.Verify(req.Context(), access, TokenTypeAccess)
	assert.False(t, ok)
	rec = postJSON(t, h.Refresh, "/auth/refresh", `{"refresh_token":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerMe(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	user := f.register(t, "alice")
	login := *f.now
	user.LastLogin = &login

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, login.Format(time.RFC3339), body["last_login"])
}

func TestHandlerChangePassword(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)
	user := f.register(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/auth/change-password",
		strings.NewReader(`{"current_password":"`+goodPassword+`","new_password":"N3w!SecretWord"}`))
	req = req.WithContext(ContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.Login, "/auth/login", `{"username":"alice","password":"N3w!SecretWord"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerChangePasswordUnauthenticated(t *testing.T) {
	f := newServiceFixture(t)
	h := NewHandler(f.service)

	rec := postJSON(t, h.ChangePassword, "/auth/change-password",
		`{"current_password":"a","new_password":"b"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
