package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/jyra/internal/db"
	"github.com/Skotchmaster/jyra/internal/events"
	"github.com/Skotchmaster/jyra/internal/hash"
	jwthelp "github.com/Skotchmaster/jyra/internal/jwt"
	"github.com/Skotchmaster/jyra/internal/logging"
	"github.com/Skotchmaster/jyra/internal/models"
	"github.com/Skotchmaster/jyra/internal/repo"
	"github.com/Skotchmaster/jyra/internal/service"
	"github.com/Skotchmaster/jyra/internal/tokens"
)

const (
	testJWTSecret   = "test-jwt-secret"
	testAdminSecret = "test-admin-secret"
)

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Issuer *tokens.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := db.Open(context.Background(), "", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	issuer := tokens.NewIssuer([]byte(testJWTSecret), time.Hour, 30*24*time.Hour)
	e := NewEcho(logging.NewWithWriter(io.Discard, "error"), []string{"http://localhost:3000"})
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{
			Svc: &service.AuthService{
				Store:       &repo.GormRepo{DB: gdb},
				Hasher:      hash.Bcrypt{},
				Tokens:      issuer,
				Events:      events.Nop{},
				AdminSecret: testAdminSecret,
			},
			Cookies: jwthelp.Cookies{Secure: true},
		},
		Tokens: issuer,
		Ready:  func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	})

	return &testEnv{T: t, E: e, DB: gdb, Issuer: issuer}
}

func (env *testEnv) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func signup(t *testing.T, env *testEnv, email, password string) (*http.Cookie, *http.Cookie) {
	t.Helper()

	rec := env.do(http.MethodPost, "/api/signup", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	access, refresh := cookieNamed(rec, "access_token"), cookieNamed(rec, "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	return access, refresh
}

func TestScenario_SignupDuplicateWrongPasswordAnonymous(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/signup", map[string]string{"email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t,
		`{"message":"User created successfully","body":{"user":{"id":1,"email":"a@x.com","is_admin":false}}}`,
		rec.Body.String())

	rec = env.do(http.MethodPost, "/api/signup", map[string]string{"email": "a@x.com", "password": "other"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email already registered"}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/signin", map[string]string{"email": "a@x.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid email or password"}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Missing or invalid access token"}`, rec.Body.String())
}

func TestSignup_SetsScopedCookies(t *testing.T) {
	env := newTestEnv(t)

	access, refresh := signup(t, env, "a@x.com", "p1")

	assert.Equal(t, "/api/", access.Path)
	assert.Equal(t, "/api/refresh", refresh.Path)
	for _, ck := range []*http.Cookie{access, refresh} {
		assert.True(t, ck.Secure)
		assert.True(t, ck.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
		assert.NotEmpty(t, ck.Value)
	}
	assert.True(t, refresh.Expires.After(access.Expires))
}

func TestSignup_AdminSecret(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/signup", map[string]string{
		"email": "root@x.com", "password": "p1", "adminSecret": testAdminSecret,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Body struct {
			User userSummary `json:"user"`
		} `json:"body"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Body.User.IsAdmin)

	rec = env.do(http.MethodPost, "/api/signup", map[string]string{
		"email": "nope@x.com", "password": "p1", "adminSecret": "test-admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Body.User.IsAdmin)
}

func TestSignupAndSignin_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/signup", "/api/signin"} {
		for _, body := range []map[string]string{
			{"email": "a@x.com"},
			{"password": "p1"},
			{},
		} {
			rec := env.do(http.MethodPost, path, body)
			require.Equal(t, http.StatusBadRequest, rec.Code, path)
			assert.JSONEq(t, `{"error":"Email and password are required"}`, rec.Body.String())
		}
	}
}

func TestSignup_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/signup", bytes.NewBufferString("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rec.Body.String())
}

func TestSignin_Success(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env, "a@x.com", "p1")

	rec := env.do(http.MethodPost, "/api/signin", map[string]string{"email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"message":"Login successful","body":{"user":{"id":1,"email":"a@x.com","is_admin":false}}}`,
		rec.Body.String())
	assert.NotNil(t, cookieNamed(rec, "access_token"))
	assert.NotNil(t, cookieNamed(rec, "refresh_token"))
}

func TestSignupAndSignin_LongPassword(t *testing.T) {
	env := newTestEnv(t)
	pw := strings.Repeat("x", 80)

	signup(t, env, "long@x.com", pw)

	rec := env.do(http.MethodPost, "/api/signin", map[string]string{"email": "long@x.com", "password": pw})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, cookieNamed(rec, "access_token"))
}

func TestSignin_UnknownEmailMatchesWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env, "a@x.com", "p1")

	wrong := env.do(http.MethodPost, "/api/signin", map[string]string{"email": "a@x.com", "password": "p2"})
	unknown := env.do(http.MethodPost, "/api/signin", map[string]string{"email": "b@x.com", "password": "p1"})

	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Nil(t, cookieNamed(wrong, "access_token"))
}

func TestCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	access, _ := signup(t, env, "jane.doe@x.com", "p1")

	rec := env.do(http.MethodGet, "/api/user", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"message":"User retrieved successfully","body":{"id":1,"name":"jane.doe","email":"jane.doe@x.com","is_admin":false,"workplace_id":1}}`,
		rec.Body.String())
}

func TestCurrentUser_RejectsRefreshTokenAndGarbage(t *testing.T) {
	env := newTestEnv(t)
	_, refresh := signup(t, env, "a@x.com", "p1")

	rec := env.do(http.MethodGet, "/api/user", nil, &http.Cookie{Name: "access_token", Value: refresh.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/user", nil, &http.Cookie{Name: "access_token", Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentUser_ExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env, "a@x.com", "p1")

	expired, _, err := tokens.NewIssuer([]byte(testJWTSecret), -time.Minute, time.Hour).IssueAccess("1")
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/user", nil, &http.Cookie{Name: "access_token", Value: expired})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentUser_DeletedUser(t *testing.T) {
	env := newTestEnv(t)
	access, _ := signup(t, env, "a@x.com", "p1")

	require.NoError(t, env.DB.Delete(&models.User{}, 1).Error)

	rec := env.do(http.MethodGet, "/api/user", nil, access)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, rec.Body.String())
}

func TestRefresh_IssuesNewAccessTokenForSameSubject(t *testing.T) {
	env := newTestEnv(t)
	_, refresh := signup(t, env, "a@x.com", "p1")

	rec := env.do(http.MethodPost, "/api/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Token refreshed successfully"}`, rec.Body.String())

	assert.Nil(t, cookieNamed(rec, "refresh_token"), "refresh token is not rotated")
	newAccess := cookieNamed(rec, "access_token")
	require.NotNil(t, newAccess)
	assert.Equal(t, "/api/", newAccess.Path)

	claims, err := env.Issuer.Verify(newAccess.Value, tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)

	rec = env.do(http.MethodGet, "/api/user", nil, newAccess)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefresh_Failures(t *testing.T) {
	env := newTestEnv(t)
	access, _ := signup(t, env, "a@x.com", "p1")

	expired, _, err := tokens.NewIssuer([]byte(testJWTSecret), time.Hour, -time.Minute).IssueRefresh("1")
	require.NoError(t, err)
	forged, _, err := tokens.NewIssuer([]byte("someone-else"), time.Hour, time.Hour).IssueRefresh("1")
	require.NoError(t, err)

	cases := map[string][]*http.Cookie{
		"missing":       nil,
		"expired":       {{Name: "refresh_token", Value: expired}},
		"bad signature": {{Name: "refresh_token", Value: forged}},
		"access token":  {{Name: "refresh_token", Value: access.Value}},
	}
	for name, cookies := range cases {
		rec := env.do(http.MethodPost, "/api/refresh", nil, cookies...)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.JSONEq(t, `{"error":"Token refresh failed"}`, rec.Body.String(), name)
	}
}

func TestSignout_ClearsCookiesButTokensAreNotRevoked(t *testing.T) {
	env := newTestEnv(t)
	access, refresh := signup(t, env, "a@x.com", "p1")

	rec := env.do(http.MethodPost, "/api/signout", nil, access, refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rec.Body.String())

	for name, path := range map[string]string{"access_token": "/api/", "refresh_token": "/api/refresh"} {
		ck := cookieNamed(rec, name)
		require.NotNil(t, ck, name)
		assert.Empty(t, ck.Value)
		assert.Less(t, ck.MaxAge, 0)
		assert.Equal(t, path, ck.Path)
	}

	rec = env.do(http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a copy of the old cookies replayed from another client is still honoured
	rec = env.do(http.MethodGet, "/api/user", nil, access)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/api/refresh", nil, refresh)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignout_WithoutSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/signout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, cookieNamed(rec, "access_token"))
	assert.NotNil(t, cookieNamed(rec, "refresh_token"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/ready", nil).Code)
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/signin", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/tickets", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}
