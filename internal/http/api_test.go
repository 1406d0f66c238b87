package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/internal/auth"
	"identity-service/internal/domain"
	"identity-service/internal/password"
	"identity-service/internal/repository/sqlite"
	"identity-service/internal/service"
	"identity-service/internal/token"
)

var apiKey = []byte("api-test-signing-key")

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(ctx))

	hasher, err := password.NewHasher(password.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	issuer, err := token.NewIssuer(apiKey, token.DefaultTTL)
	require.NoError(t, err)
	validator, err := token.NewValidator(apiKey)
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	users := service.NewUserService(repo, password.NewPool(hasher, 2), issuer, logger)

	router := gin.New()
	NewHandler(users, auth.NewExtractor(validator), logger, "").RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, router http.Handler, username, email, pw string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": username, "email": email, "password": pw,
	}, nil)
}

func login(t *testing.T, router http.Handler, email, pw string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": pw,
	}, nil)
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + tok}}
}

func TestScenario_RegisterLoginList(t *testing.T) {
	router := newTestRouter(t)

	rec := register(t, router, "alice", "a@x.com", "Secr3t!")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		User map[string]string `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.User["username"])
	assert.Equal(t, "a@x.com", created.User["email"])
	_, err := uuid.Parse(created.User["id"])
	assert.NoError(t, err)
	_, err = time.Parse(domain.TimestampLayout, created.User["created_at"])
	assert.NoError(t, err, created.User["created_at"])
	assert.True(t, strings.HasSuffix(created.User["created_at"], " UTC"))
	assert.Len(t, created.User, 4)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "argon2")

	rec = login(t, router, "a@x.com", "Secr3t!")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var loggedIn struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loggedIn))
	require.NotEmpty(t, loggedIn.Token)

	rec = doJSON(t, router, http.MethodGet, "/users", nil, bearer(loggedIn.Token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password_hash")
	assert.NotContains(t, rec.Body.String(), "argon2")

	var listed []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.User["id"], listed[0]["id"])
	assert.Equal(t, "alice", listed[0]["username"])
	assert.NotContains(t, listed[0], "password_hash")
}

func TestRegister_Conflict(t *testing.T) {
	router := newTestRouter(t)

	require.Equal(t, http.StatusCreated, register(t, router, "alice", "a@x.com", "pw").Code)

	rec := register(t, router, "alice2", "a@x.com", "pw2")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"email already registered"}`, rec.Body.String())
}

func TestRegister_BadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"username":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"malformed request body"}`, rec.Body.String())

	rec = register(t, router, "alice", "nope", "pw")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"email: must be a valid email address"}`, rec.Body.String())
}

func TestLogin_IndistinguishableFailures(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, register(t, router, "alice", "a@x.com", "Secr3t!").Code)

	wrongPassword := login(t, router, "a@x.com", "wrong")
	unknownEmail := login(t, router, "ghost@x.com", "Secr3t!")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.Bytes(), unknownEmail.Body.Bytes())
	assert.Equal(t, wrongPassword.Header(), unknownEmail.Header())
	assert.JSONEq(t, `{"error":"invalid credentials"}`, wrongPassword.Body.String())
}

func TestUsers_Unauthorized(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, register(t, router, "alice", "a@x.com", "Secr3t!").Code)

	rec := login(t, router, "a@x.com", "Secr3t!")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	expiredIssuer, err := token.NewIssuer(apiKey, time.Hour, token.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	require.NoError(t, err)
	expired, err := expiredIssuer.Issue(uuid.New())
	require.NoError(t, err)

	parts := strings.Split(body.Token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := map[string]http.Header{
		"no header":    nil,
		"basic scheme": {"Authorization": []string{"Basic YTpi"}},
		"garbage":      bearer("garbage"),
		"expired":      bearer(expired),
		"tampered":     bearer(tampered),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodGet, "/users", nil, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodOptions, "/users", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestTranslateError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", &domain.ValidationError{Field: "email", Reason: "is required"}, http.StatusBadRequest, "email: is required"},
		{"conflict", domain.ErrEmailTaken, http.StatusConflict, "email already registered"},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"expired", domain.NewAuthError(domain.ReasonExpired, errors.New("exp 123 < now 456")), http.StatusUnauthorized, "invalid token"},
		{"bad scheme", domain.NewAuthError(domain.ReasonBadScheme, nil), http.StatusUnauthorized, "invalid token"},
		{"storage", &domain.StorageError{Op: "insert", Err: errors.New("pq: relation users does not exist")}, http.StatusInternalServerError, "internal server error"},
		{"hash", &domain.HashError{Err: errors.New("rng")}, http.StatusInternalServerError, "internal server error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := translateError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestRespondError_LogsCauseNotClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := logtest.NewNullLogger()
	h := NewHandler(nil, nil, logger, "")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users", nil)

	h.respondError(c, &domain.StorageError{Op: "list credentials", Err: errors.New("connection refused to 10.0.0.7")})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Contains(t, entry.Data["error"].(error).Error(), "10.0.0.7")
}
