package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rohits-web03/passkeyd/internal/api/middleware"
	"github.com/rohits-web03/passkeyd/internal/api/services"
	"github.com/rohits-web03/passkeyd/internal/config"
	"github.com/rohits-web03/passkeyd/internal/repositories"
	"github.com/rohits-web03/passkeyd/internal/repositories/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSalt = "U0FMVFNBTFRTQUxUU0FMVA=="

type env struct {
	auth     *AuthHandler
	vault    *VaultHandler
	authSvc  *services.AuthService
	vaultSvc *services.VaultService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	uow := repositories.NewUnitOfWork(repotest.NewDB(t))
	hasher, err := services.NewHasher(config.HashConfig{Algorithm: config.HashBcrypt, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	tokens, err := services.NewTokenIssuer([]byte("handler-test-secret"), "HS256", 30*time.Minute)
	require.NoError(t, err)

	authSvc, err := services.NewAuthService(uow, hasher, tokens, nil, zap.NewNop(), 32)
	require.NoError(t, err)
	vaultSvc := services.NewVaultService(uow, nil, zap.NewNop())

	return &env{
		auth:     NewAuthHandler(authSvc, zap.NewNop(), true),
		vault:    NewVaultHandler(vaultSvc, zap.NewNop()),
		authSvc:  authSvc,
		vaultSvc: vaultSvc,
	}
}

func (e *env) register(t *testing.T, email string) uuid.UUID {
	t.Helper()
	user, err := e.authSvc.Register(context.Background(), email, "H1", testSalt)
	require.NoError(t, err)
	return user.ID
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, h http.HandlerFunc, method, body string, userID uuid.UUID) (*httptest.ResponseRecorder, response) {
	t.Helper()

	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if userID != uuid.Nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	}
	rec := httptest.NewRecorder()
	h(rec, req)

	var res response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	}
	return rec, res
}

func TestFetchSalt(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice@example.com")

	rec, res := call(t, e.auth.FetchSalt, http.MethodPost, `{"email":"alice@example.com"}`, uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"salt":%q}`, testSalt), string(res.Data))

	rec, res = call(t, e.auth.FetchSalt, http.MethodPost, `{"email":"nobody@example.com"}`, uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct{ Salt string }
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.Len(t, out.Salt, 44)
	assert.NotEqual(t, testSalt, out.Salt)
}

func TestDecodeRejectsBadBodies(t *testing.T) {
	e := newEnv(t)

	cases := map[string]string{
		"not json":      `email=alice`,
		"unknown field": `{"email":"alice@example.com","password":"x"}`,
		"trailing data": `{"email":"alice@example.com"}{}`,
		"empty email":   `{"email":""}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, res := call(t, e.auth.FetchSalt, http.MethodPost, body, uuid.Nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, res.Success)
		})
	}
}

func TestRegister(t *testing.T) {
	e := newEnv(t)

	body := fmt.Sprintf(`{"email":"alice@example.com","auth_key_hash":"H1","salt":%q}`, testSalt)
	rec, res := call(t, e.auth.Register, http.MethodPost, body, uuid.Nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(res.Data), `"email":"alice@example.com"`)
	assert.NotContains(t, string(res.Data), "auth_key_hash")
	assert.NotContains(t, string(res.Data), testSalt)

	rec, res = call(t, e.auth.Register, http.MethodPost, body, uuid.Nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email already registered", res.Message)
}

func TestRegisterKeepsOpaqueSalt(t *testing.T) {
	e := newEnv(t)

	rec, _ := call(t, e.auth.Register, http.MethodPost, `{"email":"alice@example.com","auth_key_hash":"H1","salt":"S1"}`, uuid.Nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, res := call(t, e.auth.FetchSalt, http.MethodPost, `{"email":"alice@example.com"}`, uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"salt":"S1"}`, string(res.Data))
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)

	cases := map[string]string{
		"bad email":    fmt.Sprintf(`{"email":"alice","auth_key_hash":"H1","salt":%q}`, testSalt),
		"missing hash": fmt.Sprintf(`{"email":"alice@example.com","salt":%q}`, testSalt),
		"missing salt": `{"email":"alice@example.com","auth_key_hash":"H1"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := call(t, e.auth.Register, http.MethodPost, body, uuid.Nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLoginSetsTokenAndCookie(t *testing.T) {
	e := newEnv(t)
	userID := e.register(t, "alice@example.com")

	rec, res := call(t, e.auth.Login, http.MethodPost, `{"email":"alice@example.com","auth_key_hash":"H1"}`, uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var token TokenResponse
	require.NoError(t, json.Unmarshal(res.Data, &token))
	assert.Equal(t, "bearer", token.TokenType)
	assert.InDelta(t, 1800, token.ExpiresIn, 2)

	verified, err := e.authSvc.VerifyToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, verified)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.TokenCookie, cookies[0].Name)
	assert.Equal(t, token.AccessToken, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice@example.com")

	wrongKey, wrongRes := call(t, e.auth.Login, http.MethodPost, `{"email":"alice@example.com","auth_key_hash":"H2"}`, uuid.Nil)
	unknown, unknownRes := call(t, e.auth.Login, http.MethodPost, `{"email":"bob@example.com","auth_key_hash":"H1"}`, uuid.Nil)

	assert.Equal(t, http.StatusUnauthorized, wrongKey.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongRes, unknownRes)
	assert.Equal(t, "Bearer", wrongKey.Header().Get("WWW-Authenticate"))
	assert.Empty(t, wrongKey.Result().Cookies())
}

func TestLogoutClearsCookie(t *testing.T) {
	e := newEnv(t)

	rec, _ := call(t, e.auth.Logout, http.MethodPost, "", uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestMeAndDeleteAccount(t *testing.T) {
	e := newEnv(t)
	userID := e.register(t, "alice@example.com")

	rec, res := call(t, e.auth.Me, http.MethodGet, "", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(res.Data), userID.String())

	rec, _ = call(t, e.auth.DeleteAccount, http.MethodDelete, "", userID)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = call(t, e.auth.Me, http.MethodGet, "", userID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedHandlersRequireUser(t *testing.T) {
	e := newEnv(t)

	for name, h := range map[string]http.HandlerFunc{
		"me":           e.auth.Me,
		"delete me":    e.auth.DeleteAccount,
		"get vault":    e.vault.Get,
		"create vault": e.vault.Create,
		"update vault": e.vault.Update,
		"delete vault": e.vault.Delete,
		"export":       e.vault.Export,
	} {
		t.Run(name, func(t *testing.T) {
			rec, _ := call(t, h, http.MethodGet, "", uuid.Nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestVaultLifecycle(t *testing.T) {
	e := newEnv(t)
	userID := e.register(t, "alice@example.com")

	rec, _ := call(t, e.vault.Get, http.MethodGet, "", userID)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, res := call(t, e.vault.Create, http.MethodPost, `{"encrypted_data":"C1","iv":"I1"}`, userID)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(res.Data), `"version":1`)

	rec, _ = call(t, e.vault.Create, http.MethodPost, `{"encrypted_data":"C1","iv":"I1"}`, userID)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, res = call(t, e.vault.Update, http.MethodPut, `{"encrypted_data":"C2","iv":"I2"}`, userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(res.Data), `"version":2`)

	rec, _ = call(t, e.vault.Update, http.MethodPut, `{"encrypted_data":"C3","iv":"I3","expected_version":1}`, userID)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, res = call(t, e.vault.Update, http.MethodPut, `{"encrypted_data":"C3","iv":"I3","expected_version":2}`, userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(res.Data), `"version":3`)
	assert.Contains(t, string(res.Data), `"encrypted_data":"C3"`)

	rec, _ = call(t, e.vault.Delete, http.MethodDelete, "", userID)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = call(t, e.vault.Delete, http.MethodDelete, "", userID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVaultValidation(t *testing.T) {
	e := newEnv(t)
	userID := e.register(t, "alice@example.com")

	rec, _ := call(t, e.vault.Create, http.MethodPost, `{"encrypted_data":"","iv":"I1"}`, userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = call(t, e.vault.Create, http.MethodPost, `{"encrypted_data":"C1","iv":"I1","expected_version":1}`, userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = call(t, e.vault.Update, http.MethodPut, `{"encrypted_data":"C1","iv":"I1"}`, userID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportWithoutArchive(t *testing.T) {
	e := newEnv(t)
	userID := e.register(t, "alice@example.com")

	rec, res := call(t, e.vault.Export, http.MethodGet, "", userID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "vault export is not configured", res.Message)
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), fmt.Errorf("update vault: %w", context.DeadlineExceeded))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "deadline")
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(nil)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Health(func(context.Context) error { return context.Canceled })(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
