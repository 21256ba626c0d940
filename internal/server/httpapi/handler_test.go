package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cookieauth/internal/common"
	"github.com/dmitrijs2005/cookieauth/internal/cryptox"
	"github.com/dmitrijs2005/cookieauth/internal/logging"
	"github.com/dmitrijs2005/cookieauth/internal/server/auth"
	"github.com/dmitrijs2005/cookieauth/internal/server/config"
	"github.com/dmitrijs2005/cookieauth/internal/server/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

var fakeHashParams = cryptox.Argon2Params{Memory: cryptox.MinMemoryKB, Time: 1, Threads: 1, SaltLength: 16, KeyLength: 32}

func fakeHash(password string) (string, error) {
	return cryptox.HashPassword([]byte(password), fakeHashParams)
}

func fakeMatches(encoded, password string) bool {
	ok, err := cryptox.VerifyPassword([]byte(password), encoded)
	return err == nil && ok
}

type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nextID int64

	createErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*models.User{}}
}

func (f *fakeStore) Create(ctx context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.users[email]; ok {
		return nil, common.ErrorConflict
	}
	hash, err := fakeHash(password)
	if err != nil {
		return nil, common.ErrorPersistence
	}
	f.nextID++
	u := &models.User{ID: f.nextID, Email: email, PasswordHash: hash}
	f.users[email] = u
	return u, nil
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := f.FindByEmail(ctx, email)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	if !fakeMatches(u.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}
	return u, nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, user *models.User, previous, next string) error {
	if !fakeMatches(user.PasswordHash, previous) {
		return common.ErrorPreconditionFailed
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, err := f.FindByID(ctx, user.ID); err != nil {
		return err
	}
	hash, err := fakeHash(next)
	if err != nil {
		return common.ErrorPersistence
	}
	user.PasswordHash = hash
	return nil
}

func (f *fakeStore) remove(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, email)
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

// --- helpers ---

type testEnv struct {
	router *gin.Engine
	store  *fakeStore
	issuer *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithTTL(t, 15*time.Minute, time.Hour)
}

func newTestEnvWithTTL(t *testing.T, accessTTL, refreshTTL time.Duration) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AccessTokenValidityDuration = accessTTL
	cfg.RefreshTokenValidityDuration = refreshTTL

	store := newFakeStore()
	issuer := auth.NewIssuer("test-secret", accessTTL, refreshTTL)
	h := NewHandler(store, issuer, auth.NewCookieTransport(cfg), logging.Nop())
	return &testEnv{router: NewRouter(h, nil), store: store, issuer: issuer}
}

// jar keeps cookies between requests the way a browser would.
type jar map[string]string

func (j jar) update(rec *httptest.ResponseRecorder) {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(j, c.Name)
			continue
		}
		j[c.Name] = c.Value
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, j jar) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range j {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if j != nil {
		j.update(rec)
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func cookieNames(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

const signupBody = `{"email":"lacoste@gmail.com","password":"FooBar123","password_confirmation":"FooBar123"}`

func (e *testEnv) signup(t *testing.T, j jar) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/user/create", signupBody, j)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// --- signup ---

func TestCreateUser_Success(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/user/create", signupBody, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "SUCCESS", body["status"])
	assert.Equal(t, "User lacoste@gmail.com was successfully created", body["message"])
	assert.NotContains(t, body, "errors")

	cookies := cookieNames(rec)
	require.Contains(t, cookies, common.AccessTokenCookieName)
	require.Contains(t, cookies, common.RefreshTokenCookieName)
	assert.True(t, cookies[common.AccessTokenCookieName].HttpOnly)

	u, err := e.store.FindByEmail(context.Background(), "lacoste@gmail.com")
	require.NoError(t, err)
	assert.NotEqual(t, "FooBar123", u.PasswordHash)
	assert.NotContains(t, rec.Body.String(), cookies[common.AccessTokenCookieName].Value)
}

func TestCreateUser_Duplicate_Conflict(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, nil)

	rec := e.do(t, http.MethodPost, "/user/create", signupBody, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "FAILED", body["status"])
	assert.Equal(t, "User lacoste@gmail.com already exists", body["message"])
	assert.Equal(t, 1, e.store.count())
	assert.Empty(t, rec.Result().Cookies())
}

func TestCreateUser_Duplicate_CheckedBeforeValidation(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, nil)

	rec := e.do(t, http.MethodPost, "/user/create",
		`{"email":"lacoste@gmail.com","password":"x","password_confirmation":"y"}`, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateUser_InvalidPayload_ReportsEveryField(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/user/create",
		`{"email":"lacostegmailcom","password":"FooBar","password_confirmation":"Lambda456"}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "FAILED", body["status"])
	assert.Equal(t, "Invalid payload", body["message"])

	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 3)

	first := errs[0].(map[string]any)
	assert.Equal(t, "lacostegmailcom", first["input"])
	assert.Equal(t, []any{"email"}, first["loc"])
	assert.Equal(t, "value is not a valid email address", first["msg"])
	assert.Equal(t, "value_error", first["type"])

	second := errs[1].(map[string]any)
	assert.Equal(t, []any{"password"}, second["loc"])
	assert.Equal(t, "string_too_short", second["type"])

	third := errs[2].(map[string]any)
	assert.Equal(t, []any{"password_confirmation"}, third["loc"])
	assert.Equal(t, "Passwords do not match", third["msg"])

	assert.Equal(t, 0, e.store.count())
}

func TestCreateUser_NotJSON(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/user/create", `not json`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid payload", decodeBody(t, rec)["message"])
}

func TestCreateUser_StoreFailure(t *testing.T) {
	e := newTestEnv(t)
	e.store.createErr = errors.Join(common.ErrorPersistence, errors.New("disk full"))

	rec := e.do(t, http.MethodPost, "/user/create", signupBody, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Error while creating user", body["message"])
	assert.NotContains(t, rec.Body.String(), "disk full")
	assert.Empty(t, rec.Result().Cookies())
}

func TestCreateUser_RacingDuplicate_Conflict(t *testing.T) {
	e := newTestEnv(t)
	e.store.createErr = common.ErrorConflict

	rec := e.do(t, http.MethodPost, "/user/create", signupBody, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
}

// --- login ---

func TestLogin_Success_SetsBothCookies(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, nil)

	rec := e.do(t, http.MethodPost, "/auth/login", `{"email":"lacoste@gmail.com","password":"FooBar123"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "SUCCESS", body["status"])
	assert.Equal(t, "User lacoste@gmail.com was successfully logged in", body["message"])

	cookies := cookieNames(rec)
	assert.Contains(t, cookies, common.AccessTokenCookieName)
	assert.Contains(t, cookies, common.RefreshTokenCookieName)
}

func TestLogin_WrongPasswordAndUnknownEmail_Identical(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, nil)

	wrong := e.do(t, http.MethodPost, "/auth/login", `{"email":"lacoste@gmail.com","password":"WrongPass1"}`, nil)
	unknown := e.do(t, http.MethodPost, "/auth/login", `{"email":"ghost@gmail.com","password":"FooBar123"}`, nil)

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Error while logging in", decodeBody(t, wrong)["message"])
	assert.Empty(t, wrong.Result().Cookies())
}

func TestLogin_InvalidPayload(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/login", `{"email":"lacostegmailcom","password":"FooBar"}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decodeBody(t, rec)["errors"].([]any)
	assert.Len(t, errs, 2)
}

// --- guards and index ---

func TestIndex_ReturnsUser(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)

	rec := e.do(t, http.MethodGet, "/", "", j)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":{"id":1,"email":"lacoste@gmail.com"}}`, rec.Body.String())
}

func TestIndex_MissingCookie(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Unable to authenticate", body["message"])
	assert.Equal(t, []any{`Missing cookie "access_token_cookie"`}, body["errors"])
}

func TestIndex_RefreshTokenIsNotAccessToken(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)
	j[common.AccessTokenCookieName] = j[common.RefreshTokenCookieName]

	rec := e.do(t, http.MethodGet, "/", "", j)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []any{"Invalid token"}, decodeBody(t, rec)["errors"])
}

func TestIndex_ExpiredToken(t *testing.T) {
	e := newTestEnvWithTTL(t, -time.Minute, time.Hour)
	j := jar{}
	e.signup(t, j)
	// the browser would have dropped the expired cookie; send it anyway
	tok, err := e.issuer.IssueAccessToken(1)
	require.NoError(t, err)
	j[common.AccessTokenCookieName] = tok

	rec := e.do(t, http.MethodGet, "/", "", j)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []any{"Token has expired"}, decodeBody(t, rec)["errors"])
}

func TestIndex_UserGone(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)
	e.store.remove("lacoste@gmail.com")

	rec := e.do(t, http.MethodGet, "/", "", j)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No user authenticated", decodeBody(t, rec)["message"])
}

// --- refresh ---

func TestRefresh_IssuesAccessCookieOnly(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)

	rec := e.do(t, http.MethodGet, "/auth/token/refresh", "", j)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Access token refreshed for the user lacoste@gmail.com", decodeBody(t, rec)["message"])
	cookies := cookieNames(rec)
	assert.Contains(t, cookies, common.AccessTokenCookieName)
	assert.NotContains(t, cookies, common.RefreshTokenCookieName)

	_, err := e.issuer.VerifyToken(cookies[common.AccessTokenCookieName].Value, auth.KindAccess)
	assert.NoError(t, err)
}

func TestRefresh_RequiresRefreshCookie(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)
	delete(j, common.RefreshTokenCookieName)

	rec := e.do(t, http.MethodGet, "/auth/token/refresh", "", j)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []any{`Missing cookie "refresh_token_cookie"`}, decodeBody(t, rec)["errors"])
}

// --- logout ---

func TestLogout_WithoutSession(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/logout", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "There is no authenticated user", decodeBody(t, rec)["message"])
}

func TestLogout_InvalidCookieIsNoSession(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/logout", "", jar{common.AccessTokenCookieName: "garbage"})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_ClearsCookies_ThenProtectedRouteFails(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)

	rec := e.do(t, http.MethodPost, "/auth/logout", "", j)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User was successfully logged out", decodeBody(t, rec)["message"])
	for _, c := range rec.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}
	assert.Empty(t, j)

	rec = e.do(t, http.MethodGet, "/", "", j)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- password update ---

func updateBody(next, previous string) string {
	return `{"password":"` + next + `","password_confirmation":"` + next + `","previous_password":"` + previous + `"}`
}

func TestUpdatePassword_RoundTrip(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)

	rec := e.do(t, http.MethodPatch, "/user/password/update", updateBody("SecondPass1", "FooBar123"), j)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User successfully updated", decodeBody(t, rec)["message"])
	cookies := cookieNames(rec)
	assert.Contains(t, cookies, common.AccessTokenCookieName)
	assert.Contains(t, cookies, common.RefreshTokenCookieName)

	rec = e.do(t, http.MethodPatch, "/user/password/update", updateBody("FooBar123", "SecondPass1"), j)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// SecondPass1 is stale now
	rec = e.do(t, http.MethodPatch, "/user/password/update", updateBody("ThirdPass1", "SecondPass1"), j)
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "Previous password is invalid", decodeBody(t, rec)["message"])

	login := e.do(t, http.MethodPost, "/auth/login", `{"email":"lacoste@gmail.com","password":"FooBar123"}`, nil)
	assert.Equal(t, http.StatusOK, login.Code)
}

func TestUpdatePassword_Validation(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)

	rec := e.do(t, http.MethodPatch, "/user/password/update",
		`{"password":"short","password_confirmation":"other","previous_password":"FooBar123"}`, j)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decodeBody(t, rec)["errors"].([]any)
	assert.Len(t, errs, 2)
}

func TestUpdatePassword_RequiresAccess(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPatch, "/user/password/update", updateBody("SecondPass1", "FooBar123"), nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdatePassword_UserGone(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)
	e.store.remove("lacoste@gmail.com")

	rec := e.do(t, http.MethodPatch, "/user/password/update", updateBody("SecondPass1", "FooBar123"), j)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeBody(t, rec)["message"])
}

func TestUpdatePassword_StoreFailure(t *testing.T) {
	e := newTestEnv(t)
	j := jar{}
	e.signup(t, j)
	e.store.updateErr = errors.Join(common.ErrorPersistence, errors.New("timeout"))

	rec := e.do(t, http.MethodPatch, "/user/password/update", updateBody("SecondPass1", "FooBar123"), j)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error while updating user", decodeBody(t, rec)["message"])
}

// --- ambient ---

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"cookieauth"}`, rec.Body.String())
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get(common.RequestIDHeaderName))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(common.RequestIDHeaderName, "abc-123")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(common.RequestIDHeaderName))
}

func TestCORS_AllowsConfiguredOriginWithCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.LoadDefaults()
	h := NewHandler(newFakeStore(), auth.NewIssuer("s", time.Minute, time.Hour), auth.NewCookieTransport(cfg), logging.Nop())
	router := NewRouter(h, []string{"http://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://app.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
