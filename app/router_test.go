package app

import (
	"bitwise74/user-api/internal"
	"bitwise74/user-api/internal/dbtest"
	"bitwise74/user-api/internal/service"
	"bitwise74/user-api/internal/store"
	"bitwise74/user-api/pkg/security"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mailbox struct {
	mu   sync.Mutex
	jobs []*service.MailJob
}

func (m *mailbox) Enqueue(job *service.MailJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mailbox) tokenFor(t *testing.T, email string) string {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.jobs) - 1; i >= 0; i-- {
		if m.jobs[i].To == email {
			return m.jobs[i].Token
		}
	}

	t.Fatalf("no verification mail for %v", email)
	return ""
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	deps   *internal.Deps
	mail   *mailbox
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	gormDB := dbtest.New(t)

	sessions, err := security.NewSessionTokens("test-secret", time.Hour, "test")
	require.NoError(t, err)

	codec, err := security.NewVerificationCodec("test-secret", time.Hour)
	require.NoError(t, err)

	d := &internal.Deps{
		DB:        gormDB,
		Users:     store.NewUsers(gormDB),
		Argon:     security.NewWithCost(1024, 1, 1),
		Sessions:  sessions,
		Codec:     codec,
		MailQueue: service.NewMailQueue(service.LogSender{}, 1, 1, time.Second),
		Env:       "test",
	}

	mail := &mailbox{}
	d.Accounts = service.NewAccounts(service.AccountsConfig{
		Users:    d.Users,
		Hasher:   d.Argon,
		Sessions: d.Sessions,
		Codec:    d.Codec,
		Notifier: mail,
	})

	router := gin.New()
	Routes(router, d, Options{})

	return &testAPI{t: t, router: router, deps: d, mail: mail}
}

type response struct {
	Code int
	Body map[string]any
}

func (a *testAPI) do(method, path, token string, body any) response {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	res := response{Code: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &res.Body), w.Body.String())
	}
	return res
}

func (a *testAPI) register(name, email, password string) uint {
	a.t.Helper()

	res := a.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     name,
		"email":    email,
		"password": password,
	})
	require.Equal(a.t, http.StatusCreated, res.Code, res.Body)

	return uint(res.Body["user"].(map[string]any)["id"].(float64))
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()

	res := a.do(http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    email,
		"password": password,
	})
	require.Equal(a.t, http.StatusOK, res.Code, res.Body)

	return res.Body["token"].(string)
}

func (a *testAPI) verify(token string) response {
	a.t.Helper()
	return a.do(http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), "", nil)
}

func TestWalkthrough(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Alice",
		"email":    "alice@x.com",
		"password": "pw1",
	})
	require.Equal(t, http.StatusCreated, res.Code)

	user := res.Body["user"].(map[string]any)
	assert.Equal(t, "unverified", user["status"])
	assert.Equal(t, "alice@x.com", user["email"])
	assert.NotContains(t, user, "password")
	aliceID := uint(user["id"].(float64))

	res = api.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Alice again",
		"email":    "alice@x.com",
		"password": "pw2",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body["error"], "already registered")

	wrongEmail, err := api.deps.Codec.Encode(aliceID, "mallory@x.com", time.Now())
	require.NoError(t, err)

	res = api.verify(wrongEmail)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	genericFailure := res.Body["error"]

	res = api.verify(api.mail.tokenFor(t, "alice@x.com"))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "active", res.Body["user"].(map[string]any)["status"])

	token := api.login("alice@x.com", "pw1")

	res = api.do(http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["users"], 1)

	res = api.do(http.MethodPost, "/api/users/block", token, gin.H{"userIds": []uint{aliceID}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["redirect"])
	assert.Len(t, res.Body["blockedUsers"], 1)

	res = api.do(http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, true, res.Body["redirect"])

	// Verifying an active or blocked account fails like any bad token
	res = api.verify(api.mail.tokenFor(t, "alice@x.com"))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, genericFailure, res.Body["error"])
}

func TestRegister_Validation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing name", gin.H{"email": "a@x.io", "password": "pw"}, "name"},
		{"bad email", gin.H{"name": "A", "email": "nope", "password": "pw"}, "email"},
		{"missing password", gin.H{"name": "A", "email": "a@x.io"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := api.do(http.MethodPost, "/api/auth/register", "", tt.body)
			require.Equal(t, http.StatusBadRequest, res.Code)

			errs := res.Body["errors"].([]any)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.field, errs[0].(map[string]any)["field"])
		})
	}

	// Whitespace only names pass binding but not the service
	res := api.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "   ", "email": "a@x.io", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Name is required", res.Body["error"])
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	api := newTestAPI(t)

	const n = 5
	codes := make([]int, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()

			body, _ := json.Marshal(gin.H{"name": "Racer", "email": "race@x.io", "password": "pw"})
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	var created, rejected int
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
			rejected++
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, rejected)
}

func TestLogin_SameErrorForUnknownAndWrongPassword(t *testing.T) {
	api := newTestAPI(t)
	api.register("Alice", "alice@x.io", "secret")

	unknown := api.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "bob@x.io", "password": "secret"})
	wrong := api.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@x.io", "password": "nope"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, unknown.Body["error"], wrong.Body["error"])
}

func TestLogin_Blocked(t *testing.T) {
	api := newTestAPI(t)

	api.register("Admin", "admin@x.io", "pw")
	bob := api.register("Bob", "bob@x.io", "pw")
	token := api.login("admin@x.io", "pw")

	res := api.do(http.MethodPost, "/api/users/block", token, gin.H{"userIds": []uint{bob}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotContains(t, res.Body, "redirect")

	res = api.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "bob@x.io", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestDeletedUserTokenRejected(t *testing.T) {
	api := newTestAPI(t)

	admin := api.register("Admin", "admin@x.io", "pw")
	bob := api.register("Bob", "bob@x.io", "pw")
	adminToken := api.login("admin@x.io", "pw")
	bobToken := api.login("bob@x.io", "pw")

	res := api.do(http.MethodPost, "/api/users/delete", adminToken, gin.H{"userIds": []uint{bob}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "1 user(s) deleted successfully", res.Body["message"])

	res = api.do(http.MethodGet, "/api/users", bobToken, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, true, res.Body["redirect"])

	res = api.do(http.MethodPost, "/api/users/delete", adminToken, gin.H{"userIds": []uint{admin}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["redirect"])

	res = api.do(http.MethodGet, "/api/users", adminToken, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestListOrder(t *testing.T) {
	api := newTestAPI(t)

	never := api.register("Never", "never@x.io", "pw")
	first := api.register("First", "first@x.io", "pw")
	second := api.register("Second", "second@x.io", "pw")

	api.login("first@x.io", "pw")
	time.Sleep(10 * time.Millisecond)
	token := api.login("second@x.io", "pw")

	res := api.do(http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, res.Code)

	users := res.Body["users"].([]any)
	require.Len(t, users, 3)

	ids := make([]uint, 0, 3)
	for _, u := range users {
		m := u.(map[string]any)
		ids = append(ids, uint(m["id"].(float64)))
		assert.NotContains(t, m, "password")
	}

	assert.Equal(t, []uint{second, first, never}, ids)
	assert.Nil(t, users[2].(map[string]any)["last_login"])
}

func TestUnblockRestoresActive(t *testing.T) {
	api := newTestAPI(t)

	api.register("Admin", "admin@x.io", "pw")
	bob := api.register("Bob", "bob@x.io", "pw")
	token := api.login("admin@x.io", "pw")

	res := api.do(http.MethodPost, "/api/users/block", token, gin.H{"userIds": []uint{bob}})
	require.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodPost, "/api/users/unblock", token, gin.H{"userIds": []uint{bob}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "1 user(s) unblocked successfully", res.Body["message"])

	u, err := api.deps.Users.FindByID(context.Background(), bob)
	require.NoError(t, err)
	assert.EqualValues(t, "active", u.Status)
}

func TestDeleteUnverified(t *testing.T) {
	api := newTestAPI(t)

	api.register("Admin", "admin@x.io", "pw")
	require.Equal(t, http.StatusOK, api.verify(api.mail.tokenFor(t, "admin@x.io")).Code)

	api.register("Pending", "pending@x.io", "pw")
	blocked := api.register("Blocked", "blocked@x.io", "pw")
	token := api.login("admin@x.io", "pw")

	res := api.do(http.MethodPost, "/api/users/block", token, gin.H{"userIds": []uint{blocked}})
	require.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodPost, "/api/users/delete-unverified", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["deletedUsers"], 1)
	assert.NotContains(t, res.Body, "redirect")

	res = api.do(http.MethodGet, "/api/users", token, nil)
	assert.Len(t, res.Body["users"], 2)

	api.register("Pending again", "pending@x.io", "pw")
}

func TestBulk_NoUsersSelected(t *testing.T) {
	api := newTestAPI(t)

	api.register("Admin", "admin@x.io", "pw")
	token := api.login("admin@x.io", "pw")

	for _, path := range []string{"/api/users/block", "/api/users/unblock", "/api/users/delete"} {
		res := api.do(http.MethodPost, path, token, gin.H{"userIds": []uint{}})
		assert.Equal(t, http.StatusBadRequest, res.Code, path)
		assert.Equal(t, "No users selected", res.Body["error"], path)

		res = api.do(http.MethodPost, path, token, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code, path)
	}
}

func TestBulk_TooManyUsers(t *testing.T) {
	api := newTestAPI(t)

	api.register("Admin", "admin@x.io", "pw")
	token := api.login("admin@x.io", "pw")

	ids := make([]uint, 1001)
	for i := range ids {
		ids[i] = uint(i + 1)
	}

	for _, path := range []string{"/api/users/block", "/api/users/unblock", "/api/users/delete"} {
		res := api.do(http.MethodPost, path, token, gin.H{"userIds": ids})
		assert.Equal(t, http.StatusBadRequest, res.Code, path)
		assert.Equal(t, "Too many users selected", res.Body["error"], path)
	}

	res := api.do(http.MethodPost, "/api/users/block", token, gin.H{"userIds": ids[:500]})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestResendVerification(t *testing.T) {
	api := newTestAPI(t)

	api.register("Alice", "alice@x.io", "pw")

	known := api.do(http.MethodPost, "/api/auth/resend-verification", "", gin.H{"email": "alice@x.io"})
	unknown := api.do(http.MethodPost, "/api/auth/resend-verification", "", gin.H{"email": "bob@x.io"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body["message"], unknown.Body["message"])

	res := api.verify(api.mail.tokenFor(t, "alice@x.io"))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestBodyLimit(t *testing.T) {
	api := newTestAPI(t)

	router := gin.New()
	Routes(router, api.deps, Options{BodyLimit: 64})

	payload := `{"name":"` + strings.Repeat("a", 500) + `","email":"a@x.io","password":"pw"}`

	send := func(body io.Reader) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// Known length
	assert.Equal(t, http.StatusRequestEntityTooLarge, send(strings.NewReader(payload)).Code)

	// Chunked, the limit only trips while binding
	w := send(io.MultiReader(strings.NewReader(payload)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "Request body size exceeds limit")

	users, err := api.deps.Users.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.NotEmpty(t, res.Body["requestID"])
}

func TestRootRoutes(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Body["status"])
	assert.Equal(t, "test", res.Body["environment"])

	res = api.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "User Management API", res.Body["message"])

	res = api.do(http.MethodHead, "/api/heartbeat", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = api.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}
