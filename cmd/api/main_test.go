package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"storerate/admin"
	"storerate/apperr"
	"storerate/auth"
	"storerate/rating"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthRepo struct {
	users  map[string]auth.User
	nextID int64
}

func (s *stubAuthRepo) CreateUser(_ context.Context, params auth.CreateUserParams) (auth.User, error) {
	key := strings.ToLower(params.Email)
	if _, ok := s.users[key]; ok {
		return auth.User{}, auth.ErrDuplicateEmail
	}
	s.nextID++
	u := auth.User{ID: s.nextID, Name: params.Name, Email: params.Email, PasswordHash: params.PasswordHash, Address: params.Address, Role: params.Role}
	s.users[key] = u
	return u, nil
}

func (s *stubAuthRepo) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (s *stubAuthRepo) GetUserByID(_ context.Context, id int64) (auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (s *stubAuthRepo) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	for k, u := range s.users {
		if u.ID == id {
			u.PasswordHash = hash
			s.users[k] = u
			return nil
		}
	}
	return auth.ErrUserNotFound
}

type stubRatingRepo struct {
	stores  []rating.StoreListing
	owner   map[int64]rating.Store
	ratings map[[2]int64]int
	err     error
}

func (s *stubRatingRepo) ListStores(_ context.Context, _ int64, _ string) ([]rating.StoreListing, error) {
	return s.stores, s.err
}

func (s *stubRatingRepo) UpsertRating(_ context.Context, userID, storeID int64, value int) error {
	if s.err != nil {
		return s.err
	}
	s.ratings[[2]int64{userID, storeID}] = value
	return nil
}

func (s *stubRatingRepo) StoreAverage(_ context.Context, _ int64) (*float64, error) {
	return nil, s.err
}

func (s *stubRatingRepo) StoreByOwner(_ context.Context, ownerID int64) (rating.Store, error) {
	store, ok := s.owner[ownerID]
	if !ok {
		return rating.Store{}, rating.ErrOwnerStoreNotFound
	}
	return store, nil
}

func (s *stubRatingRepo) RatersForStore(_ context.Context, _ int64) ([]rating.Rater, error) {
	return []rating.Rater{}, s.err
}

type stubAdminRepo struct {
	stats admin.Stats
}

func (s *stubAdminRepo) CountUsers(context.Context) (int64, error)   { return s.stats.TotalUsers, nil }
func (s *stubAdminRepo) CountStores(context.Context) (int64, error)  { return s.stats.TotalStores, nil }
func (s *stubAdminRepo) CountRatings(context.Context) (int64, error) { return s.stats.TotalRatings, nil }

func (s *stubAdminRepo) ListStores(context.Context, string) ([]admin.StoreRow, error) {
	return []admin.StoreRow{}, nil
}

func (s *stubAdminRepo) ListUsers(context.Context, string) ([]admin.UserRow, error) {
	return []admin.UserRow{}, nil
}

func (s *stubAdminRepo) InsertUser(_ context.Context, _ auth.Querier, params auth.CreateUserParams) (auth.User, error) {
	return auth.User{ID: 99, Name: params.Name, Email: params.Email, Role: params.Role}, nil
}

func (s *stubAdminRepo) FindStoreOwnerID(context.Context, auth.Querier, string) (int64, error) {
	return 0, admin.ErrOwnerNotFound
}

func (s *stubAdminRepo) InsertStore(context.Context, auth.Querier, admin.InsertStoreParams) (int64, error) {
	return 1, nil
}

type stubPool struct{}

func (stubPool) Begin(context.Context) (pgx.Tx, error) { return stubTx{}, nil }

// stubTx embeds pgx.Tx so only the methods the admin service calls exist.
type stubTx struct{ pgx.Tx }

func (stubTx) Commit(context.Context) error   { return nil }
func (stubTx) Rollback(context.Context) error { return nil }
func (stubTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

type stubRevoker struct {
	revoked map[string]time.Duration
}

func (s *stubRevoker) Revoke(_ context.Context, token string, ttl time.Duration) error {
	s.revoked[token] = ttl
	return nil
}

func (s *stubRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	_, ok := s.revoked[token]
	return ok, nil
}

type testEnv struct {
	server  *Server
	ratings *stubRatingRepo
	handler http.Handler
}

func newTestEnv(t *testing.T, revoker tokenRevoker) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})

	authService := auth.NewService(&stubAuthRepo{users: map[string]auth.User{}}, "test-secret", time.Hour).
		WithHashCost(bcrypt.MinCost)
	ratings := &stubRatingRepo{
		owner:   map[int64]rating.Store{},
		ratings: map[[2]int64]int{},
	}
	server := &Server{
		authService:   authService,
		ratingService: rating.NewService(ratings),
		adminService:  admin.NewService(stubPool{}, &stubAdminRepo{stats: admin.Stats{TotalUsers: 4, TotalStores: 2, TotalRatings: 5}}, authService),
		revocations:   revoker,
		log:           log,
	}
	return &testEnv{server: server, ratings: ratings, handler: server.routes()}
}

func (e *testEnv) token(t *testing.T, id int64, role auth.Role) string {
	t.Helper()
	token, err := e.server.authService.IssueToken(auth.User{ID: id, Name: "Test Caller", Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRegisterLoginAndProfile(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Alice Wonderland Customer",
		"email":    "alice@example.com",
		"password": "Passw0rd!",
		"address":  "221B Baker Street",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "Passw0rd!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	login := decode[loginResponse](t, rec)
	if login.Token == "" || login.Role != auth.RoleNormalUser || login.Name != "Alice Wonderland Customer" {
		t.Fatalf("unexpected login response %+v", login)
	}

	rec = env.do(http.MethodGet, "/api/auth/me", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	if me := decode[userResponse](t, rec); me.ID != login.ID || me.Email != "alice@example.com" {
		t.Fatalf("unexpected profile %+v", me)
	}

	rec = env.do(http.MethodPut, "/api/auth/update-password", login.Token, map[string]string{
		"oldPassword": "wrong",
		"newPassword": "N3wPassw0rd!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("update password with wrong old password: expected 400, got %d", rec.Code)
	}
	if body := decode[apperr.Body](t, rec); body.Message != "Incorrect old password" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRegisterValidationAndConflict(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Too Short",
		"email":    "bad",
		"password": "password",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode[apperr.Body](t, rec)
	if len(body.Errors) != 3 {
		t.Fatalf("expected name, email and password errors, got %+v", body.Errors)
	}

	valid := map[string]string{
		"name":     "Alice Wonderland Customer",
		"email":    "alice@example.com",
		"password": "Passw0rd!",
	}
	if rec := env.do(http.MethodPost, "/api/auth/register", "", valid); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/api/auth/register", "", valid); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate email, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on malformed body, got %d", rec.Code)
	}
}

func TestRegisterRejectsUnstorableInput(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Alice Wonderland Customer\x00",
		"email":    strings.Repeat("a", 64) + "@" + strings.Repeat("b", 187) + ".com",
		"password": "Passw0rd!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	got := map[string]bool{}
	for _, f := range decode[apperr.Body](t, rec).Errors {
		got[f.Field] = true
	}
	if !got["name"] || !got["email"] {
		t.Fatalf("expected name and email errors, got %v", got)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "Passw0rd!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decode[apperr.Body](t, rec); body.Message != "Invalid credentials" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestAdminDashboardRoles(t *testing.T) {
	env := newTestEnv(t, nil)

	if rec := env.do(http.MethodGet, "/api/admin/dashboard", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/admin/dashboard", env.token(t, 1, auth.RoleNormalUser), nil); rec.Code != http.StatusForbidden {
		t.Fatalf("normal user: expected 403, got %d", rec.Code)
	}

	rec := env.do(http.MethodGet, "/api/admin/dashboard", env.token(t, 2, auth.RoleSystemAdministrator), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rec.Code)
	}
	if stats := decode[admin.Stats](t, rec); stats.TotalUsers != 4 || stats.TotalStores != 2 || stats.TotalRatings != 5 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAdminAddStoreUnknownOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t, 2, auth.RoleSystemAdministrator)

	rec := env.do(http.MethodPost, "/api/admin/stores", token, map[string]string{
		"name":       "Cafe",
		"address":    "1 Rd",
		"ownerEmail": "user@x.com",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/admin/users", token, map[string]string{
		"name":     "Ada Platform Administrator",
		"email":    "ada@x.com",
		"password": "Passw0rd!",
		"role":     string(auth.RoleSystemAdministrator),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add user: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if created := decode[createdUserResponse](t, rec); created.User.Role != auth.RoleSystemAdministrator {
		t.Fatalf("unexpected created user %+v", created)
	}
}

func TestRateStore(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t, 5, auth.RoleNormalUser)

	if rec := env.do(http.MethodPut, "/api/stores/abc/rate", token, map[string]int{"rating": 3}); rec.Code != http.StatusNotFound {
		t.Fatalf("non-numeric store id: expected 404, got %d", rec.Code)
	}
	if rec := env.do(http.MethodPut, "/api/stores/3/rate", token, map[string]int{"rating": 7}); rec.Code != http.StatusBadRequest {
		t.Fatalf("rating 7: expected 400, got %d", rec.Code)
	}
	if rec := env.do(http.MethodPut, "/api/stores/3/rate", token, map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing rating: expected 400, got %d", rec.Code)
	}
	if rec := env.do(http.MethodPut, "/api/stores/3/rate", token, map[string]float64{"rating": 2.5}); rec.Code != http.StatusBadRequest {
		t.Fatalf("fractional rating: expected 400, got %d", rec.Code)
	}

	rec := env.do(http.MethodPut, "/api/stores/3/rate", token, map[string]int{"rating": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := env.ratings.ratings[[2]int64{5, 3}]; got != 4 {
		t.Fatalf("expected stored rating 4, got %d", got)
	}

	owner := env.token(t, 6, auth.RoleStoreOwner)
	if rec := env.do(http.MethodPut, "/api/stores/3/rate", owner, map[string]int{"rating": 4}); rec.Code != http.StatusForbidden {
		t.Fatalf("store owner rating: expected 403, got %d", rec.Code)
	}
}

func TestOwnerDashboardNullAverage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ratings.owner[6] = rating.Store{ID: 3, Name: "Cafe", OwnerID: 6}

	rec := env.do(http.MethodGet, "/api/stores/owner-dashboard", env.token(t, 6, auth.RoleStoreOwner), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"averageRating":null`) {
		t.Fatalf("expected null average, got %s", rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/stores/owner-dashboard", env.token(t, 7, auth.RoleStoreOwner), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("owner without store: expected 404, got %d", rec.Code)
	}
}

func TestListStoresInternalError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ratings.err = errors.New("rating: list stores: connection refused")

	rec := env.do(http.MethodGet, "/api/stores?search=cafe", env.token(t, 5, auth.RoleNormalUser), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decode[apperr.Body](t, rec)
	if body.Message != "Server error" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestLogout(t *testing.T) {
	without := newTestEnv(t, nil)
	if rec := without.do(http.MethodPost, "/api/auth/logout", without.token(t, 1, auth.RoleNormalUser), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("logout without revocation store: expected 404, got %d", rec.Code)
	}

	revoker := &stubRevoker{revoked: map[string]time.Duration{}}
	env := newTestEnv(t, revoker)
	token := env.token(t, 1, auth.RoleNormalUser)

	if rec := env.do(http.MethodPost, "/api/auth/logout", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	if ttl := revoker.revoked[token]; ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected ttl within token lifetime, got %s", ttl)
	}
	if rec := env.do(http.MethodGet, "/api/stores", token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}
