package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"nutritrack/internal/auth"
	"nutritrack/internal/domain"
	"nutritrack/internal/nutrition"
	"nutritrack/internal/repository"
	"nutritrack/internal/repository/sqlite"
	"nutritrack/internal/service"
	"nutritrack/internal/storage"
)

const testSecret = "test-secret"

// stubStorage answers storage calls without a bucket, for handler tests.
type stubStorage struct{}

func (stubStorage) UploadObject(_ context.Context, key, _ string, _ io.Reader) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (stubStorage) DeleteObject(context.Context, string) error { return nil }

func (stubStorage) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.test/presigned/" + key, nil
}

type testServer struct {
	router *gin.Engine
	meals  repository.MealRepository
}

func newTestServer(t *testing.T, store storage.Service) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	mealRepo := sqlite.NewMealRepository(db)
	require.NoError(t, userRepo.Init(context.Background()))
	require.NoError(t, mealRepo.Init(context.Background()))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	userService := service.NewUserService(userRepo, mealRepo, bcrypt.MinCost)
	mealService := service.NewMealService(mealRepo, store, logger)
	analyzer := nutrition.NewChain(logger, nutrition.NewTableAnalyzer())

	handler := NewHandler(userService, mealService, analyzer, store, logger, Options{
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router, "*")
	return &testServer{router: router, meals: mealRepo}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newTestServer(t, nil).router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func registerUser(t *testing.T, router *gin.Engine, name, email string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     name,
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := rec.Header().Get("X-Auth-Token")
	require.NotEmpty(t, token)
	return token
}

func TestRegister(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotEmpty(t, user["id"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotEmpty(t, rec.Result().Cookies())

	// duplicate email
	rec = doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Alice Again",
		"email":    "Alice@Example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Auth-Token"))

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "nobody@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/meals", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ExpiredToken(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com")

	expired, err := auth.Issue("whoever", []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/auth/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_CookieCarrier(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "nutritrack_token" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/auth/logout", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var cleared bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == "nutritrack_token" && c.MaxAge < 0 {
				cleared = true
			}
		}
		assert.True(t, cleared, "logout must clear the session cookie")
	}
}

func TestMealLifecycleAndStats(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/meals", token, gin.H{
		"name":     "Lunch bowl",
		"calories": 500,
		"protein":  30,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	meal := decodeBody(t, rec)
	mealID := meal["id"].(string)
	require.NotEmpty(t, mealID)

	rec = doJSON(t, router, http.MethodGet, "/api/meals/stats?period=day", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "day", body["period"])
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(500), stats["totalCalories"])
	assert.Equal(t, float64(1), stats["mealCount"])
	goals := body["goals"].(map[string]any)
	assert.Equal(t, float64(2200), goals["calories"])

	// partial update: only calories sent, the rest must survive
	rec = doJSON(t, router, http.MethodPut, "/api/meals/"+mealID, token, gin.H{
		"calories": 650,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody(t, rec)
	assert.Equal(t, float64(650), updated["calories"])
	assert.Equal(t, float64(30), updated["protein"])
	assert.Equal(t, "Lunch bowl", updated["name"])
	assert.Equal(t, true, updated["verified"])

	rec = doJSON(t, router, http.MethodDelete, "/api/meals/"+mealID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/meals", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody(t, rec)
	assert.Empty(t, listing["meals"])
}

func TestMeals_OwnerIsolation(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	tokenA := registerUser(t, router, "Alice", "alice@example.com")
	tokenB := registerUser(t, router, "Bob", "bob@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/meals", tokenA, gin.H{"name": "A's meal", "calories": 500})
	require.Equal(t, http.StatusOK, rec.Code)
	mealA := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/api/meals", tokenB, gin.H{"name": "B's meal", "calories": 700})
	require.Equal(t, http.StatusOK, rec.Code)

	// A's listing holds exactly A's meal
	rec = doJSON(t, router, http.MethodGet, "/api/meals", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meals := decodeBody(t, rec)["meals"].([]any)
	require.Len(t, meals, 1)
	assert.Equal(t, "A's meal", meals[0].(map[string]any)["name"])

	// B touching A's meal gets the same 404 as a nonexistent id
	recUpdate := doJSON(t, router, http.MethodPut, "/api/meals/"+mealA, tokenB, gin.H{"calories": 1})
	recMissing := doJSON(t, router, http.MethodPut, "/api/meals/does-not-exist", tokenB, gin.H{"calories": 1})
	assert.Equal(t, http.StatusNotFound, recUpdate.Code)
	assert.Equal(t, recMissing.Body.String(), recUpdate.Body.String())

	rec = doJSON(t, router, http.MethodDelete, "/api/meals/"+mealA, tokenB, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A's meal is untouched
	rec = doJSON(t, router, http.MethodGet, "/api/meals", tokenA, nil)
	meals = decodeBody(t, rec)["meals"].([]any)
	require.Len(t, meals, 1)
	assert.Equal(t, float64(500), meals[0].(map[string]any)["calories"])
}

func TestMeals_Pagination(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	for i := 0; i < 45; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/meals", token, gin.H{
			"name":     fmt.Sprintf("meal %d", i),
			"calories": 100,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	counts := map[int]int{1: 20, 2: 20, 3: 5}
	for page, want := range counts {
		rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/meals?page=%d&limit=20", page), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Len(t, body["meals"].([]any), want, "page %d", page)
		pagination := body["pagination"].(map[string]any)
		assert.Equal(t, float64(3), pagination["pages"])
		assert.Equal(t, float64(45), pagination["total"])
	}

	rec := doJSON(t, router, http.MethodGet, "/api/meals?page=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileUpdate(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	// unknown and disallowed fields are dropped silently
	rec := doJSON(t, router, http.MethodPut, "/api/user/profile", token, gin.H{
		"age":          31,
		"goals":        gin.H{"calories": 1900},
		"email":        "evil@example.com",
		"passwordHash": "owned",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, float64(31), user["age"])
	assert.Equal(t, "alice@example.com", user["email"])
	goals := user["goals"].(map[string]any)
	assert.Equal(t, float64(1900), goals["calories"])
	assert.Equal(t, float64(140), goals["protein"])

	rec = doJSON(t, router, http.MethodPut, "/api/user/profile", token, gin.H{"age": 200})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserStats(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/meals", token, gin.H{"calories": 350})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/user/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	today := body["today"].(map[string]any)
	assert.Equal(t, float64(350), today["totalCalories"])
	assert.Equal(t, float64(1), today["mealCount"])
	assert.NotNil(t, body["goals"])
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	rec := doJSON(t, router, http.MethodDelete, "/api/user/account", token, gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/user/account", token, gin.H{"password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)

	// the still-valid token no longer resolves to an account
	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPhotoUpload_StorageUnconfigured(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/meals/photo", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "storage service not configured")
}

func TestMealPhotoLink(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, stubStorage{})

	rec := doJSON(t, ts.router, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	userID := decodeBody(t, rec)["user"].(map[string]any)["id"].(string)
	token := rec.Header().Get("X-Auth-Token")
	require.NotEmpty(t, token)

	meal := &domain.Meal{
		UserID:   userID,
		Name:     "with photo",
		PhotoURL: "https://cdn.test/meals/x.jpg",
		PhotoKey: "meals/x.jpg",
	}
	require.NoError(t, ts.meals.Create(context.Background(), meal))

	rec = doJSON(t, ts.router, http.MethodGet, "/api/meals/"+meal.ID+"/photo", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://cdn.test/presigned/meals/x.jpg", decodeBody(t, rec)["url"])

	// another user sees the same 404 as a nonexistent meal
	tokenB := registerUser(t, ts.router, "Bob", "bob@example.com")
	rec = doJSON(t, ts.router, http.MethodGet, "/api/meals/"+meal.ID+"/photo", tokenB, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// a meal without a stored photo has no link
	bare := &domain.Meal{UserID: userID, Name: "no photo"}
	require.NoError(t, ts.meals.Create(context.Background(), bare))
	rec = doJSON(t, ts.router, http.MethodGet, "/api/meals/"+bare.ID+"/photo", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMealPhotoLink_StorageUnconfigured(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	rec := doJSON(t, router, http.MethodGet, "/api/meals/some-id/photo", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "storage service not configured")
}

func TestHealth(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
