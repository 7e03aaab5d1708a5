package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"planity/auth"
	"planity/domain"
	"planity/remote"
)

const testSecret = "test-secret"

type testEnv struct {
	e        *echo.Echo
	store    remote.Store
	accounts *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := log.New()
	logger.SetOutput(io.Discard)

	store := remote.NewRedisStore(client, logger)
	accounts := auth.NewService(client, []byte(testSecret), logger)
	verifier := auth.NewLocalVerifier([]byte(testSecret))

	e := echo.New()
	New(store, accounts, verifier, logger).Register(e)
	return &testEnv{e: e, store: store, accounts: accounts}
}

func (env *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := env.accounts.TokenFor(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func seedTask(t *testing.T, store remote.Store, userID, id string, fields map[string]any) {
	t.Helper()
	if err := store.Collection(userID, remote.TasksCollection).Set(context.Background(), id, fields); err != nil {
		t.Fatalf("seed task: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestSignUpSignInFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/signup", "",
		`{"name":"Dana","email":"dana@example.com","password":"secret1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign up: status %d body %s", rec.Code, rec.Body.String())
	}
	var issued tokenResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &issued); err != nil || issued.Token == "" {
		t.Fatalf("expected token, got %s (%v)", rec.Body.String(), err)
	}

	rec = env.do(http.MethodPost, "/api/auth/signup", "",
		`{"name":"Other","email":"dana@example.com","password":"secret2"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate sign up: status %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/auth/signin", "",
		`{"email":"dana@example.com","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad sign in: status %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/auth/signin", "",
		`{"email":"dana@example.com","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign in: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestGetTasksRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/api/tasks", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/stream/tasks", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("stream without auth: status %d", rec.Code)
	}
}

func TestGetTasksReturnsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env.store, "user-1", "t1", map[string]any{
		"title": "Buy milk", "category": "Work", "date": "7,June,2024",
	})
	seedTask(t, env.store, "user-2", "t2", map[string]any{
		"title": "Not mine", "category": "Work",
	})

	rec := env.do(http.MethodGet, "/api/tasks", env.tokenFor(t, "user-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Buy milk" {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
}

func TestGetCategoriesReturnsCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.store.Collection("user-1", remote.CategoriesCollection).
		Set(ctx, "c1", map[string]any{"name": "Work", "orderIndex": 0}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	seedTask(t, env.store, "user-1", "t1", map[string]any{"title": "Buy milk", "category": "Work"})

	rec := env.do(http.MethodGet, "/api/categories", env.tokenFor(t, "user-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}
	var categories []domain.Category
	if err := sonic.Unmarshal(rec.Body.Bytes(), &categories); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(categories) != 1 || categories[0].Name != "Work" || categories[0].TaskCount != 1 {
		t.Fatalf("unexpected categories: %#v", categories)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env.store, "user-1", "t1", map[string]any{
		"title": "Done", "category": domain.CategoryCompleted,
	})

	rec := env.do(http.MethodGet, "/api/stats", env.tokenFor(t, "user-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}
	var stats domain.TaskStats
	if err := sonic.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Completed != 1 || len(stats.Weekly) != 7 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestPostCommandsDispatchesBatch(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "user-1")

	body := `[
		{"type":"create-task","task":{"id":"","title":"Buy milk","date":"7,June,2024","category":"Work"}},
		{"type":"create-category","name":"Chores"}
	]`
	rec := env.do(http.MethodPost, "/api/commands", token, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}

	ctx := context.Background()
	tasks, err := env.store.Collection("user-1", remote.TasksCollection).Docs(ctx)
	if err != nil || len(tasks) != 1 || tasks[0].Fields["title"] != "Buy milk" {
		t.Fatalf("unexpected tasks: %#v (%v)", tasks, err)
	}
	categories, err := env.store.Collection("user-1", remote.CategoriesCollection).Docs(ctx)
	if err != nil || len(categories) != 1 || categories[0].Fields["name"] != "Chores" {
		t.Fatalf("unexpected categories: %#v (%v)", categories, err)
	}
}

func TestPostCommandsRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/commands", env.tokenFor(t, "user-1"),
		`[{"type":"explode"}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}
}

func TestPostCommandsRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/commands", "", `[]`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
