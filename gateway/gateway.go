// Package gateway is the HTTP surface over the sync layer: JSON snapshots,
// an SSE live stream and a tagged command endpoint, with bearer-token auth.
// It stands in for the mobile render layer; every request is served by a
// repository scoped to the authenticated user.
package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"planity/auth"
	"planity/domain"
	"planity/remote"
	"planity/repository"
	"planity/usecase"
)

const (
	snapshotTimeout    = 10 * time.Second
	commandBodyMaxSize = 1 << 20
)

// Gateway wires the sync layer to HTTP handlers.
type Gateway struct {
	store    remote.Store
	accounts *auth.Service
	verifier *auth.Verifier
	log      *log.Logger
}

// New creates a Gateway. accounts may be nil when sign-up/sign-in are handled
// by an external identity provider; the auth routes then respond 404.
func New(store remote.Store, accounts *auth.Service, verifier *auth.Verifier, logger *log.Logger) *Gateway {
	if store == nil {
		panic("gateway.New: store is nil")
	}
	if verifier == nil {
		panic("gateway.New: verifier is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gateway{store: store, accounts: accounts, verifier: verifier, log: logger}
}

// Register wires up all routes on the provided Echo instance.
func (g *Gateway) Register(e *echo.Echo) {
	e.GET("/healthz", g.healthz)
	e.POST("/api/auth/signup", g.signUp)
	e.POST("/api/auth/signin", g.signIn)
	e.GET("/api/tasks", g.getTasks)
	e.GET("/api/categories", g.getCategories)
	e.GET("/api/stats", g.getStats)
	e.GET("/api/stream/tasks", g.streamTasks)
	e.POST("/api/commands", g.postCommands)
}

// repoFor scopes a repository to one authenticated user.
func (g *Gateway) repoFor(userID string) *repository.Repository {
	return repository.New(g.store, repository.StaticIdentity(userID), g.log)
}

func (g *Gateway) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (g *Gateway) signUp(c echo.Context) error {
	if g.accounts == nil {
		return c.NoContent(http.StatusNotFound)
	}
	var req signUpRequest
	if err := decodeBody(c.Request().Body, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	err := g.accounts.SignUp(c.Request().Context(), req.Name, req.Email, req.Password)
	if errors.Is(err, auth.ErrEmailInUse) {
		return c.String(http.StatusConflict, "email already in use")
	}
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	token, err := g.accounts.Token()
	if err != nil {
		g.log.Errorf("issue token: %v", err)
		return c.String(http.StatusInternalServerError, "token issue failed")
	}
	return c.JSON(http.StatusCreated, tokenResponse{Token: token})
}

func (g *Gateway) signIn(c echo.Context) error {
	if g.accounts == nil {
		return c.NoContent(http.StatusNotFound)
	}
	var req signInRequest
	if err := decodeBody(c.Request().Body, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	err := g.accounts.SignIn(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return c.String(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	token, err := g.accounts.Token()
	if err != nil {
		g.log.Errorf("issue token: %v", err)
		return c.String(http.StatusInternalServerError, "token issue failed")
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (g *Gateway) getTasks(c echo.Context) (err error) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), g.log, "/api/tasks")
	defer func() { metrics.Log(c.Response().Status, err) }()

	authStart := time.Now()
	userID, authErr := g.verifier.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		return c.String(http.StatusUnauthorized, authErr.Error())
	}

	fetchStart := time.Now()
	uc := usecase.GetTasks{Repo: g.repoFor(userID)}
	tasks, ok := firstTasks(ctx, uc)
	metrics.ObserveFetch(time.Since(fetchStart))
	if !ok {
		metrics.SetErrorStage("fetch")
		err = errors.New("task snapshot unavailable")
		return c.String(http.StatusBadGateway, err.Error())
	}
	metrics.SetItemsReturned(len(tasks))
	return c.JSON(http.StatusOK, tasks)
}

func (g *Gateway) getCategories(c echo.Context) (err error) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), g.log, "/api/categories")
	defer func() { metrics.Log(c.Response().Status, err) }()

	userID, authErr := g.verifier.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		return c.String(http.StatusUnauthorized, authErr.Error())
	}

	uc := usecase.GetCategories{Repo: g.repoFor(userID)}
	categories, ok := firstCategories(ctx, uc)
	if !ok {
		metrics.SetErrorStage("fetch")
		err = errors.New("category snapshot unavailable")
		return c.String(http.StatusBadGateway, err.Error())
	}
	metrics.SetItemsReturned(len(categories))
	return c.JSON(http.StatusOK, categories)
}

func (g *Gateway) getStats(c echo.Context) (err error) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), g.log, "/api/stats")
	defer func() { metrics.Log(c.Response().Status, err) }()

	userID, authErr := g.verifier.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		return c.String(http.StatusUnauthorized, authErr.Error())
	}

	uc := usecase.GetWeeklyTaskStats{Repo: g.repoFor(userID)}
	stats, ok := firstStats(ctx, uc)
	if !ok {
		metrics.SetErrorStage("fetch")
		err = errors.New("stats snapshot unavailable")
		return c.String(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// firstTasks waits for the first emission of the live sequence, then releases
// the subscription.
func firstTasks(ctx context.Context, uc usecase.GetTasks) ([]domain.Task, bool) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	select {
	case tasks, open := <-uc.Observe(ctx):
		return tasks, open
	case <-ctx.Done():
		return nil, false
	}
}

func firstCategories(ctx context.Context, uc usecase.GetCategories) ([]domain.Category, bool) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	select {
	case categories, open := <-uc.Observe(ctx):
		return categories, open
	case <-ctx.Done():
		return nil, false
	}
}

func firstStats(ctx context.Context, uc usecase.GetWeeklyTaskStats) (domain.TaskStats, bool) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	select {
	case stats, open := <-uc.Observe(ctx):
		return stats, open
	case <-ctx.Done():
		return domain.TaskStats{}, false
	}
}

func decodeBody(body io.Reader, dst any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, commandBodyMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
