package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/cache"
	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/draft"
	"alcyxob/fittrack/internal/metrics"
	"alcyxob/fittrack/internal/remote"
	"alcyxob/fittrack/internal/repository/memory"
	"alcyxob/fittrack/internal/service"
	"alcyxob/fittrack/internal/volume"
)

const (
	goodToken    = "good-token"
	expiredToken = "expired-token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAuth answers for a single signed-in user. Methods it does not override panic.
type fakeAuth struct {
	service.AuthService
	userID      primitive.ObjectID
	unconfirmed bool

	mu         sync.Mutex
	signedOut  []string
	magicLinks []string
}

func (a *fakeAuth) GetSession(_ context.Context, token string) (*service.Identity, error) {
	switch token {
	case goodToken:
		return &service.Identity{UserID: a.userID, SessionID: "sid-1"}, nil
	case expiredToken:
		return nil, domain.ErrSessionExpired
	}
	return nil, domain.ErrInvalidToken
}

func (a *fakeAuth) session() *domain.Session {
	return &domain.Session{
		AccessToken:  goodToken,
		RefreshToken: "sid-1.secret-1",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
		User:         &domain.User{ID: a.userID, Email: "sam@example.com", EmailConfirmed: true},
	}
}

func (a *fakeAuth) SignIn(_ context.Context, email, password string) (*domain.Session, error) {
	if password != "correct horse" {
		return nil, domain.ErrInvalidCredentials
	}
	if a.unconfirmed {
		return nil, domain.ErrUnconfirmedEmail
	}
	return a.session(), nil
}

func (a *fakeAuth) RefreshSession(_ context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken != "sid-1.secret-1" {
		return nil, domain.ErrSessionExpired
	}
	return a.session(), nil
}

func (a *fakeAuth) VerifyCallback(_ context.Context, token string, _ service.LinkType) (*domain.Session, error) {
	if token != "link-1" {
		return nil, domain.ErrInvalidToken
	}
	return a.session(), nil
}

func (a *fakeAuth) SendMagicLink(_ context.Context, email, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.magicLinks = append(a.magicLinks, email)
	return nil
}

func (a *fakeAuth) SignOut(_ context.Context, identity service.Identity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signedOut = append(a.signedOut, identity.SessionID)
	return nil
}

func (a *fakeAuth) User(_ context.Context, userID primitive.ObjectID) (*domain.User, error) {
	return &domain.User{ID: userID, Email: "sam@example.com", EmailConfirmed: true}, nil
}

// allowN lets the first n requests through and denies the rest.
type allowN struct {
	mu    sync.Mutex
	n     int
	calls int
	keys  []string
}

func (l *allowN) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.keys = append(l.keys, key)
	if l.calls > l.n {
		return &redis_rate.Result{Limit: limit, Allowed: 0, RetryAfter: 30 * time.Second}, nil
	}
	return &redis_rate.Result{Limit: limit, Allowed: 1, Remaining: l.n - l.calls}, nil
}

type memDrafts struct {
	mu     sync.Mutex
	states map[string]draft.State
}

func (d *memDrafts) Load(_ context.Context, userID string) (draft.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.states[userID]; ok {
		return s, nil
	}
	return draft.Empty(), nil
}

func (d *memDrafts) Save(_ context.Context, userID string, state draft.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[userID] = state
	return nil
}

func (d *memDrafts) Clear(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, userID)
	return nil
}

type testServer struct {
	router  *gin.Engine
	store   *memory.Store
	auth    *fakeAuth
	limiter *allowN
	metrics *metrics.Manager
	userID  primitive.ObjectID
	bench   domain.Exercise
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	userID := primitive.NewObjectID()
	require.NoError(t, store.Profiles().Create(context.Background(), domain.NewProfile(userID, "Sam")))
	seeded := store.SeedExercises(domain.Exercise{
		Name: "Bench Press", Category: "strength", PrimaryMuscle: "chest",
		Capabilities: domain.Capabilities{UsesReps: true, UsesWeight: true},
	})
	store.SeedEquipment(domain.Equipment{Name: "Barbell"})

	m, reg := metrics.NewTestManagerAndRegistry()
	client := remote.NewClient(store.Profiles(), store.Exercises(), store.Equipment(), store.Workouts(), time.Second, m)
	cacheStore := cache.New(cache.WithMetrics(m))
	drafts := &memDrafts{states: make(map[string]draft.State)}

	ts := &testServer{
		router:  gin.New(),
		store:   store,
		auth:    &fakeAuth{userID: userID},
		limiter: &allowN{n: 2},
		metrics: m,
		userID:  userID,
		bench:   seeded[0],
	}
	SetupRoutes(ts.router, Services{
		Auth:     ts.auth,
		Workouts: service.NewWorkoutService(client, cacheStore, drafts, volume.Formatter{WeekStart: time.Monday}),
		Drafts:   service.NewDraftService(drafts, client, cacheStore),
		Profiles: service.NewProfileService(client, cacheStore, nil),
		Catalog:  service.NewCatalogService(client, cacheStore),
	}, RouterOptions{
		Cookies:     CookieOptions{RefreshTTL: time.Hour},
		Metrics:     m,
		Gatherer:    reg,
		RateLimiter: ts.limiter,
		PerMinute:   2,
	})
	return ts
}

// do sends body as JSON with the signed-in user's bearer token.
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return ts.doWithToken(t, method, path, body, goodToken)
}

func (ts *testServer) doWithToken(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), rr.Body.String())
	}
	return env
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, code int) {
	t.Helper()
	require.Equal(t, code, rr.Code, rr.Body.String())
}
