package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"alive-keeper/internal/handlers"
	"alive-keeper/internal/models"
	"alive-keeper/internal/services"
)

type stubSession struct {
	state     services.SessionState
	loginErr  error
	loggedOut bool
}

func (s *stubSession) Connect(context.Context) (services.SessionState, error) {
	return s.state, nil
}
func (s *stubSession) Login(context.Context) error {
	if s.loginErr != nil {
		return s.loginErr
	}
	s.state = services.StateAuthenticated
	return nil
}
func (s *stubSession) Logout(context.Context) {
	s.loggedOut = true
	s.state = services.StateDisconnected
}
func (s *stubSession) State() services.SessionState { return s.state }
func (s *stubSession) Authenticated() bool          { return s.state == services.StateAuthenticated }
func (s *stubSession) Address() string              { return "0xabc" }

type stubStore struct{ snap models.PlayerSnapshot }

func (s stubStore) Snapshot() models.PlayerSnapshot { return s.snap }

type stubActions struct {
	err      error
	mode     models.ReconnectMode
	referrer string
}

func (a *stubActions) CheckIn(context.Context) (models.PlayerSnapshot, error) {
	return models.PlayerSnapshot{StreakDays: 4}, a.err
}
func (a *stubActions) Claim(context.Context) (*services.ClaimResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &services.ClaimResult{Amount: 12.5, TxHash: "0xclaim"}, nil
}
func (a *stubActions) Reconnect(_ context.Context, mode models.ReconnectMode) (*services.ReconnectResult, error) {
	a.mode = mode
	return &services.ReconnectResult{RequestedMode: mode, AppliedMode: mode}, a.err
}
func (a *stubActions) Purchase(_ context.Context, code models.ItemCode) (*services.PurchaseResult, error) {
	return &services.PurchaseResult{ItemCode: code, Quantity: 1}, a.err
}
func (a *stubActions) Activate(_ context.Context, referrer string) (*services.ActivationResult, error) {
	a.referrer = referrer
	return &services.ActivationResult{Activated: true}, a.err
}
func (a *stubActions) Items(context.Context) ([]models.CatalogItem, error) {
	return []models.CatalogItem{{Code: models.ItemPacemaker, Name: "Pacemaker", Price: "1"}}, a.err
}
func (a *stubActions) ReferralStats(context.Context) (*models.ReferralStats, error) {
	return &models.ReferralStats{Level1ReferralCount: 2}, a.err
}
func (a *stubActions) ReferralList(context.Context) (*models.ReferralList, error) {
	return &models.ReferralList{}, a.err
}
func (a *stubActions) EstimatedDailyEarnings() float64 { return 43200 }

type stubRefresher struct{ reasons []string }

func (r *stubRefresher) Trigger(reason string) { r.reasons = append(r.reasons, reason) }

type fixture struct {
	router    *gin.Engine
	session   *stubSession
	actions   *stubActions
	refresher *stubRefresher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	players := services.NewRedisServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { players.Close() })

	f := &fixture{
		session:   &stubSession{state: services.StateAuthenticated},
		actions:   &stubActions{},
		refresher: &stubRefresher{},
	}
	store := stubStore{snap: models.PlayerSnapshot{
		Health:          40,
		ClaimableReward: 1500,
		OwnedItems:      []models.Item{{Code: models.ItemPacemaker, Quantity: 2}},
	}}

	authHandler := handlers.NewAuthHandler(f.session)
	userHandler := handlers.NewUserHandler(f.session, store, players)
	gameHandler := handlers.NewGameHandler(f.actions, store, f.refresher)

	router := gin.New()
	router.POST("/auth/login", authHandler.Login)
	api := router.Group("/api")
	api.Use(func(c *gin.Context) { c.Set("address", "0xabc"); c.Next() })
	api.GET("/me", userHandler.GetCurrentUser)
	api.POST("/logout", userHandler.Logout)
	api.GET("/decorations", userHandler.GetDecorations)
	api.PUT("/decorations", userHandler.UpdateDecoration)
	api.POST("/checkin", gameHandler.CheckIn)
	api.POST("/claim", gameHandler.Claim)
	api.POST("/reconnect", gameHandler.Reconnect)
	api.POST("/activate", gameHandler.Activate)
	api.GET("/items", gameHandler.ListItems)
	api.POST("/refresh", gameHandler.Refresh)

	f.router = router
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		kind   services.ErrorKind
		status int
	}{
		{services.KindUserRejected, http.StatusBadRequest},
		{services.KindNetwork, http.StatusBadGateway},
		{services.KindServerRejected, http.StatusUnprocessableEntity},
		{services.KindUnauthorized, http.StatusUnauthorized},
		{services.KindWrongChain, http.StatusConflict},
	}

	for _, tc := range cases {
		f := newFixture(t)
		f.actions.err = &services.ActionError{Kind: tc.kind, Op: "claim", Message: "nope: " + string(tc.kind)}

		w := f.do(http.MethodPost, "/api/claim", "")
		if w.Code != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.kind, tc.status, w.Code)
		}
		body := decode(t, w)
		if body["kind"] != string(tc.kind) || body["error"] != "nope: "+string(tc.kind) {
			t.Errorf("%s: unexpected body %v", tc.kind, body)
		}
	}
}

func TestLoginWrongChain(t *testing.T) {
	f := newFixture(t)
	f.session.state = services.StateWrongChain
	f.session.loginErr = &services.ActionError{Kind: services.KindWrongChain, Op: "login", Message: "please switch your wallet to chain 56"}

	w := f.do(http.MethodPost, "/auth/login", "")
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}
}

func TestCheckInReturnsSnapshot(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/checkin", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	snap := decode(t, w)["snapshot"].(map[string]interface{})
	if snap["streak_days"] != float64(4) {
		t.Errorf("Unexpected snapshot %v", snap)
	}
}

func TestReconnectDefaultsToStandard(t *testing.T) {
	f := newFixture(t)

	if w := f.do(http.MethodPost, "/api/reconnect", `{}`); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if f.actions.mode != models.ReconnectStandard {
		t.Errorf("Expected standard mode, got %q", f.actions.mode)
	}

	f.actions.mode = ""
	if w := f.do(http.MethodPost, "/api/reconnect", ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for an empty body, got %d: %s", w.Code, w.Body.String())
	}
	if f.actions.mode != models.ReconnectStandard {
		t.Errorf("Expected standard mode for an empty body, got %q", f.actions.mode)
	}

	f.do(http.MethodPost, "/api/reconnect", `{"mode":"defibrillator"}`)
	if f.actions.mode != models.ReconnectDefibrillator {
		t.Errorf("Expected defibrillator mode, got %q", f.actions.mode)
	}
}

func TestActivatePassesReferrer(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/activate", `{"referrer":"0xdef"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if f.actions.referrer != "0xdef" {
		t.Errorf("Referrer not passed through, got %q", f.actions.referrer)
	}
}

func TestActivateWithoutBody(t *testing.T) {
	f := newFixture(t)
	f.actions.referrer = "unset"

	w := f.do(http.MethodPost, "/api/activate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.actions.referrer != "" {
		t.Errorf("Expected no referrer, got %q", f.actions.referrer)
	}

	if w := f.do(http.MethodPost, "/api/activate", `{"referrer":`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", w.Code)
	}
}

func TestListItemsShowsOwned(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/items", "")
	items := decode(t, w)["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["owned"] != float64(2) {
		t.Errorf("Unexpected items %v", items)
	}
}

func TestDecorationsRoundTrip(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPut, "/api/decorations", `{"layer":"bed","variant":"doll"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodGet, "/api/decorations", "")
	decorations := decode(t, w)["decorations"].(map[string]interface{})
	if decorations["bed"] != "doll" {
		t.Errorf("Expected bed doll, got %v", decorations)
	}

	if w := f.do(http.MethodPut, "/api/decorations", `{"layer":"bed","variant":"hammock"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown variant, got %d", w.Code)
	}
}

func TestCurrentUserAndLogout(t *testing.T) {
	f := newFixture(t)

	body := decode(t, f.do(http.MethodGet, "/api/me", ""))
	display := body["display"].(map[string]interface{})
	if display["claimable"] != "1.50k" {
		t.Errorf("Expected formatted claimable, got %v", display)
	}

	if w := f.do(http.MethodPost, "/api/logout", ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !f.session.loggedOut {
		t.Error("Session should be logged out")
	}
}

func TestRefreshTriggersReconcile(t *testing.T) {
	f := newFixture(t)

	if w := f.do(http.MethodPost, "/api/refresh", ""); w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if len(f.refresher.reasons) != 1 {
		t.Error("Expected one reconciliation request")
	}
}
