package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"alive-keeper/internal/models"
)

// AuthBackend is the part of the backend the session needs.
type AuthBackend interface {
	CreateNonce(ctx context.Context, address string) (*models.NonceResponse, error)
	Login(ctx context.Context, address, nonce, signature string) (*models.LoginResponse, error)
	SetToken(token string)
}

// StatusSource is the part of the backend reconciliation reads from.
type StatusSource interface {
	GetUser(ctx context.Context, address string) (*models.UserStatus, error)
	GetDashboard(ctx context.Context) (*models.DashboardSummary, error)
}

// ActionBackend is the part of the backend the gateway mutates through.
type ActionBackend interface {
	StatusSource
	CheckIn(ctx context.Context) (*models.CheckInResponse, error)
	RequestClaim(ctx context.Context) (*models.ClaimAuthorization, error)
	Reconnect(ctx context.Context, mode models.ReconnectMode) (*models.ReconnectResponse, error)
	ConfirmPurchase(ctx context.Context, req models.PurchaseConfirmRequest) (*models.PurchaseResponse, error)
	ListItems(ctx context.Context) ([]models.CatalogItem, error)
}

// BackendClient talks to the game's REST API. It attaches the bearer token
// to every call and reports 401 responses through the unauthorized hook.
type BackendClient struct {
	client *resty.Client
	logger *slog.Logger

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

func NewBackendClient(baseURL string, timeout time.Duration, logger *slog.Logger) *BackendClient {
	b := &BackendClient{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		logger: logger,
	}

	b.client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if token := b.Token(); token != "" {
			r.SetAuthToken(token)
		}
		r.SetHeader("X-Request-Id", uuid.NewString())
		return nil
	})

	return b
}

func (b *BackendClient) SetToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

func (b *BackendClient) Token() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// OnUnauthorized registers the hook run after any 401 response.
func (b *BackendClient) OnUnauthorized(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onUnauthorized = fn
}

func (b *BackendClient) unauthorized() {
	b.mu.Lock()
	b.token = ""
	hook := b.onUnauthorized
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func call[T any](ctx context.Context, b *BackendClient, op, method, path string, body any) (*T, error) {
	var env models.Envelope[T]

	req := b.client.R().SetContext(ctx).SetResult(&env)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, wrapOp(op, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		b.logger.Warn("backend rejected session", "op", op, "path", path)
		b.unauthorized()
		return nil, newActionError(KindUnauthorized, op, "session expired, please log in again", nil)
	case code >= 400 && code < 500:
		return nil, newActionError(KindServerRejected, op, serverMessage(resp), nil)
	case code >= 500:
		b.logger.Error("backend error", "op", op, "status", code)
		return nil, newActionError(KindNetwork, op, "server unavailable, please retry", nil)
	}

	return &env.Data, nil
}

// serverMessage extracts the envelope message of an error response.
func serverMessage(resp *resty.Response) string {
	var env models.Envelope[json.RawMessage]
	if err := json.Unmarshal(resp.Body(), &env); err == nil && env.Message != "" {
		return env.Message
	}
	if text := strings.TrimSpace(string(resp.Body())); text != "" && len(text) < 256 {
		return text
	}
	return http.StatusText(resp.StatusCode())
}

func (b *BackendClient) CreateNonce(ctx context.Context, address string) (*models.NonceResponse, error) {
	return call[models.NonceResponse](ctx, b, "create_nonce", http.MethodPost, "/auth/nonce",
		models.NonceRequest{Address: address})
}

func (b *BackendClient) Login(ctx context.Context, address, nonce, signature string) (*models.LoginResponse, error) {
	return call[models.LoginResponse](ctx, b, "login", http.MethodPost, "/auth/login",
		models.LoginRequest{Address: address, Nonce: nonce, Signature: signature})
}

func (b *BackendClient) GetUser(ctx context.Context, address string) (*models.UserStatus, error) {
	return call[models.UserStatus](ctx, b, "get_user", http.MethodGet, "/users/"+address, nil)
}

func (b *BackendClient) GetDashboard(ctx context.Context) (*models.DashboardSummary, error) {
	return call[models.DashboardSummary](ctx, b, "get_dashboard", http.MethodGet, "/dashboard/summary", nil)
}

func (b *BackendClient) CheckIn(ctx context.Context) (*models.CheckInResponse, error) {
	return call[models.CheckInResponse](ctx, b, "checkin", http.MethodPost, "/checkin", struct{}{})
}

func (b *BackendClient) RequestClaim(ctx context.Context) (*models.ClaimAuthorization, error) {
	return call[models.ClaimAuthorization](ctx, b, "claim_signature", http.MethodPost, "/claims/signature", struct{}{})
}

func (b *BackendClient) Reconnect(ctx context.Context, mode models.ReconnectMode) (*models.ReconnectResponse, error) {
	return call[models.ReconnectResponse](ctx, b, "reconnect", http.MethodPost, "/users/reconnect",
		models.ReconnectRequest{Mode: mode})
}

func (b *BackendClient) ConfirmPurchase(ctx context.Context, req models.PurchaseConfirmRequest) (*models.PurchaseResponse, error) {
	return call[models.PurchaseResponse](ctx, b, "purchase", http.MethodPost, "/items/purchase", req)
}

func (b *BackendClient) ListItems(ctx context.Context) ([]models.CatalogItem, error) {
	items, err := call[[]models.CatalogItem](ctx, b, "list_items", http.MethodGet, "/items", nil)
	if err != nil {
		return nil, err
	}
	return *items, nil
}
