package services_test

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"alive-keeper/internal/models"
)

var playerAddress = common.HexToAddress("0x00000000000000000000000000000000000a11fe")

type fakeWallet struct {
	mu       sync.Mutex
	chain    int64
	signErr  error
	signs    int
	switches []int64
}

func (w *fakeWallet) Address() common.Address { return playerAddress }

func (w *fakeWallet) ChainID(context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return big.NewInt(w.chain), nil
}

func (w *fakeWallet) SignMessage(_ context.Context, message string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signs++
	if w.signErr != nil {
		return "", w.signErr
	}
	return "sig:" + message, nil
}

func (w *fakeWallet) SwitchChain(_ context.Context, chainID *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switches = append(w.switches, chainID.Int64())
	return nil
}

func (w *fakeWallet) signCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.signs
}

// fakeBackend stands in for the REST backend. Each hook, when set,
// overrides the default response.
type fakeBackend struct {
	mu    sync.Mutex
	token string
	calls map[string]int

	nonceErrs []error // returned in order by CreateNonce, then nil
	loginErr  error
	loginTok  string

	user      models.UserStatus
	userErr   error
	userHeld  chan struct{} // signalled when GetUser starts waiting on userGate
	userGate  chan struct{}
	dashboard models.DashboardSummary
	dashErr   error

	checkInErr   error
	claimAuth    models.ClaimAuthorization
	claimErr     error
	reconnect    func(models.ReconnectMode) (*models.ReconnectResponse, error)
	purchaseErr  error
	purchases    []models.PurchaseConfirmRequest
	items        []models.CatalogItem
	itemsErr     error
	activateUser func(calls int) bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:    map[string]int{},
		loginTok: "token",
		user: models.UserStatus{
			Address:                  strings.ToLower(playerAddress.Hex()),
			HP:                       40,
			MaxHP:                    48,
			Status:                   models.PlayerStatusAlive,
			ConsecutiveCheckinDays:   3,
			Multiplier:               1.5,
			UnclaimedDays:            2,
			Claimable:                "12500000000000000000",
			OptimisticClaimedRewards: "30000000000000000000",
			Activated:                true,
			Items:                    []models.Item{{Code: models.ItemPacemaker, Quantity: 1}},
		},
		dashboard: models.DashboardSummary{
			GlobalEmissionPerSecond: "2000000000000000000",
			TotalRewardWeight:       "30000",
			DailyPoolTotal:          "172800000000000000000000",
			TotalPlayers:            10,
			AlivePlayers:            7,
		},
		items: []models.CatalogItem{
			{Code: models.ItemPacemaker, Name: "Pacemaker", Price: "5000000000000000000", MaxOwned: 3},
		},
	}
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) hit(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[name]++
	return b.calls[name]
}

func (b *fakeBackend) SetToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

func (b *fakeBackend) currentToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

func (b *fakeBackend) CreateNonce(_ context.Context, address string) (*models.NonceResponse, error) {
	n := b.hit("nonce")
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= len(b.nonceErrs) && b.nonceErrs[n-1] != nil {
		return nil, b.nonceErrs[n-1]
	}
	return &models.NonceResponse{Nonce: "n1", Message: "Sign in " + address}, nil
}

func (b *fakeBackend) Login(context.Context, string, string, string) (*models.LoginResponse, error) {
	b.hit("login")
	if b.loginErr != nil {
		return nil, b.loginErr
	}
	return &models.LoginResponse{AccessToken: b.loginTok}, nil
}

func (b *fakeBackend) GetUser(context.Context, string) (*models.UserStatus, error) {
	n := b.hit("user")
	if b.userGate != nil {
		b.userHeld <- struct{}{}
		<-b.userGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.userErr != nil {
		return nil, b.userErr
	}
	user := b.user
	if b.activateUser != nil {
		user.Activated = b.activateUser(n)
	}
	return &user, nil
}

func (b *fakeBackend) GetDashboard(context.Context) (*models.DashboardSummary, error) {
	b.hit("dashboard")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dashErr != nil {
		return nil, b.dashErr
	}
	dash := b.dashboard
	return &dash, nil
}

func (b *fakeBackend) CheckIn(context.Context) (*models.CheckInResponse, error) {
	b.hit("checkin")
	if b.checkInErr != nil {
		return nil, b.checkInErr
	}
	return &models.CheckInResponse{HP: 41, MaxHP: 48, Streak: 4, Healed: true}, nil
}

func (b *fakeBackend) RequestClaim(context.Context) (*models.ClaimAuthorization, error) {
	b.hit("claim")
	if b.claimErr != nil {
		return nil, b.claimErr
	}
	auth := b.claimAuth
	return &auth, nil
}

func (b *fakeBackend) Reconnect(_ context.Context, mode models.ReconnectMode) (*models.ReconnectResponse, error) {
	b.hit("reconnect")
	if b.reconnect != nil {
		return b.reconnect(mode)
	}
	return &models.ReconnectResponse{Mode: mode, User: b.user}, nil
}

func (b *fakeBackend) ConfirmPurchase(_ context.Context, req models.PurchaseConfirmRequest) (*models.PurchaseResponse, error) {
	b.hit("purchase")
	if b.purchaseErr != nil {
		return nil, b.purchaseErr
	}
	b.mu.Lock()
	b.purchases = append(b.purchases, req)
	b.mu.Unlock()
	return &models.PurchaseResponse{ItemCode: req.ItemCode, Quantity: 2}, nil
}

func (b *fakeBackend) ListItems(context.Context) ([]models.CatalogItem, error) {
	b.hit("items")
	if b.itemsErr != nil {
		return nil, b.itemsErr
	}
	return append([]models.CatalogItem(nil), b.items...), nil
}

// memoryCache is an in-process SessionCache.
type memoryCache struct {
	mu     sync.Mutex
	tokens map[string]string
	ttls   map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{tokens: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) GetToken(_ context.Context, address string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[strings.ToLower(address)], nil
}

func (c *memoryCache) SaveToken(_ context.Context, address, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[strings.ToLower(address)] = token
	c.ttls[strings.ToLower(address)] = ttl
	return nil
}

func (c *memoryCache) DeleteToken(_ context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, strings.ToLower(address))
	return nil
}

// fakeChain implements ChainClient.
type fakeChain struct {
	mu        sync.Mutex
	activated map[common.Address]bool
	readErr   error
	nonce     uint64
	balance   *big.Int
	txErr     error
	activates []common.Address
	fees      []*big.Int
	claims    []models.ClaimAuthorization
	transfers []*big.Int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		activated: map[common.Address]bool{},
		nonce:     7,
		balance:   new(big.Int).Mul(big.NewInt(250), big.NewInt(1e18)),
	}
}

func (c *fakeChain) IsActivated(_ context.Context, account common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return false, c.readErr
	}
	return c.activated[account], nil
}

func (c *fakeChain) ClaimNonce(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return 0, c.readErr
	}
	return c.nonce, nil
}

func (c *fakeChain) TokenBalance(context.Context, common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return new(big.Int).Set(c.balance), nil
}

func (c *fakeChain) Activate(_ context.Context, referrer common.Address, fee *big.Int) (*models.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txErr != nil {
		return nil, c.txErr
	}
	c.activates = append(c.activates, referrer)
	c.fees = append(c.fees, fee)
	return &models.TxReceipt{TxHash: "0xact", BlockNumber: 1}, nil
}

func (c *fakeChain) Claim(_ context.Context, auth models.ClaimAuthorization) (*models.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txErr != nil {
		return nil, c.txErr
	}
	c.claims = append(c.claims, auth)
	return &models.TxReceipt{TxHash: "0xclaim", BlockNumber: 2}, nil
}

func (c *fakeChain) TransferToken(_ context.Context, _ common.Address, amount *big.Int) (*models.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txErr != nil {
		return nil, c.txErr
	}
	c.transfers = append(c.transfers, amount)
	return &models.TxReceipt{TxHash: "0xbuy", BlockNumber: 3}, nil
}
