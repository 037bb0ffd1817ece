package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"alive-keeper/internal/models"
	"alive-keeper/internal/survival"
)

// SnapshotRefresher is satisfied by the Reconciler.
type SnapshotRefresher interface {
	Reconcile(ctx context.Context, reason string) (models.PlayerSnapshot, error)
}

type GatewayDeps struct {
	Backend   ActionBackend
	Chain     ChainClient
	Referrals ReferralSource
	Store     *SnapshotStore
	Refresher SnapshotRefresher
	Session   SessionGate
	Journal   ActionJournal
	Notifier  Broadcaster
	Logger    *slog.Logger
}

type GatewayConfig struct {
	ActivationFee *big.Int
	Treasury      common.Address
	PollAttempts  int
	PollInterval  time.Duration
}

// ActionGateway runs the player's actions against the backend and the
// contracts, keeps the snapshot in step with them and reports each
// outcome as a notice.
type ActionGateway struct {
	backend   ActionBackend
	chain     ChainClient
	referrals ReferralSource
	store     *SnapshotStore
	refresher SnapshotRefresher
	session   SessionGate
	journal   ActionJournal
	notifier  Broadcaster
	logger    *slog.Logger

	cfg GatewayConfig
	now func() time.Time
}

type ClaimResult struct {
	Amount float64 `json:"amount"`
	TxHash string  `json:"tx_hash"`
}

type ReconnectResult struct {
	RequestedMode models.ReconnectMode  `json:"requested_mode"`
	AppliedMode   models.ReconnectMode  `json:"applied_mode"`
	Downgraded    bool                  `json:"downgraded"`
	Snapshot      models.PlayerSnapshot `json:"snapshot"`
}

type PurchaseResult struct {
	ItemCode models.ItemCode `json:"item_code"`
	Quantity int             `json:"quantity"`
	TxHash   string          `json:"tx_hash"`
}

// ActivationResult reports an activation. NeedsRecheck is set when the
// transaction succeeded but the backend had not indexed it yet.
type ActivationResult struct {
	TxHash           string `json:"tx_hash,omitempty"`
	Referrer         string `json:"referrer"`
	Activated        bool   `json:"activated"`
	AlreadyActivated bool   `json:"already_activated"`
	NeedsRecheck     bool   `json:"needs_recheck"`
}

func NewActionGateway(deps GatewayDeps, cfg GatewayConfig) *ActionGateway {
	if cfg.PollAttempts < 1 {
		cfg.PollAttempts = 1
	}
	if cfg.ActivationFee == nil {
		cfg.ActivationFee = new(big.Int)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ActionGateway{
		backend:   deps.Backend,
		chain:     deps.Chain,
		referrals: deps.Referrals,
		store:     deps.Store,
		refresher: deps.Refresher,
		session:   deps.Session,
		journal:   deps.Journal,
		notifier:  deps.Notifier,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (g *ActionGateway) SetClock(now func() time.Time) {
	g.now = now
}

func (g *ActionGateway) requireSession(op string) error {
	if !g.session.Authenticated() {
		return newActionError(KindNotAuthenticated, op, "please connect your wallet and sign in", nil)
	}
	return nil
}

func (g *ActionGateway) account() common.Address {
	return common.HexToAddress(g.session.Address())
}

// refresh reconciles after an action, ignoring the caller's cancellation.
func (g *ActionGateway) refresh(ctx context.Context, reason string) models.PlayerSnapshot {
	snap, err := g.refresher.Reconcile(context.WithoutCancel(ctx), reason)
	if err != nil {
		g.logger.Warn("post-action reconciliation failed", "reason", reason, "error", err)
	}
	return snap
}

// CheckIn bumps the streak and health provisionally, then tells the
// backend and reconciles whatever the outcome.
func (g *ActionGateway) CheckIn(ctx context.Context) (models.PlayerSnapshot, error) {
	if err := g.requireSession("checkin"); err != nil {
		return g.store.Snapshot(), err
	}

	g.store.ProvisionalCheckIn(g.now())
	_, err := g.backend.CheckIn(ctx)
	snap := g.refresh(ctx, "checkin")

	if err != nil {
		err = wrapOp("checkin", err)
		g.fail(ctx, models.ActionCheckIn, "check-in failed", err)
		return snap, err
	}

	g.succeed(ctx, &models.ActionRecord{
		Type:        models.ActionCheckIn,
		Description: fmt.Sprintf("checked in, streak %d", snap.StreakDays),
	}, "Checked in")
	return snap, nil
}

// Claim redeems the backend's claim authorization on chain. The local
// reward is zeroed only once the transaction has a receipt, and the amount
// reported is the authorized one.
func (g *ActionGateway) Claim(ctx context.Context) (*ClaimResult, error) {
	if err := g.requireSession("claim"); err != nil {
		return nil, err
	}

	auth, err := g.backend.RequestClaim(ctx)
	if err != nil {
		err = wrapOp("claim", err)
		g.fail(ctx, models.ActionClaim, "claim authorization failed", err)
		return nil, err
	}
	if !strings.EqualFold(auth.User, g.session.Address()) {
		err := newActionError(KindServerRejected, "claim", "claim authorization was issued for another address", nil)
		g.fail(ctx, models.ActionClaim, "claim authorization mismatch", err)
		return nil, err
	}
	amount, err := models.WeiToTokens(auth.Amount)
	if err != nil {
		err := newActionError(KindServerRejected, "claim", "invalid claim amount from server", err)
		g.fail(ctx, models.ActionClaim, "claim authorization invalid", err)
		return nil, err
	}

	receipt, err := g.chain.Claim(ctx, *auth)
	if err != nil {
		err = wrapOp("claim", err)
		g.fail(ctx, models.ActionClaim, "claim transaction failed", err)
		return nil, err
	}

	g.store.ConfirmClaim(g.now())
	g.refresh(ctx, "claim")

	g.succeed(ctx, &models.ActionRecord{
		Type:        models.ActionClaim,
		Amount:      amount,
		TxHash:      receipt.TxHash,
		Description: fmt.Sprintf("claimed %s tokens", models.FormatTokenCount(amount)),
	}, fmt.Sprintf("Claimed %s tokens", models.FormatTokenCount(amount)))

	return &ClaimResult{Amount: amount, TxHash: receipt.TxHash}, nil
}

// Reconnect revives a dead player. The server decides which mode actually
// applies and its answer overwrites the snapshot.
func (g *ActionGateway) Reconnect(ctx context.Context, mode models.ReconnectMode) (*ReconnectResult, error) {
	epoch := g.store.Epoch()
	if err := g.requireSession("reconnect"); err != nil {
		return nil, err
	}
	if err := mode.Validate(); err != nil {
		err = newActionError(KindInvalid, "reconnect", err.Error(), err)
		g.fail(ctx, models.ActionReconnect, "reconnect rejected", err)
		return nil, err
	}

	resp, err := g.backend.Reconnect(ctx, mode)
	if err != nil {
		err = wrapOp("reconnect", err)
		g.fail(ctx, models.ActionReconnect, "reconnect failed", err)
		g.refresh(ctx, "reconnect")
		return nil, err
	}

	prev := g.store.Snapshot()
	dashboard := models.DashboardSummary{}
	if prev.GlobalStats != nil {
		dashboard = *prev.GlobalStats
	}
	if snap, err := BuildSnapshot(&resp.User, &dashboard, g.now()); err == nil {
		snap.ClaimNonce = prev.ClaimNonce
		snap.TokenBalance = prev.TokenBalance
		g.store.ReplaceAt(epoch, snap)
	} else {
		g.logger.Warn("reconnect returned malformed status", "error", err)
	}

	snap := g.refresh(ctx, "reconnect")

	applied := resp.Mode
	if applied == "" {
		applied = mode
	}
	result := &ReconnectResult{
		RequestedMode: mode,
		AppliedMode:   applied,
		Downgraded:    applied != mode,
		Snapshot:      snap,
	}

	message := fmt.Sprintf("Reconnected (%s)", applied)
	if result.Downgraded {
		message = fmt.Sprintf("Reconnected with %s mode: %s was not available", applied, mode)
	}
	g.succeed(ctx, &models.ActionRecord{
		Type:        models.ActionReconnect,
		Description: fmt.Sprintf("reconnect requested %s, applied %s", mode, applied),
	}, message)

	return result, nil
}

// Purchase pays the catalog price to the treasury and has the backend
// credit the item against the transfer.
func (g *ActionGateway) Purchase(ctx context.Context, code models.ItemCode) (*PurchaseResult, error) {
	if err := g.requireSession("purchase"); err != nil {
		return nil, err
	}

	items, err := g.backend.ListItems(ctx)
	if err != nil {
		err = wrapOp("purchase", err)
		g.fail(ctx, models.ActionPurchase, "item catalog unavailable", err)
		return nil, err
	}

	var item *models.CatalogItem
	for i := range items {
		if items[i].Code == code {
			item = &items[i]
			break
		}
	}
	if item == nil {
		err := newActionError(KindInvalid, "purchase", fmt.Sprintf("unknown item %q", code), nil)
		g.fail(ctx, models.ActionPurchase, fmt.Sprintf("purchase of %s rejected", code), err)
		return nil, err
	}
	if item.MaxOwned > 0 && g.store.Snapshot().ItemQuantity(code) >= item.MaxOwned {
		err := newActionError(KindInvalid, "purchase", "item limit reached", nil)
		g.fail(ctx, models.ActionPurchase, fmt.Sprintf("purchase of %s rejected", code), err)
		return nil, err
	}
	price, err := models.ParseWei(item.Price)
	if err != nil || price.Sign() <= 0 {
		err = newActionError(KindServerRejected, "purchase", "item has no valid price", err)
		g.fail(ctx, models.ActionPurchase, fmt.Sprintf("purchase of %s rejected", code), err)
		return nil, err
	}

	receipt, err := g.chain.TransferToken(ctx, g.cfg.Treasury, price)
	if err != nil {
		err = wrapOp("purchase", err)
		g.fail(ctx, models.ActionPurchase, fmt.Sprintf("payment for %s failed", code), err)
		return nil, err
	}

	resp, err := g.backend.ConfirmPurchase(context.WithoutCancel(ctx), models.PurchaseConfirmRequest{
		ItemCode: code,
		TxHash:   receipt.TxHash,
	})
	if err != nil {
		err = wrapOp("purchase", err)
		g.record(ctx, &models.ActionRecord{
			Type:        models.ActionPurchase,
			TxHash:      receipt.TxHash,
			Amount:      models.BigWeiToTokens(price),
			Description: fmt.Sprintf("paid for %s but confirmation failed", code),
			ErrorKind:   string(KindOf(err)),
		})
		g.notify("error", fmt.Sprintf("Payment sent (%s) but the purchase was not confirmed: %s", receipt.TxHash, userMessage(err)))
		g.refresh(ctx, "purchase")
		return nil, err
	}

	g.refresh(ctx, "purchase")
	g.succeed(ctx, &models.ActionRecord{
		Type:        models.ActionPurchase,
		Amount:      models.BigWeiToTokens(price),
		TxHash:      receipt.TxHash,
		Description: fmt.Sprintf("bought %s", code),
	}, fmt.Sprintf("Bought %s", item.Name))

	return &PurchaseResult{ItemCode: resp.ItemCode, Quantity: resp.Quantity, TxHash: receipt.TxHash}, nil
}

// ResolveReferrer returns the referrer to pass to activate. Anything that
// is not a valid, activated address other than the player's own becomes
// the zero address.
func (g *ActionGateway) ResolveReferrer(ctx context.Context, referrer string) common.Address {
	referrer = strings.TrimSpace(referrer)
	if !common.IsHexAddress(referrer) {
		return common.Address{}
	}

	addr := common.HexToAddress(referrer)
	if addr == (common.Address{}) || addr == g.account() {
		return common.Address{}
	}

	activated, err := g.chain.IsActivated(ctx, addr)
	if err != nil {
		g.logger.Warn("referrer activation check failed", "referrer", addr.Hex(), "error", err)
		return common.Address{}
	}
	if !activated {
		return common.Address{}
	}
	return addr
}

// Activate pays the activation fee on chain, then polls the backend until
// it reports the account as activated.
func (g *ActionGateway) Activate(ctx context.Context, referrer string) (*ActivationResult, error) {
	if err := g.requireSession("activate"); err != nil {
		return nil, err
	}

	self := g.account()
	activated, err := g.chain.IsActivated(ctx, self)
	if err != nil {
		err = wrapOp("activate", err)
		g.fail(ctx, models.ActionActivate, "activation status unavailable", err)
		return nil, err
	}
	if activated {
		return &ActivationResult{Referrer: common.Address{}.Hex(), Activated: true, AlreadyActivated: true}, nil
	}

	ref := g.ResolveReferrer(ctx, referrer)
	receipt, err := g.chain.Activate(ctx, ref, g.cfg.ActivationFee)
	if err != nil {
		err = wrapOp("activate", err)
		g.fail(ctx, models.ActionActivate, "activation transaction failed", err)
		return nil, err
	}

	result := &ActivationResult{TxHash: receipt.TxHash, Referrer: ref.Hex()}
	result.Activated = g.pollActivation(ctx)
	result.NeedsRecheck = !result.Activated

	g.refresh(ctx, "activate")

	message := "Account activated"
	if result.NeedsRecheck {
		message = "Activation sent, it may take a moment to show up. Please check again shortly."
	}
	g.succeed(ctx, &models.ActionRecord{
		Type:        models.ActionActivate,
		Amount:      models.BigWeiToTokens(g.cfg.ActivationFee),
		TxHash:      receipt.TxHash,
		Description: fmt.Sprintf("activated with referrer %s", ref.Hex()),
	}, message)

	return result, nil
}

func (g *ActionGateway) pollActivation(ctx context.Context) bool {
	address := g.session.Address()

	for attempt := 1; attempt <= g.cfg.PollAttempts; attempt++ {
		user, err := g.backend.GetUser(ctx, address)
		if err == nil && user.Activated {
			return true
		}
		if err != nil {
			g.logger.Debug("activation poll failed", "attempt", attempt, "error", err)
		}
		if attempt == g.cfg.PollAttempts {
			break
		}

		timer := time.NewTimer(g.cfg.PollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
	return false
}

// EstimatedDailyEarnings is what activation would earn per day at the
// current pool size.
func (g *ActionGateway) EstimatedDailyEarnings() float64 {
	stats := g.store.Snapshot().GlobalStats
	if stats == nil {
		return 0
	}
	pool, err := models.WeiToTokens(stats.DailyPoolTotal)
	if err != nil {
		return 0
	}
	weight, err := parseWeight(stats.TotalRewardWeight)
	if err != nil {
		return 0
	}
	return survival.EstimatedDailyEarnings(pool, weight)
}

func (g *ActionGateway) Items(ctx context.Context) ([]models.CatalogItem, error) {
	items, err := g.backend.ListItems(ctx)
	if err != nil {
		return nil, wrapOp("list_items", err)
	}
	return items, nil
}

func (g *ActionGateway) ReferralStats(ctx context.Context) (*models.ReferralStats, error) {
	return g.referrals.ReferralStats(ctx, g.session.Address())
}

func (g *ActionGateway) ReferralList(ctx context.Context) (*models.ReferralList, error) {
	return g.referrals.ReferralList(ctx, g.session.Address())
}

func (g *ActionGateway) succeed(ctx context.Context, entry *models.ActionRecord, message string) {
	entry.Success = true
	g.record(ctx, entry)
	g.notify("success", message)
}

func (g *ActionGateway) fail(ctx context.Context, action models.ActionType, description string, err error) {
	g.record(ctx, &models.ActionRecord{
		Type:        action,
		Description: description,
		ErrorKind:   string(KindOf(err)),
	})

	// Closed prompts are reported quietly.
	if KindOf(err) == KindUserRejected {
		g.notify("info", "Request cancelled")
		return
	}
	g.notify("error", userMessage(err))
}

func (g *ActionGateway) record(ctx context.Context, entry *models.ActionRecord) {
	if g.journal == nil {
		return
	}
	entry.ID = models.GenerateActionID()
	entry.Address = g.session.Address()
	entry.CreatedAt = g.now()

	if err := g.journal.RecordAction(context.WithoutCancel(ctx), entry); err != nil {
		g.logger.Warn("failed to journal action", "type", entry.Type, "error", err)
	}
}

func (g *ActionGateway) notify(kind, message string) {
	if g.notifier != nil {
		g.notifier.BroadcastNotice(kind, message)
	}
}

// userMessage is the text to show for err.
func userMessage(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return "Something went wrong, please retry"
}
