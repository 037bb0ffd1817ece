package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"alive-keeper/internal/models"
	"alive-keeper/internal/survival"
)

// SessionGate is what reconciliation needs to know about the session.
type SessionGate interface {
	Authenticated() bool
	Address() string
}

// Reconciler pulls the authoritative player state and replaces the
// snapshot with it. A failed fetch leaves the last good snapshot in place
// and local extrapolation carries on from it.
type Reconciler struct {
	source  StatusSource
	chain   ChainReader
	store   *SnapshotStore
	session SessionGate
	logger  *slog.Logger

	interval time.Duration
	trigger  chan string
	flight   singleflight.Group
	failures atomic.Int64
	now      func() time.Time
}

func NewReconciler(source StatusSource, chain ChainReader, store *SnapshotStore, session SessionGate, interval time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		source:   source,
		chain:    chain,
		store:    store,
		session:  session,
		logger:   logger,
		interval: interval,
		trigger:  make(chan string, 1),
		now:      time.Now,
	}
}

func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// ConsecutiveFailures is the number of failed reconciliations since the
// last success.
func (r *Reconciler) ConsecutiveFailures() int64 {
	return r.failures.Load()
}

// Trigger asks Run for a reconciliation as soon as possible. Requests made
// while one is already pending are merged.
func (r *Reconciler) Trigger(reason string) {
	select {
	case r.trigger <- reason:
	default:
	}
}

// Run reconciles once, then on every interval and every Trigger, until ctx
// is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce(ctx, "startup")

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx, "poll")
		case reason := <-r.trigger:
			r.runOnce(ctx, reason)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context, reason string) {
	if _, err := r.Reconcile(ctx, reason); err != nil {
		r.logger.Warn("reconciliation failed, keeping last snapshot",
			"reason", reason,
			"consecutive_failures", r.ConsecutiveFailures(),
			"error", err)
	}
}

// Reconcile fetches and installs a fresh snapshot. Overlapping calls share
// one fetch. Without an authenticated session it does nothing.
func (r *Reconciler) Reconcile(ctx context.Context, reason string) (models.PlayerSnapshot, error) {
	// Read the epoch first: a logout after this point is caught by ReplaceAt.
	epoch := r.store.Epoch()
	if !r.session.Authenticated() {
		return r.store.Snapshot(), nil
	}

	v, err, _ := r.flight.Do(fmt.Sprintf("reconcile:%d", epoch), func() (interface{}, error) {
		return r.reconcile(ctx, reason, epoch)
	})
	if err != nil {
		return r.store.Snapshot(), err
	}
	return v.(models.PlayerSnapshot), nil
}

func (r *Reconciler) reconcile(ctx context.Context, reason string, epoch uint64) (models.PlayerSnapshot, error) {
	address := r.session.Address()
	prev := r.store.Snapshot()

	var (
		user      *models.UserStatus
		dashboard *models.DashboardSummary
		nonce     = prev.ClaimNonce
		balance   = prev.TokenBalance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = r.source.GetUser(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		dashboard, err = r.source.GetDashboard(gctx)
		return err
	})
	if r.chain != nil {
		account := common.HexToAddress(address)
		g.Go(func() error {
			n, err := r.chain.ClaimNonce(gctx, account)
			if err != nil {
				r.logger.Debug("claim nonce read failed", "error", err)
				return nil
			}
			nonce = n
			return nil
		})
		g.Go(func() error {
			b, err := r.chain.TokenBalance(gctx, account)
			if err != nil {
				r.logger.Debug("token balance read failed", "error", err)
				return nil
			}
			balance = models.BigWeiToTokens(b)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.failures.Add(1)
		return prev, wrapOp("reconcile", err)
	}

	snap, err := BuildSnapshot(user, dashboard, r.now())
	if err != nil {
		r.failures.Add(1)
		return prev, newActionError(KindServerRejected, "reconcile", "malformed player status", err)
	}
	snap.ClaimNonce = nonce
	snap.TokenBalance = balance

	installed, ok := r.store.ReplaceAt(epoch, snap)
	if !ok {
		r.logger.Debug("session ended during reconciliation, dropping result", "reason", reason)
		return installed, nil
	}
	r.failures.Store(0)
	r.logger.Debug("snapshot reconciled", "reason", reason, "health", installed.Health, "claimable", installed.ClaimableReward)

	return installed, nil
}

// BuildSnapshot converts the backend's view into a snapshot whose
// extrapolation bases are set to now.
func BuildSnapshot(user *models.UserStatus, dashboard *models.DashboardSummary, now time.Time) (models.PlayerSnapshot, error) {
	claimable, err := models.WeiToTokens(user.Claimable)
	if err != nil {
		return models.PlayerSnapshot{}, fmt.Errorf("claimable: %w", err)
	}
	claimed, err := models.WeiToTokens(user.OptimisticClaimedRewards)
	if err != nil {
		return models.PlayerSnapshot{}, fmt.Errorf("claimed rewards: %w", err)
	}
	global, err := models.WeiToTokens(dashboard.GlobalEmissionPerSecond)
	if err != nil {
		return models.PlayerSnapshot{}, fmt.Errorf("global emission: %w", err)
	}
	totalWeight, err := parseWeight(dashboard.TotalRewardWeight)
	if err != nil {
		return models.PlayerSnapshot{}, fmt.Errorf("total reward weight: %w", err)
	}

	alive := user.IsAlive() && user.HP > 0
	rate := 0.0
	if alive {
		rate = survival.EmissionRate(global, totalWeight, user.Multiplier)
	}

	stats := *dashboard
	return models.PlayerSnapshot{
		Address:            strings.ToLower(user.Address),
		Health:             user.HP,
		MaxHealth:          user.MaxHP,
		CheckpointHealth:   user.HP,
		LastCheckpointTime: now,
		Alive:              alive,
		StreakDays:         user.ConsecutiveCheckinDays,
		SurvivalMultiplier: user.Multiplier,
		DopamineIndex:      survival.DopamineIndex(user.UnclaimedDays),
		ClaimableReward:    claimable,
		ClaimedRewards:     claimed,
		EmissionRate:       rate,
		LastTickTime:       now,
		IsAccountActivated: user.Activated,
		OwnedItems:         append([]models.Item(nil), user.Items...),
		GlobalStats:        &stats,
		SyncedAt:           now,
	}, nil
}

func parseWeight(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
