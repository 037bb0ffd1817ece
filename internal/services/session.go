package services

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"alive-keeper/internal/config"
	"alive-keeper/internal/models"
)

type SessionState string

const (
	StateDisconnected    SessionState = "disconnected"
	StateWalletConnected SessionState = "wallet_connected"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
	StateWrongChain      SessionState = "wrong_chain"
)

// Session runs the wallet login: nonce, signature, bearer token. It owns
// the token and drops it, together with the snapshot, on logout or on any
// 401 from the backend.
type Session struct {
	wallet  Wallet
	backend AuthBackend
	cache   SessionCache
	journal ActionJournal
	store   *SnapshotStore
	tokens  *JWTService
	logger  *slog.Logger

	chainID     *big.Int
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time

	loginMu sync.Mutex

	mu        sync.RWMutex
	state     SessionState
	listeners []func(SessionState)
}

type SessionDeps struct {
	Wallet  Wallet
	Backend AuthBackend
	Cache   SessionCache
	Journal ActionJournal
	Store   *SnapshotStore
	Tokens  *JWTService
	Logger  *slog.Logger
}

func NewSession(deps SessionDeps, chainID *big.Int, tuning config.Tuning) *Session {
	attempts := tuning.LoginMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = NewJWTService(30 * time.Second)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		wallet:      deps.Wallet,
		backend:     deps.Backend,
		cache:       deps.Cache,
		journal:     deps.Journal,
		store:       deps.Store,
		tokens:      tokens,
		logger:      logger,
		chainID:     chainID,
		maxAttempts: attempts,
		retryDelay:  tuning.LoginRetryDelay,
		now:         time.Now,
		state:       StateDisconnected,
	}
}

// SetClock replaces the session's time source.
func (s *Session) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Authenticated() bool {
	return s.State() == StateAuthenticated
}

// Address is the lower-cased wallet address.
func (s *Session) Address() string {
	return strings.ToLower(s.wallet.Address().Hex())
}

// OnStateChange registers fn to run after every state transition.
func (s *Session) OnStateChange(fn func(SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) setState(next SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	listeners := append([]func(SessionState){}, s.listeners...)
	s.mu.Unlock()

	if prev == next {
		return
	}
	s.logger.Info("session state changed", "from", prev, "to", next)
	for _, fn := range listeners {
		fn(next)
	}
}

// Connect marks the wallet connected and restores a cached, unexpired
// token straight to Authenticated. A wallet on the wrong chain lands in
// WrongChain instead.
func (s *Session) Connect(ctx context.Context) (SessionState, error) {
	if err := s.checkChain(ctx); err != nil {
		if errors.Is(err, ErrWrongChain) {
			return StateWrongChain, err
		}
		return s.State(), err
	}

	if s.State() == StateAuthenticated {
		return StateAuthenticated, nil
	}

	token, err := s.cache.GetToken(ctx, s.Address())
	if err != nil {
		s.logger.Warn("failed to read cached token", "error", err)
	}
	if token != "" && s.tokens.Usable(token, s.now()) {
		s.backend.SetToken(token)
		s.setState(StateAuthenticated)
		return StateAuthenticated, nil
	}
	if token != "" {
		if err := s.cache.DeleteToken(ctx, s.Address()); err != nil {
			s.logger.Warn("failed to drop expired token", "error", err)
		}
	}

	s.setState(StateWalletConnected)
	return StateWalletConnected, nil
}

// checkChain moves the session to WrongChain and asks the wallet to switch
// when it is not on the configured chain.
func (s *Session) checkChain(ctx context.Context) error {
	current, err := s.wallet.ChainID(ctx)
	if err != nil {
		return wrapOp("chain_id", err)
	}
	if current.Cmp(s.chainID) == 0 {
		if s.State() == StateWrongChain {
			s.setState(StateWalletConnected)
		}
		return nil
	}

	s.setState(StateWrongChain)
	if err := s.wallet.SwitchChain(ctx, s.chainID); err != nil {
		s.logger.Warn("chain switch request failed", "want", s.chainID, "have", current, "error", err)
	}
	return newActionError(KindWrongChain, "login",
		"please switch your wallet to chain "+s.chainID.String(), nil)
}

// Login signs in with the wallet. Network failures are retried a bounded
// number of times with a fixed delay; a rejected signature or a server
// rejection stops immediately.
func (s *Session) Login(ctx context.Context) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	if s.State() == StateAuthenticated {
		return nil
	}
	if err := s.checkChain(ctx); err != nil {
		return err
	}

	s.setState(StateAuthenticating)
	address := s.Address()

	var token string
	attempt := 0
	operation := func() error {
		attempt++
		t, err := s.loginOnce(ctx, address)
		if err != nil {
			switch KindOf(err) {
			case KindUserRejected, KindServerRejected, KindUnauthorized, KindWrongChain:
				return backoff.Permanent(err)
			}
			s.logger.Warn("login attempt failed", "attempt", attempt, "error", err)
			return err
		}
		token = t
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(s.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		s.setState(StateWalletConnected)
		s.record(ctx, false, "login failed", err)
		return wrapOp("login", err)
	}

	s.backend.SetToken(token)
	if err := s.cache.SaveToken(ctx, address, token, s.tokens.TTL(token, s.now())); err != nil {
		s.logger.Warn("failed to cache session token", "error", err)
	}
	s.setState(StateAuthenticated)
	s.record(ctx, true, "signed in", nil)

	return nil
}

func (s *Session) loginOnce(ctx context.Context, address string) (string, error) {
	nonce, err := s.backend.CreateNonce(ctx, address)
	if err != nil {
		return "", err
	}

	message := nonce.Message
	if message == "" {
		message = nonce.Nonce
	}
	signature, err := s.wallet.SignMessage(ctx, message)
	if err != nil {
		return "", err
	}

	resp, err := s.backend.Login(ctx, address, nonce.Nonce, signature)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", newActionError(KindServerRejected, "login", "server returned no access token", nil)
	}
	return resp.AccessToken, nil
}

// Logout drops the token and the snapshot.
func (s *Session) Logout(ctx context.Context) {
	s.teardown(ctx)
}

// HandleUnauthorized is the backend's 401 hook.
func (s *Session) HandleUnauthorized() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Warn("session expired, signing out")
	s.teardown(ctx)
}

// teardown leaves Authenticated before resetting the store, so a
// reconciliation cannot slip in between and repopulate it.
func (s *Session) teardown(ctx context.Context) {
	s.backend.SetToken("")
	s.setState(StateDisconnected)
	if err := s.cache.DeleteToken(ctx, s.Address()); err != nil {
		s.logger.Warn("failed to delete cached token", "error", err)
	}
	s.store.Reset()
}

func (s *Session) record(ctx context.Context, success bool, description string, err error) {
	if s.journal == nil {
		return
	}

	entry := &models.ActionRecord{
		ID:          models.GenerateActionID(),
		Address:     s.Address(),
		Type:        models.ActionLogin,
		Success:     success,
		Description: description,
		CreatedAt:   s.now(),
	}
	if err != nil {
		entry.ErrorKind = string(KindOf(err))
	}

	if err := s.journal.RecordAction(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to journal action", "type", entry.Type, "error", err)
	}
}
