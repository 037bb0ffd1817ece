package services

import (
	"sync"
	"time"

	"alive-keeper/internal/models"
	"alive-keeper/internal/survival"
)

type storeCommand struct {
	apply func(models.PlayerSnapshot) (models.PlayerSnapshot, bool)
	reply chan models.PlayerSnapshot
}

// SnapshotStore owns the PlayerSnapshot. A single goroutine applies every
// write in arrival order, so the decay and emission timers, reconciliation
// and optimistic actions never interleave inside one update. Readers get
// copies.
type SnapshotStore struct {
	commands chan storeCommand
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	current models.PlayerSnapshot
	epoch   uint64 // bumped by Reset; written only from run

	subsMu      sync.Mutex
	subscribers []Broadcaster
}

func NewSnapshotStore() *SnapshotStore {
	s := &SnapshotStore{
		commands: make(chan storeCommand),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.run()

	return s
}

func (s *SnapshotStore) run() {
	defer close(s.done)

	state := models.PlayerSnapshot{}
	for {
		select {
		case cmd := <-s.commands:
			next, changed := cmd.apply(state.Clone())
			if changed {
				state = next
				s.publish(state)
			}
			cmd.reply <- state.Clone()

		case <-s.stop:
			return
		}
	}
}

func (s *SnapshotStore) publish(state models.PlayerSnapshot) {
	s.mu.Lock()
	s.current = state.Clone()
	s.mu.Unlock()

	s.subsMu.Lock()
	subs := append([]Broadcaster(nil), s.subscribers...)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.BroadcastSnapshot(state.Clone())
	}
}

func (s *SnapshotStore) update(fn func(models.PlayerSnapshot) (models.PlayerSnapshot, bool)) models.PlayerSnapshot {
	cmd := storeCommand{apply: fn, reply: make(chan models.PlayerSnapshot, 1)}

	select {
	case s.commands <- cmd:
		return <-cmd.reply
	case <-s.done:
		return s.Snapshot()
	}
}

func (s *SnapshotStore) Subscribe(b Broadcaster) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subscribers = append(s.subscribers, b)
}

// Snapshot returns a copy of the current state.
func (s *SnapshotStore) Snapshot() models.PlayerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Epoch identifies the current session's snapshot. Reset moves it on.
func (s *SnapshotStore) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Replace installs a fresh server snapshot wholesale.
func (s *SnapshotStore) Replace(snap models.PlayerSnapshot) models.PlayerSnapshot {
	installed, _ := s.replace(nil, snap)
	return installed
}

// ReplaceAt installs snap only if no Reset happened since epoch was read.
// A fetch that outlives a logout is dropped.
func (s *SnapshotStore) ReplaceAt(epoch uint64, snap models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
	return s.replace(&epoch, snap)
}

func (s *SnapshotStore) replace(epoch *uint64, snap models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
	snap = snap.Clone()
	snap.Populated = true
	clampHealth(&snap)

	applied := false
	installed := s.update(func(st models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
		if epoch != nil && *epoch != s.Epoch() {
			return st, false
		}
		applied = true
		return snap, true
	})
	return installed, applied
}

// DecayTick recomputes health from the last checkpoint. Decay can mark the
// player dead but never revives.
func (s *SnapshotStore) DecayTick(now time.Time) models.PlayerSnapshot {
	return s.update(func(st models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
		if !st.Populated {
			return st, false
		}

		health := survival.CurrentHealth(st.CheckpointHealth, st.LastCheckpointTime, now)
		if health > st.MaxHealth {
			health = st.MaxHealth
		}
		alive := st.Alive && health > 0

		if health == st.Health && alive == st.Alive {
			return st, false
		}
		st.Health = health
		st.Alive = alive
		return st, true
	})
}

// EmissionTick accrues reward since the last tick.
func (s *SnapshotStore) EmissionTick(now time.Time) models.PlayerSnapshot {
	return s.update(func(st models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
		if !st.Populated || now.Before(st.LastTickTime) {
			return st, false
		}

		reward, tick := survival.Tick(st.ClaimableReward, st.EmissionRate, st.LastTickTime, now, st.Alive && st.Health > 0)
		changed := reward != st.ClaimableReward
		st.ClaimableReward = reward
		st.LastTickTime = tick
		return st, changed
	})
}

// ProvisionalCheckIn applies the optimistic half of a check-in: one more
// streak day and one point of health up to the maximum. The next
// reconciliation replaces it with server truth.
func (s *SnapshotStore) ProvisionalCheckIn(now time.Time) models.PlayerSnapshot {
	return s.update(func(st models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
		if !st.Populated {
			return st, false
		}

		health := survival.CurrentHealth(st.CheckpointHealth, st.LastCheckpointTime, now)
		if health < st.MaxHealth {
			health++
		}
		if health > st.MaxHealth {
			health = st.MaxHealth
		}

		st.StreakDays++
		st.Health = health
		st.Alive = health > 0
		st.CheckpointHealth = health
		if now.After(st.LastCheckpointTime) {
			st.LastCheckpointTime = now
		}
		return st, true
	})
}

// ConfirmClaim zeroes the claimable reward and resets the dopamine index.
// Callers invoke it only once the claim transaction has a receipt.
func (s *SnapshotStore) ConfirmClaim(now time.Time) models.PlayerSnapshot {
	return s.update(func(st models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
		if !st.Populated {
			return st, false
		}
		st.ClaimableReward = 0
		st.DopamineIndex = 1.0
		st.LastTickTime = now
		return st, true
	})
}

// SetTokenBalance records a fresh on-chain balance without touching the
// rest of the snapshot.
func (s *SnapshotStore) SetTokenBalance(balance float64) models.PlayerSnapshot {
	return s.update(func(st models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
		if st.TokenBalance == balance {
			return st, false
		}
		st.TokenBalance = balance
		return st, true
	})
}

// Reset discards the snapshot, as on logout.
func (s *SnapshotStore) Reset() models.PlayerSnapshot {
	return s.update(func(models.PlayerSnapshot) (models.PlayerSnapshot, bool) {
		s.mu.Lock()
		s.epoch++
		s.mu.Unlock()
		return models.PlayerSnapshot{}, true
	})
}

func (s *SnapshotStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func clampHealth(st *models.PlayerSnapshot) {
	if st.MaxHealth < 0 {
		st.MaxHealth = 0
	}
	if st.Health > st.MaxHealth {
		st.Health = st.MaxHealth
	}
	if st.Health < 0 {
		st.Health = 0
	}
	if st.CheckpointHealth > st.MaxHealth {
		st.CheckpointHealth = st.MaxHealth
	}
	if st.CheckpointHealth < 0 {
		st.CheckpointHealth = 0
	}
}
