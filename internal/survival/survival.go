// Package survival holds the client-side arithmetic used to extrapolate a
// player's state between server refreshes. The results are for display
// only; the backend recomputes everything authoritatively.
package survival

import (
	"math"
	"time"
)

const (
	// DecayPeriod is the time it takes to lose one point of health.
	DecayPeriod = time.Hour

	// WeightScale converts a survival multiplier into the backend's reward weight.
	WeightScale = 10000.0

	// DefaultUserWeight is the weight of a freshly activated account.
	DefaultUserWeight = WeightScale

	dopaminePerDay = 0.1
)

// CurrentHealth returns the health remaining at now, given the health base
// known at lastCheckpoint. One point is lost per whole elapsed hour. A now
// before lastCheckpoint counts as no time elapsed.
func CurrentHealth(base int, lastCheckpoint, now time.Time) int {
	elapsed := now.Sub(lastCheckpoint)
	if elapsed < 0 {
		elapsed = 0
	}

	hours := int(elapsed / DecayPeriod)
	if hours >= base {
		return 0
	}
	return base - hours
}

// Tick accrues reward for the time since lastTick. A dead player or a zero
// rate accrues nothing, but the tick base still moves to now so that a
// revive does not pay out the downtime.
func Tick(reward, rate float64, lastTick, now time.Time, alive bool) (float64, time.Time) {
	if !alive || rate <= 0 {
		return reward, now
	}

	dt := now.Sub(lastTick).Seconds()
	if dt <= 0 {
		return reward, now
	}
	return reward + rate*dt, now
}

// EmissionRate is the account's share of the global emission in tokens per
// second: global * (multiplier*WeightScale / totalWeight).
func EmissionRate(globalPerSecond, totalWeight, multiplier float64) float64 {
	if totalWeight <= 0 || globalPerSecond <= 0 || multiplier <= 0 {
		return 0
	}
	return globalPerSecond * (multiplier * WeightScale / totalWeight)
}

// DopamineIndex grows by 0.1 per day the reward has been left unclaimed.
func DopamineIndex(unclaimedDays int) float64 {
	if unclaimedDays < 0 {
		unclaimedDays = 0
	}
	return 1 + float64(unclaimedDays)*dopaminePerDay
}

// EstimatedDailyEarnings is what a newly activated account would earn per
// day from the given daily pool.
func EstimatedDailyEarnings(dailyPool, totalWeight float64) float64 {
	if dailyPool <= 0 {
		return 0
	}
	share := DefaultUserWeight / (math.Max(totalWeight, 0) + DefaultUserWeight)
	return dailyPool * share
}
