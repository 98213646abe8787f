package services

import (
	"errors"
	"time"

	"github.com/google/logger"
)

// Keeper periodically checks every registered raffle and requests a draw for
// the eligible ones. It replaces an external upkeep network for deployments
// that run their own trigger.
type Keeper struct {
	registry *Registry
	cadence  time.Duration
}

// NewKeeper creates a keeper ticking at the given cadence.
func NewKeeper(registry *Registry, cadence time.Duration) *Keeper {
	return &Keeper{registry: registry, cadence: cadence}
}

// Run ticks until stop is closed. Intended to run in its own goroutine.
func (k *Keeper) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(k.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			k.RunOnce()
		case <-stop:
			return
		}
	}
}

// RunOnce sweeps the registry once and returns how many draws it requested.
func (k *Keeper) RunOnce() int {
	requested := 0
	for _, r := range k.registry.List() {
		eligible, payload := r.CheckDraw(r.DrawInterval())
		if !eligible {
			continue
		}
		id, err := r.RequestDraw(payload)
		if err != nil {
			var notNeeded *UpkeepNotNeededError
			if errors.As(err, &notNeeded) {
				// Lost the race against another trigger.
				continue
			}
			logger.Errorf("upkeep: raffle %s: %v", r.ID(), err)
			continue
		}
		logger.Infof("upkeep: raffle %s draw requested (%s)", r.ID(), id)
		requested++
	}
	return requested
}
