package services

import (
	"errors"
	"sync"

	"raffle/internal/models"

	"github.com/google/logger"
	"github.com/google/uuid"
)

var (
	// ErrInvalidFee rejects raffles with a zero entrance fee.
	ErrInvalidFee = errors.New("entrance fee must be positive")
	// ErrInvalidInterval rejects raffles with a non-positive draw interval.
	ErrInvalidInterval = errors.New("draw interval must be positive")
)

// Registry creates and tracks raffle instances. All instances share the
// registry's randomness source, bank and reward issuer.
type Registry struct {
	mu      sync.RWMutex
	raffles []*Raffle
	byID    map[string]*Raffle

	random  RandomnessSource
	bank    FundTransferrer
	rewards RewardIssuer
}

// NewRegistry creates an empty registry.
func NewRegistry(random RandomnessSource, bank FundTransferrer, rewards RewardIssuer) *Registry {
	return &Registry{
		byID:    make(map[string]*Raffle),
		random:  random,
		bank:    bank,
		rewards: rewards,
	}
}

// Create validates params and registers a new open raffle.
func (g *Registry) Create(params models.RaffleParams) (*Raffle, error) {
	if params.EntranceFee == 0 {
		return nil, ErrInvalidFee
	}
	if params.DrawInterval <= 0 {
		return nil, ErrInvalidInterval
	}

	r := NewRaffle(uuid.NewString(), params, g.random, g.bank, g.rewards)

	g.mu.Lock()
	g.raffles = append(g.raffles, r)
	g.byID[r.ID()] = r
	g.mu.Unlock()

	logger.Infof("registry: created raffle %s (fee %d, interval %s, reward %d)",
		r.ID(), params.EntranceFee, params.DrawInterval, params.RewardAmount)
	return r, nil
}

// List returns all raffles in creation order.
func (g *Registry) List() []*Raffle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Raffle, len(g.raffles))
	copy(out, g.raffles)
	return out
}

// Get returns the raffle with the given id.
func (g *Registry) Get(id string) (*Raffle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.byID[id]
	return r, ok
}

// Count returns the number of registered raffles.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.raffles)
}
