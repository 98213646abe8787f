package services

import (
	"sync"

	"raffle/internal/models"
)

// RaffleReader is the read-only view the aggregator needs from an instance.
type RaffleReader interface {
	ID() string
	HeldBalance() uint64
	RecentWinner() string
}

// StatsService aggregates public state across the registry's instances. It
// mirrors the registry through Sync rather than holding its lock during
// aggregation.
type StatsService struct {
	mu       sync.Mutex
	registry *Registry
	known    []RaffleReader
	seen     map[string]bool
}

// NewStatsService creates an aggregator mirroring the given registry.
func NewStatsService(registry *Registry) *StatsService {
	return &StatsService{
		registry: registry,
		seen:     make(map[string]bool),
	}
}

// Sync adopts instances created since the last call and returns how many
// were new.
func (s *StatsService) Sync() int {
	raffles := s.registry.List()

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, r := range raffles {
		if s.seen[r.ID()] {
			continue
		}
		s.seen[r.ID()] = true
		s.known = append(s.known, r)
		added++
	}
	return added
}

// TotalRaffles returns the number of mirrored instances.
func (s *StatsService) TotalRaffles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.known)
}

// TotalHeldFunds sums the current custodied balance of every instance.
func (s *StatsService) TotalHeldFunds() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint64
	for _, r := range s.known {
		total += r.HeldBalance()
	}
	return total
}

// HistoricalWinners returns the recent winner of each instance that has
// completed at least one draw.
func (s *StatsService) HistoricalWinners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	winners := make([]string, 0, len(s.known))
	for _, r := range s.known {
		if w := r.RecentWinner(); w != "" {
			winners = append(winners, w)
		}
	}
	return winners
}

// Summary syncs and returns the aggregate snapshot.
func (s *StatsService) Summary() models.Stats {
	s.Sync()
	return models.Stats{
		TotalRaffles:   s.TotalRaffles(),
		TotalHeldFunds: s.TotalHeldFunds(),
		Winners:        s.HistoricalWinners(),
	}
}
