package services

import (
	"errors"
	"sync"

	"github.com/google/logger"
)

// ErrSelfReferral rejects entries that name the referee as its own referrer.
var ErrSelfReferral = errors.New("cannot refer yourself")

// ReferralService credits referrers a tenth of the entry value for the first
// successful referred entry of each referee, once ever, then keeps a running
// per-referrer reward balance.
type ReferralService struct {
	mu        sync.Mutex
	referrers map[string]string // referee -> referrer, first referral wins
	rewards   map[string]uint64 // referrer -> accumulated credit
}

// NewReferralService creates an empty referral ledger.
func NewReferralService() *ReferralService {
	return &ReferralService{
		referrers: make(map[string]string),
		rewards:   make(map[string]uint64),
	}
}

// EnterWithReferral forwards the entry to the raffle and, if it is the
// referee's first successful referred entry, records the referrer and
// credits them value/10. A rejected entry credits nothing.
func (s *ReferralService) EnterWithReferral(r *Raffle, referee, referrer string, value uint64) error {
	if referee == referrer {
		return ErrSelfReferral
	}
	if err := r.Enter(referee, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.referrers[referee]; seen {
		return nil
	}
	s.referrers[referee] = referrer
	s.rewards[referrer] += value / 10
	logger.Infof("referral: %s referred %s, credited %d", referrer, referee, value/10)
	return nil
}

// RewardOf returns a referrer's accumulated credit.
func (s *ReferralService) RewardOf(referrer string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewards[referrer]
}

// ReferrerOf returns who referred the given referee.
func (s *ReferralService) ReferrerOf(referee string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.referrers[referee]
	return ref, ok
}
