package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"raffle/internal/models"

	"github.com/google/logger"
)

var (
	// ErrInsufficientPayment is returned when an entry carries less value
	// than the entrance fee.
	ErrInsufficientPayment = errors.New("entry value is below the entrance fee")
	// ErrNotOpen is returned when an entry arrives while a draw is in flight.
	ErrNotOpen = errors.New("raffle is not accepting entries")
	// ErrTransferFailed marks a payout whose fund transfer was rejected.
	// The raffle has already reset; the value stays custodied by the
	// instance until recovered out of band.
	ErrTransferFailed = errors.New("payout transfer failed")
	// ErrRewardIssuance marks a failed reward mint. The winner has already
	// received the pool; only the token credit is missing.
	ErrRewardIssuance = errors.New("reward issuance failed")
	// ErrNoPendingDraw is returned by AbandonDraw when nothing is in flight.
	ErrNoPendingDraw = errors.New("no draw in progress")
)

// UpkeepNotNeededError reports why a draw request was refused.
type UpkeepNotNeededError struct {
	Balance  uint64
	Entrants int
	State    models.State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("upkeep not needed (balance %d, %d entrants, state %s)",
		e.Balance, e.Entrants, e.State)
}

// UpkeepPayload carries the interval a CheckDraw call was evaluated against,
// so the follow-up RequestDraw rechecks the same condition.
type UpkeepPayload struct {
	Interval time.Duration
}

// Raffle is a single raffle instance. Entrants deposit the entrance fee into
// a shared pool while the raffle is open; once the draw interval elapses a
// randomness request is issued, and its fulfillment picks one entrant, pays
// out the whole pool plus a token reward, and reopens the raffle.
//
// One mutex serialises every state-mutating call, so Enter, RequestDraw,
// FulfillRandomness and AbandonDraw never interleave for the same instance.
type Raffle struct {
	mu     sync.Mutex
	id     string
	params models.RaffleParams

	state        models.State
	lastDraw     time.Time
	entrants     []string
	pool         uint64 // bookkeeping: sum of entry values this cycle
	held         uint64 // value actually custodied; survives a failed payout
	recentWinner string
	pendingDraw  string // outstanding randomness request id, set only while drawing
	history      []models.DrawResult

	random  RandomnessSource
	bank    FundTransferrer
	rewards RewardIssuer
}

// NewRaffle creates an open raffle with the given fixed parameters.
func NewRaffle(id string, params models.RaffleParams, random RandomnessSource, bank FundTransferrer, rewards RewardIssuer) *Raffle {
	return &Raffle{
		id:       id,
		params:   params,
		state:    models.StateOpen,
		lastDraw: time.Now(),
		random:   random,
		bank:     bank,
		rewards:  rewards,
	}
}

// Enter adds sender to the current cycle's roster. The same address may
// enter any number of times; each entry is one slot in the draw.
func (r *Raffle) Enter(sender string, value uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if value < r.params.EntranceFee {
		return ErrInsufficientPayment
	}
	if r.state != models.StateOpen {
		return ErrNotOpen
	}

	r.entrants = append(r.entrants, sender)
	r.pool += value
	r.held += value
	logger.Infof("raffle %s: %s entered with %d (pool %d, %d entrants)",
		r.id, sender, value, r.pool, len(r.entrants))
	return nil
}

// CheckDraw reports whether a draw may be requested now, together with the
// payload RequestDraw needs to recheck the same interval.
func (r *Raffle) CheckDraw(interval time.Duration) (bool, UpkeepPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawNeeded(interval), UpkeepPayload{Interval: interval}
}

// drawNeeded is the eligibility condition; callers hold r.mu.
func (r *Raffle) drawNeeded(interval time.Duration) bool {
	return r.state == models.StateOpen &&
		time.Since(r.lastDraw) > interval &&
		len(r.entrants) > 0 &&
		r.pool > 0
}

// RequestDraw transitions the raffle into drawing and issues exactly one
// randomness request. Eligibility is rechecked under the lock, so callers
// racing between CheckDraw and RequestDraw get an UpkeepNotNeededError
// instead of a duplicate request.
func (r *Raffle) RequestDraw(payload UpkeepPayload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.drawNeeded(payload.Interval) {
		return "", &UpkeepNotNeededError{
			Balance:  r.held,
			Entrants: len(r.entrants),
			State:    r.state,
		}
	}

	id, err := r.random.Request(r, 1)
	if err != nil {
		return "", fmt.Errorf("request randomness: %w", err)
	}
	r.state = models.StateDrawing
	r.pendingDraw = id
	logger.Infof("raffle %s: draw requested (%s, %d entrants, pool %d)",
		r.id, id, len(r.entrants), r.pool)
	return id, nil
}

// FulfillRandomness consumes the random words for an outstanding draw
// request. A stale or unknown request id is ignored without touching state:
// that is a duplicate or out-of-order delivery, not a fault.
//
// All bookkeeping is reset before the external transfer, so a failed payout
// leaves the raffle open and consistent; only the held balance is stuck.
func (r *Raffle) FulfillRandomness(requestID string, words []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != models.StateDrawing || requestID != r.pendingDraw {
		logger.Infof("raffle %s: ignoring stale randomness delivery %s", r.id, requestID)
		return nil
	}
	if len(words) == 0 {
		return fmt.Errorf("fulfillment %s carried no random words", requestID)
	}

	// Roster is non-empty: it was validated at request time and entries
	// are blocked while drawing.
	idx := words[0] % uint64(len(r.entrants))
	winner := r.entrants[idx]
	payout := r.held
	entrants := len(r.entrants)

	r.recentWinner = winner
	r.entrants = nil
	r.pool = 0
	r.state = models.StateOpen
	r.lastDraw = time.Now()
	r.pendingDraw = ""
	r.history = append(r.history, models.DrawResult{
		RaffleID:  r.id,
		RequestID: requestID,
		Winner:    winner,
		Payout:    payout,
		Reward:    r.params.RewardAmount,
		Entrants:  entrants,
		DrawnAt:   r.lastDraw,
	})
	logger.Infof("raffle %s: winner %s picked by request %s (%d entrants, payout %d)",
		r.id, winner, requestID, entrants, payout)

	if err := r.bank.Credit(winner, payout); err != nil {
		logger.Errorf("raffle %s: payout of %d to %s failed: %v", r.id, payout, winner, err)
		return fmt.Errorf("%w: pay %d to %s: %v", ErrTransferFailed, payout, winner, err)
	}
	r.held -= payout

	if err := r.rewards.Mint(winner, r.params.RewardAmount); err != nil {
		logger.Errorf("raffle %s: reward mint of %d to %s failed: %v",
			r.id, r.params.RewardAmount, winner, err)
		return fmt.Errorf("%w: mint %d to %s: %v", ErrRewardIssuance, r.params.RewardAmount, winner, err)
	}
	return nil
}

// AbandonDraw clears a never-fulfilled randomness request and reopens the
// raffle. The abandoned id becomes stale, so a late delivery is ignored.
// lastDraw is left untouched: the next upkeep tick may re-request at once.
func (r *Raffle) AbandonDraw() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != models.StateDrawing {
		return ErrNoPendingDraw
	}
	logger.Infof("raffle %s: abandoning draw request %s", r.id, r.pendingDraw)
	r.pendingDraw = ""
	r.state = models.StateOpen
	return nil
}

// ID returns the raffle's registry id.
func (r *Raffle) ID() string { return r.id }

// EntranceFee returns the fixed per-entry fee.
func (r *Raffle) EntranceFee() uint64 { return r.params.EntranceFee }

// DrawInterval returns the minimum time between draws.
func (r *Raffle) DrawInterval() time.Duration { return r.params.DrawInterval }

// RewardAmount returns the token credit each winner receives.
func (r *Raffle) RewardAmount() uint64 { return r.params.RewardAmount }

// State returns the current lifecycle state.
func (r *Raffle) State() models.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastDraw returns the creation time or the time of the last completed draw.
func (r *Raffle) LastDraw() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDraw
}

// RecentWinner returns the last paid winner, or "" before the first draw.
func (r *Raffle) RecentWinner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recentWinner
}

// EntrantCount returns the current roster size.
func (r *Raffle) EntrantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entrants)
}

// Entrant returns the address at the given roster position.
func (r *Raffle) Entrant(i int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.entrants) {
		return "", false
	}
	return r.entrants[i], true
}

// PoolBalance returns this cycle's bookkeeping pool.
func (r *Raffle) PoolBalance() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pool
}

// HeldBalance returns the value actually custodied by the instance. It
// differs from PoolBalance only after a failed payout.
func (r *Raffle) HeldBalance() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held
}

// PendingDraw returns the outstanding randomness request id, or "".
func (r *Raffle) PendingDraw() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingDraw
}

// History returns a copy of the completed draw results.
func (r *Raffle) History() []models.DrawResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DrawResult, len(r.history))
	copy(out, r.history)
	return out
}

// Snapshot returns a consistent point-in-time copy of the public state.
func (r *Raffle) Snapshot() models.RaffleSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	entrants := make([]string, len(r.entrants))
	copy(entrants, r.entrants)
	return models.RaffleSnapshot{
		ID:            r.id,
		State:         r.state.String(),
		EntranceFee:   r.params.EntranceFee,
		DrawInterval:  r.params.DrawInterval.String(),
		RewardAmount:  r.params.RewardAmount,
		LastDraw:      r.lastDraw,
		EntrantCount:  len(entrants),
		Entrants:      entrants,
		PoolBalance:   r.pool,
		HeldBalance:   r.held,
		RecentWinner:  r.recentWinner,
		PendingDrawID: r.pendingDraw,
	}
}
