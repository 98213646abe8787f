package models

import "time"

// State is the lifecycle state of a raffle instance.
// An OPEN raffle accepts entries; a DRAWING raffle has a randomness
// request in flight and rejects them.
type State int

const (
	StateOpen State = iota
	StateDrawing
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDrawing:
		return "drawing"
	default:
		return "unknown"
	}
}

// RaffleParams are the fixed parameters of a raffle instance.
// All amounts are in integer base units.
type RaffleParams struct {
	EntranceFee  uint64        `json:"entranceFee"`
	DrawInterval time.Duration `json:"drawInterval"`
	RewardAmount uint64        `json:"rewardAmount"`
}

// RaffleSnapshot is a point-in-time copy of a raffle's public state.
type RaffleSnapshot struct {
	ID            string    `json:"id"`
	State         string    `json:"state"`
	EntranceFee   uint64    `json:"entranceFee"`
	DrawInterval  string    `json:"drawInterval"`
	RewardAmount  uint64    `json:"rewardAmount"`
	LastDraw      time.Time `json:"lastDraw"`
	EntrantCount  int       `json:"entrantCount"`
	Entrants      []string  `json:"entrants"`
	PoolBalance   uint64    `json:"poolBalance"`
	HeldBalance   uint64    `json:"heldBalance"`
	RecentWinner  string    `json:"recentWinner,omitempty"`
	PendingDrawID string    `json:"pendingDrawId,omitempty"`
}

// DrawResult records the outcome of one completed draw cycle.
type DrawResult struct {
	RaffleID  string    `json:"raffleId"`
	RequestID string    `json:"requestId"`
	Winner    string    `json:"winner"`
	Payout    uint64    `json:"payout"`
	Reward    uint64    `json:"reward"`
	Entrants  int       `json:"entrants"`
	DrawnAt   time.Time `json:"drawnAt"`
}

// Stats aggregates public state across all known raffle instances.
type Stats struct {
	TotalRaffles   int      `json:"totalRaffles"`
	TotalHeldFunds uint64   `json:"totalHeldFunds"`
	Winners        []string `json:"winners"`
}
