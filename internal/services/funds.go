package services

import (
	"errors"
	"sync"

	"github.com/google/logger"
)

// ErrAccountFrozen is returned when a credit targets an address that cannot
// accept funds.
var ErrAccountFrozen = errors.New("account cannot accept funds")

// FundTransferrer moves pooled value to a winner.
type FundTransferrer interface {
	Credit(address string, amount uint64) error
}

// RewardIssuer mints the fixed winner reward.
type RewardIssuer interface {
	Mint(address string, amount uint64) error
}

// Bank is the in-memory fund ledger backing payouts.
type Bank struct {
	mu       sync.RWMutex
	balances map[string]uint64
	frozen   map[string]bool
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances: make(map[string]uint64),
		frozen:   make(map[string]bool),
	}
}

// Credit adds amount to an address's balance. Frozen addresses reject it.
func (b *Bank) Credit(address string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen[address] {
		return ErrAccountFrozen
	}
	b.balances[address] += amount
	return nil
}

// BalanceOf returns an address's fund balance.
func (b *Bank) BalanceOf(address string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[address]
}

// Freeze marks an address as unable to accept funds.
func (b *Bank) Freeze(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen[address] = true
	logger.Infof("bank: froze account %s", address)
}

// Unfreeze lifts a freeze.
func (b *Bank) Unfreeze(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.frozen, address)
	logger.Infof("bank: unfroze account %s", address)
}

// TokenMint is the in-memory reward-token ledger.
type TokenMint struct {
	mu       sync.RWMutex
	balances map[string]uint64
	supply   uint64
}

// NewTokenMint creates an empty mint.
func NewTokenMint() *TokenMint {
	return &TokenMint{balances: make(map[string]uint64)}
}

// Mint credits amount reward tokens to an address.
func (m *TokenMint) Mint(address string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] += amount
	m.supply += amount
	return nil
}

// BalanceOf returns an address's token balance.
func (m *TokenMint) BalanceOf(address string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[address]
}

// TotalSupply returns the number of tokens minted so far.
func (m *TokenMint) TotalSupply() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supply
}
