// Package token implements the credit-token balance ledger: a fungible
// balance map with a one-time faucet claim per holder, operator-only minting,
// and standard allowance-based transfers. The other ledger components use it
// as their internal payment rail.
package token

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// Ledger is the credit-token ledger. All mutating methods are serialized by
// an internal mutex and either fully apply or leave state untouched.
type Ledger struct {
	mu sync.RWMutex

	// operator is the only identity allowed to mint.
	operator common.Address

	// claimGrant is the fixed faucet amount granted once per holder.
	claimGrant *big.Int

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
	claimed    map[common.Address]bool

	logger *slog.Logger
}

// New creates an empty credit-token ledger. claimGrant is the one-time
// faucet amount; it must be positive.
func New(operator common.Address, claimGrant *big.Int, logger *slog.Logger) *Ledger {
	return &Ledger{
		operator:   operator,
		claimGrant: domain.CopyAmount(claimGrant),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
		claimed:    make(map[common.Address]bool),
		logger:     logger.With(slog.String("component", "token")),
	}
}

// Operator returns the minting operator's address.
func (l *Ledger) Operator() common.Address {
	return l.operator
}

// Claim grants the fixed faucet amount to holder exactly once. A second
// claim fails with domain.ErrAlreadyClaimed and leaves the balance unchanged.
func (l *Ledger) Claim(holder common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.claimed[holder] {
		return nil, fmt.Errorf("token: claim for %s: %w", holder.Hex(), domain.ErrAlreadyClaimed)
	}
	l.claimed[holder] = true
	l.credit(holder, l.claimGrant)

	l.logger.Info("faucet claim",
		slog.String("holder", holder.Hex()),
		slog.String("amount", domain.AmountString(l.claimGrant)),
	)
	return domain.CopyAmount(l.claimGrant), nil
}

// HasClaimed reports whether holder has already taken the faucet grant.
func (l *Ledger) HasClaimed(holder common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.claimed[holder]
}

// Mint increases to's balance by amount. Only the operator may mint, and the
// amount must be positive.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	if caller != l.operator {
		return fmt.Errorf("token: mint by %s: %w", caller.Hex(), domain.ErrUnauthorized)
	}
	if !domain.IsPositive(amount) {
		return fmt.Errorf("token: mint amount must be positive: %w", domain.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(to, amount)

	l.logger.Info("minted tokens",
		slog.String("to", to.Hex()),
		slog.String("amount", domain.AmountString(amount)),
	)
	return nil
}

// Transfer moves amount from the caller's balance to to.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if !domain.IsPositive(amount) {
		return fmt.Errorf("token: transfer amount must be positive: %w", domain.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

// Approve sets spender's allowance over owner's balance to amount, replacing
// any prior allowance rather than adding to it.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: approve amount must not be negative: %w", domain.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	byOwner := l.allowances[owner]
	if byOwner == nil {
		byOwner = make(map[common.Address]*big.Int)
		l.allowances[owner] = byOwner
	}
	byOwner[spender] = domain.CopyAmount(amount)
	return nil
}

// Allowance returns the amount spender may currently move from owner.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.CopyAmount(l.allowances[owner][spender])
}

// TransferFrom moves amount from from's balance to to, consuming spender's
// allowance. It fails with ErrInsufficientAllowance before touching any
// balance, and with ErrInsufficientBalance without consuming allowance.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if !domain.IsPositive(amount) {
		return fmt.Errorf("token: transferFrom amount must be positive: %w", domain.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowances[from][spender]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return fmt.Errorf("token: transferFrom %s by %s: %w", from.Hex(), spender.Hex(), domain.ErrInsufficientAllowance)
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.allowances[from][spender] = new(big.Int).Sub(allowed, amount)
	l.credit(to, amount)
	return nil
}

// BalanceOf returns holder's current balance.
func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.CopyAmount(l.balances[holder])
}

// credit and debit assume the write lock is held.

func (l *Ledger) credit(holder common.Address, amount *big.Int) {
	bal := l.balances[holder]
	if bal == nil {
		bal = new(big.Int)
		l.balances[holder] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) debit(holder common.Address, amount *big.Int) error {
	bal := l.balances[holder]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("token: debit %s: %w", holder.Hex(), domain.ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	return nil
}
