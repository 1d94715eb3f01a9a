package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// The order book settles in the chain's native coin, which the engine models
// as a plain account ledger: the external wallet layer credits a holder when
// it observes a deposit and debits on withdrawal, and BuyFromOrder moves the
// payment between accounts.

// DepositNative credits holder's native-currency balance.
func (e *Engine) DepositNative(holder common.Address, amount *big.Int) error {
	if !domain.IsPositive(amount) {
		return fmt.Errorf("engine: native deposit must be positive: %w", domain.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.creditNative(holder, amount)
	return nil
}

// WithdrawNative debits holder's native-currency balance.
func (e *Engine) WithdrawNative(holder common.Address, amount *big.Int) error {
	if !domain.IsPositive(amount) {
		return fmt.Errorf("engine: native withdrawal must be positive: %w", domain.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bal := e.native[holder]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("engine: native balance of %s: %w", holder.Hex(), domain.ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	return nil
}

// NativeBalance returns holder's native-currency balance.
func (e *Engine) NativeBalance(holder common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CopyAmount(e.native[holder])
}

// creditNative assumes the engine mutex is held.
func (e *Engine) creditNative(holder common.Address, amount *big.Int) {
	bal := e.native[holder]
	if bal == nil {
		bal = new(big.Int)
		e.native[holder] = bal
	}
	bal.Add(bal, amount)
}
