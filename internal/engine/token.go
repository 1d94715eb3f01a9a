package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// ClaimTokens grants the one-time faucet allotment to holder and records the
// claim on the audit trail.
func (e *Engine) ClaimTokens(holder common.Address) (*big.Int, error) {
	granted, err := e.token.Claim(holder)
	if err != nil {
		return nil, err
	}
	e.emit([]domain.Event{e.newEvent(domain.EventTokensClaimed, map[string]any{
		"holder": holder.Hex(),
		"amount": domain.AmountString(granted),
	})})
	return granted, nil
}

// HasClaimedTokens reports whether holder has already drawn the faucet grant.
func (e *Engine) HasClaimedTokens(holder common.Address) bool {
	return e.token.HasClaimed(holder)
}

// MintTokens mints new credit tokens to an account. Only the ledger operator
// may mint.
func (e *Engine) MintTokens(caller, to common.Address, amount *big.Int) error {
	if err := e.token.Mint(caller, to, amount); err != nil {
		return err
	}
	e.emit([]domain.Event{e.newEvent(domain.EventTokensMinted, map[string]any{
		"to":     to.Hex(),
		"amount": domain.AmountString(amount),
	})})
	return nil
}

// TransferTokens moves credit tokens directly between two accounts.
func (e *Engine) TransferTokens(from, to common.Address, amount *big.Int) error {
	return e.token.Transfer(from, to, amount)
}

// TransferTokensFrom moves credit tokens from one account to another on the
// strength of a prior allowance granted to spender.
func (e *Engine) TransferTokensFrom(spender, from, to common.Address, amount *big.Int) error {
	return e.token.TransferFrom(spender, from, to, amount)
}

// ApproveTokens sets the spender allowance on owner's credit-token balance.
// Staking operations require an allowance for the custody account.
func (e *Engine) ApproveTokens(owner, spender common.Address, amount *big.Int) error {
	return e.token.Approve(owner, spender, amount)
}

// TokenBalance returns the credit-token balance of an account.
func (e *Engine) TokenBalance(holder common.Address) *big.Int {
	return e.token.BalanceOf(holder)
}

// TokenAllowance returns the remaining allowance spender holds on owner.
func (e *Engine) TokenAllowance(owner, spender common.Address) *big.Int {
	return e.token.Allowance(owner, spender)
}
