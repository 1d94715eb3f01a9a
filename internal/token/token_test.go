package token

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

var (
	operator = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newTestLedger() *Ledger {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(operator, big.NewInt(1000), logger)
}

func checkBalance(t *testing.T, l *Ledger, holder common.Address, want int64) {
	t.Helper()
	if got := l.BalanceOf(holder); got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("BalanceOf(%s)=%v want=%d", holder.Hex(), got, want)
	}
}

func TestClaimGrantsOnce(t *testing.T) {
	l := newTestLedger()

	granted, err := l.Claim(alice)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if granted.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("granted=%v want=1000", granted)
	}
	checkBalance(t, l, alice, 1000)
	if !l.HasClaimed(alice) {
		t.Fatalf("HasClaimed=false after claim")
	}

	if _, err := l.Claim(alice); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second Claim err=%v want=ErrAlreadyClaimed", err)
	}
	checkBalance(t, l, alice, 1000)
}

func TestMintOperatorOnly(t *testing.T) {
	l := newTestLedger()

	if err := l.Mint(alice, alice, big.NewInt(50)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Mint by non-operator err=%v want=ErrUnauthorized", err)
	}
	checkBalance(t, l, alice, 0)

	if err := l.Mint(operator, alice, big.NewInt(50)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	checkBalance(t, l, alice, 50)
}

func TestMintRejectsNonPositive(t *testing.T) {
	l := newTestLedger()

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		if err := l.Mint(operator, alice, amount); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("Mint(%v) err=%v want=ErrInvalidArgument", amount, err)
		}
	}
}

func TestTransfer(t *testing.T) {
	l := newTestLedger()
	if _, err := l.Claim(alice); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if err := l.Transfer(alice, bob, big.NewInt(300)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	checkBalance(t, l, alice, 700)
	checkBalance(t, l, bob, 300)

	if err := l.Transfer(alice, bob, big.NewInt(701)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("overdraw err=%v want=ErrInsufficientBalance", err)
	}
	checkBalance(t, l, alice, 700)
	checkBalance(t, l, bob, 300)
}

func TestApproveOverwrites(t *testing.T) {
	l := newTestLedger()

	if err := l.Approve(alice, bob, big.NewInt(100)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.Approve(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got := l.Allowance(alice, bob); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("Allowance=%v want=40 (approve must replace, not add)", got)
	}

	if err := l.Approve(alice, bob, big.NewInt(-1)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("negative approve err=%v want=ErrInvalidArgument", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l := newTestLedger()
	if _, err := l.Claim(alice); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := l.Approve(alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if err := l.TransferFrom(bob, alice, bob, big.NewInt(150)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	checkBalance(t, l, alice, 850)
	checkBalance(t, l, bob, 150)
	if got := l.Allowance(alice, bob); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("Allowance=%v want=250", got)
	}
}

func TestTransferFromAllowanceCheckedFirst(t *testing.T) {
	l := newTestLedger()
	if _, err := l.Claim(alice); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// No allowance at all.
	if err := l.TransferFrom(bob, alice, bob, big.NewInt(10)); !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("no-allowance err=%v want=ErrInsufficientAllowance", err)
	}

	// Allowance exceeds balance: the balance failure must not consume
	// allowance.
	if err := l.Approve(alice, bob, big.NewInt(5000)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.TransferFrom(bob, alice, bob, big.NewInt(2000)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("overdraw err=%v want=ErrInsufficientBalance", err)
	}
	if got := l.Allowance(alice, bob); got.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("Allowance=%v want=5000 (failed transfer must not consume)", got)
	}
	checkBalance(t, l, alice, 1000)
}
