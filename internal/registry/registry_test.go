package registry

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
	owner   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	custody = common.HexToAddress("0x0000000000000000000000000000000000000002")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(owner, logger)
	if err := r.SetGlobalMinter(owner, custody, true); err != nil {
		t.Fatalf("SetGlobalMinter: %v", err)
	}
	return r
}

func mintTicket(t *testing.T, r *Registry, to common.Address, projectID uint64, optionID int, amount int64) uint64 {
	t.Helper()
	id, err := r.Mint(custody, to, projectID, optionID, big.NewInt(amount))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return id
}

func TestSetGlobalMinterOwnerOnly(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(owner, logger)

	if err := r.SetGlobalMinter(alice, alice, true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("SetGlobalMinter by non-owner err=%v want=ErrUnauthorized", err)
	}
	if r.IsMinter(alice) {
		t.Fatalf("IsMinter(alice)=true after rejected call")
	}

	if err := r.SetGlobalMinter(owner, custody, true); err != nil {
		t.Fatalf("SetGlobalMinter: %v", err)
	}
	if !r.IsMinter(custody) {
		t.Fatalf("IsMinter(custody)=false after enable")
	}

	if err := r.SetGlobalMinter(owner, custody, false); err != nil {
		t.Fatalf("SetGlobalMinter: %v", err)
	}
	if r.IsMinter(custody) {
		t.Fatalf("IsMinter(custody)=true after disable")
	}
}

func TestMintRequiresMinter(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Mint(alice, alice, 1, 0, big.NewInt(10)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Mint by non-minter err=%v want=ErrUnauthorized", err)
	}

	id := mintTicket(t, r, alice, 1, 0, 10)
	if id != 1 {
		t.Fatalf("first ticket id=%d want=1", id)
	}

	tk, err := r.TicketInfo(id)
	if err != nil {
		t.Fatalf("TicketInfo: %v", err)
	}
	if tk.Owner != alice || tk.OriginalBuyer != alice {
		t.Fatalf("owner=%s original=%s want alice for both", tk.Owner.Hex(), tk.OriginalBuyer.Hex())
	}
	if tk.ProjectID != 1 || tk.OptionID != 0 {
		t.Fatalf("project=%d option=%d want 1,0", tk.ProjectID, tk.OptionID)
	}
}

func TestTransferByOwner(t *testing.T) {
	r := newTestRegistry(t)
	id := mintTicket(t, r, alice, 1, 0, 10)

	if err := r.Transfer(bob, id, bob); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Transfer by stranger err=%v want=ErrUnauthorized", err)
	}

	if err := r.Transfer(alice, id, bob); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	got, err := r.OwnerOf(id)
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	if got != bob {
		t.Fatalf("owner=%s want=bob", got.Hex())
	}

	// The original buyer does not change with ownership.
	tk, _ := r.TicketInfo(id)
	if tk.OriginalBuyer != alice {
		t.Fatalf("original buyer=%s want=alice", tk.OriginalBuyer.Hex())
	}

	if n := len(r.TicketsByOwner(alice)); n != 0 {
		t.Fatalf("alice still indexed with %d tickets", n)
	}
	if n := len(r.TicketsByOwner(bob)); n != 1 {
		t.Fatalf("bob indexed with %d tickets want=1", n)
	}
}

func TestTransferByApprovedClearsApproval(t *testing.T) {
	r := newTestRegistry(t)
	id := mintTicket(t, r, alice, 1, 0, 10)

	if err := r.Approve(bob, id, bob); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Approve by non-owner err=%v want=ErrUnauthorized", err)
	}
	if err := r.Approve(alice, id, custody); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	approved, err := r.GetApproved(id)
	if err != nil {
		t.Fatalf("GetApproved: %v", err)
	}
	if approved != custody {
		t.Fatalf("approved=%s want=custody", approved.Hex())
	}

	if err := r.Transfer(custody, id, bob); err != nil {
		t.Fatalf("Transfer by approved: %v", err)
	}

	approved, err = r.GetApproved(id)
	if err != nil {
		t.Fatalf("GetApproved: %v", err)
	}
	if approved != (common.Address{}) {
		t.Fatalf("approval=%s want=zero after transfer", approved.Hex())
	}

	// The stale approval must not authorize a second transfer.
	if err := r.Transfer(custody, id, alice); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("reuse of cleared approval err=%v want=ErrUnauthorized", err)
	}
}

func TestTicketsByProject(t *testing.T) {
	r := newTestRegistry(t)
	mintTicket(t, r, alice, 1, 0, 10)
	mintTicket(t, r, bob, 1, 1, 20)
	mintTicket(t, r, alice, 2, 0, 30)

	got := r.TicketsByProject(1)
	if len(got) != 2 {
		t.Fatalf("project 1 tickets=%d want=2", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("ids=%d,%d want mint order 1,2", got[0].ID, got[1].ID)
	}

	// Project index survives ownership changes.
	if err := r.Transfer(alice, 1, bob); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	got = r.TicketsByProject(1)
	if len(got) != 2 || got[0].Owner != bob {
		t.Fatalf("project index stale after transfer")
	}
}

func TestUnknownTicketLookups(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.TicketInfo(99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("TicketInfo err=%v want=ErrNotFound", err)
	}
	if _, err := r.OwnerOf(99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("OwnerOf err=%v want=ErrNotFound", err)
	}
	if _, err := r.GetApproved(99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetApproved err=%v want=ErrNotFound", err)
	}
	if err := r.Transfer(alice, 99, bob); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Transfer err=%v want=ErrNotFound", err)
	}
}
