package engine

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alanyoungcy/betledger/internal/domain"
)

func TestCreateProjectPullsPrizePool(t *testing.T) {
	f := newFixture(t)

	before := f.tok.BalanceOf(operator)
	id := f.createProject(t, 500)
	if id != 1 {
		t.Fatalf("project id=%d want=1", id)
	}

	checkAmount(t, "custody balance", f.eng.CustodyBalance(), 500)
	wantOp := new(big.Int).Sub(before, big.NewInt(500))
	if got := f.tok.BalanceOf(operator); got.Cmp(wantOp) != 0 {
		t.Fatalf("operator balance=%v want=%v", got, wantOp)
	}

	p, err := f.eng.Project(id)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if !p.IsActive || p.IsFinished {
		t.Fatalf("lifecycle active=%v finished=%v want active unfinished", p.IsActive, p.IsFinished)
	}
	if len(p.Options) != 2 {
		t.Fatalf("options=%d want=2", len(p.Options))
	}
	checkAmount(t, "prize pool", p.PrizePool, 500)
	for _, bt := range p.BetTotals {
		checkAmount(t, "initial bet total", bt, 0)
	}
	if got := len(f.sink.byType(domain.EventProjectCreated)); got != 1 {
		t.Fatalf("project_created events=%d want=1", got)
	}
}

func TestCreateProjectOperatorOnly(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice)

	_, err := f.eng.CreateProject(alice, "t", "d", []string{"a", "b"}, big.NewInt(10), time.Hour)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err=%v want ErrUnauthorized", err)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		options []string
		pool    *big.Int
	}{
		{"one option", []string{"only"}, big.NewInt(10)},
		{"no options", nil, big.NewInt(10)},
		{"zero pool", []string{"a", "b"}, big.NewInt(0)},
		{"negative pool", []string{"a", "b"}, big.NewInt(-5)},
		{"nil pool", []string{"a", "b"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.eng.CreateProject(operator, "t", "d", tc.options, tc.pool, time.Hour)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("err=%v want ErrInvalidArgument", err)
			}
		})
	}
}

func TestCreateProjectRequiresAllowance(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.CreateProject(operator, "t", "d", []string{"a", "b"}, big.NewInt(100), time.Hour)
	if !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("err=%v want ErrInsufficientAllowance", err)
	}
	checkAmount(t, "custody balance", f.eng.CustodyBalance(), 0)
}

func TestBuyTicketMovesStake(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 200)
	f.fund(t, alice)

	ticketID := f.stake(t, alice, id, 0, 75)
	if ticketID != 1 {
		t.Fatalf("ticket id=%d want=1", ticketID)
	}

	checkAmount(t, "alice balance", f.tok.BalanceOf(alice), 925)
	checkAmount(t, "custody balance", f.eng.CustodyBalance(), 275)

	tk, err := f.eng.Ticket(ticketID)
	if err != nil {
		t.Fatalf("Ticket: %v", err)
	}
	if tk.Owner != alice || tk.OriginalBuyer != alice {
		t.Fatalf("owner=%s original=%s want alice", tk.Owner.Hex(), tk.OriginalBuyer.Hex())
	}
	if tk.ProjectID != id || tk.OptionID != 0 {
		t.Fatalf("ticket project=%d option=%d want %d/0", tk.ProjectID, tk.OptionID, id)
	}
	checkAmount(t, "ticket bet amount", tk.BetAmount, 75)

	totals, err := f.eng.BetTotals(id)
	if err != nil {
		t.Fatalf("BetTotals: %v", err)
	}
	checkAmount(t, "option 0 total", totals[0], 75)
	checkAmount(t, "option 1 total", totals[1], 0)

	if got := len(f.sink.byType(domain.EventTicketMinted)); got != 1 {
		t.Fatalf("ticket_minted events=%d want=1", got)
	}
}

func TestBuyTicketValidation(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)

	if _, err := f.eng.BuyTicket(alice, id, 5, big.NewInt(10)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad option err=%v want ErrInvalidArgument", err)
	}
	if _, err := f.eng.BuyTicket(alice, id, 0, big.NewInt(0)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero amount err=%v want ErrInvalidArgument", err)
	}
	if _, err := f.eng.BuyTicket(alice, 99, 0, big.NewInt(10)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown project err=%v want ErrNotFound", err)
	}
}

func TestBuyTicketRequiresAllowance(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)

	// Claimed but never approved custody.
	if _, err := f.tok.Claim(bob); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.eng.BuyTicket(bob, id, 0, big.NewInt(10)); !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("err=%v want ErrInsufficientAllowance", err)
	}
}

func TestBuyTicketRejectedAfterFinish(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	f.stake(t, alice, id, 0, 10)

	if err := f.eng.FinishProject(operator, id, 0); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}
	if _, err := f.eng.BuyTicket(alice, id, 0, big.NewInt(10)); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err=%v want ErrInvalidState", err)
	}
}

func TestTransferTicketChangesOwner(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	ticketID := f.stake(t, alice, id, 0, 50)

	if err := f.eng.TransferTicket(alice, ticketID, bob); err != nil {
		t.Fatalf("TransferTicket: %v", err)
	}
	owner, err := f.eng.TicketOwner(ticketID)
	if err != nil {
		t.Fatalf("TicketOwner: %v", err)
	}
	if owner != bob {
		t.Fatalf("owner=%s want bob", owner.Hex())
	}

	tk, err := f.eng.Ticket(ticketID)
	if err != nil {
		t.Fatalf("Ticket: %v", err)
	}
	if tk.OriginalBuyer != alice {
		t.Fatalf("original buyer=%s want alice", tk.OriginalBuyer.Hex())
	}

	if err := f.eng.TransferTicket(alice, ticketID, carol); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stale owner transfer err=%v want ErrUnauthorized", err)
	}
}

func TestTransferTicketDelistsActiveOrder(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	ticketID := f.stake(t, alice, id, 0, 50)

	if err := f.eng.ApproveTicket(alice, ticketID, custody); err != nil {
		t.Fatalf("ApproveTicket: %v", err)
	}
	orderID, err := f.eng.CreateSellOrder(alice, ticketID, big.NewInt(40))
	if err != nil {
		t.Fatalf("CreateSellOrder: %v", err)
	}

	if err := f.eng.TransferTicket(alice, ticketID, bob); err != nil {
		t.Fatalf("TransferTicket: %v", err)
	}

	if got := f.eng.TicketActiveOrder(ticketID); got != 0 {
		t.Fatalf("active order=%d want=0 after transfer", got)
	}
	o, err := f.eng.Order(orderID)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if o.IsActive {
		t.Fatal("order still active after ticket transfer")
	}
	if got := len(f.sink.byType(domain.EventOrderCancelled)); got != 1 {
		t.Fatalf("order_cancelled events=%d want=1", got)
	}
}
