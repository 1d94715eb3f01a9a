package engine

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/betledger/internal/domain"
)

func TestFinishProjectParimutuelPayouts(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	f.fund(t, bob)
	f.fund(t, carol)

	// Winning option 0 carries 30+10, losing option 1 carries 60.
	aliceTicket := f.stake(t, alice, id, 0, 30)
	bobTicket := f.stake(t, bob, id, 0, 10)
	f.stake(t, carol, id, 1, 60)

	supplyBefore := f.totalSupply()

	if err := f.eng.FinishProject(operator, id, 0); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}

	// Pool of 100 split 3:1 across the winning stakes: 75 and 25.
	checkAmount(t, "alice balance", f.tok.BalanceOf(alice), 1000-30+75)
	checkAmount(t, "bob balance", f.tok.BalanceOf(bob), 1000-10+25)
	checkAmount(t, "carol balance", f.tok.BalanceOf(carol), 1000-60)

	// Custody keeps the staked principal; the pool was fully distributed.
	checkAmount(t, "custody balance", f.eng.CustodyBalance(), 100)

	if got := f.totalSupply(); got.Cmp(supplyBefore) != 0 {
		t.Fatalf("total supply=%v want=%v", got, supplyBefore)
	}

	p, err := f.eng.Project(id)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if !p.IsFinished || p.IsActive {
		t.Fatalf("lifecycle finished=%v active=%v want finished inactive", p.IsFinished, p.IsActive)
	}
	if p.WinningOption != 0 {
		t.Fatalf("winning option=%d want=0", p.WinningOption)
	}

	payouts := f.sink.byType(domain.EventPayout)
	if len(payouts) != 2 {
		t.Fatalf("payout events=%d want=2", len(payouts))
	}
	byTicket := map[uint64]*domain.PayoutRecord{}
	for _, e := range payouts {
		if e.Payout == nil {
			t.Fatal("payout event missing typed record")
		}
		byTicket[e.Payout.TicketID] = e.Payout
	}
	checkAmount(t, "alice payout", byTicket[aliceTicket].Amount, 75)
	checkAmount(t, "bob payout", byTicket[bobTicket].Amount, 25)

	finished := f.sink.byType(domain.EventProjectFinished)
	if len(finished) != 1 {
		t.Fatalf("project_finished events=%d want=1", len(finished))
	}
	sum := finished[0].Summary
	if sum == nil {
		t.Fatal("finished event missing settlement summary")
	}
	if sum.ProjectID != id || sum.WinningOption != 0 {
		t.Fatalf("summary project=%d option=%d want %d/0", sum.ProjectID, sum.WinningOption, id)
	}
	checkAmount(t, "summary pool", sum.PrizePool, 100)
	checkAmount(t, "summary winning stake", sum.TotalWinningStake, 40)
}

func TestFinishProjectRoundingRemainderStaysInCustody(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	f.fund(t, bob)
	f.fund(t, carol)

	// Three equal winning stakes: 100/3 = 33 each, remainder 1 stays escrowed.
	f.stake(t, alice, id, 0, 10)
	f.stake(t, bob, id, 0, 10)
	f.stake(t, carol, id, 0, 10)

	if err := f.eng.FinishProject(operator, id, 0); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}

	checkAmount(t, "alice balance", f.tok.BalanceOf(alice), 1000-10+33)
	checkAmount(t, "bob balance", f.tok.BalanceOf(bob), 1000-10+33)
	checkAmount(t, "carol balance", f.tok.BalanceOf(carol), 1000-10+33)
	// 30 staked principal plus the undistributed remainder of 1.
	checkAmount(t, "custody balance", f.eng.CustodyBalance(), 31)
}

func TestFinishProjectZeroWinningStake(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	f.stake(t, alice, id, 1, 40)

	// Nobody backed option 0; the whole pool stays in custody.
	if err := f.eng.FinishProject(operator, id, 0); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}
	checkAmount(t, "alice balance", f.tok.BalanceOf(alice), 960)
	checkAmount(t, "custody balance", f.eng.CustodyBalance(), 140)

	if got := len(f.sink.byType(domain.EventPayout)); got != 0 {
		t.Fatalf("payout events=%d want=0", got)
	}
	finished := f.sink.byType(domain.EventProjectFinished)
	if len(finished) != 1 || finished[0].Summary == nil {
		t.Fatalf("project_finished events=%d want=1 with summary", len(finished))
	}
	checkAmount(t, "summary winning stake", finished[0].Summary.TotalWinningStake, 0)
}

func TestFinishProjectGuards(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	f.stake(t, alice, id, 0, 10)

	if err := f.eng.FinishProject(alice, id, 0); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-operator err=%v want ErrUnauthorized", err)
	}
	if err := f.eng.FinishProject(operator, 99, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown project err=%v want ErrNotFound", err)
	}
	if err := f.eng.FinishProject(operator, id, 7); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad option err=%v want ErrInvalidArgument", err)
	}

	if err := f.eng.FinishProject(operator, id, 0); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}
	if err := f.eng.FinishProject(operator, id, 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double finish err=%v want ErrInvalidState", err)
	}
}

func TestFinishProjectPaysCurrentTicketOwner(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	ticketID := f.stake(t, alice, id, 0, 20)

	// Alice sells her winning position to Bob before settlement.
	if err := f.eng.TransferTicket(alice, ticketID, bob); err != nil {
		t.Fatalf("TransferTicket: %v", err)
	}

	if err := f.eng.FinishProject(operator, id, 0); err != nil {
		t.Fatalf("FinishProject: %v", err)
	}

	// Bob holds the ticket at settlement and collects the whole pool.
	checkAmount(t, "bob balance", f.tok.BalanceOf(bob), 100)
	checkAmount(t, "alice balance", f.tok.BalanceOf(alice), 980)

	payouts := f.sink.byType(domain.EventPayout)
	if len(payouts) != 1 || payouts[0].Payout == nil {
		t.Fatalf("payout events=%d want=1 with record", len(payouts))
	}
	if payouts[0].Payout.Winner != bob {
		t.Fatalf("winner=%s want bob", payouts[0].Payout.Winner.Hex())
	}

	// The original backer keeps provenance but not the payout.
	tk, err := f.eng.Ticket(ticketID)
	if err != nil {
		t.Fatalf("Ticket: %v", err)
	}
	if tk.OriginalBuyer != alice {
		t.Fatalf("original buyer=%s want alice", tk.OriginalBuyer.Hex())
	}
}
