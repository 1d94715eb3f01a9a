package engine

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// listTicket mints a ticket for seller, approves custody as ticket spender,
// and lists it at the given price.
func (f *fixture) listTicket(t *testing.T, seller common.Address, projectID uint64, price int64) (ticketID, orderID uint64) {
	t.Helper()
	ticketID = f.stake(t, seller, projectID, 0, 20)
	if err := f.eng.ApproveTicket(seller, ticketID, custody); err != nil {
		t.Fatalf("ApproveTicket: %v", err)
	}
	orderID, err := f.eng.CreateSellOrder(seller, ticketID, big.NewInt(price))
	if err != nil {
		t.Fatalf("CreateSellOrder: %v", err)
	}
	return ticketID, orderID
}

func TestCreateSellOrderRequiresEscrowApproval(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	ticketID := f.stake(t, alice, id, 0, 20)

	if _, err := f.eng.CreateSellOrder(alice, ticketID, big.NewInt(50)); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("unapproved err=%v want ErrInvalidState", err)
	}

	// Approving a third party is not enough; custody must hold the approval.
	if err := f.eng.ApproveTicket(alice, ticketID, bob); err != nil {
		t.Fatalf("ApproveTicket: %v", err)
	}
	if _, err := f.eng.CreateSellOrder(alice, ticketID, big.NewInt(50)); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("wrong spender err=%v want ErrInvalidState", err)
	}

	if err := f.eng.ApproveTicket(alice, ticketID, custody); err != nil {
		t.Fatalf("ApproveTicket custody: %v", err)
	}
	orderID, err := f.eng.CreateSellOrder(alice, ticketID, big.NewInt(50))
	if err != nil {
		t.Fatalf("CreateSellOrder: %v", err)
	}
	if orderID != 1 {
		t.Fatalf("order id=%d want=1", orderID)
	}
}

func TestCreateSellOrderValidation(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	f.fund(t, bob)
	ticketID := f.stake(t, alice, id, 0, 20)
	if err := f.eng.ApproveTicket(alice, ticketID, custody); err != nil {
		t.Fatalf("ApproveTicket: %v", err)
	}

	if _, err := f.eng.CreateSellOrder(alice, ticketID, big.NewInt(0)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero price err=%v want ErrInvalidArgument", err)
	}
	if _, err := f.eng.CreateSellOrder(bob, ticketID, big.NewInt(50)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-owner err=%v want ErrUnauthorized", err)
	}
	if _, err := f.eng.CreateSellOrder(alice, 99, big.NewInt(50)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown ticket err=%v want ErrNotFound", err)
	}
}

func TestCreateSellOrderOnePerTicket(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	ticketID, orderID := f.listTicket(t, alice, id, 50)

	if _, err := f.eng.CreateSellOrder(alice, ticketID, big.NewInt(60)); !errors.Is(err, domain.ErrAlreadyListed) {
		t.Fatalf("second listing err=%v want ErrAlreadyListed", err)
	}

	// Cancelling frees the ticket for a new listing.
	if err := f.eng.CancelSellOrder(alice, orderID); err != nil {
		t.Fatalf("CancelSellOrder: %v", err)
	}
	second, err := f.eng.CreateSellOrder(alice, ticketID, big.NewInt(60))
	if err != nil {
		t.Fatalf("relist: %v", err)
	}
	if second == orderID {
		t.Fatalf("relist reused order id %d", orderID)
	}
	if got := f.eng.TicketActiveOrder(ticketID); got != second {
		t.Fatalf("active order=%d want=%d", got, second)
	}
}

func TestCancelSellOrderGuards(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	f.fund(t, bob)
	_, orderID := f.listTicket(t, alice, id, 50)

	if err := f.eng.CancelSellOrder(bob, orderID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-seller cancel err=%v want ErrUnauthorized", err)
	}
	if err := f.eng.CancelSellOrder(alice, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown order err=%v want ErrNotFound", err)
	}
	if err := f.eng.CancelSellOrder(alice, orderID); err != nil {
		t.Fatalf("CancelSellOrder: %v", err)
	}
	if err := f.eng.CancelSellOrder(alice, orderID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double cancel err=%v want ErrInvalidState", err)
	}
}

func TestBuyFromOrderSettlesTicketAndNative(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	ticketID, orderID := f.listTicket(t, alice, id, 50)

	if err := f.eng.DepositNative(bob, big.NewInt(80)); err != nil {
		t.Fatalf("DepositNative: %v", err)
	}
	if err := f.eng.BuyFromOrder(bob, orderID, big.NewInt(50)); err != nil {
		t.Fatalf("BuyFromOrder: %v", err)
	}

	owner, err := f.eng.TicketOwner(ticketID)
	if err != nil {
		t.Fatalf("TicketOwner: %v", err)
	}
	if owner != bob {
		t.Fatalf("owner=%s want bob", owner.Hex())
	}

	checkAmount(t, "bob native", f.eng.NativeBalance(bob), 30)
	checkAmount(t, "alice native", f.eng.NativeBalance(alice), 50)

	// Escrow approval is consumed by the registry transfer.
	if spender, err := f.eng.TicketApproved(ticketID); err != nil {
		t.Fatalf("TicketApproved: %v", err)
	} else if spender != (common.Address{}) {
		t.Fatalf("approval=%s want cleared", spender.Hex())
	}

	o, err := f.eng.Order(orderID)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if o.IsActive {
		t.Fatal("order still active after fill")
	}
	if got := f.eng.TicketActiveOrder(ticketID); got != 0 {
		t.Fatalf("active order=%d want=0 after fill", got)
	}
	if got := len(f.sink.byType(domain.EventOrderFilled)); got != 1 {
		t.Fatalf("order_filled events=%d want=1", got)
	}
}

func TestBuyFromOrderExactPrice(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	_, orderID := f.listTicket(t, alice, id, 50)

	if err := f.eng.DepositNative(bob, big.NewInt(200)); err != nil {
		t.Fatalf("DepositNative: %v", err)
	}
	for _, payment := range []int64{49, 51} {
		if err := f.eng.BuyFromOrder(bob, orderID, big.NewInt(payment)); !errors.Is(err, domain.ErrPriceMismatch) {
			t.Fatalf("payment %d err=%v want ErrPriceMismatch", payment, err)
		}
	}
}

func TestBuyFromOrderInsufficientNative(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	_, orderID := f.listTicket(t, alice, id, 50)

	if err := f.eng.DepositNative(bob, big.NewInt(10)); err != nil {
		t.Fatalf("DepositNative: %v", err)
	}
	if err := f.eng.BuyFromOrder(bob, orderID, big.NewInt(50)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err=%v want ErrInsufficientBalance", err)
	}

	// Nothing moved on the failed fill.
	checkAmount(t, "bob native", f.eng.NativeBalance(bob), 10)
	o, err := f.eng.Order(orderID)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if !o.IsActive {
		t.Fatal("order deactivated by failed fill")
	}
}

func TestBuyFromOrderCancelledOrder(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	f.fund(t, alice)
	_, orderID := f.listTicket(t, alice, id, 50)

	if err := f.eng.CancelSellOrder(alice, orderID); err != nil {
		t.Fatalf("CancelSellOrder: %v", err)
	}
	if err := f.eng.DepositNative(bob, big.NewInt(100)); err != nil {
		t.Fatalf("DepositNative: %v", err)
	}
	if err := f.eng.BuyFromOrder(bob, orderID, big.NewInt(50)); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err=%v want ErrInvalidState", err)
	}
}

func TestActiveSellOrdersByProject(t *testing.T) {
	f := newFixture(t)
	id := f.createProject(t, 100)
	other := f.createProject(t, 100)
	f.fund(t, alice)
	f.fund(t, bob)

	_, aliceOrder := f.listTicket(t, alice, id, 40)
	_, bobOrder := f.listTicket(t, bob, other, 60)

	orders := f.eng.ActiveSellOrders(id)
	if len(orders) != 1 || orders[0].ID != aliceOrder {
		t.Fatalf("orders for project %d = %+v want single order %d", id, orders, aliceOrder)
	}

	if err := f.eng.CancelSellOrder(bob, bobOrder); err != nil {
		t.Fatalf("CancelSellOrder: %v", err)
	}
	if got := f.eng.ActiveSellOrders(other); len(got) != 0 {
		t.Fatalf("orders for project %d = %d want=0", other, len(got))
	}
}

func TestNativeDepositWithdraw(t *testing.T) {
	f := newFixture(t)

	if err := f.eng.DepositNative(alice, big.NewInt(0)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero deposit err=%v want ErrInvalidArgument", err)
	}
	if err := f.eng.DepositNative(alice, big.NewInt(100)); err != nil {
		t.Fatalf("DepositNative: %v", err)
	}
	if err := f.eng.WithdrawNative(alice, big.NewInt(150)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("overdraw err=%v want ErrInsufficientBalance", err)
	}
	if err := f.eng.WithdrawNative(alice, big.NewInt(40)); err != nil {
		t.Fatalf("WithdrawNative: %v", err)
	}
	checkAmount(t, "alice native", f.eng.NativeBalance(alice), 60)
}
