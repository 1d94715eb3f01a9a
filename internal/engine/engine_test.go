package engine

import (
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/registry"
	"github.com/alanyoungcy/betledger/internal/token"
)

var (
	operator = common.HexToAddress("0x0000000000000000000000000000000000000001")
	custody  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// collectSink records emitted events for assertions.
type collectSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *collectSink) Record(events ...domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *collectSink) byType(t domain.EventType) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fixture bundles an engine with its underlying ledgers for direct
// balance manipulation in tests.
type fixture struct {
	eng  *Engine
	tok  *token.Ledger
	reg  *registry.Registry
	sink *collectSink
}

// newFixture builds an engine with a 1000-token faucet grant, custody
// enabled as ticket minter, and the operator seeded with 1,000,000 tokens.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tok := token.New(operator, big.NewInt(1000), logger)
	reg := registry.New(operator, logger)
	if err := reg.SetGlobalMinter(operator, custody, true); err != nil {
		t.Fatalf("SetGlobalMinter: %v", err)
	}

	sink := &collectSink{}
	eng := New(operator, custody, tok, reg, sink, logger)

	if err := tok.Mint(operator, operator, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed operator: %v", err)
	}
	return &fixture{eng: eng, tok: tok, reg: reg, sink: sink}
}

// createProject funds and opens a project with the given prize pool and two
// options ("yes", "no") unless options are supplied.
func (f *fixture) createProject(t *testing.T, pool int64, options ...string) uint64 {
	t.Helper()
	if len(options) == 0 {
		options = []string{"yes", "no"}
	}
	if err := f.tok.Approve(operator, custody, big.NewInt(pool)); err != nil {
		t.Fatalf("approve pool: %v", err)
	}
	id, err := f.eng.CreateProject(operator, "match", "test market", options, big.NewInt(pool), time.Hour)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return id
}

// fund claims the faucet for holder and approves custody for the full grant.
func (f *fixture) fund(t *testing.T, holder common.Address) {
	t.Helper()
	if _, err := f.tok.Claim(holder); err != nil {
		t.Fatalf("claim for %s: %v", holder.Hex(), err)
	}
	if err := f.tok.Approve(holder, custody, big.NewInt(1000)); err != nil {
		t.Fatalf("approve for %s: %v", holder.Hex(), err)
	}
}

// stake buys a ticket for holder on the given project option.
func (f *fixture) stake(t *testing.T, holder common.Address, projectID uint64, optionID int, amount int64) uint64 {
	t.Helper()
	id, err := f.eng.BuyTicket(holder, projectID, optionID, big.NewInt(amount))
	if err != nil {
		t.Fatalf("BuyTicket(%s, %d): %v", holder.Hex(), amount, err)
	}
	return id
}

func checkAmount(t *testing.T, what string, got *big.Int, want int64) {
	t.Helper()
	if got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s=%v want=%d", what, got, want)
	}
}

// totalSupply sums every balance the fixture knows about plus custody, to
// assert token conservation across operations.
func (f *fixture) totalSupply() *big.Int {
	sum := new(big.Int)
	for _, a := range []common.Address{operator, custody, alice, bob, carol} {
		sum.Add(sum, f.tok.BalanceOf(a))
	}
	return sum
}
