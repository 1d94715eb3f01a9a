package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// Ticket returns a copy of the ticket record.
func (e *Engine) Ticket(ticketID uint64) (domain.Ticket, error) {
	return e.registry.TicketInfo(ticketID)
}

// TicketOwner returns the current owner of a ticket.
func (e *Engine) TicketOwner(ticketID uint64) (common.Address, error) {
	return e.registry.OwnerOf(ticketID)
}

// TicketsByOwner returns copies of all tickets held by owner.
func (e *Engine) TicketsByOwner(owner common.Address) []domain.Ticket {
	return e.registry.TicketsByOwner(owner)
}

// TicketsByProject returns copies of all tickets minted for a project.
func (e *Engine) TicketsByProject(projectID uint64) []domain.Ticket {
	return e.registry.TicketsByProject(projectID)
}

// ApproveTicket sets the single transfer approval on a ticket. Listing a
// ticket for sale requires approving the custody account first.
func (e *Engine) ApproveTicket(caller common.Address, ticketID uint64, spender common.Address) error {
	return e.registry.Approve(caller, ticketID, spender)
}

// TicketApproved returns the address approved to transfer a ticket, or the
// zero address when none is set.
func (e *Engine) TicketApproved(ticketID uint64) (common.Address, error) {
	return e.registry.GetApproved(ticketID)
}
