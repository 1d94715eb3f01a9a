package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/engine"
)

// TokenHandler serves the credit-token endpoints: faucet claims, operator
// minting, transfers, and the approve/allowance surface used before staking.
type TokenHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler over the ledger engine.
func NewTokenHandler(eng *engine.Engine, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		engine: eng,
		logger: logger,
	}
}

type claimRequest struct {
	Address string `json:"address"`
}

// Claim grants the one-time faucet allotment to an address.
// POST /api/token/claim
func (h *TokenHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	holder, err := parseAddress("address", req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	granted, err := h.engine.ClaimTokens(holder)
	if err != nil {
		writeDomainError(w, h.logger, "claim tokens", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"address": holder.Hex(),
		"amount":  domain.AmountString(granted),
	})
}

type mintRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Mint creates new credit tokens. The caller must be the ledger operator.
// POST /api/token/mint
func (h *TokenHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.MintTokens(caller, to, amount); err != nil {
		writeDomainError(w, h.logger, "mint tokens", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"to":     to.Hex(),
		"amount": domain.AmountString(amount),
	})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Transfer moves credit tokens between two accounts.
// POST /api/token/transfer
func (h *TokenHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.TransferTokens(from, to, amount); err != nil {
		writeDomainError(w, h.logger, "transfer tokens", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

type transferFromRequest struct {
	Spender string `json:"spender"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

// TransferFrom moves credit tokens using a previously granted allowance.
// POST /api/token/transfer-from
func (h *TokenHandler) TransferFrom(w http.ResponseWriter, r *http.Request) {
	var req transferFromRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.TransferTokensFrom(spender, from, to, amount); err != nil {
		writeDomainError(w, h.logger, "transfer tokens from", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// Approve sets a spender allowance on the owner's balance. Staking requires
// an allowance for the ledger custody address.
// POST /api/token/approve
func (h *TokenHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.ApproveTokens(owner, spender, amount); err != nil {
		writeDomainError(w, h.logger, "approve tokens", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"owner":   owner.Hex(),
		"spender": spender.Hex(),
		"amount":  domain.AmountString(amount),
	})
}

// Balance returns the credit-token balance and faucet status of an address.
// GET /api/token/balance/{address}
func (h *TokenHandler) Balance(w http.ResponseWriter, r *http.Request) {
	holder, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": holder.Hex(),
		"balance": domain.AmountString(h.engine.TokenBalance(holder)),
		"claimed": h.engine.HasClaimedTokens(holder),
	})
}

// Claimed reports whether an address has already drawn the faucet grant.
// GET /api/token/claimed/{address}
func (h *TokenHandler) Claimed(w http.ResponseWriter, r *http.Request) {
	holder, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": holder.Hex(),
		"claimed": h.engine.HasClaimedTokens(holder),
	})
}

// Allowance returns the remaining allowance spender holds on owner.
// GET /api/token/allowance?owner=0x...&spender=0x...
func (h *TokenHandler) Allowance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner, err := parseAddress("owner", q.Get("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spender, err := parseAddress("spender", q.Get("spender"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"owner":     owner.Hex(),
		"spender":   spender.Hex(),
		"allowance": domain.AmountString(h.engine.TokenAllowance(owner, spender)),
	})
}
