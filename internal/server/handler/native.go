package handler

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/engine"
)

// NativeHandler serves the native-currency account endpoints. Order-book
// payments settle against these balances.
type NativeHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewNativeHandler creates a NativeHandler over the ledger engine.
func NewNativeHandler(eng *engine.Engine, logger *slog.Logger) *NativeHandler {
	return &NativeHandler{
		engine: eng,
		logger: logger,
	}
}

type nativeRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Deposit credits native currency to an account.
// POST /api/native/deposit
func (h *NativeHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	holder, amount, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.engine.DepositNative(holder, amount); err != nil {
		writeDomainError(w, h.logger, "deposit native", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"address": holder.Hex(),
		"balance": domain.AmountString(h.engine.NativeBalance(holder)),
	})
}

// Withdraw debits native currency from an account.
// POST /api/native/withdraw
func (h *NativeHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	holder, amount, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.engine.WithdrawNative(holder, amount); err != nil {
		writeDomainError(w, h.logger, "withdraw native", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"address": holder.Hex(),
		"balance": domain.AmountString(h.engine.NativeBalance(holder)),
	})
}

// Balance returns the native-currency balance of an address.
// GET /api/native/balance/{address}
func (h *NativeHandler) Balance(w http.ResponseWriter, r *http.Request) {
	holder, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"address": holder.Hex(),
		"balance": domain.AmountString(h.engine.NativeBalance(holder)),
	})
}

func (h *NativeHandler) decode(w http.ResponseWriter, r *http.Request) (common.Address, *big.Int, bool) {
	var req nativeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, nil, false
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, nil, false
	}
	amt, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return common.Address{}, nil, false
	}
	return addr, amt, true
}
