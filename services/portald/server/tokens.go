package server

import (
	"fmt"
	"net/http"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"portalchain/core"
	"portalchain/native/token"
)

type tokenView struct {
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	s.view(w, r, func(m *core.Modules) (any, error) {
		decimals, err := m.Ledger.Decimals(symbol)
		if err != nil {
			return nil, err
		}
		supply, err := m.Ledger.TotalSupply(symbol)
		if err != nil {
			return nil, err
		}
		return tokenView{Symbol: symbol, Decimals: decimals, TotalSupply: formatAmount(supply)}, nil
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.view(w, r, func(m *core.Modules) (any, error) {
		balance, err := m.Ledger.BalanceOf(symbol, addr)
		if err != nil {
			return nil, err
		}
		return amountOf(balance), nil
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	spender, err := parseAddress("spender", chi.URLParam(r, "spender"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.view(w, r, func(m *core.Modules) (any, error) {
		allowance, err := m.Ledger.Allowance(symbol, owner, spender)
		if err != nil {
			return nil, err
		}
		return amountOf(allowance), nil
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	symbol, caller := symbolParam(r), callerOf(r)
	s.exec(w, r, "token.transfer", func(m *core.Modules) (any, error) {
		return amountOf(amount), m.Ledger.Transfer(symbol, caller, to, amount)
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	symbol, caller := symbolParam(r), callerOf(r)
	s.exec(w, r, "token.approve", func(m *core.Modules) (any, error) {
		spender, err := s.resolveSpender(m, req.Spender)
		if err != nil {
			return nil, err
		}
		return amountOf(amount), m.Ledger.Approve(symbol, caller, spender, amount)
	})
}

// resolveSpender accepts either an address or a portal asset symbol, which
// resolves to that portal's custody address.
func (s *Server) resolveSpender(m *core.Modules, raw string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if engine, err := m.Portal(trimmed); err == nil {
		return engine.Address(), nil
	}
	addr, err := parseAddress("spender", trimmed)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("%w: %v", token.ErrInvalidAddress, err)
	}
	return addr, nil
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	symbol, caller := symbolParam(r), callerOf(r)
	s.exec(w, r, "token.mint", func(m *core.Modules) (any, error) {
		return amountOf(amount), m.Ledger.Mint(symbol, caller, to, amount)
	})
}
