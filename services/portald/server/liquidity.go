package server

import (
	"math/big"
	"net/http"
	"strings"
	"time"

	"portalchain/core"
	"portalchain/native/liquidity"
)

type poolView struct {
	Phase                   string `json:"phase"`
	ReserveSymbol           string `json:"reserveSymbol"`
	BondingSymbol           string `json:"bondingSymbol"`
	Reserve                 string `json:"reserve"`
	FundingBalance          string `json:"fundingBalance"`
	FundingRewardPool       string `json:"fundingRewardPool"`
	FundingRewardsCollected string `json:"fundingRewardsCollected"`
	FundingMaxRewards       string `json:"fundingMaxRewards"`
	Owner                   string `json:"owner"`
	OwnerRemoved            bool   `json:"ownerRemoved"`
	CreatedAt               uint64 `json:"createdAt"`
	ActivatedAt             uint64 `json:"activatedAt,omitempty"`
}

type registrationView struct {
	Portal    string `json:"portal"`
	Asset     string `json:"asset"`
	VaultRef  string `json:"vaultRef"`
	PoolIndex uint64 `json:"poolIndex"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type convertRequest struct {
	Asset       string `json:"asset"`
	Recipient   string `json:"recipient"`
	MinReceived string `json:"minReceived"`
	Deadline    int64  `json:"deadline"`
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(m *core.Modules) (any, error) {
		pool, err := m.Liquidity.Pool()
		if err != nil {
			return nil, err
		}
		reserve, err := m.Liquidity.PortalReserve()
		if err != nil {
			return nil, err
		}
		return poolView{
			Phase:                   pool.Phase.String(),
			ReserveSymbol:           m.Liquidity.ReserveSymbol(),
			BondingSymbol:           pool.BondingSymbol,
			Reserve:                 formatAmount(reserve),
			FundingBalance:          formatAmount(pool.FundingBalance),
			FundingRewardPool:       formatAmount(pool.FundingRewardPool),
			FundingRewardsCollected: formatAmount(pool.FundingRewardsCollected),
			FundingMaxRewards:       formatAmount(pool.FundingMaxRewards),
			Owner:                   pool.Owner.Hex(),
			OwnerRemoved:            pool.OwnerRemoved,
			CreatedAt:               pool.CreatedAt,
			ActivatedAt:             pool.ActivatedAt,
		}, nil
	})
}

func (s *Server) handleBurnValue(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount("amount", r.URL.Query().Get("amount"), false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.view(w, r, func(m *core.Modules) (any, error) {
		value, err := m.Liquidity.BurnValue(amount)
		if err != nil {
			return nil, err
		}
		return amountOf(value), nil
	})
}

func (s *Server) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(m *core.Modules) (any, error) {
		regs, err := m.Liquidity.Registrations()
		if err != nil {
			return nil, err
		}
		out := make([]registrationView, 0, len(regs))
		for _, reg := range regs {
			out = append(out, registrationView{
				Portal:    reg.Portal.Hex(),
				Asset:     reg.Asset,
				VaultRef:  reg.VaultRef.Hex(),
				PoolIndex: reg.PoolIndex,
			})
		}
		return out, nil
	})
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	caller := callerOf(r)
	s.exec(w, r, "liquidity.contribute", func(m *core.Modules) (any, error) {
		minted, err := m.Liquidity.ContributeFunding(caller, amount)
		return amountOf(minted), err
	})
}

func (s *Server) handleWithdrawFunding(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	caller := callerOf(r)
	s.exec(w, r, "liquidity.withdraw", func(m *core.Modules) (any, error) {
		refunded, err := m.Liquidity.WithdrawFunding(caller, amount)
		return amountOf(refunded), err
	})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	s.exec(w, r, "liquidity.activate", func(m *core.Modules) (any, error) {
		if err := m.Liquidity.ActivateLP(caller); err != nil {
			return nil, err
		}
		return map[string]string{"phase": liquidity.PhaseActive.String()}, nil
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller := callerOf(r)
	recipient, err := parseRecipient(req.Recipient, caller)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	minReceived, err := parseAmount("minReceived", req.MinReceived, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	asset := strings.ToUpper(strings.TrimSpace(req.Asset))
	deadline := s.deadline(req.Deadline)
	s.exec(w, r, "liquidity.convert", func(m *core.Modules) (any, error) {
		received, err := m.Liquidity.Convert(caller, asset, recipient, minReceived, deadline)
		return amountOf(received), err
	})
}

func (s *Server) handleBurnBonding(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	caller := callerOf(r)
	s.exec(w, r, "liquidity.burn", func(m *core.Modules) (any, error) {
		paid, err := m.Liquidity.BurnBondingTokens(caller, amount)
		return amountOf(paid), err
	})
}

func (s *Server) handleRemoveOwner(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	s.exec(w, r, "liquidity.remove_owner", func(m *core.Modules) (any, error) {
		if err := m.Liquidity.RemoveOwner(caller); err != nil {
			return nil, err
		}
		return map[string]bool{"ownerRemoved": true}, nil
	})
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (*big.Int, bool) {
	var req amountRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return nil, false
	}
	return amount, true
}

// deadline defaults an omitted deadline to five minutes from now.
func (s *Server) deadline(requested int64) int64 {
	if requested > 0 {
		return requested
	}
	return s.now().Add(5 * time.Minute).Unix()
}
