package server

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"portalchain/core"
	"portalchain/native/portal"
)

type portalView struct {
	Asset                  string `json:"asset"`
	Address                string `json:"address"`
	Native                 bool   `json:"native"`
	Decimals               uint8  `json:"decimals"`
	TargetConstant         string `json:"targetConstant"`
	MaxLockDuration        uint64 `json:"maxLockDuration"`
	LockDurationUpdateable bool   `json:"lockDurationUpdateable"`
	CreatedAt              uint64 `json:"createdAt"`
	TotalPrincipalStaked   string `json:"totalPrincipalStaked"`
	EnergySymbol           string `json:"energySymbol"`
	PositionCollection     string `json:"positionCollection"`
}

type accountView struct {
	User                string `json:"user"`
	StakedBalance       string `json:"stakedBalance"`
	PortalEnergy        string `json:"portalEnergy"`
	LastUpdateTime      uint64 `json:"lastUpdateTime"`
	LastMaxLockDuration uint64 `json:"lastMaxLockDuration"`
	MaxStakeDebt        string `json:"maxStakeDebt"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
}

type stakeRequest struct {
	Amount string `json:"amount"`
	Value  string `json:"value"`
}

type tradeRequest struct {
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	MinReceived string `json:"minReceived"`
	Deadline    int64  `json:"deadline"`
}

type recipientRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount,omitempty"`
}

func portalViewOf(engine *portal.Engine, p *portal.Portal) portalView {
	return portalView{
		Asset:                  p.PrincipalSymbol,
		Address:                engine.Address().Hex(),
		Native:                 p.Native,
		Decimals:               p.PrincipalDecimals,
		TargetConstant:         formatAmount(p.TargetConstant),
		MaxLockDuration:        p.MaxLockDuration,
		LockDurationUpdateable: p.LockDurationUpdateable,
		CreatedAt:              p.CreatedAt,
		TotalPrincipalStaked:   formatAmount(p.TotalPrincipalStaked),
		EnergySymbol:           p.EnergySymbol,
		PositionCollection:     p.PositionCollection,
	}
}

func accountViewOf(update *portal.AccountUpdate) accountView {
	return accountView{
		User:                update.User.Hex(),
		StakedBalance:       formatAmount(update.Account.StakedBalance),
		PortalEnergy:        formatAmount(update.Account.PortalEnergy),
		LastUpdateTime:      update.Account.LastUpdateTime,
		LastMaxLockDuration: update.Account.LastMaxLockDuration,
		MaxStakeDebt:        formatAmount(update.MaxStakeDebt),
		AvailableToWithdraw: formatAmount(update.AvailableToWithdraw),
	}
}

// portalExec resolves the {asset} portal and runs fn as a committed
// operation.
func (s *Server) portalExec(w http.ResponseWriter, r *http.Request, op string, fn func(*core.Modules, *portal.Engine) (any, error)) {
	asset := chi.URLParam(r, "asset")
	s.exec(w, r, op, func(m *core.Modules) (any, error) {
		engine, err := m.Portal(asset)
		if err != nil {
			return nil, err
		}
		return fn(m, engine)
	})
}

func (s *Server) portalView(w http.ResponseWriter, r *http.Request, fn func(*portal.Engine) (any, error)) {
	asset := chi.URLParam(r, "asset")
	s.view(w, r, func(m *core.Modules) (any, error) {
		engine, err := m.Portal(asset)
		if err != nil {
			return nil, err
		}
		return fn(engine)
	})
}

func (s *Server) handlePortals(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(m *core.Modules) (any, error) {
		out := make([]portalView, 0)
		for _, asset := range m.Assets() {
			engine, err := m.Portal(asset)
			if err != nil {
				return nil, err
			}
			p, err := engine.Portal()
			if err != nil {
				return nil, err
			}
			out = append(out, portalViewOf(engine, p))
		}
		return out, nil
	})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	s.portalView(w, r, func(engine *portal.Engine) (any, error) {
		p, err := engine.Portal()
		if err != nil {
			return nil, err
		}
		return portalViewOf(engine, p), nil
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	query := r.URL.Query()
	amount, err := parseAmount("amount", query.Get("amount"), true)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	positive := true
	if raw := strings.TrimSpace(query.Get("positive")); raw != "" {
		if positive, err = strconv.ParseBool(raw); err != nil {
			writeBadRequest(w, "positive: "+err.Error())
			return
		}
	}
	s.portalView(w, r, func(engine *portal.Engine) (any, error) {
		update, err := engine.GetUpdateAccount(user, amount, positive)
		if err != nil {
			return nil, err
		}
		return accountViewOf(update), nil
	})
}

func (s *Server) handleForceUnstakeQuote(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.portalView(w, r, func(engine *portal.Engine) (any, error) {
		deficit, err := engine.QuoteForceUnstakeAll(user)
		if err != nil {
			return nil, err
		}
		return amountOf(deficit), nil
	})
}

func (s *Server) handleQuoteBuy(w http.ResponseWriter, r *http.Request) {
	s.handleQuote(w, r, (*portal.Engine).QuoteBuyPortalEnergy)
}

func (s *Server) handleQuoteSell(w http.ResponseWriter, r *http.Request) {
	s.handleQuote(w, r, (*portal.Engine).QuoteSellPortalEnergy)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request, quote func(*portal.Engine, *big.Int) (*big.Int, error)) {
	amount, err := parseAmount("amount", r.URL.Query().Get("amount"), false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.portalView(w, r, func(engine *portal.Engine) (any, error) {
		out, err := quote(engine, amount)
		if err != nil {
			return nil, err
		}
		return amountOf(out), nil
	})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	value, err := parseAmount("value", req.Value, true)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	caller := callerOf(r)
	s.portalExec(w, r, "portal.stake", func(_ *core.Modules, engine *portal.Engine) (any, error) {
		update, err := engine.Stake(caller, amount, value)
		if err != nil {
			return nil, err
		}
		return accountViewOf(update), nil
	})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	caller := callerOf(r)
	s.portalExec(w, r, "portal.unstake", func(_ *core.Modules, engine *portal.Engine) (any, error) {
		update, err := engine.Unstake(caller, amount)
		if err != nil {
			return nil, err
		}
		return accountViewOf(update), nil
	})
}

func (s *Server) handleForceUnstake(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	s.portalExec(w, r, "portal.force_unstake_all", func(_ *core.Modules, engine *portal.Engine) (any, error) {
		burned, err := engine.ForceUnstakeAll(caller)
		return amountOf(burned), err
	})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, "portal.buy_energy", (*portal.Engine).BuyPortalEnergy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, "portal.sell_energy", (*portal.Engine).SellPortalEnergy)
}

type tradeFunc func(e *portal.Engine, caller, recipient ethcommon.Address, amount, minReceived *big.Int, deadline int64) (*big.Int, error)

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, op string, trade tradeFunc) {
	var req tradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller := callerOf(r)
	recipient, err := parseRecipient(req.Recipient, caller)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	minReceived, err := parseAmount("minReceived", req.MinReceived, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	deadline := s.deadline(req.Deadline)
	s.portalExec(w, r, op, func(_ *core.Modules, engine *portal.Engine) (any, error) {
		out, err := trade(engine, caller, recipient, amount, minReceived, deadline)
		return amountOf(out), err
	})
}

func (s *Server) handleMintEnergyToken(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller := callerOf(r)
	recipient, err := parseRecipient(req.Recipient, caller)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.portalExec(w, r, "portal.mint_energy_token", func(_ *core.Modules, engine *portal.Engine) (any, error) {
		minted, err := engine.MintPortalEnergyToken(caller, recipient, amount)
		return amountOf(minted), err
	})
}

func (s *Server) handleBurnEnergyToken(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller := callerOf(r)
	recipient, err := parseRecipient(req.Recipient, caller)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.portalExec(w, r, "portal.burn_energy_token", func(_ *core.Modules, engine *portal.Engine) (any, error) {
		return amountOf(amount), engine.BurnPortalEnergyToken(caller, recipient, amount)
	})
}

func (s *Server) handleMintPosition(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	caller := callerOf(r)
	recipient, err := parseRecipient(req.Recipient, caller)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.portalExec(w, r, "portal.mint_position", func(_ *core.Modules, engine *portal.Engine) (any, error) {
		id, err := engine.MintPosition(caller, recipient)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"id": id}, nil
	})
}

func (s *Server) handleRedeemPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "id: "+err.Error())
		return
	}
	caller := callerOf(r)
	s.portalExec(w, r, "portal.redeem_position", func(_ *core.Modules, engine *portal.Engine) (any, error) {
		update, err := engine.RedeemPosition(caller, id)
		if err != nil {
			return nil, err
		}
		return accountViewOf(update), nil
	})
}

func (s *Server) handleUpdateLockDuration(w http.ResponseWriter, r *http.Request) {
	s.portalExec(w, r, "portal.update_max_lock_duration", func(_ *core.Modules, engine *portal.Engine) (any, error) {
		duration, err := engine.UpdateMaxLockDuration()
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"maxLockDuration": duration}, nil
	})
}

// handleNotifyReward funds the yield vault backing the portal. The caller
// pays the reward in the vault's reward asset.
func (s *Server) handleNotifyReward(w http.ResponseWriter, r *http.Request) {
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	caller := callerOf(r)
	s.portalExec(w, r, "yield.notify_reward", func(m *core.Modules, engine *portal.Engine) (any, error) {
		ref, index, registered, err := m.Liquidity.RegisteredVault(engine.Address(), engine.Asset())
		if err != nil {
			return nil, err
		}
		if !registered {
			return nil, portal.ErrPortalNotRegistered
		}
		return amountOf(amount), m.Yield.NotifyReward(ref, index, caller, amount)
	})
}

func (s *Server) handleCollectProfit(w http.ResponseWriter, r *http.Request) {
	s.portalExec(w, r, "liquidity.collect_profit", func(m *core.Modules, engine *portal.Engine) (any, error) {
		claimed, err := m.Liquidity.CollectPortalProfit(engine.Address())
		return amountOf(claimed), err
	})
}
