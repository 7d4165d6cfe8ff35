package portal

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	nativecommon "portalchain/native/common"
)

// reserves returns the two sides of the energy curve: the reserve asset held
// by the liquidity pool and the energy side derived from the target
// constant. Either side being empty fails with ErrDivisionByZero.
func (e *Engine) reserves(p *Portal) (reserve, energy *big.Int, err error) {
	if e.liquidity == nil {
		return nil, nil, errNilState
	}
	reserve, err = e.liquidity.PortalReserve()
	if err != nil {
		return nil, nil, err
	}
	if reserve.Sign() == 0 {
		return nil, nil, nativecommon.ErrDivisionByZero
	}
	energy, err = nativecommon.Div(p.TargetConstant, reserve)
	if err != nil {
		return nil, nil, err
	}
	if energy.Sign() == 0 {
		return nil, nil, nativecommon.ErrDivisionByZero
	}
	return reserve, energy, nil
}

func (e *Engine) quoteBuy(p *Portal, amount *big.Int) (*big.Int, error) {
	reserve, energy, err := e.reserves(p)
	if err != nil {
		return nil, err
	}
	denominator, err := nativecommon.Add(reserve, amount)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(amount, energy, denominator)
}

func (e *Engine) quoteSell(p *Portal, amount *big.Int) (*big.Int, error) {
	reserve, energy, err := e.reserves(p)
	if err != nil {
		return nil, err
	}
	denominator, err := nativecommon.Add(energy, amount)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(amount, reserve, denominator)
}

// QuoteBuyPortalEnergy returns the energy received for amount of the reserve
// asset.
func (e *Engine) QuoteBuyPortalEnergy(amount *big.Int) (*big.Int, error) {
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if !nativecommon.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	return e.quoteBuy(p, amount)
}

// QuoteSellPortalEnergy returns the reserve asset received for amount of
// energy.
func (e *Engine) QuoteSellPortalEnergy(amount *big.Int) (*big.Int, error) {
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if !nativecommon.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	return e.quoteSell(p, amount)
}

func (e *Engine) validateTrade(caller, recipient ethcommon.Address, amount, minReceived *big.Int, deadline int64) error {
	if !nativecommon.IsPositive(amount) || !nativecommon.IsPositive(minReceived) {
		return ErrInvalidAmount
	}
	if caller == (ethcommon.Address{}) || recipient == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	return e.checkDeadline(deadline)
}

// BuyPortalEnergy spends amount of the reserve asset from caller and credits
// the energy bought to recipient's account.
func (e *Engine) BuyPortalEnergy(caller, recipient ethcommon.Address, amount, minReceived *big.Int, deadline int64) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if _, _, err := e.registration(); err != nil {
		return nil, err
	}
	if err := e.validateTrade(caller, recipient, amount, minReceived, deadline); err != nil {
		return nil, err
	}
	out, err := e.quoteBuy(p, amount)
	if err != nil {
		return nil, err
	}
	if out.Cmp(minReceived) < 0 {
		return nil, ErrInvalidOutput
	}
	current, _, err := e.state.account(recipient)
	if err != nil {
		return nil, err
	}
	update, err := e.update(p, recipient, current, nil, true)
	if err != nil {
		return nil, err
	}
	energy, err := nativecommon.Add(update.Account.PortalEnergy, out)
	if err != nil {
		return nil, err
	}
	update.Account.PortalEnergy = energy
	if err := e.state.putAccount(recipient, update.Account); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.liquidity.ReserveSymbol(), caller, e.liquidity.Address(), amount); err != nil {
		return nil, err
	}
	e.emit(tradeEvent(EventTypeEnergyBought, p.PrincipalSymbol, caller, recipient, amount, out))
	return out, nil
}

// SellPortalEnergy debits amount of energy from caller and pays the reserve
// asset bought to recipient from the liquidity pool.
func (e *Engine) SellPortalEnergy(caller, recipient ethcommon.Address, amount, minReceived *big.Int, deadline int64) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if _, _, err := e.registration(); err != nil {
		return nil, err
	}
	if err := e.validateTrade(caller, recipient, amount, minReceived, deadline); err != nil {
		return nil, err
	}
	current, exists, err := e.state.account(caller)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrEmptyAccount
	}
	update, err := e.update(p, caller, current, nil, true)
	if err != nil {
		return nil, err
	}
	if update.Account.PortalEnergy.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	out, err := e.quoteSell(p, amount)
	if err != nil {
		return nil, err
	}
	if out.Cmp(minReceived) < 0 {
		return nil, ErrInvalidOutput
	}
	update.Account.PortalEnergy = new(big.Int).Sub(update.Account.PortalEnergy, amount)
	if err := e.state.putAccount(caller, update.Account); err != nil {
		return nil, err
	}
	if err := e.liquidity.SendToPortalUser(e.address, recipient, out); err != nil {
		return nil, err
	}
	e.emit(tradeEvent(EventTypeEnergySold, p.PrincipalSymbol, caller, recipient, amount, out))
	return out, nil
}
