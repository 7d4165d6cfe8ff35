package portal

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	nativecommon "portalchain/native/common"
)

// CreateEnergyToken creates the transferable energy token with the portal as
// its mint authority. It can only run once.
func (e *Engine) CreateEnergyToken() error {
	p, err := e.loadPortal()
	if err != nil {
		return err
	}
	if p.EnergySymbol != "" {
		return ErrEnergyTokenExists
	}
	p.EnergySymbol = e.params.EnergySymbol
	if err := e.state.putPortal(p); err != nil {
		return err
	}
	if err := e.bank.CreateToken(p.EnergySymbol, "Portal Energy "+p.PrincipalSymbol, 18, e.address); err != nil {
		return err
	}
	e.emit(resourceCreatedEvent(EventTypeEnergyTokenCreated, p.PrincipalSymbol, p.EnergySymbol))
	return nil
}

// energyTokensFor applies the LP protection haircut to an energy amount.
func energyTokensFor(amount *big.Int, protectionBps uint64) (*big.Int, error) {
	return nativecommon.MulDiv(amount, new(big.Int).SetUint64(10_000-protectionBps), big.NewInt(10_000))
}

// MintPortalEnergyToken converts amount of caller's energy into energy
// tokens for recipient, less the LP protection share.
func (e *Engine) MintPortalEnergyToken(caller, recipient ethcommon.Address, amount *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if p.EnergySymbol == "" {
		return nil, ErrEnergyTokenNotCreated
	}
	if !nativecommon.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	if recipient == (ethcommon.Address{}) {
		return nil, ErrInvalidAddress
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
	minted, err := energyTokensFor(amount, e.params.LPProtectionBps)
	if err != nil {
		return nil, err
	}
	if minted.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	update.Account.PortalEnergy = new(big.Int).Sub(update.Account.PortalEnergy, amount)
	if err := e.state.putAccount(caller, update.Account); err != nil {
		return nil, err
	}
	if err := e.bank.Mint(p.EnergySymbol, e.address, recipient, minted); err != nil {
		return nil, err
	}
	e.emit(tradeEvent(EventTypeEnergyTokenMinted, p.PrincipalSymbol, caller, recipient, amount, minted))
	return minted, nil
}

// BurnPortalEnergyToken destroys amount of caller's energy tokens and
// credits the same amount of energy to recipient.
func (e *Engine) BurnPortalEnergyToken(caller, recipient ethcommon.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	p, err := e.loadPortal()
	if err != nil {
		return err
	}
	if p.EnergySymbol == "" {
		return ErrEnergyTokenNotCreated
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if recipient == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	held, err := e.bank.BalanceOf(p.EnergySymbol, caller)
	if err != nil {
		return err
	}
	if held.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	current, _, err := e.state.account(recipient)
	if err != nil {
		return err
	}
	update, err := e.update(p, recipient, current, nil, true)
	if err != nil {
		return err
	}
	energy, err := nativecommon.Add(update.Account.PortalEnergy, amount)
	if err != nil {
		return err
	}
	update.Account.PortalEnergy = energy
	if err := e.state.putAccount(recipient, update.Account); err != nil {
		return err
	}
	if err := e.bank.Burn(p.EnergySymbol, caller, amount); err != nil {
		return err
	}
	e.emit(tradeEvent(EventTypeEnergyTokenBurned, p.PrincipalSymbol, caller, recipient, amount, amount))
	return nil
}
