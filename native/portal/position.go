package portal

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	nativecommon "portalchain/native/common"
)

// EncodeSnapshot serialises an account into a position payload.
func EncodeSnapshot(a *Account) ([]byte, error) {
	return rlp.EncodeToBytes(&Snapshot{
		StakedBalance:       nativecommon.Clone(a.StakedBalance),
		PortalEnergy:        nativecommon.Clone(a.PortalEnergy),
		LastUpdateTime:      a.LastUpdateTime,
		LastMaxLockDuration: a.LastMaxLockDuration,
	})
}

// DecodeSnapshot restores the account carried by a position payload.
func DecodeSnapshot(payload []byte) (*Account, error) {
	var snap Snapshot
	if err := rlp.DecodeBytes(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPositionSnapshot, err)
	}
	a := &Account{
		StakedBalance:       snap.StakedBalance,
		PortalEnergy:        snap.PortalEnergy,
		LastUpdateTime:      snap.LastUpdateTime,
		LastMaxLockDuration: snap.LastMaxLockDuration,
	}
	a.ensureDefaults()
	return a, nil
}

// CreatePositionCollection creates the registry collection that carries
// serialised accounts. It can only run once.
func (e *Engine) CreatePositionCollection() error {
	p, err := e.loadPortal()
	if err != nil {
		return err
	}
	if e.registry == nil {
		return errNilState
	}
	if p.PositionCollection != "" {
		return ErrCollectionExists
	}
	p.PositionCollection = e.params.PositionCollection
	if err := e.state.putPortal(p); err != nil {
		return err
	}
	if err := e.registry.CreateCollection(p.PositionCollection, e.address); err != nil {
		return err
	}
	e.emit(resourceCreatedEvent(EventTypeCollectionCreated, p.PrincipalSymbol, p.PositionCollection))
	return nil
}

// MintPosition serialises caller's whole account into a position record
// owned by recipient and clears the account. The staked principal stays
// with the yield source.
func (e *Engine) MintPosition(caller, recipient ethcommon.Address) (uint64, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	p, err := e.loadPortal()
	if err != nil {
		return 0, err
	}
	if p.PositionCollection == "" || e.registry == nil {
		return 0, ErrCollectionNotCreated
	}
	if recipient == (ethcommon.Address{}) {
		return 0, ErrInvalidAddress
	}
	current, exists, err := e.state.account(caller)
	if err != nil {
		return 0, err
	}
	if !exists || current.Empty() {
		return 0, ErrEmptyAccount
	}
	update, err := e.update(p, caller, current, nil, true)
	if err != nil {
		return 0, err
	}
	payload, err := EncodeSnapshot(update.Account)
	if err != nil {
		return 0, err
	}
	if err := e.state.putAccount(caller, &Account{}); err != nil {
		return 0, err
	}
	id, err := e.registry.Mint(p.PositionCollection, e.address, recipient, payload)
	if err != nil {
		return 0, err
	}
	e.emit(positionRecordEvent(EventTypePositionMinted, p.PrincipalSymbol, recipient, id, &Snapshot{
		StakedBalance: update.Account.StakedBalance,
		PortalEnergy:  update.Account.PortalEnergy,
	}))
	return id, nil
}

// RedeemPosition burns position id held by caller and merges the carried
// account into caller's account. Stakes and energy are summed; the snapshot
// accrues for the time it spent in the registry before the merge.
func (e *Engine) RedeemPosition(caller ethcommon.Address, id uint64) (*AccountUpdate, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if p.PositionCollection == "" || e.registry == nil {
		return nil, ErrCollectionNotCreated
	}
	owner, err := e.registry.OwnerOf(p.PositionCollection, id)
	if err != nil {
		return nil, err
	}
	if owner != caller {
		return nil, ErrNotPositionOwner
	}
	payload, err := e.registry.Burn(p.PositionCollection, e.address, id)
	if err != nil {
		return nil, err
	}
	carried, err := DecodeSnapshot(payload)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := accrue(p, carried, now); err != nil {
		return nil, err
	}
	current, _, err := e.state.account(caller)
	if err != nil {
		return nil, err
	}
	update, err := e.update(p, caller, current, nil, true)
	if err != nil {
		return nil, err
	}
	staked, err := nativecommon.Add(update.Account.StakedBalance, carried.StakedBalance)
	if err != nil {
		return nil, err
	}
	energy, err := nativecommon.Add(update.Account.PortalEnergy, carried.PortalEnergy)
	if err != nil {
		return nil, err
	}
	update.Account.StakedBalance = staked
	update.Account.PortalEnergy = energy
	maxStakeDebt, available, err := limits(p, update.Account)
	if err != nil {
		return nil, err
	}
	update.MaxStakeDebt = maxStakeDebt
	update.AvailableToWithdraw = available
	if err := e.state.putAccount(caller, update.Account); err != nil {
		return nil, err
	}
	e.emit(positionRecordEvent(EventTypePositionRedeemed, p.PrincipalSymbol, caller, id, &Snapshot{
		StakedBalance: carried.StakedBalance,
		PortalEnergy:  carried.PortalEnergy,
	}))
	return update, nil
}
