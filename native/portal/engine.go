package portal

import (
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/events"
	"portalchain/core/types"
	nativecommon "portalchain/native/common"
)

var (
	errNilState                = nativecommon.NewError(nativecommon.KindState, "portal engine: state not configured")
	ErrNotInitialized          = nativecommon.NewError(nativecommon.KindState, "portal engine: portal not initialised")
	ErrAlreadyInitialized      = nativecommon.NewError(nativecommon.KindState, "portal engine: portal already initialised")
	ErrInvalidAmount           = nativecommon.NewError(nativecommon.KindInvalidAmount, "portal engine: amount must be positive")
	ErrInvalidAddress          = nativecommon.NewError(nativecommon.KindInvalidAddress, "portal engine: address must not be zero")
	ErrAttachedValueMismatch   = nativecommon.NewError(nativecommon.KindInvalidAmount, "portal engine: attached value must equal amount")
	ErrNativeTokenNotAllowed   = nativecommon.NewError(nativecommon.KindNativeTokenNotAllowed, "portal engine: value attached to token portal call")
	ErrDeadlineExpired         = nativecommon.NewError(nativecommon.KindDeadlineExpired, "portal engine: deadline expired")
	ErrInsufficientBalance     = nativecommon.NewError(nativecommon.KindInsufficientBalance, "portal engine: insufficient energy")
	ErrInsufficientToWithdraw  = nativecommon.NewError(nativecommon.KindInsufficientToWithdraw, "portal engine: amount exceeds available to withdraw")
	ErrInvalidOutput           = nativecommon.NewError(nativecommon.KindInvalidOutput, "portal engine: output below minimum received")
	ErrPortalNotRegistered     = nativecommon.NewError(nativecommon.KindPortalNotRegistered, "portal engine: portal not registered with liquidity")
	ErrEmptyAccount            = nativecommon.NewError(nativecommon.KindEmptyAccount, "portal engine: account is empty")
	ErrEnergyTokenExists       = nativecommon.NewError(nativecommon.KindTokenExists, "portal engine: energy token already created")
	ErrEnergyTokenNotCreated   = nativecommon.NewError(nativecommon.KindTokenNotCreated, "portal engine: energy token not created")
	ErrCollectionExists        = nativecommon.NewError(nativecommon.KindTokenExists, "portal engine: position collection already created")
	ErrCollectionNotCreated    = nativecommon.NewError(nativecommon.KindTokenNotCreated, "portal engine: position collection not created")
	ErrNotPositionOwner        = nativecommon.NewError(nativecommon.KindNotOwner, "portal engine: caller does not own the position")
	ErrDurationLocked          = nativecommon.NewError(nativecommon.KindDurationLocked, "portal engine: max lock duration is final")
	ErrInvalidPositionSnapshot = nativecommon.NewError(nativecommon.KindState, "portal engine: malformed position snapshot")
)

const moduleName = "portal"

// Bank is the fungible ledger the engine moves principal, reserve and energy
// tokens through.
type Bank interface {
	CreateToken(symbol, name string, decimals uint8, authority ethcommon.Address) error
	Decimals(symbol string) (uint8, error)
	Mint(symbol string, authority, to ethcommon.Address, amount *big.Int) error
	Burn(symbol string, from ethcommon.Address, amount *big.Int) error
	BurnFrom(symbol string, spender, from ethcommon.Address, amount *big.Int) error
	Transfer(symbol string, from, to ethcommon.Address, amount *big.Int) error
	BalanceOf(symbol string, addr ethcommon.Address) (*big.Int, error)
}

// PositionRegistry issues the records that carry serialised accounts.
type PositionRegistry interface {
	CreateCollection(name string, issuer ethcommon.Address) error
	Mint(collection string, issuer, owner ethcommon.Address, payload []byte) (uint64, error)
	Burn(collection string, issuer ethcommon.Address, id uint64) ([]byte, error)
	OwnerOf(collection string, id uint64) (ethcommon.Address, error)
}

// YieldSource holds the staked principal.
type YieldSource interface {
	Deposit(ref ethcommon.Address, poolIndex uint64, depositor ethcommon.Address, amount *big.Int) error
	Withdraw(ref ethcommon.Address, poolIndex uint64, depositor, recipient ethcommon.Address, amount *big.Int) error
}

// Liquidity is the narrow view of the shared liquidity pool a portal needs.
type Liquidity interface {
	Address() ethcommon.Address
	ReserveSymbol() string
	PortalReserve() (*big.Int, error)
	SendToPortalUser(portal, recipient ethcommon.Address, amount *big.Int) error
	RegisteredVault(portal ethcommon.Address, asset string) (ethcommon.Address, uint64, bool, error)
}

// Engine manages stake and energy accounts for one principal asset and runs
// the energy curve against the shared liquidity pool.
type Engine struct {
	state     kvState
	params    Params
	address   ethcommon.Address
	bank      Bank
	registry  PositionRegistry
	yield     YieldSource
	liquidity Liquidity
	emitter   events.Emitter
	nowFn     func() int64
	pauses    nativecommon.PauseView
}

// NewEngine constructs a portal engine for params.PrincipalSymbol.
func NewEngine(params Params) *Engine {
	params.PrincipalSymbol = normalize(params.PrincipalSymbol)
	params.EnergySymbol = normalize(params.EnergySymbol)
	return &Engine{
		params:  params,
		address: ModuleAddress(params.PrincipalSymbol),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// ModuleAddress returns the custody address of the portal for symbol.
func ModuleAddress(symbol string) ethcommon.Address {
	return nativecommon.ModuleAddress(moduleName + "/" + normalize(symbol))
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(store KVStore) {
	e.state = kvState{store: store, symbol: e.params.PrincipalSymbol}
}

// SetBank wires the fungible ledger.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetPositionRegistry wires the position registry.
func (e *Engine) SetPositionRegistry(registry PositionRegistry) { e.registry = registry }

// SetYieldSource wires the venue holding staked principal.
func (e *Engine) SetYieldSource(source YieldSource) { e.yield = source }

// SetLiquidity wires the shared liquidity pool.
func (e *Engine) SetLiquidity(l Liquidity) { e.liquidity = l }

// SetPauses configures the pause view consulted by state-changing calls.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for accrual and deadlines.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the portal's custody address.
func (e *Engine) Address() ethcommon.Address { return e.address }

// Asset returns the principal asset symbol.
func (e *Engine) Asset() string { return e.params.PrincipalSymbol }

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) checkDeadline(deadline int64) error {
	if deadline < 0 || e.now() > uint64(deadline) {
		return ErrDeadlineExpired
	}
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}

func (e *Engine) ready() error {
	if e == nil || e.state.store == nil || e.bank == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) loadPortal() (*Portal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, ok, err := e.state.portal()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return p, nil
}

// registration returns the yield routing of the portal, failing when the
// liquidity pool has not registered it.
func (e *Engine) registration() (ethcommon.Address, uint64, error) {
	if e.liquidity == nil {
		return ethcommon.Address{}, 0, errNilState
	}
	ref, index, ok, err := e.liquidity.RegisteredVault(e.address, e.params.PrincipalSymbol)
	if err != nil {
		return ethcommon.Address{}, 0, err
	}
	if !ok {
		return ethcommon.Address{}, 0, ErrPortalNotRegistered
	}
	return ref, index, nil
}

func (e *Engine) update(p *Portal, user ethcommon.Address, current *Account, amount *big.Int, positive bool) (*AccountUpdate, error) {
	next, maxStakeDebt, available, err := updateAccount(p, current, amount, positive, e.now())
	if err != nil {
		return nil, err
	}
	return &AccountUpdate{User: user, Account: next, MaxStakeDebt: maxStakeDebt, AvailableToWithdraw: available}, nil
}

// Initialize creates the portal record. The principal token must exist.
func (e *Engine) Initialize() error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.params.Validate(); err != nil {
		return err
	}
	if _, ok, err := e.state.portal(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	decimals, err := e.bank.Decimals(e.params.PrincipalSymbol)
	if err != nil {
		return err
	}
	p := &Portal{
		PrincipalSymbol:        e.params.PrincipalSymbol,
		PrincipalDecimals:      decimals,
		Native:                 e.params.Native,
		TargetConstant:         new(big.Int).Set(e.params.TargetConstant),
		MaxLockDuration:        e.params.MaxLockDuration,
		LockDurationUpdateable: e.params.MaxLockDuration < e.params.TerminalDuration,
		CreatedAt:              e.now(),
	}
	return e.state.putPortal(p)
}

// Portal returns a copy of the portal state.
func (e *Engine) Portal() (*Portal, error) {
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// GetUpdateAccount recomputes user's account at the current time with a
// pending stake delta of amount, without persisting anything.
func (e *Engine) GetUpdateAccount(user ethcommon.Address, amount *big.Int, isPositive bool) (*AccountUpdate, error) {
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if amount != nil && amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	current, _, err := e.state.account(user)
	if err != nil {
		return nil, err
	}
	return e.update(p, user, current, amount, isPositive)
}

// UpdateMaxLockDuration raises the lock duration to twice the portal's age,
// bounded by the terminal duration. Once the terminal duration is reached
// the value is final.
func (e *Engine) UpdateMaxLockDuration() (uint64, error) {
	p, err := e.loadPortal()
	if err != nil {
		return 0, err
	}
	if !p.LockDurationUpdateable {
		return p.MaxLockDuration, ErrDurationLocked
	}
	var age uint64
	if now := e.now(); now > p.CreatedAt {
		age = now - p.CreatedAt
	}
	candidate := 2 * age
	if candidate <= p.MaxLockDuration {
		return p.MaxLockDuration, nil
	}
	if candidate >= e.params.TerminalDuration {
		candidate = e.params.TerminalDuration
		p.LockDurationUpdateable = false
	}
	p.MaxLockDuration = candidate
	if err := e.state.putPortal(p); err != nil {
		return 0, err
	}
	e.emit(lockDurationEvent(p.PrincipalSymbol, p.MaxLockDuration, !p.LockDurationUpdateable))
	return p.MaxLockDuration, nil
}

// Stake locks amount of principal from caller and credits the matching
// energy. Native-asset portals require attachedValue to equal amount; token
// portals reject any attached value.
func (e *Engine) Stake(caller ethcommon.Address, amount, attachedValue *big.Int) (*AccountUpdate, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if e.yield == nil {
		return nil, errNilState
	}
	ref, index, err := e.registration()
	if err != nil {
		return nil, err
	}
	if caller == (ethcommon.Address{}) {
		return nil, ErrInvalidAddress
	}
	if !nativecommon.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	if p.Native {
		if attachedValue == nil || attachedValue.Cmp(amount) != 0 {
			return nil, ErrAttachedValueMismatch
		}
	} else if attachedValue != nil && attachedValue.Sign() != 0 {
		return nil, ErrNativeTokenNotAllowed
	}
	current, _, err := e.state.account(caller)
	if err != nil {
		return nil, err
	}
	update, err := e.update(p, caller, current, amount, true)
	if err != nil {
		return nil, err
	}
	total, err := nativecommon.Add(p.TotalPrincipalStaked, amount)
	if err != nil {
		return nil, err
	}
	p.TotalPrincipalStaked = total
	if err := e.state.putAccount(caller, update.Account); err != nil {
		return nil, err
	}
	if err := e.state.putPortal(p); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(p.PrincipalSymbol, caller, e.address, amount); err != nil {
		return nil, err
	}
	if err := e.yield.Deposit(ref, index, e.address, amount); err != nil {
		return nil, err
	}
	e.emit(positionEvent(EventTypeStaked, p.PrincipalSymbol, update, amount))
	return update, nil
}

// Unstake releases amount of principal to caller. The amount must not exceed
// the principal available to withdraw.
func (e *Engine) Unstake(caller ethcommon.Address, amount *big.Int) (*AccountUpdate, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if e.yield == nil {
		return nil, errNilState
	}
	ref, index, err := e.registration()
	if err != nil {
		return nil, err
	}
	if !nativecommon.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	current, exists, err := e.state.account(caller)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrEmptyAccount
	}
	update, err := e.update(p, caller, current, amount, false)
	if err != nil {
		return nil, err
	}
	total, err := nativecommon.Sub(p.TotalPrincipalStaked, amount)
	if err != nil {
		return nil, err
	}
	p.TotalPrincipalStaked = total
	if err := e.state.putAccount(caller, update.Account); err != nil {
		return nil, err
	}
	if err := e.state.putPortal(p); err != nil {
		return nil, err
	}
	if err := e.yield.Withdraw(ref, index, e.address, caller, amount); err != nil {
		return nil, err
	}
	e.emit(positionEvent(EventTypeUnstaked, p.PrincipalSymbol, update, amount))
	return update, nil
}

// QuoteForceUnstakeAll returns the energy tokens user must burn to withdraw
// the whole stake now.
func (e *Engine) QuoteForceUnstakeAll(user ethcommon.Address) (*big.Int, error) {
	update, err := e.GetUpdateAccount(user, nil, true)
	if err != nil {
		return nil, err
	}
	return nativecommon.SubFloor(update.MaxStakeDebt, update.Account.PortalEnergy), nil
}

// ForceUnstakeAll withdraws caller's entire stake. Any energy shortfall
// against the stake's ceiling is covered by burning energy tokens the caller
// approved to the portal. The stake is always zeroed, but energy held above
// the ceiling (bought, or credited by a token burn) stays in the account, so
// the account is only fully cleared when its energy did not exceed the
// ceiling. It returns the energy tokens burned.
func (e *Engine) ForceUnstakeAll(caller ethcommon.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.loadPortal()
	if err != nil {
		return nil, err
	}
	if e.yield == nil {
		return nil, errNilState
	}
	ref, index, err := e.registration()
	if err != nil {
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
	staked := update.Account.StakedBalance
	if staked.Sign() == 0 {
		return nil, ErrEmptyAccount
	}
	deficit := nativecommon.SubFloor(update.MaxStakeDebt, update.Account.PortalEnergy)
	if deficit.Sign() > 0 {
		if p.EnergySymbol == "" {
			return nil, ErrEnergyTokenNotCreated
		}
		held, err := e.bank.BalanceOf(p.EnergySymbol, caller)
		if err != nil {
			return nil, err
		}
		if held.Cmp(deficit) < 0 {
			return nil, ErrInsufficientBalance
		}
	}
	remaining := &Account{
		StakedBalance:       big.NewInt(0),
		PortalEnergy:        nativecommon.SubFloor(update.Account.PortalEnergy, update.MaxStakeDebt),
		LastUpdateTime:      update.Account.LastUpdateTime,
		LastMaxLockDuration: update.Account.LastMaxLockDuration,
	}
	total, err := nativecommon.Sub(p.TotalPrincipalStaked, staked)
	if err != nil {
		return nil, err
	}
	p.TotalPrincipalStaked = total
	if err := e.state.putAccount(caller, remaining); err != nil {
		return nil, err
	}
	if err := e.state.putPortal(p); err != nil {
		return nil, err
	}
	if deficit.Sign() > 0 {
		if err := e.bank.BurnFrom(p.EnergySymbol, e.address, caller, deficit); err != nil {
			return nil, err
		}
	}
	if err := e.yield.Withdraw(ref, index, e.address, caller, staked); err != nil {
		return nil, err
	}
	maxStakeDebt, available, err := limits(p, remaining)
	if err != nil {
		return nil, err
	}
	e.emit(positionEvent(EventTypeForceUnstaked, p.PrincipalSymbol, &AccountUpdate{
		User:                caller,
		Account:             remaining,
		MaxStakeDebt:        maxStakeDebt,
		AvailableToWithdraw: available,
	}, staked))
	return deficit, nil
}
