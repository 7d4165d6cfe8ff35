package liquidity

import (
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/events"
	"portalchain/core/types"
	nativecommon "portalchain/native/common"
)

var (
	errNilState               = nativecommon.NewError(nativecommon.KindState, "liquidity engine: state not configured")
	ErrNotInitialized         = nativecommon.NewError(nativecommon.KindState, "liquidity engine: pool not initialised")
	ErrAlreadyInitialized     = nativecommon.NewError(nativecommon.KindState, "liquidity engine: pool already initialised")
	ErrInvalidAmount          = nativecommon.NewError(nativecommon.KindInvalidAmount, "liquidity engine: amount must be positive")
	ErrInvalidAddress         = nativecommon.NewError(nativecommon.KindInvalidAddress, "liquidity engine: address must not be zero")
	ErrInvalidAsset           = nativecommon.NewError(nativecommon.KindInvalidAddress, "liquidity engine: asset not convertible")
	ErrDeadlineExpired        = nativecommon.NewError(nativecommon.KindDeadlineExpired, "liquidity engine: deadline expired")
	ErrInsufficientBalance    = nativecommon.NewError(nativecommon.KindInsufficientBalance, "liquidity engine: insufficient balance")
	ErrInsufficientReserve    = nativecommon.NewError(nativecommon.KindInsufficientBalance, "liquidity engine: insufficient reserve")
	ErrInsufficientReceived   = nativecommon.NewError(nativecommon.KindInsufficientReceived, "liquidity engine: balance below minimum received")
	ErrFundingBelowMinimum    = nativecommon.NewError(nativecommon.KindInsufficientBalance, "liquidity engine: funding below minimum")
	ErrFundingPhaseNotEnded   = nativecommon.NewError(nativecommon.KindInactiveLP, "liquidity engine: funding phase has not ended")
	ErrInactiveLP             = nativecommon.NewError(nativecommon.KindInactiveLP, "liquidity engine: pool not active")
	ErrActiveLP               = nativecommon.NewError(nativecommon.KindActiveLP, "liquidity engine: pool already active")
	ErrPortalNotRegistered    = nativecommon.NewError(nativecommon.KindPortalNotRegistered, "liquidity engine: portal not registered")
	ErrAssetClaimed           = nativecommon.NewError(nativecommon.KindTokenExists, "liquidity engine: asset registered to another portal")
	ErrBondingTokenExists     = nativecommon.NewError(nativecommon.KindTokenExists, "liquidity engine: bonding token already created")
	ErrBondingTokenNotCreated = nativecommon.NewError(nativecommon.KindTokenNotCreated, "liquidity engine: bonding token not created")
	ErrNotOwner               = nativecommon.NewError(nativecommon.KindNotOwner, "liquidity engine: caller is not the owner")
	ErrOwnerNotExpired        = nativecommon.NewError(nativecommon.KindOwnerNotExpired, "liquidity engine: owner duration not expired")
	ErrOwnerRevoked           = nativecommon.NewError(nativecommon.KindOwnerRevoked, "liquidity engine: owner already removed")
	ErrZeroPayout             = nativecommon.NewError(nativecommon.KindInvalidAmount, "liquidity engine: payout rounds to zero")
)

const moduleName = "liquidity"

// Bank is the fungible ledger the engine moves the reserve, bonding and
// converted assets through.
type Bank interface {
	CreateToken(symbol, name string, decimals uint8, authority ethcommon.Address) error
	Mint(symbol string, authority, to ethcommon.Address, amount *big.Int) error
	Burn(symbol string, from ethcommon.Address, amount *big.Int) error
	Transfer(symbol string, from, to ethcommon.Address, amount *big.Int) error
	BalanceOf(symbol string, addr ethcommon.Address) (*big.Int, error)
	TotalSupply(symbol string) (*big.Int, error)
}

// YieldClaimer claims rewards a portal earned at its yield venue.
type YieldClaimer interface {
	Claim(ref ethcommon.Address, poolIndex uint64, depositor, recipient ethcommon.Address) (*big.Int, error)
}

// Engine runs the funding bootstrap, the fixed-price conversion desk and the
// portal registry shared by every portal.
type Engine struct {
	state   kvState
	bank    Bank
	yield   YieldClaimer
	params  Params
	address ethcommon.Address
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine constructs a liquidity engine with the supplied economics.
func NewEngine(params Params) *Engine {
	params.ReserveSymbol = normalize(params.ReserveSymbol)
	params.BondingSymbol = normalize(params.BondingSymbol)
	return &Engine{
		params:  params,
		address: nativecommon.ModuleAddress(moduleName),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(store KVStore) { e.state = kvState{store: store} }

// SetBank wires the fungible ledger.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetYieldClaimer wires the yield venue used by CollectPortalProfit.
func (e *Engine) SetYieldClaimer(y YieldClaimer) { e.yield = y }

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

// SetNowFunc overrides the clock used for time gates.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the custody address holding the pool's balances.
func (e *Engine) Address() ethcommon.Address { return e.address }

// ReserveSymbol returns the reserve asset symbol.
func (e *Engine) ReserveSymbol() string { return e.params.ReserveSymbol }

// Params returns the configured economics.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
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

func (e *Engine) loadPool() (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pool, ok, err := e.state.pool()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return pool, nil
}

func (e *Engine) requireBonding(pool *Pool) error {
	if pool.BondingSymbol == "" {
		return ErrBondingTokenNotCreated
	}
	return nil
}

// Initialize creates the pool in the funding phase with owner holding the
// registration capability.
func (e *Engine) Initialize(owner ethcommon.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if owner == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	if _, ok, err := e.state.pool(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	pool := &Pool{Phase: PhaseFunding, Owner: owner, CreatedAt: e.now()}
	return e.state.putPool(pool)
}

// Pool returns a copy of the pool state.
func (e *Engine) Pool() (*Pool, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// Registrations lists every registered portal in registration order.
func (e *Engine) Registrations() ([]*Registration, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.registrations()
}

// CreateBondingToken creates the bonding token with the engine as its sole
// mint authority. It can only run once.
func (e *Engine) CreateBondingToken() error {
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if pool.BondingSymbol != "" {
		return ErrBondingTokenExists
	}
	pool.BondingSymbol = e.params.BondingSymbol
	if err := e.state.putPool(pool); err != nil {
		return err
	}
	if err := e.bank.CreateToken(pool.BondingSymbol, "Bonding "+e.params.ReserveSymbol, 18, e.address); err != nil {
		return err
	}
	e.emit(bondingCreatedEvent(pool.BondingSymbol))
	return nil
}

// ContributeFunding pulls amount of the reserve asset from caller and mints
// bonding tokens at the funding multiple. Returns the bonding tokens minted.
func (e *Engine) ContributeFunding(caller ethcommon.Address, amount *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if pool.Phase != PhaseFunding {
		return nil, ErrActiveLP
	}
	if !nativecommon.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	if caller == (ethcommon.Address{}) {
		return nil, ErrInvalidAddress
	}
	if err := e.requireBonding(pool); err != nil {
		return nil, err
	}
	minted, err := bondingForContribution(amount, e.params.FundingMultiplePercent)
	if err != nil {
		return nil, err
	}
	balance, err := nativecommon.Add(pool.FundingBalance, amount)
	if err != nil {
		return nil, err
	}
	pool.FundingBalance = balance
	if err := e.state.putPool(pool); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.params.ReserveSymbol, caller, e.address, amount); err != nil {
		return nil, err
	}
	if err := e.bank.Mint(pool.BondingSymbol, e.address, caller, minted); err != nil {
		return nil, err
	}
	e.emit(fundingEvent(EventTypeFundingContributed, caller, amount, minted))
	return minted, nil
}

// WithdrawFunding burns bonding tokens held by caller and refunds the
// contribution they represent. Only available during the funding phase.
func (e *Engine) WithdrawFunding(caller ethcommon.Address, bondingAmount *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if pool.Phase != PhaseFunding {
		return nil, ErrActiveLP
	}
	if !nativecommon.IsPositive(bondingAmount) {
		return nil, ErrInvalidAmount
	}
	if err := e.requireBonding(pool); err != nil {
		return nil, err
	}
	held, err := e.bank.BalanceOf(pool.BondingSymbol, caller)
	if err != nil {
		return nil, err
	}
	if held.Cmp(bondingAmount) < 0 {
		return nil, ErrInsufficientBalance
	}
	refund, err := refundForBonding(bondingAmount, e.params.FundingMultiplePercent)
	if err != nil {
		return nil, err
	}
	if refund.Sign() == 0 {
		return nil, ErrZeroPayout
	}
	remaining, err := nativecommon.Sub(pool.FundingBalance, refund)
	if err != nil {
		return nil, ErrInsufficientReserve
	}
	pool.FundingBalance = remaining
	if err := e.state.putPool(pool); err != nil {
		return nil, err
	}
	if err := e.bank.Burn(pool.BondingSymbol, caller, bondingAmount); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.params.ReserveSymbol, e.address, caller, refund); err != nil {
		return nil, err
	}
	e.emit(fundingEvent(EventTypeFundingWithdrawn, caller, refund, bondingAmount))
	return refund, nil
}

// ActivateLP ends the funding phase once its minimum duration has passed and
// the minimum funding was raised. The funding balance stays in the pool as
// the initial reserve liquidity.
func (e *Engine) ActivateLP(caller ethcommon.Address) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if pool.Phase != PhaseFunding {
		return ErrActiveLP
	}
	now := e.now()
	if now < pool.CreatedAt+e.params.FundingPhaseDuration {
		return ErrFundingPhaseNotEnded
	}
	if pool.FundingBalance.Cmp(e.params.FundingMinAmount) < 0 {
		return ErrFundingBelowMinimum
	}
	if err := e.requireBonding(pool); err != nil {
		return err
	}
	supply, err := e.bank.TotalSupply(pool.BondingSymbol)
	if err != nil {
		return err
	}
	pool.Phase = PhaseActive
	pool.ActivatedAt = now
	pool.FundingMaxRewards = supply
	if err := e.state.putPool(pool); err != nil {
		return err
	}
	e.emit(activatedEvent(pool))
	return nil
}

// RegisterPortal authorises portal to trade against the pool for asset.
// Re-registering a portal overwrites its vault routing and releases the asset
// it previously served. An asset is served by at most one portal.
func (e *Engine) RegisterPortal(caller, portal ethcommon.Address, asset string, vaultRef ethcommon.Address, poolIndex uint64) error {
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if pool.OwnerRemoved {
		return ErrOwnerRevoked
	}
	if caller != pool.Owner {
		return ErrNotOwner
	}
	asset = normalize(asset)
	if portal == (ethcommon.Address{}) || asset == "" {
		return ErrInvalidAddress
	}
	if asset == e.params.ReserveSymbol || asset == pool.BondingSymbol {
		return ErrInvalidAsset
	}
	if holder, ok, err := e.state.portalForAsset(asset); err != nil {
		return err
	} else if ok && holder != portal {
		return ErrAssetClaimed
	}
	reg := &Registration{Portal: portal, Asset: asset, VaultRef: vaultRef, PoolIndex: poolIndex}
	if err := e.state.putRegistration(reg); err != nil {
		return err
	}
	e.emit(registeredEvent(reg))
	return nil
}

// RegisteredVault reports whether portal is registered for asset and returns
// the yield routing stored with the registration.
func (e *Engine) RegisteredVault(portal ethcommon.Address, asset string) (ethcommon.Address, uint64, bool, error) {
	if err := e.ready(); err != nil {
		return ethcommon.Address{}, 0, false, err
	}
	reg, ok, err := e.state.registration(portal)
	if err != nil || !ok {
		return ethcommon.Address{}, 0, false, err
	}
	if reg.Asset != normalize(asset) {
		return ethcommon.Address{}, 0, false, nil
	}
	return reg.VaultRef, reg.PoolIndex, true, nil
}

// Convert sells the pool's entire balance of asset to recipient for the fixed
// convert amount of the reserve asset paid by caller. A share of the payment
// accrues to bonding token holders up to the funding reward cap.
func (e *Engine) Convert(caller ethcommon.Address, asset string, recipient ethcommon.Address, minReceived *big.Int, deadline int64) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if pool.Phase != PhaseActive {
		return nil, ErrInactiveLP
	}
	asset = normalize(asset)
	if asset == "" || asset == e.params.ReserveSymbol || asset == pool.BondingSymbol {
		return nil, ErrInvalidAsset
	}
	if _, ok, err := e.state.portalForAsset(asset); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrPortalNotRegistered
	}
	if recipient == (ethcommon.Address{}) || caller == (ethcommon.Address{}) {
		return nil, ErrInvalidAddress
	}
	if !nativecommon.IsPositive(minReceived) {
		return nil, ErrInvalidAmount
	}
	if deadline < 0 || e.now() > uint64(deadline) {
		return nil, ErrDeadlineExpired
	}
	received, err := e.bank.BalanceOf(asset, e.address)
	if err != nil {
		return nil, err
	}
	if received.Cmp(minReceived) < 0 {
		return nil, ErrInsufficientReceived
	}
	payment := nativecommon.Clone(e.params.ConvertAmount)
	accrued, err := e.accrueRewards(pool, payment)
	if err != nil {
		return nil, err
	}
	if err := e.state.putPool(pool); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.params.ReserveSymbol, caller, e.address, payment); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(asset, e.address, recipient, received); err != nil {
		return nil, err
	}
	e.emit(convertedEvent(caller, recipient, asset, received, payment))
	if accrued.Sign() > 0 {
		e.emit(rewardsAccruedEvent(accrued, pool.FundingRewardPool, pool.FundingRewardsCollected))
	}
	return received, nil
}

// accrueRewards credits the bonding holders' share of payment to the reward
// pool. The accrual is discarded when no bonding tokens are outstanding.
func (e *Engine) accrueRewards(pool *Pool, payment *big.Int) (*big.Int, error) {
	if err := e.requireBonding(pool); err != nil {
		return nil, err
	}
	supply, err := e.bank.TotalSupply(pool.BondingSymbol)
	if err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return big.NewInt(0), nil
	}
	share, err := nativecommon.Percent(payment, e.params.FundingRewardSharePercent)
	if err != nil {
		return nil, err
	}
	room := nativecommon.SubFloor(pool.FundingMaxRewards, pool.FundingRewardsCollected)
	share = nativecommon.Min(share, room)
	if share.Sign() == 0 {
		return share, nil
	}
	rewardPool, err := nativecommon.Add(pool.FundingRewardPool, share)
	if err != nil {
		return nil, err
	}
	collected, err := nativecommon.Add(pool.FundingRewardsCollected, share)
	if err != nil {
		return nil, err
	}
	pool.FundingRewardPool = rewardPool
	pool.FundingRewardsCollected = collected
	return share, nil
}

// BurnValue returns the reference redemption value of amount bonding tokens
// at the current time.
func (e *Engine) BurnValue(amount *big.Int) (*big.Int, error) {
	return e.BurnValueAt(amount, int64(e.now()))
}

// BurnValueAt returns the reference redemption value of amount bonding tokens
// at timestamp at. The value never decreases as at grows.
func (e *Engine) BurnValueAt(amount *big.Int, at int64) (*big.Int, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if pool.Phase != PhaseActive {
		return nil, ErrInactiveLP
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	var elapsed uint64
	if at > 0 && uint64(at) > pool.ActivatedAt {
		elapsed = uint64(at) - pool.ActivatedAt
	}
	return burnValue(amount, elapsed, e.params)
}

// BurnBondingTokens redeems amount bonding tokens for a pro-rata share of the
// funding reward pool.
func (e *Engine) BurnBondingTokens(caller ethcommon.Address, amount *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if pool.Phase != PhaseActive {
		return nil, ErrInactiveLP
	}
	if !nativecommon.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	held, err := e.bank.BalanceOf(pool.BondingSymbol, caller)
	if err != nil {
		return nil, err
	}
	if held.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	supply, err := e.bank.TotalSupply(pool.BondingSymbol)
	if err != nil {
		return nil, err
	}
	payout, err := nativecommon.MulDiv(amount, pool.FundingRewardPool, supply)
	if err != nil {
		return nil, err
	}
	if payout.Sign() == 0 {
		return nil, ErrZeroPayout
	}
	pool.FundingRewardPool = new(big.Int).Sub(pool.FundingRewardPool, payout)
	if err := e.state.putPool(pool); err != nil {
		return nil, err
	}
	if err := e.bank.Burn(pool.BondingSymbol, caller, amount); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.params.ReserveSymbol, e.address, caller, payout); err != nil {
		return nil, err
	}
	e.emit(fundingEvent(EventTypeBondingBurned, caller, payout, amount))
	return payout, nil
}

// RemoveOwner permanently clears the owner capability once the owner duration
// has elapsed. Anyone may call it.
func (e *Engine) RemoveOwner(caller ethcommon.Address) error {
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if pool.OwnerRemoved {
		return ErrOwnerRevoked
	}
	if e.now() < pool.CreatedAt+e.params.OwnerDuration {
		return ErrOwnerNotExpired
	}
	previous := pool.Owner
	pool.Owner = ethcommon.Address{}
	pool.OwnerRemoved = true
	if err := e.state.putPool(pool); err != nil {
		return err
	}
	e.emit(ownerRemovedEvent(previous))
	return nil
}

// PortalReserve returns the reserve balance available to the energy curve:
// the pool's reserve holdings minus the funding reward pool. It is zero
// while funding.
func (e *Engine) PortalReserve() (*big.Int, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if pool.Phase != PhaseActive {
		return big.NewInt(0), nil
	}
	balance, err := e.bank.BalanceOf(e.params.ReserveSymbol, e.address)
	if err != nil {
		return nil, err
	}
	return nativecommon.SubFloor(balance, pool.FundingRewardPool), nil
}

// SendToPortalUser pays amount of the reserve asset to recipient on behalf of
// a registered portal.
func (e *Engine) SendToPortalUser(portal, recipient ethcommon.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if _, ok, err := e.state.registration(portal); err != nil {
		return err
	} else if !ok {
		return ErrPortalNotRegistered
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if recipient == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	available, err := e.PortalReserve()
	if err != nil {
		return err
	}
	if available.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}
	if err := e.bank.Transfer(e.params.ReserveSymbol, e.address, recipient, amount); err != nil {
		return err
	}
	e.emit(portalFlowEvent(EventTypePortalPayout, portal, recipient, amount))
	return nil
}

// CollectPortalProfit claims the yield rewards a registered portal earned and
// moves them into the pool, where Convert sells them.
func (e *Engine) CollectPortalProfit(portal ethcommon.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.yield == nil {
		return nil, errNilState
	}
	reg, ok, err := e.state.registration(portal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPortalNotRegistered
	}
	claimed, err := e.yield.Claim(reg.VaultRef, reg.PoolIndex, portal, e.address)
	if err != nil {
		return nil, err
	}
	if claimed.Sign() > 0 {
		e.emit(portalFlowEvent(EventTypeProfitCollected, portal, e.address, claimed))
	}
	return claimed, nil
}
