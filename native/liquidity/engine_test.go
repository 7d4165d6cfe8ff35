package liquidity

import (
	"errors"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/events"
	"portalchain/core/state"
	nativecommon "portalchain/native/common"
	"portalchain/native/token"
	"portalchain/native/yield"
	"portalchain/storage"
)

func addr(last byte) ethcommon.Address {
	var out ethcommon.Address
	out[19] = last
	return out
}

type fixture struct {
	engine    *Engine
	ledger    *token.Ledger
	source    *yield.Source
	recorder  *events.Recorder
	authority ethcommon.Address
	owner     ethcommon.Address
	now       int64
}

func testParams() Params {
	return Params{
		ReserveSymbol:             "PSM",
		BondingSymbol:             "BPSM",
		FundingPhaseDuration:      100,
		FundingMinAmount:          big.NewInt(1_000),
		FundingMultiplePercent:    1_000,
		FundingAPRPercent:         36,
		BurnValueCapPercent:       100,
		FundingRewardSharePercent: 10,
		ConvertAmount:             big.NewInt(150_000),
		OwnerDuration:             1_000,
	}
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(manager)
	f := &fixture{
		ledger:    ledger,
		recorder:  &events.Recorder{},
		authority: addr(0xA0),
		owner:     addr(0xB0),
		now:       10,
	}
	for _, symbol := range []string{"PSM", "USDC"} {
		if err := ledger.CreateToken(symbol, symbol, 18, f.authority); err != nil {
			t.Fatalf("create %s: %v", symbol, err)
		}
	}
	f.source = yield.NewSource(manager, ledger)
	engine := NewEngine(params)
	engine.SetState(manager)
	engine.SetBank(ledger)
	engine.SetYieldClaimer(f.source)
	engine.SetEmitter(f.recorder)
	engine.SetNowFunc(func() int64 { return f.now })
	if err := engine.Initialize(f.owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.CreateBondingToken(); err != nil {
		t.Fatalf("create bonding token: %v", err)
	}
	f.engine = engine
	return f
}

func (f *fixture) mint(t *testing.T, symbol string, to ethcommon.Address, amount int64) {
	t.Helper()
	if err := f.ledger.Mint(symbol, f.authority, to, big.NewInt(amount)); err != nil {
		t.Fatalf("mint %s: %v", symbol, err)
	}
}

func (f *fixture) balance(t *testing.T, symbol string, who ethcommon.Address) int64 {
	t.Helper()
	bal, err := f.ledger.BalanceOf(symbol, who)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func (f *fixture) contribute(t *testing.T, who ethcommon.Address, amount int64) {
	t.Helper()
	f.mint(t, "PSM", who, amount)
	if _, err := f.engine.ContributeFunding(who, big.NewInt(amount)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
}

func (f *fixture) activate(t *testing.T) {
	t.Helper()
	f.now += int64(f.engine.Params().FundingPhaseDuration)
	if err := f.engine.ActivateLP(f.owner); err != nil {
		t.Fatalf("activate: %v", err)
	}
}

func (f *fixture) registerUSDC(t *testing.T, portal ethcommon.Address) {
	t.Helper()
	if err := f.engine.RegisterPortal(f.owner, portal, "usdc", addr(0xEE), 0); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestContributeFundingMintsMultiple(t *testing.T) {
	f := newFixture(t, testParams())
	alice, bob := addr(0x01), addr(0x02)
	f.contribute(t, alice, 100)
	f.contribute(t, bob, 250)

	supply, err := f.ledger.TotalSupply("BPSM")
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Int64() != 3_500 {
		t.Fatalf("unexpected bonding supply %s", supply)
	}
	pool, err := f.engine.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.FundingBalance.Int64() != 350 {
		t.Fatalf("unexpected funding balance %s", pool.FundingBalance)
	}
	if got := f.balance(t, "PSM", f.engine.Address()); got != 350 {
		t.Fatalf("unexpected pool reserve %d", got)
	}
	if _, err := f.engine.ContributeFunding(alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestWithdrawFundingRefundsContribution(t *testing.T) {
	f := newFixture(t, testParams())
	alice := addr(0x01)
	f.contribute(t, alice, 100)

	if _, err := f.engine.WithdrawFunding(alice, big.NewInt(1_001)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := f.engine.WithdrawFunding(alice, big.NewInt(9)); !errors.Is(err, ErrZeroPayout) {
		t.Fatalf("expected ErrZeroPayout, got %v", err)
	}
	refund, err := f.engine.WithdrawFunding(alice, big.NewInt(505))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if refund.Int64() != 50 {
		t.Fatalf("unexpected refund %s", refund)
	}
	pool, _ := f.engine.Pool()
	if pool.FundingBalance.Int64() != 50 {
		t.Fatalf("unexpected funding balance %s", pool.FundingBalance)
	}
	if got := f.balance(t, "BPSM", alice); got != 495 {
		t.Fatalf("unexpected bonding balance %d", got)
	}
	if got := f.balance(t, "PSM", alice); got != 50 {
		t.Fatalf("unexpected reserve balance %d", got)
	}
}

func TestActivateLPGuards(t *testing.T) {
	f := newFixture(t, testParams())
	alice := addr(0x01)
	f.contribute(t, alice, 999)

	if err := f.engine.ActivateLP(alice); !errors.Is(err, ErrFundingPhaseNotEnded) {
		t.Fatalf("expected ErrFundingPhaseNotEnded, got %v", err)
	}
	f.now += 100
	if err := f.engine.ActivateLP(alice); !errors.Is(err, ErrFundingBelowMinimum) {
		t.Fatalf("expected ErrFundingBelowMinimum, got %v", err)
	}
	f.contribute(t, alice, 1)
	if err := f.engine.ActivateLP(alice); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := f.engine.ActivateLP(alice); !errors.Is(err, ErrActiveLP) {
		t.Fatalf("expected ErrActiveLP on second activation, got %v", err)
	}
	if _, err := f.engine.ContributeFunding(alice, big.NewInt(1)); !errors.Is(err, ErrActiveLP) {
		t.Fatalf("expected ErrActiveLP, got %v", err)
	}
	if _, err := f.engine.WithdrawFunding(alice, big.NewInt(10)); !errors.Is(err, ErrActiveLP) {
		t.Fatalf("expected ErrActiveLP, got %v", err)
	}
	pool, _ := f.engine.Pool()
	if pool.Phase != PhaseActive || pool.FundingMaxRewards.Int64() != 10_000 {
		t.Fatalf("unexpected pool after activation %+v", pool)
	}
}

func TestBurnValueMonotoneAndCapped(t *testing.T) {
	f := newFixture(t, testParams())
	f.contribute(t, addr(0x01), 1_000)
	if _, err := f.engine.BurnValue(big.NewInt(1)); !errors.Is(err, ErrInactiveLP) {
		t.Fatalf("expected ErrInactiveLP, got %v", err)
	}
	f.activate(t)

	amount := big.NewInt(1_000_000)
	start := f.now
	previous := big.NewInt(0)
	for _, offset := range []int64{0, 1, 3_600, 86_400, SecondsPerYear, 3 * SecondsPerYear, 10 * SecondsPerYear} {
		value, err := f.engine.BurnValueAt(amount, start+offset)
		if err != nil {
			t.Fatalf("burn value at %d: %v", offset, err)
		}
		if value.Cmp(previous) < 0 {
			t.Fatalf("burn value decreased at %d: %s < %s", offset, value, previous)
		}
		previous = value
	}
	initial, _ := f.engine.BurnValueAt(amount, start)
	if initial.Int64() != 100_000 {
		t.Fatalf("unexpected initial burn value %s", initial)
	}
	if previous.Cmp(amount) != 0 {
		t.Fatalf("burn value should be capped at %s, got %s", amount, previous)
	}
}

func TestConvertAccruesCappedRewards(t *testing.T) {
	f := newFixture(t, testParams())
	portal := addr(0xC0)
	caller, recipient := addr(0x05), addr(0x06)
	f.contribute(t, addr(0x01), 1_000)
	f.registerUSDC(t, portal)

	deadline := f.now + 10_000
	if _, err := f.engine.Convert(caller, "USDC", recipient, big.NewInt(1), deadline); !errors.Is(err, ErrInactiveLP) {
		t.Fatalf("expected ErrInactiveLP, got %v", err)
	}
	f.activate(t)
	f.mint(t, "PSM", caller, 300_000)
	f.mint(t, "USDC", f.engine.Address(), 1_000)

	if _, err := f.engine.Convert(caller, "DAI", recipient, big.NewInt(1), deadline); !errors.Is(err, ErrPortalNotRegistered) {
		t.Fatalf("expected ErrPortalNotRegistered, got %v", err)
	}
	if _, err := f.engine.Convert(caller, "PSM", recipient, big.NewInt(1), deadline); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset, got %v", err)
	}
	if _, err := f.engine.Convert(caller, "USDC", ethcommon.Address{}, big.NewInt(1), deadline); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := f.engine.Convert(caller, "USDC", recipient, big.NewInt(0), deadline); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.engine.Convert(caller, "USDC", recipient, big.NewInt(1), f.now-1); !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("expected ErrDeadlineExpired, got %v", err)
	}
	if _, err := f.engine.Convert(caller, "USDC", recipient, big.NewInt(1_001), deadline); !errors.Is(err, ErrInsufficientReceived) {
		t.Fatalf("expected ErrInsufficientReceived, got %v", err)
	}

	received, err := f.engine.Convert(caller, "USDC", recipient, big.NewInt(1_000), deadline)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if received.Int64() != 1_000 || f.balance(t, "USDC", recipient) != 1_000 {
		t.Fatalf("recipient did not receive the asset balance")
	}
	if got := f.balance(t, "PSM", caller); got != 150_000 {
		t.Fatalf("unexpected caller reserve %d", got)
	}
	pool, _ := f.engine.Pool()
	if pool.FundingRewardsCollected.Cmp(pool.FundingMaxRewards) != 0 {
		t.Fatalf("rewards should be capped: collected %s max %s", pool.FundingRewardsCollected, pool.FundingMaxRewards)
	}
	before := new(big.Int).Set(pool.FundingRewardsCollected)

	f.mint(t, "USDC", f.engine.Address(), 10)
	if _, err := f.engine.Convert(caller, "USDC", recipient, big.NewInt(10), deadline); err != nil {
		t.Fatalf("second convert: %v", err)
	}
	pool, _ = f.engine.Pool()
	if pool.FundingRewardsCollected.Cmp(before) != 0 {
		t.Fatalf("collected rewards moved past cap: %s", pool.FundingRewardsCollected)
	}
}

func TestConvertDiscardsRewardsWithoutBondingHolders(t *testing.T) {
	params := testParams()
	params.FundingMinAmount = big.NewInt(0)
	f := newFixture(t, params)
	f.registerUSDC(t, addr(0xC0))
	f.activate(t)
	caller := addr(0x05)
	f.mint(t, "PSM", caller, 150_000)
	f.mint(t, "USDC", f.engine.Address(), 5)
	if _, err := f.engine.Convert(caller, "USDC", caller, big.NewInt(5), f.now); err != nil {
		t.Fatalf("convert: %v", err)
	}
	pool, _ := f.engine.Pool()
	if pool.FundingRewardPool.Sign() != 0 || pool.FundingRewardsCollected.Sign() != 0 {
		t.Fatalf("rewards accrued without bonding holders: %+v", pool)
	}
}

func TestBurnBondingTokensPaysRewardShare(t *testing.T) {
	f := newFixture(t, testParams())
	alice := addr(0x01)
	caller := addr(0x05)
	f.contribute(t, alice, 1_000)
	f.registerUSDC(t, addr(0xC0))
	if _, err := f.engine.BurnBondingTokens(alice, big.NewInt(1)); !errors.Is(err, ErrInactiveLP) {
		t.Fatalf("expected ErrInactiveLP, got %v", err)
	}
	f.activate(t)
	if _, err := f.engine.BurnBondingTokens(alice, big.NewInt(10)); !errors.Is(err, ErrZeroPayout) {
		t.Fatalf("expected ErrZeroPayout before rewards, got %v", err)
	}
	f.mint(t, "PSM", caller, 150_000)
	f.mint(t, "USDC", f.engine.Address(), 1)
	if _, err := f.engine.Convert(caller, "USDC", caller, big.NewInt(1), f.now); err != nil {
		t.Fatalf("convert: %v", err)
	}
	payout, err := f.engine.BurnBondingTokens(alice, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if payout.Int64() != 1_000 {
		t.Fatalf("unexpected payout %s", payout)
	}
	pool, _ := f.engine.Pool()
	if pool.FundingRewardPool.Int64() != 9_000 {
		t.Fatalf("unexpected reward pool %s", pool.FundingRewardPool)
	}
	if got := f.balance(t, "BPSM", alice); got != 9_000 {
		t.Fatalf("unexpected bonding balance %d", got)
	}
}

func TestPortalReserveExcludesRewardPool(t *testing.T) {
	f := newFixture(t, testParams())
	f.contribute(t, addr(0x01), 1_000)
	reserve, err := f.engine.PortalReserve()
	if err != nil || reserve.Sign() != 0 {
		t.Fatalf("reserve must be zero while funding: %s %v", reserve, err)
	}
	f.registerUSDC(t, addr(0xC0))
	f.activate(t)
	caller := addr(0x05)
	f.mint(t, "PSM", caller, 150_000)
	f.mint(t, "USDC", f.engine.Address(), 1)
	if _, err := f.engine.Convert(caller, "USDC", caller, big.NewInt(1), f.now); err != nil {
		t.Fatalf("convert: %v", err)
	}
	reserve, err = f.engine.PortalReserve()
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reserve.Int64() != 1_000+150_000-10_000 {
		t.Fatalf("unexpected portal reserve %s", reserve)
	}
	if err := f.engine.SendToPortalUser(addr(0xC1), caller, big.NewInt(1)); !errors.Is(err, ErrPortalNotRegistered) {
		t.Fatalf("expected ErrPortalNotRegistered, got %v", err)
	}
	if err := f.engine.SendToPortalUser(addr(0xC0), caller, new(big.Int).Add(reserve, big.NewInt(1))); !errors.Is(err, ErrInsufficientReserve) {
		t.Fatalf("expected ErrInsufficientReserve, got %v", err)
	}
	if err := f.engine.SendToPortalUser(addr(0xC0), caller, big.NewInt(500)); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestOwnerLifecycle(t *testing.T) {
	f := newFixture(t, testParams())
	stranger := addr(0x09)
	if err := f.engine.RegisterPortal(stranger, addr(0xC0), "USDC", addr(0xEE), 0); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := f.engine.RemoveOwner(stranger); !errors.Is(err, ErrOwnerNotExpired) {
		t.Fatalf("expected ErrOwnerNotExpired, got %v", err)
	}
	f.now += 1_000
	if err := f.engine.RemoveOwner(stranger); err != nil {
		t.Fatalf("remove owner: %v", err)
	}
	if err := f.engine.RemoveOwner(stranger); !errors.Is(err, ErrOwnerRevoked) {
		t.Fatalf("expected ErrOwnerRevoked, got %v", err)
	}
	if err := f.engine.RegisterPortal(f.owner, addr(0xC0), "USDC", addr(0xEE), 0); !errors.Is(err, ErrOwnerRevoked) {
		t.Fatalf("expected ErrOwnerRevoked, got %v", err)
	}
	if !nativecommon.IsKind(f.engine.RemoveOwner(stranger), nativecommon.KindOwnerRevoked) {
		t.Fatalf("owner revoked kind not reported")
	}
}

func TestRegisterPortalIsIdempotent(t *testing.T) {
	f := newFixture(t, testParams())
	portal := addr(0xC0)
	f.registerUSDC(t, portal)
	f.registerUSDC(t, portal)
	regs, err := f.engine.Registrations()
	if err != nil {
		t.Fatalf("registrations: %v", err)
	}
	if len(regs) != 1 || regs[0].Asset != "USDC" {
		t.Fatalf("unexpected registrations %+v", regs)
	}
	ref, index, ok, err := f.engine.RegisteredVault(portal, "USDC")
	if err != nil || !ok || ref != addr(0xEE) || index != 0 {
		t.Fatalf("unexpected registered vault %s %d %v %v", ref.Hex(), index, ok, err)
	}
	if _, _, ok, _ := f.engine.RegisteredVault(portal, "DAI"); ok {
		t.Fatalf("portal registered for the wrong asset")
	}
}

func TestReRegisterReleasesPreviousAsset(t *testing.T) {
	f := newFixture(t, testParams())
	portal, other := addr(0xC0), addr(0xC1)
	caller := addr(0x05)
	f.contribute(t, addr(0x01), 1_000)
	f.registerUSDC(t, portal)
	if err := f.engine.RegisterPortal(f.owner, portal, "DAI", addr(0xEE), 1); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	f.activate(t)
	f.mint(t, "PSM", caller, 150_000)
	f.mint(t, "USDC", f.engine.Address(), 500)

	if _, err := f.engine.Convert(caller, "USDC", caller, big.NewInt(1), f.now+100); !errors.Is(err, ErrPortalNotRegistered) {
		t.Fatalf("expected ErrPortalNotRegistered for released asset, got %v", err)
	}
	if got := f.balance(t, "USDC", f.engine.Address()); got != 500 {
		t.Fatalf("pool balance moved: %d", got)
	}
	regs, err := f.engine.Registrations()
	if err != nil || len(regs) != 1 || regs[0].Asset != "DAI" || regs[0].PoolIndex != 1 {
		t.Fatalf("unexpected registrations %+v, %v", regs, err)
	}

	if err := f.engine.RegisterPortal(f.owner, other, "dai", addr(0xEE), 0); !errors.Is(err, ErrAssetClaimed) {
		t.Fatalf("expected ErrAssetClaimed, got %v", err)
	}
	if err := f.engine.RegisterPortal(f.owner, other, "USDC", addr(0xEE), 0); err != nil {
		t.Fatalf("register released asset: %v", err)
	}
	if _, _, ok, _ := f.engine.RegisteredVault(other, "USDC"); !ok {
		t.Fatalf("released asset not claimable by another portal")
	}
}

func TestCollectPortalProfitMovesRewardsIntoPool(t *testing.T) {
	f := newFixture(t, testParams())
	portal, funder := addr(0xC0), addr(0xF0)
	vault := addr(0xEE)
	f.registerUSDC(t, portal)
	if err := f.source.CreateVault(vault, 0, "USDC", "USDC"); err != nil {
		t.Fatalf("create vault: %v", err)
	}
	f.mint(t, "USDC", portal, 100)
	f.mint(t, "USDC", funder, 30)
	if err := f.source.Deposit(vault, 0, portal, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.source.NotifyReward(vault, 0, funder, big.NewInt(30)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	claimed, err := f.engine.CollectPortalProfit(portal)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if claimed.Int64() != 30 || f.balance(t, "USDC", f.engine.Address()) != 30 {
		t.Fatalf("unexpected profit collection %s", claimed)
	}
	if _, err := f.engine.CollectPortalProfit(addr(0xC9)); !errors.Is(err, ErrPortalNotRegistered) {
		t.Fatalf("expected ErrPortalNotRegistered, got %v", err)
	}
}

func TestPausedModuleRejectsCalls(t *testing.T) {
	f := newFixture(t, testParams())
	f.engine.SetPauses(nativecommon.StaticPauses{moduleName: true})
	f.mint(t, "PSM", addr(0x01), 10)
	if _, err := f.engine.ContributeFunding(addr(0x01), big.NewInt(10)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
