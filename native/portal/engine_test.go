package portal

import (
	"errors"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/events"
	"portalchain/core/state"
	nativecommon "portalchain/native/common"
	"portalchain/native/liquidity"
	"portalchain/native/position"
	"portalchain/native/token"
	"portalchain/native/yield"
	"portalchain/storage"
)

func addr(last byte) ethcommon.Address {
	var out ethcommon.Address
	out[19] = last
	return out
}

var (
	targetConstant = big.NewInt(1_000_000_000_000_000)
	vaultRef       = addr(0xEE)
)

type fixture struct {
	manager   *state.Manager
	ledger    *token.Ledger
	registry  *position.Registry
	source    *yield.Source
	lp        *liquidity.Engine
	portal    *Engine
	recorder  *events.Recorder
	authority ethcommon.Address
	owner     ethcommon.Address
	now       int64
}

type fixtureOptions struct {
	activate bool
	register bool
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	f := &fixture{
		manager:   manager,
		ledger:    token.NewLedger(manager),
		registry:  position.NewRegistry(manager),
		recorder:  &events.Recorder{},
		authority: addr(0xA0),
		owner:     addr(0xB0),
		now:       1_000,
	}
	clock := func() int64 { return f.now }
	for _, symbol := range []string{"PSM", "USDC", "ETH"} {
		if err := f.ledger.CreateToken(symbol, symbol, 18, f.authority); err != nil {
			t.Fatalf("create %s: %v", symbol, err)
		}
	}
	f.source = yield.NewSource(manager, f.ledger)
	if err := f.source.CreateVault(vaultRef, 0, "USDC", "USDC"); err != nil {
		t.Fatalf("create vault: %v", err)
	}

	lpParams := liquidity.DefaultParams()
	lpParams.FundingPhaseDuration = 100
	lpParams.FundingMinAmount = big.NewInt(0)
	lpParams.ConvertAmount = big.NewInt(1_000)
	f.lp = liquidity.NewEngine(lpParams)
	f.lp.SetState(manager)
	f.lp.SetBank(f.ledger)
	f.lp.SetYieldClaimer(f.source)
	f.lp.SetNowFunc(clock)
	if err := f.lp.Initialize(f.owner); err != nil {
		t.Fatalf("initialize liquidity: %v", err)
	}
	if err := f.lp.CreateBondingToken(); err != nil {
		t.Fatalf("create bonding: %v", err)
	}

	f.portal = f.newPortal(t, DefaultParams("USDC", targetConstant))
	if opts.register {
		if err := f.lp.RegisterPortal(f.owner, f.portal.Address(), "USDC", vaultRef, 0); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if opts.activate {
		f.mint(t, "PSM", f.owner, 1_000_000)
		if _, err := f.lp.ContributeFunding(f.owner, big.NewInt(1_000_000)); err != nil {
			t.Fatalf("contribute: %v", err)
		}
		f.now += 100
		if err := f.lp.ActivateLP(f.owner); err != nil {
			t.Fatalf("activate: %v", err)
		}
	}
	return f
}

func (f *fixture) newPortal(t *testing.T, params Params) *Engine {
	t.Helper()
	engine := NewEngine(params)
	engine.SetState(f.manager)
	engine.SetBank(f.ledger)
	engine.SetPositionRegistry(f.registry)
	engine.SetYieldSource(f.source)
	engine.SetLiquidity(f.lp)
	engine.SetEmitter(f.recorder)
	engine.SetNowFunc(func() int64 { return f.now })
	if err := engine.Initialize(); err != nil {
		t.Fatalf("initialize portal: %v", err)
	}
	if err := engine.CreateEnergyToken(); err != nil {
		t.Fatalf("create energy token: %v", err)
	}
	if err := engine.CreatePositionCollection(); err != nil {
		t.Fatalf("create position collection: %v", err)
	}
	return engine
}

// atomic reverts state written by fn when it fails, as the runtime does.
func (f *fixture) atomic(fn func() error) error {
	snapshot := f.manager.Snapshot()
	if err := fn(); err != nil {
		f.manager.RevertToSnapshot(snapshot)
		return err
	}
	return nil
}

func (f *fixture) mint(t *testing.T, symbol string, to ethcommon.Address, amount int64) {
	t.Helper()
	if err := f.ledger.Mint(symbol, f.authority, to, big.NewInt(amount)); err != nil {
		t.Fatalf("mint %s: %v", symbol, err)
	}
}

func (f *fixture) stake(t *testing.T, who ethcommon.Address, amount int64) *AccountUpdate {
	t.Helper()
	f.mint(t, "USDC", who, amount)
	update, err := f.portal.Stake(who, big.NewInt(amount), nil)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	return update
}

func (f *fixture) account(t *testing.T, who ethcommon.Address) *AccountUpdate {
	t.Helper()
	update, err := f.portal.GetUpdateAccount(who, nil, true)
	if err != nil {
		t.Fatalf("get update account: %v", err)
	}
	return update
}

func sameAccount(a, b *AccountUpdate) bool {
	return a.Account.StakedBalance.Cmp(b.Account.StakedBalance) == 0 &&
		a.Account.PortalEnergy.Cmp(b.Account.PortalEnergy) == 0 &&
		a.AvailableToWithdraw.Cmp(b.AvailableToWithdraw) == 0 &&
		a.MaxStakeDebt.Cmp(b.MaxStakeDebt) == 0
}

func TestStakeCreditsFullEnergy(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice := addr(0x01)
	update := f.stake(t, alice, 1_000_000)

	want := new(big.Int).Div(new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(DefaultMaxLockDuration)), big.NewInt(SecondsPerYear))
	if update.Account.PortalEnergy.Cmp(want) != 0 {
		t.Fatalf("unexpected energy: want %s got %s", want, update.Account.PortalEnergy)
	}
	if update.AvailableToWithdraw.Int64() != 1_000_000 {
		t.Fatalf("unexpected available %s", update.AvailableToWithdraw)
	}
	deposited, err := f.source.DepositOf(vaultRef, 0, f.portal.Address())
	if err != nil || deposited.Int64() != 1_000_000 {
		t.Fatalf("principal not forwarded to yield source: %s %v", deposited, err)
	}
	p, _ := f.portal.Portal()
	if p.TotalPrincipalStaked.Int64() != 1_000_000 {
		t.Fatalf("unexpected total staked %s", p.TotalPrincipalStaked)
	}
}

func TestStakeRequiresRegistration(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	alice := addr(0x01)
	f.mint(t, "USDC", alice, 10)
	if _, err := f.portal.Stake(alice, big.NewInt(10), nil); !errors.Is(err, ErrPortalNotRegistered) {
		t.Fatalf("expected ErrPortalNotRegistered, got %v", err)
	}
}

func TestStakeAttachedValueRules(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice := addr(0x01)
	f.mint(t, "USDC", alice, 10)
	if _, err := f.portal.Stake(alice, big.NewInt(10), big.NewInt(1)); !errors.Is(err, ErrNativeTokenNotAllowed) {
		t.Fatalf("expected ErrNativeTokenNotAllowed, got %v", err)
	}
	if _, err := f.portal.Stake(alice, big.NewInt(0), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	params := DefaultParams("ETH", targetConstant)
	params.Native = true
	native := f.newPortal(t, params)
	if err := f.source.CreateVault(vaultRef, 1, "ETH", "ETH"); err != nil {
		t.Fatalf("create vault: %v", err)
	}
	if err := f.lp.RegisterPortal(f.owner, native.Address(), "ETH", vaultRef, 1); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.mint(t, "ETH", alice, 50)
	if _, err := native.Stake(alice, big.NewInt(50), big.NewInt(49)); !errors.Is(err, ErrAttachedValueMismatch) {
		t.Fatalf("expected ErrAttachedValueMismatch, got %v", err)
	}
	if _, err := native.Stake(alice, big.NewInt(50), big.NewInt(50)); err != nil {
		t.Fatalf("native stake: %v", err)
	}
}

func TestStakeUnstakeRoundTrip(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice := addr(0x01)
	f.stake(t, alice, 500_000)
	f.now += 1_000

	before := f.account(t, alice)
	f.stake(t, alice, 200_000)
	if _, err := f.portal.Unstake(alice, big.NewInt(200_000)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	after := f.account(t, alice)
	if !sameAccount(before, after) {
		t.Fatalf("round trip changed account: before %+v after %+v", before.Account, after.Account)
	}
	balance, _ := f.ledger.BalanceOf("USDC", alice)
	if balance.Int64() != 200_000 {
		t.Fatalf("unexpected principal returned %s", balance)
	}
}

func TestUnstakeRejectsAboveAvailable(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice := addr(0x01)
	f.stake(t, alice, 1_000_000)
	if _, err := f.portal.MintPortalEnergyToken(alice, alice, big.NewInt(100_000)); err != nil {
		t.Fatalf("mint energy token: %v", err)
	}
	before := f.account(t, alice)
	if before.AvailableToWithdraw.Cmp(before.Account.StakedBalance) >= 0 {
		t.Fatalf("energy debt should lock principal")
	}
	tooMuch := new(big.Int).Add(before.AvailableToWithdraw, big.NewInt(1))
	if _, err := f.portal.Unstake(alice, tooMuch); !errors.Is(err, ErrInsufficientToWithdraw) {
		t.Fatalf("expected ErrInsufficientToWithdraw, got %v", err)
	}
	if !sameAccount(before, f.account(t, alice)) {
		t.Fatalf("rejected unstake mutated the account")
	}
	if _, err := f.portal.Unstake(alice, before.AvailableToWithdraw); err != nil {
		t.Fatalf("unstake available: %v", err)
	}
	if _, err := f.portal.Unstake(addr(0x09), big.NewInt(1)); !errors.Is(err, ErrEmptyAccount) {
		t.Fatalf("expected ErrEmptyAccount, got %v", err)
	}
}

func TestForceUnstakeAllBurnsDeficit(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice, bob := addr(0x01), addr(0x02)
	f.stake(t, alice, 1_000_000)
	f.stake(t, bob, 1_000_000)
	if _, err := f.portal.MintPortalEnergyToken(alice, alice, big.NewInt(100_000)); err != nil {
		t.Fatalf("mint energy token: %v", err)
	}
	quote, err := f.portal.QuoteForceUnstakeAll(alice)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Int64() != 100_000 {
		t.Fatalf("unexpected deficit %s", quote)
	}
	if err := f.atomic(func() error {
		_, err := f.portal.ForceUnstakeAll(alice)
		return err
	}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := f.portal.MintPortalEnergyToken(bob, alice, big.NewInt(10_000)); err != nil {
		t.Fatalf("mint energy token for alice: %v", err)
	}
	if err := f.atomic(func() error {
		_, err := f.portal.ForceUnstakeAll(alice)
		return err
	}); !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if f.account(t, alice).Account.StakedBalance.Int64() != 1_000_000 {
		t.Fatalf("failed force unstake leaked state")
	}
	if err := f.ledger.Approve(f.portal.params.EnergySymbol, alice, f.portal.Address(), big.NewInt(100_000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	burned, err := f.portal.ForceUnstakeAll(alice)
	if err != nil {
		t.Fatalf("force unstake: %v", err)
	}
	if burned.Int64() != 100_000 {
		t.Fatalf("unexpected burned %s", burned)
	}
	principal, _ := f.ledger.BalanceOf("USDC", alice)
	tokens, _ := f.ledger.BalanceOf(f.portal.params.EnergySymbol, alice)
	if principal.Int64() != 1_000_000 || tokens.Int64() != 98_000+9_800-100_000 {
		t.Fatalf("unexpected balances principal %s tokens %s", principal, tokens)
	}
	if !f.account(t, alice).Account.Empty() {
		t.Fatalf("account should be cleared")
	}
}

func TestForceUnstakeAllKeepsEnergyAboveCeiling(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice, bob := addr(0x01), addr(0x02)
	staked := f.stake(t, alice, 1_000_000)
	f.stake(t, bob, 1_000_000)
	if _, err := f.portal.MintPortalEnergyToken(bob, bob, big.NewInt(10_000)); err != nil {
		t.Fatalf("mint energy token: %v", err)
	}
	if err := f.portal.BurnPortalEnergyToken(bob, alice, big.NewInt(9_800)); err != nil {
		t.Fatalf("burn energy token: %v", err)
	}
	before := f.account(t, alice)
	if want := new(big.Int).Add(staked.MaxStakeDebt, big.NewInt(9_800)); before.Account.PortalEnergy.Cmp(want) != 0 {
		t.Fatalf("energy = %s, want %s", before.Account.PortalEnergy, want)
	}

	burned, err := f.portal.ForceUnstakeAll(alice)
	if err != nil {
		t.Fatalf("force unstake: %v", err)
	}
	if burned.Sign() != 0 {
		t.Fatalf("no deficit should be burned, got %s", burned)
	}
	after := f.account(t, alice)
	if after.Account.StakedBalance.Sign() != 0 || after.Account.PortalEnergy.Int64() != 9_800 {
		t.Fatalf("unexpected account after force unstake %+v", after.Account)
	}
	if principal, _ := f.ledger.BalanceOf("USDC", alice); principal.Int64() != 1_000_000 {
		t.Fatalf("principal not returned: %s", principal)
	}
}

func TestEnergyRegeneratesUpToCeiling(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice := addr(0x01)
	const stake = 1_000_000_000_000
	staked := f.stake(t, alice, stake)
	ceiling := big.NewInt(246_575_342_465)
	if staked.MaxStakeDebt.Cmp(ceiling) != 0 || staked.Account.PortalEnergy.Cmp(ceiling) != 0 {
		t.Fatalf("unexpected ceiling %s energy %s", staked.MaxStakeDebt, staked.Account.PortalEnergy)
	}
	if _, err := f.portal.MintPortalEnergyToken(alice, alice, big.NewInt(10_000_000_000)); err != nil {
		t.Fatalf("spend energy: %v", err)
	}

	cases := []struct {
		advance   int64
		energy    int64
		available int64
	}{
		{advance: 0, energy: 236_575_342_465, available: 959_444_444_444},
		// 0.005 years regenerates stake/200 energy.
		{advance: 157_680, energy: 241_575_342_465, available: 979_722_222_222},
		{advance: SecondsPerYear / 10, energy: 246_575_342_465, available: stake},
		{advance: SecondsPerYear, energy: 246_575_342_465, available: stake},
	}
	for _, tc := range cases {
		f.now += tc.advance
		update := f.account(t, alice)
		if update.Account.PortalEnergy.Int64() != tc.energy {
			t.Fatalf("after +%ds energy = %s, want %d", tc.advance, update.Account.PortalEnergy, tc.energy)
		}
		if update.AvailableToWithdraw.Int64() != tc.available {
			t.Fatalf("after +%ds available = %s, want %d", tc.advance, update.AvailableToWithdraw, tc.available)
		}
		if update.MaxStakeDebt.Cmp(ceiling) != 0 {
			t.Fatalf("ceiling moved to %s", update.MaxStakeDebt)
		}
	}

	// Persist the regenerated energy and confirm unstaking is no longer limited.
	if _, err := f.portal.Unstake(alice, big.NewInt(stake)); err != nil {
		t.Fatalf("unstake after regeneration: %v", err)
	}
}

func TestQuoteBuyFailsWithoutReserve(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice := addr(0x01)
	if _, err := f.portal.QuoteBuyPortalEnergy(big.NewInt(1_000)); !errors.Is(err, nativecommon.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	f.mint(t, "PSM", alice, 1_000)
	_, err := f.portal.BuyPortalEnergy(alice, alice, big.NewInt(1_000), big.NewInt(1), f.now+10)
	if !nativecommon.IsKind(err, nativecommon.KindDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func curve(t *testing.T, f *fixture) (*big.Int, *big.Int) {
	t.Helper()
	reserve, err := f.lp.PortalReserve()
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	energy := new(big.Int).Quo(targetConstant, reserve)
	product := new(big.Int).Mul(reserve, energy)
	slack := new(big.Int).Sub(targetConstant, product)
	if slack.Sign() < 0 || slack.Cmp(reserve) >= 0 {
		t.Fatalf("curve invariant broken: reserve %s energy %s", reserve, energy)
	}
	return reserve, energy
}

func TestBuySellKeepConstantProduct(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true, activate: true})
	alice := addr(0x01)
	f.mint(t, "PSM", alice, 1_000)

	reserveBefore, energyBefore := curve(t, f)
	quote, err := f.portal.QuoteBuyPortalEnergy(big.NewInt(1_000))
	if err != nil {
		t.Fatalf("quote buy: %v", err)
	}
	bought, err := f.portal.BuyPortalEnergy(alice, alice, big.NewInt(1_000), quote, f.now+10)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if bought.Cmp(quote) != 0 {
		t.Fatalf("buy diverged from quote: %s vs %s", bought, quote)
	}
	reserveAfter, energyAfter := curve(t, f)
	if new(big.Int).Sub(reserveAfter, reserveBefore).Int64() != 1_000 {
		t.Fatalf("reserve did not grow by the amount paid")
	}
	moved := new(big.Int).Sub(energyBefore, bought)
	diff := new(big.Int).Sub(moved, energyAfter)
	if diff.CmpAbs(big.NewInt(1)) > 0 {
		t.Fatalf("energy side off curve: %s vs %s", moved, energyAfter)
	}
	if f.account(t, alice).Account.PortalEnergy.Cmp(bought) != 0 {
		t.Fatalf("bought energy not credited")
	}

	sold, err := f.portal.SellPortalEnergy(alice, alice, bought, big.NewInt(1), f.now+10)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if sold.Cmp(big.NewInt(1_000)) > 0 {
		t.Fatalf("round trip returned more than paid: %s", sold)
	}
	curve(t, f)
	balance, _ := f.ledger.BalanceOf("PSM", alice)
	if balance.Cmp(sold) != 0 {
		t.Fatalf("sale proceeds not paid: %s", balance)
	}
}

func TestTradeValidation(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true, activate: true})
	alice := addr(0x01)
	f.mint(t, "PSM", alice, 1_000)
	deadline := f.now + 10
	if _, err := f.portal.BuyPortalEnergy(alice, alice, big.NewInt(0), big.NewInt(1), deadline); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.portal.BuyPortalEnergy(alice, alice, big.NewInt(10), big.NewInt(0), deadline); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero minimum, got %v", err)
	}
	if _, err := f.portal.BuyPortalEnergy(alice, ethcommon.Address{}, big.NewInt(10), big.NewInt(1), deadline); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := f.portal.BuyPortalEnergy(alice, alice, big.NewInt(10), big.NewInt(1), f.now-1); !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("expected ErrDeadlineExpired, got %v", err)
	}
	quote, _ := f.portal.QuoteBuyPortalEnergy(big.NewInt(10))
	if _, err := f.portal.BuyPortalEnergy(alice, alice, big.NewInt(10), new(big.Int).Add(quote, big.NewInt(1)), deadline); !errors.Is(err, ErrInvalidOutput) {
		t.Fatalf("expected ErrInvalidOutput, got %v", err)
	}
	if _, err := f.portal.SellPortalEnergy(alice, alice, big.NewInt(10), big.NewInt(1), deadline); !errors.Is(err, ErrEmptyAccount) {
		t.Fatalf("expected ErrEmptyAccount, got %v", err)
	}
	if _, err := f.portal.BuyPortalEnergy(alice, alice, big.NewInt(10), big.NewInt(1), deadline); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := f.portal.SellPortalEnergy(alice, alice, new(big.Int).Add(quote, big.NewInt(1)), big.NewInt(1), deadline); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestEnergyTokenMintAndBurn(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice, bob, carol := addr(0x01), addr(0x02), addr(0x03)
	if err := f.portal.CreateEnergyToken(); !errors.Is(err, ErrEnergyTokenExists) {
		t.Fatalf("expected ErrEnergyTokenExists, got %v", err)
	}
	before := f.stake(t, alice, 1_000_000)
	minted, err := f.portal.MintPortalEnergyToken(alice, bob, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if minted.Int64() != 9_800 {
		t.Fatalf("unexpected tokens minted %s", minted)
	}
	after := f.account(t, alice)
	spent := new(big.Int).Sub(before.Account.PortalEnergy, after.Account.PortalEnergy)
	if spent.Int64() != 10_000 {
		t.Fatalf("unexpected energy spent %s", spent)
	}
	if _, err := f.portal.MintPortalEnergyToken(alice, bob, new(big.Int).Add(after.Account.PortalEnergy, big.NewInt(1))); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := f.portal.BurnPortalEnergyToken(bob, carol, big.NewInt(9_801)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := f.portal.BurnPortalEnergyToken(bob, carol, big.NewInt(9_800)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	f.now += 10_000
	carolAccount := f.account(t, carol)
	if carolAccount.Account.PortalEnergy.Int64() != 9_800 || carolAccount.Account.StakedBalance.Sign() != 0 {
		t.Fatalf("credited energy not preserved: %+v", carolAccount.Account)
	}
}

func TestPositionRoundTripRestoresAccount(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice, bob := addr(0x01), addr(0x02)
	if _, err := f.portal.MintPosition(alice, alice); !errors.Is(err, ErrEmptyAccount) {
		t.Fatalf("expected ErrEmptyAccount, got %v", err)
	}
	f.stake(t, alice, 1_000_000)
	if _, err := f.portal.MintPortalEnergyToken(alice, alice, big.NewInt(5_000)); err != nil {
		t.Fatalf("mint energy token: %v", err)
	}
	before := f.account(t, alice)

	id, err := f.portal.MintPosition(alice, alice)
	if err != nil {
		t.Fatalf("mint position: %v", err)
	}
	if !f.account(t, alice).Account.Empty() {
		t.Fatalf("account not cleared after minting a position")
	}
	if _, err := f.portal.RedeemPosition(bob, id); !errors.Is(err, ErrNotPositionOwner) {
		t.Fatalf("expected ErrNotPositionOwner, got %v", err)
	}
	restored, err := f.portal.RedeemPosition(alice, id)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !sameAccount(before, restored) || !sameAccount(before, f.account(t, alice)) {
		t.Fatalf("round trip changed account: before %+v after %+v", before.Account, restored.Account)
	}
	if _, err := f.portal.RedeemPosition(alice, id); !errors.Is(err, position.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestPositionRedeemMergesAdditively(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice, bob := addr(0x01), addr(0x02)
	carried := f.stake(t, alice, 1_000_000)
	id, err := f.portal.MintPosition(alice, bob)
	if err != nil {
		t.Fatalf("mint position: %v", err)
	}
	own := f.stake(t, bob, 500_000)
	merged, err := f.portal.RedeemPosition(bob, id)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	wantStake := new(big.Int).Add(carried.Account.StakedBalance, own.Account.StakedBalance)
	wantEnergy := new(big.Int).Add(carried.Account.PortalEnergy, own.Account.PortalEnergy)
	if merged.Account.StakedBalance.Cmp(wantStake) != 0 || merged.Account.PortalEnergy.Cmp(wantEnergy) != 0 {
		t.Fatalf("unexpected merge %+v", merged.Account)
	}
	ceiling, _ := energyFor(wantStake, DefaultMaxLockDuration, 18)
	if merged.MaxStakeDebt.Cmp(ceiling) != 0 {
		t.Fatalf("ceiling not recomputed from merged stake: %s vs %s", merged.MaxStakeDebt, ceiling)
	}
}

func TestUpdateMaxLockDuration(t *testing.T) {
	f := newFixture(t, fixtureOptions{register: true})
	alice := addr(0x01)
	f.stake(t, alice, 1_000_000)
	p, _ := f.portal.Portal()

	f.now = int64(p.CreatedAt) + 1_000
	duration, err := f.portal.UpdateMaxLockDuration()
	if err != nil || duration != DefaultMaxLockDuration {
		t.Fatalf("early update should keep the duration: %d %v", duration, err)
	}
	f.now = int64(p.CreatedAt) + 5_000_000
	duration, err = f.portal.UpdateMaxLockDuration()
	if err != nil || duration != 10_000_000 {
		t.Fatalf("unexpected duration %d %v", duration, err)
	}
	ceiling, _ := energyFor(big.NewInt(1_000_000), 10_000_000, 18)
	update := f.account(t, alice)
	if update.Account.PortalEnergy.Cmp(ceiling) != 0 || update.MaxStakeDebt.Cmp(ceiling) != 0 {
		t.Fatalf("energy did not follow the raised ceiling: %s vs %s", update.Account.PortalEnergy, ceiling)
	}
	f.now = int64(p.CreatedAt) + TerminalMaxLockDuration
	duration, err = f.portal.UpdateMaxLockDuration()
	if err != nil || duration != TerminalMaxLockDuration {
		t.Fatalf("unexpected terminal duration %d %v", duration, err)
	}
	if _, err := f.portal.UpdateMaxLockDuration(); !errors.Is(err, ErrDurationLocked) {
		t.Fatalf("expected ErrDurationLocked, got %v", err)
	}
}

func TestCreateOnceResources(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	if err := f.portal.CreatePositionCollection(); !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
	if err := f.portal.Initialize(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if !nativecommon.IsKind(f.portal.CreateEnergyToken(), nativecommon.KindTokenExists) {
		t.Fatalf("energy token recreation must report TokenExists")
	}
}
