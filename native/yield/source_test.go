package yield

import (
	"errors"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/state"
	"portalchain/native/token"
	"portalchain/storage"
)

func addr(last byte) ethcommon.Address {
	var out ethcommon.Address
	out[19] = last
	return out
}

type fixture struct {
	source    *Source
	ledger    *token.Ledger
	authority ethcommon.Address
	vault     ethcommon.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(manager)
	authority := addr(0xA0)
	for _, symbol := range []string{"USDC", "RWD"} {
		if err := ledger.CreateToken(symbol, symbol, 6, authority); err != nil {
			t.Fatalf("create %s: %v", symbol, err)
		}
	}
	source := NewSource(manager, ledger)
	vault := addr(0xEE)
	if err := source.CreateVault(vault, 0, "usdc", "rwd"); err != nil {
		t.Fatalf("create vault: %v", err)
	}
	return &fixture{source: source, ledger: ledger, authority: authority, vault: vault}
}

func (f *fixture) fund(t *testing.T, symbol string, to ethcommon.Address, amount int64) {
	t.Helper()
	if err := f.ledger.Mint(symbol, f.authority, to, big.NewInt(amount)); err != nil {
		t.Fatalf("mint %s: %v", symbol, err)
	}
}

func TestRewardsSplitProRata(t *testing.T) {
	f := newFixture(t)
	alice, bob, funder := addr(0x01), addr(0x02), addr(0x03)
	f.fund(t, "USDC", alice, 100)
	f.fund(t, "USDC", bob, 300)
	f.fund(t, "RWD", funder, 400)

	if err := f.source.Deposit(f.vault, 0, alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if err := f.source.Deposit(f.vault, 0, bob, big.NewInt(300)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	if err := f.source.NotifyReward(f.vault, 0, funder, big.NewInt(400)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	claimable, err := f.source.Claimable(f.vault, 0, alice)
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	if claimable.Int64() != 100 {
		t.Fatalf("unexpected alice claimable %s", claimable)
	}
	paid, err := f.source.Claim(f.vault, 0, bob, bob)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Int64() != 300 {
		t.Fatalf("unexpected bob payout %s", paid)
	}
	again, err := f.source.Claim(f.vault, 0, bob, bob)
	if err != nil || again.Sign() != 0 {
		t.Fatalf("second claim should pay nothing: %s %v", again, err)
	}
	balance, _ := f.ledger.BalanceOf("RWD", bob)
	if balance.Int64() != 300 {
		t.Fatalf("unexpected bob reward balance %s", balance)
	}
}

func TestWithdrawReturnsPrincipal(t *testing.T) {
	f := newFixture(t)
	alice := addr(0x01)
	f.fund(t, "USDC", alice, 50)
	if err := f.source.Deposit(f.vault, 0, alice, big.NewInt(50)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.source.Withdraw(f.vault, 0, alice, alice, big.NewInt(51)); !errors.Is(err, ErrInsufficientDeposit) {
		t.Fatalf("expected ErrInsufficientDeposit, got %v", err)
	}
	if err := f.source.Withdraw(f.vault, 0, alice, alice, big.NewInt(50)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	balance, _ := f.ledger.BalanceOf("USDC", alice)
	if balance.Int64() != 50 {
		t.Fatalf("unexpected balance %s", balance)
	}
	deposited, err := f.source.DepositOf(f.vault, 0, alice)
	if err != nil || deposited.Sign() != 0 {
		t.Fatalf("unexpected deposit %s err %v", deposited, err)
	}
}

func TestRewardBeforeDepositsIsHeldBack(t *testing.T) {
	f := newFixture(t)
	alice, funder := addr(0x01), addr(0x03)
	f.fund(t, "USDC", alice, 10)
	f.fund(t, "RWD", funder, 30)
	if err := f.source.NotifyReward(f.vault, 0, funder, big.NewInt(20)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := f.source.Deposit(f.vault, 0, alice, big.NewInt(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.source.NotifyReward(f.vault, 0, funder, big.NewInt(10)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	claimable, err := f.source.Claimable(f.vault, 0, alice)
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	if claimable.Int64() != 30 {
		t.Fatalf("unexpected claimable %s", claimable)
	}
}

func TestUnknownVault(t *testing.T) {
	f := newFixture(t)
	if err := f.source.Deposit(addr(0x99), 1, addr(1), big.NewInt(1)); !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("expected ErrVaultNotFound, got %v", err)
	}
	if err := f.source.CreateVault(f.vault, 0, "USDC", "RWD"); !errors.Is(err, ErrVaultExists) {
		t.Fatalf("expected ErrVaultExists, got %v", err)
	}
}
