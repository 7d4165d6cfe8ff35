package yield

import (
	"math/big"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/events"
	"portalchain/core/types"
	nativecommon "portalchain/native/common"
)

var (
	errNilState            = nativecommon.NewError(nativecommon.KindState, "yield source: state not configured")
	ErrInvalidAmount       = nativecommon.NewError(nativecommon.KindInvalidAmount, "yield source: amount must be positive")
	ErrInvalidAddress      = nativecommon.NewError(nativecommon.KindInvalidAddress, "yield source: address must not be zero")
	ErrInvalidSymbol       = nativecommon.NewError(nativecommon.KindInvalidAddress, "yield source: symbol required")
	ErrVaultExists         = nativecommon.NewError(nativecommon.KindTokenExists, "yield source: vault already exists")
	ErrVaultNotFound       = nativecommon.NewError(nativecommon.KindNotFound, "yield source: vault not found")
	ErrInsufficientDeposit = nativecommon.NewError(nativecommon.KindInsufficientBalance, "yield source: withdrawal exceeds deposit")
)

// Ray scales the accumulated reward-per-share index.
var Ray = nativecommon.Pow10(27)

// Bank moves the principal and reward assets in and out of vault custody.
type Bank interface {
	Transfer(symbol string, from, to ethcommon.Address, amount *big.Int) error
}

// Source is a set of yield vaults. Depositors receive their principal back on
// withdrawal and accrue a pro-rata share of every reward notified to the
// vault while their deposit is outstanding.
type Source struct {
	state   kvState
	bank    Bank
	emitter events.Emitter
}

// NewSource constructs a yield source persisting through store and moving
// funds through bank.
func NewSource(store KVStore, bank Bank) *Source {
	return &Source{state: kvState{store: store}, bank: bank, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the source.
func (s *Source) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *Source) emit(evt *types.Event) {
	if s == nil || evt == nil || s.emitter == nil {
		return
	}
	s.emitter.Emit(events.Wrap(evt))
}

// CustodyAddress returns the account holding a vault's funds.
func CustodyAddress(ref ethcommon.Address, poolIndex uint64) ethcommon.Address {
	return nativecommon.ModuleAddress("yield/" + ref.Hex() + "/" + strconv.FormatUint(poolIndex, 10))
}

func (s *Source) loadVault(ref ethcommon.Address, poolIndex uint64) (*Vault, error) {
	if s == nil || s.state.store == nil || s.bank == nil {
		return nil, errNilState
	}
	v, ok, err := s.state.vault(ref, poolIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	return v, nil
}

// CreateVault opens a vault accepting principalSymbol deposits and paying
// rewards in rewardSymbol.
func (s *Source) CreateVault(ref ethcommon.Address, poolIndex uint64, principalSymbol, rewardSymbol string) error {
	if s == nil || s.state.store == nil {
		return errNilState
	}
	if ref == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	principalSymbol = strings.ToUpper(strings.TrimSpace(principalSymbol))
	rewardSymbol = strings.ToUpper(strings.TrimSpace(rewardSymbol))
	if principalSymbol == "" || rewardSymbol == "" {
		return ErrInvalidSymbol
	}
	if _, ok, err := s.state.vault(ref, poolIndex); err != nil {
		return err
	} else if ok {
		return ErrVaultExists
	}
	v := &Vault{
		Ref:             ref,
		PoolIndex:       poolIndex,
		Custody:         CustodyAddress(ref, poolIndex),
		PrincipalSymbol: principalSymbol,
		RewardSymbol:    rewardSymbol,
	}
	if err := s.state.putVault(v); err != nil {
		return err
	}
	s.emit(vaultEvent(EventTypeVaultCreated, v, ethcommon.Address{}, nil))
	return nil
}

// Vault returns the vault configuration and totals.
func (s *Source) Vault(ref ethcommon.Address, poolIndex uint64) (*Vault, error) {
	return s.loadVault(ref, poolIndex)
}

// DepositOf returns the principal deposited by depositor.
func (s *Source) DepositOf(ref ethcommon.Address, poolIndex uint64, depositor ethcommon.Address) (*big.Int, error) {
	if _, err := s.loadVault(ref, poolIndex); err != nil {
		return nil, err
	}
	p, err := s.state.position(ref, poolIndex, depositor)
	if err != nil {
		return nil, err
	}
	return p.Deposited, nil
}

// settle moves rewards earned since the last touch into Pending.
func settle(v *Vault, p *Position) error {
	earned, err := nativecommon.MulDiv(p.Deposited, v.AccRewardPerShare, Ray)
	if err != nil {
		return err
	}
	delta := nativecommon.SubFloor(earned, p.RewardDebt)
	pending, err := nativecommon.Add(p.Pending, delta)
	if err != nil {
		return err
	}
	p.Pending = pending
	return nil
}

func resetDebt(v *Vault, p *Position) error {
	debt, err := nativecommon.MulDiv(p.Deposited, v.AccRewardPerShare, Ray)
	if err != nil {
		return err
	}
	p.RewardDebt = debt
	return nil
}

// Deposit pulls amount of the principal asset from depositor into the vault.
func (s *Source) Deposit(ref ethcommon.Address, poolIndex uint64, depositor ethcommon.Address, amount *big.Int) error {
	v, err := s.loadVault(ref, poolIndex)
	if err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if depositor == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	p, err := s.state.position(ref, poolIndex, depositor)
	if err != nil {
		return err
	}
	if err := settle(v, p); err != nil {
		return err
	}
	deposited, err := nativecommon.Add(p.Deposited, amount)
	if err != nil {
		return err
	}
	total, err := nativecommon.Add(v.TotalDeposits, amount)
	if err != nil {
		return err
	}
	p.Deposited = deposited
	v.TotalDeposits = total
	if err := resetDebt(v, p); err != nil {
		return err
	}
	if err := s.state.putPosition(ref, poolIndex, depositor, p); err != nil {
		return err
	}
	if err := s.state.putVault(v); err != nil {
		return err
	}
	if err := s.bank.Transfer(v.PrincipalSymbol, depositor, v.Custody, amount); err != nil {
		return err
	}
	s.emit(vaultEvent(EventTypeDeposit, v, depositor, amount))
	return nil
}

// Withdraw returns amount of depositor's principal to recipient.
func (s *Source) Withdraw(ref ethcommon.Address, poolIndex uint64, depositor, recipient ethcommon.Address, amount *big.Int) error {
	v, err := s.loadVault(ref, poolIndex)
	if err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if recipient == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	p, err := s.state.position(ref, poolIndex, depositor)
	if err != nil {
		return err
	}
	if p.Deposited.Cmp(amount) < 0 {
		return ErrInsufficientDeposit
	}
	if err := settle(v, p); err != nil {
		return err
	}
	p.Deposited = new(big.Int).Sub(p.Deposited, amount)
	v.TotalDeposits = nativecommon.SubFloor(v.TotalDeposits, amount)
	if err := resetDebt(v, p); err != nil {
		return err
	}
	if err := s.state.putPosition(ref, poolIndex, depositor, p); err != nil {
		return err
	}
	if err := s.state.putVault(v); err != nil {
		return err
	}
	if err := s.bank.Transfer(v.PrincipalSymbol, v.Custody, recipient, amount); err != nil {
		return err
	}
	s.emit(vaultEvent(EventTypeWithdraw, v, depositor, amount))
	return nil
}

// Claimable returns the rewards depositor could claim now.
func (s *Source) Claimable(ref ethcommon.Address, poolIndex uint64, depositor ethcommon.Address) (*big.Int, error) {
	v, err := s.loadVault(ref, poolIndex)
	if err != nil {
		return nil, err
	}
	p, err := s.state.position(ref, poolIndex, depositor)
	if err != nil {
		return nil, err
	}
	if err := settle(v, p); err != nil {
		return nil, err
	}
	return p.Pending, nil
}

// Claim pays depositor's accrued rewards to recipient and returns the amount
// paid. A zero claim is not an error.
func (s *Source) Claim(ref ethcommon.Address, poolIndex uint64, depositor, recipient ethcommon.Address) (*big.Int, error) {
	v, err := s.loadVault(ref, poolIndex)
	if err != nil {
		return nil, err
	}
	if recipient == (ethcommon.Address{}) {
		return nil, ErrInvalidAddress
	}
	p, err := s.state.position(ref, poolIndex, depositor)
	if err != nil {
		return nil, err
	}
	if err := settle(v, p); err != nil {
		return nil, err
	}
	payout := p.Pending
	if payout.Sign() == 0 {
		return big.NewInt(0), nil
	}
	p.Pending = big.NewInt(0)
	if err := resetDebt(v, p); err != nil {
		return nil, err
	}
	if err := s.state.putPosition(ref, poolIndex, depositor, p); err != nil {
		return nil, err
	}
	if err := s.bank.Transfer(v.RewardSymbol, v.Custody, recipient, payout); err != nil {
		return nil, err
	}
	s.emit(vaultEvent(EventTypeClaim, v, depositor, payout))
	return payout, nil
}

// NotifyReward funds the vault with amount of the reward asset taken from
// funder. Rewards notified while nothing is deposited are held back and
// distributed with the next notification that finds deposits.
func (s *Source) NotifyReward(ref ethcommon.Address, poolIndex uint64, funder ethcommon.Address, amount *big.Int) error {
	v, err := s.loadVault(ref, poolIndex)
	if err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	total, err := nativecommon.Add(v.Undistributed, amount)
	if err != nil {
		return err
	}
	if v.TotalDeposits.Sign() == 0 {
		v.Undistributed = total
	} else {
		increment, err := nativecommon.MulDiv(total, Ray, v.TotalDeposits)
		if err != nil {
			return err
		}
		distributed, err := nativecommon.MulDiv(increment, v.TotalDeposits, Ray)
		if err != nil {
			return err
		}
		acc, err := nativecommon.Add(v.AccRewardPerShare, increment)
		if err != nil {
			return err
		}
		v.AccRewardPerShare = acc
		v.Undistributed = nativecommon.SubFloor(total, distributed)
	}
	if err := s.state.putVault(v); err != nil {
		return err
	}
	if err := s.bank.Transfer(v.RewardSymbol, funder, v.Custody, amount); err != nil {
		return err
	}
	s.emit(vaultEvent(EventTypeReward, v, funder, amount))
	return nil
}
