package portal

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Portal is the persisted state of a portal.
type Portal struct {
	PrincipalSymbol        string
	PrincipalDecimals      uint8
	Native                 bool
	TargetConstant         *big.Int
	MaxLockDuration        uint64
	LockDurationUpdateable bool
	CreatedAt              uint64
	TotalPrincipalStaked   *big.Int
	EnergySymbol           string
	PositionCollection     string
}

func (p *Portal) ensureDefaults() {
	if p.TargetConstant == nil {
		p.TargetConstant = big.NewInt(0)
	}
	if p.TotalPrincipalStaked == nil {
		p.TotalPrincipalStaked = big.NewInt(0)
	}
}

// Clone returns a deep copy of the portal.
func (p *Portal) Clone() *Portal {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TargetConstant = new(big.Int).Set(p.TargetConstant)
	clone.TotalPrincipalStaked = new(big.Int).Set(p.TotalPrincipalStaked)
	return &clone
}

// Account is a user's time-weighted stake and energy balance.
type Account struct {
	StakedBalance       *big.Int
	PortalEnergy        *big.Int
	LastUpdateTime      uint64
	LastMaxLockDuration uint64
}

func (a *Account) ensureDefaults() {
	if a.StakedBalance == nil {
		a.StakedBalance = big.NewInt(0)
	}
	if a.PortalEnergy == nil {
		a.PortalEnergy = big.NewInt(0)
	}
}

// Empty reports whether the account holds neither stake nor energy.
func (a *Account) Empty() bool {
	return a == nil || (a.StakedBalance.Sign() == 0 && a.PortalEnergy.Sign() == 0)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.StakedBalance = new(big.Int).Set(a.StakedBalance)
	clone.PortalEnergy = new(big.Int).Set(a.PortalEnergy)
	return &clone
}

// AccountUpdate is an account recomputed at the current time with a pending
// stake delta applied, together with the derived limits.
type AccountUpdate struct {
	User                ethcommon.Address
	Account             *Account
	MaxStakeDebt        *big.Int
	AvailableToWithdraw *big.Int
}

// Snapshot is the payload serialised into a position record.
type Snapshot struct {
	StakedBalance       *big.Int
	PortalEnergy        *big.Int
	LastUpdateTime      uint64
	LastMaxLockDuration uint64
}
