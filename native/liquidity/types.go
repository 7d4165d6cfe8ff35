package liquidity

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Phase is the bootstrap stage of the shared liquidity pool.
type Phase uint8

const (
	// PhaseFunding accepts contributions and withdrawals only.
	PhaseFunding Phase = iota
	// PhaseActive serves conversions, energy trades and reward redemptions.
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseFunding:
		return "funding"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// Pool is the persisted state of the liquidity engine.
type Pool struct {
	Phase                   Phase
	BondingSymbol           string
	FundingBalance          *big.Int
	FundingRewardPool       *big.Int
	FundingRewardsCollected *big.Int
	FundingMaxRewards       *big.Int
	Owner                   ethcommon.Address
	OwnerRemoved            bool
	CreatedAt               uint64
	ActivatedAt             uint64
}

func (p *Pool) ensureDefaults() {
	if p.FundingBalance == nil {
		p.FundingBalance = big.NewInt(0)
	}
	if p.FundingRewardPool == nil {
		p.FundingRewardPool = big.NewInt(0)
	}
	if p.FundingRewardsCollected == nil {
		p.FundingRewardsCollected = big.NewInt(0)
	}
	if p.FundingMaxRewards == nil {
		p.FundingMaxRewards = big.NewInt(0)
	}
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.FundingBalance = new(big.Int).Set(p.FundingBalance)
	clone.FundingRewardPool = new(big.Int).Set(p.FundingRewardPool)
	clone.FundingRewardsCollected = new(big.Int).Set(p.FundingRewardsCollected)
	clone.FundingMaxRewards = new(big.Int).Set(p.FundingMaxRewards)
	return &clone
}

// Registration authorises a portal to trade against the pool for one
// principal asset. VaultRef and PoolIndex are passed through to the yield
// source untouched.
type Registration struct {
	Portal    ethcommon.Address
	Asset     string
	VaultRef  ethcommon.Address
	PoolIndex uint64
}
