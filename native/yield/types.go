package yield

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Vault is a deposit venue addressed by (Ref, PoolIndex). Rewards are
// distributed pro rata through AccRewardPerShare, scaled by Ray.
type Vault struct {
	Ref               ethcommon.Address
	PoolIndex         uint64
	Custody           ethcommon.Address
	PrincipalSymbol   string
	RewardSymbol      string
	TotalDeposits     *big.Int
	AccRewardPerShare *big.Int
	Undistributed     *big.Int
}

// Position is a depositor's share of a vault.
type Position struct {
	Deposited  *big.Int
	RewardDebt *big.Int
	Pending    *big.Int
}

func (v *Vault) ensureDefaults() {
	if v.TotalDeposits == nil {
		v.TotalDeposits = big.NewInt(0)
	}
	if v.AccRewardPerShare == nil {
		v.AccRewardPerShare = big.NewInt(0)
	}
	if v.Undistributed == nil {
		v.Undistributed = big.NewInt(0)
	}
}

func (p *Position) ensureDefaults() {
	if p.Deposited == nil {
		p.Deposited = big.NewInt(0)
	}
	if p.RewardDebt == nil {
		p.RewardDebt = big.NewInt(0)
	}
	if p.Pending == nil {
		p.Pending = big.NewInt(0)
	}
}

func (p *Position) empty() bool {
	return p.Deposited.Sign() == 0 && p.Pending.Sign() == 0
}
