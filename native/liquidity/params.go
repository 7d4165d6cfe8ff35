package liquidity

import (
	"fmt"
	"math/big"
	"strings"
)

// SecondsPerYear is the accrual basis for time-weighted values.
const SecondsPerYear = 31_536_000

// Params configures the funding bootstrap and conversion economics.
type Params struct {
	// ReserveSymbol is the asset contributed during funding and paid on
	// conversions.
	ReserveSymbol string
	// BondingSymbol is the symbol created for bonding tokens.
	BondingSymbol string
	// FundingPhaseDuration is the minimum length of the funding phase in
	// seconds.
	FundingPhaseDuration uint64
	// FundingMinAmount is the reserve balance required to activate.
	FundingMinAmount *big.Int
	// FundingMultiplePercent is the bonding tokens minted per contributed
	// unit, in percent.
	FundingMultiplePercent uint64
	// FundingAPRPercent is the linear growth rate of the burn value.
	FundingAPRPercent uint64
	// BurnValueCapPercent bounds the burn value relative to the bonding
	// amount.
	BurnValueCapPercent uint64
	// FundingRewardSharePercent is the share of every conversion payment
	// credited to bonding token holders.
	FundingRewardSharePercent uint64
	// ConvertAmount is the fixed reserve amount paid per conversion.
	ConvertAmount *big.Int
	// OwnerDuration is the lifetime of the owner capability in seconds.
	OwnerDuration uint64
}

// DefaultParams returns the production economics for an 18 decimal reserve
// asset.
func DefaultParams() Params {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return Params{
		ReserveSymbol:             "PSM",
		BondingSymbol:             "BPSM",
		FundingPhaseDuration:      604_800,
		FundingMinAmount:          new(big.Int).Mul(big.NewInt(1_000_000), unit),
		FundingMultiplePercent:    1_000,
		FundingAPRPercent:         36,
		BurnValueCapPercent:       100,
		FundingRewardSharePercent: 10,
		ConvertAmount:             new(big.Int).Mul(big.NewInt(100_000), unit),
		OwnerDuration:             SecondsPerYear,
	}
}

// Validate ensures the parameters are internally consistent.
func (p Params) Validate() error {
	if strings.TrimSpace(p.ReserveSymbol) == "" {
		return fmt.Errorf("liquidity params: reserve symbol required")
	}
	if strings.TrimSpace(p.BondingSymbol) == "" {
		return fmt.Errorf("liquidity params: bonding symbol required")
	}
	if normalize(p.ReserveSymbol) == normalize(p.BondingSymbol) {
		return fmt.Errorf("liquidity params: bonding symbol must differ from reserve symbol")
	}
	if p.FundingMinAmount == nil || p.FundingMinAmount.Sign() < 0 {
		return fmt.Errorf("liquidity params: funding minimum must be non-negative")
	}
	if p.FundingMultiplePercent == 0 {
		return fmt.Errorf("liquidity params: funding multiple must be positive")
	}
	if p.BurnValueCapPercent == 0 {
		return fmt.Errorf("liquidity params: burn value cap must be positive")
	}
	if p.FundingRewardSharePercent > 100 {
		return fmt.Errorf("liquidity params: reward share exceeds 100%%")
	}
	if p.ConvertAmount == nil || p.ConvertAmount.Sign() <= 0 {
		return fmt.Errorf("liquidity params: convert amount must be positive")
	}
	return nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
