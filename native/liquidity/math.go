package liquidity

import (
	"math/big"

	nativecommon "portalchain/native/common"
)

// bondingForContribution returns the bonding tokens minted for a reserve
// contribution.
func bondingForContribution(amount *big.Int, multiplePercent uint64) (*big.Int, error) {
	return nativecommon.Percent(amount, multiplePercent)
}

// refundForBonding returns the reserve refunded when bonding tokens are
// returned during the funding phase. Rounds down.
func refundForBonding(bonding *big.Int, multiplePercent uint64) (*big.Int, error) {
	return nativecommon.MulDiv(bonding, big.NewInt(100), new(big.Int).SetUint64(multiplePercent))
}

// burnValue is the reference redemption value of bonding tokens: the funding
// refund plus linear growth at the funding APR, capped at capPercent of the
// bonding amount.
func burnValue(amount *big.Int, elapsed uint64, p Params) (*big.Int, error) {
	base, err := refundForBonding(amount, p.FundingMultiplePercent)
	if err != nil {
		return nil, err
	}
	growthNumerator := new(big.Int).Mul(new(big.Int).SetUint64(elapsed), new(big.Int).SetUint64(p.FundingAPRPercent))
	growth, err := nativecommon.MulDiv(amount, growthNumerator, big.NewInt(100*SecondsPerYear))
	if err != nil {
		return nil, err
	}
	value, err := nativecommon.Add(base, growth)
	if err != nil {
		return nil, err
	}
	limit, err := nativecommon.Percent(amount, p.BurnValueCapPercent)
	if err != nil {
		return nil, err
	}
	return nativecommon.Min(value, limit), nil
}
