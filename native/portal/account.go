package portal

import (
	"math/big"

	nativecommon "portalchain/native/common"
)

// energyDenominator is SecondsPerYear scaled to the principal's decimals.
func energyDenominator(decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(SecondsPerYear), nativecommon.Pow10(decimals))
}

// energyFor converts amount of principal locked for duration seconds into
// energy units: amount * duration * 1e18 / (SecondsPerYear * 10^decimals).
func energyFor(amount *big.Int, duration uint64, decimals uint8) (*big.Int, error) {
	numerator := new(big.Int).Mul(new(big.Int).SetUint64(duration), nativecommon.WAD)
	return nativecommon.MulDiv(amount, numerator, energyDenominator(decimals))
}

// principalForEnergyUp is the inverse of energyFor rounded up, so that locked
// principal is never understated.
func principalForEnergyUp(energy *big.Int, duration uint64, decimals uint8) (*big.Int, error) {
	denominator := new(big.Int).Mul(new(big.Int).SetUint64(duration), nativecommon.WAD)
	return nativecommon.MulDivUp(energy, energyDenominator(decimals), denominator)
}

// accrue brings the account up to now under the current lock duration.
// Accrual never lifts energy above the stake's ceiling; energy already above
// the ceiling is kept.
func accrue(p *Portal, a *Account, now uint64) error {
	var elapsed, increase uint64
	if a.LastUpdateTime != 0 && now > a.LastUpdateTime {
		elapsed = now - a.LastUpdateTime
	}
	if a.LastMaxLockDuration != 0 && p.MaxLockDuration > a.LastMaxLockDuration {
		increase = p.MaxLockDuration - a.LastMaxLockDuration
	}
	if a.StakedBalance.Sign() > 0 && elapsed+increase > 0 {
		earned, err := energyFor(a.StakedBalance, elapsed+increase, p.PrincipalDecimals)
		if err != nil {
			return err
		}
		ceiling, err := energyFor(a.StakedBalance, p.MaxLockDuration, p.PrincipalDecimals)
		if err != nil {
			return err
		}
		accrued, err := nativecommon.Add(a.PortalEnergy, earned)
		if err != nil {
			return err
		}
		if accrued.Cmp(ceiling) > 0 {
			a.PortalEnergy = nativecommon.Max(a.PortalEnergy, ceiling)
		} else {
			a.PortalEnergy = accrued
		}
	}
	a.LastUpdateTime = now
	a.LastMaxLockDuration = p.MaxLockDuration
	return nil
}

// limits returns the energy ceiling of the stake and the principal that can
// be withdrawn without leaving the account in debt.
func limits(p *Portal, a *Account) (maxStakeDebt, available *big.Int, err error) {
	maxStakeDebt, err = energyFor(a.StakedBalance, p.MaxLockDuration, p.PrincipalDecimals)
	if err != nil {
		return nil, nil, err
	}
	deficit := nativecommon.SubFloor(maxStakeDebt, a.PortalEnergy)
	if deficit.Sign() == 0 {
		return maxStakeDebt, new(big.Int).Set(a.StakedBalance), nil
	}
	locked, err := principalForEnergyUp(deficit, p.MaxLockDuration, p.PrincipalDecimals)
	if err != nil {
		return nil, nil, err
	}
	return maxStakeDebt, nativecommon.SubFloor(a.StakedBalance, locked), nil
}

// updateAccount recomputes a copy of the account at now and applies a stake
// delta. Withdrawals above the available principal fail before anything is
// changed.
func updateAccount(p *Portal, current *Account, amount *big.Int, positive bool, now uint64) (*Account, *big.Int, *big.Int, error) {
	a := current.Clone()
	if err := accrue(p, a, now); err != nil {
		return nil, nil, nil, err
	}
	if nativecommon.IsPositive(amount) {
		delta, err := energyFor(amount, p.MaxLockDuration, p.PrincipalDecimals)
		if err != nil {
			return nil, nil, nil, err
		}
		if positive {
			staked, err := nativecommon.Add(a.StakedBalance, amount)
			if err != nil {
				return nil, nil, nil, err
			}
			energy, err := nativecommon.Add(a.PortalEnergy, delta)
			if err != nil {
				return nil, nil, nil, err
			}
			a.StakedBalance, a.PortalEnergy = staked, energy
		} else {
			_, available, err := limits(p, a)
			if err != nil {
				return nil, nil, nil, err
			}
			if amount.Cmp(available) > 0 {
				return nil, nil, nil, ErrInsufficientToWithdraw
			}
			energy, err := nativecommon.Sub(a.PortalEnergy, delta)
			if err != nil {
				return nil, nil, nil, ErrInsufficientToWithdraw
			}
			a.StakedBalance = new(big.Int).Sub(a.StakedBalance, amount)
			a.PortalEnergy = energy
		}
	}
	maxStakeDebt, available, err := limits(p, a)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, maxStakeDebt, available, nil
}
