package portal

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// SecondsPerYear is the accrual basis for energy.
	SecondsPerYear = 31_536_000
	// DefaultMaxLockDuration is the lock duration a portal starts with.
	DefaultMaxLockDuration = 7_776_000
	// TerminalMaxLockDuration is the ceiling the lock duration grows
	// towards. Reaching it freezes the duration.
	TerminalMaxLockDuration = 157_680_000
	// DefaultLPProtectionBps is the share of energy retained when minting
	// energy tokens.
	DefaultLPProtectionBps = 200
)

// Params configures a portal for one principal asset.
type Params struct {
	PrincipalSymbol    string
	Native             bool
	TargetConstant     *big.Int
	MaxLockDuration    uint64
	TerminalDuration   uint64
	LPProtectionBps    uint64
	EnergySymbol       string
	PositionCollection string
}

// DefaultParams returns the parameters for a token portal over symbol.
func DefaultParams(symbol string, targetConstant *big.Int) Params {
	symbol = normalize(symbol)
	return Params{
		PrincipalSymbol:    symbol,
		TargetConstant:     targetConstant,
		MaxLockDuration:    DefaultMaxLockDuration,
		TerminalDuration:   TerminalMaxLockDuration,
		LPProtectionBps:    DefaultLPProtectionBps,
		EnergySymbol:       "PE" + symbol,
		PositionCollection: "portal-position-" + strings.ToLower(symbol),
	}
}

// Validate ensures the parameters are usable.
func (p Params) Validate() error {
	if normalize(p.PrincipalSymbol) == "" {
		return fmt.Errorf("portal params: principal symbol required")
	}
	if p.TargetConstant == nil || p.TargetConstant.Sign() <= 0 {
		return fmt.Errorf("portal params: target constant must be positive")
	}
	if p.MaxLockDuration == 0 {
		return fmt.Errorf("portal params: max lock duration must be positive")
	}
	if p.TerminalDuration < p.MaxLockDuration {
		return fmt.Errorf("portal params: terminal duration below initial duration")
	}
	if p.LPProtectionBps >= 10_000 {
		return fmt.Errorf("portal params: lp protection must be below 10000 bps")
	}
	if normalize(p.EnergySymbol) == "" || strings.TrimSpace(p.PositionCollection) == "" {
		return fmt.Errorf("portal params: energy symbol and position collection required")
	}
	if normalize(p.EnergySymbol) == normalize(p.PrincipalSymbol) {
		return fmt.Errorf("portal params: energy symbol must differ from principal")
	}
	return nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
