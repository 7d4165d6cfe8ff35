package config

import (
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/native/liquidity"
	"portalchain/native/portal"
)

// Validate rejects configurations the runtime cannot bootstrap from.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if _, err := parseAddress("Owner", cfg.Owner); err != nil {
		return err
	}
	if _, err := parseAddress("MintAuthority", cfg.MintAuthority); err != nil {
		return err
	}
	tokens := make(map[string]bool, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		symbol := normalize(tok.Symbol)
		if symbol == "" {
			return fmt.Errorf("tokens: symbol required")
		}
		if tokens[symbol] {
			return fmt.Errorf("tokens: duplicate symbol %s", symbol)
		}
		if tok.Decimals > 36 {
			return fmt.Errorf("tokens: %s decimals above 36", symbol)
		}
		tokens[symbol] = true
	}

	lp, err := cfg.LiquidityParams()
	if err != nil {
		return err
	}
	if err := lp.Validate(); err != nil {
		return err
	}
	if !tokens[normalize(lp.ReserveSymbol)] {
		return fmt.Errorf("liquidity: reserve symbol %s is not a configured token", lp.ReserveSymbol)
	}
	if tokens[normalize(lp.BondingSymbol)] {
		return fmt.Errorf("liquidity: bonding symbol %s collides with a configured token", lp.BondingSymbol)
	}

	assets := make(map[string]bool, len(cfg.Portals))
	vaults := make(map[string]bool, len(cfg.Portals))
	for i := range cfg.Portals {
		params, err := cfg.PortalParams(i)
		if err != nil {
			return err
		}
		if err := params.Validate(); err != nil {
			return err
		}
		asset := params.PrincipalSymbol
		switch {
		case assets[asset]:
			return fmt.Errorf("portals: duplicate asset %s", asset)
		case !tokens[asset]:
			return fmt.Errorf("portals: asset %s is not a configured token", asset)
		case asset == normalize(lp.ReserveSymbol):
			return fmt.Errorf("portals: asset %s is the reserve asset", asset)
		case tokens[params.EnergySymbol] || params.EnergySymbol == normalize(lp.BondingSymbol):
			return fmt.Errorf("portals: energy symbol %s collides with another token", params.EnergySymbol)
		}
		ref, err := parseAddress("portals.VaultRef", cfg.Portals[i].VaultRef)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s/%d", ref.Hex(), cfg.Portals[i].PoolIndex)
		if vaults[key] {
			return fmt.Errorf("portals: vault %s shared by two portals", key)
		}
		assets[asset] = true
		vaults[key] = true
	}
	return nil
}

// LiquidityParams converts the [liquidity] table.
func (c *Config) LiquidityParams() (liquidity.Params, error) {
	l := c.Liquidity
	minAmount, err := parseAmount("liquidity.FundingMinAmount", l.FundingMinAmount, true)
	if err != nil {
		return liquidity.Params{}, err
	}
	convert, err := parseAmount("liquidity.ConvertAmount", l.ConvertAmount, false)
	if err != nil {
		return liquidity.Params{}, err
	}
	return liquidity.Params{
		ReserveSymbol:             normalize(l.ReserveSymbol),
		BondingSymbol:             normalize(l.BondingSymbol),
		FundingPhaseDuration:      l.FundingPhaseDurationSecs,
		FundingMinAmount:          minAmount,
		FundingMultiplePercent:    l.FundingMultiplePercent,
		FundingAPRPercent:         l.FundingAPRPercent,
		BurnValueCapPercent:       l.BurnValueCapPercent,
		FundingRewardSharePercent: l.FundingRewardSharePercent,
		ConvertAmount:             convert,
		OwnerDuration:             l.OwnerDurationSecs,
	}, nil
}

// PortalParams converts the i-th [[portals]] entry. Zero durations and
// protection fall back to the portal defaults.
func (c *Config) PortalParams(i int) (portal.Params, error) {
	if i < 0 || i >= len(c.Portals) {
		return portal.Params{}, fmt.Errorf("portals: index %d out of range", i)
	}
	entry := c.Portals[i]
	k, err := parseAmount("portals.TargetConstant", entry.TargetConstant, false)
	if err != nil {
		return portal.Params{}, err
	}
	params := portal.DefaultParams(entry.Asset, k)
	params.Native = entry.Native
	if entry.MaxLockDurationSecs != 0 {
		params.MaxLockDuration = entry.MaxLockDurationSecs
	}
	if entry.TerminalDurationSecs != 0 {
		params.TerminalDuration = entry.TerminalDurationSecs
	}
	if entry.LPProtectionBps != 0 {
		params.LPProtectionBps = entry.LPProtectionBps
	}
	return params, nil
}

// OwnerAddress returns the liquidity owner.
func (c *Config) OwnerAddress() (ethcommon.Address, error) {
	return parseAddress("Owner", c.Owner)
}

// MintAuthorityAddress returns the mint authority of genesis tokens.
func (c *Config) MintAuthorityAddress() (ethcommon.Address, error) {
	return parseAddress("MintAuthority", c.MintAuthority)
}

// VaultRef returns the yield vault reference of the i-th portal.
func (c *Config) VaultRef(i int) (ethcommon.Address, error) {
	if i < 0 || i >= len(c.Portals) {
		return ethcommon.Address{}, fmt.Errorf("portals: index %d out of range", i)
	}
	return parseAddress("portals.VaultRef", c.Portals[i].VaultRef)
}

func parseAddress(field, raw string) (ethcommon.Address, error) {
	raw = strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(raw) {
		return ethcommon.Address{}, fmt.Errorf("invalid %s: %q is not a hex address", field, raw)
	}
	addr := ethcommon.HexToAddress(raw)
	if addr == (ethcommon.Address{}) {
		return ethcommon.Address{}, fmt.Errorf("invalid %s: zero address", field)
	}
	return addr, nil
}

func parseAmount(field, raw string, allowZero bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if allowZero {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("invalid %s: value required", field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q is not a base-10 integer", field, raw)
	}
	if value.Sign() < 0 || (!allowZero && value.Sign() == 0) {
		return nil, fmt.Errorf("invalid %s: must be positive", field)
	}
	return value, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
