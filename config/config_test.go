package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portal.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Liquidity.ConvertAmount != cfg.Liquidity.ConvertAmount || len(reloaded.Portals) != 1 {
		t.Fatalf("defaults did not round trip: %+v", reloaded)
	}
}

func TestLoadParsesPortals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.toml")
	contents := `DataDir = "/var/lib/portal"
Owner = "0x00000000000000000000000000000000000000b0"
MintAuthority = "0x00000000000000000000000000000000000000a0"

[pauses]
Portal = true

[[tokens]]
Symbol = "psm"
Name = "Possum"
Decimals = 18

[[tokens]]
Symbol = "ETH"
Decimals = 18

[liquidity]
ReserveSymbol = "PSM"
BondingSymbol = "BPSM"
FundingPhaseDurationSecs = 100
FundingMinAmount = "0"
FundingMultiplePercent = 1000
FundingAPRPercent = 36
BurnValueCapPercent = 100
FundingRewardSharePercent = 10
ConvertAmount = "1000"
OwnerDurationSecs = 500

[[portals]]
Asset = "eth"
Native = true
TargetConstant = "1000000000000000000000000000000000000000"
VaultRef = "0x00000000000000000000000000000000000000ee"
PoolIndex = 3
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Pauses.Portal || cfg.Pauses.Liquidity {
		t.Fatalf("unexpected pauses %+v", cfg.Pauses)
	}
	params, err := cfg.PortalParams(0)
	if err != nil {
		t.Fatalf("portal params: %v", err)
	}
	if params.PrincipalSymbol != "ETH" || !params.Native || params.EnergySymbol != "PEETH" {
		t.Fatalf("unexpected portal params %+v", params)
	}
	if params.MaxLockDuration != 7_776_000 || params.LPProtectionBps != 200 {
		t.Fatalf("defaults not applied: %+v", params)
	}
	lp, err := cfg.LiquidityParams()
	if err != nil {
		t.Fatalf("liquidity params: %v", err)
	}
	if lp.ConvertAmount.Int64() != 1000 || lp.FundingMinAmount.Sign() != 0 {
		t.Fatalf("unexpected liquidity params %+v", lp)
	}
}

func TestValidateRejectsInconsistentConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad owner", func(c *Config) { c.Owner = "nope" }, "invalid Owner"},
		{"zero authority", func(c *Config) { c.MintAuthority = "0x0000000000000000000000000000000000000000" }, "zero address"},
		{"duplicate token", func(c *Config) { c.Tokens = append(c.Tokens, Token{Symbol: "usdc"}) }, "duplicate symbol"},
		{"unknown reserve", func(c *Config) { c.Liquidity.ReserveSymbol = "DAI" }, "reserve symbol"},
		{"bonding collides", func(c *Config) { c.Liquidity.BondingSymbol = "USDC" }, "bonding symbol"},
		{"zero convert", func(c *Config) { c.Liquidity.ConvertAmount = "0" }, "must be positive"},
		{"unknown portal asset", func(c *Config) { c.Portals[0].Asset = "DAI" }, "not a configured token"},
		{"reserve portal", func(c *Config) {
			c.Portals[0].Asset = "PSM"
		}, "reserve asset"},
		{"duplicate vault", func(c *Config) {
			c.Tokens = append(c.Tokens, Token{Symbol: "ETH", Decimals: 18})
			second := c.Portals[0]
			second.Asset = "ETH"
			c.Portals = append(c.Portals, second)
		}, "shared by two portals"},
		{"terminal below initial", func(c *Config) { c.Portals[0].TerminalDurationSecs = 10 }, "terminal duration"},
		{"bad target constant", func(c *Config) { c.Portals[0].TargetConstant = "1e9" }, "not a base-10 integer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
