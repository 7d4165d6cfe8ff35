package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load loads the configuration from the given path, writing the defaults
// there first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./portal-data"
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a development configuration with a PSM reserve and a USDC
// portal.
func Default() *Config {
	return &Config{
		DataDir:       "./portal-data",
		Owner:         "0x00000000000000000000000000000000000000b0",
		MintAuthority: "0x00000000000000000000000000000000000000a0",
		Tokens: []Token{
			{Symbol: "PSM", Name: "Possum", Decimals: 18},
			{Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		},
		Liquidity: Liquidity{
			ReserveSymbol:             "PSM",
			BondingSymbol:             "BPSM",
			FundingPhaseDurationSecs:  604_800,
			FundingMinAmount:          "1000000000000000000000000",
			FundingMultiplePercent:    1_000,
			FundingAPRPercent:         36,
			BurnValueCapPercent:       100,
			FundingRewardSharePercent: 10,
			ConvertAmount:             "100000000000000000000000",
			OwnerDurationSecs:         31_536_000,
		},
		Portals: []Portal{{
			Asset:                "USDC",
			TargetConstant:       "1000000000000000000000000000000000000000000000",
			MaxLockDurationSecs:  7_776_000,
			TerminalDurationSecs: 157_680_000,
			LPProtectionBps:      200,
			VaultRef:             "0x00000000000000000000000000000000000000ee",
			PoolIndex:            0,
		}},
	}
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
