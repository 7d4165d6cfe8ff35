package config

// Config is the protocol configuration loaded from TOML. Amounts are decimal
// strings in base units so they survive values beyond 64 bits.
type Config struct {
	DataDir       string    `toml:"DataDir"`
	Owner         string    `toml:"Owner"`
	MintAuthority string    `toml:"MintAuthority"`
	Pauses        Pauses    `toml:"pauses"`
	Tokens        []Token   `toml:"tokens"`
	Liquidity     Liquidity `toml:"liquidity"`
	Portals       []Portal  `toml:"portals"`
}

// Pauses lists modules the operator has halted.
type Pauses struct {
	Liquidity bool `toml:"Liquidity"`
	Portal    bool `toml:"Portal"`
}

// Token is a fungible asset created at genesis.
type Token struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
}

// Liquidity mirrors liquidity.Params.
type Liquidity struct {
	ReserveSymbol             string `toml:"ReserveSymbol"`
	BondingSymbol             string `toml:"BondingSymbol"`
	FundingPhaseDurationSecs  uint64 `toml:"FundingPhaseDurationSecs"`
	FundingMinAmount          string `toml:"FundingMinAmount"`
	FundingMultiplePercent    uint64 `toml:"FundingMultiplePercent"`
	FundingAPRPercent         uint64 `toml:"FundingAPRPercent"`
	BurnValueCapPercent       uint64 `toml:"BurnValueCapPercent"`
	FundingRewardSharePercent uint64 `toml:"FundingRewardSharePercent"`
	ConvertAmount             string `toml:"ConvertAmount"`
	OwnerDurationSecs         uint64 `toml:"OwnerDurationSecs"`
}

// Portal configures one portal and the yield vault its principal is routed
// to. The vault pays rewards in the principal asset.
type Portal struct {
	Asset                string `toml:"Asset"`
	Native               bool   `toml:"Native"`
	TargetConstant       string `toml:"TargetConstant"`
	MaxLockDurationSecs  uint64 `toml:"MaxLockDurationSecs"`
	TerminalDurationSecs uint64 `toml:"TerminalDurationSecs"`
	LPProtectionBps      uint64 `toml:"LPProtectionBps"`
	VaultRef             string `toml:"VaultRef"`
	PoolIndex            uint64 `toml:"PoolIndex"`
}
