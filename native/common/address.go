package common

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ModuleAddress derives the custody address of a native module. The address
// has no private key; only the module itself moves funds out of it.
func ModuleAddress(name string) ethcommon.Address {
	return ethcommon.BytesToAddress(ethcrypto.Keccak256([]byte("portalchain/module/" + name))[12:])
}
