package yield

import (
	"math/big"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/types"
)

const (
	EventTypeVaultCreated = "yield.vault_created"
	EventTypeDeposit      = "yield.deposit"
	EventTypeWithdraw     = "yield.withdraw"
	EventTypeClaim        = "yield.claim"
	EventTypeReward       = "yield.reward"
)

func vaultEvent(eventType string, v *Vault, account ethcommon.Address, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"vault":     v.Ref.Hex(),
		"poolIndex": strconv.FormatUint(v.PoolIndex, 10),
	}
	if account != (ethcommon.Address{}) {
		attrs["account"] = account.Hex()
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
