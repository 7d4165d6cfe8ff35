package token

import (
	"math/big"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/types"
)

const (
	// EventTypeTokenCreated is emitted when a new token is registered.
	EventTypeTokenCreated = "token.created"
	// EventTypeTokenMinted is emitted when supply is minted.
	EventTypeTokenMinted = "token.minted"
	// EventTypeTokenBurned is emitted when supply is destroyed.
	EventTypeTokenBurned = "token.burned"
	// EventTypeTokenTransfer is emitted when balances move between accounts.
	EventTypeTokenTransfer = "token.transfer"
	// EventTypeTokenApproval is emitted when an allowance changes.
	EventTypeTokenApproval = "token.approval"
)

// TokenCreatedEvent describes a token registration.
func TokenCreatedEvent(symbol, name string, decimals uint8, authority ethcommon.Address) *types.Event {
	return &types.Event{
		Type: EventTypeTokenCreated,
		Attributes: map[string]string{
			"symbol":    symbol,
			"name":      name,
			"decimals":  strconv.Itoa(int(decimals)),
			"authority": authority.Hex(),
		},
	}
}

func MintedEvent(symbol string, to ethcommon.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenMinted,
		Attributes: map[string]string{
			"symbol": symbol,
			"to":     to.Hex(),
			"amount": amount.String(),
		},
	}
}

func BurnedEvent(symbol string, from ethcommon.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenBurned,
		Attributes: map[string]string{
			"symbol": symbol,
			"from":   from.Hex(),
			"amount": amount.String(),
		},
	}
}

func TransferEvent(symbol string, from, to ethcommon.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenTransfer,
		Attributes: map[string]string{
			"symbol": symbol,
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amount.String(),
		},
	}
}

func ApprovalEvent(symbol string, owner, spender ethcommon.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenApproval,
		Attributes: map[string]string{
			"symbol":  symbol,
			"owner":   owner.Hex(),
			"spender": spender.Hex(),
			"amount":  amount.String(),
		},
	}
}
