package liquidity

import (
	"math/big"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/types"
)

const (
	EventTypeFundingContributed = "liquidity.funding_contributed"
	EventTypeFundingWithdrawn   = "liquidity.funding_withdrawn"
	EventTypeActivated          = "liquidity.activated"
	EventTypePortalRegistered   = "liquidity.portal_registered"
	EventTypeConverted          = "liquidity.converted"
	EventTypeRewardsAccrued     = "liquidity.rewards_accrued"
	EventTypeBondingBurned      = "liquidity.bonding_burned"
	EventTypeOwnerRemoved       = "liquidity.owner_removed"
	EventTypeBondingCreated     = "liquidity.bonding_created"
	EventTypeProfitCollected    = "liquidity.profit_collected"
	EventTypePortalPayout       = "liquidity.portal_payout"
)

func fundingEvent(eventType string, user ethcommon.Address, amount, bonding *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"user":    user.Hex(),
			"amount":  amount.String(),
			"bonding": bonding.String(),
		},
	}
}

func activatedEvent(pool *Pool) *types.Event {
	return &types.Event{
		Type: EventTypeActivated,
		Attributes: map[string]string{
			"fundingBalance":    pool.FundingBalance.String(),
			"fundingMaxRewards": pool.FundingMaxRewards.String(),
			"activatedAt":       strconv.FormatUint(pool.ActivatedAt, 10),
		},
	}
}

func registeredEvent(r *Registration) *types.Event {
	return &types.Event{
		Type: EventTypePortalRegistered,
		Attributes: map[string]string{
			"portal":    r.Portal.Hex(),
			"asset":     r.Asset,
			"vault":     r.VaultRef.Hex(),
			"poolIndex": strconv.FormatUint(r.PoolIndex, 10),
		},
	}
}

func convertedEvent(caller, recipient ethcommon.Address, asset string, received, paid *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeConverted,
		Attributes: map[string]string{
			"caller":    caller.Hex(),
			"recipient": recipient.Hex(),
			"asset":     asset,
			"received":  received.String(),
			"paid":      paid.String(),
		},
	}
}

func rewardsAccruedEvent(amount, pool, collected *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsAccrued,
		Attributes: map[string]string{
			"amount":    amount.String(),
			"pool":      pool.String(),
			"collected": collected.String(),
		},
	}
}

func ownerRemovedEvent(owner ethcommon.Address) *types.Event {
	return &types.Event{
		Type:       EventTypeOwnerRemoved,
		Attributes: map[string]string{"owner": owner.Hex()},
	}
}

func bondingCreatedEvent(symbol string) *types.Event {
	return &types.Event{
		Type:       EventTypeBondingCreated,
		Attributes: map[string]string{"symbol": symbol},
	}
}

func portalFlowEvent(eventType string, portal, account ethcommon.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"portal":  portal.Hex(),
			"account": account.Hex(),
			"amount":  amount.String(),
		},
	}
}
