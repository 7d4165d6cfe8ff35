package portal

import (
	"math/big"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/types"
)

const (
	EventTypeStaked                 = "portal.staked"
	EventTypeUnstaked               = "portal.unstaked"
	EventTypeForceUnstaked          = "portal.force_unstaked"
	EventTypeEnergyBought           = "portal.energy_bought"
	EventTypeEnergySold             = "portal.energy_sold"
	EventTypeEnergyTokenMinted      = "portal.energy_token_minted"
	EventTypeEnergyTokenBurned      = "portal.energy_token_burned"
	EventTypeEnergyTokenCreated     = "portal.energy_token_created"
	EventTypeCollectionCreated      = "portal.position_collection_created"
	EventTypePositionMinted         = "portal.position_minted"
	EventTypePositionRedeemed       = "portal.position_redeemed"
	EventTypeMaxLockDurationUpdated = "portal.max_lock_duration_updated"
)

// positionEvent reports an account change together with the derived limits.
func positionEvent(eventType, asset string, update *AccountUpdate, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"asset":               asset,
		"user":                update.User.Hex(),
		"stakedBalance":       update.Account.StakedBalance.String(),
		"portalEnergy":        update.Account.PortalEnergy.String(),
		"maxStakeDebt":        update.MaxStakeDebt.String(),
		"availableToWithdraw": update.AvailableToWithdraw.String(),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func tradeEvent(eventType, asset string, caller, recipient ethcommon.Address, amountIn, amountOut *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"asset":     asset,
			"caller":    caller.Hex(),
			"recipient": recipient.Hex(),
			"amountIn":  amountIn.String(),
			"amountOut": amountOut.String(),
		},
	}
}

func positionRecordEvent(eventType, asset string, holder ethcommon.Address, id uint64, snapshot *Snapshot) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"asset":         asset,
			"holder":        holder.Hex(),
			"id":            strconv.FormatUint(id, 10),
			"stakedBalance": snapshot.StakedBalance.String(),
			"portalEnergy":  snapshot.PortalEnergy.String(),
		},
	}
}

func resourceCreatedEvent(eventType, asset, name string) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"asset": asset,
			"name":  name,
		},
	}
}

func lockDurationEvent(asset string, duration uint64, locked bool) *types.Event {
	return &types.Event{
		Type: EventTypeMaxLockDurationUpdated,
		Attributes: map[string]string{
			"asset":    asset,
			"duration": strconv.FormatUint(duration, 10),
			"final":    strconv.FormatBool(locked),
		},
	}
}
