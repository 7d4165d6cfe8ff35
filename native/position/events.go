package position

import (
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/types"
)

const (
	EventTypeCollectionCreated = "position.collection_created"
	EventTypePositionMinted    = "position.minted"
	EventTypePositionBurned    = "position.burned"
	EventTypePositionTransfer  = "position.transfer"
)

func collectionCreatedEvent(name string, issuer ethcommon.Address) *types.Event {
	return &types.Event{
		Type: EventTypeCollectionCreated,
		Attributes: map[string]string{
			"collection": name,
			"issuer":     issuer.Hex(),
		},
	}
}

func positionEvent(eventType, collection string, id uint64, owner ethcommon.Address) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"collection": collection,
			"id":         strconv.FormatUint(id, 10),
			"owner":      owner.Hex(),
		},
	}
}

func transferEvent(collection string, id uint64, from, to ethcommon.Address) *types.Event {
	return &types.Event{
		Type: EventTypePositionTransfer,
		Attributes: map[string]string{
			"collection": collection,
			"id":         strconv.FormatUint(id, 10),
			"from":       from.Hex(),
			"to":         to.Hex(),
		},
	}
}
