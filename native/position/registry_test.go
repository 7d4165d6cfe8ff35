package position

import (
	"bytes"
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/state"
	"portalchain/storage"
)

func addr(last byte) ethcommon.Address {
	var out ethcommon.Address
	out[19] = last
	return out
}

func TestCollectionCreatedOnce(t *testing.T) {
	registry := NewRegistry(state.NewManager(storage.NewMemDB()))
	issuer := addr(0xF0)
	if err := registry.CreateCollection("USDC-positions", issuer); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if err := registry.CreateCollection("USDC-positions", issuer); !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
	if _, err := registry.Mint("missing", issuer, addr(1), nil); !errors.Is(err, ErrCollectionNotCreated) {
		t.Fatalf("expected ErrCollectionNotCreated, got %v", err)
	}
}

func TestMintTransferBurnLifecycle(t *testing.T) {
	registry := NewRegistry(state.NewManager(storage.NewMemDB()))
	issuer := addr(0xF0)
	alice, bob := addr(0x01), addr(0x02)
	if err := registry.CreateCollection("pos", issuer); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := registry.Mint("pos", alice, alice, []byte{1}); !errors.Is(err, ErrNotIssuer) {
		t.Fatalf("expected ErrNotIssuer, got %v", err)
	}
	payload := []byte{0xC0, 0x01, 0x02}
	first, err := registry.Mint("pos", issuer, alice, payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	second, err := registry.Mint("pos", issuer, alice, nil)
	if err != nil {
		t.Fatalf("mint second: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("unexpected ids %d %d", first, second)
	}
	if err := registry.Transfer("pos", bob, bob, first); !errors.Is(err, ErrNotPositionOwner) {
		t.Fatalf("expected ErrNotPositionOwner, got %v", err)
	}
	if err := registry.Transfer("pos", alice, bob, first); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := registry.OwnerOf("pos", first)
	if err != nil || owner != bob {
		t.Fatalf("unexpected owner %s err %v", owner.Hex(), err)
	}
	got, err := registry.Burn("pos", issuer, first)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %x", got)
	}
	if _, err := registry.OwnerOf("pos", first); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
	c, err := registry.Collection("pos")
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if c.Live != 1 || c.NextID != 3 {
		t.Fatalf("unexpected collection counters %+v", c)
	}
}
