package yield

import (
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// KVStore is the subset of the state manager the yield source persists
// through.
type KVStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

func vaultKey(ref ethcommon.Address, poolIndex uint64) []byte {
	return []byte("yield/vault/" + ref.Hex() + "/" + strconv.FormatUint(poolIndex, 10))
}

func positionKey(ref ethcommon.Address, poolIndex uint64, depositor ethcommon.Address) []byte {
	return append(vaultKey(ref, poolIndex), []byte("/"+depositor.Hex())...)
}

type kvState struct {
	store KVStore
}

func (s kvState) vault(ref ethcommon.Address, poolIndex uint64) (*Vault, bool, error) {
	var v Vault
	ok, err := s.store.KVGet(vaultKey(ref, poolIndex), &v)
	if err != nil || !ok {
		return nil, ok, err
	}
	v.ensureDefaults()
	return &v, true, nil
}

func (s kvState) putVault(v *Vault) error {
	v.ensureDefaults()
	return s.store.KVPut(vaultKey(v.Ref, v.PoolIndex), v)
}

func (s kvState) position(ref ethcommon.Address, poolIndex uint64, depositor ethcommon.Address) (*Position, error) {
	var p Position
	if _, err := s.store.KVGet(positionKey(ref, poolIndex, depositor), &p); err != nil {
		return nil, err
	}
	p.ensureDefaults()
	return &p, nil
}

func (s kvState) putPosition(ref ethcommon.Address, poolIndex uint64, depositor ethcommon.Address, p *Position) error {
	p.ensureDefaults()
	if p.empty() {
		return s.store.KVDelete(positionKey(ref, poolIndex, depositor))
	}
	return s.store.KVPut(positionKey(ref, poolIndex, depositor), p)
}
