package liquidity

import ethcommon "github.com/ethereum/go-ethereum/common"

// KVStore is the subset of the state manager the engine persists through.
type KVStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	poolKey          = []byte("liquidity/pool")
	registrationList = []byte("liquidity/registrations")
)

func registrationKey(portal ethcommon.Address) []byte {
	return []byte("liquidity/registration/" + portal.Hex())
}

func assetKey(asset string) []byte {
	return []byte("liquidity/asset/" + asset)
}

type kvState struct {
	store KVStore
}

func (s kvState) pool() (*Pool, bool, error) {
	var p Pool
	ok, err := s.store.KVGet(poolKey, &p)
	if err != nil || !ok {
		return nil, ok, err
	}
	p.ensureDefaults()
	return &p, true, nil
}

func (s kvState) putPool(p *Pool) error {
	p.ensureDefaults()
	return s.store.KVPut(poolKey, p)
}

func (s kvState) registration(portal ethcommon.Address) (*Registration, bool, error) {
	var r Registration
	ok, err := s.store.KVGet(registrationKey(portal), &r)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &r, true, nil
}

func (s kvState) putRegistration(r *Registration) error {
	prev, ok, err := s.registration(r.Portal)
	if err != nil {
		return err
	}
	if ok && prev.Asset != r.Asset {
		if err := s.store.KVDelete(assetKey(prev.Asset)); err != nil {
			return err
		}
	}
	if err := s.store.KVPut(registrationKey(r.Portal), r); err != nil {
		return err
	}
	if err := s.store.KVPut(assetKey(r.Asset), r.Portal); err != nil {
		return err
	}
	return s.store.KVAppend(registrationList, r.Portal.Bytes())
}

func (s kvState) portalForAsset(asset string) (ethcommon.Address, bool, error) {
	var portal ethcommon.Address
	ok, err := s.store.KVGet(assetKey(asset), &portal)
	return portal, ok, err
}

func (s kvState) registrations() ([]*Registration, error) {
	var portals [][]byte
	if err := s.store.KVGetList(registrationList, &portals); err != nil {
		return nil, err
	}
	out := make([]*Registration, 0, len(portals))
	for _, raw := range portals {
		r, ok, err := s.registration(ethcommon.BytesToAddress(raw))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
