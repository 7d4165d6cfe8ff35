package portal

import ethcommon "github.com/ethereum/go-ethereum/common"

// KVStore is the subset of the state manager the engine persists through.
type KVStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

func portalKey(symbol string) []byte {
	return []byte("portal/" + symbol + "/state")
}

func accountKey(symbol string, user ethcommon.Address) []byte {
	return []byte("portal/" + symbol + "/account/" + user.Hex())
}

type kvState struct {
	store  KVStore
	symbol string
}

func (s kvState) portal() (*Portal, bool, error) {
	var p Portal
	ok, err := s.store.KVGet(portalKey(s.symbol), &p)
	if err != nil || !ok {
		return nil, ok, err
	}
	p.ensureDefaults()
	return &p, true, nil
}

func (s kvState) putPortal(p *Portal) error {
	p.ensureDefaults()
	return s.store.KVPut(portalKey(s.symbol), p)
}

func (s kvState) account(user ethcommon.Address) (*Account, bool, error) {
	var a Account
	ok, err := s.store.KVGet(accountKey(s.symbol, user), &a)
	if err != nil {
		return nil, false, err
	}
	a.ensureDefaults()
	return &a, ok, nil
}

// putAccount persists the account, deleting it when it holds nothing.
func (s kvState) putAccount(user ethcommon.Address, a *Account) error {
	a.ensureDefaults()
	if a.Empty() {
		return s.store.KVDelete(accountKey(s.symbol, user))
	}
	return s.store.KVPut(accountKey(s.symbol, user), a)
}
