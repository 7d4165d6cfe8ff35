package position

import (
	"strconv"
	"strings"
)

// KVStore is the subset of the state manager the registry persists through.
type KVStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	collectionPrefix = "position/collection/"
	recordPrefix     = "position/record/"
)

func collectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

func recordKey(collection string, id uint64) []byte {
	var b strings.Builder
	b.WriteString(recordPrefix)
	b.WriteString(collection)
	b.WriteByte('/')
	b.WriteString(strconv.FormatUint(id, 10))
	return []byte(b.String())
}

type kvState struct {
	store KVStore
}

func (s kvState) collection(name string) (*Collection, bool, error) {
	var c Collection
	ok, err := s.store.KVGet(collectionKey(name), &c)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &c, true, nil
}

func (s kvState) putCollection(c *Collection) error {
	return s.store.KVPut(collectionKey(c.Name), c)
}

func (s kvState) record(collection string, id uint64) (*Record, bool, error) {
	var r Record
	ok, err := s.store.KVGet(recordKey(collection, id), &r)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &r, true, nil
}

func (s kvState) putRecord(r *Record) error {
	return s.store.KVPut(recordKey(r.Collection, r.ID), r)
}

func (s kvState) deleteRecord(collection string, id uint64) error {
	return s.store.KVDelete(recordKey(collection, id))
}
