package position

import ethcommon "github.com/ethereum/go-ethereum/common"

// Collection groups position records issued by a single authority.
type Collection struct {
	Name   string
	Issuer ethcommon.Address
	NextID uint64
	Live   uint64
}

// Record is an ownership entry carrying an opaque snapshot payload.
type Record struct {
	Collection string
	ID         uint64
	Owner      ethcommon.Address
	Payload    []byte
}

