package position

import (
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/events"
	"portalchain/core/types"
	nativecommon "portalchain/native/common"
)

var (
	errNilState             = nativecommon.NewError(nativecommon.KindState, "position registry: state not configured")
	ErrInvalidCollection    = nativecommon.NewError(nativecommon.KindInvalidAddress, "position registry: collection name required")
	ErrInvalidAddress       = nativecommon.NewError(nativecommon.KindInvalidAddress, "position registry: address must not be zero")
	ErrCollectionExists     = nativecommon.NewError(nativecommon.KindTokenExists, "position registry: collection already exists")
	ErrCollectionNotCreated = nativecommon.NewError(nativecommon.KindTokenNotCreated, "position registry: collection not created")
	ErrNotIssuer            = nativecommon.NewError(nativecommon.KindNotOwner, "position registry: caller is not the collection issuer")
	ErrNotPositionOwner     = nativecommon.NewError(nativecommon.KindNotOwner, "position registry: caller does not own the position")
	ErrPositionNotFound     = nativecommon.NewError(nativecommon.KindNotFound, "position registry: position not found")
)

// Registry issues non-fungible ownership records with an embedded payload.
// Only the collection issuer may mint and burn; holders may transfer.
type Registry struct {
	state   kvState
	emitter events.Emitter
}

// NewRegistry constructs a registry persisting through the supplied store.
func NewRegistry(store KVStore) *Registry {
	return &Registry{state: kvState{store: store}, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the registry.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) emit(evt *types.Event) {
	if r == nil || evt == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(events.Wrap(evt))
}

func (r *Registry) ready() error {
	if r == nil || r.state.store == nil {
		return errNilState
	}
	return nil
}

func (r *Registry) loadCollection(name string) (*Collection, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidCollection
	}
	c, ok, err := r.state.collection(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCollectionNotCreated
	}
	return c, nil
}

// CreateCollection registers a new collection owned by issuer.
func (r *Registry) CreateCollection(name string, issuer ethcommon.Address) error {
	if err := r.ready(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidCollection
	}
	if issuer == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	if _, ok, err := r.state.collection(name); err != nil {
		return err
	} else if ok {
		return ErrCollectionExists
	}
	if err := r.state.putCollection(&Collection{Name: name, Issuer: issuer, NextID: 1}); err != nil {
		return err
	}
	r.emit(collectionCreatedEvent(name, issuer))
	return nil
}

// Collection returns the collection metadata.
func (r *Registry) Collection(name string) (*Collection, error) {
	return r.loadCollection(name)
}

// Mint issues a new record to owner and returns its id. Ids are sequential
// per collection and never reused.
func (r *Registry) Mint(collection string, issuer, owner ethcommon.Address, payload []byte) (uint64, error) {
	c, err := r.loadCollection(collection)
	if err != nil {
		return 0, err
	}
	if c.Issuer != issuer {
		return 0, ErrNotIssuer
	}
	if owner == (ethcommon.Address{}) {
		return 0, ErrInvalidAddress
	}
	id := c.NextID
	c.NextID++
	c.Live++
	if err := r.state.putCollection(c); err != nil {
		return 0, err
	}
	record := &Record{Collection: c.Name, ID: id, Owner: owner, Payload: append([]byte(nil), payload...)}
	if err := r.state.putRecord(record); err != nil {
		return 0, err
	}
	r.emit(positionEvent(EventTypePositionMinted, c.Name, id, owner))
	return id, nil
}

// Burn destroys the record and returns its payload.
func (r *Registry) Burn(collection string, issuer ethcommon.Address, id uint64) ([]byte, error) {
	c, err := r.loadCollection(collection)
	if err != nil {
		return nil, err
	}
	if c.Issuer != issuer {
		return nil, ErrNotIssuer
	}
	record, ok, err := r.state.record(c.Name, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPositionNotFound
	}
	if c.Live > 0 {
		c.Live--
	}
	if err := r.state.putCollection(c); err != nil {
		return nil, err
	}
	if err := r.state.deleteRecord(c.Name, id); err != nil {
		return nil, err
	}
	r.emit(positionEvent(EventTypePositionBurned, c.Name, id, record.Owner))
	return record.Payload, nil
}

// Get returns the record stored under id.
func (r *Registry) Get(collection string, id uint64) (*Record, error) {
	c, err := r.loadCollection(collection)
	if err != nil {
		return nil, err
	}
	record, ok, err := r.state.record(c.Name, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPositionNotFound
	}
	return record, nil
}

// OwnerOf returns the current holder of the record.
func (r *Registry) OwnerOf(collection string, id uint64) (ethcommon.Address, error) {
	record, err := r.Get(collection, id)
	if err != nil {
		return ethcommon.Address{}, err
	}
	return record.Owner, nil
}

// Transfer moves the record from its holder to a new owner.
func (r *Registry) Transfer(collection string, from, to ethcommon.Address, id uint64) error {
	record, err := r.Get(collection, id)
	if err != nil {
		return err
	}
	if to == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	if record.Owner != from {
		return ErrNotPositionOwner
	}
	record.Owner = to
	if err := r.state.putRecord(record); err != nil {
		return err
	}
	r.emit(transferEvent(record.Collection, id, from, to))
	return nil
}
