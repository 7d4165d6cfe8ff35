package state

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"portalchain/storage"
)

// ErrTokenRegistered is returned when a token symbol is registered twice.
var ErrTokenRegistered = errors.New("state: token already registered")

// ErrTokenUnknown is returned when a token symbol has not been registered.
var ErrTokenUnknown = errors.New("state: token not registered")

type batchWriter interface {
	WriteBatch(entries map[string][]byte) error
}

type journalEntry struct {
	key         string
	prev        []byte
	prevPresent bool
}

// Manager reads and writes ledger state. Writes land in an in-memory overlay
// that can be reverted to a snapshot and is flushed to the backing database
// on Commit.
type Manager struct {
	db      storage.Database
	overlay map[string][]byte
	journal []journalEntry
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	if db == nil {
		db = storage.NewMemDB()
	}
	return &Manager{db: db, overlay: make(map[string][]byte)}
}

type TokenMetadata struct {
	Symbol        string
	Name          string
	Decimals      uint8
	MintAuthority []byte
	MintPaused    bool
	TotalSupply   *big.Int
}

var (
	tokenPrefix     = []byte("token:")
	tokenListKey    = ethcrypto.Keccak256([]byte("token-list"))
	balancePrefix   = []byte("balance:")
	allowancePrefix = []byte("allowance:")
)

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func tokenMetadataKey(symbol string) []byte {
	buf := make([]byte, len(tokenPrefix)+len(symbol))
	copy(buf, tokenPrefix)
	copy(buf[len(tokenPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr []byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr)
	return ethcrypto.Keccak256(buf)
}

func allowanceKey(owner, spender []byte, symbol string) []byte {
	buf := make([]byte, 0, len(allowancePrefix)+len(symbol)+2+len(owner)+len(spender))
	buf = append(buf, allowancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, ':')
	buf = append(buf, owner...)
	buf = append(buf, ':')
	buf = append(buf, spender...)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) read(key []byte) ([]byte, error) {
	if value, ok := m.overlay[string(key)]; ok {
		return value, nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) write(key []byte, value []byte) {
	k := string(key)
	prev, present := m.overlay[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, prevPresent: present})
	if value == nil {
		value = []byte{}
	}
	m.overlay[k] = value
}

func (m *Manager) erase(key []byte) {
	k := string(key)
	prev, present := m.overlay[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, prevPresent: present})
	m.overlay[k] = nil
}

// Snapshot returns an identifier for the current overlay revision.
func (m *Manager) Snapshot() int { return len(m.journal) }

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for len(m.journal) > id {
		entry := m.journal[len(m.journal)-1]
		m.journal = m.journal[:len(m.journal)-1]
		if entry.prevPresent {
			m.overlay[entry.key] = entry.prev
		} else {
			delete(m.overlay, entry.key)
		}
	}
}

// Dirty reports the number of keys pending in the overlay.
func (m *Manager) Dirty() int { return len(m.overlay) }

// Commit flushes the overlay to the backing database.
func (m *Manager) Commit() error {
	if len(m.overlay) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	if writer, ok := m.db.(batchWriter); ok {
		if err := writer.WriteBatch(m.overlay); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	} else {
		keys := make([]string, 0, len(m.overlay))
		for k := range m.overlay {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value := m.overlay[k]
			var err error
			if value == nil {
				err = m.db.Delete([]byte(k))
			} else {
				err = m.db.Put([]byte(k), value)
			}
			if err != nil {
				return fmt.Errorf("commit key: %w", err)
			}
		}
	}
	m.overlay = make(map[string][]byte)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every uncommitted write.
func (m *Manager) Discard() {
	m.overlay = make(map[string][]byte)
	m.journal = m.journal[:0]
}

func (m *Manager) loadTokenList() ([]string, error) {
	data, err := m.read(tokenListKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	var list []string
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) writeTokenList(list []string) error {
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	m.write(tokenListKey, encoded)
	return nil
}

func (m *Manager) loadTokenMetadata(symbol string) (*TokenMetadata, error) {
	data, err := m.read(tokenMetadataKey(symbol))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	meta := new(TokenMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	if meta.TotalSupply == nil {
		meta.TotalSupply = big.NewInt(0)
	}
	return meta, nil
}

func (m *Manager) writeTokenMetadata(symbol string, meta *TokenMetadata) error {
	if meta.TotalSupply == nil {
		meta.TotalSupply = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	m.write(tokenMetadataKey(symbol), encoded)
	return nil
}

// RegisterToken stores the metadata for a token and records it in the token
// index.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if existing, err := m.loadTokenMetadata(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("token %s: %w", normalized, ErrTokenRegistered)
	}

	list, err := m.loadTokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	if err := m.writeTokenList(list); err != nil {
		return err
	}

	meta := &TokenMetadata{
		Symbol:      normalized,
		Name:        strings.TrimSpace(name),
		Decimals:    decimals,
		TotalSupply: big.NewInt(0),
	}
	return m.writeTokenMetadata(normalized, meta)
}

// SetTokenMintAuthority configures the mint authority for the given token.
func (m *Manager) SetTokenMintAuthority(symbol string, authority []byte) error {
	normalized := normalizeSymbol(symbol)
	meta, err := m.loadTokenMetadata(normalized)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("token %s: %w", normalized, ErrTokenUnknown)
	}
	meta.MintAuthority = append([]byte(nil), authority...)
	return m.writeTokenMetadata(normalized, meta)
}

// SetTokenMintPaused stores the paused state for the given token.
func (m *Manager) SetTokenMintPaused(symbol string, paused bool) error {
	normalized := normalizeSymbol(symbol)
	meta, err := m.loadTokenMetadata(normalized)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("token %s: %w", normalized, ErrTokenUnknown)
	}
	meta.MintPaused = paused
	return m.writeTokenMetadata(normalized, meta)
}

// SetTokenSupply records the circulating supply of the token.
func (m *Manager) SetTokenSupply(symbol string, supply *big.Int) error {
	normalized := normalizeSymbol(symbol)
	meta, err := m.loadTokenMetadata(normalized)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("token %s: %w", normalized, ErrTokenUnknown)
	}
	if supply == nil || supply.Sign() < 0 {
		return fmt.Errorf("token %s: invalid supply", normalized)
	}
	meta.TotalSupply = new(big.Int).Set(supply)
	return m.writeTokenMetadata(normalized, meta)
}

// Token retrieves metadata for a registered token. A nil result means the
// token does not exist.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	return m.loadTokenMetadata(normalizeSymbol(symbol))
}

// TokenList returns all registered token symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	return m.loadTokenList()
}

// TokenExists reports whether the provided token symbol is registered.
func (m *Manager) TokenExists(symbol string) bool {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return false
	}
	meta, err := m.loadTokenMetadata(normalized)
	if err != nil || meta == nil {
		return false
	}
	return true
}

// SetBalance stores an account balance for the provided token.
func (m *Manager) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if meta, err := m.loadTokenMetadata(normalized); err != nil {
		return err
	} else if meta == nil {
		return fmt.Errorf("token %s: %w", normalized, ErrTokenUnknown)
	}
	key := balanceKey(addr, normalized)
	if amount.Sign() == 0 {
		m.erase(key)
		return nil
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	m.write(key, encoded)
	return nil
}

// Balance retrieves a token balance for the provided account and token.
func (m *Manager) Balance(addr []byte, symbol string) (*big.Int, error) {
	data, err := m.read(balanceKey(addr, normalizeSymbol(symbol)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetAllowance records how much of owner's balance spender may move.
func (m *Manager) SetAllowance(owner, spender []byte, symbol string, amount *big.Int) error {
	if len(owner) == 0 || len(spender) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative allowance not allowed")
	}
	key := allowanceKey(owner, spender, normalizeSymbol(symbol))
	if amount.Sign() == 0 {
		m.erase(key)
		return nil
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	m.write(key, encoded)
	return nil
}

// Allowance returns the amount spender may move from owner.
func (m *Manager) Allowance(owner, spender []byte, symbol string) (*big.Int, error) {
	data, err := m.read(allowanceKey(owner, spender, normalizeSymbol(symbol)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.erase(kvKey(key))
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if string(existing) == string(value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
