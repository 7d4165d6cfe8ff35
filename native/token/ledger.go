package token

import (
	"errors"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/core/events"
	"portalchain/core/state"
	"portalchain/core/types"
	nativecommon "portalchain/native/common"
)

var (
	errNilState              = nativecommon.NewError(nativecommon.KindState, "token ledger: state not configured")
	ErrInvalidAmount         = nativecommon.NewError(nativecommon.KindInvalidAmount, "token ledger: amount must be positive")
	ErrInvalidAddress        = nativecommon.NewError(nativecommon.KindInvalidAddress, "token ledger: address must not be zero")
	ErrInvalidSymbol         = nativecommon.NewError(nativecommon.KindInvalidAddress, "token ledger: symbol required")
	ErrTokenExists           = nativecommon.NewError(nativecommon.KindTokenExists, "token ledger: token already exists")
	ErrTokenUnknown          = nativecommon.NewError(nativecommon.KindTokenNotCreated, "token ledger: token not created")
	ErrNotMintAuthority      = nativecommon.NewError(nativecommon.KindNotOwner, "token ledger: caller is not the mint authority")
	ErrMintPaused            = nativecommon.NewError(nativecommon.KindModulePaused, "token ledger: minting paused")
	ErrInsufficientBalance   = nativecommon.NewError(nativecommon.KindInsufficientBalance, "token ledger: insufficient balance")
	ErrInsufficientAllowance = nativecommon.NewError(nativecommon.KindInsufficientBalance, "token ledger: insufficient allowance")
)

type ledgerState interface {
	RegisterToken(symbol, name string, decimals uint8) error
	SetTokenMintAuthority(symbol string, authority []byte) error
	SetTokenSupply(symbol string, supply *big.Int) error
	Token(symbol string) (*state.TokenMetadata, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetAllowance(owner, spender []byte, symbol string, amount *big.Int) error
	Allowance(owner, spender []byte, symbol string) (*big.Int, error)
}

// Ledger tracks balances, supplies and allowances for every fungible asset
// known to the ledger: principal assets, the reserve asset, bonding tokens
// and energy tokens.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger constructs a ledger over the supplied state backend.
func NewLedger(st ledgerState) *Ledger {
	return &Ledger{state: st, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || evt == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(events.Wrap(evt))
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (l *Ledger) token(symbol string) (*state.TokenMetadata, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if normalize(symbol) == "" {
		return nil, ErrInvalidSymbol
	}
	meta, err := l.state.Token(symbol)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrTokenUnknown
	}
	return meta, nil
}

// CreateToken registers a new token whose supply can only be minted by the
// authority.
func (l *Ledger) CreateToken(symbol, name string, decimals uint8, authority ethcommon.Address) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	normalized := normalize(symbol)
	if normalized == "" {
		return ErrInvalidSymbol
	}
	if strings.TrimSpace(name) == "" {
		name = normalized
	}
	if err := l.state.RegisterToken(normalized, name, decimals); err != nil {
		if errors.Is(err, state.ErrTokenRegistered) {
			return ErrTokenExists
		}
		return err
	}
	if authority != (ethcommon.Address{}) {
		if err := l.state.SetTokenMintAuthority(normalized, authority.Bytes()); err != nil {
			return err
		}
	}
	l.emit(TokenCreatedEvent(normalized, name, decimals, authority))
	return nil
}

// Exists reports whether the token has been created.
func (l *Ledger) Exists(symbol string) bool {
	_, err := l.token(symbol)
	return err == nil
}

// Decimals returns the native decimal count of the token.
func (l *Ledger) Decimals(symbol string) (uint8, error) {
	meta, err := l.token(symbol)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// Mint credits new supply to the recipient. Only the token's mint authority
// may mint.
func (l *Ledger) Mint(symbol string, authority, to ethcommon.Address, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if to == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	if len(meta.MintAuthority) == 0 || ethcommon.BytesToAddress(meta.MintAuthority) != authority {
		return ErrNotMintAuthority
	}
	if meta.MintPaused {
		return ErrMintPaused
	}
	supply, err := nativecommon.Add(meta.TotalSupply, amount)
	if err != nil {
		return err
	}
	balance, err := l.state.Balance(to.Bytes(), meta.Symbol)
	if err != nil {
		return err
	}
	balance, err = nativecommon.Add(balance, amount)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(to.Bytes(), meta.Symbol, balance); err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(meta.Symbol, supply); err != nil {
		return err
	}
	l.emit(MintedEvent(meta.Symbol, to, amount))
	return nil
}

// Burn destroys tokens held by the owner.
func (l *Ledger) Burn(symbol string, from ethcommon.Address, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	return l.burn(meta, from, amount)
}

// BurnFrom destroys tokens held by from on behalf of spender, consuming the
// allowance previously granted through Approve.
func (l *Ledger) BurnFrom(symbol string, spender, from ethcommon.Address, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if err := l.spendAllowance(meta.Symbol, from, spender, amount); err != nil {
		return err
	}
	return l.burn(meta, from, amount)
}

func (l *Ledger) burn(meta *state.TokenMetadata, from ethcommon.Address, amount *big.Int) error {
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if from == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	balance, err := l.state.Balance(from.Bytes(), meta.Symbol)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := nativecommon.Sub(meta.TotalSupply, amount)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(from.Bytes(), meta.Symbol, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(meta.Symbol, supply); err != nil {
		return err
	}
	l.emit(BurnedEvent(meta.Symbol, from, amount))
	return nil
}

// Transfer moves tokens between two accounts.
func (l *Ledger) Transfer(symbol string, from, to ethcommon.Address, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if from == (ethcommon.Address{}) || to == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	fromBalance, err := l.state.Balance(from.Bytes(), meta.Symbol)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := l.state.Balance(to.Bytes(), meta.Symbol)
	if err != nil {
		return err
	}
	toBalance, err = nativecommon.Add(toBalance, amount)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(from.Bytes(), meta.Symbol, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := l.state.SetBalance(to.Bytes(), meta.Symbol, toBalance); err != nil {
		return err
	}
	l.emit(TransferEvent(meta.Symbol, from, to, amount))
	return nil
}

// TransferFrom moves tokens on behalf of the owner using an allowance.
func (l *Ledger) TransferFrom(symbol string, spender, from, to ethcommon.Address, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	if !nativecommon.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if err := l.spendAllowance(meta.Symbol, from, spender, amount); err != nil {
		return err
	}
	return l.Transfer(meta.Symbol, from, to, amount)
}

// Approve sets the amount spender may move from owner's balance.
func (l *Ledger) Approve(symbol string, owner, spender ethcommon.Address, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	if owner == (ethcommon.Address{}) || spender == (ethcommon.Address{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := nativecommon.CheckRange(amount); err != nil {
		return err
	}
	if err := l.state.SetAllowance(owner.Bytes(), spender.Bytes(), meta.Symbol, amount); err != nil {
		return err
	}
	l.emit(ApprovalEvent(meta.Symbol, owner, spender, amount))
	return nil
}

// Allowance returns the remaining amount spender may move from owner.
func (l *Ledger) Allowance(symbol string, owner, spender ethcommon.Address) (*big.Int, error) {
	meta, err := l.token(symbol)
	if err != nil {
		return nil, err
	}
	return l.state.Allowance(owner.Bytes(), spender.Bytes(), meta.Symbol)
}

func (l *Ledger) spendAllowance(symbol string, owner, spender ethcommon.Address, amount *big.Int) error {
	if owner == spender {
		return nil
	}
	allowance, err := l.state.Allowance(owner.Bytes(), spender.Bytes(), symbol)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	return l.state.SetAllowance(owner.Bytes(), spender.Bytes(), symbol, new(big.Int).Sub(allowance, amount))
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(symbol string, addr ethcommon.Address) (*big.Int, error) {
	meta, err := l.token(symbol)
	if err != nil {
		return nil, err
	}
	return l.state.Balance(addr.Bytes(), meta.Symbol)
}

// TotalSupply returns the circulating supply of the token.
func (l *Ledger) TotalSupply(symbol string) (*big.Int, error) {
	meta, err := l.token(symbol)
	if err != nil {
		return nil, err
	}
	return nativecommon.Clone(meta.TotalSupply), nil
}
