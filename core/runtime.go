package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/config"
	"portalchain/core/events"
	"portalchain/core/state"
	nativecommon "portalchain/native/common"
	"portalchain/native/liquidity"
	"portalchain/native/portal"
	"portalchain/native/position"
	"portalchain/native/token"
	"portalchain/native/yield"
	"portalchain/observability"
	"portalchain/storage"
)

// ErrUnknownPortal is returned when no portal serves the requested asset.
var ErrUnknownPortal = nativecommon.NewError(nativecommon.KindNotFound, "runtime: unknown portal")

// Modules exposes the engines to a single Execute or View call.
type Modules struct {
	Ledger    *token.Ledger
	Positions *position.Registry
	Yield     *yield.Source
	Liquidity *liquidity.Engine
	portals   map[string]*portal.Engine
}

// Portal returns the engine for asset.
func (m *Modules) Portal(asset string) (*portal.Engine, error) {
	engine, ok := m.portals[strings.ToUpper(strings.TrimSpace(asset))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPortal, asset)
	}
	return engine, nil
}

// Assets lists the portal assets in sorted order.
func (m *Modules) Assets() []string {
	out := make([]string, 0, len(m.portals))
	for asset := range m.portals {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// Runtime serialises ledger operations. Each Execute call either commits all
// of its writes and events or none of them.
type Runtime struct {
	mu      sync.Mutex
	state   *state.Manager
	modules *Modules
	buffer  *events.Buffer
	emitter events.Emitter
	logger  *slog.Logger
	metrics *observability.RuntimeMetrics
}

// Option customises a Runtime.
type Option func(*Runtime)

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(r *Runtime) {
		if emitter != nil {
			r.emitter = emitter
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the engines' clock.
func WithClock(now func() int64) Option {
	return func(r *Runtime) {
		m := r.modules
		m.Liquidity.SetNowFunc(now)
		for _, engine := range m.portals {
			engine.SetNowFunc(now)
		}
	}
}

// NewRuntime wires the engines described by cfg over db and bootstraps the
// genesis state when the database is empty.
func NewRuntime(db storage.Database, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	manager := state.NewManager(db)
	ledger := token.NewLedger(manager)
	positions := position.NewRegistry(manager)
	source := yield.NewSource(manager, ledger)

	r := &Runtime{
		state:   manager,
		buffer:  &events.Buffer{},
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		metrics: observability.Runtime(),
	}
	pauses := nativecommon.StaticPauses{
		"liquidity": cfg.Pauses.Liquidity,
		"portal":    cfg.Pauses.Portal,
	}

	lpParams, err := cfg.LiquidityParams()
	if err != nil {
		return nil, err
	}
	lp := liquidity.NewEngine(lpParams)
	lp.SetState(manager)
	lp.SetBank(ledger)
	lp.SetYieldClaimer(source)
	lp.SetPauses(pauses)
	lp.SetEmitter(r.buffer)
	ledger.SetEmitter(r.buffer)
	positions.SetEmitter(r.buffer)
	source.SetEmitter(r.buffer)

	portals := make(map[string]*portal.Engine, len(cfg.Portals))
	for i := range cfg.Portals {
		params, err := cfg.PortalParams(i)
		if err != nil {
			return nil, err
		}
		engine := portal.NewEngine(params)
		engine.SetState(manager)
		engine.SetBank(ledger)
		engine.SetPositionRegistry(positions)
		engine.SetYieldSource(source)
		engine.SetLiquidity(lp)
		engine.SetPauses(pauses)
		engine.SetEmitter(r.buffer)
		portals[engine.Asset()] = engine
	}
	r.modules = &Modules{
		Ledger:    ledger,
		Positions: positions,
		Yield:     source,
		Liquidity: lp,
		portals:   portals,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if err := r.Execute(context.Background(), "genesis", func(m *Modules) error {
		return bootstrap(cfg, m)
	}); err != nil {
		return nil, fmt.Errorf("bootstrap genesis: %w", err)
	}
	return r, nil
}

// bootstrap creates genesis tokens, the liquidity pool, vaults and portals
// that do not exist yet, so restarts over a populated database are no-ops.
func bootstrap(cfg *config.Config, m *Modules) error {
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return err
	}
	authority, err := cfg.MintAuthorityAddress()
	if err != nil {
		return err
	}
	for _, tok := range cfg.Tokens {
		if m.Ledger.Exists(tok.Symbol) {
			continue
		}
		name := tok.Name
		if name == "" {
			name = strings.ToUpper(tok.Symbol)
		}
		if err := m.Ledger.CreateToken(tok.Symbol, name, tok.Decimals, authority); err != nil {
			return err
		}
	}
	if _, err := m.Liquidity.Pool(); errors.Is(err, liquidity.ErrNotInitialized) {
		if err := m.Liquidity.Initialize(owner); err != nil {
			return err
		}
		if err := m.Liquidity.CreateBondingToken(); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	for i, entry := range cfg.Portals {
		engine, err := m.Portal(entry.Asset)
		if err != nil {
			return err
		}
		if _, err := engine.Portal(); err == nil {
			continue
		} else if !errors.Is(err, portal.ErrNotInitialized) {
			return err
		}
		ref, err := cfg.VaultRef(i)
		if err != nil {
			return err
		}
		if err := m.Yield.CreateVault(ref, entry.PoolIndex, engine.Asset(), engine.Asset()); err != nil && !errors.Is(err, yield.ErrVaultExists) {
			return err
		}
		if err := engine.Initialize(); err != nil {
			return err
		}
		if err := engine.CreateEnergyToken(); err != nil {
			return err
		}
		if err := engine.CreatePositionCollection(); err != nil {
			return err
		}
		if err := m.Liquidity.RegisterPortal(owner, engine.Address(), engine.Asset(), ref, entry.PoolIndex); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs fn atomically. On error every state write made by fn is
// reverted and its events are dropped; on success the writes are committed to
// the database and the events are forwarded to the emitter.
func (r *Runtime) Execute(ctx context.Context, op string, fn func(*Modules) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	snapshot := r.state.Snapshot()
	defer func() {
		if recovered := recover(); recovered != nil {
			r.state.RevertToSnapshot(snapshot)
			r.buffer.Discard()
			r.metrics.Observe(op, "Panic", time.Since(started))
			r.logger.Error("operation panicked", slog.String("op", op), slog.Any("panic", recovered))
			panic(recovered)
		}
	}()
	if err := fn(r.modules); err != nil {
		r.state.RevertToSnapshot(snapshot)
		r.buffer.Discard()
		kind := nativecommon.KindOf(err).String()
		r.metrics.Observe(op, kind, time.Since(started))
		r.logger.Debug("operation reverted", slog.String("op", op), slog.String("kind", kind), slog.Any("error", err))
		return err
	}
	if err := r.state.Commit(); err != nil {
		r.state.Discard()
		r.buffer.Discard()
		r.metrics.Observe(op, nativecommon.KindState.String(), time.Since(started))
		r.logger.Error("commit failed", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("commit %s: %w", op, err)
	}
	emitted := r.buffer.Flush(r.emitter)
	r.metrics.Observe(op, "", time.Since(started))
	r.logger.Debug("operation committed", slog.String("op", op), slog.Int("events", len(emitted)))
	r.recordLedger()
	return nil
}

// View runs fn under the runtime lock and discards any writes it makes.
func (r *Runtime) View(ctx context.Context, fn func(*Modules) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state.Snapshot()
	defer func() {
		r.state.RevertToSnapshot(snapshot)
		r.buffer.Discard()
	}()
	return fn(r.modules)
}

// Assets lists the configured portal assets.
func (r *Runtime) Assets() []string { return r.modules.Assets() }

// PortalAddress returns the custody address of the portal for asset.
func (r *Runtime) PortalAddress(asset string) (ethcommon.Address, error) {
	engine, err := r.modules.Portal(asset)
	if err != nil {
		return ethcommon.Address{}, err
	}
	return engine.Address(), nil
}

func (r *Runtime) recordLedger() {
	gauges := observability.Ledger()
	m := r.modules
	if pool, err := m.Liquidity.Pool(); err == nil {
		reserve, err := m.Liquidity.PortalReserve()
		if err != nil {
			reserve = nil
		}
		gauges.RecordPool(pool.Phase == liquidity.PhaseActive, reserve, pool.FundingRewardPool, pool.FundingRewardsCollected, pool.FundingMaxRewards)
	}
	for asset, engine := range m.portals {
		if p, err := engine.Portal(); err == nil {
			gauges.RecordStaked(asset, p.TotalPrincipalStaked)
		}
	}
}
