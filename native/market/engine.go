package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cryptoavisos/core/claimable"
	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/events"
	"cryptoavisos/core/state"
	"cryptoavisos/native/fees"
	"cryptoavisos/native/shipping"
	"cryptoavisos/observability/metrics"
)

var (
	errNilState   = errors.New("market engine: state not configured")
	errNoAdmin    = errors.New("market engine: admin address required")
	errNoCustody  = errors.New("market engine: custody address required")
	errInitialFee = errors.New("market engine: initial fee out of range")
)

// Params are fixed for the lifetime of a ledger.
type Params struct {
	// Admin may release, refund, claim and manage fees, whitelist and signer.
	Admin common.Address
	// Custody holds every escrowed payment and the claimable balances.
	Custody common.Address
	// InitialFee is written once, when the ledger is first opened.
	InitialFee *big.Int
	// AllowedSigner is installed when the ledger has no shipping signer yet.
	AllowedSigner common.Address
	// DomainID is mixed into every shipping authorization payload.
	DomainID uint64
}

// Engine serialises market operations over ledger state. Each operation runs
// in its own state transaction; bookkeeping is written before any funds move
// and a failed transfer discards the whole operation.
type Engine struct {
	mu      sync.Mutex
	state   *state.Manager
	params  Params
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.MarketMetrics
	funds   FundsFactory
	nowFn   func() int64

	// external is set when a custom funds backend is installed; transferring
	// marks that backend running while mu is held.
	external     bool
	transferring atomic.Bool
}

// NewEngine opens the market over mgr, initialising the fee and the shipping
// signer on first use.
func NewEngine(mgr *state.Manager, params Params) (*Engine, error) {
	if mgr == nil {
		return nil, errNilState
	}
	if params.Admin == (common.Address{}) {
		return nil, errNoAdmin
	}
	if params.Custody == (common.Address{}) {
		return nil, errNoCustody
	}
	if params.InitialFee == nil {
		params.InitialFee = big.NewInt(0)
	}
	if fees.Validate(params.InitialFee) != nil {
		return nil, errInitialFee
	}
	params.InitialFee = new(big.Int).Set(params.InitialFee)
	e := &Engine{
		state:   mgr,
		params:  params,
		emitter: events.NoopEmitter{},
		logger:  slog.Default().With("component", "market"),
		metrics: metrics.Market(),
		funds:   DefaultFunds,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	err := mgr.Update(func(tx *state.Txn) error {
		if err := fees.NewController(tx).Init(params.InitialFee); err != nil {
			return err
		}
		verifier := shipping.NewVerifier(tx, params.DomainID)
		current, err := verifier.Signer()
		if err != nil {
			return err
		}
		if current == (common.Address{}) && params.AllowedSigner != (common.Address{}) {
			return verifier.SetSigner(params.AllowedSigner)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("market engine: initialise: %w", err)
	}
	if cfg, err := e.Fee(); err == nil {
		e.metrics.SetFee(cfg.Current)
	}
	return e, nil
}

// SetEmitter configures where committed events are published. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With("component", "market")
}

// SetFunds replaces the funds backend. Passing nil restores DefaultFunds.
func (e *Engine) SetFunds(factory FundsFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.external = factory != nil
	if factory == nil {
		factory = DefaultFunds
	}
	e.funds = factory
}

// SetNowFunc overrides the clock used for the fee time lock. Primarily
// intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

func (e *Engine) Admin() common.Address   { return e.params.Admin }
func (e *Engine) Custody() common.Address { return e.params.Custody }
func (e *Engine) DomainID() uint64        { return e.params.DomainID }

func (e *Engine) now() uint64 {
	now := e.nowFn()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

// session carries the collaborators of one operation, all bound to the same
// transaction.
type session struct {
	ctx      context.Context
	params   Params
	store    store
	fees     *fees.Controller
	shipping *shipping.Verifier
	claims   *claimable.Tracker
	funds    Funds
	events   *events.Buffer
	seq      uint64
	now      uint64
	onCommit []func()

	transferring *atomic.Bool
}

func (s *session) emit(evt events.Event) { s.events.Emit(evt) }

func (s *session) afterCommit(fn func()) { s.onCommit = append(s.onCommit, fn) }

func (s *session) requireAdmin(caller common.Address) error {
	if caller != s.params.Admin {
		return coreerrors.ErrNotAdmin
	}
	return nil
}

func (e *Engine) bind(ctx context.Context, kv state.KV, buf *events.Buffer) *session {
	return &session{
		ctx:      ctx,
		params:   e.params,
		store:    store{kv: kv},
		fees:     fees.NewController(kv),
		shipping: shipping.NewVerifier(kv, e.params.DomainID),
		claims:   claimable.NewTracker(kv),
		funds:    e.funds(kv, buf),
		events:   buf,
	}
}

func (e *Engine) bindUpdate(ctx context.Context, kv state.KV, buf *events.Buffer) *session {
	sess := e.bind(ctx, kv, buf)
	if e.external {
		sess.transferring = &e.transferring
	}
	return sess
}

// update runs fn as one atomic ledger transaction. Events are published and
// commit hooks run only once the transaction has been written.
func (e *Engine) update(ctx context.Context, op string, fn func(s *session) error) error {
	ctx, err := enter(ctx, e)
	if err != nil {
		e.metrics.ObserveOperation(op, "reentrant")
		return err
	}
	// A funds backend re-entering with a fresh context would block on mu
	// forever.
	if !e.mu.TryLock() {
		if e.transferring.Load() {
			e.metrics.ObserveOperation(op, "reentrant")
			return ErrReentrant
		}
		e.mu.Lock()
	}
	defer e.mu.Unlock()

	buf := new(events.Buffer)
	var sess *session
	err = e.state.Update(func(tx *state.Txn) error {
		sess = e.bindUpdate(ctx, tx, buf)
		sess.now = e.now()
		seq, err := sess.store.advance()
		if err != nil {
			return err
		}
		sess.seq = seq
		return fn(sess)
	})
	if err != nil {
		e.metrics.ObserveOperation(op, resultLabel(err))
		e.logger.Info("market operation rejected", "op", op, "error", err)
		return err
	}
	buf.Flush(e.emitter)
	for _, hook := range sess.onCommit {
		hook()
	}
	e.metrics.ObserveOperation(op, "ok")
	e.metrics.SetSequence(sess.seq)
	e.logger.Debug("market operation committed", "op", op, "sequence", sess.seq)
	return nil
}

// view runs fn against committed state. Reads never take the engine lock so
// that funds backends may inspect the ledger while an operation is running.
func (e *Engine) view(fn func(s *session) error) error {
	return e.state.View(func(kv state.KV) error {
		return fn(e.bind(context.Background(), kv, new(events.Buffer)))
	})
}

func resultLabel(err error) string {
	if errors.Is(err, ErrReentrant) {
		return "reentrant"
	}
	if kind, ok := coreerrors.KindOf(err); ok {
		return kind.String()
	}
	return "error"
}

// Sequence returns the last committed ledger sequence number.
func (e *Engine) Sequence() (uint64, error) {
	var seq uint64
	err := e.view(func(s *session) error {
		var err error
		seq, err = s.store.sequence()
		return err
	})
	return seq, err
}
