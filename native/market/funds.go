package market

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cryptoavisos/core/events"
	"cryptoavisos/core/state"
	"cryptoavisos/native/bank"
)

// ErrReentrant is returned when a funds primitive calls back into the engine
// while the operation that invoked it is still in flight.
var ErrReentrant = errors.New("market: reentrant call")

// Funds moves native currency and tokens on behalf of the engine. The zero
// token address denotes the native currency.
type Funds interface {
	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error
}

// FundsFactory binds a Funds implementation to the state of one operation so
// that its balance changes commit or roll back with the market bookkeeping.
// Events emitted through the supplied emitter are published after commit.
type FundsFactory func(kv state.KV, emitter events.Emitter) Funds

// balanceBook is implemented by funds backends that also expose balances,
// allowances and minting, such as bank.Ledger.
type balanceBook interface {
	Funds
	Balance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error
	Mint(ctx context.Context, token, to common.Address, amount *big.Int) error
}

// ErrNoBalanceBook is returned by balance helpers when the configured funds
// backend does not keep balances itself.
var ErrNoBalanceBook = errors.New("market: funds backend does not expose balances")

// DefaultFunds keeps balances in the ledger's own state.
func DefaultFunds(kv state.KV, emitter events.Emitter) Funds {
	return bank.NewLedger(kv, emitter)
}

// transfer and transferFrom run the funds backend with the in-flight marker
// raised so that a callback on a fresh context is refused instead of waiting
// on the engine lock.
func (s *session) transfer(token, from, to common.Address, amount *big.Int) error {
	defer s.enterFunds()()
	return s.funds.Transfer(s.ctx, token, from, to, amount)
}

func (s *session) transferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	defer s.enterFunds()()
	return s.funds.TransferFrom(s.ctx, token, spender, from, to, amount)
}

func (s *session) enterFunds() func() {
	if s.transferring == nil {
		return func() {}
	}
	s.transferring.Store(true)
	return func() { s.transferring.Store(false) }
}

type reentrancyKey struct{}

func enter(ctx context.Context, e *Engine) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if owner, ok := ctx.Value(reentrancyKey{}).(*Engine); ok && owner == e {
		return nil, ErrReentrant
	}
	return context.WithValue(ctx, reentrancyKey{}, e), nil
}
