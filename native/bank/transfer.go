package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cryptoavisos/core/events"
	"cryptoavisos/core/state"
)

var (
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrNegativeAmount        = errors.New("bank: negative amount")
	ErrZeroRecipient         = errors.New("bank: transfer to the zero address")
	errNilState              = errors.New("bank: state not configured")
)

var (
	balancePrefix   = []byte("bank/balance/")
	allowancePrefix = []byte("bank/allowance/")
)

// Native is the token identifier of the native currency.
var Native = common.Address{}

func balanceKey(token, owner common.Address) []byte {
	buf := make([]byte, 0, len(balancePrefix)+2*common.AddressLength)
	buf = append(buf, balancePrefix...)
	buf = append(buf, token.Bytes()...)
	return append(buf, owner.Bytes()...)
}

func allowanceKey(token, owner, spender common.Address) []byte {
	buf := make([]byte, 0, len(allowancePrefix)+3*common.AddressLength)
	buf = append(buf, allowancePrefix...)
	buf = append(buf, token.Bytes()...)
	buf = append(buf, owner.Bytes()...)
	return append(buf, spender.Bytes()...)
}

// Ledger keeps native and token balances in ledger state. Because it writes
// through the KV it is handed, its movements commit or roll back together with
// the operation that issued them.
type Ledger struct {
	kv      state.KV
	emitter events.Emitter
}

// NewLedger binds a ledger to the provided state. A nil emitter discards
// transfer events.
func NewLedger(kv state.KV, emitter events.Emitter) *Ledger {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Ledger{kv: kv, emitter: emitter}
}

func (l *Ledger) load(key []byte) (*big.Int, error) {
	if l == nil || l.kv == nil {
		return nil, errNilState
	}
	amount := new(big.Int)
	ok, err := l.kv.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (l *Ledger) store(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return l.kv.KVDelete(key)
	}
	return l.kv.KVPut(key, amount)
}

func checkAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return big.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return new(big.Int).Set(amount), nil
}

// Balance returns the holdings of owner in token.
func (l *Ledger) Balance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return l.load(balanceKey(token, owner))
}

// Mint credits amount to the recipient out of thin air. It is used to seed
// balances at genesis and in tests.
func (l *Ledger) Mint(ctx context.Context, token, to common.Address, amount *big.Int) error {
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroRecipient
	}
	current, err := l.load(balanceKey(token, to))
	if err != nil {
		return err
	}
	return l.store(balanceKey(token, to), current.Add(current, amt))
}

// Approve sets the amount spender may move out of owner's balance.
func (l *Ledger) Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if l == nil || l.kv == nil {
		return errNilState
	}
	return l.store(allowanceKey(token, owner, spender), amt)
}

// Allowance returns the remaining amount spender may move for owner.
func (l *Ledger) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return l.load(allowanceKey(token, owner, spender))
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if amt.Sign() == 0 {
		return nil
	}
	if to == (common.Address{}) {
		return ErrZeroRecipient
	}
	fromBal, err := l.load(balanceKey(token, from))
	if err != nil {
		return err
	}
	if fromBal.Cmp(amt) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, amt)
	}
	if err := l.store(balanceKey(token, from), fromBal.Sub(fromBal, amt)); err != nil {
		return err
	}
	toBal, err := l.load(balanceKey(token, to))
	if err != nil {
		return err
	}
	if err := l.store(balanceKey(token, to), toBal.Add(toBal, amt)); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Token: token, From: from, To: to, Amount: amt})
	return nil
}

// TransferFrom moves amount on behalf of from, consuming spender's allowance.
func (l *Ledger) TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error {
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if amt.Sign() == 0 {
		return nil
	}
	allowance, err := l.load(allowanceKey(token, from, spender))
	if err != nil {
		return err
	}
	if allowance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amt)
	}
	if err := l.store(allowanceKey(token, from, spender), allowance.Sub(allowance, amt)); err != nil {
		return err
	}
	return l.Transfer(ctx, token, from, to, amt)
}
