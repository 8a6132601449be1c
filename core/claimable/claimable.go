package claimable

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/state"
)

// Bucket selects which protocol balance an amount belongs to.
type Bucket uint8

const (
	BucketFee Bucket = iota
	BucketShipping
)

func (b Bucket) String() string {
	switch b {
	case BucketFee:
		return "fee"
	case BucketShipping:
		return "shipping"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidBucket = errors.New("claimable: invalid bucket")
	ErrInvalidAmount = errors.New("claimable: amount must not be negative")
)

var (
	feePrefix      = []byte("claimable/fee/")
	shippingPrefix = []byte("claimable/shipping/")
)

func bucketKey(bucket Bucket, token common.Address) ([]byte, error) {
	var prefix []byte
	switch bucket {
	case BucketFee:
		prefix = feePrefix
	case BucketShipping:
		prefix = shippingPrefix
	default:
		return nil, ErrInvalidBucket
	}
	return append(append([]byte(nil), prefix...), token.Bytes()...), nil
}

// Tracker holds the per-token fee and shipping balances accrued from released
// tickets.
type Tracker struct {
	kv state.KV
}

func NewTracker(kv state.KV) *Tracker {
	return &Tracker{kv: kv}
}

// Balance returns the claimable amount of token in bucket.
func (t *Tracker) Balance(bucket Bucket, token common.Address) (*big.Int, error) {
	key, err := bucketKey(bucket, token)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int)
	ok, err := t.kv.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (t *Tracker) Fee(token common.Address) (*big.Int, error) {
	return t.Balance(BucketFee, token)
}

func (t *Tracker) Shipping(token common.Address) (*big.Int, error) {
	return t.Balance(BucketShipping, token)
}

func (t *Tracker) put(bucket Bucket, token common.Address, amount *big.Int) error {
	key, err := bucketKey(bucket, token)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return t.kv.KVDelete(key)
	}
	return t.kv.KVPut(key, amount)
}

// Accrue adds amount to the bucket.
func (t *Tracker) Accrue(bucket Bucket, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	current, err := t.Balance(bucket, token)
	if err != nil {
		return err
	}
	return t.put(bucket, token, current.Add(current, amount))
}

// Debit removes amount from the bucket and returns what remains. Asking for
// more than the balance fails with !funds.
func (t *Tracker) Debit(bucket Bucket, token common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	current, err := t.Balance(bucket, token)
	if err != nil {
		return nil, err
	}
	if current.Cmp(amount) < 0 {
		return nil, coreerrors.ErrInsufficientFunds
	}
	remaining := current.Sub(current, amount)
	if err := t.put(bucket, token, remaining); err != nil {
		return nil, err
	}
	return new(big.Int).Set(remaining), nil
}
