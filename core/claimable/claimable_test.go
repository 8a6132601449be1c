package claimable

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/state"
	"cryptoavisos/storage"
)

var dai = common.HexToAddress("0x00000000000000000000000000000000000000da")

func TestAccrueAndDebit(t *testing.T) {
	tr := NewTracker(state.NewManager(storage.NewMemDB()))
	if err := tr.Accrue(BucketFee, dai, big.NewInt(18)); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if err := tr.Accrue(BucketShipping, dai, big.NewInt(5)); err != nil {
		t.Fatalf("accrue shipping: %v", err)
	}
	fee, _ := tr.Fee(dai)
	shipping, _ := tr.Shipping(dai)
	if fee.Cmp(big.NewInt(18)) != 0 || shipping.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected balances fee=%s shipping=%s", fee, shipping)
	}

	if _, err := tr.Debit(BucketFee, dai, big.NewInt(19)); !errors.Is(err, coreerrors.ErrInsufficientFunds) {
		t.Fatalf("expected !funds, got %v", err)
	}
	remaining, err := tr.Debit(BucketFee, dai, big.NewInt(8))
	if err != nil {
		t.Fatalf("partial debit: %v", err)
	}
	if remaining.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10 remaining, got %s", remaining)
	}
	remaining, err = tr.Debit(BucketFee, dai, big.NewInt(10))
	if err != nil || remaining.Sign() != 0 {
		t.Fatalf("expected bucket drained, got %s err=%v", remaining, err)
	}
	shipping, _ = tr.Shipping(dai)
	if shipping.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("fee debits must not touch shipping, got %s", shipping)
	}
}

func TestRejectsNegativeAndUnknownBucket(t *testing.T) {
	tr := NewTracker(state.NewManager(storage.NewMemDB()))
	if err := tr.Accrue(BucketFee, dai, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := tr.Balance(Bucket(9), dai); !errors.Is(err, ErrInvalidBucket) {
		t.Fatalf("expected ErrInvalidBucket, got %v", err)
	}
}
