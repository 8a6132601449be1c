package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cryptoavisos/core/claimable"
	"cryptoavisos/core/events"
	"cryptoavisos/native/fees"
)

func (s *session) claim(caller common.Address, bucket claimable.Bucket, token common.Address, amount *big.Int) (*big.Int, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	remaining, err := s.claims.Debit(bucket, token, amount)
	if err != nil {
		return nil, err
	}
	if err := s.transfer(token, s.params.Custody, s.params.Admin, amount); err != nil {
		return nil, err
	}
	s.emit(events.Claimed{
		Shipping:  bucket == claimable.BucketShipping,
		Token:     token,
		Amount:    new(big.Int).Set(amount),
		Remaining: remaining,
		Recipient: s.params.Admin,
	})
	return remaining, nil
}

func (e *Engine) claimBucket(ctx context.Context, op string, caller common.Address, bucket claimable.Bucket, token common.Address, amount *big.Int) error {
	return e.update(ctx, op, func(s *session) error {
		if _, err := s.claim(caller, bucket, token, amount); err != nil {
			return err
		}
		s.afterCommit(func() {
			e.metrics.ObserveClaimed(bucket.String(), events.TokenLabel(token), amount)
		})
		return nil
	})
}

// ClaimFees pays amount of the accrued fees in token to the admin.
func (e *Engine) ClaimFees(ctx context.Context, caller, token common.Address, amount *big.Int) error {
	return e.claimBucket(ctx, "claim_fees", caller, claimable.BucketFee, token, amount)
}

// ClaimShippingCost pays amount of the accrued shipping costs in token to the
// admin.
func (e *Engine) ClaimShippingCost(ctx context.Context, caller, token common.Address, amount *big.Int) error {
	return e.claimBucket(ctx, "claim_shipping", caller, claimable.BucketShipping, token, amount)
}

func (e *Engine) claimableBalance(bucket claimable.Bucket, token common.Address) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(s *session) error {
		var err error
		out, err = s.claims.Balance(bucket, token)
		return err
	})
	return out, err
}

func (e *Engine) ClaimableFee(token common.Address) (*big.Int, error) {
	return e.claimableBalance(claimable.BucketFee, token)
}

func (e *Engine) ClaimableShippingCost(token common.Address) (*big.Int, error) {
	return e.claimableBalance(claimable.BucketShipping, token)
}

// PrepareFee proposes a new fee, in 18 decimal fixed point percent, that can
// be implemented once the lock period has elapsed.
func (e *Engine) PrepareFee(ctx context.Context, caller common.Address, fee *big.Int) (*fees.Config, error) {
	var cfg *fees.Config
	err := e.update(ctx, "prepare_fee", func(s *session) error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		var err error
		cfg, err = s.fees.Prepare(fee, s.now)
		if err != nil {
			return err
		}
		s.emit(events.FeePrepared{Pending: cfg.Pending, UnlockAt: cfg.UnlockAt})
		return nil
	})
	return cfg, err
}

// ImplementFee makes the prepared fee current.
func (e *Engine) ImplementFee(ctx context.Context, caller common.Address) (*fees.Config, error) {
	var cfg *fees.Config
	err := e.update(ctx, "implement_fee", func(s *session) error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		previous, next, err := s.fees.Implement(s.now)
		if err != nil {
			return err
		}
		cfg = next
		s.emit(events.FeeImplemented{Previous: previous, Current: next.Current})
		s.afterCommit(func() { e.metrics.SetFee(next.Current) })
		return nil
	})
	return cfg, err
}

// Fee returns the fee configuration, including any pending proposal.
func (e *Engine) Fee() (*fees.Config, error) {
	var cfg *fees.Config
	err := e.view(func(s *session) error {
		var err error
		cfg, err = s.fees.Config()
		return err
	})
	return cfg, err
}

// SetAllowedSigner replaces the key accepted for shipping authorizations. The
// zero address disables shipping surcharges.
func (e *Engine) SetAllowedSigner(ctx context.Context, caller, signer common.Address) error {
	return e.update(ctx, "set_allowed_signer", func(s *session) error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		if err := s.shipping.SetSigner(signer); err != nil {
			return err
		}
		s.emit(events.ShippingSignerSet{Signer: signer})
		return nil
	})
}

func (e *Engine) AllowedSigner() (common.Address, error) {
	var signer common.Address
	err := e.view(func(s *session) error {
		var err error
		signer, err = s.shipping.Signer()
		return err
	})
	return signer, err
}

// ShippingNonce returns the nonce the next shipping authorization must carry.
func (e *Engine) ShippingNonce() (uint64, error) {
	var nonce uint64
	err := e.view(func(s *session) error {
		var err error
		nonce, err = s.shipping.Nonce()
		return err
	})
	return nonce, err
}
