package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func (s *session) book() (balanceBook, error) {
	book, ok := s.funds.(balanceBook)
	if !ok {
		return nil, ErrNoBalanceBook
	}
	return book, nil
}

// Balance reports owner's holdings of token in the funds backend.
func (e *Engine) Balance(token, owner common.Address) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(s *session) error {
		book, err := s.book()
		if err != nil {
			return err
		}
		out, err = book.Balance(s.ctx, token, owner)
		return err
	})
	return out, err
}

// Allowance reports how much of owner's token the custody may still pull.
func (e *Engine) Allowance(token, owner common.Address) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(s *session) error {
		book, err := s.book()
		if err != nil {
			return err
		}
		out, err = book.Allowance(s.ctx, token, owner, s.params.Custody)
		return err
	})
	return out, err
}

// Approve lets the custody pull up to amount of owner's token when owner pays
// for token priced products.
func (e *Engine) Approve(ctx context.Context, owner, token common.Address, amount *big.Int) error {
	return e.update(ctx, "approve", func(s *session) error {
		book, err := s.book()
		if err != nil {
			return err
		}
		return book.Approve(s.ctx, token, owner, s.params.Custody, amount)
	})
}

// Allocation is an opening balance credited by ApplyGenesis.
type Allocation struct {
	Token  common.Address
	To     common.Address
	Amount *big.Int
}

// ApplyGenesis mints every allocation in one transaction and records that
// genesis ran. It reports false without minting when genesis already ran or
// the ledger has committed other operations.
func (e *Engine) ApplyGenesis(ctx context.Context, allocations []Allocation) (bool, error) {
	if len(allocations) == 0 {
		return false, nil
	}
	fresh := false
	err := e.view(func(s *session) error {
		done, err := s.store.genesisApplied()
		if err != nil {
			return err
		}
		seq, err := s.store.sequence()
		if err != nil {
			return err
		}
		fresh = !done && seq == 0
		return nil
	})
	if err != nil || !fresh {
		return false, err
	}
	err = e.update(ctx, "genesis", func(s *session) error {
		book, err := s.book()
		if err != nil {
			return err
		}
		for i, alloc := range allocations {
			if err := book.Mint(s.ctx, alloc.Token, alloc.To, alloc.Amount); err != nil {
				return fmt.Errorf("genesis[%d]: %w", i, err)
			}
		}
		return s.store.markGenesis()
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mint credits amount of token to an account. It seeds balances at genesis
// and is not reachable from the gateway.
func (e *Engine) Mint(ctx context.Context, token, to common.Address, amount *big.Int) error {
	return e.update(ctx, "mint", func(s *session) error {
		book, err := s.book()
		if err != nil {
			return err
		}
		return book.Mint(s.ctx, token, to, amount)
	})
}
