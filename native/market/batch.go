package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cryptoavisos/core/errors"
)

// ProductBatch holds parallel columns describing several listings.
type ProductBatch struct {
	IDs     []uint64
	Sellers []common.Address
	Prices  []*big.Int
	Tokens  []common.Address
	Stocks  []uint64
}

func (b ProductBatch) inputs() ([]ProductInput, error) {
	n := len(b.IDs)
	if n == 0 || len(b.Sellers) != n || len(b.Prices) != n || len(b.Tokens) != n {
		return nil, coreerrors.ErrProductsID
	}
	if len(b.Stocks) != n {
		return nil, coreerrors.ErrStocks
	}
	out := make([]ProductInput, n)
	for i := range out {
		out[i] = ProductInput{ID: b.IDs[i], Seller: b.Sellers[i], Price: b.Prices[i], Token: b.Tokens[i], Stock: b.Stocks[i]}
	}
	return out, nil
}

func checkStockArity(ids, amounts []uint64) error {
	if len(ids) == 0 {
		return coreerrors.ErrProductsID
	}
	if len(amounts) != len(ids) {
		return coreerrors.ErrStocks
	}
	return nil
}

// BatchSubmitProduct submits every listing or none of them.
func (e *Engine) BatchSubmitProduct(ctx context.Context, caller common.Address, batch ProductBatch) error {
	inputs, err := batch.inputs()
	if err != nil {
		return err
	}
	return e.update(ctx, "batch_submit_product", func(s *session) error {
		for _, in := range inputs {
			if err := s.submitProduct(caller, in); err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchUpdateProduct updates every listing or none of them.
func (e *Engine) BatchUpdateProduct(ctx context.Context, caller common.Address, batch ProductBatch) error {
	inputs, err := batch.inputs()
	if err != nil {
		return err
	}
	return e.update(ctx, "batch_update_product", func(s *session) error {
		for _, in := range inputs {
			if err := s.updateProduct(caller, in); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) BatchAddStock(ctx context.Context, caller common.Address, ids, amounts []uint64) error {
	if err := checkStockArity(ids, amounts); err != nil {
		return err
	}
	return e.update(ctx, "batch_add_stock", func(s *session) error {
		for i, id := range ids {
			if err := s.addStock(caller, id, amounts[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) BatchRemoveStock(ctx context.Context, caller common.Address, ids, amounts []uint64) error {
	if err := checkStockArity(ids, amounts); err != nil {
		return err
	}
	return e.update(ctx, "batch_remove_stock", func(s *session) error {
		for i, id := range ids {
			if err := s.removeStock(caller, id, amounts[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) BatchSwitchEnable(ctx context.Context, caller common.Address, ids []uint64, enabled []bool) error {
	if len(ids) == 0 || len(enabled) != len(ids) {
		return coreerrors.ErrProductsID
	}
	return e.update(ctx, "batch_switch_enable", func(s *session) error {
		for i, id := range ids {
			if err := s.switchEnable(caller, id, enabled[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
