package market

import (
	"context"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/events"
)

// ProductInput is the caller supplied part of a listing.
type ProductInput struct {
	ID     uint64
	Seller common.Address
	Price  *big.Int
	Token  common.Address
	Stock  uint64
}

func validateInput(in ProductInput) error {
	if in.ID == 0 {
		return coreerrors.ErrProductID
	}
	if in.Price == nil || in.Price.Sign() <= 0 {
		return coreerrors.ErrPrice
	}
	if in.Price.BitLen() > 256 {
		return coreerrors.ErrOverflow
	}
	if in.Seller == (common.Address{}) {
		return coreerrors.ErrSeller
	}
	return nil
}

func (s *session) submitProduct(caller common.Address, in ProductInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	_, exists, err := s.store.product(in.ID)
	if err != nil {
		return err
	}
	if exists {
		return coreerrors.ErrAlreadyExist
	}
	access, err := s.authorize(caller, in.Seller)
	if err != nil {
		return err
	}
	if access == AccessDenied {
		return coreerrors.ErrNotWhitelisted
	}
	product := &Product{
		ID:      in.ID,
		Seller:  in.Seller,
		Token:   in.Token,
		Price:   new(big.Int).Set(in.Price),
		Stock:   in.Stock,
		Enabled: true,
	}
	if err := s.store.putProduct(product); err != nil {
		return err
	}
	if err := s.store.indexProduct(product.ID); err != nil {
		return err
	}
	s.emit(events.ProductListed{ID: product.ID, Seller: product.Seller, Token: product.Token, Price: product.Price, Stock: product.Stock, Caller: caller})
	return nil
}

// loadManaged fetches a listing caller is allowed to manage.
func (s *session) loadManaged(caller common.Address, id uint64) (*Product, Access, error) {
	product, exists, err := s.store.product(id)
	if err != nil {
		return nil, AccessDenied, err
	}
	if !exists {
		return nil, AccessDenied, coreerrors.ErrNotExist
	}
	access, err := s.authorize(caller, product.Seller)
	if err != nil {
		return nil, AccessDenied, err
	}
	if access == AccessDenied {
		return nil, AccessDenied, coreerrors.ErrNotWhitelisted
	}
	return product, access, nil
}

func (s *session) updateProduct(caller common.Address, in ProductInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	product, access, err := s.loadManaged(caller, in.ID)
	if err != nil {
		return err
	}
	if access == AccessWhitelistedSelf && in.Seller != caller {
		return coreerrors.ErrNotWhitelisted
	}
	product.Seller = in.Seller
	product.Token = in.Token
	product.Price = new(big.Int).Set(in.Price)
	product.Stock = in.Stock
	if err := s.store.putProduct(product); err != nil {
		return err
	}
	s.emit(events.ProductListed{Updated: true, ID: product.ID, Seller: product.Seller, Token: product.Token, Price: product.Price, Stock: product.Stock, Caller: caller})
	return nil
}

func (s *session) switchEnable(caller common.Address, id uint64, enabled bool) error {
	if id == 0 {
		return coreerrors.ErrProductID
	}
	product, _, err := s.loadManaged(caller, id)
	if err != nil {
		return err
	}
	product.Enabled = enabled
	if err := s.store.putProduct(product); err != nil {
		return err
	}
	s.emit(events.ProductEnabled{ID: id, Enabled: enabled})
	return nil
}

func (s *session) addStock(caller common.Address, id, amount uint64) error {
	if id == 0 {
		return coreerrors.ErrProductID
	}
	if amount == 0 {
		return coreerrors.ErrStockToAdd
	}
	product, _, err := s.loadManaged(caller, id)
	if err != nil {
		return err
	}
	if product.Stock > math.MaxUint64-amount {
		return coreerrors.ErrOverflow
	}
	product.Stock += amount
	if err := s.store.putProduct(product); err != nil {
		return err
	}
	s.emit(events.StockChanged{ID: id, Amount: amount, Stock: product.Stock})
	return nil
}

func (s *session) removeStock(caller common.Address, id, amount uint64) error {
	if id == 0 {
		return coreerrors.ErrProductID
	}
	if amount == 0 {
		return coreerrors.ErrStockToRemove
	}
	product, _, err := s.loadManaged(caller, id)
	if err != nil {
		return err
	}
	if amount > product.Stock {
		return coreerrors.ErrStockToRemove
	}
	product.Stock -= amount
	if err := s.store.putProduct(product); err != nil {
		return err
	}
	s.emit(events.StockChanged{ID: id, Removed: true, Amount: amount, Stock: product.Stock})
	return nil
}

// SubmitProduct lists a new, enabled product.
func (e *Engine) SubmitProduct(ctx context.Context, caller common.Address, in ProductInput) error {
	return e.update(ctx, "submit_product", func(s *session) error {
		return s.submitProduct(caller, in)
	})
}

// UpdateProduct replaces the seller, token, price and stock of a listing. The
// enabled flag is left untouched.
func (e *Engine) UpdateProduct(ctx context.Context, caller common.Address, in ProductInput) error {
	return e.update(ctx, "update_product", func(s *session) error {
		return s.updateProduct(caller, in)
	})
}

func (e *Engine) SwitchEnable(ctx context.Context, caller common.Address, id uint64, enabled bool) error {
	return e.update(ctx, "switch_enable", func(s *session) error {
		return s.switchEnable(caller, id, enabled)
	})
}

func (e *Engine) AddStock(ctx context.Context, caller common.Address, id, amount uint64) error {
	return e.update(ctx, "add_stock", func(s *session) error {
		return s.addStock(caller, id, amount)
	})
}

func (e *Engine) RemoveStock(ctx context.Context, caller common.Address, id, amount uint64) error {
	return e.update(ctx, "remove_stock", func(s *session) error {
		return s.removeStock(caller, id, amount)
	})
}

// Product returns a copy of the listing.
func (e *Engine) Product(id uint64) (*Product, error) {
	var out *Product
	err := e.view(func(s *session) error {
		product, ok, err := s.store.product(id)
		if err != nil {
			return err
		}
		if !ok {
			return coreerrors.ErrNotExist
		}
		out = product
		return nil
	})
	return out, err
}

// ProductsIDs lists every product id in submission order.
func (e *Engine) ProductsIDs() ([]uint64, error) {
	var ids []uint64
	err := e.view(func(s *session) error {
		var err error
		ids, err = s.store.productIDs()
		return err
	})
	return ids, err
}
