package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cryptoavisos/core/claimable"
	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/events"
	"cryptoavisos/native/fees"
	"cryptoavisos/native/shipping"
)

// Payment describes a purchase. Value is the native currency attached to the
// call and must be zero for token priced products. A shipping surcharge is
// only accepted together with a signature from the allowed signer.
type Payment struct {
	ProductID     uint64
	Value         *big.Int
	ShippingCost  *big.Int
	ShippingNonce uint64
	Signature     []byte
}

func (p Payment) hasShipping() bool {
	return len(p.Signature) > 0 || (p.ShippingCost != nil && p.ShippingCost.Sign() != 0)
}

func (s *session) payProduct(buyer common.Address, p Payment) (*Ticket, error) {
	product, exists, err := s.store.product(p.ProductID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, coreerrors.ErrNotExist
	}
	if !product.Enabled {
		return nil, coreerrors.ErrNotEnabled
	}
	if product.Stock == 0 {
		return nil, coreerrors.ErrOutOfStock
	}

	shippingCost := big.NewInt(0)
	if p.hasShipping() {
		auth := shipping.Authorization{
			ProductID: p.ProductID,
			Buyer:     buyer,
			Cost:      cloneBig(p.ShippingCost),
			Nonce:     p.ShippingNonce,
			Signature: p.Signature,
		}
		digest, err := s.shipping.Verify(auth)
		if err != nil {
			return nil, err
		}
		shippingCost = auth.Cost
		s.emit(events.ShippingAuthorized{ProductID: p.ProductID, Buyer: buyer, Cost: shippingCost, Nonce: auth.Nonce, Digest: digest})
	}

	totalDue := new(big.Int).Add(product.Price, shippingCost)
	value := cloneBig(p.Value)
	if product.IsNative() {
		if value.Cmp(totalDue) != 0 {
			return nil, coreerrors.ErrValue
		}
	} else if value.Sign() != 0 {
		return nil, coreerrors.ErrValue
	}

	stockBefore := product.Stock
	product.Stock--
	if err := s.store.putProduct(product); err != nil {
		return nil, err
	}

	cfg, err := s.fees.Config()
	if err != nil {
		return nil, err
	}
	feeCharged, err := fees.Compute(product.Price, cfg.Current)
	if err != nil {
		return nil, err
	}

	ticket := &Ticket{
		ID:           TicketID(product.ID, buyer, s.seq, stockBefore),
		ProductID:    product.ID,
		Buyer:        buyer,
		TokenPaid:    product.Token,
		PricePaid:    new(big.Int).Set(product.Price),
		FeeCharged:   feeCharged,
		ShippingCost: shippingCost,
		Status:       TicketWaiting,
		CreatedAt:    s.seq,
	}
	if _, taken, err := s.store.ticket(ticket.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, coreerrors.ErrAlreadyExist
	}
	if err := s.store.putTicket(ticket); err != nil {
		return nil, err
	}
	if err := s.store.indexTicket(ticket); err != nil {
		return nil, err
	}

	custody := s.params.Custody
	if product.IsNative() {
		err = s.transfer(product.Token, buyer, custody, totalDue)
	} else {
		err = s.transferFrom(product.Token, custody, buyer, custody, totalDue)
	}
	if err != nil {
		return nil, err
	}

	s.emit(events.TicketCreated{
		TicketID:     ticket.ID,
		ProductID:    ticket.ProductID,
		Buyer:        buyer,
		Token:        ticket.TokenPaid,
		Price:        ticket.PricePaid,
		Fee:          ticket.FeeCharged,
		ShippingCost: ticket.ShippingCost,
		CreatedAt:    ticket.CreatedAt,
	})
	return ticket, nil
}

// loadWaiting fetches a ticket that can still be settled.
func (s *session) loadWaiting(id common.Hash) (*Ticket, error) {
	ticket, exists, err := s.store.ticket(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, coreerrors.ErrNotExist
	}
	if ticket.Status != TicketWaiting {
		return nil, coreerrors.ErrNotWaiting
	}
	return ticket, nil
}

func (s *session) releasePay(caller common.Address, id common.Hash) (*Ticket, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	ticket, err := s.loadWaiting(id)
	if err != nil {
		return nil, err
	}
	product, exists, err := s.store.product(ticket.ProductID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, coreerrors.ErrNotExist
	}

	ticket.Status = TicketSold
	if err := s.store.putTicket(ticket); err != nil {
		return nil, err
	}
	if err := s.claims.Accrue(claimable.BucketFee, ticket.TokenPaid, ticket.FeeCharged); err != nil {
		return nil, err
	}
	if err := s.claims.Accrue(claimable.BucketShipping, ticket.TokenPaid, ticket.ShippingCost); err != nil {
		return nil, err
	}

	payout := new(big.Int).Sub(ticket.PricePaid, ticket.FeeCharged)
	if err := s.transfer(ticket.TokenPaid, s.params.Custody, product.Seller, payout); err != nil {
		return nil, err
	}
	s.emit(events.TicketSettled{
		TicketID:  ticket.ID,
		ProductID: ticket.ProductID,
		Token:     ticket.TokenPaid,
		Recipient: product.Seller,
		Amount:    payout,
		Fee:       ticket.FeeCharged,
		Shipping:  ticket.ShippingCost,
	})
	return ticket, nil
}

func (s *session) refundProduct(caller common.Address, id common.Hash) (*Ticket, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	if id == (common.Hash{}) {
		return nil, coreerrors.ErrTicketID
	}
	ticket, err := s.loadWaiting(id)
	if err != nil {
		return nil, err
	}
	ticket.Status = TicketRefunded
	if err := s.store.putTicket(ticket); err != nil {
		return nil, err
	}
	amount := ticket.Escrowed()
	if err := s.transfer(ticket.TokenPaid, s.params.Custody, ticket.Buyer, amount); err != nil {
		return nil, err
	}
	s.emit(events.TicketSettled{
		Refunded:  true,
		TicketID:  ticket.ID,
		ProductID: ticket.ProductID,
		Token:     ticket.TokenPaid,
		Recipient: ticket.Buyer,
		Amount:    amount,
	})
	return ticket, nil
}

// PayProduct escrows the price of one unit, plus any authorized shipping
// surcharge, and opens a waiting ticket for buyer.
func (e *Engine) PayProduct(ctx context.Context, buyer common.Address, p Payment) (*Ticket, error) {
	var ticket *Ticket
	err := e.update(ctx, "pay_product", func(s *session) error {
		var err error
		ticket, err = s.payProduct(buyer, p)
		if err != nil {
			return err
		}
		s.afterCommit(func() {
			e.metrics.ObserveTicket(TicketWaiting.String())
			if p.hasShipping() {
				e.metrics.IncShippingAuthorization()
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket.Clone(), nil
}

// ReleasePay pays the seller the ticket price minus the fee charged and moves
// the fee and shipping cost into the claimable balances.
func (e *Engine) ReleasePay(ctx context.Context, caller common.Address, id common.Hash) (*Ticket, error) {
	var ticket *Ticket
	err := e.update(ctx, "release_pay", func(s *session) error {
		var err error
		ticket, err = s.releasePay(caller, id)
		if err != nil {
			return err
		}
		s.afterCommit(func() {
			token := events.TokenLabel(ticket.TokenPaid)
			e.metrics.ObserveTicket(TicketSold.String())
			e.metrics.ObserveAccrued(claimable.BucketFee.String(), token, ticket.FeeCharged)
			e.metrics.ObserveAccrued(claimable.BucketShipping.String(), token, ticket.ShippingCost)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket.Clone(), nil
}

// RefundProduct returns everything the buyer paid for a waiting ticket.
func (e *Engine) RefundProduct(ctx context.Context, caller common.Address, id common.Hash) (*Ticket, error) {
	var ticket *Ticket
	err := e.update(ctx, "refund_product", func(s *session) error {
		var err error
		ticket, err = s.refundProduct(caller, id)
		if err != nil {
			return err
		}
		s.afterCommit(func() { e.metrics.ObserveTicket(TicketRefunded.String()) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket.Clone(), nil
}

// Ticket returns a copy of the ticket.
func (e *Engine) Ticket(id common.Hash) (*Ticket, error) {
	var out *Ticket
	err := e.view(func(s *session) error {
		ticket, ok, err := s.store.ticket(id)
		if err != nil {
			return err
		}
		if !ok {
			return coreerrors.ErrNotExist
		}
		out = ticket
		return nil
	})
	return out, err
}

func (e *Engine) ticketIDs(key []byte) ([]common.Hash, error) {
	var ids []common.Hash
	err := e.view(func(s *session) error {
		var err error
		ids, err = s.store.ticketIDs(key)
		return err
	})
	return ids, err
}

// TicketsIDs lists every ticket id in creation order.
func (e *Engine) TicketsIDs() ([]common.Hash, error) {
	return e.ticketIDs(ticketIndexKey)
}

func (e *Engine) TicketsIDsByProduct(productID uint64) ([]common.Hash, error) {
	return e.ticketIDs(productTicketsKey(productID))
}

func (e *Engine) TicketsIDsByAddress(buyer common.Address) ([]common.Hash, error) {
	return e.ticketIDs(buyerTicketsKey(buyer))
}
