package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	TypeProductSubmitted   = "market.product.submitted"
	TypeProductUpdated     = "market.product.updated"
	TypeProductEnabled     = "market.product.enabled"
	TypeStockAdded         = "market.stock.added"
	TypeStockRemoved       = "market.stock.removed"
	TypeTicketCreated      = "market.ticket.created"
	TypeTicketReleased     = "market.ticket.released"
	TypeTicketRefunded     = "market.ticket.refunded"
	TypeWhitelistUpdated   = "market.whitelist.updated"
	TypeShippingAuthorized = "shipping.authorized"
	TypeShippingSignerSet  = "shipping.signer_set"
)

// ProductListed covers both submissions and updates of a listing.
type ProductListed struct {
	Updated bool
	ID      uint64
	Seller  common.Address
	Token   common.Address
	Price   *big.Int
	Stock   uint64
	Caller  common.Address
}

func (e ProductListed) EventType() string {
	if e.Updated {
		return TypeProductUpdated
	}
	return TypeProductSubmitted
}

func (e ProductListed) Record() *Record {
	return &Record{
		Type: e.EventType(),
		Attributes: map[string]string{
			"productId": strconv.FormatUint(e.ID, 10),
			"seller":    e.Seller.Hex(),
			"token":     formatToken(e.Token),
			"price":     formatAmount(e.Price),
			"stock":     strconv.FormatUint(e.Stock, 10),
			"caller":    e.Caller.Hex(),
		},
	}
}

type ProductEnabled struct {
	ID      uint64
	Enabled bool
}

func (ProductEnabled) EventType() string { return TypeProductEnabled }

func (e ProductEnabled) Record() *Record {
	return &Record{
		Type: TypeProductEnabled,
		Attributes: map[string]string{
			"productId": strconv.FormatUint(e.ID, 10),
			"enabled":   strconv.FormatBool(e.Enabled),
		},
	}
}

// StockChanged records a manual stock adjustment. Purchases are reported by
// TicketCreated instead.
type StockChanged struct {
	ID      uint64
	Removed bool
	Amount  uint64
	Stock   uint64
}

func (e StockChanged) EventType() string {
	if e.Removed {
		return TypeStockRemoved
	}
	return TypeStockAdded
}

func (e StockChanged) Record() *Record {
	return &Record{
		Type: e.EventType(),
		Attributes: map[string]string{
			"productId": strconv.FormatUint(e.ID, 10),
			"amount":    strconv.FormatUint(e.Amount, 10),
			"stock":     strconv.FormatUint(e.Stock, 10),
		},
	}
}

// TicketCreated is emitted when a buyer pays into custody.
type TicketCreated struct {
	TicketID     common.Hash
	ProductID    uint64
	Buyer        common.Address
	Token        common.Address
	Price        *big.Int
	Fee          *big.Int
	ShippingCost *big.Int
	CreatedAt    uint64
}

func (TicketCreated) EventType() string { return TypeTicketCreated }

func (e TicketCreated) Record() *Record {
	return &Record{
		Type: TypeTicketCreated,
		Attributes: map[string]string{
			"ticketId":     e.TicketID.Hex(),
			"productId":    strconv.FormatUint(e.ProductID, 10),
			"buyer":        e.Buyer.Hex(),
			"token":        formatToken(e.Token),
			"pricePaid":    formatAmount(e.Price),
			"feeCharged":   formatAmount(e.Fee),
			"shippingCost": formatAmount(e.ShippingCost),
			"createdAt":    strconv.FormatUint(e.CreatedAt, 10),
		},
	}
}

// TicketSettled is emitted when a waiting ticket reaches a terminal status.
// Recipient is the seller on release and the buyer on refund.
type TicketSettled struct {
	Refunded  bool
	TicketID  common.Hash
	ProductID uint64
	Token     common.Address
	Recipient common.Address
	Amount    *big.Int
	Fee       *big.Int
	Shipping  *big.Int
}

func (e TicketSettled) EventType() string {
	if e.Refunded {
		return TypeTicketRefunded
	}
	return TypeTicketReleased
}

func (e TicketSettled) Record() *Record {
	attrs := map[string]string{
		"ticketId":  e.TicketID.Hex(),
		"productId": strconv.FormatUint(e.ProductID, 10),
		"token":     formatToken(e.Token),
		"recipient": e.Recipient.Hex(),
		"amount":    formatAmount(e.Amount),
	}
	if !e.Refunded {
		attrs["feeAccrued"] = formatAmount(e.Fee)
		attrs["shippingAccrued"] = formatAmount(e.Shipping)
	}
	return &Record{Type: e.EventType(), Attributes: attrs}
}

type WhitelistUpdated struct {
	Seller      common.Address
	Whitelisted bool
}

func (WhitelistUpdated) EventType() string { return TypeWhitelistUpdated }

func (e WhitelistUpdated) Record() *Record {
	return &Record{
		Type: TypeWhitelistUpdated,
		Attributes: map[string]string{
			"seller":      e.Seller.Hex(),
			"whitelisted": strconv.FormatBool(e.Whitelisted),
		},
	}
}

// ShippingAuthorized is emitted when a signed shipping surcharge is consumed.
type ShippingAuthorized struct {
	ProductID uint64
	Buyer     common.Address
	Cost      *big.Int
	Nonce     uint64
	Digest    common.Hash
}

func (ShippingAuthorized) EventType() string { return TypeShippingAuthorized }

func (e ShippingAuthorized) Record() *Record {
	return &Record{
		Type: TypeShippingAuthorized,
		Attributes: map[string]string{
			"productId":    strconv.FormatUint(e.ProductID, 10),
			"buyer":        e.Buyer.Hex(),
			"shippingCost": formatAmount(e.Cost),
			"nonce":        strconv.FormatUint(e.Nonce, 10),
			"digest":       e.Digest.Hex(),
		},
	}
}

type ShippingSignerSet struct {
	Signer common.Address
}

func (ShippingSignerSet) EventType() string { return TypeShippingSignerSet }

func (e ShippingSignerSet) Record() *Record {
	return &Record{
		Type:       TypeShippingSignerSet,
		Attributes: map[string]string{"signer": e.Signer.Hex()},
	}
}
