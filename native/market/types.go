package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TicketStatus is the lifecycle of a ticket. Sold and Refunded are terminal.
type TicketStatus uint8

const (
	TicketWaiting TicketStatus = iota
	TicketSold
	TicketRefunded
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketWaiting, TicketSold, TicketRefunded:
		return true
	default:
		return false
	}
}

func (s TicketStatus) String() string {
	switch s {
	case TicketWaiting:
		return "waiting"
	case TicketSold:
		return "sold"
	case TicketRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Product is a catalog listing. A zero Token prices the listing in the
// native currency.
type Product struct {
	ID      uint64
	Seller  common.Address
	Token   common.Address
	Price   *big.Int
	Stock   uint64
	Enabled bool
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Price != nil {
		clone.Price = new(big.Int).Set(p.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// IsNative reports whether the product is paid in the native currency.
func (p *Product) IsNative() bool { return p.Token == (common.Address{}) }

// Ticket is a single escrowed purchase. Price, token and fee are captured when
// the buyer pays and never follow later product or fee changes.
type Ticket struct {
	ID           common.Hash
	ProductID    uint64
	Buyer        common.Address
	TokenPaid    common.Address
	PricePaid    *big.Int
	FeeCharged   *big.Int
	ShippingCost *big.Int
	Status       TicketStatus
	CreatedAt    uint64
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Clone returns a deep copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	clone.PricePaid = cloneBig(t.PricePaid)
	clone.FeeCharged = cloneBig(t.FeeCharged)
	clone.ShippingCost = cloneBig(t.ShippingCost)
	return &clone
}

// Escrowed is the amount the ticket holds in custody while waiting.
func (t *Ticket) Escrowed() *big.Int {
	return new(big.Int).Add(cloneBig(t.PricePaid), cloneBig(t.ShippingCost))
}

var ticketIDArguments abi.Arguments

func init() {
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	ticketIDArguments = abi.Arguments{
		{Name: "productId", Type: uint256Type},
		{Name: "buyer", Type: addressType},
		{Name: "sequence", Type: uint256Type},
		{Name: "stock", Type: uint256Type},
	}
}

// TicketID derives the ticket identifier from the product, the buyer, the
// ledger sequence of the purchase and the stock held before it.
func TicketID(productID uint64, buyer common.Address, sequence, stockBefore uint64) common.Hash {
	packed, err := ticketIDArguments.Pack(
		new(big.Int).SetUint64(productID),
		buyer,
		new(big.Int).SetUint64(sequence),
		new(big.Int).SetUint64(stockBefore),
	)
	if err != nil {
		// Every argument is a fixed width value, so packing cannot fail.
		panic(err)
	}
	return ethcrypto.Keccak256Hash(packed)
}
