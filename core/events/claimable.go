package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	TypeFeesClaimed     = "claimable.fees_claimed"
	TypeShippingClaimed = "claimable.shipping_claimed"
)

// Claimed is emitted when the admin withdraws accrued protocol balances.
type Claimed struct {
	Shipping  bool
	Token     common.Address
	Amount    *big.Int
	Remaining *big.Int
	Recipient common.Address
}

func (e Claimed) EventType() string {
	if e.Shipping {
		return TypeShippingClaimed
	}
	return TypeFeesClaimed
}

func (e Claimed) Record() *Record {
	return &Record{
		Type: e.EventType(),
		Attributes: map[string]string{
			"token":     formatToken(e.Token),
			"amount":    formatAmount(e.Amount),
			"remaining": formatAmount(e.Remaining),
			"recipient": e.Recipient.Hex(),
		},
	}
}
