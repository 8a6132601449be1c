package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeTransfer is emitted for native and token balance movements.
	TypeTransfer = "bank.transfer"
)

type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Record() *Record {
	return &Record{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"token":  formatToken(e.Token),
			"from":   e.From.Hex(),
			"to":     e.To.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}
