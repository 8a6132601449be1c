package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeToken is the label used for the zero token address in records.
const NativeToken = "native"

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatToken(token common.Address) string {
	if token == (common.Address{}) {
		return NativeToken
	}
	return token.Hex()
}

// ToRecord flattens an event when it supports it. Events without a record
// form yield a record carrying only their type.
func ToRecord(evt Event) *Record {
	if evt == nil {
		return nil
	}
	if r, ok := evt.(Recordable); ok {
		if rec := r.Record(); rec != nil {
			return rec
		}
	}
	return &Record{Type: evt.EventType(), Attributes: map[string]string{}}
}

// TokenLabel renders a token address the way event records do.
func TokenLabel(token common.Address) string { return formatToken(token) }
