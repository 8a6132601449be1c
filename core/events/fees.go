package events

import (
	"math/big"
	"strconv"
)

const (
	// TypeFeePrepared marks a fee proposal entering its time lock.
	TypeFeePrepared = "fees.prepared"
	// TypeFeeImplemented marks a pending fee becoming the current fee.
	TypeFeeImplemented = "fees.implemented"
)

// FeePrepared records a proposed fee and the earliest time it may be applied.
type FeePrepared struct {
	Pending  *big.Int
	UnlockAt uint64
}

// EventType satisfies the events.Event interface.
func (FeePrepared) EventType() string { return TypeFeePrepared }

// Record converts the structured payload into a broadcastable event.
func (e FeePrepared) Record() *Record {
	return &Record{
		Type: TypeFeePrepared,
		Attributes: map[string]string{
			"pendingFee": formatAmount(e.Pending),
			"unlockAt":   strconv.FormatUint(e.UnlockAt, 10),
		},
	}
}

// FeeImplemented records the fee transition once the time lock elapsed.
type FeeImplemented struct {
	Previous *big.Int
	Current  *big.Int
}

// EventType satisfies the events.Event interface.
func (FeeImplemented) EventType() string { return TypeFeeImplemented }

// Record converts the structured payload into a broadcastable event.
func (e FeeImplemented) Record() *Record {
	return &Record{
		Type: TypeFeeImplemented,
		Attributes: map[string]string{
			"previousFee": formatAmount(e.Previous),
			"fee":         formatAmount(e.Current),
		},
	}
}
