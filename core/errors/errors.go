package errors

import stderrors "errors"

// Kind groups ledger errors by the class of condition that triggered them.
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindState
	KindAuthorization
	KindFunds
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindFunds:
		return "funds"
	default:
		return "unknown"
	}
}

// Error is a rejected ledger operation. Its message is the short reason code
// clients match on, so it must not be decorated.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	ErrProductID         = newError(KindValidation, "!productId")
	ErrProductsID        = newError(KindValidation, "!productsId")
	ErrStocks            = newError(KindValidation, "!stocks")
	ErrPrice             = newError(KindValidation, "!price")
	ErrSeller            = newError(KindValidation, "!seller")
	ErrTicketID          = newError(KindValidation, "!ticketId")
	ErrStockToAdd        = newError(KindValidation, "!stockToAdd")
	ErrStockToRemove     = newError(KindValidation, "!stockToRemove")
	ErrFee               = newError(KindValidation, "!fee")
	ErrOverflow          = newError(KindValidation, "!overflow")
	ErrAlreadyExist      = newError(KindState, "alreadyExist")
	ErrNotExist          = newError(KindState, "!exist")
	ErrNotEnabled        = newError(KindState, "!enabled")
	ErrOutOfStock        = newError(KindState, "!stock")
	ErrNotWaiting        = newError(KindState, "!waiting")
	ErrNotPrepared       = newError(KindState, "!prepared")
	ErrNotUnlocked       = newError(KindState, "!unlocked")
	ErrNotWhitelisted    = newError(KindAuthorization, "!whitelisted")
	ErrNotAdmin          = newError(KindAuthorization, "!admin")
	ErrAllowedSigner     = newError(KindAuthorization, "!allowedSigner")
	ErrSignedMessage     = newError(KindAuthorization, "!signedMessage")
	ErrValue             = newError(KindFunds, "!msg.value")
	ErrInsufficientFunds = newError(KindFunds, "!funds")
)

// KindOf reports the kind of a ledger error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var target *Error
	if stderrors.As(err, &target) {
		return target.Kind, true
	}
	return 0, false
}
