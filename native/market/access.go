package market

import (
	"github.com/ethereum/go-ethereum/common"
)

// Access is the outcome of a catalog authorization check.
type Access uint8

const (
	AccessDenied Access = iota
	AccessAdmin
	AccessWhitelistedSelf
)

func (a Access) String() string {
	switch a {
	case AccessAdmin:
		return "admin"
	case AccessWhitelistedSelf:
		return "whitelisted-self"
	default:
		return "denied"
	}
}

// authorize decides whether caller may manage a listing owned by seller. The
// admin may manage any listing; a whitelisted address only its own.
func (s *session) authorize(caller, seller common.Address) (Access, error) {
	if caller == s.params.Admin {
		return AccessAdmin, nil
	}
	if caller != seller {
		return AccessDenied, nil
	}
	ok, err := s.store.whitelisted(caller)
	if err != nil {
		return AccessDenied, err
	}
	if !ok {
		return AccessDenied, nil
	}
	return AccessWhitelistedSelf, nil
}

// Authorize reports the access caller has over listings owned by seller.
func (e *Engine) Authorize(caller, seller common.Address) (Access, error) {
	var access Access
	err := e.view(func(s *session) error {
		var err error
		access, err = s.authorize(caller, seller)
		return err
	})
	return access, err
}
