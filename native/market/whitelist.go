package market

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"cryptoavisos/core/events"
)

func (s *session) setWhitelisted(caller, seller common.Address, on bool) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	current, err := s.store.whitelisted(seller)
	if err != nil {
		return err
	}
	if current == on {
		return nil
	}
	if err := s.store.setWhitelisted(seller, on); err != nil {
		return err
	}
	s.emit(events.WhitelistUpdated{Seller: seller, Whitelisted: on})
	return nil
}

// AddWhitelistedSeller lets seller manage its own listings. Adding a seller
// twice is a no-op.
func (e *Engine) AddWhitelistedSeller(ctx context.Context, caller, seller common.Address) error {
	return e.update(ctx, "whitelist_add", func(s *session) error {
		return s.setWhitelisted(caller, seller, true)
	})
}

// RemoveWhitelistedSeller revokes self-service for seller. Removing an
// unknown seller is a no-op.
func (e *Engine) RemoveWhitelistedSeller(ctx context.Context, caller, seller common.Address) error {
	return e.update(ctx, "whitelist_remove", func(s *session) error {
		return s.setWhitelisted(caller, seller, false)
	})
}

func (e *Engine) IsWhitelisted(addr common.Address) (bool, error) {
	var ok bool
	err := e.view(func(s *session) error {
		var err error
		ok, err = s.store.whitelisted(addr)
		return err
	})
	return ok, err
}
