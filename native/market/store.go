package market

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"cryptoavisos/core/state"
)

var (
	productPrefix        = []byte("market/product/")
	ticketPrefix         = []byte("market/ticket/")
	whitelistPrefix      = []byte("market/whitelist/")
	productIndexKey      = []byte("market/index/products")
	ticketIndexKey       = []byte("market/index/tickets")
	productTicketsPrefix = []byte("market/index/product-tickets/")
	buyerTicketsPrefix   = []byte("market/index/buyer-tickets/")
	sequenceKey          = []byte("market/sequence")
	genesisKey           = []byte("market/genesis")
)

func join(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	out := make([]byte, 0, size)
	out = append(out, prefix...)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func productKey(id uint64) []byte             { return join(productPrefix, uint64Bytes(id)) }
func ticketKey(id common.Hash) []byte         { return join(ticketPrefix, id.Bytes()) }
func whitelistKey(a common.Address) []byte    { return join(whitelistPrefix, a.Bytes()) }
func productTicketsKey(id uint64) []byte      { return join(productTicketsPrefix, uint64Bytes(id)) }
func buyerTicketsKey(a common.Address) []byte { return join(buyerTicketsPrefix, a.Bytes()) }

// store is the typed view of market state inside a single transaction.
type store struct {
	kv state.KV
}

func (s store) product(id uint64) (*Product, bool, error) {
	p := new(Product)
	ok, err := s.kv.KVGet(productKey(id), p)
	if err != nil {
		return nil, false, fmt.Errorf("market: load product %d: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	return p, true, nil
}

func (s store) putProduct(p *Product) error {
	return s.kv.KVPut(productKey(p.ID), p)
}

func (s store) ticket(id common.Hash) (*Ticket, bool, error) {
	t := new(Ticket)
	ok, err := s.kv.KVGet(ticketKey(id), t)
	if err != nil {
		return nil, false, fmt.Errorf("market: load ticket %s: %w", id.Hex(), err)
	}
	if !ok {
		return nil, false, nil
	}
	return t, true, nil
}

func (s store) putTicket(t *Ticket) error {
	return s.kv.KVPut(ticketKey(t.ID), t)
}

func (s store) indexProduct(id uint64) error {
	return s.kv.KVAppend(productIndexKey, uint64Bytes(id))
}

func (s store) indexTicket(t *Ticket) error {
	id := t.ID.Bytes()
	if err := s.kv.KVAppend(ticketIndexKey, id); err != nil {
		return err
	}
	if err := s.kv.KVAppend(productTicketsKey(t.ProductID), id); err != nil {
		return err
	}
	return s.kv.KVAppend(buyerTicketsKey(t.Buyer), id)
}

func (s store) productIDs() ([]uint64, error) {
	var raw [][]byte
	if err := s.kv.KVGetList(productIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("market: corrupt product index entry %x", entry)
		}
		out = append(out, binary.BigEndian.Uint64(entry))
	}
	return out, nil
}

func (s store) ticketIDs(key []byte) ([]common.Hash, error) {
	var raw [][]byte
	if err := s.kv.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	out := make([]common.Hash, 0, len(raw))
	for _, entry := range raw {
		out = append(out, common.BytesToHash(entry))
	}
	return out, nil
}

func (s store) whitelisted(addr common.Address) (bool, error) {
	return s.kv.KVGet(whitelistKey(addr), nil)
}

func (s store) setWhitelisted(addr common.Address, on bool) error {
	if on {
		return s.kv.KVPut(whitelistKey(addr), true)
	}
	return s.kv.KVDelete(whitelistKey(addr))
}

func (s store) genesisApplied() (bool, error) {
	return s.kv.KVGet(genesisKey, nil)
}

func (s store) markGenesis() error {
	return s.kv.KVPut(genesisKey, true)
}

func (s store) sequence() (uint64, error) {
	var seq uint64
	if _, err := s.kv.KVGet(sequenceKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// advance bumps the ledger sequence and returns the new value.
func (s store) advance() (uint64, error) {
	seq, err := s.sequence()
	if err != nil {
		return 0, err
	}
	seq++
	if err := s.kv.KVPut(sequenceKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}
