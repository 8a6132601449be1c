package routes

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"cryptoavisos/core/events"
	avcrypto "cryptoavisos/crypto"
	"cryptoavisos/native/fees"
	"cryptoavisos/native/market"
)

const maxBodyBytes = 1 << 20

type productView struct {
	ID      uint64 `json:"id"`
	Seller  string `json:"seller"`
	Token   string `json:"token"`
	Price   string `json:"price"`
	Stock   uint64 `json:"stock"`
	Enabled bool   `json:"enabled"`
}

func newProductView(p *market.Product) productView {
	return productView{
		ID:      p.ID,
		Seller:  p.Seller.Hex(),
		Token:   events.TokenLabel(p.Token),
		Price:   p.Price.String(),
		Stock:   p.Stock,
		Enabled: p.Enabled,
	}
}

type ticketView struct {
	ID           string `json:"id"`
	ProductID    uint64 `json:"productId"`
	Buyer        string `json:"buyer"`
	Token        string `json:"token"`
	PricePaid    string `json:"pricePaid"`
	FeeCharged   string `json:"feeCharged"`
	ShippingCost string `json:"shippingCost"`
	Status       string `json:"status"`
	CreatedAt    uint64 `json:"createdAt"`
}

func newTicketView(t *market.Ticket) ticketView {
	return ticketView{
		ID:           t.ID.Hex(),
		ProductID:    t.ProductID,
		Buyer:        t.Buyer.Hex(),
		Token:        events.TokenLabel(t.TokenPaid),
		PricePaid:    t.PricePaid.String(),
		FeeCharged:   t.FeeCharged.String(),
		ShippingCost: t.ShippingCost.String(),
		Status:       t.Status.String(),
		CreatedAt:    t.CreatedAt,
	}
}

type feeView struct {
	Current    string `json:"current"`
	Pending    string `json:"pending,omitempty"`
	UnlockAt   uint64 `json:"unlockAt,omitempty"`
	HasPending bool   `json:"hasPending"`
}

func newFeeView(cfg *fees.Config) feeView {
	view := feeView{Current: fees.FormatPercent(cfg.Current), HasPending: cfg.HasPending}
	if cfg.HasPending {
		view.Pending = fees.FormatPercent(cfg.Pending)
		view.UnlockAt = cfg.UnlockAt
	}
	return view
}

type productRequest struct {
	ID     uint64 `json:"id"`
	Seller string `json:"seller"`
	Price  string `json:"price"`
	Token  string `json:"token"`
	Stock  uint64 `json:"stock"`
}

func (p productRequest) input() (market.ProductInput, error) {
	seller, err := parseAddress(p.Seller)
	if err != nil {
		return market.ProductInput{}, fmt.Errorf("seller: %w", err)
	}
	price, err := parseAmount(p.Price)
	if err != nil {
		return market.ProductInput{}, fmt.Errorf("price: %w", err)
	}
	token, err := parseToken(p.Token)
	if err != nil {
		return market.ProductInput{}, fmt.Errorf("token: %w", err)
	}
	return market.ProductInput{ID: p.ID, Seller: seller, Price: price, Token: token, Stock: p.Stock}, nil
}

type batchRequest struct {
	IDs     []uint64 `json:"ids"`
	Sellers []string `json:"sellers"`
	Prices  []string `json:"prices"`
	Tokens  []string `json:"tokens"`
	Stocks  []uint64 `json:"stocks"`
}

func (b batchRequest) batch() (market.ProductBatch, error) {
	out := market.ProductBatch{IDs: b.IDs, Stocks: b.Stocks}
	for i, raw := range b.Sellers {
		seller, err := parseAddress(raw)
		if err != nil {
			return out, fmt.Errorf("sellers[%d]: %w", i, err)
		}
		out.Sellers = append(out.Sellers, seller)
	}
	for i, raw := range b.Prices {
		price, err := parseAmount(raw)
		if err != nil {
			return out, fmt.Errorf("prices[%d]: %w", i, err)
		}
		out.Prices = append(out.Prices, price)
	}
	for i, raw := range b.Tokens {
		token, err := parseToken(raw)
		if err != nil {
			return out, fmt.Errorf("tokens[%d]: %w", i, err)
		}
		out.Tokens = append(out.Tokens, token)
	}
	return out, nil
}

type stockBatchRequest struct {
	IDs     []uint64 `json:"ids"`
	Amounts []uint64 `json:"amounts"`
}

type enableBatchRequest struct {
	IDs     []uint64 `json:"ids"`
	Enabled []bool   `json:"enabled"`
}

type paymentRequest struct {
	ProductID     uint64 `json:"productId"`
	Value         string `json:"value"`
	ShippingCost  string `json:"shippingCost"`
	ShippingNonce uint64 `json:"shippingNonce"`
	Signature     string `json:"signature"`
}

func (p paymentRequest) payment() (market.Payment, error) {
	out := market.Payment{ProductID: p.ProductID, ShippingNonce: p.ShippingNonce}
	var err error
	if out.Value, err = parseOptionalAmount(p.Value); err != nil {
		return out, fmt.Errorf("value: %w", err)
	}
	if out.ShippingCost, err = parseOptionalAmount(p.ShippingCost); err != nil {
		return out, fmt.Errorf("shippingCost: %w", err)
	}
	if strings.TrimSpace(p.Signature) != "" {
		if out.Signature, err = hexutil.Decode(strings.TrimSpace(p.Signature)); err != nil {
			return out, fmt.Errorf("signature: %w", err)
		}
	}
	return out, nil
}

type claimRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type feeRequest struct {
	// Fee is a decimal percentage, e.g. "2.5".
	Fee string `json:"fee"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type approveRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func invalid(err error) error { return badRequest{err: err} }

func decode(w http.ResponseWriter, r *http.Request, out interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalid(fmt.Errorf("decode body: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseAddress(raw string) (common.Address, error) {
	return avcrypto.ParseAddress(raw)
}

// parseToken maps "", "native" and the zero address to the native currency.
func parseToken(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, events.NativeToken) {
		return common.Address{}, nil
	}
	return avcrypto.ParseAddress(trimmed)
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return amount, nil
}

func parseOptionalAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(raw)
}

func parseProductID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, invalid(fmt.Errorf("invalid product id %q", raw))
	}
	return id, nil
}

func parseTicketID(raw string) (common.Hash, error) {
	decoded, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil || len(decoded) != common.HashLength {
		return common.Hash{}, invalid(fmt.Errorf("invalid ticket id %q", raw))
	}
	return common.BytesToHash(decoded), nil
}

func hashes(ids []common.Hash) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

type errUnknownFormat string

func (e errUnknownFormat) Error() string { return "unknown export format " + strconv.Quote(string(e)) }
