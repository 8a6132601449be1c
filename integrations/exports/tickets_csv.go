package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strconv"

	"cryptoavisos/core/events"
	"cryptoavisos/native/market"
)

var ticketColumns = []string{"ticket_id", "product_id", "buyer", "token", "price_paid", "fee_charged", "shipping_cost", "status", "created_at"}

func ticketRow(t *market.Ticket) []string {
	return []string{
		t.ID.Hex(),
		strconv.FormatUint(t.ProductID, 10),
		t.Buyer.Hex(),
		events.TokenLabel(t.TokenPaid),
		amount(t.PricePaid),
		amount(t.FeeCharged),
		amount(t.ShippingCost),
		t.Status.String(),
		strconv.FormatUint(t.CreatedAt, 10),
	}
}

// TicketsCSV renders tickets as CSV and returns the payload with its SHA-256
// checksum.
func TicketsCSV(tickets []*market.Ticket) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(ticketColumns); err != nil {
		return nil, "", err
	}
	for _, t := range tickets {
		if t == nil {
			continue
		}
		if err := writer.Write(ticketRow(t)); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
