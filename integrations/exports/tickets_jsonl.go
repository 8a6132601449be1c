package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"cryptoavisos/native/market"
)

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// TicketsJSONL renders one JSON object per ticket.
func TicketsJSONL(tickets []*market.Ticket) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, t := range tickets {
		if t == nil {
			continue
		}
		row := ticketRow(t)
		payload := make(map[string]string, len(ticketColumns))
		for i, column := range ticketColumns {
			payload[column] = row[i]
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
