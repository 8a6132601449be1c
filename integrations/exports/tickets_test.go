package exports

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"cryptoavisos/native/market"
)

func sampleTicket() *market.Ticket {
	return &market.Ticket{
		ID:           common.HexToHash("0xabc"),
		ProductID:    9,
		Buyer:        common.HexToAddress("0xb0"),
		PricePaid:    big.NewInt(180),
		FeeCharged:   big.NewInt(18),
		ShippingCost: big.NewInt(0),
		Status:       market.TicketSold,
		CreatedAt:    4,
	}
}

func TestTicketsCSV(t *testing.T) {
	data, checksum, err := TicketsCSV([]*market.Ticket{sampleTicket(), nil})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if checksum == "" {
		t.Fatalf("expected checksum")
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", data)
	}
	if lines[0] != strings.Join(ticketColumns, ",") {
		t.Fatalf("unexpected header %s", lines[0])
	}
	if !strings.Contains(lines[1], ",native,180,18,0,sold,4") {
		t.Fatalf("unexpected row %s", lines[1])
	}
}

func TestTicketsJSONL(t *testing.T) {
	data, checksum, err := TicketsJSONL([]*market.Ticket{sampleTicket()})
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if checksum == "" {
		t.Fatalf("expected checksum")
	}
	output := string(data)
	for _, want := range []string{`"product_id":"9"`, `"status":"sold"`, `"fee_charged":"18"`} {
		if !strings.Contains(output, want) {
			t.Fatalf("missing %s in %s", want, output)
		}
	}
}
