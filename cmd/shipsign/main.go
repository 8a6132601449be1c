// Command shipsign produces shipping authorizations with the allowed signer's
// keystore. Its JSON output carries the fields a buyer submits with payment.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"cryptoavisos/cmd/internal/passphrase"
	avcrypto "cryptoavisos/crypto"
	"cryptoavisos/native/shipping"
)

const passEnv = "AVISOS_SIGNER_PASS"

type request struct {
	Keystore  string
	ProductID uint64
	Buyer     string
	Cost      string
	Nonce     uint64
	DomainID  uint64
}

type output struct {
	Signer        string `json:"signer"`
	ProductID     uint64 `json:"productId"`
	Buyer         string `json:"buyer"`
	ShippingCost  string `json:"shippingCost"`
	ShippingNonce uint64 `json:"shippingNonce"`
	DomainID      uint64 `json:"domainId"`
	Digest        string `json:"digest"`
	Signature     string `json:"signature"`
}

func main() {
	var req request
	flag.StringVar(&req.Keystore, "keystore", "./signer.keystore", "Path to the allowed signer keystore")
	flag.Uint64Var(&req.ProductID, "product", 0, "Product id the surcharge applies to")
	flag.StringVar(&req.Buyer, "buyer", "", "Buyer address (hex or avs bech32)")
	flag.StringVar(&req.Cost, "cost", "", "Shipping cost in base units")
	flag.Uint64Var(&req.Nonce, "nonce", 0, "Current shipping nonce of the ledger")
	flag.Uint64Var(&req.DomainID, "domain", 1, "Ledger domain id")
	flag.Parse()

	source := passphrase.NewSource(passEnv, "shipping signer")
	if err := sign(os.Stdout, req, source.Get); err != nil {
		fmt.Fprintf(os.Stderr, "shipsign: %v\n", err)
		os.Exit(1)
	}
}

func sign(w io.Writer, req request, pass func() (string, error)) error {
	if req.ProductID == 0 {
		return errors.New("-product is required")
	}
	buyer, err := avcrypto.ParseAddress(req.Buyer)
	if err != nil {
		return fmt.Errorf("buyer: %w", err)
	}
	cost, ok := new(big.Int).SetString(strings.TrimSpace(req.Cost), 10)
	if !ok || cost.Sign() < 0 {
		return fmt.Errorf("cost %q must be a non-negative integer", req.Cost)
	}
	passphrase, err := pass()
	if err != nil {
		return err
	}
	key, err := avcrypto.LoadFromKeystore(req.Keystore, passphrase)
	if err != nil {
		return fmt.Errorf("load keystore: %w", err)
	}

	auth := shipping.Authorization{ProductID: req.ProductID, Buyer: buyer, Cost: cost, Nonce: req.Nonce}
	digest, err := auth.Digest(req.DomainID)
	if err != nil {
		return err
	}
	sig, err := shipping.Sign(key.PrivateKey, auth, req.DomainID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		Signer:        key.Address().Hex(),
		ProductID:     req.ProductID,
		Buyer:         buyer.Hex(),
		ShippingCost:  cost.String(),
		ShippingNonce: req.Nonce,
		DomainID:      req.DomainID,
		Digest:        digest.Hex(),
		Signature:     hexutil.Encode(sig),
	})
}
