package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"cryptoavisos/core/state"
	avcrypto "cryptoavisos/crypto"
	"cryptoavisos/native/shipping"
	"cryptoavisos/storage"
)

func writeKeystore(t *testing.T, pass string) (string, common.Address) {
	t.Helper()
	key, err := avcrypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	blob, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    key.Address(),
		PrivateKey: key.PrivateKey,
	}, pass, keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	path := filepath.Join(t.TempDir(), "signer.keystore")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path, key.Address()
}

func TestSignProducesVerifiableAuthorization(t *testing.T) {
	path, signer := writeKeystore(t, "pw")
	buyer := common.HexToAddress("0x00000000000000000000000000000000000000b0")

	var out bytes.Buffer
	req := request{Keystore: path, ProductID: 256, Buyer: buyer.Hex(), Cost: "25", Nonce: 0, DomainID: 7}
	if err := sign(&out, req, func() (string, error) { return "pw", nil }); err != nil {
		t.Fatalf("sign: %v", err)
	}
	var got output
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Signer != signer.Hex() {
		t.Fatalf("expected signer %s, got %s", signer.Hex(), got.Signer)
	}
	sig, err := hexutil.Decode(got.Signature)
	if err != nil {
		t.Fatalf("signature: %v", err)
	}

	mgr := state.NewManager(storage.NewMemDB())
	err = mgr.Update(func(tx *state.Txn) error {
		v := shipping.NewVerifier(tx, 7)
		if err := v.SetSigner(signer); err != nil {
			return err
		}
		digest, err := v.Verify(shipping.Authorization{ProductID: 256, Buyer: buyer, Cost: big.NewInt(25), Nonce: 0, Signature: sig})
		if err != nil {
			return err
		}
		if digest.Hex() != got.Digest {
			t.Fatalf("digest mismatch: %s vs %s", digest.Hex(), got.Digest)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSignRejectsBadInput(t *testing.T) {
	path, _ := writeKeystore(t, "pw")
	pass := func() (string, error) { return "pw", nil }
	buyer := "0x00000000000000000000000000000000000000b0"

	cases := map[string]request{
		"no product": {Keystore: path, Buyer: buyer, Cost: "1"},
		"bad buyer":  {Keystore: path, ProductID: 1, Buyer: "nope", Cost: "1"},
		"bad cost":   {Keystore: path, ProductID: 1, Buyer: buyer, Cost: "-1"},
	}
	for name, req := range cases {
		if err := sign(&bytes.Buffer{}, req, pass); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	req := request{Keystore: path, ProductID: 1, Buyer: buyer, Cost: "1"}
	if err := sign(&bytes.Buffer{}, req, func() (string, error) { return "wrong", nil }); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
	boom := errors.New("no tty")
	if err := sign(&bytes.Buffer{}, req, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("expected passphrase error, got %v", err)
	}
}
