package crypto

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
)

func TestAddressRoundTripBech32(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000da")
	encoded, err := EncodeAddress(addr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(encoded, AddressHRP+"1") {
		t.Fatalf("unexpected encoding %s", encoded)
	}
	decoded, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	if decoded != addr {
		t.Fatalf("expected %s, got %s", addr.Hex(), decoded.Hex())
	}
	hex, err := ParseAddress(addr.Hex())
	if err != nil || hex != addr {
		t.Fatalf("parse hex: %v %s", err, hex.Hex())
	}
	for _, bad := range []string{"", "0x1234", "avs1qqqq", "xyz1qyqszqgpqyqszqgpqyqszqgpqyqszqgp2l7avc"} {
		if _, err := ParseAddress(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	t.Cleanup(func() { scryptN, scryptP = keystore.StandardScryptN, keystore.StandardScryptP })

	key, err := PrivateKeyFromBytes(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "signer.keystore")
	if err := SaveToKeystore(path, key, "hunter2"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "hunter2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Address() != key.Address() {
		t.Fatalf("address mismatch %s != %s", loaded.Address().Hex(), key.Address().Hex())
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
	if _, err := PrivateKeyFromHex("0x" + common.Bytes2Hex(key.Bytes())); err != nil {
		t.Fatalf("from hex: %v", err)
	}
}
