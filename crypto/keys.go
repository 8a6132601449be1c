package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressHRP is the human-readable part of bech32 encoded market addresses.
const AddressHRP = "avs"

// EncodeAddress renders addr as a bech32 string with the avs prefix.
func EncodeAddress(addr common.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(AddressHRP, conv)
}

// ParseAddress accepts either a 0x prefixed hex address or an avs bech32
// address.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("crypto: empty address")
	}
	if strings.HasPrefix(strings.ToLower(trimmed), AddressHRP+"1") {
		prefix, decoded, err := bech32.Decode(trimmed)
		if err != nil {
			return common.Address{}, fmt.Errorf("crypto: invalid bech32 address: %w", err)
		}
		if prefix != AddressHRP {
			return common.Address{}, fmt.Errorf("crypto: unexpected address prefix %q", prefix)
		}
		conv, err := bech32.ConvertBits(decoded, 5, 8, false)
		if err != nil {
			return common.Address{}, fmt.Errorf("crypto: error converting bits: %w", err)
		}
		if len(conv) != common.AddressLength {
			return common.Address{}, fmt.Errorf("crypto: address must be %d bytes", common.AddressLength)
		}
		return common.BytesToAddress(conv), nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("crypto: invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// Address returns the account controlled by the key.
func (k *PrivateKey) Address() common.Address {
	return crypto.PubkeyToAddress(k.PrivateKey.PublicKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex parses a hex encoded secp256k1 key, with or without the
// 0x prefix.
func PrivateKeyFromHex(raw string) (*PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
