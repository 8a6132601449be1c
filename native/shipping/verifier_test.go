package shipping

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/state"
	"cryptoavisos/storage"
)

const testDomain = 31337

func mustKey(t *testing.T, seed byte) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ethcrypto.ToECDSA(bytes.Repeat([]byte{seed}, 32))
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	return key
}

func newVerifier(t *testing.T, signer *ecdsa.PrivateKey) *Verifier {
	t.Helper()
	v := NewVerifier(state.NewManager(storage.NewMemDB()), testDomain)
	if err := v.SetSigner(ethcrypto.PubkeyToAddress(signer.PublicKey)); err != nil {
		t.Fatalf("set signer: %v", err)
	}
	return v
}

func signed(t *testing.T, key *ecdsa.PrivateKey, auth Authorization) Authorization {
	t.Helper()
	sig, err := Sign(key, auth, testDomain)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	auth.Signature = sig
	return auth
}

func TestVerifyConsumesAuthorization(t *testing.T) {
	key := mustKey(t, 0x11)
	v := newVerifier(t, key)
	auth := signed(t, key, Authorization{ProductID: 256, Buyer: common.HexToAddress("0xb0b"), Cost: big.NewInt(7), Nonce: 0})

	digest, err := v.Verify(auth)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if used, _ := v.Consumed(digest); !used {
		t.Fatalf("expected digest to be consumed")
	}
	if nonce, _ := v.Nonce(); nonce != 1 {
		t.Fatalf("expected nonce 1, got %d", nonce)
	}
	if _, err := v.Verify(auth); !errors.Is(err, coreerrors.ErrSignedMessage) {
		t.Fatalf("expected replay to fail !signedMessage, got %v", err)
	}
}

func TestVerifyRejectsForeignSigner(t *testing.T) {
	v := newVerifier(t, mustKey(t, 0x11))
	auth := signed(t, mustKey(t, 0x22), Authorization{ProductID: 1, Buyer: common.HexToAddress("0xb0b"), Cost: big.NewInt(1)})
	if _, err := v.Verify(auth); !errors.Is(err, coreerrors.ErrAllowedSigner) {
		t.Fatalf("expected !allowedSigner, got %v", err)
	}
	if nonce, _ := v.Nonce(); nonce != 0 {
		t.Fatalf("rejected authorization must not advance nonce")
	}
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	key := mustKey(t, 0x11)
	v := newVerifier(t, key)
	auth := signed(t, key, Authorization{ProductID: 1, Buyer: common.HexToAddress("0xb0b"), Cost: big.NewInt(1)})
	auth.Signature = auth.Signature[:64]
	if _, err := v.Verify(auth); !errors.Is(err, coreerrors.ErrAllowedSigner) {
		t.Fatalf("expected !allowedSigner for short signature, got %v", err)
	}
	auth = signed(t, key, Authorization{ProductID: 1, Buyer: common.HexToAddress("0xb0b"), Cost: big.NewInt(1)})
	auth.Signature[64] = 5
	if _, err := v.Verify(auth); !errors.Is(err, coreerrors.ErrAllowedSigner) {
		t.Fatalf("expected !allowedSigner for bad recovery id, got %v", err)
	}
}

func TestVerifyAcceptsRawRecoveryID(t *testing.T) {
	key := mustKey(t, 0x11)
	v := newVerifier(t, key)
	auth := signed(t, key, Authorization{ProductID: 9, Buyer: common.HexToAddress("0xb0b"), Cost: big.NewInt(3)})
	auth.Signature[64] -= 27
	if _, err := v.Verify(auth); err != nil {
		t.Fatalf("expected V in {0,1} to verify, got %v", err)
	}
}

func TestVerifyRejectsStaleNonce(t *testing.T) {
	key := mustKey(t, 0x11)
	v := newVerifier(t, key)
	future := signed(t, key, Authorization{ProductID: 1, Buyer: common.HexToAddress("0xb0b"), Cost: big.NewInt(1), Nonce: 4})
	if _, err := v.Verify(future); !errors.Is(err, coreerrors.ErrSignedMessage) {
		t.Fatalf("expected !signedMessage for wrong nonce, got %v", err)
	}
}

func TestDigestBindsDomainAndPayload(t *testing.T) {
	auth := Authorization{ProductID: 1, Buyer: common.HexToAddress("0xb0b"), Cost: big.NewInt(1)}
	a, err := auth.Digest(1)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	b, _ := auth.Digest(2)
	if a == b {
		t.Fatalf("digest must depend on the domain")
	}
	auth.Cost = big.NewInt(2)
	c, _ := auth.Digest(1)
	if a == c {
		t.Fatalf("digest must depend on the cost")
	}
}
