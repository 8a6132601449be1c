package shipping

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/state"
)

var (
	signerKey       = []byte("shipping/signer")
	nonceKey        = []byte("shipping/nonce")
	consumedPrefix  = []byte("shipping/consumed/")
	payloadArgument abi.Arguments
)

func init() {
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	payloadArgument = abi.Arguments{
		{Name: "productId", Type: uint256Type},
		{Name: "buyer", Type: addressType},
		{Name: "shippingCost", Type: uint256Type},
		{Name: "domainId", Type: uint256Type},
		{Name: "nonce", Type: uint256Type},
	}
}

// Authorization is an off-chain permission to charge Cost for shipping
// ProductID to Buyer. Nonce must equal the verifier's nonce when it is
// presented.
type Authorization struct {
	ProductID uint64
	Buyer     common.Address
	Cost      *big.Int
	Nonce     uint64
	Signature []byte
}

// Hash returns keccak256 of the ABI encoded payload.
func (a Authorization) Hash(domainID uint64) (common.Hash, error) {
	cost := a.Cost
	if cost == nil {
		cost = big.NewInt(0)
	}
	if cost.Sign() < 0 || cost.BitLen() > 256 {
		return common.Hash{}, coreerrors.ErrOverflow
	}
	packed, err := payloadArgument.Pack(
		new(big.Int).SetUint64(a.ProductID),
		a.Buyer,
		cost,
		new(big.Int).SetUint64(domainID),
		new(big.Int).SetUint64(a.Nonce),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("shipping: encode payload: %w", err)
	}
	return ethcrypto.Keccak256Hash(packed), nil
}

// Digest returns the EIP-191 personal message hash that is actually signed.
func (a Authorization) Digest(domainID uint64) (common.Hash, error) {
	hash, err := a.Hash(domainID)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(accounts.TextHash(hash.Bytes())), nil
}

// Sign produces a 65 byte [R || S || V] signature with V in {27, 28}.
func Sign(key *ecdsa.PrivateKey, auth Authorization, domainID uint64) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("shipping: signing key required")
	}
	digest, err := auth.Digest(domainID)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func recoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != ethcrypto.SignatureLength {
		return common.Address{}, coreerrors.ErrAllowedSigner
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	switch normalized[64] {
	case 0, 1:
	case 27, 28:
		normalized[64] -= 27
	default:
		return common.Address{}, coreerrors.ErrAllowedSigner
	}
	pub, err := ethcrypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, coreerrors.ErrAllowedSigner
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Verifier checks shipping authorizations against the allowed signer and
// records them as consumed.
type Verifier struct {
	kv       state.KV
	domainID uint64
}

func NewVerifier(kv state.KV, domainID uint64) *Verifier {
	return &Verifier{kv: kv, domainID: domainID}
}

// DomainID returns the domain separator mixed into every payload.
func (v *Verifier) DomainID() uint64 { return v.domainID }

func (v *Verifier) Signer() (common.Address, error) {
	var signer common.Address
	if _, err := v.kv.KVGet(signerKey, &signer); err != nil {
		return common.Address{}, err
	}
	return signer, nil
}

func (v *Verifier) SetSigner(signer common.Address) error {
	return v.kv.KVPut(signerKey, signer)
}

// Nonce returns the nonce the next authorization must carry.
func (v *Verifier) Nonce() (uint64, error) {
	var nonce uint64
	if _, err := v.kv.KVGet(nonceKey, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

func consumedKey(digest common.Hash) []byte {
	return append(append([]byte(nil), consumedPrefix...), digest.Bytes()...)
}

// Consumed reports whether the digest was already spent.
func (v *Verifier) Consumed(digest common.Hash) (bool, error) {
	return v.kv.KVGet(consumedKey(digest), nil)
}

// Verify accepts auth at most once. A reused digest or a stale nonce fails
// with !signedMessage, a signature that does not recover to the allowed signer
// fails with !allowedSigner. On success the digest is consumed and the nonce
// advances.
func (v *Verifier) Verify(auth Authorization) (common.Hash, error) {
	digest, err := auth.Digest(v.domainID)
	if err != nil {
		return common.Hash{}, err
	}
	used, err := v.Consumed(digest)
	if err != nil {
		return common.Hash{}, err
	}
	if used {
		return common.Hash{}, coreerrors.ErrSignedMessage
	}
	allowed, err := v.Signer()
	if err != nil {
		return common.Hash{}, err
	}
	recovered, err := recoverSigner(digest, auth.Signature)
	if err != nil {
		return common.Hash{}, err
	}
	if allowed == (common.Address{}) || recovered != allowed {
		return common.Hash{}, coreerrors.ErrAllowedSigner
	}
	nonce, err := v.Nonce()
	if err != nil {
		return common.Hash{}, err
	}
	if auth.Nonce != nonce {
		return common.Hash{}, coreerrors.ErrSignedMessage
	}
	if err := v.kv.KVPut(consumedKey(digest), true); err != nil {
		return common.Hash{}, err
	}
	if err := v.kv.KVPut(nonceKey, nonce+1); err != nil {
		return common.Hash{}, err
	}
	return digest, nil
}
