package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mintgate/mintgate/internal/model"
)

// Signer holds a private key and produces order signatures and permit
// credentials. The engine itself never signs; this exists for the inspector
// CLI and for tests exercising the verification path.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(privateKeyHex string) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	publicKey := key.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

// FromKey wraps an already-generated key (tests).
func FromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *Signer) Address() common.Address {
	return s.address
}

// SignDigest signs a 32-byte digest, returning [R || S || V] with V in
// 27/28 form as external verifiers expect.
func (s *Signer) SignDigest(digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// SignOrder signs the typed-data digest of order under the hasher's domain.
func (s *Signer) SignOrder(h *Hasher, order *model.Order) ([]byte, error) {
	return s.SignDigest(h.OrderDigest(order))
}

// SignPermit produces an EIP-2612 permit credential for the given token
// domain, suitable for PaymentOption.Signature.
func (s *Signer) SignPermit(tokenDomainSeparator common.Hash, owner, spender common.Address, value, nonce, deadline *big.Int) ([]byte, error) {
	return s.SignDigest(PermitDigest(tokenDomainSeparator, owner, spender, value, nonce, deadline))
}
