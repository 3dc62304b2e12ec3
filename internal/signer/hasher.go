package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mintgate/mintgate/internal/model"
)

// Hasher produces the canonical typed-data digest of an order. Pure: a
// malformed order simply hashes to a different, non-matching digest.
type Hasher struct {
	domain          Domain
	domainSeparator common.Hash
}

// NewHasher pre-calculates the domain separator once.
func NewHasher(domain Domain) *Hasher {
	return &Hasher{
		domain:          domain,
		domainSeparator: domain.Separator(),
	}
}

func (h *Hasher) Domain() Domain {
	return h.domain
}

func (h *Hasher) DomainSeparator() common.Hash {
	return h.domainSeparator
}

// OrderDigest is the final signing digest:
// keccak256("\x19\x01" || domainSeparator || hashStruct(order))
func (h *Hasher) OrderDigest(o *model.Order) common.Hash {
	structHash := HashOrder(o)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, h.domainSeparator.Bytes(), structHash.Bytes())
}

// HashOrder folds the Sale and PaymentOption struct hashes into the
// top-level Order hash.
func HashOrder(o *model.Order) common.Hash {
	data := make([]byte, 32*4)
	copy(data[0:32], OrderTypeHash.Bytes())
	putAddress(data, 1, o.Maker)
	copy(data[64:96], HashSale(&o.Sale).Bytes())
	copy(data[96:128], HashPaymentOption(&o.Option).Bytes())
	return crypto.Keccak256Hash(data)
}

// HashSale folds the Item and Payment digests together with taker, nonce
// and deadline.
func HashSale(s *model.Sale) common.Hash {
	data := make([]byte, 32*6)
	copy(data[0:32], SaleTypeHash.Bytes())
	putAddress(data, 1, s.Taker)
	copy(data[64:96], HashItem(&s.Item).Bytes())
	copy(data[96:128], HashPayment(&s.Payments).Bytes())
	putUint(data, 4, s.Nonce)
	putUint(data, 5, s.Deadline)
	return crypto.Keccak256Hash(data)
}

// HashItem hashes the item fields; opaque byte payloads encode as the
// keccak256 of their contents per EIP-712.
func HashItem(i *model.Item) common.Hash {
	data := make([]byte, 32*6)
	copy(data[0:32], ItemTypeHash.Bytes())
	putAddress(data, 1, i.TokenAddress)
	putUint(data, 2, i.Deadline)
	copy(data[96:128], crypto.Keccak256(i.TokenInfo))
	copy(data[128:160], crypto.Keccak256(i.Message))
	copy(data[160:192], crypto.Keccak256(i.Signature))
	return crypto.Keccak256Hash(data)
}

// HashPayment hashes the payee array as keccak256 of the concatenated
// 32-byte address encodings.
func HashPayment(p *model.Payment) common.Hash {
	payees := make([]byte, 32*len(p.Payments))
	for idx, addr := range p.Payments {
		putAddress(payees, idx, addr)
	}

	data := make([]byte, 32*3)
	copy(data[0:32], PaymentTypeHash.Bytes())
	putUint(data, 1, p.USDPrice)
	copy(data[64:96], crypto.Keccak256(payees))
	return crypto.Keccak256Hash(data)
}

func HashPaymentOption(o *model.PaymentOption) common.Hash {
	data := make([]byte, 32*5)
	copy(data[0:32], PaymentOptionTypeHash.Bytes())
	putAddress(data, 1, o.Token)
	putUint(data, 2, o.Amount)
	putUint(data, 3, o.Deadline)
	copy(data[128:160], crypto.Keccak256(o.Signature))
	return crypto.Keccak256Hash(data)
}

// putUint writes v into the 32-byte slot at index. Nil encodes as zero.
func putUint(data []byte, slot int, v *big.Int) {
	if v == nil {
		return
	}
	copy(data[slot*32:(slot+1)*32], math.U256Bytes(v))
}

// putAddress left-pads the 20-byte address into the 32-byte slot.
func putAddress(data []byte, slot int, addr common.Address) {
	copy(data[slot*32+12:(slot+1)*32], addr.Bytes())
}
