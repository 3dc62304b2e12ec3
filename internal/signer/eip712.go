package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 encodeType strings. These are part of the wire contract: an
// external signer must reproduce them byte-for-byte or its signatures will
// never verify here. Nested struct types are appended in alphabetical order
// per EIP-712.
const (
	eip712DomainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

	itemType          = "Item(address tokenAddress,uint256 deadline,bytes tokenInfo,bytes message,bytes signature)"
	paymentType       = "Payment(uint256 usdPrice,address[] payments)"
	paymentOptionType = "PaymentOption(address token,uint256 amount,uint256 deadline,bytes signature)"
	saleType          = "Sale(address taker,Item item,Payment payments,uint256 nonce,uint256 deadline)"

	saleEncodeType  = saleType + itemType + paymentType
	orderEncodeType = "Order(address maker,Sale sale,PaymentOption option)" +
		itemType + paymentType + paymentOptionType + saleType
)

var (
	EIP712DomainTypeHash  = crypto.Keccak256Hash([]byte(eip712DomainType))
	ItemTypeHash          = crypto.Keccak256Hash([]byte(itemType))
	PaymentTypeHash       = crypto.Keccak256Hash([]byte(paymentType))
	PaymentOptionTypeHash = crypto.Keccak256Hash([]byte(paymentOptionType))
	SaleTypeHash          = crypto.Keccak256Hash([]byte(saleEncodeType))
	OrderTypeHash         = crypto.Keccak256Hash([]byte(orderEncodeType))
)

// EncodeTypes returns the exact encodeType string per primary type, for
// external signers that need to reproduce the hashing.
func EncodeTypes() map[string]string {
	return map[string]string{
		"EIP712Domain":  eip712DomainType,
		"Item":          itemType,
		"Payment":       paymentType,
		"PaymentOption": paymentOptionType,
		"Sale":          saleEncodeType,
		"Order":         orderEncodeType,
	}
}

// Domain identifies one deployment of the settlement engine. Folding it into
// every digest stops signatures replaying across deployments or versions.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract common.Address
}

// Separator computes the EIP-712 domain separator:
// keccak256(abi.encode(typeHash, keccak256(name), keccak256(version), chainId, verifyingContract))
func (d Domain) Separator() common.Hash {
	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))

	data := make([]byte, 32*5)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], nameHash.Bytes())
	copy(data[64:96], versionHash.Bytes())
	putUint(data, 3, big.NewInt(d.ChainID))
	putAddress(data, 4, d.VerifyingContract)

	return crypto.Keccak256Hash(data)
}
