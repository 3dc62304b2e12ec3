package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeToken is the sentinel payment token address denoting the chain's
// native asset.
var NativeToken = common.Address{}

// Order is an ephemeral, caller-supplied sale offer. It has no identity
// beyond its typed-data digest and is never persisted.
type Order struct {
	Maker  common.Address
	Sale   Sale
	Option PaymentOption
}

// Sale names the required signer (taker) and the item being sold.
type Sale struct {
	Taker    common.Address
	Item     Item
	Payments Payment
	Nonce    *big.Int
	Deadline *big.Int
}

// Item points at the target collection contract. TokenInfo is opaque here;
// its schema depends on the capability the contract declares and is decoded
// by the dispatch router only after payment has settled.
type Item struct {
	TokenAddress common.Address
	Deadline     *big.Int
	TokenInfo    []byte
	Message      []byte
	Signature    []byte
}

// Payment carries the USD-denominated target price, scaled to 1e18.
// The payee list is reserved for split-payment extensions and is hashed but
// not consumed by settlement.
type Payment struct {
	USDPrice *big.Int
	Payments []common.Address
}

// PaymentOption selects the payment medium. A zero token address means the
// native asset. Signature holds the EIP-2612 permit credential used for
// gasless allowance bridging on the ERC-20 path.
type PaymentOption struct {
	Token     common.Address
	Amount    *big.Int
	Deadline  *big.Int
	Signature []byte
}

// IsNative reports whether the order settles in the chain's native asset.
func (o *Order) IsNative() bool {
	return o.Option.Token == NativeToken
}
