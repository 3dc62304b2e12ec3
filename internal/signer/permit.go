package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-2612 permit typed data, used for gasless allowance bridging.
const permitType = "Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"

var PermitTypeHash = crypto.Keccak256Hash([]byte(permitType))

// TokenDomain builds the EIP-712 domain of an ERC-20 token contract, the
// domain a permit credential is signed under.
func TokenDomain(name, version string, chainID int64, token common.Address) Domain {
	return Domain{
		Name:              name,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: token,
	}
}

// PermitDigest is the EIP-2612 signing digest for a permit message under
// the token's domain separator.
func PermitDigest(tokenDomainSeparator common.Hash, owner, spender common.Address, value, nonce, deadline *big.Int) common.Hash {
	data := make([]byte, 32*6)
	copy(data[0:32], PermitTypeHash.Bytes())
	putAddress(data, 1, owner)
	putAddress(data, 2, spender)
	putUint(data, 3, value)
	putUint(data, 4, nonce)
	putUint(data, 5, deadline)
	structHash := crypto.Keccak256(data)

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, tokenDomainSeparator.Bytes(), structHash)
}
