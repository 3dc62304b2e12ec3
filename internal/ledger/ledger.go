package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Capability names a recognized target-contract mint interface.
type Capability string

const (
	CapabilitySingle   Capability = "erc721"
	CapabilityQuantity Capability = "erc1155"
)

// ERC-165 interface identifiers used for capability probing.
var (
	InterfaceERC721  = [4]byte{0x80, 0xac, 0x58, 0xcd}
	InterfaceERC1155 = [4]byte{0xd9, 0xb6, 0x7a, 0x26}
)

// Transfer is one staged value movement. Token equal to the zero address
// means the chain's native asset.
type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
	Refund bool
}

func (t Transfer) Native() bool {
	return t.Token == (common.Address{})
}

// PermitRequest consumes an EIP-2612 credential to raise Owner's allowance
// to Spender before any transfer is applied.
type PermitRequest struct {
	Token     common.Address
	Owner     common.Address
	Spender   common.Address
	Value     *big.Int
	Deadline  *big.Int
	Signature []byte
}

// MintCall is the capability-specific "lazy mint and deliver" invocation.
// Data carries the packed calldata for on-chain execution; the structured
// fields let simulated ledgers apply the same call without decoding it.
type MintCall struct {
	Target     common.Address
	Capability Capability
	From       common.Address
	To         common.Address
	TokenID    *big.Int
	Quantity   *big.Int // nil for the single-token capability
	URI        string
	Data       []byte
}

// Tx is the complete staged effect of one settlement. Execute commits it
// all-or-nothing: permit, every transfer, then the mint dispatch.
type Tx struct {
	Payer     common.Address
	Supplied  *big.Int // native value attached to the call
	Permit    *PermitRequest
	Transfers []Transfer
	Mint      *MintCall
}

// Ledger is the strongly consistent execution environment the engine
// settles against.
type Ledger interface {
	// Allowance reports Owner's current ERC-20 spending allowance to
	// Spender.
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	// SupportsInterface probes a contract's declared ERC-165 capability.
	SupportsInterface(ctx context.Context, contract common.Address, interfaceID [4]byte) (bool, error)
	// Execute commits the staged transaction atomically. Either every
	// state change lands or none do; failures carry a typed apperrors
	// reason.
	Execute(ctx context.Context, tx *Tx) error
}
