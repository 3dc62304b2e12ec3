package dispatch

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mintgate/mintgate/internal/ledger"
	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/pkg/apperrors"
	"github.com/mintgate/mintgate/internal/pkg/metrics"
)

const mintABI = `[
	{"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"uri","type":"string"}],"name":"mintAndTransfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"quantity","type":"uint256"},{"name":"uri","type":"string"}],"name":"mintAndTransferQuantity","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// Router probes a target contract's declared mint capability and shapes
// the lazy-mint call accordingly. The capability set is closed: adding a
// new kind means a new decode/build pair, not another conditional.
type Router struct {
	ledger ledger.Ledger

	once      sync.Once
	parsedABI abi.ABI
	args4     abi.Arguments
	args5     abi.Arguments
	initErr   error
}

func NewRouter(l ledger.Ledger) *Router {
	return &Router{ledger: l}
}

func (r *Router) init() error {
	r.once.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(mintABI))
		if err != nil {
			r.initErr = fmt.Errorf("failed to parse mint abi: %w", err)
			return
		}
		r.parsedABI = parsed

		addressType, err := abi.NewType("address", "", nil)
		if err != nil {
			r.initErr = err
			return
		}
		uint256Type, err := abi.NewType("uint256", "", nil)
		if err != nil {
			r.initErr = err
			return
		}
		stringType, err := abi.NewType("string", "", nil)
		if err != nil {
			r.initErr = err
			return
		}
		r.args4 = abi.Arguments{
			{Name: "from", Type: addressType},
			{Name: "to", Type: addressType},
			{Name: "tokenId", Type: uint256Type},
			{Name: "uri", Type: stringType},
		}
		r.args5 = abi.Arguments{
			{Name: "from", Type: addressType},
			{Name: "to", Type: addressType},
			{Name: "tokenId", Type: uint256Type},
			{Name: "quantity", Type: uint256Type},
			{Name: "uri", Type: stringType},
		}
	})
	return r.initErr
}

// Probe asks the target which mint capability it declares. Unrecognized
// targets fail fast; there is no no-op fallback.
func (r *Router) Probe(ctx context.Context, target common.Address) (ledger.Capability, error) {
	single, err := r.ledger.SupportsInterface(ctx, target, ledger.InterfaceERC721)
	if err != nil {
		return "", apperrors.New(apperrors.ErrDispatchFailed, "capability probe failed", err)
	}
	if single {
		return ledger.CapabilitySingle, nil
	}
	quantity, err := r.ledger.SupportsInterface(ctx, target, ledger.InterfaceERC1155)
	if err != nil {
		return "", apperrors.New(apperrors.ErrDispatchFailed, "capability probe failed", err)
	}
	if quantity {
		return ledger.CapabilityQuantity, nil
	}
	metrics.DispatchTotal.WithLabelValues("unknown", "rejected").Inc()
	return "", apperrors.Newf(apperrors.ErrDispatchFailed,
		"target %s declares no known mint capability", target.Hex())
}

// BuildMint decodes tokenInfo under the probed capability's schema and
// packs the matching mint entry point.
func (r *Router) BuildMint(ctx context.Context, item *model.Item) (*ledger.MintCall, error) {
	if err := r.init(); err != nil {
		return nil, apperrors.New(apperrors.ErrDispatchFailed, "router init failed", err)
	}

	capability, err := r.Probe(ctx, item.TokenAddress)
	if err != nil {
		return nil, err
	}

	switch capability {
	case ledger.CapabilitySingle:
		return r.buildSingle(item)
	case ledger.CapabilityQuantity:
		return r.buildQuantity(item)
	default:
		return nil, apperrors.Newf(apperrors.ErrDispatchFailed, "unhandled capability %s", capability)
	}
}

func (r *Router) buildSingle(item *model.Item) (*ledger.MintCall, error) {
	values, err := r.args4.Unpack(item.TokenInfo)
	if err != nil || len(values) != 4 {
		metrics.DispatchTotal.WithLabelValues(string(ledger.CapabilitySingle), "decode_error").Inc()
		return nil, apperrors.New(apperrors.ErrDispatchFailed, "token info does not match the single-token schema", err)
	}
	from, ok1 := values[0].(common.Address)
	to, ok2 := values[1].(common.Address)
	tokenID, ok3 := values[2].(*big.Int)
	uri, ok4 := values[3].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		metrics.DispatchTotal.WithLabelValues(string(ledger.CapabilitySingle), "decode_error").Inc()
		return nil, apperrors.New(apperrors.ErrDispatchFailed, "token info does not match the single-token schema", nil)
	}

	data, err := r.parsedABI.Pack("mintAndTransfer", from, to, tokenID, uri)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrDispatchFailed, "failed to pack mint call", err)
	}
	metrics.DispatchTotal.WithLabelValues(string(ledger.CapabilitySingle), "built").Inc()
	return &ledger.MintCall{
		Target:     item.TokenAddress,
		Capability: ledger.CapabilitySingle,
		From:       from,
		To:         to,
		TokenID:    tokenID,
		URI:        uri,
		Data:       data,
	}, nil
}

func (r *Router) buildQuantity(item *model.Item) (*ledger.MintCall, error) {
	values, err := r.args5.Unpack(item.TokenInfo)
	if err != nil || len(values) != 5 {
		metrics.DispatchTotal.WithLabelValues(string(ledger.CapabilityQuantity), "decode_error").Inc()
		return nil, apperrors.New(apperrors.ErrDispatchFailed, "token info does not match the quantity schema", err)
	}
	from, ok1 := values[0].(common.Address)
	to, ok2 := values[1].(common.Address)
	tokenID, ok3 := values[2].(*big.Int)
	quantity, ok4 := values[3].(*big.Int)
	uri, ok5 := values[4].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		metrics.DispatchTotal.WithLabelValues(string(ledger.CapabilityQuantity), "decode_error").Inc()
		return nil, apperrors.New(apperrors.ErrDispatchFailed, "token info does not match the quantity schema", nil)
	}
	if quantity.Sign() <= 0 {
		return nil, apperrors.New(apperrors.ErrDispatchFailed, "mint quantity must be positive", nil)
	}

	data, err := r.parsedABI.Pack("mintAndTransferQuantity", from, to, tokenID, quantity, uri)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrDispatchFailed, "failed to pack mint call", err)
	}
	metrics.DispatchTotal.WithLabelValues(string(ledger.CapabilityQuantity), "built").Inc()
	return &ledger.MintCall{
		Target:     item.TokenAddress,
		Capability: ledger.CapabilityQuantity,
		From:       from,
		To:         to,
		TokenID:    tokenID,
		Quantity:   quantity,
		URI:        uri,
		Data:       data,
	}, nil
}

// EncodeTokenInfo packs a payload for the single-token schema. Used by the
// inspector and tests; external makers produce these off-chain.
func EncodeTokenInfo(from, to common.Address, tokenID *big.Int, uri string) ([]byte, error) {
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	stringType, _ := abi.NewType("string", "", nil)
	args := abi.Arguments{
		{Type: addressType}, {Type: addressType}, {Type: uint256Type}, {Type: stringType},
	}
	return args.Pack(from, to, tokenID, uri)
}

// EncodeTokenInfoQuantity packs a payload for the quantity schema.
func EncodeTokenInfoQuantity(from, to common.Address, tokenID, quantity *big.Int, uri string) ([]byte, error) {
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	stringType, _ := abi.NewType("string", "", nil)
	args := abi.Arguments{
		{Type: addressType}, {Type: addressType}, {Type: uint256Type}, {Type: uint256Type}, {Type: stringType},
	}
	return args.Pack(from, to, tokenID, quantity, uri)
}
