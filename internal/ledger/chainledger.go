package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mintgate/mintgate/internal/pkg/apperrors"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const erc165ABI = `[
	{"constant":true,"inputs":[{"name":"interfaceId","type":"bytes4"}],"name":"supportsInterface","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"}
]`

const settlementABI = `[
	{"inputs":[
		{"name":"permitData","type":"bytes"},
		{"components":[{"name":"token","type":"address"},{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"},{"name":"refund","type":"bool"}],"name":"transfers","type":"tuple[]"},
		{"name":"mintTarget","type":"address"},
		{"name":"mintData","type":"bytes"}
	],"name":"settle","outputs":[{"name":"","type":"bool"}],"stateMutability":"payable","type":"function"}
]`

// ChainLedger settles against a deployed custody contract over JSON-RPC.
// Atomicity comes from the chain itself: the settle transaction either
// commits every staged effect or reverts.
type ChainLedger struct {
	client     *ethclient.Client
	contract   *bind.BoundContract
	opts       *bind.TransactOpts
	address    common.Address
	erc20      abi.ABI
	erc165     abi.ABI
	settlement abi.ABI
	timeout    time.Duration
}

func NewChainLedger(ctx context.Context, rpcURL string, contractAddr common.Address, privateKeyHex string, chainID int64, timeout time.Duration) (*ChainLedger, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %v", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}

	erc20Parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 abi: %w", err)
	}
	erc165Parsed, err := abi.JSON(strings.NewReader(erc165ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc165 abi: %w", err)
	}
	settleParsed, err := abi.JSON(strings.NewReader(settlementABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement abi: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &ChainLedger{
		client:     client,
		contract:   bind.NewBoundContract(contractAddr, settleParsed, client, client, client),
		opts:       opts,
		address:    contractAddr,
		erc20:      erc20Parsed,
		erc165:     erc165Parsed,
		settlement: settleParsed,
		timeout:    timeout,
	}, nil
}

func (l *ChainLedger) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := l.erc20.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}
	output, err := l.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}
	values, err := l.erc20.Unpack("allowance", output)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("malformed allowance response from %s", token.Hex())
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("malformed allowance response from %s", token.Hex())
	}
	return allowance, nil
}

func (l *ChainLedger) SupportsInterface(ctx context.Context, contract common.Address, interfaceID [4]byte) (bool, error) {
	data, err := l.erc165.Pack("supportsInterface", interfaceID)
	if err != nil {
		return false, fmt.Errorf("failed to pack call data: %w", err)
	}
	output, err := l.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		// Contracts without ERC-165 revert the probe; treat as
		// undeclared rather than fatal.
		return false, nil
	}
	values, err := l.erc165.Unpack("supportsInterface", output)
	if err != nil || len(values) != 1 {
		return false, nil
	}
	supported, _ := values[0].(bool)
	return supported, nil
}

func (l *ChainLedger) Execute(ctx context.Context, tx *Tx) error {
	permitData, err := encodePermit(tx.Permit)
	if err != nil {
		return apperrors.New(apperrors.ErrAuthorizationFailed, "failed to encode permit", err)
	}

	type boundTransfer struct {
		Token  common.Address
		From   common.Address
		To     common.Address
		Amount *big.Int
		Refund bool
	}
	transfers := make([]boundTransfer, 0, len(tx.Transfers))
	for _, tr := range tx.Transfers {
		transfers = append(transfers, boundTransfer{
			Token:  tr.Token,
			From:   tr.From,
			To:     tr.To,
			Amount: tr.Amount,
			Refund: tr.Refund,
		})
	}

	mintTarget := common.Address{}
	var mintData []byte
	if tx.Mint != nil {
		mintTarget = tx.Mint.Target
		mintData = tx.Mint.Data
	}

	opts := *l.opts
	opts.Context = ctx
	if tx.Supplied != nil && tx.Supplied.Sign() > 0 {
		opts.Value = tx.Supplied
	}

	sent, err := l.contract.Transact(&opts, "settle", permitData, transfers, mintTarget, mintData)
	if err != nil {
		return apperrors.New(apperrors.ErrTransferFailed, "settle transaction rejected", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, l.client, sent)
	if err != nil {
		return apperrors.New(apperrors.ErrTransferFailed, "settle transaction not mined", err)
	}
	if receipt.Status != 1 {
		return apperrors.Newf(apperrors.ErrTransferFailed, "settle transaction %s reverted", sent.Hash().Hex())
	}
	return nil
}

func encodePermit(p *PermitRequest) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}
	bytesType, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return nil, err
	}
	args := abi.Arguments{
		{Type: addressType}, // token
		{Type: addressType}, // owner
		{Type: addressType}, // spender
		{Type: uint256Type}, // value
		{Type: uint256Type}, // deadline
		{Type: bytesType},   // signature
	}
	return args.Pack(p.Token, p.Owner, p.Spender, p.Value, p.Deadline, p.Signature)
}
