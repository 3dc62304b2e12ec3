package service

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/mintgate/mintgate/internal/dispatch"
	"github.com/mintgate/mintgate/internal/ledger"
	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/oracle"
	"github.com/mintgate/mintgate/internal/pkg/apperrors"
	"github.com/mintgate/mintgate/internal/pkg/logger"
	"github.com/mintgate/mintgate/internal/pkg/metrics"
	"github.com/mintgate/mintgate/internal/registry"
	"github.com/mintgate/mintgate/internal/settle"
	"github.com/mintgate/mintgate/internal/signer"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ReceiptStore persists confirmation records. Persistence is best-effort:
// a store failure after commit is logged, not propagated.
type ReceiptStore interface {
	Insert(ctx context.Context, receipt *model.Receipt) error
	GetByID(ctx context.Context, id string) (*model.Receipt, error)
}

// Broadcaster pushes confirmation records to live subscribers.
type Broadcaster interface {
	Publish(receipt *model.Receipt)
}

// Engine runs the settlement pipeline:
// Hash → Verify → Guard → Convert → Settle → Dispatch → Confirm.
// One invocation is one atomic unit of work; any failure leaves nothing
// behind but the typed error.
type Engine struct {
	hasher    *signer.Hasher
	guard     *EligibilityGuard
	converter *oracle.Converter
	settler   *settle.Settler
	router    *dispatch.Router
	ledger    ledger.Ledger
	view      registry.View
	nonces    NonceStore
	receipts  ReceiptStore
	stream    Broadcaster
	entry     settle.EntryGuard
}

func NewEngine(
	hasher *signer.Hasher,
	guard *EligibilityGuard,
	converter *oracle.Converter,
	settler *settle.Settler,
	router *dispatch.Router,
	l ledger.Ledger,
	view registry.View,
	nonces NonceStore,
	receipts ReceiptStore,
	stream Broadcaster,
) *Engine {
	return &Engine{
		hasher:    hasher,
		guard:     guard,
		converter: converter,
		settler:   settler,
		router:    router,
		ledger:    l,
		view:      view,
		nonces:    nonces,
		receipts:  receipts,
		stream:    stream,
	}
}

func (e *Engine) Hasher() *signer.Hasher {
	return e.hasher
}

// BuyLazyMint settles one signed order. supplied is the native value
// attached to the call; a token-paid order must not attach any.
func (e *Engine) BuyLazyMint(ctx context.Context, order *model.Order, signature []byte, supplied *big.Int) (*model.Receipt, error) {
	ctx, release, err := e.entry.Enter(ctx)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("rejected", "unknown").Inc()
		return nil, err
	}
	defer release()

	start := time.Now()
	medium := "erc20"
	if order.IsNative() {
		medium = "native"
	}

	receipt, err := e.settleLocked(ctx, order, signature, supplied, medium)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues(string(apperrors.TypeOf(err)), medium).Inc()
		return nil, err
	}

	metrics.SettlementsTotal.WithLabelValues("confirmed", medium).Inc()
	logger.Info("settlement confirmed",
		"receipt_id", receipt.ID,
		"maker", receipt.Maker.Hex(),
		"taker", receipt.Taker.Hex(),
		"medium", medium,
		"payout", receipt.Payout,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return receipt, nil
}

func (e *Engine) settleLocked(ctx context.Context, order *model.Order, signature []byte, supplied *big.Int, medium string) (*model.Receipt, error) {
	// 1. Hash
	digest := e.hasher.OrderDigest(order)

	// 2. Verify signature: the sale taker must have signed the digest.
	recovered, err := signer.Recover(digest, signature)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidSignature, "signature recovery failed", err)
	}
	if recovered != order.Sale.Taker {
		return nil, apperrors.Newf(apperrors.ErrInvalidSignature,
			"recovered signer %s is not the sale taker", recovered.Hex())
	}

	// 3. Eligibility gates
	if err := e.guard.Check(ctx, order); err != nil {
		return nil, err
	}

	// 4. Price conversion
	amount, err := e.converter.TokenAmount(ctx, order.Sale.Payments.USDPrice, order.Option.Token)
	if err != nil {
		return nil, err
	}

	// 5. Stage payment
	plan, err := e.settler.BuildPlan(ctx, order, amount, e.view.FeeRateBps(), e.view.FeeCollector(), supplied)
	if err != nil {
		return nil, err
	}

	// 6. Shape the mint dispatch. Built after payment staging but executed
	// by the ledger only once every transfer has landed: pay then deliver.
	mint, err := e.router.BuildMint(ctx, &order.Sale.Item)
	if err != nil {
		return nil, err
	}

	// 7. Commit everything as one unit. The supplied value is escrowed only
	// on the native path; token-paid orders were rejected above if any value
	// was attached, so nothing can be absorbed unrecorded.
	tx := &ledger.Tx{
		Payer:     order.Maker,
		Permit:    plan.Permit,
		Transfers: plan.Transfers,
		Mint:      mint,
	}
	if order.IsNative() {
		tx.Supplied = supplied
	}
	if err := e.ledger.Execute(ctx, tx); err != nil {
		return nil, err
	}

	// 8. Confirm. The nonce is consumed only by a committed settlement. A
	// store failure here opens a replay window until the store recovers, so
	// it is counted for alerting, not just logged.
	if err := e.nonces.MarkUsed(ctx, order.Maker, order.Sale.Nonce); err != nil {
		metrics.NonceMarkFailures.Inc()
		logger.LogError(ctx, err, "failed to mark nonce used",
			"maker", order.Maker.Hex(), "nonce", order.Sale.Nonce.String())
	}

	receipt := e.buildReceipt(order, digest, plan, medium)
	if e.receipts != nil {
		if err := e.receipts.Insert(ctx, receipt); err != nil {
			logger.LogError(ctx, err, "failed to persist receipt", "receipt_id", receipt.ID)
		}
	}
	if e.stream != nil {
		e.stream.Publish(receipt)
	}
	return receipt, nil
}

func (e *Engine) buildReceipt(order *model.Order, digest [32]byte, plan *settle.Plan, medium string) *model.Receipt {
	transfers := make([]model.TransferRecord, 0, len(plan.Transfers))
	for _, tr := range plan.Transfers {
		transfers = append(transfers, model.TransferRecord{
			Token:  tr.Token,
			From:   tr.From,
			To:     tr.To,
			Amount: tr.Amount.String(),
			Refund: tr.Refund,
		})
	}
	return &model.Receipt{
		ID:        uuid.NewString(),
		Digest:    hexutil.Encode(digest[:]),
		Maker:     order.Maker,
		Taker:     order.Sale.Taker,
		TokenInfo: hexutil.Encode(order.Sale.Item.TokenInfo),
		Medium:    medium,
		Amount:    plan.Amount.String(),
		Fee:       plan.Fee.String(),
		Payout:    plan.Payout.String(),
		Transfers: transfers,
		CreatedAt: time.Now().UTC(),
	}
}

// GetReceipt looks up a persisted confirmation record.
func (e *Engine) GetReceipt(ctx context.Context, id string) (*model.Receipt, error) {
	if e.receipts == nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "receipt store not configured", nil)
	}
	receipt, err := e.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	if receipt == nil {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "receipt %s not found", id)
	}
	return receipt, nil
}
