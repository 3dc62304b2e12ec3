package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"

	"github.com/mintgate/mintgate/internal/model"
)

// PostgresReceiptStore persists settlement confirmation records.
type PostgresReceiptStore struct {
	db *sqlx.DB
}

func NewPostgresReceiptStore(db *sqlx.DB) *PostgresReceiptStore {
	store := &PostgresReceiptStore{db: db}
	_ = store.ensureSchema(context.Background())
	return store
}

func (r *PostgresReceiptStore) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS receipts (
			id          TEXT PRIMARY KEY,
			digest      TEXT NOT NULL,
			maker       TEXT NOT NULL,
			taker       TEXT NOT NULL,
			token_info  TEXT NOT NULL,
			medium      TEXT NOT NULL,
			amount      TEXT NOT NULL,
			fee         TEXT NOT NULL,
			payout      TEXT NOT NULL,
			transfers   JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (r *PostgresReceiptStore) Insert(ctx context.Context, receipt *model.Receipt) error {
	if receipt == nil {
		return nil
	}
	transfersJSON, err := json.Marshal(receipt.Transfers)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO receipts (
			id, digest, maker, taker, token_info, medium,
			amount, fee, payout, transfers, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO NOTHING
	`, receipt.ID, receipt.Digest, receipt.Maker.Hex(), receipt.Taker.Hex(),
		receipt.TokenInfo, receipt.Medium, receipt.Amount, receipt.Fee,
		receipt.Payout, transfersJSON, receipt.CreatedAt)
	return err
}

func (r *PostgresReceiptStore) GetByID(ctx context.Context, id string) (*model.Receipt, error) {
	var row struct {
		ID        string    `db:"id"`
		Digest    string    `db:"digest"`
		Maker     string    `db:"maker"`
		Taker     string    `db:"taker"`
		TokenInfo string    `db:"token_info"`
		Medium    string    `db:"medium"`
		Amount    string    `db:"amount"`
		Fee       string    `db:"fee"`
		Payout    string    `db:"payout"`
		Transfers []byte    `db:"transfers"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT id, digest, maker, taker, token_info, medium,
		       amount, fee, payout, transfers, created_at
		FROM receipts WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var transfers []model.TransferRecord
	if err := json.Unmarshal(row.Transfers, &transfers); err != nil {
		return nil, err
	}
	return &model.Receipt{
		ID:        row.ID,
		Digest:    row.Digest,
		Maker:     common.HexToAddress(row.Maker),
		Taker:     common.HexToAddress(row.Taker),
		TokenInfo: row.TokenInfo,
		Medium:    row.Medium,
		Amount:    row.Amount,
		Fee:       row.Fee,
		Payout:    row.Payout,
		Transfers: transfers,
		CreatedAt: row.CreatedAt,
	}, nil
}
