package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferRecord documents one value movement made during settlement.
type TransferRecord struct {
	Token  common.Address `json:"token"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount string         `json:"amount"`
	Refund bool           `json:"refund"`
}

// Receipt is the confirmation record emitted when a settlement commits.
type Receipt struct {
	ID        string           `json:"id"`
	Digest    string           `json:"digest"`
	Maker     common.Address   `json:"maker"`
	Taker     common.Address   `json:"taker"`
	TokenInfo string           `json:"token_info"`
	Medium    string           `json:"medium"` // "erc20" or "native"
	Amount    string           `json:"amount"`
	Fee       string           `json:"fee"`
	Payout    string           `json:"payout"`
	Transfers []TransferRecord `json:"transfers"`
	CreatedAt time.Time        `json:"created_at"`
}
