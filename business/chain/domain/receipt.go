package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Receipt is a confirmed L1 transaction.
type Receipt struct {
	TxHash            common.Hash
	BlockNumber       uint64
	BlockHash         common.Hash
	From              common.Address
	To                common.Address
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Status            uint64
	Confirmations     uint64

	// Sequence orders broadcasts made by this process.
	Sequence    uint64
	SubmittedAt time.Time
	ConfirmedAt time.Time
}

// Succeeded reports whether execution succeeded.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}
