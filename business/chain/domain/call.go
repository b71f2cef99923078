package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CallRequest is an unsigned L1 contract call. Gas and GasPrice are filled
// in by the submitter before signing or delegating to a wallet.
type CallRequest struct {
	From     common.Address
	To       common.Address
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// ValueOrZero returns Value, or zero when unset.
func (c CallRequest) ValueOrZero() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}
