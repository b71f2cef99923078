package domain

import (
	chaindomain "github.com/fd1az/nightfall-sdk/business/chain/domain"
	protocoldomain "github.com/fd1az/nightfall-sdk/business/protocol/domain"
)

// ReceiptPair is the result of a completed operation. L1 is nil for
// off-chain transfers and withdrawals.
type ReceiptPair struct {
	OperationID string
	L1          *chaindomain.Receipt
	L2          *protocoldomain.L2Transaction
	// Approval is the receipt of an approval sent before a deposit, if any.
	Approval *chaindomain.Receipt
}

// L2Hash returns the protocol transaction hash.
func (p *ReceiptPair) L2Hash() string {
	if p == nil || p.L2 == nil {
		return ""
	}
	return p.L2.TransactionHash
}

// OnChain reports whether an L1 transaction was sent.
func (p *ReceiptPair) OnChain() bool {
	return p != nil && p.L1 != nil
}
