package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	chaindomain "github.com/fd1az/nightfall-sdk/business/chain/domain"
)

// ApprovalDecision is the result of reading the current approval. When
// Approved is false, CallData holds the approval call to send to Token.
type ApprovalDecision struct {
	Approved  bool
	Token     common.Address
	Spender   common.Address
	Allowance *big.Int // ERC20 only
	CallData  []byte
}

// ApprovalResult names what EnsureApproved did.
type ApprovalResult string

const (
	AlreadyApproved   ApprovalResult = "already_approved"
	ApprovalSubmitted ApprovalResult = "approval_submitted"
)

// ApprovalOutcome is returned by EnsureApproved. Receipt is set only when
// an approval was submitted.
type ApprovalOutcome struct {
	Result  ApprovalResult
	Receipt *chaindomain.Receipt
}

// Submitted reports whether an approval transaction was sent.
func (o ApprovalOutcome) Submitted() bool {
	return o.Result == ApprovalSubmitted
}
