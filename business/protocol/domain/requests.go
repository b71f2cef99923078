package domain

import "github.com/ethereum/go-ethereum/common"

// DepositRequest asks the service to build a deposit. Value and Fee are in
// base units.
type DepositRequest struct {
	ErcAddress common.Address
	TokenType  string
	Value      string
	TokenID    string
	Fee        string
	Keys       *ZkpKeySet
}

// RecipientData lists L2 recipients and the value each receives.
type RecipientData struct {
	RecipientCompressedZkpPublicKeys []string `json:"recipientCompressedZkpPublicKeys"`
	Values                           []string `json:"values"`
}

// TransferRequest asks the service to build an L2 transfer.
type TransferRequest struct {
	ErcAddress common.Address
	TokenID    string
	Recipients RecipientData
	Fee        string
	OffChain   bool
	Keys       *ZkpKeySet
}

// WithdrawalRequest asks the service to build a withdrawal to an L1 address.
type WithdrawalRequest struct {
	ErcAddress       common.Address
	TokenType        string
	Value            string
	TokenID          string
	Fee              string
	RecipientAddress common.Address
	OffChain         bool
	Keys             *ZkpKeySet
}
