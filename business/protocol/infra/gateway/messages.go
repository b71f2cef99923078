package gateway

import (
	"github.com/fd1az/nightfall-sdk/business/protocol/domain"
)

// Endpoints
const (
	healthcheckEndpoint        = "/healthcheck"
	contractAddressEndpoint    = "/contract-address/"
	generateKeysEndpoint       = "/generate-zkp-keys"
	incomingViewingKeyEndpoint = "/incoming-viewing-key"
	depositEndpoint            = "/deposit"
	transferEndpoint           = "/transfer"
	withdrawEndpoint           = "/withdraw"
	finaliseEndpoint           = "/finalise-withdrawal"
	commitmentsByKeysEndpoint  = "/commitment/compressedZkpPublicKeys"
	saveCommitmentsEndpoint    = "/commitment/save"
	balanceEndpoint            = "/commitment/balance"
	pendingDepositEndpoint     = "/commitment/pending-deposit"
	pendingSpentEndpoint       = "/commitment/pending-spent"
)

// noSuitableCommitments is the service's business rejection for transfers
// and withdrawals that spendable commitments cannot cover.
const noSuitableCommitments = "No suitable commitments"

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type contractAddressResponse struct {
	Address string `json:"address"`
}

type generateKeysRequest struct {
	Mnemonic     string `json:"mnemonic"`
	AddressIndex int    `json:"addressIndex"`
}

type incomingViewingKeyRequest struct {
	ZkpPrivateKeys []string `json:"zkpPrivateKeys"`
	NullifierKeys  []string `json:"nullifierKeys"`
}

type depositRequest struct {
	ErcAddress             string `json:"ercAddress"`
	TokenType              string `json:"tokenType"`
	Value                  string `json:"value"`
	TokenID                string `json:"tokenId"`
	CompressedZkpPublicKey string `json:"compressedZkpPublicKey"`
	NullifierKey           string `json:"nullifierKey"`
	Fee                    string `json:"fee"`
}

type transferRequest struct {
	OffChain      bool                 `json:"offchain"`
	ErcAddress    string               `json:"ercAddress"`
	TokenID       string               `json:"tokenId"`
	RootKey       string               `json:"rootKey"`
	RecipientData domain.RecipientData `json:"recipientData"`
	Fee           string               `json:"fee"`
}

type withdrawRequest struct {
	OffChain         bool   `json:"offchain"`
	ErcAddress       string `json:"ercAddress"`
	TokenType        string `json:"tokenType"`
	TokenID          string `json:"tokenId"`
	Value            string `json:"value"`
	RecipientAddress string `json:"recipientAddress"`
	RootKey          string `json:"rootKey"`
	Fee              string `json:"fee"`
}

type finaliseRequest struct {
	TransactionHash string `json:"transactionHash"`
}

type commitmentsByKeysResponse struct {
	Commitments []domain.Commitment `json:"commitmentsByListOfCompressedZkpPublicKey"`
}

type balanceResponse struct {
	Balance map[string]domain.Balances `json:"balance"`
}
