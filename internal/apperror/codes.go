package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeServiceTimeout    Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Protocol service (L2) errors
const (
	CodeProtocolServiceError       Code = "PROTOCOL_SERVICE_ERROR"
	CodeProtocolServiceUnavailable Code = "PROTOCOL_SERVICE_UNAVAILABLE"
	CodeMalformedResponse          Code = "MALFORMED_RESPONSE"
	// CodeNoSuitableCommitments is raised when the service has no commitments
	// able to cover a transfer or withdrawal.
	CodeNoSuitableCommitments Code = "NO_SUITABLE_COMMITMENTS"
)

// Chain (L1) errors
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeTransactionSendFailed    Code = "TRANSACTION_SEND_FAILED"
	CodeTransactionReverted      Code = "TRANSACTION_REVERTED"
	CodeTransactionTimeout       Code = "TRANSACTION_TIMEOUT"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
)

// Input validation errors
const (
	CodeInvalidValue                Code = "INVALID_VALUE"
	CodeEmptyKeyList                Code = "EMPTY_KEY_LIST"
	CodeInvalidMnemonic             Code = "INVALID_MNEMONIC"
	CodeInvalidPrivateKey           Code = "INVALID_PRIVATE_KEY"
	CodeInvalidAddress              Code = "INVALID_ADDRESS"
	CodeUnsupportedToken            Code = "UNSUPPORTED_TOKEN"
	CodeCommitmentOwnershipMismatch Code = "COMMITMENT_OWNERSHIP_MISMATCH"
)

// Session state errors
const (
	CodeNoWithdrawalHash  Code = "NO_WITHDRAWAL_HASH"
	CodeSessionClosed     Code = "SESSION_CLOSED"
	CodeSignerUnavailable Code = "SIGNER_UNAVAILABLE"
)

// Circuit breaker errors
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
