package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:    "Service request timeout",
	CodeRateLimitExceeded: "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeProtocolServiceError:       "Protocol service request failed",
	CodeProtocolServiceUnavailable: "Protocol service unavailable",
	CodeMalformedResponse:          "Protocol service returned an unexpected response",
	CodeNoSuitableCommitments:      "Insufficient spendable commitments",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeTransactionSendFailed:    "Failed to broadcast transaction",
	CodeTransactionReverted:      "Transaction reverted",
	CodeTransactionTimeout:       "Timed out waiting for transaction receipt",
	CodeContractCallFailed:       "Smart contract call failed",

	CodeInvalidValue:                "Invalid token value",
	CodeEmptyKeyList:                "At least one key is required",
	CodeInvalidMnemonic:             "Invalid mnemonic",
	CodeInvalidPrivateKey:           "Invalid private key",
	CodeInvalidAddress:              "Invalid address",
	CodeUnsupportedToken:            "Token standard could not be determined",
	CodeCommitmentOwnershipMismatch: "Commitment does not belong to this key",

	CodeNoWithdrawalHash:  "No withdrawal transaction hash available",
	CodeSessionClosed:     "Session is closed",
	CodeSignerUnavailable: "No signing key or external wallet available",

	CodeCircuitOpen: "Circuit breaker is open",
}
