package apperror

// Kind groups codes into the categories callers branch on.
type Kind string

const (
	// KindRemoteService covers protocol service transport, HTTP and payload failures.
	KindRemoteService Kind = "remote_service"
	// KindChainConnectivity covers node reachability, RPC, gas and receipt failures.
	KindChainConnectivity Kind = "chain_connectivity"
	// KindValidation covers malformed caller input.
	KindValidation Kind = "validation"
	// KindState covers operations attempted in an invalid session state.
	KindState Kind = "state"
	// KindInternal is everything else.
	KindInternal Kind = "internal"
)

var kinds = map[Code]Kind{
	CodeProtocolServiceError:       KindRemoteService,
	CodeProtocolServiceUnavailable: KindRemoteService,
	CodeMalformedResponse:          KindRemoteService,
	CodeNoSuitableCommitments:      KindRemoteService,
	CodeServiceTimeout:             KindRemoteService,
	CodeRateLimitExceeded:          KindRemoteService,
	CodeCircuitOpen:                KindRemoteService,

	CodeEthereumConnectionFailed: KindChainConnectivity,
	CodeEthereumRPCError:         KindChainConnectivity,
	CodeGasEstimationFailed:      KindChainConnectivity,
	CodeTransactionSendFailed:    KindChainConnectivity,
	CodeTransactionReverted:      KindChainConnectivity,
	CodeTransactionTimeout:       KindChainConnectivity,
	CodeContractCallFailed:       KindChainConnectivity,

	CodeRequiredField:               KindValidation,
	CodeInvalidInput:                KindValidation,
	CodeInvalidFormat:               KindValidation,
	CodeValidationError:             KindValidation,
	CodeInvalidValue:                KindValidation,
	CodeEmptyKeyList:                KindValidation,
	CodeInvalidMnemonic:             KindValidation,
	CodeInvalidPrivateKey:           KindValidation,
	CodeInvalidAddress:              KindValidation,
	CodeUnsupportedToken:            KindValidation,
	CodeCommitmentOwnershipMismatch: KindValidation,

	CodeInvalidState:      KindState,
	CodeNoWithdrawalHash:  KindState,
	CodeSessionClosed:     KindState,
	CodeSignerUnavailable: KindState,
}

// KindOf classifies err. Errors that are not AppErrors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if k, ok := kinds[GetCode(err)]; ok {
		return k
	}
	return KindInternal
}

func IsRemoteService(err error) bool     { return KindOf(err) == KindRemoteService }
func IsChainConnectivity(err error) bool { return KindOf(err) == KindChainConnectivity }
func IsValidation(err error) bool        { return KindOf(err) == KindValidation }
func IsState(err error) bool             { return KindOf(err) == KindState }

// IsNoSuitableCommitments reports the insufficient-commitments sub-kind.
func IsNoSuitableCommitments(err error) bool {
	return GetCode(err) == CodeNoSuitableCommitments
}
