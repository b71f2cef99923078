package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	chainapp "github.com/fd1az/nightfall-sdk/business/chain/app"
	chaindomain "github.com/fd1az/nightfall-sdk/business/chain/domain"
	protocolapp "github.com/fd1az/nightfall-sdk/business/protocol/app"
	protocoldomain "github.com/fd1az/nightfall-sdk/business/protocol/domain"
	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

var (
	erc20Token  = common.HexToAddress("0x0000000000000000000000000000000000000020")
	erc721Token = common.HexToAddress("0x0000000000000000000000000000000000000721")
	shieldAddr  = common.HexToAddress("0x00000000000000000000000000000000005111e1")
	userAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

var approveMarker = []byte{0xa9, 0x05, 0x9c, 0xbb}

// fakeInspector serves token reads from memory. An approval sent through
// fakeSubmitter raises the allowance, as the chain would.
type fakeInspector struct {
	mu sync.Mutex

	standards   map[common.Address]domain.ErcStandard
	decimals    map[common.Address]uint8
	decimalsErr error
	allowance   *big.Int
	operator    bool

	detectCalls    int
	allowanceCalls int
	operatorCalls  int
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{
		standards: map[common.Address]domain.ErcStandard{
			erc20Token:  domain.ERC20,
			erc721Token: domain.ERC721,
		},
		decimals:  map[common.Address]uint8{erc20Token: 18},
		allowance: new(big.Int),
	}
}

func (f *fakeInspector) DetectStandard(ctx context.Context, token common.Address) (domain.ErcStandard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detectCalls++
	std, ok := f.standards[token]
	if !ok {
		return "", errors.New("unsupported token")
	}
	return std, nil
}

func (f *fakeInspector) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decimalsErr != nil {
		return 0, f.decimalsErr
	}
	return f.decimals[token], nil
}

func (f *fakeInspector) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowanceCalls++
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeInspector) IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operatorCalls++
	return f.operator, nil
}

func (f *fakeInspector) ApproveCallData(std domain.ErcStandard, spender common.Address, value *big.Int) ([]byte, error) {
	data := append([]byte{}, approveMarker...)
	if value != nil {
		data = append(data, common.LeftPadBytes(value.Bytes(), 32)...)
	}
	return data, nil
}

func (f *fakeInspector) approve(value *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value != nil {
		f.allowance = new(big.Int).Set(value)
	}
	f.operator = true
}

var _ TokenInspector = (*fakeInspector)(nil)

// fakeSubmitter echoes a synthetic receipt for every call.
type fakeSubmitter struct {
	mu        sync.Mutex
	inspector *fakeInspector
	calls     []chaindomain.CallRequest
	seq       uint64
	err       error
}

func (f *fakeSubmitter) Submit(ctx context.Context, account chainapp.Account, call chaindomain.CallRequest) (*chaindomain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}

	if f.inspector != nil && len(call.Data) >= 4 && string(call.Data[:4]) == string(approveMarker) {
		var v *big.Int
		if len(call.Data) >= 36 {
			v = new(big.Int).SetBytes(call.Data[4:36])
		}
		f.inspector.approve(v)
	}

	f.seq++
	return &chaindomain.Receipt{
		TxHash:      common.BigToHash(new(big.Int).SetUint64(f.seq)),
		BlockNumber: 100 + f.seq,
		From:        account.Address(),
		To:          call.To,
		Status:      1,
		Sequence:    f.seq,
	}, nil
}

func (f *fakeSubmitter) Calls() []chaindomain.CallRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chaindomain.CallRequest(nil), f.calls...)
}

var _ chainapp.TransactionSubmitter = (*fakeSubmitter)(nil)

// fakeGateway builds intents whose call data is the 32-byte encoding of
// the requested value, so tests can read back what would be signed.
type fakeGateway struct {
	protocolapp.Gateway // unimplemented methods panic

	mu             sync.Mutex
	deposits       []protocoldomain.DepositRequest
	transfers      []protocoldomain.TransferRequest
	withdrawals    []protocoldomain.WithdrawalRequest
	finalised      []string
	addressLookups int
	transferErr    error
	withdrawErr    error
	nextHash       int
}

func (g *fakeGateway) hash() string {
	g.nextHash++
	return common.BigToHash(big.NewInt(int64(0xf00 + g.nextHash))).Hex()
}

func encodeValue(v string) string {
	n, _ := new(big.Int).SetString(v, 10)
	if n == nil {
		n = new(big.Int)
	}
	return common.Bytes2Hex(common.LeftPadBytes(n.Bytes(), 32))
}

func (g *fakeGateway) ResolveContractAddress(ctx context.Context, name string) (common.Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addressLookups++
	return shieldAddr, nil
}

func (g *fakeGateway) BuildDeposit(ctx context.Context, req protocoldomain.DepositRequest) (*protocoldomain.UnsignedTransactionIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deposits = append(g.deposits, req)
	return &protocoldomain.UnsignedTransactionIntent{
		Endpoint:     protocoldomain.EndpointDeposit,
		TxDataToSign: "0x" + encodeValue(req.Value),
		Transaction:  &protocoldomain.L2Transaction{TransactionHash: g.hash()},
	}, nil
}

func (g *fakeGateway) BuildTransfer(ctx context.Context, req protocoldomain.TransferRequest) (*protocoldomain.UnsignedTransactionIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transfers = append(g.transfers, req)
	if g.transferErr != nil {
		return nil, g.transferErr
	}
	intent := &protocoldomain.UnsignedTransactionIntent{
		Endpoint:    protocoldomain.EndpointTransfer,
		Transaction: &protocoldomain.L2Transaction{TransactionHash: g.hash()},
	}
	if !req.OffChain {
		intent.TxDataToSign = "0x" + encodeValue(req.Recipients.Values[0])
	}
	return intent, nil
}

func (g *fakeGateway) BuildWithdrawal(ctx context.Context, req protocoldomain.WithdrawalRequest) (*protocoldomain.UnsignedTransactionIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.withdrawals = append(g.withdrawals, req)
	if g.withdrawErr != nil {
		return nil, g.withdrawErr
	}
	intent := &protocoldomain.UnsignedTransactionIntent{
		Endpoint:    protocoldomain.EndpointWithdraw,
		Transaction: &protocoldomain.L2Transaction{TransactionHash: g.hash()},
	}
	if !req.OffChain {
		intent.TxDataToSign = "0x" + encodeValue(req.Value)
	}
	return intent, nil
}

func (g *fakeGateway) BuildFinaliseWithdrawal(ctx context.Context, l2TxHash string) (*protocoldomain.UnsignedTransactionIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalised = append(g.finalised, l2TxHash)
	return &protocoldomain.UnsignedTransactionIntent{
		Endpoint:     protocoldomain.EndpointFinaliseWithdrawal,
		TxDataToSign: "0x1234",
	}, nil
}

// fakeWallet is an external wallet; fakeSubmitter never calls it.
type fakeWallet struct{}

func (fakeWallet) From() common.Address { return userAddr }

func (fakeWallet) SendTransaction(ctx context.Context, call chaindomain.CallRequest) (common.Hash, error) {
	return common.Hash{}, errors.New("not used")
}

var testKeys = &protocoldomain.ZkpKeySet{
	RootKey:                "0xroot",
	NullifierKey:           "0xnullifier",
	ZkpPrivateKey:          "0xprivate",
	CompressedZkpPublicKey: "0xmine",
}

func testCreds() Credentials {
	return Credentials{
		Account: chainapp.NewWalletAccount(fakeWallet{}),
		Keys:    testKeys,
	}
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []domain.Transition
}

func (r *recordingObserver) OnTransition(ctx context.Context, op *domain.Operation, t domain.Transition) {
	r.mu.Lock()
	r.transitions = append(r.transitions, t)
	r.mu.Unlock()
}

func (r *recordingObserver) states() []domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.State, len(r.transitions))
	for i, t := range r.transitions {
		out[i] = t.To
	}
	return out
}

type harness struct {
	inspector *fakeInspector
	submitter *fakeSubmitter
	gateway   *fakeGateway
	observer  *recordingObserver
	orch      *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	insp := newFakeInspector()
	sub := &fakeSubmitter{inspector: insp}
	gw := &fakeGateway{}
	obs := &recordingObserver{}
	log := &mockLogger{}

	orch, err := NewOrchestrator(
		OrchestratorConfig{ShieldContractName: "Shield"},
		gw, sub,
		NewApprovalGate(insp, sub, log),
		NewTokenResolver(insp, log),
		log,
		WithTransitionObserver(obs),
	)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	return &harness{inspector: insp, submitter: sub, gateway: gw, observer: obs, orch: orch}
}
