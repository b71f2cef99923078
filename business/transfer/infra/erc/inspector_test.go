package erc

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
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

// fakeContract answers eth_call by method selector.
type fakeContract struct {
	t       *testing.T
	abis    []abi.ABI
	answers map[string][]any // method name -> outputs
	reverts map[string]bool
	err     error
	calls   []string
}

func newFakeContract(t *testing.T) *fakeContract {
	t.Helper()
	var abis []abi.ABI
	for _, def := range []string{ERC20ABI, ERC165ABI, OperatorApprovalABI} {
		parsed, err := abi.JSON(strings.NewReader(def))
		if err != nil {
			t.Fatalf("parse abi: %v", err)
		}
		abis = append(abis, parsed)
	}
	return &fakeContract{t: t, abis: abis, answers: map[string][]any{}, reverts: map[string]bool{}}
}

func (f *fakeContract) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.abis {
		for name, m := range a.Methods {
			if !bytes.Equal(m.ID, msg.Data[:4]) {
				continue
			}
			f.calls = append(f.calls, name)
			if name == "supportsInterface" {
				var id [4]byte
				copy(id[:], msg.Data[4:8])
				name = name + ":" + common.Bytes2Hex(id[:])
			}
			if f.reverts[name] {
				return nil, errors.New("execution reverted")
			}
			out, ok := f.answers[name]
			if !ok {
				return []byte{}, nil
			}
			packed, err := m.Outputs.Pack(out...)
			if err != nil {
				f.t.Fatalf("pack %s: %v", name, err)
			}
			return packed, nil
		}
	}
	return nil, errors.New("execution reverted")
}

const (
	erc721Key  = "supportsInterface:80ac58cd"
	erc1155Key = "supportsInterface:d9b67a26"
)

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ownerAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	shield    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func TestInspector_DetectStandard(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fakeContract)
		want     domain.ErcStandard
		wantCode apperror.Code
	}{
		{
			name: "erc721",
			setup: func(f *fakeContract) {
				f.answers[erc721Key] = []any{true}
			},
			want: domain.ERC721,
		},
		{
			name: "erc1155",
			setup: func(f *fakeContract) {
				f.answers[erc721Key] = []any{false}
				f.answers[erc1155Key] = []any{true}
			},
			want: domain.ERC1155,
		},
		{
			name: "erc20 without erc165",
			setup: func(f *fakeContract) {
				f.reverts[erc721Key] = true
				f.answers["decimals"] = []any{uint8(18)}
			},
			want: domain.ERC20,
		},
		{
			name: "erc20 answering false to erc165",
			setup: func(f *fakeContract) {
				f.answers[erc721Key] = []any{false}
				f.answers[erc1155Key] = []any{false}
				f.answers["decimals"] = []any{uint8(6)}
			},
			want: domain.ERC20,
		},
		{
			name:     "not a token",
			setup:    func(f *fakeContract) {},
			wantCode: apperror.CodeUnsupportedToken,
		},
		{
			name: "node failure is not unsupported",
			setup: func(f *fakeContract) {
				f.err = errors.New("connection refused")
			},
			wantCode: apperror.CodeContractCallFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeContract(t)
			tt.setup(f)
			insp, err := NewInspector(f, &mockLogger{})
			if err != nil {
				t.Fatalf("new inspector: %v", err)
			}

			got, err := insp.DetectStandard(context.Background(), tokenAddr)
			if tt.wantCode != "" {
				if apperror.GetCode(err) != tt.wantCode {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestInspector_Reads(t *testing.T) {
	f := newFakeContract(t)
	f.answers["decimals"] = []any{uint8(18)}
	f.answers["allowance"] = []any{big.NewInt(5000)}
	f.answers["isApprovedForAll"] = []any{true}

	insp, err := NewInspector(f, &mockLogger{})
	if err != nil {
		t.Fatalf("new inspector: %v", err)
	}
	ctx := context.Background()

	d, err := insp.Decimals(ctx, tokenAddr)
	if err != nil || d != 18 {
		t.Errorf("decimals: got %d, %v", d, err)
	}

	a, err := insp.Allowance(ctx, tokenAddr, ownerAddr, shield)
	if err != nil || a.Cmp(big.NewInt(5000)) != 0 {
		t.Errorf("allowance: got %v, %v", a, err)
	}

	ok, err := insp.IsApprovedForAll(ctx, tokenAddr, ownerAddr, shield)
	if err != nil || !ok {
		t.Errorf("isApprovedForAll: got %v, %v", ok, err)
	}
}

func TestInspector_ApproveCallData(t *testing.T) {
	insp, err := NewInspector(newFakeContract(t), &mockLogger{})
	if err != nil {
		t.Fatalf("new inspector: %v", err)
	}

	data, err := insp.ApproveCallData(domain.ERC20, shield, big.NewInt(100000000000000))
	if err != nil {
		t.Fatalf("erc20: %v", err)
	}
	if !bytes.Equal(data[:4], insp.erc20.Methods["approve"].ID) {
		t.Errorf("expected approve selector, got %x", data[:4])
	}
	args, err := insp.erc20.Methods["approve"].Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if args[0].(common.Address) != shield || args[1].(*big.Int).String() != "100000000000000" {
		t.Errorf("unexpected approve args %v", args)
	}

	for _, std := range []domain.ErcStandard{domain.ERC721, domain.ERC1155} {
		data, err := insp.ApproveCallData(std, shield, nil)
		if err != nil {
			t.Fatalf("%s: %v", std, err)
		}
		if !bytes.Equal(data[:4], insp.operator.Methods["setApprovalForAll"].ID) {
			t.Errorf("%s: expected setApprovalForAll selector, got %x", std, data[:4])
		}
	}

	if _, err := insp.ApproveCallData("ERC777", shield, nil); !apperror.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestInspector_RepeatedReadsKeepBreakerClosed(t *testing.T) {
	f := newFakeContract(t)
	f.answers["allowance"] = []any{big.NewInt(5000)}
	f.reverts["decimals"] = true

	insp, err := NewInspector(f, &mockLogger{})
	if err != nil {
		t.Fatalf("new inspector: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if _, err := insp.Allowance(ctx, tokenAddr, ownerAddr, shield); err != nil {
			t.Fatalf("allowance read %d: %v", i, err)
		}
		// Reverts prove the node is up and must not trip the breaker either.
		if _, err := insp.Decimals(ctx, tokenAddr); apperror.GetCode(err) != apperror.CodeContractCallFailed || errors.Is(err, apperror.New(apperror.CodeCircuitOpen)) {
			t.Fatalf("decimals read %d: expected revert, got %v", i, err)
		}
	}

	f.reverts = map[string]bool{}
	f.err = errors.New("dial tcp: connection refused")
	for i := 0; i < 5; i++ {
		insp.Allowance(ctx, tokenAddr, ownerAddr, shield)
	}
	if _, err := insp.Allowance(ctx, tokenAddr, ownerAddr, shield); !errors.Is(err, apperror.New(apperror.CodeCircuitOpen)) {
		t.Errorf("expected node failures to open the breaker, got %v", err)
	}
}
