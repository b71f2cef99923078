package app

import (
	"context"
	"math/big"
	"testing"

	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
)

var (
	fungible = domain.Token{Address: erc20Token, Standard: domain.ERC20, Decimals: 18}
	nft      = domain.Token{Address: erc721Token, Standard: domain.ERC721}
)

func TestApprovalGate_CheckIsIdempotent(t *testing.T) {
	insp := newFakeInspector()
	insp.allowance = big.NewInt(50)
	gate := NewApprovalGate(insp, &fakeSubmitter{}, &mockLogger{})
	ctx := context.Background()

	first, err := gate.Check(ctx, fungible, userAddr, shieldAddr, big.NewInt(100))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	second, err := gate.Check(ctx, fungible, userAddr, shieldAddr, big.NewInt(100))
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if first.Approved || second.Approved {
		t.Error("allowance 50 must not cover 100")
	}
	if first.Allowance.Cmp(second.Allowance) != 0 || string(first.CallData) != string(second.CallData) {
		t.Errorf("decisions differ: %+v vs %+v", first, second)
	}
	if insp.allowanceCalls != 2 {
		t.Errorf("expected a fresh read per check, got %d reads", insp.allowanceCalls)
	}
}

func TestApprovalGate_Check(t *testing.T) {
	tests := []struct {
		name      string
		token     domain.Token
		allowance int64
		operator  bool
		value     *big.Int
		want      bool
	}{
		{name: "allowance covers value", token: fungible, allowance: 100, value: big.NewInt(100), want: true},
		{name: "allowance exceeds value", token: fungible, allowance: 101, value: big.NewInt(100), want: true},
		{name: "allowance short", token: fungible, allowance: 99, value: big.NewInt(100), want: false},
		{name: "zero value", token: fungible, allowance: 0, value: nil, want: true},
		{name: "nft operator set", token: nft, operator: true, want: true},
		{name: "nft operator unset", token: nft, operator: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insp := newFakeInspector()
			insp.allowance = big.NewInt(tt.allowance)
			insp.operator = tt.operator
			gate := NewApprovalGate(insp, &fakeSubmitter{}, &mockLogger{})

			d, err := gate.Check(context.Background(), tt.token, userAddr, shieldAddr, tt.value)
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if d.Approved != tt.want {
				t.Errorf("expected approved=%v, got %v", tt.want, d.Approved)
			}
			if !d.Approved && len(d.CallData) == 0 {
				t.Error("expected approval call data when not approved")
			}
			if d.Approved && d.CallData != nil {
				t.Error("expected no call data when approved")
			}
		})
	}
}

func TestApprovalGate_EnsureApproved(t *testing.T) {
	t.Run("already approved", func(t *testing.T) {
		insp := newFakeInspector()
		insp.allowance = big.NewInt(1000)
		sub := &fakeSubmitter{inspector: insp}
		gate := NewApprovalGate(insp, sub, &mockLogger{})

		out, err := gate.EnsureApproved(context.Background(), fungible, testCreds().Account, shieldAddr, big.NewInt(10))
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if out.Result != domain.AlreadyApproved || out.Submitted() || out.Receipt != nil {
			t.Errorf("unexpected outcome %+v", out)
		}
		if len(sub.Calls()) != 0 {
			t.Error("nothing must be submitted")
		}
	})

	t.Run("submits approval", func(t *testing.T) {
		insp := newFakeInspector()
		sub := &fakeSubmitter{inspector: insp}
		gate := NewApprovalGate(insp, sub, &mockLogger{})

		out, err := gate.EnsureApproved(context.Background(), fungible, testCreds().Account, shieldAddr, big.NewInt(10))
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if !out.Submitted() || out.Receipt == nil {
			t.Fatalf("unexpected outcome %+v", out)
		}
		calls := sub.Calls()
		if len(calls) != 1 || calls[0].To != erc20Token {
			t.Errorf("expected one call to the token, got %+v", calls)
		}

		again, err := gate.EnsureApproved(context.Background(), fungible, testCreds().Account, shieldAddr, big.NewInt(10))
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if again.Result != domain.AlreadyApproved {
			t.Errorf("expected already approved after approval, got %s", again.Result)
		}
	})

	t.Run("submit failure", func(t *testing.T) {
		insp := newFakeInspector()
		sub := &fakeSubmitter{err: apperror.New(apperror.CodeTransactionReverted)}
		gate := NewApprovalGate(insp, sub, &mockLogger{})

		_, err := gate.EnsureApproved(context.Background(), fungible, testCreds().Account, shieldAddr, big.NewInt(10))
		if apperror.GetCode(err) != apperror.CodeTransactionReverted {
			t.Fatalf("expected revert to propagate, got %v", err)
		}
	})

	t.Run("unsupported standard", func(t *testing.T) {
		gate := NewApprovalGate(newFakeInspector(), &fakeSubmitter{}, &mockLogger{})

		_, err := gate.EnsureApproved(context.Background(), domain.Token{Address: erc20Token, Standard: "ERC777"},
			testCreds().Account, shieldAddr, big.NewInt(1))
		if !apperror.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
