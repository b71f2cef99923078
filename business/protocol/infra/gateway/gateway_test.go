package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/nightfall-sdk/business/protocol/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
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

var testKeys = &domain.ZkpKeySet{
	RootKey:                "0xroot",
	NullifierKey:           "0xnullifier",
	ZkpPrivateKey:          "0xprivate",
	ZkpPublicKey:           [2]string{"0xpub0", "0xpub1"},
	CompressedZkpPublicKey: "0xcompressed",
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("X-Request-Id") == "" {
			t.Errorf("%s %s: missing X-Request-Id", r.Method, r.URL.Path)
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	g, err := New(DefaultConfig(server.URL), &mockLogger{})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	t.Cleanup(g.Close)

	return g, &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestGateway_HealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/healthcheck" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			})

			ok, err := g.HealthCheck(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("expected %v, got %v", tt.want, ok)
			}
		})
	}
}

func TestGateway_HealthCheckUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	g, err := New(DefaultConfig(url), &mockLogger{})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	defer g.Close()

	if _, err := g.HealthCheck(context.Background()); !apperror.IsRemoteService(err) {
		t.Errorf("expected remote service error, got %v", err)
	}
}

func TestGateway_ResolveContractAddressCaches(t *testing.T) {
	const shield = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	g, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contract-address/Shield" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]string{"address": shield})
	})

	for i := 0; i < 2; i++ {
		addr, err := g.ResolveContractAddress(context.Background(), "Shield")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != common.HexToAddress(shield) {
			t.Errorf("expected %s, got %s", shield, addr.Hex())
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected one request, got %d", hits.Load())
	}
}

func TestGateway_ResolveContractAddressMalformed(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"address": "not-an-address"})
	})

	_, err := g.ResolveContractAddress(context.Background(), "Shield")
	if apperror.GetCode(err) != apperror.CodeMalformedResponse {
		t.Errorf("expected malformed response, got %v", err)
	}
}

func TestGateway_DeriveKeys(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var body generateKeysRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.Mnemonic != "word word" || body.AddressIndex != 3 {
			t.Errorf("unexpected body %+v", body)
		}
		writeJSON(w, http.StatusOK, testKeys)
	})

	keys, err := g.DeriveKeys(context.Background(), "word word", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *keys != *testKeys {
		t.Errorf("unexpected keys %+v", keys)
	}
}

func TestGateway_BuildTransferNoSuitableCommitments(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok status", http.StatusOK},
		{"error status", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{"error": "No suitable commitments"})
			})

			req := domain.TransferRequest{
				ErcAddress: common.HexToAddress("0x01"),
				TokenID:    "0x00",
				Recipients: domain.RecipientData{
					RecipientCompressedZkpPublicKeys: []string{"0xother"},
					Values:                           []string{"100"},
				},
				Fee:  "0",
				Keys: testKeys,
			}

			_, err := g.BuildTransfer(context.Background(), req)
			if !apperror.IsNoSuitableCommitments(err) {
				t.Fatalf("expected no suitable commitments, got %v", err)
			}
			if !apperror.IsRemoteService(err) {
				t.Errorf("expected remote service kind, got %s", apperror.KindOf(err))
			}
		})
	}
}

func TestGateway_BuildDeposit(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/deposit" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body depositRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.Value != "100000000000000" || body.TokenType != "ERC20" || body.CompressedZkpPublicKey != testKeys.CompressedZkpPublicKey || body.NullifierKey != testKeys.NullifierKey {
			t.Errorf("unexpected body %+v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"txDataToSign": "0xdeadbeef",
			"transaction":  map[string]any{"transactionHash": "0xl2"},
		})
	})

	intent, err := g.BuildDeposit(context.Background(), domain.DepositRequest{
		ErcAddress: common.HexToAddress("0x01"),
		TokenType:  "ERC20",
		Value:      "100000000000000",
		TokenID:    "0x00",
		Fee:        "0",
		Keys:       testKeys,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Endpoint != domain.EndpointDeposit {
		t.Errorf("expected deposit endpoint, got %s", intent.Endpoint)
	}
	if intent.L2Hash() != "0xl2" {
		t.Errorf("expected l2 hash 0xl2, got %s", intent.L2Hash())
	}
	data, err := intent.CallData()
	if err != nil || len(data) != 4 {
		t.Errorf("expected 4 bytes of call data, got %x (%v)", data, err)
	}
}

func TestGateway_OnChainIntentRequiresCallData(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"transaction": map[string]any{"transactionHash": "0xl2"}})
	})

	_, err := g.BuildFinaliseWithdrawal(context.Background(), "0xl2")
	if apperror.GetCode(err) != apperror.CodeMalformedResponse {
		t.Errorf("expected malformed response, got %v", err)
	}

	intent, err := g.BuildWithdrawal(context.Background(), domain.WithdrawalRequest{
		ErcAddress: common.HexToAddress("0x01"),
		Value:      "1",
		OffChain:   true,
		Keys:       testKeys,
	})
	if err != nil {
		t.Fatalf("off-chain withdrawal: unexpected error %v", err)
	}
	if intent.HasCallData() {
		t.Error("expected no call data for off-chain intent")
	}
}

func TestGateway_FetchCommitmentsByKeysRejectsEmpty(t *testing.T) {
	g, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, commitmentsByKeysResponse{})
	})

	for _, keys := range [][]string{nil, {}} {
		_, err := g.FetchCommitmentsByKeys(context.Background(), keys)
		if apperror.GetCode(err) != apperror.CodeEmptyKeyList {
			t.Errorf("expected empty key list error, got %v", err)
		}
		if !apperror.IsValidation(err) {
			t.Errorf("expected validation kind, got %s", apperror.KindOf(err))
		}
	}
	if hits.Load() != 0 {
		t.Errorf("expected no requests, got %d", hits.Load())
	}
}

func TestGateway_FetchCommitmentsByKeys(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var keys []string
		if err := json.NewDecoder(r.Body).Decode(&keys); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if len(keys) != 1 || keys[0] != "0xcompressed" {
			t.Errorf("unexpected keys %v", keys)
		}
		io.WriteString(w, `{"commitmentsByListOfCompressedZkpPublicKey":[{"_id":"0x1","compressedZkpPublicKey":"0xcompressed","isOnChain":12}]}`)
	})

	commitments, err := g.FetchCommitmentsByKeys(context.Background(), []string{"0xcompressed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commitments) != 1 || commitments[0].ID != "0x1" || !commitments[0].IsOnChain.Bool() {
		t.Errorf("unexpected commitments %+v", commitments)
	}
}

func TestGateway_FetchBalances(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("compressedZkpPublicKey")
		if key == "0xunknown" {
			io.WriteString(w, `{"balance":{}}`)
			return
		}
		io.WriteString(w, `{"balance":{"`+key+`":{"0xerc":[{"balance":15,"tokenId":"0x00"},{"balance":"5","tokenId":"0x01"}]}}}`)
	})

	balances, err := g.FetchBalances(context.Background(), "0xcompressed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := balances.Total("0xERC"); got.String() != "20" {
		t.Errorf("expected total 20, got %s", got)
	}

	empty, err := g.FetchPendingDeposits(context.Background(), "0xunknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty map, got %v", empty)
	}
}

func TestGateway_ErrorShape(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   apperror.Code
	}{
		{"bad request", http.StatusBadRequest, `{"error":"invalid ercAddress"}`, apperror.CodeProtocolServiceError},
		{"unavailable", http.StatusServiceUnavailable, `down`, apperror.CodeProtocolServiceUnavailable},
		{"error in ok body", http.StatusOK, `{"error":"something else"}`, apperror.CodeProtocolServiceError},
		{"undecodable body", http.StatusOK, `not json`, apperror.CodeMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := g.BuildFinaliseWithdrawal(context.Background(), "0xl2")
			if apperror.GetCode(err) != tt.code {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
			if !apperror.IsRemoteService(err) {
				t.Errorf("expected remote service kind, got %s", apperror.KindOf(err))
			}
		})
	}
}

func TestGateway_ValidatesBeforeRequest(t *testing.T) {
	g, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	checks := []error{
		func() error { _, err := g.DeriveKeys(ctx, "", 0); return err }(),
		func() error { _, err := g.BuildDeposit(ctx, domain.DepositRequest{}); return err }(),
		func() error { _, err := g.BuildFinaliseWithdrawal(ctx, ""); return err }(),
		func() error { _, err := g.FetchBalances(ctx, ""); return err }(),
		g.SubscribeIncomingViewingKeys(ctx, nil),
	}
	for i, err := range checks {
		if !apperror.IsValidation(err) {
			t.Errorf("check %d: expected validation error, got %v", i, err)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("expected no requests, got %d", hits.Load())
	}
}
